package repository

import (
	"context"

	"plantspack/internal/models"
	"plantspack/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportFilter narrows the admin report queue.
type ReportFilter struct {
	Status     models.ReportStatus
	TargetType string
	Limit      int
	Offset     int
}

// ModerationRepository stores reports, blocks and mutes.
type ModerationRepository interface {
	CreateReport(ctx context.Context, report *models.ModerationReport) error
	HasOpenReport(ctx context.Context, reporterID uint, targetType string, targetID uint) (bool, error)
	GetReport(ctx context.Context, id uint) (*models.ModerationReport, error)
	ListReports(ctx context.Context, f ReportFilter) ([]models.ModerationReport, int64, error)
	ReportsAgainstUser(ctx context.Context, userID uint, limit int) ([]models.ModerationReport, error)
	UpdateReport(ctx context.Context, report *models.ModerationReport) error
	CountOpenReports(ctx context.Context) (int64, error)

	Block(ctx context.Context, blockerID, blockedID uint) (created bool, err error)
	Unblock(ctx context.Context, blockerID, blockedID uint) (removed bool, err error)
	IsBlockedEitherWay(ctx context.Context, a, b uint) (bool, error)
	ListBlocks(ctx context.Context, blockerID uint) ([]models.UserBlock, error)

	Mute(ctx context.Context, muterID, mutedID uint) (created bool, err error)
	Unmute(ctx context.Context, muterID, mutedID uint) (removed bool, err error)
	ListMutes(ctx context.Context, muterID uint) ([]models.UserMute, error)
}

type moderationRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewModerationRepository returns the gorm ModerationRepository.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db, log: observability.NewRepoLogger("moderation_reports")}
}

func (r *moderationRepository) CreateReport(ctx context.Context, report *models.ModerationReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"report_id": report.ID, "target_type": report.TargetType})
	return nil
}

func (r *moderationRepository) HasOpenReport(ctx context.Context, reporterID uint, targetType string, targetID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ModerationReport{}).
		Where("reporter_id = ? AND target_type = ? AND target_id = ? AND status = ?",
			reporterID, targetType, targetID, models.ReportStatusOpen).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *moderationRepository) GetReport(ctx context.Context, id uint) (*models.ModerationReport, error) {
	var report models.ModerationReport
	if err := r.db.WithContext(ctx).Preload("Reporter").First(&report, id).Error; err != nil {
		return nil, notFoundOr(err, "Report", id)
	}
	return &report, nil
}

func (r *moderationRepository) ListReports(ctx context.Context, f ReportFilter) ([]models.ModerationReport, int64, error) {
	limit, offset := clampPage(f.Limit, f.Offset, 50, 200)
	tx := readDB(ctx, r.db).Model(&models.ModerationReport{})
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if f.TargetType != "" {
		tx = tx.Where("target_type = ?", f.TargetType)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var reports []models.ModerationReport
	if err := tx.Preload("Reporter").Order("created_at DESC").Limit(limit).Offset(offset).Find(&reports).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return reports, total, nil
}

func (r *moderationRepository) ReportsAgainstUser(ctx context.Context, userID uint, limit int) ([]models.ModerationReport, error) {
	limit, _ = clampPage(limit, 0, 20, 100)
	var reports []models.ModerationReport
	err := readDB(ctx, r.db).
		Where("reported_user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&reports).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return reports, nil
}

func (r *moderationRepository) UpdateReport(ctx context.Context, report *models.ModerationReport) error {
	err := r.db.WithContext(ctx).Model(report).
		Select("status", "action", "resolution_note", "resolved_by", "resolved_at").
		Updates(report).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"report_id": report.ID, "status": report.Status})
	return nil
}

func (r *moderationRepository) CountOpenReports(ctx context.Context) (int64, error) {
	var n int64
	err := readDB(ctx, r.db).Model(&models.ModerationReport{}).
		Where("status = ?", models.ReportStatusOpen).
		Count(&n).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// Block records the block and drops follow edges in both directions.
func (r *moderationRepository) Block(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blocker_id"}, {Name: "blocked_id"}},
			DoNothing: true,
		}).Create(&models.UserBlock{BlockerID: blockerID, BlockedID: blockedID})
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		return tx.Where("(follower_id = ? AND following_id = ?) OR (follower_id = ? AND following_id = ?)",
			blockerID, blockedID, blockedID, blockerID).
			Delete(&models.Follow{}).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return created, nil
}

func (r *moderationRepository) Unblock(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).Delete(&models.UserBlock{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *moderationRepository) IsBlockedEitherWay(ctx context.Context, a, b uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *moderationRepository) ListBlocks(ctx context.Context, blockerID uint) ([]models.UserBlock, error) {
	var blocks []models.UserBlock
	err := r.db.WithContext(ctx).Preload("Blocked").
		Where("blocker_id = ?", blockerID).
		Order("created_at DESC").
		Find(&blocks).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return blocks, nil
}

func (r *moderationRepository) Mute(ctx context.Context, muterID, mutedID uint) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "muter_id"}, {Name: "muted_id"}},
		DoNothing: true,
	}).Create(&models.UserMute{MuterID: muterID, MutedID: mutedID})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *moderationRepository) Unmute(ctx context.Context, muterID, mutedID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("muter_id = ? AND muted_id = ?", muterID, mutedID).Delete(&models.UserMute{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *moderationRepository) ListMutes(ctx context.Context, muterID uint) ([]models.UserMute, error) {
	var mutes []models.UserMute
	err := r.db.WithContext(ctx).Preload("Muted").
		Where("muter_id = ?", muterID).
		Order("created_at DESC").
		Find(&mutes).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return mutes, nil
}
