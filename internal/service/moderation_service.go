package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"plantspack/internal/models"
	"plantspack/internal/repository"

	"gorm.io/gorm"
)

// BanRequestRow aggregates open reports against one user.
type BanRequestRow struct {
	ReportedUserID uint        `json:"reported_user_id"`
	ReportCount    int64       `json:"report_count"`
	LatestReportAt time.Time   `json:"latest_report_at"`
	User           models.User `json:"user"`
}

// AdminUserDetail aggregates user and moderation data for admin views.
type AdminUserDetail struct {
	User           models.User               `json:"user"`
	Subscription   *models.Subscription      `json:"subscription,omitempty"`
	Reports        []models.ModerationReport `json:"reports"`
	BlocksGiven    []models.UserBlock        `json:"blocks_given"`
	BlocksReceived []models.UserBlock        `json:"blocks_received"`
	Warnings       []string                  `json:"warnings,omitempty"`
}

type CreateReportInput struct {
	ReporterID uint
	TargetType string
	TargetID   uint
	Reason     models.ReportReason
	Details    string
}

type ResolveReportInput struct {
	AdminID        uint
	ReportID       uint
	Status         models.ReportStatus
	Action         models.ModerationAction
	ResolutionNote string
}

// ModerationRepos bundles what ModerationService reads and writes.
type ModerationRepos struct {
	Moderation    repository.ModerationRepository
	Users         repository.UserRepository
	Posts         repository.PostRepository
	Comments      repository.CommentRepository
	Places        repository.PlaceRepository
	Subscriptions repository.SubscriptionRepository
}

// ModerationService handles reports, blocks, mutes and admin review.
type ModerationService struct {
	db    *gorm.DB
	repos ModerationRepos
}

// NewModerationService returns a new ModerationService.
func NewModerationService(db *gorm.DB, repos ModerationRepos) *ModerationService {
	return &ModerationService{db: db, repos: repos}
}

// reportedUser resolves the owner of the reported target.
func (s *ModerationService) reportedUser(ctx context.Context, targetType string, targetID uint) (uint, error) {
	switch targetType {
	case models.ReportTargetPost:
		post, err := s.repos.Posts.GetByID(ctx, targetID)
		if err != nil {
			return 0, err
		}
		return post.UserID, nil
	case models.ReportTargetComment:
		comment, err := s.repos.Comments.GetByID(ctx, targetID)
		if err != nil {
			return 0, err
		}
		return comment.UserID, nil
	case models.ReportTargetPlace:
		place, err := s.repos.Places.GetByID(ctx, targetID)
		if err != nil {
			return 0, err
		}
		return place.CreatedBy, nil
	default:
		user, err := s.repos.Users.GetByID(ctx, targetID)
		if err != nil {
			return 0, err
		}
		return user.ID, nil
	}
}

// CreateReport files a report. One open report per reporter and target.
func (s *ModerationService) CreateReport(ctx context.Context, in CreateReportInput) (*models.ModerationReport, error) {
	in.TargetType = strings.ToLower(strings.TrimSpace(in.TargetType))
	if !models.ValidReportTarget(in.TargetType) {
		return nil, models.NewValidationError("target_type must be one of post, comment, user, place")
	}
	if in.TargetID == 0 {
		return nil, models.NewValidationError("target_id is required")
	}
	if !in.Reason.Valid() {
		return nil, models.NewValidationError("reason must be one of spam, harassment, hate, misinformation, non_vegan, other")
	}
	details := strings.TrimSpace(in.Details)
	if len([]rune(details)) > 1000 {
		return nil, models.NewValidationError("details must not exceed 1000 characters")
	}

	ownerID, err := s.reportedUser(ctx, in.TargetType, in.TargetID)
	if err != nil {
		return nil, err
	}
	if ownerID == in.ReporterID {
		return nil, models.NewValidationError("You cannot report your own content")
	}
	open, err := s.repos.Moderation.HasOpenReport(ctx, in.ReporterID, in.TargetType, in.TargetID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, models.NewConflictError("You have already reported this")
	}

	report := &models.ModerationReport{
		ReporterID:     in.ReporterID,
		TargetType:     in.TargetType,
		TargetID:       in.TargetID,
		ReportedUserID: &ownerID,
		Reason:         in.Reason,
		Details:        details,
		Status:         models.ReportStatusOpen,
	}
	if err := s.repos.Moderation.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *ModerationService) ListReports(ctx context.Context, f repository.ReportFilter) ([]models.ModerationReport, int64, error) {
	if f.Status != "" {
		switch f.Status {
		case models.ReportStatusOpen, models.ReportStatusResolved, models.ReportStatusDismissed:
		default:
			return nil, 0, models.NewValidationError("status must be open, resolved or dismissed")
		}
	}
	if f.TargetType != "" && !models.ValidReportTarget(f.TargetType) {
		return nil, 0, models.NewValidationError("Unknown target_type")
	}
	return s.repos.Moderation.ListReports(ctx, f)
}

// ResolveReport closes a report and applies the chosen consequence.
func (s *ModerationService) ResolveReport(ctx context.Context, in ResolveReportInput) (*models.ModerationReport, error) {
	if in.Status != models.ReportStatusResolved && in.Status != models.ReportStatusDismissed {
		return nil, models.NewValidationError("status must be resolved or dismissed")
	}
	if in.Action == "" {
		in.Action = models.ActionNone
	}
	switch in.Action {
	case models.ActionNone, models.ActionDeleteContent, models.ActionBanUser:
	default:
		return nil, models.NewValidationError("action must be none, delete_content or ban_user")
	}
	if in.Status == models.ReportStatusDismissed && in.Action != models.ActionNone {
		return nil, models.NewValidationError("A dismissed report cannot carry an action")
	}

	report, err := s.repos.Moderation.GetReport(ctx, in.ReportID)
	if err != nil {
		return nil, err
	}
	if report.Status != models.ReportStatusOpen {
		return nil, models.NewConflictError("Report is already closed")
	}

	switch in.Action {
	case models.ActionDeleteContent:
		if err := s.deleteTarget(ctx, report); err != nil {
			return nil, err
		}
	case models.ActionBanUser:
		if report.ReportedUserID == nil {
			return nil, models.NewValidationError("Report has no reported user")
		}
		target, err := s.repos.Users.GetByID(ctx, *report.ReportedUserID)
		if err != nil {
			return nil, err
		}
		if target.IsAdmin {
			return nil, models.NewForbiddenError("Admins cannot be banned through a report")
		}
		if err := s.SetBanned(ctx, *report.ReportedUserID, true); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	report.Status = in.Status
	report.Action = in.Action
	report.ResolutionNote = strings.TrimSpace(in.ResolutionNote)
	report.ResolvedBy = &in.AdminID
	report.ResolvedAt = &now
	if err := s.repos.Moderation.UpdateReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *ModerationService) deleteTarget(ctx context.Context, report *models.ModerationReport) error {
	switch report.TargetType {
	case models.ReportTargetPost:
		return s.repos.Posts.Delete(ctx, report.TargetID)
	case models.ReportTargetComment:
		comment, err := s.repos.Comments.GetByID(ctx, report.TargetID)
		if err != nil {
			return err
		}
		return s.repos.Comments.Delete(ctx, comment)
	case models.ReportTargetPlace:
		return s.repos.Places.Delete(ctx, report.TargetID)
	}
	return models.NewValidationError("Users cannot be deleted as content; use ban_user")
}

// SetBanned bans or unbans a user.
func (s *ModerationService) SetBanned(ctx context.Context, userID uint, banned bool) error {
	fields := map[string]any{"is_banned": banned, "banned_at": nil}
	if banned {
		fields["banned_at"] = time.Now().UTC()
	}
	return s.repos.Users.UpdateFields(ctx, userID, fields)
}

func (s *ModerationService) Block(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	if blockerID == blockedID {
		return false, models.NewValidationError("You cannot block yourself")
	}
	if _, err := s.repos.Users.GetByID(ctx, blockedID); err != nil {
		return false, err
	}
	return s.repos.Moderation.Block(ctx, blockerID, blockedID)
}

func (s *ModerationService) Unblock(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	return s.repos.Moderation.Unblock(ctx, blockerID, blockedID)
}

func (s *ModerationService) Mute(ctx context.Context, muterID, mutedID uint) (bool, error) {
	if muterID == mutedID {
		return false, models.NewValidationError("You cannot mute yourself")
	}
	if _, err := s.repos.Users.GetByID(ctx, mutedID); err != nil {
		return false, err
	}
	return s.repos.Moderation.Mute(ctx, muterID, mutedID)
}

func (s *ModerationService) Unmute(ctx context.Context, muterID, mutedID uint) (bool, error) {
	return s.repos.Moderation.Unmute(ctx, muterID, mutedID)
}

func (s *ModerationService) ListBlocks(ctx context.Context, userID uint) ([]models.UserBlock, error) {
	blocks, err := s.repos.Moderation.ListBlocks(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		if blocks[i].Blocked != nil {
			pub := blocks[i].Blocked.PublicView()
			blocks[i].Blocked = &pub
		}
	}
	return blocks, nil
}

func (s *ModerationService) ListMutes(ctx context.Context, userID uint) ([]models.UserMute, error) {
	mutes, err := s.repos.Moderation.ListMutes(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range mutes {
		if mutes[i].Muted != nil {
			pub := mutes[i].Muted.PublicView()
			mutes[i].Muted = &pub
		}
	}
	return mutes, nil
}

// GetAdminBanRequests returns users ranked by open reports against them.
func (s *ModerationService) GetAdminBanRequests(ctx context.Context, limit, offset int) ([]BanRequestRow, error) {
	type rawRow struct {
		ReportedUserID uint
		ReportCount    int64
		LatestReportAt time.Time
	}
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	var rows []rawRow
	if err := s.db.WithContext(ctx).
		Table("moderation_reports").
		Select("reported_user_id, COUNT(*) as report_count, MAX(created_at) as latest_report_at").
		Where("status = ? AND reported_user_id IS NOT NULL", models.ReportStatusOpen).
		Group("reported_user_id").
		Order("report_count DESC, latest_report_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	userIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.ReportedUserID)
	}
	usersByID := map[uint]models.User{}
	if len(userIDs) > 0 {
		var users []models.User
		if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		for _, user := range users {
			usersByID[user.ID] = user
		}
	}

	resp := make([]BanRequestRow, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, BanRequestRow{
			ReportedUserID: row.ReportedUserID,
			ReportCount:    row.ReportCount,
			LatestReportAt: row.LatestReportAt,
			User:           usersByID[row.ReportedUserID],
		})
	}
	return resp, nil
}

// GetAdminUserDetail loads a user with reports, blocks and subscription.
// Secondary lookups that fail are reported as warnings instead of errors.
func (s *ModerationService) GetAdminUserDetail(ctx context.Context, userID uint) (*AdminUserDetail, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Users.PopulateCounts(ctx, user); err != nil {
		slog.WarnContext(ctx, "failed to load counts for user", "user_id", userID, "err", err)
	}
	detail := &AdminUserDetail{
		User:           *user,
		Reports:        []models.ModerationReport{},
		BlocksGiven:    []models.UserBlock{},
		BlocksReceived: []models.UserBlock{},
	}

	if reports, err := s.repos.Moderation.ReportsAgainstUser(ctx, userID, 200); err != nil {
		slog.WarnContext(ctx, "failed to load reports for user", "user_id", userID, "err", err)
		detail.Warnings = append(detail.Warnings, "Partial data: Moderation reports could not be loaded.")
	} else {
		detail.Reports = reports
	}

	if err := s.db.WithContext(ctx).
		Where("blocker_id = ?", userID).
		Order("created_at DESC").
		Limit(200).
		Find(&detail.BlocksGiven).Error; err != nil {
		slog.WarnContext(ctx, "failed to load blocks given for user", "user_id", userID, "err", err)
		detail.Warnings = append(detail.Warnings, "Partial data: Outgoing blocks could not be loaded.")
	}

	if err := s.db.WithContext(ctx).
		Where("blocked_id = ?", userID).
		Order("created_at DESC").
		Limit(200).
		Find(&detail.BlocksReceived).Error; err != nil {
		slog.WarnContext(ctx, "failed to load blocks received for user", "user_id", userID, "err", err)
		detail.Warnings = append(detail.Warnings, "Partial data: Incoming blocks could not be loaded.")
	}

	if sub, err := s.repos.Subscriptions.GetByUserID(ctx, userID); err != nil {
		slog.WarnContext(ctx, "failed to load subscription for user", "user_id", userID, "err", err)
		detail.Warnings = append(detail.Warnings, "Partial data: Subscription could not be loaded.")
	} else {
		detail.Subscription = sub
	}

	return detail, nil
}
