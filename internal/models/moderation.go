package models

import "time"

// ReportStatus is the moderation lifecycle of a report.
type ReportStatus string

const (
	ReportStatusOpen      ReportStatus = "open"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

// Report target types.
const (
	ReportTargetPost    = "post"
	ReportTargetComment = "comment"
	ReportTargetUser    = "user"
	ReportTargetPlace   = "place"
)

// ValidReportTarget reports whether t can be reported.
func ValidReportTarget(t string) bool {
	switch t {
	case ReportTargetPost, ReportTargetComment, ReportTargetUser, ReportTargetPlace:
		return true
	}
	return false
}

// ReportReason is why a user flagged content.
type ReportReason string

const (
	ReasonSpam           ReportReason = "spam"
	ReasonHarassment     ReportReason = "harassment"
	ReasonHate           ReportReason = "hate"
	ReasonMisinformation ReportReason = "misinformation"
	ReasonNonVegan       ReportReason = "non_vegan"
	ReasonOther          ReportReason = "other"
)

// Valid reports whether r is a known reason.
func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonHarassment, ReasonHate, ReasonMisinformation, ReasonNonVegan, ReasonOther:
		return true
	}
	return false
}

// ModerationAction is the consequence an admin applies when resolving a report.
type ModerationAction string

const (
	ActionNone          ModerationAction = "none"
	ActionDeleteContent ModerationAction = "delete_content"
	ActionBanUser       ModerationAction = "ban_user"
)

// ModerationReport is a user-submitted report against content or a user.
type ModerationReport struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	ReporterID     uint             `gorm:"not null;index" json:"reporter_id"`
	Reporter       *User            `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	TargetType     string           `gorm:"size:20;not null;index:idx_report_target" json:"target_type"`
	TargetID       uint             `gorm:"not null;index:idx_report_target" json:"target_id"`
	ReportedUserID *uint            `gorm:"index" json:"reported_user_id,omitempty"`
	Reason         ReportReason     `gorm:"size:30;not null" json:"reason"`
	Details        string           `gorm:"size:1000" json:"details,omitempty"`
	Status         ReportStatus     `gorm:"size:20;not null;default:open;index" json:"status"`
	Action         ModerationAction `gorm:"size:20" json:"action,omitempty"`
	ResolutionNote string           `gorm:"size:1000" json:"resolution_note,omitempty"`
	ResolvedBy     *uint            `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// UserBlock hides two users from each other and prevents interaction.
type UserBlock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_block_pair" json:"blocker_id"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_block_pair;index" json:"blocked_id"`
	Blocked   *User     `gorm:"foreignKey:BlockedID" json:"blocked,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMute hides a user's posts from the muter's feed without telling them.
type UserMute struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MuterID   uint      `gorm:"not null;uniqueIndex:idx_mute_pair" json:"muter_id"`
	MutedID   uint      `gorm:"not null;uniqueIndex:idx_mute_pair;index" json:"muted_id"`
	Muted     *User     `gorm:"foreignKey:MutedID" json:"muted,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
