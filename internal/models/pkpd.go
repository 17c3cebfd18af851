package models

import (
	"time"

	"gorm.io/datatypes"
)

// BiqClassResult is a class-level academic test result for one group and
// subject in a cycle.
type BiqClassResult struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CycleID   string    `gorm:"size:64;not null;uniqueIndex:idx_biq_key" json:"cycle_id"`
	BranchID  string    `gorm:"size:64;not null;uniqueIndex:idx_biq_key" json:"branch_id"`
	GroupID   string    `gorm:"size:64;not null;uniqueIndex:idx_biq_key" json:"group_id"`
	SubjectID string    `gorm:"size:64;not null;uniqueIndex:idx_biq_key" json:"subject_id"`
	Score     float64   `gorm:"not null" json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PkpdExamResult is a teacher's exam score (0–30) in a cycle.
type PkpdExamResult struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CycleID   string    `gorm:"size:64;not null;uniqueIndex:idx_exam_key" json:"cycle_id"`
	TeacherID string    `gorm:"size:64;not null;uniqueIndex:idx_exam_key" json:"teacher_id"`
	BranchID  string    `gorm:"size:64;not null;index" json:"branch_id"`
	Score     float64   `gorm:"not null" json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PkpdPortfolio holds a teacher's professional-development sub-scores.
// A nil sub-score was never entered.
type PkpdPortfolio struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CycleID         string    `gorm:"size:64;not null;uniqueIndex:idx_portfolio_key" json:"cycle_id"`
	TeacherID       string    `gorm:"size:64;not null;uniqueIndex:idx_portfolio_key" json:"teacher_id"`
	BranchID        string    `gorm:"size:64;not null;index" json:"branch_id"`
	EducationScore  *float64  `json:"education_score"`
	AttendanceScore *float64  `json:"attendance_score"`
	TrainingScore   *float64  `json:"training_score"`
	OlympiadScore   *float64  `json:"olympiad_score"`
	EventsScore     *float64  `json:"events_score"`
	Note            string    `gorm:"type:text" json:"note"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PkpdAchievement is one additive bonus row. Multiple rows per teacher are
// allowed.
type PkpdAchievement struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CycleID   string    `gorm:"size:64;not null;index" json:"cycle_id"`
	BranchID  string    `gorm:"size:64;not null;index" json:"branch_id"`
	TeacherID string    `gorm:"size:64;not null;index" json:"teacher_id"`
	Type      string    `gorm:"size:128;not null" json:"type"`
	Points    float64   `gorm:"not null" json:"points"`
	Note      string    `gorm:"type:text" json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// DecisionStatus is the administrative ruling on a teacher's result.
type DecisionStatus string

const (
	DecisionPending  DecisionStatus = "PENDING"
	DecisionApproved DecisionStatus = "APPROVED"
	DecisionRejected DecisionStatus = "REJECTED"
)

// PkpdDecision is a manually entered ruling with a frozen score snapshot.
type PkpdDecision struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CycleID    string         `gorm:"size:64;not null;uniqueIndex:idx_decision_key" json:"cycle_id"`
	TeacherID  string         `gorm:"size:64;not null;uniqueIndex:idx_decision_key" json:"teacher_id"`
	BranchID   string         `gorm:"size:64;not null;index" json:"branch_id"`
	Status     DecisionStatus `gorm:"size:16;default:PENDING" json:"status"`
	Category   string         `gorm:"size:64" json:"category"`
	TotalScore *float64       `json:"total_score"`
	Breakdown  datatypes.JSON `gorm:"type:json" json:"breakdown"`
	Note       string         `gorm:"type:text" json:"note"`
	DecidedBy  string         `gorm:"size:64" json:"decided_by"`
	DecidedAt  time.Time      `json:"decided_at"`
}
