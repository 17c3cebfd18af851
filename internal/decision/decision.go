// Package decision stores administrative rulings on a teacher's result
// together with a frozen snapshot of the score at the time of the ruling.
package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/score"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound      = errors.New("decision: not found")
	ErrInvalidStatus = errors.New("decision: invalid status")
)

var validStatuses = map[models.DecisionStatus]bool{
	models.DecisionPending:  true,
	models.DecisionApproved: true,
	models.DecisionRejected: true,
}

// SaveOpts holds the fields for recording a decision.
type SaveOpts struct {
	CycleID   string
	TeacherID string
	BranchID  string // defaults to the teacher's primary branch
	Status    models.DecisionStatus
	Note      string
	DecidedBy string
}

// Save computes the teacher's current score and upserts the decision with
// that score frozen into it. Later changes to inputs do not alter a saved
// decision until it is saved again.
func Save(db *gorm.DB, opts SaveOpts) (*models.PkpdDecision, error) {
	status := models.DecisionStatus(strings.ToUpper(string(opts.Status)))
	if status == "" {
		status = models.DecisionPending
	}
	if !validStatuses[status] {
		return nil, fmt.Errorf("%w: %q (PENDING, APPROVED, REJECTED)", ErrInvalidStatus, opts.Status)
	}

	b, err := score.Collect(db, opts.CycleID, opts.TeacherID)
	if err != nil {
		if errors.Is(err, score.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, fmt.Errorf("decision: score %s: %w", opts.TeacherID, err)
	}
	snapshot, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("decision: marshal breakdown: %w", err)
	}

	branchID := opts.BranchID
	if branchID == "" {
		var teacher models.Teacher
		if err := db.Select("branch_id").Where("id = ?", opts.TeacherID).First(&teacher).Error; err == nil && teacher.BranchID != nil {
			branchID = *teacher.BranchID
		}
	}

	total := b.Total
	row := models.PkpdDecision{
		CycleID:    opts.CycleID,
		TeacherID:  opts.TeacherID,
		BranchID:   branchID,
		Status:     status,
		Category:   b.Bucket,
		TotalScore: &total,
		Breakdown:  datatypes.JSON(snapshot),
		Note:       strings.TrimSpace(opts.Note),
		DecidedBy:  opts.DecidedBy,
		DecidedAt:  time.Now(),
	}
	result := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cycle_id"}, {Name: "teacher_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"branch_id", "status", "category", "total_score", "breakdown", "note", "decided_by", "decided_at",
		}),
	}).Create(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("decision: save %s/%s: %w", opts.CycleID, opts.TeacherID, result.Error)
	}
	return &row, nil
}

// Get returns the decision for a teacher in a cycle.
func Get(db *gorm.DB, cycleID, teacherID string) (*models.PkpdDecision, error) {
	var d models.PkpdDecision
	if err := db.Where("cycle_id = ? AND teacher_id = ?", cycleID, teacherID).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, cycleID, teacherID)
		}
		return nil, fmt.Errorf("decision: get %s/%s: %w", cycleID, teacherID, err)
	}
	return &d, nil
}

// ListFilters narrows List. Empty fields are ignored.
type ListFilters struct {
	BranchID string
	Status   models.DecisionStatus
}

// List returns a cycle's decisions ordered by teacher.
func List(db *gorm.DB, cycleID string, filters ListFilters) ([]models.PkpdDecision, error) {
	q := db.Where("cycle_id = ?", cycleID)
	if filters.BranchID != "" {
		q = q.Where("branch_id = ?", filters.BranchID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	var out []models.PkpdDecision
	if err := q.Order("teacher_id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("decision: list %s: %w", cycleID, err)
	}
	return out, nil
}

// Snapshot decodes the breakdown frozen into d.
func Snapshot(d *models.PkpdDecision) (*score.Breakdown, error) {
	var b score.Breakdown
	if len(d.Breakdown) == 0 {
		return nil, fmt.Errorf("decision: %s/%s has no snapshot", d.CycleID, d.TeacherID)
	}
	if err := json.Unmarshal(d.Breakdown, &b); err != nil {
		return nil, fmt.Errorf("decision: decode snapshot: %w", err)
	}
	return &b, nil
}
