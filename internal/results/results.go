// Package results records the non-survey inputs of a teacher's score: class
// test results, exam scores, portfolio sub-scores and bonus achievements.
// Every entry is validated before anything is written.
package results

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/policy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a row to delete or a teacher does not exist.
var ErrNotFound = errors.New("results: not found")

// BiqEntry is one class-level test result.
type BiqEntry struct {
	CycleID   string  `json:"cycle_id" validate:"required"`
	BranchID  string  `json:"branch_id" validate:"required"`
	GroupID   string  `json:"group_id" validate:"required"`
	SubjectID string  `json:"subject_id" validate:"required"`
	Score     float64 `json:"score" validate:"gte=0,lte=100"`
}

// SaveBiq upserts a class result keyed by cycle, branch, group and subject.
func SaveBiq(db *gorm.DB, e BiqEntry) (*models.BiqClassResult, error) {
	if err := Check(e); err != nil {
		return nil, err
	}
	row := models.BiqClassResult{
		CycleID:   e.CycleID,
		BranchID:  e.BranchID,
		GroupID:   e.GroupID,
		SubjectID: e.SubjectID,
		Score:     e.Score,
		UpdatedAt: time.Now(),
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cycle_id"}, {Name: "branch_id"}, {Name: "group_id"}, {Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("results: save biq %s/%s/%s: %w", e.CycleID, e.GroupID, e.SubjectID, result.Error)
	}
	return &row, nil
}

// DeleteBiq removes a class result.
func DeleteBiq(db *gorm.DB, cycleID, branchID, groupID, subjectID string) error {
	result := db.Where("cycle_id = ? AND branch_id = ? AND group_id = ? AND subject_id = ?",
		cycleID, branchID, groupID, subjectID).Delete(&models.BiqClassResult{})
	if result.Error != nil {
		return fmt.Errorf("results: delete biq: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: biq %s/%s/%s", ErrNotFound, cycleID, groupID, subjectID)
	}
	return nil
}

// ExamEntry is a teacher's exam score. A nil Score is a blank entry and
// deletes any stored score.
type ExamEntry struct {
	CycleID   string   `json:"cycle_id" validate:"required"`
	BranchID  string   `json:"branch_id" validate:"required"`
	TeacherID string   `json:"teacher_id" validate:"required"`
	Score     *float64 `json:"score" validate:"omitempty,gte=0,lte=30"`
}

// SaveExam upserts an exam score, or deletes it when the entry is blank.
// The returned row is nil after a delete.
func SaveExam(db *gorm.DB, e ExamEntry) (*models.PkpdExamResult, error) {
	if err := Check(e); err != nil {
		return nil, err
	}
	if e.Score == nil {
		if err := DeleteExam(db, e.CycleID, e.TeacherID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, nil
	}
	row := models.PkpdExamResult{
		CycleID:   e.CycleID,
		TeacherID: e.TeacherID,
		BranchID:  e.BranchID,
		Score:     *e.Score,
		UpdatedAt: time.Now(),
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cycle_id"}, {Name: "teacher_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"branch_id", "score", "updated_at"}),
	}).Create(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("results: save exam %s/%s: %w", e.CycleID, e.TeacherID, result.Error)
	}
	return &row, nil
}

// DeleteExam removes a teacher's exam score.
func DeleteExam(db *gorm.DB, cycleID, teacherID string) error {
	result := db.Where("cycle_id = ? AND teacher_id = ?", cycleID, teacherID).Delete(&models.PkpdExamResult{})
	if result.Error != nil {
		return fmt.Errorf("results: delete exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: exam %s/%s", ErrNotFound, cycleID, teacherID)
	}
	return nil
}

// PortfolioEntry holds a teacher's portfolio sub-scores. Nil sub-scores
// were not entered.
type PortfolioEntry struct {
	CycleID    string   `json:"cycle_id" validate:"required"`
	BranchID   string   `json:"branch_id" validate:"required"`
	TeacherID  string   `json:"teacher_id" validate:"required"`
	Education  *float64 `json:"education_score" validate:"omitempty,gte=0"`
	Attendance *float64 `json:"attendance_score" validate:"omitempty,gte=0"`
	Training   *float64 `json:"training_score" validate:"omitempty,gte=0"`
	Olympiad   *float64 `json:"olympiad_score" validate:"omitempty,gte=0"`
	Events     *float64 `json:"events_score" validate:"omitempty,gte=0"`
	Note       string   `json:"note"`
}

// SavePortfolio validates each sub-score against the teacher's category
// caps and upserts the portfolio.
func SavePortfolio(db *gorm.DB, e PortfolioEntry) (*models.PkpdPortfolio, error) {
	if err := Check(e); err != nil {
		return nil, err
	}

	var teacher models.Teacher
	if err := db.Where("id = ?", e.TeacherID).First(&teacher).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: teacher %s", ErrNotFound, e.TeacherID)
		}
		return nil, fmt.Errorf("results: get teacher %s: %w", e.TeacherID, err)
	}
	p := policy.For(teacher.Category)
	if err := checkCaps(e, p); err != nil {
		return nil, err
	}

	row := models.PkpdPortfolio{
		CycleID:         e.CycleID,
		TeacherID:       e.TeacherID,
		BranchID:        e.BranchID,
		EducationScore:  e.Education,
		AttendanceScore: e.Attendance,
		TrainingScore:   e.Training,
		OlympiadScore:   e.Olympiad,
		EventsScore:     e.Events,
		Note:            strings.TrimSpace(e.Note),
		UpdatedAt:       time.Now(),
	}
	result := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cycle_id"}, {Name: "teacher_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"branch_id", "education_score", "attendance_score", "training_score",
			"olympiad_score", "events_score", "note", "updated_at",
		}),
	}).Create(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("results: save portfolio %s/%s: %w", e.CycleID, e.TeacherID, result.Error)
	}
	return &row, nil
}

func checkCaps(e PortfolioEntry, p policy.Policy) error {
	fields := []struct {
		name  string
		value *float64
		cap   float64
	}{
		{"education_score", e.Education, p.Caps.Education},
		{"attendance_score", e.Attendance, p.Caps.Attendance},
		{"training_score", e.Training, p.Caps.Training},
		{"olympiad_score", e.Olympiad, p.Caps.Olympiad},
		{"events_score", e.Events, p.Caps.Events},
	}
	for _, f := range fields {
		if f.value != nil && *f.value > f.cap {
			return &ValidationError{
				Field:   f.name,
				Message: fmt.Sprintf("%s must be %g or less for category %s", f.name, f.cap, p.Category),
			}
		}
	}
	return nil
}

// AchievementEntry is one bonus row.
type AchievementEntry struct {
	CycleID   string  `json:"cycle_id" validate:"required"`
	BranchID  string  `json:"branch_id" validate:"required"`
	TeacherID string  `json:"teacher_id" validate:"required"`
	Type      string  `json:"type" validate:"notblank"`
	Points    float64 `json:"points" validate:"gte=0,lte=10"`
	Note      string  `json:"note"`
}

// AddAchievement appends a bonus row. Rows are never merged.
func AddAchievement(db *gorm.DB, e AchievementEntry) (*models.PkpdAchievement, error) {
	if err := Check(e); err != nil {
		return nil, err
	}
	row := models.PkpdAchievement{
		ID:        uuid.NewString(),
		CycleID:   e.CycleID,
		BranchID:  e.BranchID,
		TeacherID: e.TeacherID,
		Type:      strings.TrimSpace(e.Type),
		Points:    e.Points,
		Note:      strings.TrimSpace(e.Note),
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("results: add achievement for %s: %w", e.TeacherID, err)
	}
	return &row, nil
}

// DeleteAchievement removes one bonus row by id.
func DeleteAchievement(db *gorm.DB, id string) error {
	result := db.Where("id = ?", id).Delete(&models.PkpdAchievement{})
	if result.Error != nil {
		return fmt.Errorf("results: delete achievement %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: achievement %s", ErrNotFound, id)
	}
	return nil
}

// ListAchievements returns a teacher's bonus rows in a cycle, oldest first.
func ListAchievements(db *gorm.DB, cycleID, teacherID string) ([]models.PkpdAchievement, error) {
	var rows []models.PkpdAchievement
	if err := db.Where("cycle_id = ? AND teacher_id = ?", cycleID, teacherID).
		Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("results: list achievements: %w", err)
	}
	return rows, nil
}
