// Package survey records a rater's answers to a task and reduces answers to
// per-flow statistics for scoring.
package survey

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/scale"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("survey: not found")
	ErrNotRater    = errors.New("survey: task belongs to another rater")
	ErrTaskDone    = errors.New("survey: task already submitted")
	ErrCycleClosed = errors.New("survey: cycle is not accepting submissions")
)

// AnswerError describes an invalid or missing answer.
type AnswerError struct {
	QuestionID string
	Reason     string
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("survey: question %s: %s", e.QuestionID, e.Reason)
}

// Submit stores answers for taskID and marks the task DONE. The cycle must
// be open at now, the task must belong to raterID and still be open, and
// every required question the task asks must be answered.
func Submit(db *gorm.DB, taskID, raterID string, answers map[string]string, now time.Time) (*models.Submission, error) {
	var task models.Task
	if err := db.Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
		}
		return nil, fmt.Errorf("survey: get task %s: %w", taskID, err)
	}
	if task.RaterID != raterID {
		return nil, fmt.Errorf("%w: %s", ErrNotRater, taskID)
	}
	if task.Status == models.TaskDone {
		return nil, fmt.Errorf("%w: %s", ErrTaskDone, taskID)
	}

	var cycle models.Cycle
	if err := db.Where("id = ?", task.CycleID).First(&cycle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cycle %s", ErrNotFound, task.CycleID)
		}
		return nil, fmt.Errorf("survey: get cycle %s: %w", task.CycleID, err)
	}
	if !cycle.AcceptsAt(now) {
		return nil, fmt.Errorf("%w: %s is %s", ErrCycleClosed, cycle.ID, cycle.Status)
	}

	questions, err := Questions(db, task.CycleID, task.Flow())
	if err != nil {
		return nil, err
	}
	if err := validateAnswers(questions, answers); err != nil {
		return nil, err
	}

	sub := models.Submission{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		CycleID:   task.CycleID,
		RaterID:   task.RaterID,
		TargetID:  task.TargetID,
		BranchID:  task.BranchID,
		GroupID:   task.GroupID,
		SubjectID: task.SubjectID,
		CreatedAt: now,
	}
	for _, q := range questions {
		v, ok := answers[q.ID]
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		sub.Answers = append(sub.Answers, models.Answer{
			ID:           uuid.NewString(),
			SubmissionID: sub.ID,
			QuestionID:   q.ID,
			Value:        strings.TrimSpace(v),
			CreatedAt:    now,
		})
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", task.ID, models.TaskOpen).
			Updates(map[string]interface{}{"status": models.TaskDone, "submitted_at": now})
		if result.Error != nil {
			return fmt.Errorf("survey: close task %s: %w", task.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrTaskDone, task.ID)
		}
		if err := tx.Create(&sub).Error; err != nil {
			return fmt.Errorf("survey: create submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Questions returns what flow asks in cycleID: the cycle's question set in
// its stored order, or every question of the flow by id when the cycle has
// no set for it. Ids in a set whose question was since removed are skipped.
func Questions(db *gorm.DB, cycleID string, flow models.Flow) ([]models.Question, error) {
	var set models.QuestionSet
	err := db.Where("cycle_id = ? AND flow = ?", cycleID, flow).First(&set).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var questions []models.Question
		if err := db.Where("flow = ?", flow).Order("id ASC").Find(&questions).Error; err != nil {
			return nil, fmt.Errorf("survey: load questions: %w", err)
		}
		return questions, nil
	}
	if err != nil {
		return nil, fmt.Errorf("survey: get question set %s/%s: %w", cycleID, flow, err)
	}
	if len(set.QuestionIDs) == 0 {
		return []models.Question{}, nil
	}

	var found []models.Question
	if err := db.Where("id IN ?", []string(set.QuestionIDs)).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("survey: load questions: %w", err)
	}
	byID := make(map[string]models.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	questions := make([]models.Question, 0, len(set.QuestionIDs))
	for _, id := range set.QuestionIDs {
		if q, ok := byID[id]; ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// validateAnswers checks answers against the flow's questions.
func validateAnswers(questions []models.Question, answers map[string]string) error {
	known := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		known[q.ID] = q
	}
	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return &AnswerError{QuestionID: id, Reason: "not asked by this task"}
		}
	}

	for _, q := range questions {
		v := strings.TrimSpace(answers[q.ID])
		if v == "" {
			if q.Required {
				return &AnswerError{QuestionID: q.ID, Reason: "answer is required"}
			}
			continue
		}
		switch q.Type {
		case models.QuestionScale:
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return &AnswerError{QuestionID: q.ID, Reason: fmt.Sprintf("%q is not a number", v)}
			}
			lo, hi := scale.QuestionBounds(q.ScaleMin, q.ScaleMax)
			if n < lo || n > hi {
				return &AnswerError{QuestionID: q.ID, Reason: fmt.Sprintf("%g is outside %g–%g", n, lo, hi)}
			}
		case models.QuestionChoice:
			if len(q.Options) > 0 && !contains(q.Options, v) {
				return &AnswerError{QuestionID: q.ID, Reason: fmt.Sprintf("%q is not one of %v", v, []string(q.Options))}
			}
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
