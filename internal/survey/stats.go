package survey

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/scale"
	"gorm.io/gorm"
)

// FlowStat accumulates normalized answers for one flow.
type FlowStat struct {
	Sum   float64
	Count int
}

func (f *FlowStat) add(v float64) {
	f.Sum += v
	f.Count++
}

// Average returns the mean, or nil when the flow has no observations.
func (f FlowStat) Average() *float64 {
	if f.Count == 0 {
		return nil
	}
	avg := f.Sum / float64(f.Count)
	return &avg
}

// Stats holds one target's survey statistics by rating flow.
type Stats struct {
	Student    FlowStat
	Management FlowStat
	Self       FlowStat
}

// answerRow is one scale answer joined to its task.
type answerRow struct {
	QuestionID string
	Value      string
	RaterRole  models.Role
	TargetType models.TargetType
	TargetID   string
}

// FlowStats reduces every scale answer in the cycle to per-target
// statistics. Each answer is normalized to 0–100 first. Answers to
// questions with a degenerate range are skipped.
func FlowStats(db *gorm.DB, cycleID string) (map[string]*Stats, error) {
	var questions []models.Question
	if err := db.Where("type = ?", models.QuestionScale).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("survey: load questions: %w", err)
	}
	byID := make(map[string]models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var rows []answerRow
	err := db.Table("answers").
		Select("answers.question_id, answers.value, tasks.rater_role, tasks.target_type, tasks.target_id").
		Joins("JOIN submissions ON submissions.id = answers.submission_id").
		Joins("JOIN tasks ON tasks.id = submissions.task_id").
		Where("tasks.cycle_id = ?", cycleID).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("survey: load answers for %s: %w", cycleID, err)
	}

	stats := make(map[string]*Stats)
	for _, r := range rows {
		q, ok := byID[r.QuestionID]
		if !ok {
			continue
		}
		raw, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
		if err != nil {
			continue
		}
		lo, hi := scale.QuestionBounds(q.ScaleMin, q.ScaleMax)
		v, err := scale.Normalize(raw, lo, hi)
		if err != nil {
			if errors.Is(err, scale.ErrDegenerateScale) {
				log.Printf("survey: skipping answer to question %s: %v", q.ID, err)
				continue
			}
			return nil, err
		}

		s := stats[r.TargetID]
		if s == nil {
			s = &Stats{}
			stats[r.TargetID] = s
		}
		switch (models.Task{RaterRole: r.RaterRole, TargetType: r.TargetType}).Flow() {
		case models.FlowStudentTeacher:
			s.Student.add(v)
		case models.FlowManagementTeacher:
			s.Management.add(v)
		case models.FlowTeacherSelf:
			s.Self.add(v)
		}
	}
	return stats, nil
}
