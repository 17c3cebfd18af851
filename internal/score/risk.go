package score

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/survey"
	"gorm.io/gorm"
)

// RiskEntry is one teacher whose student survey average fell below the
// cycle's risk threshold.
type RiskEntry struct {
	TeacherID  string  `json:"teacher_id"`
	Name       string  `json:"name"`
	StudentAvg float64 `json:"student_avg"`
	Answers    int     `json:"answers"`
}

// RiskReport lists at-risk teachers for a cycle. Threshold is the cycle's
// threshold_y on the 0–100 scale; ObserveMonths is threshold_p, the length
// of the observation plan attached to each flagged teacher.
type RiskReport struct {
	CycleID       string      `json:"cycle_id"`
	Threshold     float64     `json:"threshold"`
	ObserveMonths float64     `json:"observe_months"`
	Teachers      []RiskEntry `json:"teachers"`
}

// Risk flags teachers whose student survey average is below the cycle's
// threshold_y. Teachers without student answers are never flagged. A zero
// threshold disables flagging. branchID restricts the report like CollectAll.
// Entries are sorted by average, lowest first.
func Risk(db *gorm.DB, cycleID, branchID string) (*RiskReport, error) {
	var cycle models.Cycle
	if err := db.Where("id = ?", cycleID).First(&cycle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cycle %s", ErrNotFound, cycleID)
		}
		return nil, fmt.Errorf("score: get cycle %s: %w", cycleID, err)
	}
	report := &RiskReport{
		CycleID:       cycle.ID,
		Threshold:     cycle.ThresholdY,
		ObserveMonths: cycle.ThresholdP,
		Teachers:      []RiskEntry{},
	}
	if cycle.ThresholdY <= 0 {
		return report, nil
	}

	stats, err := survey.FlowStats(db, cycleID)
	if err != nil {
		return nil, err
	}
	var teachers []models.Teacher
	if err := db.Order("id ASC").Find(&teachers).Error; err != nil {
		return nil, fmt.Errorf("score: list teachers: %w", err)
	}
	for _, t := range teachers {
		if branchID != "" && !t.InBranch(branchID) {
			continue
		}
		s := stats[t.ID]
		if s == nil {
			continue
		}
		avg := s.Student.Average()
		if avg == nil || *avg >= cycle.ThresholdY {
			continue
		}
		report.Teachers = append(report.Teachers, RiskEntry{
			TeacherID:  t.ID,
			Name:       t.Name,
			StudentAvg: *avg,
			Answers:    s.Student.Count,
		})
	}
	sort.SliceStable(report.Teachers, func(i, j int) bool {
		return report.Teachers[i].StudentAvg < report.Teachers[j].StudentAvg
	})
	return report, nil
}
