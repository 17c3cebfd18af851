package score

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/survey"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the cycle or teacher does not exist.
var ErrNotFound = errors.New("score: not found")

// Collect computes the breakdown for one teacher in a cycle.
func Collect(db *gorm.DB, cycleID, teacherID string) (*Breakdown, error) {
	var teacher models.Teacher
	if err := db.Where("id = ?", teacherID).First(&teacher).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: teacher %s", ErrNotFound, teacherID)
		}
		return nil, fmt.Errorf("score: get teacher %s: %w", teacherID, err)
	}
	all, err := collect(db, cycleID, []models.Teacher{teacher})
	if err != nil {
		return nil, err
	}
	return &all[0], nil
}

// CollectAll computes breakdowns for every teacher in the cycle, or only
// those belonging to branchID when it is set. Results are sorted by total,
// highest first.
func CollectAll(db *gorm.DB, cycleID, branchID string) ([]Breakdown, error) {
	var teachers []models.Teacher
	if err := db.Order("id ASC").Find(&teachers).Error; err != nil {
		return nil, fmt.Errorf("score: list teachers: %w", err)
	}
	if branchID != "" {
		kept := teachers[:0]
		for _, t := range teachers {
			if t.InBranch(branchID) {
				kept = append(kept, t)
			}
		}
		teachers = kept
	}
	out, err := collect(db, cycleID, teachers)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out, nil
}

func collect(db *gorm.DB, cycleID string, teachers []models.Teacher) ([]Breakdown, error) {
	var cycle models.Cycle
	if err := db.Where("id = ?", cycleID).First(&cycle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cycle %s", ErrNotFound, cycleID)
		}
		return nil, fmt.Errorf("score: get cycle %s: %w", cycleID, err)
	}

	stats, err := survey.FlowStats(db, cycleID)
	if err != nil {
		return nil, err
	}

	var assignments []models.TeachingAssignment
	if err := db.Where("year = ?", cycle.Year).Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("score: load teaching assignments: %w", err)
	}
	var biqRows []models.BiqClassResult
	if err := db.Where("cycle_id = ?", cycleID).Find(&biqRows).Error; err != nil {
		return nil, fmt.Errorf("score: load biq results: %w", err)
	}
	var exams []models.PkpdExamResult
	if err := db.Where("cycle_id = ?", cycleID).Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("score: load exam results: %w", err)
	}
	var portfolios []models.PkpdPortfolio
	if err := db.Where("cycle_id = ?", cycleID).Find(&portfolios).Error; err != nil {
		return nil, fmt.Errorf("score: load portfolios: %w", err)
	}
	var bonuses []struct {
		TeacherID string
		Total     float64
	}
	if err := db.Model(&models.PkpdAchievement{}).
		Select("teacher_id, SUM(points) AS total").
		Where("cycle_id = ?", cycleID).
		Group("teacher_id").
		Scan(&bonuses).Error; err != nil {
		return nil, fmt.Errorf("score: sum achievements: %w", err)
	}

	type classKey struct{ branch, group, subject string }
	biqByClass := make(map[classKey]float64, len(biqRows))
	for _, r := range biqRows {
		biqByClass[classKey{r.BranchID, r.GroupID, r.SubjectID}] = r.Score
	}
	biqByTeacher := make(map[string][]float64)
	for _, a := range assignments {
		if v, ok := biqByClass[classKey{a.BranchID, a.GroupID, a.SubjectID}]; ok {
			biqByTeacher[a.TeacherID] = append(biqByTeacher[a.TeacherID], v)
		}
	}
	examByTeacher := make(map[string]float64, len(exams))
	for _, e := range exams {
		examByTeacher[e.TeacherID] = e.Score
	}
	portfolioByTeacher := make(map[string]models.PkpdPortfolio, len(portfolios))
	for _, p := range portfolios {
		portfolioByTeacher[p.TeacherID] = p
	}
	bonusByTeacher := make(map[string]float64, len(bonuses))
	for _, b := range bonuses {
		bonusByTeacher[b.TeacherID] = b.Total
	}

	out := make([]Breakdown, 0, len(teachers))
	for _, t := range teachers {
		in := Inputs{Category: t.Category, BonusSum: bonusByTeacher[t.ID]}
		if s := stats[t.ID]; s != nil {
			in.StudentAvg = s.Student.Average()
			in.ManagerAvg = s.Management.Average()
			in.SelfAvg = s.Self.Average()
		}
		if scores := biqByTeacher[t.ID]; len(scores) > 0 {
			in.BiqAvg = mean(scores)
		}
		if v, ok := examByTeacher[t.ID]; ok {
			in.Exam = &v
		}
		if p, ok := portfolioByTeacher[t.ID]; ok {
			in.Portfolio = &Portfolio{
				Education:  p.EducationScore,
				Attendance: p.AttendanceScore,
				Training:   p.TrainingScore,
				Olympiad:   p.OlympiadScore,
				Events:     p.EventsScore,
			}
		}
		b := Aggregate(in)
		b.TeacherID, b.Name = t.ID, t.Name
		out = append(out, b)
	}
	return out, nil
}

func mean(values []float64) *float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	return &m
}
