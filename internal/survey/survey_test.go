package survey

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/tally/internal/db"
	"github.com/zulandar/tally/internal/models"
	"gorm.io/gorm"
)

var (
	start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end   = start.AddDate(0, 0, 30)
	now   = start.AddDate(0, 0, 5)
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return gormDB
}

func f(v float64) *float64 { return &v }

func create(t *testing.T, gormDB *gorm.DB, rows ...interface{}) {
	t.Helper()
	for _, r := range rows {
		if err := gormDB.Create(r).Error; err != nil {
			t.Fatalf("create %T: %v", r, err)
		}
	}
}

// fixture seeds an open cycle, two student tasks and a manager task for
// teacher T, and the questions for those flows.
func fixture(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB := testDB(t)
	create(t, gormDB,
		&models.Cycle{ID: "c", Year: 2024, Status: models.CycleOpen, StartAt: &start, EndAt: &end, BranchIDs: []string{}},
		&models.Task{ID: "task-s1", CycleID: "c", RaterID: "s1", RaterRole: models.RoleStudent, TargetType: models.TargetTeacher, TargetID: "T", BranchID: "B", Status: models.TaskOpen},
		&models.Task{ID: "task-s2", CycleID: "c", RaterID: "s2", RaterRole: models.RoleStudent, TargetType: models.TargetTeacher, TargetID: "T", BranchID: "B", Status: models.TaskOpen},
		&models.Task{ID: "task-m", CycleID: "c", RaterID: "m", RaterRole: models.RoleManager, TargetType: models.TargetTeacher, TargetID: "T", BranchID: "B", Status: models.TaskOpen},
		&models.Question{ID: "q-clarity", Text: "Explains clearly", Type: models.QuestionScale, Flow: models.FlowStudentTeacher, Required: true, Options: []string{}},
		&models.Question{ID: "q-five", Text: "Five point", Type: models.QuestionScale, Flow: models.FlowStudentTeacher, ScaleMin: f(1), ScaleMax: f(5), Options: []string{}},
		&models.Question{ID: "q-comment", Text: "Comment", Type: models.QuestionText, Flow: models.FlowStudentTeacher, Options: []string{}},
		&models.Question{ID: "q-pace", Text: "Pace", Type: models.QuestionChoice, Flow: models.FlowStudentTeacher, Options: []string{"slow", "ok", "fast"}},
		&models.Question{ID: "q-mgr", Text: "Planning", Type: models.QuestionScale, Flow: models.FlowManagementTeacher, Required: true, Options: []string{}},
	)
	return gormDB
}

func TestSubmit_Success(t *testing.T) {
	gormDB := fixture(t)

	sub, err := Submit(gormDB, "task-s1", "s1", map[string]string{"q-clarity": "8", "q-comment": " good ", "q-pace": "ok"}, now)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.TaskID != "task-s1" || sub.TargetID != "T" {
		t.Errorf("submission = %+v", sub)
	}
	if len(sub.Answers) != 3 {
		t.Errorf("len(Answers) = %d, want 3", len(sub.Answers))
	}

	var task models.Task
	gormDB.First(&task, "id = ?", "task-s1")
	if task.Status != models.TaskDone {
		t.Errorf("task status = %q, want DONE", task.Status)
	}
	if task.SubmittedAt == nil {
		t.Error("SubmittedAt should be set")
	}

	var count int64
	gormDB.Model(&models.Answer{}).Where("submission_id = ?", sub.ID).Count(&count)
	if count != 3 {
		t.Errorf("stored answers = %d, want 3", count)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		taskID  string
		rater   string
		answers map[string]string
		at      time.Time
		wantErr error
	}{
		{"unknown task", "nope", "s1", map[string]string{"q-clarity": "5"}, now, ErrNotFound},
		{"other rater", "task-s1", "s2", map[string]string{"q-clarity": "5"}, now, ErrNotRater},
		{"before window", "task-s1", "s1", map[string]string{"q-clarity": "5"}, start.Add(-time.Hour), ErrCycleClosed},
		{"after window", "task-s1", "s1", map[string]string{"q-clarity": "5"}, end.Add(time.Hour), ErrCycleClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB := fixture(t)
			_, err := Submit(gormDB, tt.taskID, tt.rater, tt.answers, tt.at)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubmit_InvalidAnswers(t *testing.T) {
	tests := []struct {
		name     string
		answers  map[string]string
		question string
	}{
		{"required missing", map[string]string{"q-comment": "hi"}, "q-clarity"},
		{"not a number", map[string]string{"q-clarity": "great"}, "q-clarity"},
		{"above default range", map[string]string{"q-clarity": "11"}, "q-clarity"},
		{"above custom range", map[string]string{"q-clarity": "5", "q-five": "6"}, "q-five"},
		{"bad choice", map[string]string{"q-clarity": "5", "q-pace": "warp"}, "q-pace"},
		{"foreign question", map[string]string{"q-clarity": "5", "q-mgr": "5"}, "q-mgr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB := fixture(t)
			_, err := Submit(gormDB, "task-s1", "s1", tt.answers, now)
			var ae *AnswerError
			if !errors.As(err, &ae) {
				t.Fatalf("error = %v, want *AnswerError", err)
			}
			if ae.QuestionID != tt.question {
				t.Errorf("QuestionID = %q, want %q", ae.QuestionID, tt.question)
			}

			var task models.Task
			gormDB.First(&task, "id = ?", "task-s1")
			if task.Status != models.TaskOpen {
				t.Errorf("task status = %q, want OPEN after rejected submission", task.Status)
			}
		})
	}
}

func TestSubmit_Twice(t *testing.T) {
	gormDB := fixture(t)
	answers := map[string]string{"q-clarity": "7"}
	if _, err := Submit(gormDB, "task-s1", "s1", answers, now); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := Submit(gormDB, "task-s1", "s1", answers, now)
	if !errors.Is(err, ErrTaskDone) {
		t.Errorf("error = %v, want ErrTaskDone", err)
	}
}

func TestSubmit_DraftCycleRejected(t *testing.T) {
	gormDB := fixture(t)
	gormDB.Model(&models.Cycle{}).Where("id = ?", "c").Update("status", models.CycleDraft)

	_, err := Submit(gormDB, "task-s1", "s1", map[string]string{"q-clarity": "7"}, now)
	if !errors.Is(err, ErrCycleClosed) {
		t.Errorf("error = %v, want ErrCycleClosed", err)
	}
}

func TestSubmit_CycleQuestionSets(t *testing.T) {
	gormDB := fixture(t)
	create(t, gormDB,
		&models.Cycle{ID: "c2", Year: 2025, Status: models.CycleOpen, StartAt: &start, EndAt: &end, BranchIDs: []string{}},
		&models.Task{ID: "task-c2", CycleID: "c2", RaterID: "s1", RaterRole: models.RoleStudent, TargetType: models.TargetTeacher, TargetID: "T", BranchID: "B", Status: models.TaskOpen},
		&models.QuestionSet{CycleID: "c", Flow: models.FlowStudentTeacher, QuestionIDs: []string{"q-five", "q-comment"}},
		&models.QuestionSet{CycleID: "c2", Flow: models.FlowStudentTeacher, QuestionIDs: []string{"q-pace"}},
	)

	// q-clarity is required globally but not part of c's set.
	_, err := Submit(gormDB, "task-s1", "s1", map[string]string{"q-clarity": "5"}, now)
	var ae *AnswerError
	if !errors.As(err, &ae) || ae.QuestionID != "q-clarity" {
		t.Errorf("c: error = %v, want q-clarity not asked", err)
	}
	sub, err := Submit(gormDB, "task-s1", "s1", map[string]string{"q-five": "4"}, now)
	if err != nil {
		t.Fatalf("c: Submit: %v", err)
	}
	if len(sub.Answers) != 1 || sub.Answers[0].QuestionID != "q-five" {
		t.Errorf("c: answers = %+v, want q-five only", sub.Answers)
	}

	_, err = Submit(gormDB, "task-c2", "s1", map[string]string{"q-five": "4"}, now)
	if !errors.As(err, &ae) || ae.QuestionID != "q-five" {
		t.Errorf("c2: error = %v, want q-five not asked", err)
	}
	if _, err := Submit(gormDB, "task-c2", "s1", map[string]string{"q-pace": "fast"}, now); err != nil {
		t.Errorf("c2: Submit: %v", err)
	}
}

func TestQuestions(t *testing.T) {
	gormDB := fixture(t)
	create(t, gormDB,
		&models.QuestionSet{CycleID: "c", Flow: models.FlowStudentTeacher, QuestionIDs: []string{"q-pace", "gone", "q-clarity"}},
		&models.QuestionSet{CycleID: "c", Flow: models.FlowTeacherSelf, QuestionIDs: []string{}},
	)

	tests := []struct {
		name  string
		cycle string
		flow  models.Flow
		want  []string
	}{
		{"set order kept, missing skipped", "c", models.FlowStudentTeacher, []string{"q-pace", "q-clarity"}},
		{"empty set asks nothing", "c", models.FlowTeacherSelf, nil},
		{"no set falls back to flow", "c", models.FlowManagementTeacher, []string{"q-mgr"}},
		{"other cycle falls back", "other", models.FlowStudentTeacher, []string{"q-clarity", "q-comment", "q-five", "q-pace"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := Questions(gormDB, tt.cycle, tt.flow)
			if err != nil {
				t.Fatalf("Questions: %v", err)
			}
			var got []string
			for _, q := range qs {
				got = append(got, q.ID)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("questions = %v, want %v", got, tt.want)
			}
		})
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFlowStats(t *testing.T) {
	gormDB := fixture(t)
	mustSubmit := func(task, rater string, answers map[string]string) {
		t.Helper()
		if _, err := Submit(gormDB, task, rater, answers, now); err != nil {
			t.Fatalf("Submit %s: %v", task, err)
		}
	}
	// s1: 8 → 80, 5/5 → 100. s2: 6 → 60. manager: 7 → 70.
	mustSubmit("task-s1", "s1", map[string]string{"q-clarity": "8", "q-five": "5", "q-comment": "fine"})
	mustSubmit("task-s2", "s2", map[string]string{"q-clarity": "6"})
	mustSubmit("task-m", "m", map[string]string{"q-mgr": "7"})

	stats, err := FlowStats(gormDB, "c")
	if err != nil {
		t.Fatalf("FlowStats: %v", err)
	}
	s := stats["T"]
	if s == nil {
		t.Fatal("no stats for T")
	}
	if s.Student.Count != 3 {
		t.Errorf("Student.Count = %d, want 3", s.Student.Count)
	}
	if avg := s.Student.Average(); avg == nil || !approx(*avg, 80) {
		t.Errorf("Student.Average() = %v, want 80", avg)
	}
	if avg := s.Management.Average(); avg == nil || !approx(*avg, 70) {
		t.Errorf("Management.Average() = %v, want 70", avg)
	}
	if s.Self.Average() != nil {
		t.Errorf("Self.Average() = %v, want nil", *s.Self.Average())
	}
}

func TestFlowStats_SkipsDegenerateQuestions(t *testing.T) {
	gormDB := fixture(t)
	mustCreate := func(rows ...interface{}) { create(t, gormDB, rows...) }
	mustCreate(
		&models.Question{ID: "q-broken", Text: "Broken", Type: models.QuestionScale, Flow: models.FlowStudentTeacher, ScaleMin: f(5), ScaleMax: f(5), Options: []string{}},
		&models.Submission{ID: "sub", TaskID: "task-s1", CycleID: "c", RaterID: "s1", TargetID: "T"},
		&models.Answer{ID: "a1", SubmissionID: "sub", QuestionID: "q-broken", Value: "5"},
		&models.Answer{ID: "a2", SubmissionID: "sub", QuestionID: "q-clarity", Value: "9"},
	)

	stats, err := FlowStats(gormDB, "c")
	if err != nil {
		t.Fatalf("FlowStats: %v", err)
	}
	if got := stats["T"].Student.Count; got != 1 {
		t.Errorf("Student.Count = %d, want 1 (degenerate answer skipped)", got)
	}
}

func TestFlowStats_OtherCycleIgnored(t *testing.T) {
	gormDB := fixture(t)
	if _, err := Submit(gormDB, "task-s1", "s1", map[string]string{"q-clarity": "8"}, now); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	stats, err := FlowStats(gormDB, "other")
	if err != nil {
		t.Fatalf("FlowStats: %v", err)
	}
	if len(stats) != 0 {
		t.Errorf("len(stats) = %d, want 0", len(stats))
	}
}
