package decision

import (
	"errors"
	"testing"

	"github.com/zulandar/tally/internal/db"
	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/policy"
	"github.com/zulandar/tally/internal/score"
	"gorm.io/gorm"
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
	branch := "B"
	rows := []interface{}{
		&models.Cycle{ID: "c", Year: 2024, BranchIDs: []string{}},
		&models.Teacher{ID: "T", Name: "T", BranchID: &branch, BranchIDs: []string{}, Category: policy.CategoryStandard},
		&models.Teacher{ID: "U", Name: "U", BranchID: &branch, BranchIDs: []string{}, Category: policy.CategoryStandard},
		&models.PkpdExamResult{CycleID: "c", TeacherID: "T", BranchID: "B", Score: 25},
	}
	for _, r := range rows {
		if err := gormDB.Create(r).Error; err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}
	return gormDB
}

func TestSave_FreezesSnapshot(t *testing.T) {
	gormDB := testDB(t)

	d, err := Save(gormDB, SaveOpts{CycleID: "c", TeacherID: "T", Status: models.DecisionApproved, Note: " ok ", DecidedBy: "admin"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if d.TotalScore == nil || *d.TotalScore != 25 {
		t.Fatalf("TotalScore = %v, want 25", d.TotalScore)
	}
	if d.Category != score.BucketVeryLowDev {
		t.Errorf("Category = %q, want %q", d.Category, score.BucketVeryLowDev)
	}
	if d.BranchID != "B" {
		t.Errorf("BranchID = %q, want B from teacher", d.BranchID)
	}
	if d.Note != "ok" {
		t.Errorf("Note = %q, want trimmed", d.Note)
	}

	// Inputs change after the ruling.
	gormDB.Model(&models.PkpdExamResult{}).Where("teacher_id = ?", "T").Update("score", 30)

	got, err := Get(gormDB, "c", "T")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got.TotalScore != 25 {
		t.Errorf("stored TotalScore = %g, want 25 (frozen)", *got.TotalScore)
	}
	snap, err := Snapshot(got)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Exam == nil || *snap.Exam != 25 {
		t.Errorf("snapshot Exam = %v, want 25", snap.Exam)
	}

	// Saving again refreshes the snapshot in place.
	if _, err := Save(gormDB, SaveOpts{CycleID: "c", TeacherID: "T", Status: models.DecisionApproved}); err != nil {
		t.Fatalf("re-Save: %v", err)
	}
	got, _ = Get(gormDB, "c", "T")
	if *got.TotalScore != 30 {
		t.Errorf("TotalScore after re-save = %g, want 30", *got.TotalScore)
	}
	var count int64
	gormDB.Model(&models.PkpdDecision{}).Count(&count)
	if count != 1 {
		t.Errorf("decision rows = %d, want 1", count)
	}
}

func TestSave_StatusHandling(t *testing.T) {
	gormDB := testDB(t)

	d, err := Save(gormDB, SaveOpts{CycleID: "c", TeacherID: "T", Status: "rejected"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if d.Status != models.DecisionRejected {
		t.Errorf("Status = %q, want REJECTED", d.Status)
	}

	d, err = Save(gormDB, SaveOpts{CycleID: "c", TeacherID: "U"})
	if err != nil {
		t.Fatalf("Save default: %v", err)
	}
	if d.Status != models.DecisionPending {
		t.Errorf("Status = %q, want PENDING by default", d.Status)
	}

	_, err = Save(gormDB, SaveOpts{CycleID: "c", TeacherID: "T", Status: "MAYBE"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("error = %v, want ErrInvalidStatus", err)
	}
}

func TestSave_UnknownTeacher(t *testing.T) {
	gormDB := testDB(t)
	_, err := Save(gormDB, SaveOpts{CycleID: "c", TeacherID: "ghost", Status: models.DecisionApproved})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	gormDB := testDB(t)
	if _, err := Get(gormDB, "c", "T"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	gormDB := testDB(t)
	if _, err := Save(gormDB, SaveOpts{CycleID: "c", TeacherID: "T", Status: models.DecisionApproved}); err != nil {
		t.Fatalf("Save T: %v", err)
	}
	if _, err := Save(gormDB, SaveOpts{CycleID: "c", TeacherID: "U", Status: models.DecisionPending}); err != nil {
		t.Fatalf("Save U: %v", err)
	}

	tests := []struct {
		name    string
		filters ListFilters
		want    int
	}{
		{"all", ListFilters{}, 2},
		{"approved", ListFilters{Status: models.DecisionApproved}, 1},
		{"branch", ListFilters{BranchID: "B"}, 2},
		{"other branch", ListFilters{BranchID: "X"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := List(gormDB, "c", tt.filters)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}
