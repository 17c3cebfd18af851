package org

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/zulandar/tally/internal/db"
	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/policy"
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
	return gormDB
}

func loadFixture(t *testing.T) *Roster {
	t.Helper()
	r, err := LoadRoster(filepath.Join("testdata", "roster.yaml"))
	if err != nil {
		t.Fatalf("LoadRoster: %v", err)
	}
	return r
}

func TestLoadRoster(t *testing.T) {
	r := loadFixture(t)
	if len(r.Branches) != 2 || len(r.Users) != 4 || len(r.Teachers) != 2 {
		t.Errorf("branches=%d users=%d teachers=%d", len(r.Branches), len(r.Users), len(r.Teachers))
	}
	if r.Teaching[0].Year != 2024 {
		t.Errorf("teaching year = %d, want 2024", r.Teaching[0].Year)
	}
	q := r.Questions[2]
	if q.ScaleMin == nil || *q.ScaleMin != 1 || q.ScaleMax == nil || *q.ScaleMax != 5 {
		t.Errorf("q-planning bounds = %v..%v, want 1..5", q.ScaleMin, q.ScaleMax)
	}
}

func TestLoadRoster_MissingFile(t *testing.T) {
	_, err := LoadRoster(filepath.Join("testdata", "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "org: read") {
		t.Errorf("error = %v, want read error", err)
	}
}

func TestParseRoster_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "branches: [", "org: parse"},
		{"bad role", "users:\n  - id: u\n    role: janitor\n", `users[0].role "janitor" is not valid`},
		{"bad category", "teachers:\n  - id: t\n    name: T\n    category: opera\n", "unknown category"},
		{"student without group", "students:\n  - id: s\n    name: S\n", "students[0].group_id is required"},
		{"assignment without year", "teaching_assignments:\n  - teacher_id: t\n    group_id: g\n    subject_id: s\n    branch_id: b\n", "teaching_assignments[0].year is required"},
		{"bad flow", "questions:\n  - id: q\n    text: Q\n    type: scale\n    flow: parent_teacher\n", `flow "parent_teacher"`},
		{"inverted scale", "questions:\n  - id: q\n    text: Q\n    type: scale\n    flow: student_teacher\n    scale_min: 5\n    scale_max: 1\n", "scale_max must be greater"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoster([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParseRoster_CollectsAllErrors(t *testing.T) {
	_, err := ParseRoster([]byte("branches:\n  - code: X\ngroups:\n  - id: g\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"branches[0].id", "branches[0].name", "groups[0].name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestImport(t *testing.T) {
	gormDB := testDB(t)
	r := loadFixture(t)

	s, err := Import(gormDB, r)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	want := Summary{Branches: 2, Users: 4, Teachers: 2, Students: 2, Groups: 1, Subjects: 1, Teaching: 1, Management: 1, Questions: 3}
	if *s != want {
		t.Errorf("Summary = %+v, want %+v", *s, want)
	}

	var t1 models.Teacher
	if err := gormDB.First(&t1, "id = ?", "T1").Error; err != nil {
		t.Fatalf("load T1: %v", err)
	}
	if t1.Category != policy.CategoryChess {
		t.Errorf("T1 category = %q, want chess", t1.Category)
	}
	if !t1.InBranch("B2") {
		t.Error("T1 should be a member of B2")
	}

	var t2 models.Teacher
	gormDB.First(&t2, "id = ?", "T2")
	if t2.Category != policy.CategoryStandard {
		t.Errorf("T2 category = %q, want standard default", t2.Category)
	}
	if t2.BranchIDs == nil {
		t.Error("T2 BranchIDs should be empty, not nil")
	}

	var q models.Question
	gormDB.First(&q, "id = ?", "q-pace")
	if !reflect.DeepEqual([]string(q.Options), []string{"slow", "ok", "fast"}) {
		t.Errorf("q-pace options = %v", q.Options)
	}
}

func TestImport_Idempotent(t *testing.T) {
	gormDB := testDB(t)
	r := loadFixture(t)
	if _, err := Import(gormDB, r); err != nil {
		t.Fatalf("first Import: %v", err)
	}

	r.Teachers[1].Name = "Fay Moss-Hart"
	if _, err := Import(gormDB, r); err != nil {
		t.Fatalf("second Import: %v", err)
	}

	var teaching int64
	gormDB.Model(&models.TeachingAssignment{}).Count(&teaching)
	if teaching != 1 {
		t.Errorf("teaching assignments = %d, want 1 after re-import", teaching)
	}
	var t2 models.Teacher
	gormDB.First(&t2, "id = ?", "T2")
	if t2.Name != "Fay Moss-Hart" {
		t.Errorf("T2 name = %q, want updated", t2.Name)
	}
}

func TestAssignmentIDs(t *testing.T) {
	a := TeachingEntry{TeacherID: "T1", GroupID: "G1", SubjectID: "SUB1", BranchID: "B1", Year: 2024}
	if teachingID(a) != teachingID(a) {
		t.Error("derived teaching id is not stable")
	}
	b := a
	b.Year = 2025
	if teachingID(a) == teachingID(b) {
		t.Error("different years should derive different ids")
	}
	if got := managementID(ManagementEntry{ID: "MA1"}); got != "MA1" {
		t.Errorf("managementID = %q, want explicit MA1", got)
	}
}

func TestImport_Empty(t *testing.T) {
	gormDB := testDB(t)
	s, err := Import(gormDB, &Roster{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if *s != (Summary{}) {
		t.Errorf("Summary = %+v, want zero", *s)
	}
}
