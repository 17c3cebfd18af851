package taskgen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zulandar/tally/internal/db"
	"github.com/zulandar/tally/internal/models"
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

func seed(t *testing.T, gormDB *gorm.DB, rows ...interface{}) {
	t.Helper()
	for _, r := range rows {
		if err := gormDB.Create(r).Error; err != nil {
			t.Fatalf("seed %T: %v", r, err)
		}
	}
}

func ptr(s string) *string { return &s }

// scenarioA seeds one teaching assignment and one student in its group.
func scenarioA(t *testing.T, gormDB *gorm.DB) {
	t.Helper()
	seed(t, gormDB,
		&models.Cycle{ID: "c24", Year: 2024, Status: models.CycleDraft, BranchIDs: []string{}},
		&models.Branch{ID: "B", Name: "Branch B"},
		&models.Group{ID: "G", Name: "5A", BranchID: "B"},
		&models.Subject{ID: "S", Name: "Math"},
		&models.Teacher{ID: "T", Name: "Teacher T", BranchID: ptr("B"), BranchIDs: []string{}},
		&models.User{ID: "u-stu", Role: models.RoleStudent, BranchID: ptr("B")},
		&models.Student{ID: "u-stu", Name: "Student", BranchID: "B", GroupID: "G"},
		&models.TeachingAssignment{ID: "ta1", TeacherID: "T", GroupID: "G", SubjectID: "S", BranchID: "B", Year: 2024},
	)
}

func TestTaskID_Deterministic(t *testing.T) {
	a := TaskID("c1", "r1", models.TargetTeacher, "t1", "g1", "s1")
	b := TaskID("c1", "r1", models.TargetTeacher, "t1", "g1", "s1")
	if a != b {
		t.Errorf("TaskID not deterministic: %q != %q", a, b)
	}
	if a != "c1_r1_teacher_t1_g1_s1" {
		t.Errorf("TaskID = %q, want %q", a, "c1_r1_teacher_t1_g1_s1")
	}
}

func TestTaskID_Wildcards(t *testing.T) {
	got := TaskID("c1", "r1", models.TargetManager, "m1", "", "")
	if got != "c1_r1_manager_m1_all_all" {
		t.Errorf("TaskID = %q, want %q", got, "c1_r1_manager_m1_all_all")
	}
}

func TestTaskID_LongestFitsColumn(t *testing.T) {
	long := strings.Repeat("x", 64)
	id := TaskID(long, long, models.TargetManager, long, long, long)
	if len(id) <= 255 {
		t.Fatalf("len = %d, want above 255 for 64-character identifiers", len(id))
	}
	gormDB := testDB(t)
	seed(t, gormDB,
		&models.Task{ID: id, CycleID: long, RaterID: long, RaterRole: models.RoleTeacher, TargetType: models.TargetManager, TargetID: long, Status: models.TaskOpen},
		&models.Submission{ID: "sub", TaskID: id, CycleID: long, RaterID: long, TargetID: long},
	)
	var task models.Task
	if err := gormDB.Where("id = ?", id).First(&task).Error; err != nil {
		t.Fatalf("load task: %v", err)
	}
	if len(task.ID) != len(id) {
		t.Errorf("stored id length = %d, want %d", len(task.ID), len(id))
	}
	if len(id) > 512 {
		t.Errorf("len = %d exceeds the 512-character task id column", len(id))
	}
}

func TestGenerate_ScenarioA(t *testing.T) {
	gormDB := testDB(t)
	scenarioA(t, gormDB)

	res, err := Generate(context.Background(), gormDB, "c24", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("Created = %d, want 1", res.Created)
	}
	if res.AssignmentYear != 2024 {
		t.Errorf("AssignmentYear = %d, want 2024", res.AssignmentYear)
	}

	tasks, err := ListTasks(gormDB, TaskFilters{CycleID: "c24"})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1", len(tasks))
	}
	task := tasks[0]
	if task.RaterID != "u-stu" || task.TargetID != "T" || task.RaterRole != models.RoleStudent {
		t.Errorf("task = %+v, want student u-stu rating T", task)
	}
	if deref(task.GroupID) != "G" || deref(task.SubjectID) != "S" {
		t.Errorf("task group/subject = %q/%q, want G/S", deref(task.GroupID), deref(task.SubjectID))
	}
	if task.Status != models.TaskOpen {
		t.Errorf("Status = %q, want OPEN", task.Status)
	}
	if task.TargetName != "Teacher T" {
		t.Errorf("TargetName = %q, want %q", task.TargetName, "Teacher T")
	}
	if task.ID != TaskID("c24", "u-stu", models.TargetTeacher, "T", "G", "S") {
		t.Errorf("ID = %q, want deterministic key", task.ID)
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	gormDB := testDB(t)
	scenarioA(t, gormDB)
	ctx := context.Background()

	if _, err := Generate(ctx, gormDB, "c24", Options{}); err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	res, err := Generate(ctx, gormDB, "c24", Options{})
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if res.Created != 0 {
		t.Errorf("second run Created = %d, want 0", res.Created)
	}
	if res.Existing != 1 {
		t.Errorf("second run Existing = %d, want 1", res.Existing)
	}
	if len(res.Diagnostics) != 1 || !strings.Contains(res.Diagnostics[0], "1 already exist") {
		t.Errorf("Diagnostics = %v, want existing-task note", res.Diagnostics)
	}

	var count int64
	gormDB.Model(&models.Task{}).Count(&count)
	if count != 1 {
		t.Errorf("task rows = %d, want 1", count)
	}
}

func TestGenerate_MissingYearFallsBack(t *testing.T) {
	gormDB := testDB(t)
	seed(t, gormDB,
		&models.Cycle{ID: "c25", Year: 2025, BranchIDs: []string{}},
		&models.Teacher{ID: "T", Name: "T", BranchID: ptr("B"), BranchIDs: []string{}},
		&models.User{ID: "u1", Role: models.RoleStudent, BranchID: ptr("B")},
		&models.Student{ID: "s1", Name: "S", BranchID: "B", GroupID: "G", UID: ptr("u1")},
		&models.TeachingAssignment{ID: "ta2022", TeacherID: "T", GroupID: "G", SubjectID: "S", BranchID: "B", Year: 2022},
		&models.TeachingAssignment{ID: "ta2023", TeacherID: "T", GroupID: "G", SubjectID: "S2", BranchID: "B", Year: 2023},
	)

	res, err := Generate(context.Background(), gormDB, "c25", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.AssignmentYear != 2023 {
		t.Errorf("AssignmentYear = %d, want 2023", res.AssignmentYear)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "2023") && strings.Contains(w, "teaching") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want one naming 2023", res.Warnings)
	}
	if res.Created != 1 {
		t.Fatalf("Created = %d, want 1 (2023 assignment only)", res.Created)
	}
	tasks, _ := ListTasks(gormDB, TaskFilters{CycleID: "c25"})
	if deref(tasks[0].SubjectID) != "S2" {
		t.Errorf("SubjectID = %q, want S2 from 2023", deref(tasks[0].SubjectID))
	}
}

func TestGenerate_NoAssignmentYear(t *testing.T) {
	tests := []struct {
		name    string
		rows    []interface{}
		wantMsg string
	}{
		{
			name:    "no assignments",
			rows:    nil,
			wantMsg: "no teaching assignments in scope",
		},
		{
			name: "assignments outside scope",
			rows: []interface{}{
				&models.TeachingAssignment{ID: "ta", TeacherID: "T", GroupID: "G", SubjectID: "S", BranchID: "other", Year: 2024},
			},
			wantMsg: "no teaching assignments in scope",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB := testDB(t)
			seed(t, gormDB, &models.Cycle{ID: "c", Year: 2024, BranchIDs: []string{"B"}})
			seed(t, gormDB, tt.rows...)

			_, err := Generate(context.Background(), gormDB, "c", Options{})
			if !errors.Is(err, ErrNoAssignmentYear) {
				t.Fatalf("error = %v, want ErrNoAssignmentYear", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantMsg)
			}
			var count int64
			gormDB.Model(&models.Task{}).Count(&count)
			if count != 0 {
				t.Errorf("task rows = %d, want 0", count)
			}
		})
	}
}

func TestGenerate_OnlyLaterYearFallsForward(t *testing.T) {
	gormDB := testDB(t)
	seed(t, gormDB,
		&models.Cycle{ID: "c", Year: 2024, BranchIDs: []string{}},
		&models.Teacher{ID: "T", Name: "T", BranchID: ptr("B"), BranchIDs: []string{}},
		&models.User{ID: "u1", Role: models.RoleStudent, BranchID: ptr("B")},
		&models.Student{ID: "s1", Name: "S", BranchID: "B", GroupID: "G", UID: ptr("u1")},
		&models.TeachingAssignment{ID: "ta2027", TeacherID: "T", GroupID: "G", SubjectID: "S", BranchID: "B", Year: 2027},
		&models.TeachingAssignment{ID: "ta2026", TeacherID: "T", GroupID: "G", SubjectID: "S2", BranchID: "B", Year: 2026},
		&models.ManagementAssignment{ID: "ma", ManagerID: "m", BranchID: "B", Year: 2030},
	)

	res, err := Generate(context.Background(), gormDB, "c", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.AssignmentYear != 2026 {
		t.Errorf("AssignmentYear = %d, want 2026", res.AssignmentYear)
	}
	if res.ManagementYear != 2030 {
		t.Errorf("ManagementYear = %d, want 2030", res.ManagementYear)
	}
	for _, want := range []string{"teaching assignments from 2026", "management assignments from 2030"} {
		found := false
		for _, w := range res.Warnings {
			if strings.Contains(w, want) {
				found = true
			}
		}
		if !found {
			t.Errorf("Warnings = %v, want one containing %q", res.Warnings, want)
		}
	}
	tasks, _ := ListTasks(gormDB, TaskFilters{CycleID: "c", Flow: models.FlowStudentTeacher})
	if len(tasks) != 1 || deref(tasks[0].SubjectID) != "S2" {
		t.Errorf("student tasks = %+v, want one for S2 from 2026", tasks)
	}
}

func TestGenerate_CycleNotFound(t *testing.T) {
	gormDB := testDB(t)
	_, err := Generate(context.Background(), gormDB, "missing", Options{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerate_AllFamilies(t *testing.T) {
	gormDB := testDB(t)
	seed(t, gormDB,
		&models.Cycle{ID: "c", Year: 2024, BranchIDs: []string{}},
		&models.Teacher{ID: "T1", Name: "T1", BranchID: ptr("B"), BranchIDs: []string{}, UID: ptr("u-t1")},
		&models.Teacher{ID: "T2", Name: "T2", BranchID: ptr("X"), BranchIDs: []string{"B"}},
		&models.Teacher{ID: "T3", Name: "T3", BranchID: ptr("X"), BranchIDs: []string{}},
		&models.User{ID: "u-t1", Role: models.RoleTeacher, BranchID: ptr("B")},
		&models.User{ID: "u-mgr", Role: models.RoleManager, BranchID: ptr("B"), DisplayName: "Head of B"},
		&models.User{ID: "u-stu", Role: models.RoleStudent, BranchID: ptr("B")},
		&models.Student{ID: "u-stu", Name: "S", BranchID: "B", GroupID: "G"},
		&models.TeachingAssignment{ID: "ta1", TeacherID: "T1", GroupID: "G", SubjectID: "S1", BranchID: "B", Year: 2024},
		&models.TeachingAssignment{ID: "ta2", TeacherID: "T2", GroupID: "G", SubjectID: "S2", BranchID: "B", Year: 2024},
		&models.ManagementAssignment{ID: "ma1", ManagerID: "u-mgr", BranchID: "B", Year: 2024},
	)

	res, err := Generate(context.Background(), gormDB, "c", Options{IncludeSelf: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// 2 student→teacher, 1 teacher→manager, 2 manager→teacher (T1 primary, T2 membership), 1 self.
	if res.Created != 6 {
		t.Fatalf("Created = %d, want 6", res.Created)
	}

	counts := map[models.Flow]int{}
	tasks, _ := ListTasks(gormDB, TaskFilters{CycleID: "c"})
	for _, task := range tasks {
		counts[task.Flow()]++
	}
	want := map[models.Flow]int{
		models.FlowStudentTeacher:    2,
		models.FlowTeacherManagement: 1,
		models.FlowManagementTeacher: 2,
		models.FlowTeacherSelf:       1,
	}
	for flow, n := range want {
		if counts[flow] != n {
			t.Errorf("%s tasks = %d, want %d", flow, counts[flow], n)
		}
	}

	mgrTasks, _ := ListTasks(gormDB, TaskFilters{Flow: models.FlowTeacherManagement})
	if len(mgrTasks) != 1 || mgrTasks[0].TargetName != "Head of B" {
		t.Errorf("teacher→manager tasks = %+v, want one named Head of B", mgrTasks)
	}
	for _, task := range tasks {
		if task.TargetID == "T3" {
			t.Errorf("T3 is outside branch B and should not be rated: %+v", task)
		}
	}
}

func TestGenerate_SelfTasksOptIn(t *testing.T) {
	gormDB := testDB(t)
	seed(t, gormDB,
		&models.Cycle{ID: "c", Year: 2024, BranchIDs: []string{}},
		&models.Teacher{ID: "u-t1", Name: "T1", BranchID: ptr("B"), BranchIDs: []string{}},
		&models.User{ID: "u-t1", Role: models.RoleTeacher, BranchID: ptr("B")},
		&models.TeachingAssignment{ID: "ta1", TeacherID: "u-t1", GroupID: "G", SubjectID: "S", BranchID: "B", Year: 2024},
	)

	if _, err := Generate(context.Background(), gormDB, "c", Options{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	tasks, _ := ListTasks(gormDB, TaskFilters{Flow: models.FlowTeacherSelf})
	if len(tasks) != 0 {
		t.Errorf("self tasks without IncludeSelf = %d, want 0", len(tasks))
	}

	if _, err := Generate(context.Background(), gormDB, "c", Options{IncludeSelf: true}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	tasks, _ = ListTasks(gormDB, TaskFilters{Flow: models.FlowTeacherSelf})
	if len(tasks) != 1 {
		t.Errorf("self tasks with IncludeSelf = %d, want 1", len(tasks))
	}
}

func TestGenerate_NoManagementDoesNotBlock(t *testing.T) {
	gormDB := testDB(t)
	scenarioA(t, gormDB)
	seed(t, gormDB, &models.User{ID: "u-t", Role: models.RoleTeacher, BranchID: ptr("B")})

	res, err := Generate(context.Background(), gormDB, "c24", Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ManagementYear != 0 {
		t.Errorf("ManagementYear = %d, want 0", res.ManagementYear)
	}
	if res.Created != 1 {
		t.Errorf("Created = %d, want 1", res.Created)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "teacher to manager tasks skipped") {
			found = true
		}
	}
	if !found {
		t.Errorf("Warnings = %v, want management skip warning", res.Warnings)
	}
}

func TestGenerate_BranchScope(t *testing.T) {
	gormDB := testDB(t)
	seed(t, gormDB,
		&models.Cycle{ID: "c", Year: 2024, BranchIDs: []string{"B"}},
		&models.Teacher{ID: "TB", Name: "TB", BranchID: ptr("B"), BranchIDs: []string{}},
		&models.Teacher{ID: "TM", Name: "TM", BranchID: ptr("X"), BranchIDs: []string{"B"}},
		&models.Teacher{ID: "TX", Name: "TX", BranchID: ptr("X"), BranchIDs: []string{}},
		&models.User{ID: "mB", Role: models.RoleManager, BranchID: ptr("B")},
		&models.User{ID: "mX", Role: models.RoleManager, BranchID: ptr("X")},
		&models.User{ID: "sB", Role: models.RoleStudent, BranchID: ptr("B")},
		&models.User{ID: "sX", Role: models.RoleStudent, BranchID: ptr("X")},
		&models.Student{ID: "sB", Name: "sB", BranchID: "B", GroupID: "GB"},
		&models.Student{ID: "sX", Name: "sX", BranchID: "X", GroupID: "GX"},
		&models.TeachingAssignment{ID: "t1", TeacherID: "TB", GroupID: "GB", SubjectID: "S", BranchID: "B", Year: 2024},
		&models.TeachingAssignment{ID: "t2", TeacherID: "TX", GroupID: "GX", SubjectID: "S", BranchID: "X", Year: 2024},
	)

	if _, err := Generate(context.Background(), gormDB, "c", Options{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	tasks, _ := ListTasks(gormDB, TaskFilters{CycleID: "c"})
	got := map[string]bool{}
	for _, task := range tasks {
		got[task.RaterID+"->"+task.TargetID] = true
		if task.BranchID != "B" {
			t.Errorf("task %s in branch %q, want B", task.ID, task.BranchID)
		}
	}
	for _, want := range []string{"sB->TB", "mB->TB", "mB->TM"} {
		if !got[want] {
			t.Errorf("missing task %s; got %v", want, got)
		}
	}
	if len(tasks) != 3 {
		t.Errorf("len(tasks) = %d, want 3", len(tasks))
	}
}

func TestGenerate_RequireBranchScope(t *testing.T) {
	gormDB := testDB(t)
	scenarioA(t, gormDB)

	_, err := Generate(context.Background(), gormDB, "c24", Options{RequireBranchScope: true})
	if !errors.Is(err, ErrNoBranchScope) {
		t.Errorf("error = %v, want ErrNoBranchScope", err)
	}
}

func TestPlanTasks_DedupWithinRun(t *testing.T) {
	snap := &Snapshot{
		Cycle: models.Cycle{ID: "c", Year: 2024},
		Users: []models.User{{ID: "u", Role: models.RoleStudent}},
		Students: []models.Student{
			{ID: "u", GroupID: "G"},
		},
		Teaching: []models.TeachingAssignment{
			{ID: "a1", TeacherID: "T", GroupID: "G", SubjectID: "S", Year: 2024},
			{ID: "a2", TeacherID: "T", GroupID: "G", SubjectID: "S", Year: 2024},
		},
		Existing: map[string]struct{}{},
	}
	plan, err := PlanTasks(snap, Options{})
	if err != nil {
		t.Fatalf("PlanTasks: %v", err)
	}
	if len(plan.Tasks) != 1 {
		t.Errorf("len(Tasks) = %d, want 1 after duplicate assignment rows", len(plan.Tasks))
	}
}

func TestPlanTasks_SkipsExisting(t *testing.T) {
	id := TaskID("c", "u", models.TargetTeacher, "T", "G", "S")
	snap := &Snapshot{
		Cycle:    models.Cycle{ID: "c", Year: 2024},
		Users:    []models.User{{ID: "u", Role: models.RoleStudent}},
		Students: []models.Student{{ID: "u", GroupID: "G"}},
		Teaching: []models.TeachingAssignment{
			{ID: "a1", TeacherID: "T", GroupID: "G", SubjectID: "S", Year: 2024},
		},
		Existing: map[string]struct{}{id: {}},
	}
	plan, err := PlanTasks(snap, Options{})
	if err != nil {
		t.Fatalf("PlanTasks: %v", err)
	}
	if len(plan.Tasks) != 0 {
		t.Errorf("len(Tasks) = %d, want 0", len(plan.Tasks))
	}
}

func TestPlanTasks_Diagnostics(t *testing.T) {
	snap := &Snapshot{
		Cycle:    models.Cycle{ID: "c", Year: 2024},
		Teaching: []models.TeachingAssignment{{ID: "a", TeacherID: "T", GroupID: "G", SubjectID: "S", Year: 2024}},
		Existing: map[string]struct{}{},
	}
	plan, err := PlanTasks(snap, Options{})
	if err != nil {
		t.Fatalf("PlanTasks: %v", err)
	}
	joined := strings.Join(plan.Diagnostics, ", ")
	for _, want := range []string{"no students found", "no teachers found", "no management assignments found"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Diagnostics = %q, want to contain %q", joined, want)
		}
	}
	if strings.Contains(joined, "no teaching assignments") {
		t.Errorf("Diagnostics = %q, should not report teaching assignments", joined)
	}
}

func TestResolveYear(t *testing.T) {
	tests := []struct {
		year  int
		years []int
		want  int
		ok    bool
	}{
		{2024, []int{2022, 2024, 2025}, 2024, true},
		{2025, []int{2021, 2023}, 2023, true},
		{2025, []int{2023, 2021, 2023}, 2023, true},
		{2024, []int{2026}, 2026, true},
		{2024, []int{2028, 2026, 2027}, 2026, true},
		{2024, []int{2026, 2021}, 2021, true},
		{2024, nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := resolveYear(tt.year, tt.years)
		if got != tt.want || ok != tt.ok {
			t.Errorf("resolveYear(%d, %v) = %d, %v; want %d, %v", tt.year, tt.years, got, ok, tt.want, tt.ok)
		}
	}
}

func manyTasks(n int) []models.Task {
	tasks := make([]models.Task, n)
	for i := range tasks {
		rater := "r" + strings.Repeat("x", i%7) + string(rune('a'+i%26))
		target := "t" + string(rune('0'+i/26%10)) + string(rune('0'+i/260))
		tasks[i] = models.Task{
			CycleID:    "c",
			RaterID:    rater,
			RaterRole:  models.RoleManager,
			TargetType: models.TargetTeacher,
			TargetID:   target,
			Status:     models.TaskOpen,
		}
		tasks[i].ID = TaskID("c", rater, models.TargetTeacher, target, "", "")
	}
	return tasks
}

func TestInsertBatches_MultipleBatches(t *testing.T) {
	gormDB := testDB(t)
	tasks := manyTasks(950)

	created, skipped, err := insertBatches(context.Background(), gormDB, tasks, BatchSize)
	if err != nil {
		t.Fatalf("insertBatches: %v", err)
	}
	var count int64
	gormDB.Model(&models.Task{}).Count(&count)
	if int(count) != created {
		t.Errorf("rows = %d, created = %d", count, created)
	}
	if created+skipped != len(tasks) {
		t.Errorf("created %d + skipped %d != %d", created, skipped, len(tasks))
	}
}

func TestInsertBatches_RacedDuplicatesSkipped(t *testing.T) {
	gormDB := testDB(t)
	tasks := manyTasks(3)
	// Another run inserted the second task after our snapshot was taken.
	seed(t, gormDB, &tasks[1])

	created, skipped, err := insertBatches(context.Background(), gormDB, tasks, BatchSize)
	if err != nil {
		t.Fatalf("insertBatches: %v", err)
	}
	if created != 2 || skipped != 1 {
		t.Errorf("created, skipped = %d, %d; want 2, 1", created, skipped)
	}
}

func TestInsertBatches_FailingBatchAborts(t *testing.T) {
	gormDB := testDB(t)
	calls := 0
	err := gormDB.Callback().Create().Before("gorm:create").Register("test:fail_second_batch", func(tx *gorm.DB) {
		if tx.Statement.Table != "tasks" {
			return
		}
		calls++
		if calls == 2 {
			tx.AddError(errors.New("store unavailable"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	tasks := manyTasks(10)
	created, _, err := insertBatches(context.Background(), gormDB, tasks, 4)
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("error = %v, want *BatchError", err)
	}
	if be.Batch != 2 || be.Inserted != 4 {
		t.Errorf("BatchError = {Batch %d, Inserted %d}, want {2, 4}", be.Batch, be.Inserted)
	}
	if created != 4 {
		t.Errorf("created = %d, want 4", created)
	}
	if !strings.Contains(err.Error(), "re-run is safe") {
		t.Errorf("error = %q, want re-run hint", err.Error())
	}

	var count int64
	gormDB.Model(&models.Task{}).Count(&count)
	if count != 4 {
		t.Errorf("rows = %d, want 4 (first batch only)", count)
	}
}

func TestListTasks_Filters(t *testing.T) {
	gormDB := testDB(t)
	scenarioA(t, gormDB)
	if _, err := Generate(context.Background(), gormDB, "c24", Options{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	tests := []struct {
		name    string
		filters TaskFilters
		want    int
	}{
		{"by rater", TaskFilters{RaterID: "u-stu"}, 1},
		{"by target", TaskFilters{TargetID: "T"}, 1},
		{"by other target", TaskFilters{TargetID: "nobody"}, 0},
		{"by status", TaskFilters{Status: models.TaskDone}, 0},
		{"by branch", TaskFilters{BranchID: "B"}, 1},
		{"by flow", TaskFilters{Flow: models.FlowManagementTeacher}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := ListTasks(gormDB, tt.filters)
			if err != nil {
				t.Fatalf("ListTasks: %v", err)
			}
			if len(tasks) != tt.want {
				t.Errorf("len = %d, want %d", len(tasks), tt.want)
			}
		})
	}

	if _, err := ListTasks(gormDB, TaskFilters{Flow: "sideways"}); err == nil {
		t.Error("expected error for unknown flow")
	}
}

func TestResult_Summary(t *testing.T) {
	r := &Result{CycleID: "c", Created: 3, Existing: 2, Skipped: 1, Warnings: []string{"w1"}}
	s := r.Summary()
	for _, want := range []string{"cycle c", "created 3", "existing 2", "skipped 1", "w1"} {
		if !strings.Contains(s, want) {
			t.Errorf("Summary() = %q, want to contain %q", s, want)
		}
	}
}
