package taskgen

import (
	"errors"
	"fmt"

	"github.com/zulandar/tally/internal/models"
)

var (
	// ErrNoAssignmentYear means the cycle's scope holds no teaching
	// assignments for any year. Nothing is generated.
	ErrNoAssignmentYear = errors.New("taskgen: no teaching assignment year")

	// ErrNoBranchScope is returned when the caller requires a branch scope
	// and the cycle covers every branch.
	ErrNoBranchScope = errors.New("taskgen: cycle has no branch scope")
)

// Options adjusts a generation run.
type Options struct {
	// RequireBranchScope rejects cycles whose branch scope is empty.
	RequireBranchScope bool
	// IncludeSelf also emits one self-assessment task per teacher user
	// linked to a teacher record.
	IncludeSelf bool
}

// Plan is the pure outcome of planning: the tasks to insert and what was
// learned while computing them.
type Plan struct {
	Tasks          []models.Task
	Existing       int
	AssignmentYear int
	ManagementYear int
	Warnings       []string
	Diagnostics    []string
}

// PlanTasks computes the tasks missing from snap. It performs no I/O.
func PlanTasks(snap *Snapshot, opts Options) (*Plan, error) {
	cycle := snap.Cycle
	if opts.RequireBranchScope && len(cycle.BranchIDs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBranchScope, cycle.ID)
	}

	users := filter(snap.Users, func(u models.User) bool { return cycle.InScope(deref(u.BranchID)) })
	students := filter(snap.Students, func(s models.Student) bool { return cycle.InScope(s.BranchID) })
	teachers := filter(snap.Teachers, func(t models.Teacher) bool {
		if len(cycle.BranchIDs) == 0 {
			return true
		}
		for _, id := range cycle.BranchIDs {
			if t.InBranch(id) {
				return true
			}
		}
		return false
	})
	groups := filter(snap.Groups, func(g models.Group) bool { return cycle.InScope(g.BranchID) })
	teaching := filter(snap.Teaching, func(a models.TeachingAssignment) bool { return cycle.InScope(a.BranchID) })
	management := filter(snap.Management, func(a models.ManagementAssignment) bool { return cycle.InScope(a.BranchID) })

	teachingYears := make([]int, 0, len(teaching))
	for _, a := range teaching {
		teachingYears = append(teachingYears, a.Year)
	}
	assignmentYear, ok := resolveYear(cycle.Year, teachingYears)
	if !ok {
		return nil, fmt.Errorf("%w: no teaching assignments in scope of cycle %s", ErrNoAssignmentYear, cycle.ID)
	}

	managementYears := make([]int, 0, len(management))
	for _, a := range management {
		managementYears = append(managementYears, a.Year)
	}
	managementYear, hasManagement := resolveYear(cycle.Year, managementYears)

	p := &Plan{
		Existing:       len(snap.Existing),
		AssignmentYear: assignmentYear,
	}
	if hasManagement {
		p.ManagementYear = managementYear
	}
	if assignmentYear != cycle.Year {
		p.Warnings = append(p.Warnings, fmt.Sprintf("teaching assignments from %d used for cycle year %d", assignmentYear, cycle.Year))
	}
	switch {
	case !hasManagement:
		p.Warnings = append(p.Warnings, fmt.Sprintf("no management assignments in scope of cycle %s; teacher to manager tasks skipped", cycle.ID))
	case managementYear != cycle.Year:
		p.Warnings = append(p.Warnings, fmt.Sprintf("management assignments from %d used for cycle year %d", managementYear, cycle.Year))
	}

	teacherByID := make(map[string]models.Teacher, len(teachers))
	teacherByUID := make(map[string]models.Teacher, len(teachers))
	for _, t := range teachers {
		teacherByID[t.ID] = t
		if uid := deref(t.UID); uid != "" {
			if _, dup := teacherByUID[uid]; !dup {
				teacherByUID[uid] = t
			}
		}
	}
	studentByID := make(map[string]models.Student, len(students))
	studentByUID := make(map[string]models.Student, len(students))
	for _, s := range students {
		studentByID[s.ID] = s
		if uid := deref(s.UID); uid != "" {
			if _, dup := studentByUID[uid]; !dup {
				studentByUID[uid] = s
			}
		}
	}
	managerNames := make(map[string]string)
	for _, u := range users {
		if u.Role == models.RoleManager {
			managerNames[u.ID] = displayName(u)
		}
	}
	teachingByGroup := make(map[string][]models.TeachingAssignment)
	for _, a := range teaching {
		if a.Year == assignmentYear {
			teachingByGroup[a.GroupID] = append(teachingByGroup[a.GroupID], a)
		}
	}
	managementByBranch := make(map[string][]models.ManagementAssignment)
	if hasManagement {
		for _, a := range management {
			if a.Year == managementYear {
				managementByBranch[a.BranchID] = append(managementByBranch[a.BranchID], a)
			}
		}
	}

	seen := make(map[string]struct{})
	add := func(t models.Task) {
		t.ID = TaskID(t.CycleID, t.RaterID, t.TargetType, t.TargetID, deref(t.GroupID), deref(t.SubjectID))
		if _, ok := snap.Existing[t.ID]; ok {
			return
		}
		if _, ok := seen[t.ID]; ok {
			return
		}
		seen[t.ID] = struct{}{}
		t.Status = models.TaskOpen
		p.Tasks = append(p.Tasks, t)
	}

	for _, u := range users {
		if u.Role != models.RoleStudent {
			continue
		}
		s, ok := studentByID[u.ID]
		if !ok {
			s, ok = studentByUID[u.ID]
		}
		if !ok {
			continue
		}
		for _, a := range teachingByGroup[s.GroupID] {
			groupID, subjectID := a.GroupID, a.SubjectID
			add(models.Task{
				CycleID:    cycle.ID,
				RaterID:    u.ID,
				RaterRole:  models.RoleStudent,
				TargetType: models.TargetTeacher,
				TargetID:   a.TeacherID,
				TargetName: teacherByID[a.TeacherID].Name,
				BranchID:   a.BranchID,
				GroupID:    &groupID,
				SubjectID:  &subjectID,
			})
		}
	}

	for _, u := range users {
		if u.Role != models.RoleTeacher || deref(u.BranchID) == "" {
			continue
		}
		for _, a := range managementByBranch[*u.BranchID] {
			add(models.Task{
				CycleID:    cycle.ID,
				RaterID:    u.ID,
				RaterRole:  models.RoleTeacher,
				TargetType: models.TargetManager,
				TargetID:   a.ManagerID,
				TargetName: managerNames[a.ManagerID],
				BranchID:   a.BranchID,
			})
		}
	}

	for _, u := range users {
		if u.Role != models.RoleManager || deref(u.BranchID) == "" {
			continue
		}
		branchID := *u.BranchID
		for _, t := range teachers {
			if !t.InBranch(branchID) {
				continue
			}
			add(models.Task{
				CycleID:    cycle.ID,
				RaterID:    u.ID,
				RaterRole:  models.RoleManager,
				TargetType: models.TargetTeacher,
				TargetID:   t.ID,
				TargetName: t.Name,
				BranchID:   branchID,
			})
		}
	}

	if opts.IncludeSelf {
		for _, u := range users {
			if u.Role != models.RoleTeacher {
				continue
			}
			t, ok := teacherByID[u.ID]
			if !ok {
				t, ok = teacherByUID[u.ID]
			}
			if !ok {
				continue
			}
			branchID := deref(t.BranchID)
			if branchID == "" {
				branchID = deref(u.BranchID)
			}
			add(models.Task{
				CycleID:    cycle.ID,
				RaterID:    u.ID,
				RaterRole:  models.RoleTeacher,
				TargetType: models.TargetTeacher,
				TargetID:   t.ID,
				TargetName: t.Name,
				BranchID:   branchID,
			})
		}
	}

	if len(p.Tasks) == 0 {
		p.Diagnostics = diagnose(p.Existing, students, teachers, groups, teaching, management)
	}
	return p, nil
}

// diagnose explains a run that produced no new tasks.
func diagnose(existing int, students []models.Student, teachers []models.Teacher, groups []models.Group,
	teaching []models.TeachingAssignment, management []models.ManagementAssignment) []string {
	if existing > 0 {
		return []string{fmt.Sprintf("no new tasks; %d already exist", existing)}
	}
	var reasons []string
	if len(students) == 0 {
		reasons = append(reasons, "no students found")
	}
	if len(teachers) == 0 {
		reasons = append(reasons, "no teachers found")
	}
	if len(groups) == 0 {
		reasons = append(reasons, "no groups found")
	}
	if len(teaching) == 0 {
		reasons = append(reasons, "no teaching assignments found")
	}
	if len(management) == 0 {
		reasons = append(reasons, "no management assignments found")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no rater matched any assignment")
	}
	return reasons
}

// resolveYear picks year itself when present, otherwise the closest prior
// year in years, otherwise the closest following one. It fails only when
// years is empty.
func resolveYear(year int, years []int) (int, bool) {
	prior, after := 0, 0
	for _, y := range years {
		switch {
		case y == year:
			return y, true
		case y < year && (prior == 0 || y > prior):
			prior = y
		case y > year && (after == 0 || y < after):
			after = y
		}
	}
	if prior != 0 {
		return prior, true
	}
	return after, after != 0
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func displayName(u models.User) string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Login != "":
		return u.Login
	}
	return u.ID
}
