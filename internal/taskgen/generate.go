package taskgen

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/zulandar/tally/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchSize is the number of tasks written per insert statement.
const BatchSize = 400

// Result summarizes a generation run.
type Result struct {
	CycleID        string
	Created        int
	Existing       int
	Skipped        int // planned tasks another run inserted first
	AssignmentYear int
	ManagementYear int
	Warnings       []string
	Diagnostics    []string
}

// Summary renders the result as a single line.
func (r *Result) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle %s: created %d, existing %d", r.CycleID, r.Created, r.Existing)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, ", skipped %d", r.Skipped)
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "; warnings: %s", strings.Join(r.Warnings, ", "))
	}
	if len(r.Diagnostics) > 0 {
		fmt.Fprintf(&b, "; %s", strings.Join(r.Diagnostics, ", "))
	}
	return b.String()
}

// BatchError reports a store failure during insertion. Batches before the
// failing one stay committed; re-running generation is safe.
type BatchError struct {
	Batch    int
	Inserted int
	Err      error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("taskgen: insert batch %d failed after %d tasks were written (re-run is safe): %v", e.Batch, e.Inserted, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Generate loads a snapshot for cycleID, plans the missing tasks and
// inserts them in batches. It does not check the cycle status.
func Generate(ctx context.Context, db *gorm.DB, cycleID string, opts Options) (*Result, error) {
	snap, err := LoadSnapshot(ctx, db, cycleID)
	if err != nil {
		return nil, err
	}
	plan, err := PlanTasks(snap, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{
		CycleID:        cycleID,
		Existing:       plan.Existing,
		AssignmentYear: plan.AssignmentYear,
		ManagementYear: plan.ManagementYear,
		Warnings:       plan.Warnings,
		Diagnostics:    plan.Diagnostics,
	}

	created, skipped, err := insertBatches(ctx, db, plan.Tasks, BatchSize)
	res.Created, res.Skipped = created, skipped
	if err != nil {
		log.Printf("taskgen: cycle %s: %v", cycleID, err)
		return res, err
	}
	log.Printf("taskgen: %s", res.Summary())
	return res, nil
}

// insertBatches writes tasks size rows at a time. Conflicting ids are
// ignored by the store and counted as skipped.
func insertBatches(ctx context.Context, db *gorm.DB, tasks []models.Task, size int) (created, skipped int, err error) {
	for start, n := 0, 1; start < len(tasks); start, n = start+size, n+1 {
		end := start + size
		if end > len(tasks) {
			end = len(tasks)
		}
		batch := tasks[start:end]
		result := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&batch)
		if result.Error != nil {
			return created, skipped, &BatchError{Batch: n, Inserted: created, Err: result.Error}
		}
		created += int(result.RowsAffected)
		skipped += len(batch) - int(result.RowsAffected)
	}
	return created, skipped, nil
}

// TaskFilters narrows ListTasks. Empty fields are ignored.
type TaskFilters struct {
	CycleID  string
	RaterID  string
	TargetID string
	BranchID string
	Status   models.TaskStatus
	Flow     models.Flow
}

// flowColumns maps a flow to its rater role and target type.
var flowColumns = map[models.Flow][2]string{
	models.FlowStudentTeacher:    {string(models.RoleStudent), string(models.TargetTeacher)},
	models.FlowTeacherManagement: {string(models.RoleTeacher), string(models.TargetManager)},
	models.FlowManagementTeacher: {string(models.RoleManager), string(models.TargetTeacher)},
	models.FlowTeacherSelf:       {string(models.RoleTeacher), string(models.TargetTeacher)},
}

// ListTasks returns tasks matching filters ordered by id.
func ListTasks(db *gorm.DB, filters TaskFilters) ([]models.Task, error) {
	q := db.Model(&models.Task{})

	if filters.CycleID != "" {
		q = q.Where("cycle_id = ?", filters.CycleID)
	}
	if filters.RaterID != "" {
		q = q.Where("rater_id = ?", filters.RaterID)
	}
	if filters.TargetID != "" {
		q = q.Where("target_id = ?", filters.TargetID)
	}
	if filters.BranchID != "" {
		q = q.Where("branch_id = ?", filters.BranchID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Flow != "" {
		cols, ok := flowColumns[filters.Flow]
		if !ok {
			return nil, fmt.Errorf("taskgen: unknown flow %q", filters.Flow)
		}
		q = q.Where("rater_role = ? AND target_type = ?", cols[0], cols[1])
	}

	var tasks []models.Task
	if err := q.Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("taskgen: list tasks: %w", err)
	}
	return tasks, nil
}
