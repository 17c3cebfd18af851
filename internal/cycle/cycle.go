// Package cycle provides evaluation cycle lifecycle operations. None of
// them touch tasks already generated for a cycle.
package cycle

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/tally/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("cycle: not found")
	ErrInvalidTransition = errors.New("cycle: invalid status transition")
	ErrInvalid           = errors.New("cycle: invalid options")
)

// ValidTransitions maps each status to its valid next statuses.
var ValidTransitions = map[models.CycleStatus][]models.CycleStatus{
	models.CycleDraft:  {models.CycleOpen},
	models.CycleOpen:   {models.CycleClosed},
	models.CycleClosed: {models.CycleOpen},
}

// CreateOpts holds parameters for creating a cycle.
type CreateOpts struct {
	ID           string // generated when empty
	Year         int
	BranchIDs    []string
	StartAt      *time.Time
	DurationDays int
	ThresholdY   float64
	ThresholdP   float64
}

// ListFilters holds optional filters for listing cycles.
type ListFilters struct {
	Status models.CycleStatus
	Year   int
}

// Create creates a DRAFT cycle.
func Create(db *gorm.DB, opts CreateOpts) (*models.Cycle, error) {
	if opts.Year < 2000 || opts.Year > 2100 {
		return nil, fmt.Errorf("%w: year %d is out of range", ErrInvalid, opts.Year)
	}
	if opts.DurationDays < 0 {
		return nil, fmt.Errorf("%w: duration_days must not be negative", ErrInvalid)
	}
	for name, v := range map[string]float64{"threshold_y": opts.ThresholdY, "threshold_p": opts.ThresholdP} {
		if v < 0 || v > 100 {
			return nil, fmt.Errorf("%w: %s %g must be between 0 and 100", ErrInvalid, name, v)
		}
	}

	id := opts.ID
	if id == "" {
		id = fmt.Sprintf("%d-%s", opts.Year, uuid.NewString()[:8])
	}

	c := models.Cycle{
		ID:           id,
		Year:         opts.Year,
		Status:       models.CycleDraft,
		BranchIDs:    datatypes.JSONSlice[string](normalizeBranches(opts.BranchIDs)),
		StartAt:      opts.StartAt,
		DurationDays: opts.DurationDays,
		ThresholdY:   opts.ThresholdY,
		ThresholdP:   opts.ThresholdP,
	}
	if c.StartAt != nil && c.DurationDays > 0 {
		end := c.StartAt.AddDate(0, 0, c.DurationDays)
		c.EndAt = &end
	}

	if err := db.Create(&c).Error; err != nil {
		return nil, fmt.Errorf("cycle: create: %w", err)
	}
	return &c, nil
}

// Get retrieves a cycle by ID.
func Get(db *gorm.DB, id string) (*models.Cycle, error) {
	var c models.Cycle
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("cycle: get %s: %w", id, err)
	}
	return &c, nil
}

// List returns cycles matching filters, newest year first.
func List(db *gorm.DB, filters ListFilters) ([]models.Cycle, error) {
	q := db.Model(&models.Cycle{})

	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Year != 0 {
		q = q.Where("year = ?", filters.Year)
	}

	var cycles []models.Cycle
	if err := q.Order("year DESC, created_at DESC").Find(&cycles).Error; err != nil {
		return nil, fmt.Errorf("cycle: list: %w", err)
	}
	return cycles, nil
}

// UpdateStatus moves a cycle to status to. Opening a cycle without a start
// time starts its window at now.
func UpdateStatus(db *gorm.DB, id string, to models.CycleStatus, now time.Time) (*models.Cycle, error) {
	c, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	to = models.CycleStatus(strings.ToUpper(string(to)))
	if !isValidTransition(c.Status, to) {
		return nil, fmt.Errorf("%w from %q to %q; valid transitions: %v", ErrInvalidTransition, c.Status, to, ValidTransitions[c.Status])
	}

	updates := map[string]interface{}{"status": to}
	if to == models.CycleOpen && c.StartAt == nil {
		updates["start_at"] = now
		if c.DurationDays > 0 {
			updates["end_at"] = now.AddDate(0, 0, c.DurationDays)
		}
	}
	if err := db.Model(&models.Cycle{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("cycle: update %s: %w", id, err)
	}
	return Get(db, id)
}

// SetBranchScope replaces the cycle's branch scope. An empty list covers
// every branch.
func SetBranchScope(db *gorm.DB, id string, branchIDs []string) (*models.Cycle, error) {
	if _, err := Get(db, id); err != nil {
		return nil, err
	}
	scope := datatypes.JSONSlice[string](normalizeBranches(branchIDs))
	if err := db.Model(&models.Cycle{}).Where("id = ?", id).Update("branch_ids", scope).Error; err != nil {
		return nil, fmt.Errorf("cycle: set branch scope %s: %w", id, err)
	}
	return Get(db, id)
}

// isValidTransition checks whether a status transition is allowed.
func isValidTransition(from, to models.CycleStatus) bool {
	for _, v := range ValidTransitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

// normalizeBranches trims, deduplicates and sorts branch ids. The result is
// never nil so it is stored as an empty JSON list.
func normalizeBranches(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	out := []string{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
