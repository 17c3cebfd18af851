package taskgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/tally/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the cycle does not exist.
var ErrNotFound = errors.New("taskgen: cycle not found")

// Snapshot is one consistent view of everything generation reads.
type Snapshot struct {
	Cycle      models.Cycle
	Users      []models.User
	Students   []models.Student
	Teachers   []models.Teacher
	Groups     []models.Group
	Subjects   []models.Subject
	Teaching   []models.TeachingAssignment
	Management []models.ManagementAssignment
	Existing   map[string]struct{}
}

// LoadSnapshot reads the cycle, the organization, and the ids of tasks
// already stored for the cycle inside a single read transaction.
func LoadSnapshot(ctx context.Context, db *gorm.DB, cycleID string) (*Snapshot, error) {
	snap := &Snapshot{Existing: make(map[string]struct{})}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", cycleID).First(&snap.Cycle).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, cycleID)
			}
			return fmt.Errorf("taskgen: load cycle %s: %w", cycleID, err)
		}

		reads := []struct {
			name string
			dest interface{}
		}{
			{"users", &snap.Users},
			{"students", &snap.Students},
			{"teachers", &snap.Teachers},
			{"groups", &snap.Groups},
			{"subjects", &snap.Subjects},
			{"teaching assignments", &snap.Teaching},
			{"management assignments", &snap.Management},
		}
		for _, r := range reads {
			if err := tx.Order("id ASC").Find(r.dest).Error; err != nil {
				return fmt.Errorf("taskgen: load %s: %w", r.name, err)
			}
		}

		var ids []string
		if err := tx.Model(&models.Task{}).Where("cycle_id = ?", cycleID).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("taskgen: load existing tasks: %w", err)
		}
		for _, id := range ids {
			snap.Existing[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
