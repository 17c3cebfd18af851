// Package taskgen derives the rating tasks a cycle should contain from the
// organization's assignment graph and inserts the ones that are missing.
package taskgen

import (
	"strings"

	"github.com/zulandar/tally/internal/models"
)

// wildcard stands in for an absent group or subject in a task identity.
const wildcard = "all"

// TaskID builds the deterministic identity of a task. Recomputing the same
// logical task always yields the same key, so the primary key doubles as
// the deduplication guard.
func TaskID(cycleID, raterID string, targetType models.TargetType, targetID, groupID, subjectID string) string {
	if groupID == "" {
		groupID = wildcard
	}
	if subjectID == "" {
		subjectID = wildcard
	}
	return strings.Join([]string{cycleID, raterID, string(targetType), targetID, groupID, subjectID}, "_")
}
