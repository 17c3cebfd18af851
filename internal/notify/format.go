package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zulandar/tally/internal/taskgen"
)

// GenerationEvent formats a task generation result. Runs with warnings or
// diagnostics are raised as warnings.
func GenerationEvent(res *taskgen.Result) Event {
	evt := Event{
		Title:    fmt.Sprintf("Tasks generated for cycle %s", res.CycleID),
		Body:     res.Summary(),
		Severity: "success",
		Fields: []Field{
			{Name: "Created", Value: strconv.Itoa(res.Created), Short: true},
			{Name: "Existing", Value: strconv.Itoa(res.Existing), Short: true},
		},
	}
	if res.AssignmentYear != 0 {
		evt.Fields = append(evt.Fields, Field{Name: "Assignment year", Value: strconv.Itoa(res.AssignmentYear), Short: true})
	}
	if res.Skipped > 0 {
		evt.Fields = append(evt.Fields, Field{Name: "Skipped", Value: strconv.Itoa(res.Skipped), Short: true})
	}
	if len(res.Warnings) > 0 || len(res.Diagnostics) > 0 {
		evt.Severity = "warning"
		notes := append(append([]string{}, res.Warnings...), res.Diagnostics...)
		evt.Fields = append(evt.Fields, Field{Name: "Notes", Value: strings.Join(notes, "\n")})
	}
	return evt
}

// FailureEvent formats a failed generation run.
func FailureEvent(cycleID string, err error) Event {
	return Event{
		Title:    fmt.Sprintf("Task generation failed for cycle %s", cycleID),
		Body:     err.Error(),
		Severity: "error",
	}
}
