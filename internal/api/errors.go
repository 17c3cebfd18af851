package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/tally/internal/cycle"
	"github.com/zulandar/tally/internal/decision"
	"github.com/zulandar/tally/internal/provision"
	"github.com/zulandar/tally/internal/results"
	"github.com/zulandar/tally/internal/score"
	"github.com/zulandar/tally/internal/survey"
	"github.com/zulandar/tally/internal/taskgen"
)

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	var (
		ve *results.ValidationError
		ae *survey.AnswerError
		be *taskgen.BatchError
		se *provision.ServiceError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ae),
		errors.Is(err, cycle.ErrInvalid), errors.Is(err, decision.ErrInvalidStatus),
		errors.Is(err, provision.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, taskgen.ErrNoAssignmentYear), errors.Is(err, taskgen.ErrNoBranchScope):
		return http.StatusPreconditionFailed
	case errors.Is(err, cycle.ErrNotFound), errors.Is(err, taskgen.ErrNotFound),
		errors.Is(err, survey.ErrNotFound), errors.Is(err, results.ErrNotFound),
		errors.Is(err, score.ErrNotFound), errors.Is(err, decision.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, cycle.ErrInvalidTransition), errors.Is(err, survey.ErrTaskDone),
		errors.Is(err, survey.ErrCycleClosed):
		return http.StatusConflict
	case errors.Is(err, survey.ErrNotRater):
		return http.StatusForbidden
	case errors.As(err, &se):
		return http.StatusBadGateway
	case errors.As(err, &be):
		// Committed batches stay; the message tells the caller to re-run.
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// abort writes err as a JSON error body with its mapped status.
func abort(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var ve *results.ValidationError
	var ae *survey.AnswerError
	switch {
	case errors.As(err, &ve):
		body["field"] = ve.Field
		body["error"] = ve.Message
	case errors.As(err, &ae):
		body["question_id"] = ae.QuestionID
	}
	if status == http.StatusInternalServerError {
		log.Printf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, body)
}
