package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/tally/internal/cycle"
	"github.com/zulandar/tally/internal/decision"
	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/notify"
	"github.com/zulandar/tally/internal/provision"
	"github.com/zulandar/tally/internal/results"
	"github.com/zulandar/tally/internal/score"
	"github.com/zulandar/tally/internal/survey"
	"github.com/zulandar/tally/internal/taskgen"
	"gorm.io/gorm"
)

type handlers struct {
	db          *gorm.DB
	gen         taskgen.Options
	provisioner Provisioner
	notifier    notify.Notifier
	now         func() time.Time
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/healthz", h.health)

	v1 := router.Group("/api/v1")

	v1.POST("/cycles", h.createCycle)
	v1.GET("/cycles", h.listCycles)
	v1.GET("/cycles/:id", h.getCycle)
	v1.POST("/cycles/:id/status", h.updateCycleStatus)
	v1.PUT("/cycles/:id/scope", h.setCycleScope)
	v1.GET("/cycles/:id/questions", h.listQuestionSets)
	v1.GET("/cycles/:id/questions/:flow", h.getFlowQuestions)
	v1.PUT("/cycles/:id/questions/:flow", h.setQuestions)
	v1.POST("/cycles/:id/questions/copy", h.copyQuestions)
	v1.POST("/cycles/:id/generate", h.generate)
	v1.GET("/cycles/:id/tasks", h.listTasks)

	v1.POST("/tasks/:id/submit", h.submit)

	v1.PUT("/cycles/:id/biq", h.saveBiq)
	v1.PUT("/cycles/:id/exam", h.saveExam)
	v1.PUT("/cycles/:id/portfolio", h.savePortfolio)
	v1.POST("/cycles/:id/achievements", h.addAchievement)
	v1.GET("/cycles/:id/teachers/:teacher/achievements", h.listAchievements)
	v1.DELETE("/achievements/:id", h.deleteAchievement)

	v1.GET("/cycles/:id/scores", h.listScores)
	v1.GET("/cycles/:id/scores/:teacher", h.getScore)
	v1.GET("/cycles/:id/risk", h.getRisk)

	v1.PUT("/cycles/:id/decisions/:teacher", h.saveDecision)
	v1.GET("/cycles/:id/decisions", h.listDecisions)

	v1.POST("/provision", h.provision)
}

// badRequest rejects a body that failed to bind.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *handlers) health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createCycleBody struct {
	ID           string     `json:"id"`
	Year         int        `json:"year" binding:"required"`
	BranchIDs    []string   `json:"branch_ids"`
	StartAt      *time.Time `json:"start_at"`
	DurationDays int        `json:"duration_days"`
	ThresholdY   float64    `json:"threshold_y"`
	ThresholdP   float64    `json:"threshold_p"`
}

func (h *handlers) createCycle(c *gin.Context) {
	var body createCycleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	cy, err := cycle.Create(h.db, cycle.CreateOpts{
		ID:           body.ID,
		Year:         body.Year,
		BranchIDs:    body.BranchIDs,
		StartAt:      body.StartAt,
		DurationDays: body.DurationDays,
		ThresholdY:   body.ThresholdY,
		ThresholdP:   body.ThresholdP,
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, cy)
}

func (h *handlers) listCycles(c *gin.Context) {
	filters := cycle.ListFilters{Status: models.CycleStatus(c.Query("status"))}
	if y := c.Query("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			badRequest(c, err)
			return
		}
		filters.Year = year
	}
	cycles, err := cycle.List(h.db, filters)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cycles)
}

func (h *handlers) getCycle(c *gin.Context) {
	cy, err := cycle.Get(h.db, c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cy)
}

func (h *handlers) updateCycleStatus(c *gin.Context) {
	var body struct {
		Status models.CycleStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	cy, err := cycle.UpdateStatus(h.db, c.Param("id"), body.Status, h.now())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cy)
}

func (h *handlers) setCycleScope(c *gin.Context) {
	var body struct {
		BranchIDs []string `json:"branch_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	cy, err := cycle.SetBranchScope(h.db, c.Param("id"), body.BranchIDs)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, cy)
}

func (h *handlers) listQuestionSets(c *gin.Context) {
	sets, err := cycle.QuestionSets(h.db, c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sets)
}

// getFlowQuestions returns the questions a flow's tasks ask in the cycle.
func (h *handlers) getFlowQuestions(c *gin.Context) {
	if _, err := cycle.Get(h.db, c.Param("id")); err != nil {
		abort(c, err)
		return
	}
	flow := models.Flow(c.Param("flow"))
	if !flow.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown flow " + string(flow)})
		return
	}
	questions, err := survey.Questions(h.db, c.Param("id"), flow)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

func (h *handlers) setQuestions(c *gin.Context) {
	var body struct {
		QuestionIDs []string `json:"question_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	set, err := cycle.SetQuestions(h.db, c.Param("id"), models.Flow(c.Param("flow")), body.QuestionIDs, h.now())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *handlers) copyQuestions(c *gin.Context) {
	var body struct {
		From string `json:"from"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
	}
	from, sets, err := cycle.CopyQuestions(h.db, c.Param("id"), body.From, h.now())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "sets": sets})
}

type generateResponse struct {
	CycleID        string   `json:"cycle_id"`
	Created        int      `json:"created"`
	Existing       int      `json:"existing"`
	Skipped        int      `json:"skipped"`
	AssignmentYear int      `json:"assignment_year"`
	ManagementYear int      `json:"management_year,omitempty"`
	Warnings       []string `json:"warnings"`
	Diagnostics    []string `json:"diagnostics"`
}

func (h *handlers) generate(c *gin.Context) {
	opts := h.gen
	if c.Query("self") == "true" {
		opts.IncludeSelf = true
	}
	res, err := taskgen.Generate(c.Request.Context(), h.db, c.Param("id"), opts)
	if err != nil {
		abort(c, err)
		return
	}
	if h.notifier != nil && res.Created > 0 {
		if err := h.notifier.Notify(c.Request.Context(), notify.GenerationEvent(res)); err != nil {
			c.Error(err)
		}
	}
	resp := generateResponse{
		CycleID:        res.CycleID,
		Created:        res.Created,
		Existing:       res.Existing,
		Skipped:        res.Skipped,
		AssignmentYear: res.AssignmentYear,
		ManagementYear: res.ManagementYear,
		Warnings:       nonNil(res.Warnings),
		Diagnostics:    nonNil(res.Diagnostics),
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) listTasks(c *gin.Context) {
	tasks, err := taskgen.ListTasks(h.db, taskgen.TaskFilters{
		CycleID:  c.Param("id"),
		RaterID:  c.Query("rater_id"),
		TargetID: c.Query("target_id"),
		BranchID: c.Query("branch_id"),
		Status:   models.TaskStatus(c.Query("status")),
		Flow:     models.Flow(c.Query("flow")),
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

type submitBody struct {
	RaterID string            `json:"rater_id" binding:"required"`
	Answers map[string]string `json:"answers" binding:"required"`
}

func (h *handlers) submit(c *gin.Context) {
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	sub, err := survey.Submit(h.db, c.Param("id"), body.RaterID, body.Answers, h.now())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *handlers) saveBiq(c *gin.Context) {
	var e results.BiqEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c, err)
		return
	}
	e.CycleID = c.Param("id")
	row, err := results.SaveBiq(h.db, e)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *handlers) saveExam(c *gin.Context) {
	var e results.ExamEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c, err)
		return
	}
	e.CycleID = c.Param("id")
	row, err := results.SaveExam(h.db, e)
	if err != nil {
		abort(c, err)
		return
	}
	if row == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *handlers) savePortfolio(c *gin.Context) {
	var e results.PortfolioEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c, err)
		return
	}
	e.CycleID = c.Param("id")
	row, err := results.SavePortfolio(h.db, e)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *handlers) addAchievement(c *gin.Context) {
	var e results.AchievementEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		badRequest(c, err)
		return
	}
	e.CycleID = c.Param("id")
	row, err := results.AddAchievement(h.db, e)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *handlers) listAchievements(c *gin.Context) {
	rows, err := results.ListAchievements(h.db, c.Param("id"), c.Param("teacher"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) deleteAchievement(c *gin.Context) {
	if err := results.DeleteAchievement(h.db, c.Param("id")); err != nil {
		abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) listScores(c *gin.Context) {
	rows, err := score.CollectAll(h.db, c.Param("id"), c.Query("branch_id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) getScore(c *gin.Context) {
	b, err := score.Collect(h.db, c.Param("id"), c.Param("teacher"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handlers) getRisk(c *gin.Context) {
	r, err := score.Risk(h.db, c.Param("id"), c.Query("branch_id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type decisionBody struct {
	Status    models.DecisionStatus `json:"status"`
	BranchID  string                `json:"branch_id"`
	Note      string                `json:"note"`
	DecidedBy string                `json:"decided_by"`
}

func (h *handlers) saveDecision(c *gin.Context) {
	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	d, err := decision.Save(h.db, decision.SaveOpts{
		CycleID:   c.Param("id"),
		TeacherID: c.Param("teacher"),
		BranchID:  body.BranchID,
		Status:    body.Status,
		Note:      body.Note,
		DecidedBy: body.DecidedBy,
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handlers) listDecisions(c *gin.Context) {
	rows, err := decision.List(h.db, c.Param("id"), decision.ListFilters{
		BranchID: c.Query("branch_id"),
		Status:   models.DecisionStatus(c.Query("status")),
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *handlers) provision(c *gin.Context) {
	if h.provisioner == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": provision.ErrNotConfigured.Error()})
		return
	}
	var req provision.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	acct, err := h.provisioner.Provision(c.Request.Context(), req)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, acct)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
