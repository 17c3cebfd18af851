// Package api serves the cycle, survey, result-entry and scoring operations
// over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/tally/internal/notify"
	"github.com/zulandar/tally/internal/provision"
	"github.com/zulandar/tally/internal/taskgen"
	"gorm.io/gorm"
)

// Provisioner mints identities through the provisioning service.
type Provisioner interface {
	Provision(ctx context.Context, req provision.Request) (*provision.Account, error)
}

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB          *gorm.DB
	Port        int
	Out         io.Writer
	Generate    taskgen.Options
	Provisioner Provisioner     // optional; /provision answers 503 without it
	Notifier    notify.Notifier // optional; receives generation summaries
	Now         func() time.Time
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return errors.New("api: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: NewRouter(opts),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) *gin.Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	h := &handlers{
		db:          opts.DB,
		gen:         opts.Generate,
		provisioner: opts.Provisioner,
		notifier:    opts.Notifier,
		now:         opts.Now,
	}
	registerRoutes(router, h)
	return router
}
