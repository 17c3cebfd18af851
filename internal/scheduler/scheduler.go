// Package scheduler re-runs task generation for every OPEN cycle on a cron
// schedule. Generation is idempotent, so each run only fills in tasks that
// new assignments made necessary.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/tally/internal/cycle"
	"github.com/zulandar/tally/internal/models"
	"github.com/zulandar/tally/internal/notify"
	"github.com/zulandar/tally/internal/taskgen"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler owns the cron runner and the regeneration job.
type Scheduler struct {
	db       *gorm.DB
	notifier notify.Notifier
	opts     taskgen.Options

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New creates a scheduler. notifier may be nil.
func New(db *gorm.DB, notifier notify.Notifier, opts taskgen.Options) *Scheduler {
	return &Scheduler{db: db, notifier: notifier, opts: opts}
}

// Start schedules regeneration on expr and starts the runner.
func (s *Scheduler) Start(expr string) error {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return fmt.Errorf("scheduler: parse %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler: already started")
	}
	s.cron = cron.New(cron.WithParser(cronParser))
	s.cron.Schedule(sched, cron.FuncJob(s.tick))
	s.cron.Start()
	log.Printf("scheduler: regenerating open cycles on %q, next run in %v", expr, NextRun(expr).Round(time.Second))
	return nil
}

// Stop halts the runner and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// tick runs one regeneration, skipping if the previous one is still going.
func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Printf("scheduler: previous run still in progress, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if _, err := s.RunOnce(context.Background()); err != nil {
		log.Printf("scheduler: %v", err)
	}
}

// RunOnce regenerates tasks for every OPEN cycle. A failing cycle does not
// stop the others; their errors are joined.
func (s *Scheduler) RunOnce(ctx context.Context) ([]*taskgen.Result, error) {
	cycles, err := cycle.List(s.db, cycle.ListFilters{Status: models.CycleOpen})
	if err != nil {
		return nil, fmt.Errorf("scheduler: list open cycles: %w", err)
	}

	var results []*taskgen.Result
	var errs []error
	for _, c := range cycles {
		res, err := taskgen.Generate(ctx, s.db, c.ID, s.opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("cycle %s: %w", c.ID, err))
			s.notify(ctx, notify.FailureEvent(c.ID, err))
			continue
		}
		log.Printf("scheduler: %s", res.Summary())
		results = append(results, res)
		if res.Created > 0 {
			s.notify(ctx, notify.GenerationEvent(res))
		}
	}
	return results, errors.Join(errs...)
}

func (s *Scheduler) notify(ctx context.Context, evt notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, evt); err != nil {
		log.Printf("scheduler: notify: %v", err)
	}
}

// NextRun returns the duration until expr next fires. Returns 0 on parse error.
func NextRun(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := time.Until(sched.Next(time.Now()))
	if d < 0 {
		return 0
	}
	return d
}
