// Package scheduler runs the recurring jobs of the attendance service.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultOpenDaySchedule opens each weekday at 06:00 school time.
const DefaultOpenDaySchedule = "0 6 * * 1-5"

// DayOpener creates the day's Absent records.
type DayOpener interface {
	OpenDay(ctx context.Context) (int, error)
}

// Scheduler wraps a cron runner in the school's time zone.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a scheduler whose jobs never overlap with themselves.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// AddOpenDay registers opener on spec.
func (s *Scheduler) AddOpenDay(spec string, opener DayOpener) error {
	if spec == "" {
		spec = DefaultOpenDaySchedule
	}
	_, err := s.cron.AddFunc(spec, func() { RunOpenDay(opener) })
	if err != nil {
		return fmt.Errorf("open day schedule %q: %w", spec, err)
	}
	log.Printf("scheduler: open day registered schedule=%q", spec)
	return nil
}

// RunOpenDay runs one open-day pass with a bounded deadline.
func RunOpenDay(opener DayOpener) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	n, err := opener.OpenDay(ctx)
	if err != nil {
		log.Printf("scheduler: open day failed: %v", err)
		return
	}
	log.Printf("scheduler: open day created %d records", n)
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
