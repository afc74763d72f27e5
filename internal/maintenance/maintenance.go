// Package maintenance schedules the background cleanup jobs.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/medrevise/medrevise/internal/logger"
	"github.com/medrevise/medrevise/internal/quiz"
)

type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Add registers a job under a cron spec. Jobs must be added before Start.
func (s *Scheduler) Add(spec string, job func()) error {
	_, err := s.cron.AddFunc(spec, job)
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SessionPruner drops in-memory sessions nobody has touched for maxIdle.
func SessionPruner(reg *quiz.Registry, maxIdle time.Duration) func() {
	return func() {
		if n := reg.PruneIdle(maxIdle); n > 0 {
			logger.Infof("maintenance: pruned %d idle sessions", n)
		}
	}
}

type activityPruner interface {
	PruneBefore(ctx context.Context, cutoff int64) (int64, error)
}

// ActivityPruner deletes activity rows older than the retention window.
func ActivityPruner(log activityPruner, retention time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cutoff := time.Now().Add(-retention).Unix()
		n, err := log.PruneBefore(ctx, cutoff)
		if err != nil {
			logger.Errorf("maintenance: prune activity: %v", err)
			return
		}
		if n > 0 {
			logger.Infof("maintenance: pruned %d activity rows", n)
		}
	}
}
