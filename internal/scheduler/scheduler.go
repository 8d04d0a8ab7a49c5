package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/dma-labs/ajna-dma/internal/logger"
	"github.com/robfig/cron/v3"
)

var schedulerLogger = logger.GetForComponent("scheduler")

// Pruner drops stale snapshots and reports how many went.
type Pruner interface {
	Prune(ctx context.Context, retention uint64) (int64, error)
}

// Scheduler runs the background maintenance jobs of the service.
type Scheduler struct {
	Cron      *cron.Cron
	Pruner    Pruner
	Retention uint64
	Ctx       context.Context

	// OnPruned, when set, receives the count of each pruning run.
	OnPruned func(int64)
}

func NewScheduler(ctx context.Context, pruner Pruner, retention uint64) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Pruner:    pruner,
		Retention: retention,
		Ctx:       ctx,
	}
}

// RegisterAll registers the snapshot pruning job on pruneCron (six fields, seconds first).
func (s *Scheduler) RegisterAll(pruneCron string) error {
	if s.Pruner == nil {
		return fmt.Errorf("register prune task: no pruner")
	}
	if _, err := s.Cron.AddFunc(pruneCron, s.pruneTask); err != nil {
		return fmt.Errorf("register prune task: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	schedulerLogger.Info().Int("jobs", len(s.Cron.Entries())).Msg("Scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	schedulerLogger.Info().Msg("Scheduler stopped")
}

// RunPruneNow executes the pruning job immediately.
func (s *Scheduler) RunPruneNow() {
	s.pruneTask()
}

func (s *Scheduler) pruneTask() {
	ctx, cancel := context.WithTimeout(s.Ctx, 30*time.Second)
	defer cancel()

	pruned, err := s.Pruner.Prune(ctx, s.Retention)
	if err != nil {
		schedulerLogger.Error().Err(err).Msg("Snapshot pruning failed")
		return
	}
	if s.OnPruned != nil {
		s.OnPruned(pruned)
	}
	schedulerLogger.Debug().Int64("pruned", pruned).Uint64("retention", s.Retention).Msg("Snapshot pruning done")
}
