package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vbonduro/opname/internal/domain"
	"github.com/vbonduro/opname/internal/media"
	"github.com/vbonduro/opname/internal/photostore"
)

var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opname_sweep_runs_total",
		Help: "Number of orphan media sweeps run",
	})

	sweepRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opname_sweep_removed_total",
		Help: "Number of orphan audit directories removed",
	})

	sweepFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "opname_sweep_failed_total",
		Help: "Number of orphan audit directories that could not be removed",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "opname_sweep_duration_seconds",
		Help:    "Duration of orphan media sweeps in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// SweepResult reports one sweep. Total is the number of orphan directories
// found; each of them is counted as either removed or failed.
type SweepResult struct {
	Removed  int           `json:"removed"`
	Failed   int           `json:"failed"`
	Total    int           `json:"total"`
	Errors   []string      `json:"errors,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

type auditIDLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Sweeper deletes audit media directories that no audit row refers to.
type Sweeper struct {
	audits auditIDLister
	files  photostore.PhotoStore
	logger *slog.Logger

	mu sync.Mutex
}

func NewSweeper(audits auditIDLister, files photostore.PhotoStore, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		audits: audits,
		files:  files,
		logger: logger.With("component", "sweep"),
	}
}

// RunOnce performs one sweep. While a sweep is running, further calls return
// immediately with Skipped set. A directory that cannot be removed is
// recorded and the sweep continues with the next one.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepResult, error) {
	if !s.mu.TryLock() {
		s.logger.Info("sweep already running, skipped")
		return &SweepResult{Skipped: true}, nil
	}
	defer s.mu.Unlock()

	start := time.Now()

	// Directories before audits, so an audit created in between is never
	// listed as a directory without its id.
	dirs, err := s.files.ListDirs(ctx, media.AuditsDir())
	if err != nil {
		return nil, domain.NewStorageError("failed to list media directories", err)
	}

	ids, err := s.audits.ListIDs(ctx)
	if err != nil {
		return nil, domain.NewStorageError("failed to list audits", err)
	}
	live := make(map[string]bool, len(ids))
	for _, id := range ids {
		live[id] = true
	}

	result := &SweepResult{}
	for _, dir := range dirs {
		if live[dir] {
			continue
		}
		result.Total++
		if err := s.files.RemoveTree(ctx, media.AuditDir(dir)); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", dir, err))
			s.logger.Error("failed to remove orphan media", "dir", dir, "error", err)
			continue
		}
		result.Removed++
		s.logger.Debug("orphan media removed", "dir", dir)
	}
	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepRemovedTotal.Add(float64(result.Removed))
	sweepFailedTotal.Add(float64(result.Failed))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	s.logger.Info("sweep complete",
		"scanned", len(dirs),
		"removed", result.Removed,
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result, nil
}
