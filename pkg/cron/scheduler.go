// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher reloads an in-memory view from its backing store.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	synonyms  Refresher
	spec      string
	timeout   time.Duration
	logger    *slog.Logger
	refreshes atomic.Int64
	failures  atomic.Int64
}

// NewScheduler creates a scheduler that refreshes synonyms on spec
// (standard 5-field format).
func NewScheduler(synonyms Refresher, spec string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		synonyms: synonyms,
		spec:     spec,
		timeout:  time.Minute,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.refreshSynonyms)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("synonym_refresh", s.spec),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	refreshes, failures := s.Stats()
	s.logger.Info("cron scheduler stopping",
		slog.Int64("synonym_refreshes", refreshes),
		slog.Int64("synonym_refresh_failures", failures),
	)
	return s.cron.Stop()
}

// Stats returns completed and failed refresh counts.
func (s *Scheduler) Stats() (refreshes, failures int64) {
	return s.refreshes.Load(), s.failures.Load()
}

func (s *Scheduler) refreshSynonyms() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.synonyms.Refresh(ctx); err != nil {
		s.failures.Add(1)
		s.logger.Warn("synonym refresh failed", slog.Any("error", err))
		return
	}
	s.refreshes.Add(1)
	s.logger.Debug("synonym refresh completed", slog.Duration("took", time.Since(start)))
}
