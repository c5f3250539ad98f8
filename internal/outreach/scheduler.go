package outreach

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/robfig/cron/v3"

	"postventa/internal/audit"
	"postventa/internal/domain"
	"postventa/internal/observability"
)

// RunSummary reports one scheduler pass.
type RunSummary struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Candidates int           `json:"candidates"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"` // on cooldown
	Failed     int           `json:"failed"`
}

// Scheduler drives periodic recommendation generation. Disabled by
// default; a run always completes once started, and a tick that would
// overlap a run in progress is skipped.
type Scheduler struct {
	svc        *Service
	candidates *CandidateSource
	guard      *CooldownGuard
	cfg        SchedulerConfig
	logger     observability.Logger
	metrics    *observability.Metrics

	cron    *cron.Cron
	running atomic.Bool
}

// NewScheduler wires the scheduled runner. metrics may be nil.
func NewScheduler(svc *Service, candidates *CandidateSource, guard *CooldownGuard, cfg SchedulerConfig, logger observability.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		svc:        svc,
		candidates: candidates,
		guard:      guard,
		cfg:        cfg,
		logger:     logger.WithComponent("scheduler"),
		metrics:    metrics,
	}
}

// Start registers the cron entry and begins ticking. A disabled
// scheduler logs once and does nothing else.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("outreach scheduler disabled")
		return nil
	}
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", s.cfg.Timezone, err)
	}
	s.cron = cron.New(cron.WithLocation(loc))
	if _, err := s.cron.AddFunc(s.cfg.Cron, s.tick); err != nil {
		return fmt.Errorf("register cron %q: %w", s.cfg.Cron, err)
	}
	s.cron.Start()
	s.logger.Info("outreach scheduler started",
		"schedule", s.cfg.Cron,
		"timezone", s.cfg.Timezone,
		"daily_limit", s.cfg.DailyLimit,
		"cooldown_days", s.cfg.CooldownDays)
	return nil
}

// Stop halts the cron loop and blocks until a run in progress has
// completed, so collaborators (the notification queue in particular)
// can shut down after it without racing an in-flight run.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous outreach run still in progress, skipping tick")
		return
	}
	defer s.running.Store(false)
	s.RunOnce(context.Background())
}

// RunOnce executes one scheduler pass: refresh the candidate signal
// (best effort), filter through the cooldown guard, then generate
// sequentially with jitter between candidates. Individual failures are
// logged and skipped; the run itself never aborts.
func (s *Scheduler) RunOnce(ctx context.Context) RunSummary {
	started := s.svc.now()
	summary := RunSummary{StartedAt: started}

	if err := s.candidates.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "candidate refresh failed, using stale signal", "error", err)
	}

	entries, err := s.candidates.List(ctx, 0)
	if err != nil {
		s.logger.ErrorContext(ctx, "candidate listing failed, aborting run", "error", err)
		sentry.CaptureException(err)
		summary.Duration = s.svc.now().Sub(started)
		return summary
	}
	summary.Candidates = len(entries)

	kept, skipped, err := s.guard.Filter(ctx, entries, started)
	if err != nil {
		s.logger.ErrorContext(ctx, "cooldown filtering failed, aborting run", "error", err)
		sentry.CaptureException(err)
		summary.Duration = s.svc.now().Sub(started)
		return summary
	}
	summary.Skipped = skipped

	for i, entry := range kept {
		if i > 0 {
			time.Sleep(s.jitter())
		}
		_, err := s.svc.Generate(ctx, domain.GenerateRequest{
			CustomerID: entry.CustomerID,
			TopN:       s.cfg.TopN,
			Notify:     s.cfg.Notify,
		}, audit.ActorSystem)
		if err != nil {
			summary.Failed++
			s.logger.WarnContext(ctx, "candidate generation failed",
				"customer_id", entry.CustomerID,
				"reason", entry.Reason,
				"error", err)
			sentry.CaptureException(err)
			continue
		}
		summary.Processed++
	}

	summary.Duration = s.svc.now().Sub(started)
	s.metrics.RecordOutreachRun(summary.Processed, summary.Skipped, summary.Failed)
	s.logger.Info("outreach run complete",
		"candidates", summary.Candidates,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration.Round(time.Millisecond).String())
	return summary
}

// jitter spaces out sequential generations so downstream collaborators
// (LLM, SMTP) are not hit in a burst.
func (s *Scheduler) jitter() time.Duration {
	min, max := s.cfg.JitterMin, s.cfg.JitterMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
