/*
scheduler.go - Periodic allocation audit

PURPOSE:
  Re-checks every payment type on a cron schedule and reports any stored
  share that no longer fits its pool. Creates and updates already enforce
  the cap transactionally; the audit is how an operator finds out if
  something slipped past (manual SQL, a store without serialisable writes).

DESIGN:
  - robfig/cron with panic recovery, logging through slog
  - Each breach is logged at warn and published as allocation.breach
  - The last run is kept for the admin endpoint

USAGE:
  scheduler := NewAuditScheduler(store, publisher, exchange, logger)
  if err := scheduler.Start("@every 1h"); err != nil { ... }
  // ... later
  <-scheduler.Stop().Done()

SEE ALSO:
  - allocation/audit.go: the check itself
  - handlers.go: RunAudit endpoint (manual run)
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/revenue-engine/allocation"
	"github.com/warp/revenue-engine/beneficiary"
	"github.com/warp/revenue-engine/ledger"
)

// EventAllocationBreach is the routing key of audit breach events.
const EventAllocationBreach = "allocation.breach"

// AuditRun is the outcome of one audit pass.
type AuditRun struct {
	StartedAt time.Time           `json:"startedAt"`
	Duration  time.Duration       `json:"duration"`
	Breaches  []allocation.Breach `json:"breaches"`
	Error     string              `json:"error,omitempty"`
}

// AuditScheduler runs allocation.Audit on a cron schedule.
type AuditScheduler struct {
	store     ledger.Store
	publisher beneficiary.Publisher
	exchange  string
	logger    *slog.Logger
	cron      *cron.Cron

	mu      sync.Mutex
	lastRun *AuditRun
}

// NewAuditScheduler creates a scheduler. publisher may be nil.
func NewAuditScheduler(store ledger.Store, publisher beneficiary.Publisher, exchange string, logger *slog.Logger) *AuditScheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &AuditScheduler{
		store:     store,
		publisher: publisher,
		exchange:  exchange,
		logger:    logger,
		cron:      cron.New(cron.WithChain(cron.Recover(cronLogger))),
	}
}

// Start registers the audit job and starts the scheduler. An empty schedule
// leaves the scheduler idle.
func (s *AuditScheduler) Start(schedule string) error {
	if schedule == "" {
		s.logger.Info("allocation audit disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunNow(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduled allocation audit", "schedule", schedule)
	return nil
}

// Stop stops the scheduler. The returned context is done once a running
// audit finishes.
func (s *AuditScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunNow runs one audit pass synchronously.
func (s *AuditScheduler) RunNow(ctx context.Context) AuditRun {
	run := AuditRun{StartedAt: time.Now().UTC()}

	breaches, err := allocation.Audit(ctx, s.store)
	run.Duration = time.Since(run.StartedAt)
	run.Breaches = breaches
	if err != nil {
		run.Error = err.Error()
		s.logger.Error("allocation audit failed", "error", err)
	}

	for _, b := range breaches {
		s.logger.Warn("allocation breach",
			"payment_type", b.PaymentType, "beneficiary", b.Beneficiary, "total", b.Total.String())
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.Publish(ctx, s.exchange, EventAllocationBreach, b); err != nil {
			s.logger.Warn("failed to publish allocation breach", "error", err)
		}
	}
	if err == nil {
		s.logger.Info("allocation audit complete", "breaches", len(breaches), "duration", run.Duration)
	}

	s.mu.Lock()
	s.lastRun = &run
	s.mu.Unlock()
	return run
}

// LastRun returns the most recent audit, or nil before the first run.
func (s *AuditScheduler) LastRun() *AuditRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	run := *s.lastRun
	return &run
}
