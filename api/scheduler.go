/*
scheduler.go - Periodic stock audit

PURPOSE:
  Replays the movement history against every material's live stock on a
  fixed interval and logs any drift. Drift only appears when stock was
  changed outside the ledger, e.g. a manual SQL fix or a restore.

CONFIGURATION:
  - Interval: how often to audit (default 1 hour)
  - Enabled:  whether the scheduler starts at all

USAGE:
  scheduler := NewAuditScheduler(reporter, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/stockroom/reporting"
)

// AuditScheduler runs reporting audits in the background.
type AuditScheduler struct {
	Reports  *reporting.Reporter
	Logger   *slog.Logger
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastRun    time.Time
	lastReport *reporting.AuditReport
}

func NewAuditScheduler(reports *reporting.Reporter, logger *slog.Logger) *AuditScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditScheduler{
		Reports:  reports,
		Logger:   logger,
		Interval: time.Hour,
		Enabled:  true,
	}
}

// Start begins the scheduler. It audits once immediately.
func (s *AuditScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled || s.Interval <= 0 {
		s.Logger.Info("audit scheduler disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.Logger.Info("audit scheduler started", "interval", s.Interval)
}

// Stop stops the scheduler and waits for an in-flight audit to finish.
func (s *AuditScheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.Logger.Info("audit scheduler stopped")
}

func (s *AuditScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunNow(context.Background())
	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow audits immediately and records the result.
func (s *AuditScheduler) RunNow(ctx context.Context) (*reporting.AuditReport, error) {
	report, err := s.Reports.Audit(ctx)
	if err != nil {
		s.Logger.Error("stock audit failed", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.lastRun = time.Now().UTC()
	s.lastReport = report
	s.mu.Unlock()

	if report.OK() {
		s.Logger.Info("stock audit clean", "materials", len(report.Lines))
		return report, nil
	}
	for _, line := range report.Lines {
		if line.Difference == 0 {
			continue
		}
		s.Logger.Warn("stock drift detected",
			"material_id", line.MaterialID,
			"material", line.MaterialName,
			"expected", line.Expected,
			"actual", line.Actual,
			"difference", line.Difference,
		)
	}
	return report, nil
}

// Last returns the most recent audit and when it ran. The report is nil
// until the first audit completes.
func (s *AuditScheduler) Last() (time.Time, *reporting.AuditReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastReport
}
