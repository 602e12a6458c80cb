package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appprocurement "github.com/erp/fulfillment/internal/application/procurement"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OverdueScanner finds open purchase orders past their expected delivery date.
// appprocurement.OverdueService implements it.
type OverdueScanner interface {
	Scan(ctx context.Context) (*appprocurement.OverdueScanResult, error)
}

// OverdueSchedulerConfig holds configuration for the overdue scan scheduler
type OverdueSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool
	// CronSchedule is a standard 5-field cron expression
	CronSchedule string
	// JobTimeout is the maximum time a single scan can run
	JobTimeout time.Duration
	// Location is the time zone the schedule is evaluated in
	Location *time.Location
}

// DefaultOverdueSchedulerConfig returns default configuration.
// Scans run at the top of every hour.
func DefaultOverdueSchedulerConfig() OverdueSchedulerConfig {
	return OverdueSchedulerConfig{
		Enabled:      true,
		CronSchedule: "0 * * * *",
		JobTimeout:   5 * time.Minute,
		Location:     time.UTC,
	}
}

// Validate checks the cron expression and timeout
func (c OverdueSchedulerConfig) Validate() error {
	if _, err := cron.ParseStandard(c.CronSchedule); err != nil {
		return fmt.Errorf("%w: cron schedule %q: %v", ErrInvalidConfig, c.CronSchedule, err)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// OverdueRun describes the outcome of one scan
type OverdueRun struct {
	Trigger     string        `json:"trigger"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Total       int           `json:"total"`
	Truncated   bool          `json:"truncated"`
	Error       string        `json:"error,omitempty"`
	TenantCount int           `json:"tenant_count"`
}

const (
	triggerCron   = "cron"
	triggerManual = "manual"
)

// OverdueScheduler runs the overdue scan on a cron schedule
type OverdueScheduler struct {
	config  OverdueSchedulerConfig
	scanner OverdueScanner
	logger  *zap.Logger

	cron     *cron.Cron
	entryID  cron.EntryID
	cancel   context.CancelFunc
	scanning atomic.Bool

	mu        sync.Mutex
	isRunning bool
	lastRun   *OverdueRun
}

// NewOverdueScheduler creates a new overdue scan scheduler
func NewOverdueScheduler(config OverdueSchedulerConfig, scanner OverdueScanner, logger *zap.Logger) *OverdueScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &OverdueScheduler{
		config:  config,
		scanner: scanner,
		logger:  logger,
	}
}

// Start registers the scan with cron and starts it
func (s *OverdueScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Overdue scheduler is disabled")
		return nil
	}
	if err := s.config.Validate(); err != nil {
		return err
	}

	// only Stop cancels in-flight scans
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := cron.New(
		cron.WithLocation(s.config.Location),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	id, err := c.AddFunc(s.config.CronSchedule, func() {
		_, _ = s.run(runCtx, triggerCron)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.Start()

	s.cron = c
	s.entryID = id
	s.cancel = cancel
	s.isRunning = true

	s.logger.Info("Overdue scheduler started",
		zap.String("cron_schedule", s.config.CronSchedule),
		zap.Time("next_run_at", c.Entry(id).Next),
	)
	return nil
}

// Stop stops scheduling and waits for a running scan to finish
func (s *OverdueScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	done := c.Stop()
	select {
	case <-done.Done():
		cancel()
		s.logger.Info("Overdue scheduler stopped")
		return nil
	case <-ctx.Done():
		cancel()
		s.logger.Warn("Overdue scheduler stop timed out")
		return ctx.Err()
	}
}

// RunNow scans immediately and waits for the result. It fails with
// ErrScanInProgress rather than overlapping a scheduled scan.
func (s *OverdueScheduler) RunNow(ctx context.Context) (*OverdueRun, error) {
	return s.run(ctx, triggerManual)
}

func (s *OverdueScheduler) run(ctx context.Context, trigger string) (*OverdueRun, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		s.logger.Warn("Overdue scan skipped, previous scan still running", zap.String("trigger", trigger))
		return nil, ErrScanInProgress
	}
	defer s.scanning.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	run := &OverdueRun{Trigger: trigger, StartedAt: time.Now()}
	result, err := s.scanner.Scan(ctx)
	run.Duration = time.Since(run.StartedAt)

	if err != nil {
		run.Error = err.Error()
		level := zap.ErrorLevel
		if errors.Is(err, context.Canceled) {
			level = zap.WarnLevel
		}
		s.logger.Log(level, "Overdue scan failed",
			zap.String("trigger", trigger),
			zap.Duration("duration", run.Duration),
			zap.Error(err),
		)
	} else {
		run.Total = result.Total
		run.Truncated = result.Truncated
		run.TenantCount = len(result.ByTenant)
		if result.Truncated {
			s.logger.Warn("Overdue scan hit batch limit",
				zap.Int("total", result.Total),
			)
		}
	}

	s.mu.Lock()
	s.lastRun = run
	s.mu.Unlock()

	return run, err
}

// GetStatus returns the current status of the scheduler
func (s *OverdueScheduler) GetStatus() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]any{
		"enabled":       s.config.Enabled,
		"is_running":    s.isRunning,
		"cron_schedule": s.config.CronSchedule,
		"scanning":      s.scanning.Load(),
		"last_run":      s.lastRun,
	}
	if s.isRunning {
		status["next_run_at"] = s.cron.Entry(s.entryID).Next
	}
	return status
}

// LastRun returns the most recent scan, or nil before the first one
func (s *OverdueScheduler) LastRun() *OverdueRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
