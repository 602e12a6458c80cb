package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrProcessorRunning is returned by Start on a processor that is already running
var ErrProcessorRunning = errors.New("outbox processor already running")

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// RelayObserver is notified about every relay attempt
type RelayObserver interface {
	EventRelayed(ctx context.Context, eventType string)
	EventFailed(ctx context.Context, eventType string, dead bool)
}

// RelayStats summarizes one ProcessOnce pass
type RelayStats struct {
	Relayed int
	Failed  int
	Dead    int
}

func (s *RelayStats) add(o RelayStats) {
	s.Relayed += o.Relayed
	s.Failed += o.Failed
	s.Dead += o.Dead
}

// OutboxProcessor relays committed outbox rows to the event bus. Procurement
// events reach the projector only through this relay, never straight from
// the request that produced them.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger
	observer   RelayObserver

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		config:     config,
		logger:     logger.Named("outbox"),
	}
}

// SetObserver installs a relay observer, typically the metrics recorder
func (p *OutboxProcessor) SetObserver(o RelayObserver) {
	p.observer = o
}

// Start launches the relay loop and, when enabled, the cleanup loop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrProcessorRunning
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.every(ctx, p.config.PollInterval, func(ctx context.Context) { p.ProcessOnce(ctx) })
	if p.config.CleanupEnabled {
		p.every(ctx, p.config.CleanupInterval, p.cleanup)
	}

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Bool("cleanup", p.config.CleanupEnabled),
	)
	return nil
}

// Stop cancels the loops and waits for the batch in flight, bounded by ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// every runs fn on each tick of interval until ctx is done
func (p *OutboxProcessor) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// ProcessOnce relays one batch of new entries, then one batch of failed
// entries whose retry time has passed.
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) RelayStats {
	var stats RelayStats

	pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find pending entries", zap.Error(err))
		return stats
	}
	stats.add(p.relayBatch(ctx, pending))

	retryable, err := p.repo.FindRetryable(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find retryable entries", zap.Error(err))
		return stats
	}
	stats.add(p.relayBatch(ctx, retryable))

	if stats.Failed > 0 {
		p.logger.Warn("outbox batch finished with failures",
			zap.Int("relayed", stats.Relayed),
			zap.Int("failed", stats.Failed),
			zap.Int("dead", stats.Dead),
		)
	}
	return stats
}

// relayBatch claims entries so concurrent relays never publish a row twice,
// then publishes the claimed rows in order.
func (p *OutboxProcessor) relayBatch(ctx context.Context, entries []*shared.OutboxEntry) RelayStats {
	var stats RelayStats
	if len(entries) == 0 {
		return stats
	}
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}

	claimed, err := p.repo.ClaimForProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("failed to claim outbox entries", zap.Int("count", len(ids)), zap.Error(err))
		return stats
	}

	for _, entry := range claimed {
		if err := p.relay(ctx, entry); err != nil {
			p.recordFailure(ctx, entry, err)
			stats.Failed++
			if entry.IsDead() {
				stats.Dead++
			}
			continue
		}
		if p.markSent(ctx, entry) {
			stats.Relayed++
		}
	}
	return stats
}

func (p *OutboxProcessor) relay(ctx context.Context, entry *shared.OutboxEntry) error {
	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return err
	}
	return p.bus.Publish(ctx, event)
}

func (p *OutboxProcessor) markSent(ctx context.Context, entry *shared.OutboxEntry) bool {
	entry.MarkSent()
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("failed to mark entry as sent",
			zap.String("event_id", entry.EventID.String()),
			zap.Error(err),
		)
		return false
	}
	if p.observer != nil {
		p.observer.EventRelayed(ctx, entry.EventType)
	}
	p.logger.Debug("event relayed",
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("order_id", entry.AggregateID.String()),
	)
	return true
}

func (p *OutboxProcessor) recordFailure(ctx context.Context, entry *shared.OutboxEntry, cause error) {
	entry.MarkFailed(cause.Error())
	fields := []zap.Field{
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("order_id", entry.AggregateID.String()),
		zap.Int("retry_count", entry.RetryCount),
		zap.Error(cause),
	}
	if entry.IsDead() {
		p.logger.Warn("event moved to dead letter queue", fields...)
	} else {
		p.logger.Error("failed to relay event", fields...)
	}

	if p.observer != nil {
		p.observer.EventFailed(ctx, entry.EventType, entry.IsDead())
	}
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("failed to update entry", zap.String("event_id", entry.EventID.String()), zap.Error(err))
	}
}

func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to cleanup old entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up old outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
