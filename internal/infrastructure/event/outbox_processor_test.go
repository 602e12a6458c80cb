package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockOutboxRepository is an in-memory OutboxRepository for processor tests
type mockOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*shared.OutboxEntry
	claimFn func(ids []uuid.UUID) ([]*shared.OutboxEntry, error)
	deleted int64
}

func newMockOutboxRepository() *mockOutboxRepository {
	return &mockOutboxRepository{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *mockOutboxRepository) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *mockOutboxRepository) FindPending(_ context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return r.filter(limit, func(e *shared.OutboxEntry) bool { return e.Status == shared.OutboxStatusPending }), nil
}

func (r *mockOutboxRepository) FindRetryable(_ context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.filter(limit, func(e *shared.OutboxEntry) bool {
		return e.Status == shared.OutboxStatusFailed && e.NextRetryAt != nil && !e.NextRetryAt.After(before)
	}), nil
}

func (r *mockOutboxRepository) filter(limit int, keep func(*shared.OutboxEntry) bool) []*shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, e := range r.entries {
		if keep(e) && len(out) < limit {
			out = append(out, e)
		}
	}
	return out
}

func (r *mockOutboxRepository) ClaimForProcessing(_ context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if r.claimFn != nil {
		return r.claimFn(ids)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, id := range ids {
		if e, ok := r.entries[id]; ok && e.MarkProcessing() == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *mockOutboxRepository) Update(_ context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
	return nil
}

func (r *mockOutboxRepository) DeleteSentBefore(context.Context, time.Time) (int64, error) {
	return r.deleted, nil
}

func (r *mockOutboxRepository) CountByStatus(context.Context) (map[shared.OutboxStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *mockOutboxRepository) get(id uuid.UUID) shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.entries[id]
}

// countingObserver records relay outcomes
type countingObserver struct {
	mu      sync.Mutex
	relayed int
	failed  int
	dead    int
}

func (o *countingObserver) EventRelayed(context.Context, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.relayed++
}

func (o *countingObserver) EventFailed(_ context.Context, _ string, dead bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
	if dead {
		o.dead++
	}
}

func newProcessorFixture(t *testing.T) (*OutboxProcessor, *mockOutboxRepository, *InMemoryEventBus, *EventSerializer) {
	t.Helper()
	logger := zap.NewNop()
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", func() shared.DomainEvent { return &testEvent{} })
	repo := newMockOutboxRepository()
	bus := NewInMemoryEventBus(logger)
	p := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), logger)
	return p, repo, bus, serializer
}

func saveTestEvent(t *testing.T, repo *mockOutboxRepository, serializer *EventSerializer, eventType string) *shared.OutboxEntry {
	t.Helper()
	event := newTestEvent(eventType, uuid.New())
	payload, err := serializer.Serialize(event)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(event, payload)
	require.NoError(t, repo.Save(context.Background(), entry))
	return entry
}

func TestOutboxProcessor_RelaysPendingEntries(t *testing.T) {
	p, repo, bus, serializer := newProcessorFixture(t)
	observer := &countingObserver{}
	p.SetObserver(observer)
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	entry := saveTestEvent(t, repo, serializer, "TestEvent")

	stats := p.ProcessOnce(context.Background())
	assert.Equal(t, RelayStats{Relayed: 1}, stats)

	require.Len(t, handler.getHandled(), 1)
	assert.Equal(t, entry.EventID, handler.getHandled()[0].EventID())
	stored := repo.get(entry.ID)
	assert.Equal(t, shared.OutboxStatusSent, stored.Status)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, 1, observer.relayed)
}

func TestOutboxProcessor_HandlerFailureSchedulesRetry(t *testing.T) {
	p, repo, bus, serializer := newProcessorFixture(t)
	observer := &countingObserver{}
	p.SetObserver(observer)
	handler := newTestHandler("TestEvent")
	handler.setError(errors.New("projection store down"))
	bus.Subscribe(handler)

	entry := saveTestEvent(t, repo, serializer, "TestEvent")

	stats := p.ProcessOnce(context.Background())
	assert.Equal(t, RelayStats{Failed: 1}, stats)

	stored := repo.get(entry.ID)
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "projection store down", stored.LastError)
	require.NotNil(t, stored.NextRetryAt)
	assert.Equal(t, 1, observer.failed)
	assert.Zero(t, observer.dead)
}

func TestOutboxProcessor_DeadAfterMaxRetries(t *testing.T) {
	p, repo, _, _ := newProcessorFixture(t)
	observer := &countingObserver{}
	p.SetObserver(observer)

	event := newTestEvent("UnregisteredEvent", uuid.New())
	entry := shared.NewOutboxEntry(event, []byte(`{}`))
	entry.MaxRetries = 1
	require.NoError(t, repo.Save(context.Background(), entry))

	stats := p.ProcessOnce(context.Background())
	assert.Equal(t, RelayStats{Failed: 1, Dead: 1}, stats)

	stored := repo.get(entry.ID)
	assert.Equal(t, shared.OutboxStatusDead, stored.Status)
	assert.Contains(t, stored.LastError, "unknown event type")
	assert.Equal(t, 1, observer.dead)
}

func TestOutboxProcessor_SkipsEntriesClaimedElsewhere(t *testing.T) {
	p, repo, bus, serializer := newProcessorFixture(t)
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)
	repo.claimFn = func([]uuid.UUID) ([]*shared.OutboxEntry, error) { return nil, nil }

	saveTestEvent(t, repo, serializer, "TestEvent")
	p.ProcessOnce(context.Background())

	assert.Empty(t, handler.getHandled())
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	p, repo, bus, serializer := newProcessorFixture(t)
	p.config.PollInterval = 10 * time.Millisecond
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)
	saveTestEvent(t, repo, serializer, "TestEvent")

	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrProcessorRunning)
	assert.Eventually(t, func() bool { return len(handler.getHandled()) == 1 }, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	require.NoError(t, p.Stop(stopCtx))

	// a stopped processor can be started again
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop(stopCtx))
}

func TestDefaultOutboxProcessorConfig(t *testing.T) {
	config := DefaultOutboxProcessorConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.True(t, config.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, config.CleanupRetention)
	assert.Equal(t, time.Hour, config.CleanupInterval)
}
