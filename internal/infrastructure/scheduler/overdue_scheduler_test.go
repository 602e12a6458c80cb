package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	appprocurement "github.com/erp/fulfillment/internal/application/procurement"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockOverdueScanner struct {
	mock.Mock
}

func (m *MockOverdueScanner) Scan(ctx context.Context) (*appprocurement.OverdueScanResult, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*appprocurement.OverdueScanResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestDefaultOverdueSchedulerConfig(t *testing.T) {
	cfg := DefaultOverdueSchedulerConfig()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "0 * * * *", cfg.CronSchedule)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestOverdueSchedulerConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		timeout  time.Duration
		wantErr  bool
	}{
		{name: "hourly", schedule: "0 * * * *", timeout: time.Minute},
		{name: "every 15 minutes", schedule: "*/15 * * * *", timeout: time.Minute},
		{name: "descriptor", schedule: "@daily", timeout: time.Minute},
		{name: "six fields", schedule: "0 0 * * * *", timeout: time.Minute, wantErr: true},
		{name: "garbage", schedule: "often", timeout: time.Minute, wantErr: true},
		{name: "empty", schedule: "", timeout: time.Minute, wantErr: true},
		{name: "zero timeout", schedule: "0 * * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := OverdueSchedulerConfig{CronSchedule: tt.schedule, JobTimeout: tt.timeout}.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOverdueScheduler_RunNow(t *testing.T) {
	scanner := new(MockOverdueScanner)
	scanner.On("Scan", mock.Anything).Return(&appprocurement.OverdueScanResult{
		AsOf:      time.Now(),
		Total:     3,
		ByTenant:  map[uuid.UUID]int{uuid.New(): 2, uuid.New(): 1},
		Truncated: true,
	}, nil).Once()

	core, logs := observer.New(zapcore.WarnLevel)
	s := NewOverdueScheduler(DefaultOverdueSchedulerConfig(), scanner, zap.New(core))
	assert.Nil(t, s.LastRun())

	run, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, triggerManual, run.Trigger)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 2, run.TenantCount)
	assert.True(t, run.Truncated)
	assert.Same(t, run, s.LastRun())
	assert.Equal(t, 1, logs.FilterMessage("Overdue scan hit batch limit").Len())
	scanner.AssertExpectations(t)
}

func TestOverdueScheduler_RunNowAppliesTimeout(t *testing.T) {
	scanner := new(MockOverdueScanner)
	scanner.On("Scan", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()

	cfg := DefaultOverdueSchedulerConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	s := NewOverdueScheduler(cfg, scanner, nil)

	run, err := s.RunNow(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, run)
	assert.NotEmpty(t, run.Error)
	assert.GreaterOrEqual(t, run.Duration, cfg.JobTimeout)
}

func TestOverdueScheduler_NoOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	scanner := new(MockOverdueScanner)
	scanner.On("Scan", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&appprocurement.OverdueScanResult{}, nil).Once()

	s := NewOverdueScheduler(DefaultOverdueSchedulerConfig(), scanner, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.RunNow(context.Background())
		errCh <- err
	}()
	<-started

	_, err := s.RunNow(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)
	assert.Equal(t, true, s.GetStatus()["scanning"])

	close(release)
	assert.NoError(t, <-errCh)
	scanner.AssertExpectations(t)
}

func TestOverdueScheduler_FailedScanIsRecorded(t *testing.T) {
	scanner := new(MockOverdueScanner)
	scanner.On("Scan", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	core, logs := observer.New(zapcore.ErrorLevel)
	s := NewOverdueScheduler(DefaultOverdueSchedulerConfig(), scanner, zap.New(core))

	_, err := s.RunNow(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "connection refused", s.LastRun().Error)
	assert.Equal(t, 1, logs.FilterMessage("Overdue scan failed").Len())
}

func TestOverdueScheduler_StartStop(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled does nothing", func(t *testing.T) {
		cfg := DefaultOverdueSchedulerConfig()
		cfg.Enabled = false
		s := NewOverdueScheduler(cfg, new(MockOverdueScanner), nil)

		require.NoError(t, s.Start(ctx))
		assert.Equal(t, false, s.GetStatus()["is_running"])
		assert.NoError(t, s.Stop(ctx))
	})

	t.Run("invalid schedule", func(t *testing.T) {
		cfg := DefaultOverdueSchedulerConfig()
		cfg.CronSchedule = "every hour"
		s := NewOverdueScheduler(cfg, new(MockOverdueScanner), nil)

		assert.ErrorIs(t, s.Start(ctx), ErrInvalidConfig)
	})

	t.Run("reports next run while running", func(t *testing.T) {
		s := NewOverdueScheduler(DefaultOverdueSchedulerConfig(), new(MockOverdueScanner), nil)
		require.NoError(t, s.Start(ctx))
		require.NoError(t, s.Start(ctx), "second start is a no-op")

		status := s.GetStatus()
		assert.Equal(t, true, status["is_running"])
		next, ok := status["next_run_at"].(time.Time)
		require.True(t, ok)
		assert.True(t, next.After(time.Now()))
		assert.Zero(t, next.Minute())

		stopCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		require.NoError(t, s.Stop(stopCtx))
		assert.Equal(t, false, s.GetStatus()["is_running"])
		assert.NoError(t, s.Stop(stopCtx))
	})
}

func TestOverdueScheduler_CronTriggersScan(t *testing.T) {
	scanned := make(chan struct{}, 1)
	scanner := new(MockOverdueScanner)
	scanner.On("Scan", mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case scanned <- struct{}{}:
			default:
			}
		}).
		Return(&appprocurement.OverdueScanResult{}, nil)

	cfg := DefaultOverdueSchedulerConfig()
	cfg.CronSchedule = "@every 1s"
	s := NewOverdueScheduler(cfg, scanner, nil)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	select {
	case <-scanned:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled scan did not run")
	}
	require.Eventually(t, func() bool {
		run := s.LastRun()
		return run != nil && run.Trigger == triggerCron
	}, time.Second, 10*time.Millisecond)
}
