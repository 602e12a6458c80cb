package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/fulfillment/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockOverdueScheduler struct {
	mock.Mock
}

func (m *MockOverdueScheduler) GetStatus() map[string]any {
	return m.Called().Get(0).(map[string]any)
}

func (m *MockOverdueScheduler) RunNow(ctx context.Context) (*scheduler.OverdueRun, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduler.OverdueRun), args.Error(1)
}

func overdueRouter(s OverdueScheduler) *gin.Engine {
	h := NewOverdueHandler(s)
	engine := gin.New()
	engine.GET("/overdue/scheduler", h.Status)
	engine.POST("/overdue/scan", h.Scan)
	return engine
}

func TestOverdueHandler_Status(t *testing.T) {
	s := new(MockOverdueScheduler)
	s.On("GetStatus").Return(map[string]any{"enabled": true, "cron_schedule": "0 * * * *"})

	w := httptest.NewRecorder()
	overdueRouter(s).ServeHTTP(w, httptest.NewRequest("GET", "/overdue/scheduler", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cron_schedule":"0 * * * *"`)
}

func TestOverdueHandler_Scan(t *testing.T) {
	tests := []struct {
		name           string
		run            *scheduler.OverdueRun
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "scan completes",
			run:            &scheduler.OverdueRun{Trigger: "manual", StartedAt: time.Now(), Total: 3, TenantCount: 2},
			expectedStatus: http.StatusOK,
			expectedBody:   `"total":3`,
		},
		{
			name:           "scan already running",
			err:            scheduler.ErrScanInProgress,
			expectedStatus: http.StatusConflict,
			expectedBody:   "SCAN_IN_PROGRESS",
		},
		{
			name:           "scan failed",
			run:            &scheduler.OverdueRun{Trigger: "manual", Error: "db down"},
			err:            errors.New("db down"),
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockOverdueScheduler)
			s.On("RunNow", mock.Anything).Return(tt.run, tt.err)

			w := httptest.NewRecorder()
			overdueRouter(s).ServeHTTP(w, httptest.NewRequest("POST", "/overdue/scan", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
		})
	}
}
