package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/fulfillment/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
)

// OverdueScheduler is the part of the overdue scheduler exposed over HTTP
type OverdueScheduler interface {
	GetStatus() map[string]any
	RunNow(ctx context.Context) (*scheduler.OverdueRun, error)
}

// OverdueHandler exposes the overdue scan
type OverdueHandler struct {
	BaseHandler
	scheduler OverdueScheduler
}

// NewOverdueHandler creates a new OverdueHandler
func NewOverdueHandler(s OverdueScheduler) *OverdueHandler {
	return &OverdueHandler{scheduler: s}
}

// Status godoc
// @Summary      Overdue scheduler status
// @Tags         overdue
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /overdue/scheduler [get]
func (h *OverdueHandler) Status(c *gin.Context) {
	h.Success(c, h.scheduler.GetStatus())
}

// Scan godoc
// @Summary      Run the overdue scan now
// @Description  Answers 409 when a scheduled scan is still running.
// @Tags         overdue
// @Produce      json
// @Success      200 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /overdue/scan [post]
func (h *OverdueHandler) Scan(c *gin.Context) {
	run, err := h.scheduler.RunNow(c.Request.Context())
	switch {
	case errors.Is(err, scheduler.ErrScanInProgress):
		h.Error(c, http.StatusConflict, "SCAN_IN_PROGRESS", "An overdue scan is already running")
	case err != nil:
		h.HandleError(c, err)
	default:
		h.Success(c, run)
	}
}
