package handler

import (
	eventapp "github.com/erp/fulfillment/internal/application/event"
	"github.com/gin-gonic/gin"
)

// OutboxHandler reports the state of the event relay
type OutboxHandler struct {
	BaseHandler
	outboxService *eventapp.OutboxService
}

// NewOutboxHandler creates a new OutboxHandler
func NewOutboxHandler(outboxService *eventapp.OutboxService) *OutboxHandler {
	return &OutboxHandler{outboxService: outboxService}
}

// Stats godoc
// @Summary      Outbox relay statistics
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response
// @Router       /system/outbox [get]
func (h *OutboxHandler) Stats(c *gin.Context) {
	stats, err := h.outboxService.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
