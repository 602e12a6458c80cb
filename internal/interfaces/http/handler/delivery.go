package handler

import (
	"strings"

	procurementapp "github.com/erp/fulfillment/internal/application/procurement"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

const maxIdempotencyKeyLength = 128

// DeliveryHandler handles delivery receipt endpoints of a purchase order
type DeliveryHandler struct {
	BaseHandler
	deliveryService *procurementapp.DeliveryService
}

// NewDeliveryHandler creates a new DeliveryHandler
func NewDeliveryHandler(deliveryService *procurementapp.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{
		deliveryService: deliveryService,
	}
}

// Create godoc
// @Summary      Record a delivery against a purchase order
// @Description  Every line is validated against the pending quantity before
// @Description  anything is booked. A rejected delivery lists each failing line
// @Description  in error.details.
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Param        id path string true "Purchase Order ID" format(uuid)
// @Param        Idempotency-Key header string false "Client key for safe retries"
// @Param        request body procurementapp.CreateDeliveryRequest true "Delivery"
// @Success      201 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /purchase-orders/{id}/deliveries [post]
func (h *DeliveryHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.InvalidTenant(c)
		return
	}
	orderID, ok := h.parseUUIDParam(c, "id", "order")
	if !ok {
		return
	}

	idempotencyKey := strings.TrimSpace(c.GetHeader(middleware.IdempotencyKeyHeader))
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		h.BadRequest(c, "Idempotency-Key is too long")
		return
	}

	var req procurementapp.CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.IdempotencyKey = idempotencyKey

	result, err := h.deliveryService.CreateDelivery(c.Request.Context(), tenantID, orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// List godoc
// @Summary      List the deliveries of a purchase order
// @Description  Deliveries come in sequence order, each with the cumulative
// @Description  received quantity and progress right after it.
// @Tags         deliveries
// @Produce      json
// @Param        id path string true "Purchase Order ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /purchase-orders/{id}/deliveries [get]
func (h *DeliveryHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.InvalidTenant(c)
		return
	}
	orderID, ok := h.parseUUIDParam(c, "id", "order")
	if !ok {
		return
	}

	timeline, err := h.deliveryService.ListDeliveries(c.Request.Context(), tenantID, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, timeline)
}

// GetByID godoc
// @Summary      Get one delivery of a purchase order
// @Tags         deliveries
// @Produce      json
// @Param        id path string true "Purchase Order ID" format(uuid)
// @Param        deliveryId path string true "Delivery ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /purchase-orders/{id}/deliveries/{deliveryId} [get]
func (h *DeliveryHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.InvalidTenant(c)
		return
	}
	orderID, ok := h.parseUUIDParam(c, "id", "order")
	if !ok {
		return
	}
	deliveryID, ok := h.parseUUIDParam(c, "deliveryId", "delivery")
	if !ok {
		return
	}

	delivery, err := h.deliveryService.GetDelivery(c.Request.Context(), tenantID, orderID, deliveryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, delivery)
}
