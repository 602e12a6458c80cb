package handler

import (
	"net/http"
	"testing"
	"time"

	eventapp "github.com/erp/fulfillment/internal/application/event"
	procurementapp "github.com/erp/fulfillment/internal/application/procurement"
	"github.com/erp/fulfillment/internal/infrastructure/cache"
	"github.com/erp/fulfillment/internal/infrastructure/event"
	"github.com/erp/fulfillment/internal/infrastructure/persistence"
	"github.com/erp/fulfillment/internal/interfaces/http/middleware"
	"github.com/erp/fulfillment/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// apiFixture serves the purchase order API over a fresh in-memory database.
type apiFixture struct {
	engine   *gin.Engine
	tenantID uuid.UUID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	orderRepo := persistence.NewGormPurchaseOrderRepository(db)
	orderRepo.SetOutboxEventSaver(event.NewOutboxPublisher(serializer))
	deliveryRepo := persistence.NewGormDeliveryRepository(db)

	orders := NewPurchaseOrderHandler(procurementapp.NewPurchaseOrderService(orderRepo, nil))
	deliveryService := procurementapp.NewDeliveryService(orderRepo, deliveryRepo, procurementapp.DefaultDeliveryServiceConfig(), nil)
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	deliveryService.SetIdempotencyStore(store)
	deliveries := NewDeliveryHandler(deliveryService)

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.TenantMiddleware(middleware.DefaultTenantConfig()))
	api := engine.Group("/api/v1")
	api.POST("/purchase-orders", orders.Create)
	api.GET("/purchase-orders", orders.List)
	api.GET("/purchase-orders/:id", orders.GetByID)
	api.DELETE("/purchase-orders/:id", orders.Delete)
	api.POST("/purchase-orders/:id/issue", orders.Issue)
	api.POST("/purchase-orders/:id/cancel", orders.Cancel)
	api.POST("/purchase-orders/:id/deliveries", deliveries.Create)
	api.GET("/purchase-orders/:id/deliveries", deliveries.List)
	api.GET("/purchase-orders/:id/deliveries/:deliveryId", deliveries.GetByID)
	api.GET("/system/outbox", NewOutboxHandler(eventapp.NewOutboxService(event.NewGormOutboxRepository(db), nil)).Stats)

	return &apiFixture{engine: engine, tenantID: uuid.New()}
}

func (f *apiFixture) headers(extra ...string) map[string]string {
	h := map[string]string{middleware.TenantHeaderKey: f.tenantID.String()}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, extra ...string) (int, testutil.APIResponse) {
	t.Helper()
	w := testutil.DoJSON(t, f.engine, method, path, body, f.headers(extra...))
	if w.Code == http.StatusNoContent {
		return w.Code, testutil.APIResponse{}
	}
	return w.Code, testutil.DecodeResponse(t, w, nil)
}

func createOrderBody(qtys ...int64) map[string]any {
	items := make([]map[string]any, len(qtys))
	for i, q := range qtys {
		items[i] = map[string]any{
			"item_name":  "Widget " + string(rune('A'+i)),
			"sku":        "SKU-" + string(rune('A'+i)),
			"unit":       "pcs",
			"quantity":   q,
			"unit_price": "2.50",
		}
	}
	return map[string]any{
		"vendor_id":   uuid.NewString(),
		"vendor_name": "Acme Supply",
		"items":       items,
	}
}

// issuedOrder creates and issues an order through the API.
func (f *apiFixture) issuedOrder(t *testing.T, qtys ...int64) procurementapp.OrderSummaryResponse {
	t.Helper()
	w := testutil.DoJSON(t, f.engine, "POST", "/api/v1/purchase-orders", createOrderBody(qtys...), f.headers())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created procurementapp.OrderSummaryResponse
	testutil.DecodeResponse(t, w, &created)

	w = testutil.DoJSON(t, f.engine, "POST", "/api/v1/purchase-orders/"+created.ID.String()+"/issue", nil, f.headers())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var issued procurementapp.OrderSummaryResponse
	testutil.DecodeResponse(t, w, &issued)
	return issued
}

type deliveryLine struct {
	itemID uuid.UUID
	qty    string
}

func deliveryBody(lines ...deliveryLine) map[string]any {
	items := make([]map[string]any, len(lines))
	for i, l := range lines {
		items[i] = map[string]any{"item_id": l.itemID.String(), "quantity": l.qty}
	}
	return map[string]any{
		"delivery_date":  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
		"invoice_number": "INV-1",
		"items":          items,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
