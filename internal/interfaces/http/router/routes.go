package router

import (
	"github.com/gin-gonic/gin"
)

// DomainGroup collects the routes of one area of the API under a prefix
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*DomainGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{
		name:   name,
		prefix: prefix,
	}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle("GET", path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle("POST", path, handlers)
}

// DELETE registers a DELETE route
func (dg *DomainGroup) DELETE(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle("DELETE", path, handlers)
}

// Group creates a sub-group within this domain
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	subgroup := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, subgroup)
	return subgroup
}

// RegisterRoutes implements RouteRegistrar interface
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, subgroup := range dg.subgroups {
		subgroup.RegisterRoutes(group)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// domainGroups maps every handler to its routes
func domainGroups(h Handlers) []*DomainGroup {
	var groups []*DomainGroup

	if h.PurchaseOrders != nil {
		orders := NewDomainGroup("purchase-orders", "/purchase-orders")
		orders.POST("", h.PurchaseOrders.Create)
		orders.GET("", h.PurchaseOrders.List)
		orders.GET("/:id", h.PurchaseOrders.GetByID)
		orders.DELETE("/:id", h.PurchaseOrders.Delete)
		orders.POST("/:id/issue", h.PurchaseOrders.Issue)
		orders.POST("/:id/cancel", h.PurchaseOrders.Cancel)

		if h.Deliveries != nil {
			deliveries := orders.Group("deliveries", "/:id/deliveries")
			deliveries.POST("", h.Deliveries.Create)
			deliveries.GET("", h.Deliveries.List)
			deliveries.GET("/:deliveryId", h.Deliveries.GetByID)
		}
		groups = append(groups, orders)
	}

	if h.Overdue != nil {
		overdue := NewDomainGroup("overdue", "/overdue")
		overdue.GET("/scheduler", h.Overdue.Status)
		overdue.POST("/scan", h.Overdue.Scan)
		groups = append(groups, overdue)
	}

	system := NewDomainGroup("system", "/system")
	if h.Health != nil {
		system.GET("/info", h.Health.SystemInfo)
	}
	if h.Outbox != nil {
		system.GET("/outbox", h.Outbox.Stats)
	}
	groups = append(groups, system)

	return groups
}
