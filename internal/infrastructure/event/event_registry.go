package event

import (
	"github.com/erp/fulfillment/internal/domain/procurement"
	"github.com/erp/fulfillment/internal/domain/shared"
)

// RegisterAllEvents registers every procurement event with the serializer.
// The outbox processor cannot relay an event type that is missing here.
func RegisterAllEvents(serializer *EventSerializer) {
	factories := map[string]EventFactory{
		procurement.EventTypePurchaseOrderCreated:   func() shared.DomainEvent { return &procurement.PurchaseOrderCreatedEvent{} },
		procurement.EventTypePurchaseOrderIssued:    func() shared.DomainEvent { return &procurement.PurchaseOrderIssuedEvent{} },
		procurement.EventTypeDeliveryReceived:       func() shared.DomainEvent { return &procurement.DeliveryReceivedEvent{} },
		procurement.EventTypePurchaseOrderCompleted: func() shared.DomainEvent { return &procurement.PurchaseOrderCompletedEvent{} },
		procurement.EventTypePurchaseOrderCancelled: func() shared.DomainEvent { return &procurement.PurchaseOrderCancelledEvent{} },
	}
	for eventType, factory := range factories {
		serializer.Register(eventType, factory)
	}
}
