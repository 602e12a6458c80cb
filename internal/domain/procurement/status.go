package procurement

// PurchaseOrderStatus is the lifecycle state of a purchase order.
type PurchaseOrderStatus string

const (
	StatusDraft             PurchaseOrderStatus = "DRAFT"
	StatusIssued            PurchaseOrderStatus = "ISSUED"
	StatusPartiallyReceived PurchaseOrderStatus = "PARTIALLY_RECEIVED"
	StatusCompleted         PurchaseOrderStatus = "COMPLETED"
	StatusCancelled         PurchaseOrderStatus = "CANCELLED"
)

// IsValid checks if the status is a known value
func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPartiallyReceived, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// CanReceive reports whether deliveries may be booked in this status.
func (s PurchaseOrderStatus) CanReceive() bool {
	return s == StatusIssued || s == StatusPartiallyReceived
}

// IsExogenous is true for states set by explicit actions rather than
// derived from received quantities.
func (s PurchaseOrderStatus) IsExogenous() bool {
	return s == StatusDraft || s == StatusCancelled
}

// IsOpen reports whether goods are still expected.
func (s PurchaseOrderStatus) IsOpen() bool {
	return s.CanReceive()
}
