package domain

import "time"

// StatusHistoryEntry is one committed transition of an order.
// FromStatus is nil only for the entry written when the order is created.
type StatusHistoryEntry struct {
	ID          int64
	OrderID     int64
	FromStatus  *Status
	ToStatus    Status
	ChangedBy   Role
	ChangedByID *int64
	Reason      *string
	Notes       *string
	Timestamp   time.Time
}

// CreationEntry builds the history entry that opens an order's audit trail.
func CreationEntry(order *Order, changedBy Role, changedByID *int64) StatusHistoryEntry {
	return StatusHistoryEntry{
		OrderID:     order.ID,
		ToStatus:    order.Status,
		ChangedBy:   changedBy,
		ChangedByID: changedByID,
		Timestamp:   order.CreatedAt,
	}
}
