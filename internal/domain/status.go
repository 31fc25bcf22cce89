package domain

import "fmt"

// Status is the lifecycle stage of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusPickedUp       Status = "picked_up"
	StatusDelivering     Status = "delivering"
	StatusDelivered      Status = "delivered"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusDeliveryFailed Status = "delivery_failed"
	StatusReturning      Status = "returning"
	StatusReturned       Status = "returned"
	StatusRefunded       Status = "refunded"
)

var allStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReadyForPickup,
	StatusPickedUp,
	StatusDelivering,
	StatusDelivered,
	StatusCompleted,
	StatusCancelled,
	StatusDeliveryFailed,
	StatusReturning,
	StatusReturned,
	StatusRefunded,
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	_, ok := catalog[s]
	return ok
}

// IsTerminal reports whether no transition can leave s.
func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitionGraph[s]) == 0
}

// ParseStatus converts raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", NewFailure(KindInvalidStatus, fmt.Sprintf("unknown order status %q", raw), nil)
	}
	return s, nil
}

// StatusInfo is display metadata for a status.
type StatusInfo struct {
	Status      Status `json:"status"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

var catalog = map[Status]StatusInfo{
	StatusPending:        {StatusPending, "Pending", "Waiting for the restaurant to confirm", "clock", "yellow"},
	StatusConfirmed:      {StatusConfirmed, "Confirmed", "The restaurant accepted the order", "check-circle", "blue"},
	StatusPreparing:      {StatusPreparing, "Preparing", "The kitchen is preparing the food", "chef-hat", "orange"},
	StatusReadyForPickup: {StatusReadyForPickup, "Ready for pickup", "Waiting for a driver", "package", "purple"},
	StatusPickedUp:       {StatusPickedUp, "Picked up", "The driver collected the order", "truck", "indigo"},
	StatusDelivering:     {StatusDelivering, "Delivering", "On the way to the customer", "map-pin", "cyan"},
	StatusDelivered:      {StatusDelivered, "Delivered", "Handed over to the customer", "home", "green"},
	StatusCompleted:      {StatusCompleted, "Completed", "Order closed", "star", "emerald"},
	StatusCancelled:      {StatusCancelled, "Cancelled", "Order was cancelled", "x-circle", "red"},
	StatusDeliveryFailed: {StatusDeliveryFailed, "Delivery failed", "The driver could not deliver the order", "alert-triangle", "rose"},
	StatusReturning:      {StatusReturning, "Returning", "Order is being returned to the restaurant", "rotate-ccw", "amber"},
	StatusReturned:       {StatusReturned, "Returned", "Order is back at the restaurant", "corner-down-left", "stone"},
	StatusRefunded:       {StatusRefunded, "Refunded", "Payment returned to the customer", "credit-card", "gray"},
}

// Info returns the display metadata of s. The second result is false for unknown statuses.
func Info(s Status) (StatusInfo, bool) {
	info, ok := catalog[s]
	return info, ok
}

// Catalog lists display metadata for all statuses in lifecycle order.
func Catalog() []StatusInfo {
	out := make([]StatusInfo, 0, len(allStatuses))
	for _, s := range allStatuses {
		out = append(out, catalog[s])
	}
	return out
}
