package domain

import (
	"errors"
	"fmt"
	"time"
)

// Order is the status-bearing part of a customer order.
type Order struct {
	ID           int64
	Number       string
	UserID       int64
	RestaurantID int64
	TotalAmount  float64
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOrder creates a pending order.
func NewOrder(number string, userID, restaurantID int64, totalAmount float64, now time.Time) (*Order, error) {
	order := &Order{
		Number:       number,
		UserID:       userID,
		RestaurantID: restaurantID,
		TotalAmount:  totalAmount,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}
	return order, nil
}

// Validate applies business validation rules
func (o *Order) Validate() error {
	if o.Number == "" {
		return errors.New("order number is required")
	}
	if o.UserID <= 0 {
		return errors.New("user id must be positive")
	}
	if o.RestaurantID <= 0 {
		return errors.New("restaurant id must be positive")
	}
	if o.TotalAmount < 0 {
		return errors.New("total amount must not be negative")
	}
	if !o.Status.IsValid() {
		return fmt.Errorf("invalid status %q", o.Status)
	}
	return nil
}

// TransitionTo moves the order to newStatus on behalf of role.
// A request for the current status fails with STATUS_UNCHANGED before permissions are checked.
func (o *Order) TransitionTo(role Role, newStatus Status, at time.Time) error {
	if o.Status == newStatus {
		return NewFailure(KindStatusUnchanged,
			fmt.Sprintf("order %d is already %s", o.ID, newStatus), nil)
	}
	if !HasPermission(role, o.Status, newStatus) {
		return deniedFailure(role, o.Status, newStatus)
	}

	o.Status = newStatus
	o.UpdatedAt = at
	return nil
}
