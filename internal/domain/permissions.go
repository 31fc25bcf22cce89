package domain

import "fmt"

// Role is the capacity in which a transition is requested.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
	RoleDriver     Role = "driver"
	RoleSystem     Role = "system"
	RoleAdmin      Role = "admin"
)

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool {
	_, ok := permissionMatrix[r]
	return ok
}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if !r.IsValid() {
		return "", NewFailure(KindInvalidRole, fmt.Sprintf("unknown actor role %q", raw), nil)
	}
	return r, nil
}

// AllRoles returns every known role.
func AllRoles() []Role {
	return []Role{RoleCustomer, RoleRestaurant, RoleDriver, RoleSystem, RoleAdmin}
}

// permissionMatrix restricts the transition graph per role.
// Admin is not special-cased: its entry is the graph itself.
var permissionMatrix = map[Role]map[Status][]Status{
	RoleCustomer: {
		StatusPending:    {StatusCancelled},
		StatusDelivering: {StatusDelivered},
	},
	RoleRestaurant: {
		StatusPending:   {StatusConfirmed, StatusCancelled},
		StatusConfirmed: {StatusPreparing, StatusCancelled},
		StatusPreparing: {StatusReadyForPickup, StatusCancelled},
	},
	RoleDriver: {
		StatusReadyForPickup: {StatusPickedUp},
		StatusPickedUp:       {StatusDelivering},
		StatusDelivering:     {StatusDelivered, StatusDeliveryFailed},
		StatusDeliveryFailed: {StatusReturning},
		StatusReturning:      {StatusReturned},
	},
	RoleSystem: {
		StatusPending:   {StatusCancelled},
		StatusDelivered: {StatusCompleted},
		StatusReturned:  {StatusRefunded},
		StatusCancelled: {StatusRefunded},
	},
	RoleAdmin: transitionGraph,
}

// HasPermission reports whether role may move an order from -> to.
// The result is always intersected with the transition graph.
func HasPermission(role Role, from, to Status) bool {
	return contains(permissionMatrix[role][from], to) && CanTransition(from, to)
}

// AvailableTransitions lists the statuses role may move an order in current to.
func AvailableTransitions(current Status, role Role) []Status {
	out := make([]Status, 0, len(permissionMatrix[role][current]))
	for _, to := range permissionMatrix[role][current] {
		if CanTransition(current, to) {
			out = append(out, to)
		}
	}
	return out
}
