package domain

// transitionGraph holds every structurally possible status change, regardless of who asks.
var transitionGraph = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusPickedUp, StatusCancelled},
	StatusPickedUp:       {StatusDelivering},
	StatusDelivering:     {StatusDelivered, StatusDeliveryFailed},
	StatusDelivered:      {StatusCompleted},
	StatusDeliveryFailed: {StatusReturning, StatusCancelled},
	StatusReturning:      {StatusReturned},
	StatusReturned:       {StatusRefunded},
	StatusCancelled:      {StatusRefunded},
	StatusCompleted:      {},
	StatusRefunded:       {},
}

// CanTransition checks if from->to is an edge of the transition graph.
func CanTransition(from, to Status) bool {
	return contains(transitionGraph[from], to)
}

// NextStatuses returns the graph successors of from.
func NextStatuses(from Status) []Status {
	next := transitionGraph[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func contains(set []Status, s Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}
