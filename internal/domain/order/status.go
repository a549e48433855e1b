package order

// OrderStatus is the order lifecycle state
type OrderStatus string

const (
	StatusDraft           OrderStatus = "DRAFT"
	StatusPending         OrderStatus = "PENDING"
	StatusConfirmed       OrderStatus = "CONFIRMED"
	StatusProcessing      OrderStatus = "PROCESSING"
	StatusPacked          OrderStatus = "PACKED"
	StatusShipped         OrderStatus = "SHIPPED"
	StatusOutForDelivery  OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered       OrderStatus = "DELIVERED"
	StatusCompleted       OrderStatus = "COMPLETED"
	StatusCancelled       OrderStatus = "CANCELLED"
	StatusReturnRequested OrderStatus = "RETURN_REQUESTED"
	StatusReturned        OrderStatus = "RETURNED"
)

// IsValid checks if the status is a known value
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed, StatusProcessing,
		StatusPacked, StatusShipped, StatusOutForDelivery, StatusDelivered,
		StatusCompleted, StatusCancelled, StatusReturnRequested, StatusReturned:
		return true
	}
	return false
}

// String returns the string representation
func (s OrderStatus) String() string {
	return string(s)
}

// orderTransitions is the allowed adjacency list. Cancellation is
// reachable from every pre-shipment state; the return branch hangs
// off Delivered and Completed.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusDraft:           {StatusPending, StatusCancelled},
	StatusPending:         {StatusConfirmed, StatusCancelled},
	StatusConfirmed:       {StatusProcessing, StatusCancelled},
	StatusProcessing:      {StatusPacked, StatusCancelled},
	StatusPacked:          {StatusShipped, StatusCancelled},
	StatusShipped:         {StatusOutForDelivery},
	StatusOutForDelivery:  {StatusDelivered},
	StatusDelivered:       {StatusCompleted, StatusReturnRequested},
	StatusCompleted:       {StatusReturnRequested},
	StatusReturnRequested: {StatusReturned, StatusCompleted, StatusDelivered},
	StatusCancelled:       {},
	StatusReturned:        {},
}

// CanTransitionTo checks whether the transition is on the adjacency list
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
// Completed still admits the return branch, so it is not terminal here.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusReturned
}

// IsCancellable reports whether a customer cancellation is allowed
func (s OrderStatus) IsCancellable() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusProcessing
}

// IsPreShipment reports whether the order has not yet left the warehouse
func (s OrderStatus) IsPreShipment() bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed, StatusProcessing, StatusPacked:
		return true
	}
	return false
}
