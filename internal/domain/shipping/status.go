package shipping

// Status is the shipment state as reported through carrier tracking
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusPickedUp       Status = "PICKED_UP"
	StatusInTransit      Status = "IN_TRANSIT"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusFailed         Status = "FAILED"
	StatusReturned       Status = "RETURNED"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPickedUp, StatusInTransit, StatusOutForDelivery,
		StatusDelivered, StatusFailed, StatusReturned:
		return true
	}
	return false
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

var shippingTransitions = map[Status][]Status{
	StatusPending:        {StatusPickedUp, StatusFailed},
	StatusPickedUp:       {StatusInTransit, StatusFailed},
	StatusInTransit:      {StatusOutForDelivery, StatusFailed, StatusReturned},
	StatusOutForDelivery: {StatusDelivered, StatusFailed, StatusReturned},
	StatusDelivered:      {},
	StatusFailed:         {StatusReturned},
	StatusReturned:       {},
}

// CanTransitionTo checks whether the transition is on the adjacency list
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range shippingTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// deliveryPath is the normal forward scan sequence. Carriers skip
// scans, so status advancement walks this path rather than requiring
// every edge to have been reported.
var deliveryPath = []Status{StatusPending, StatusPickedUp, StatusInTransit, StatusOutForDelivery, StatusDelivered}

func (s Status) pathIndex() (int, bool) {
	for i, step := range deliveryPath {
		if step == s {
			return i, true
		}
	}
	return 0, false
}

// IsTerminal reports whether no further transition is permitted
func (s Status) IsTerminal() bool {
	return len(shippingTransitions[s]) == 0
}
