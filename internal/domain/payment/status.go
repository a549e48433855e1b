package payment

// Status is the payment transaction state
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunding  Status = "REFUNDING"
	StatusRefunded   Status = "REFUNDED"
)

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusPending, StatusProcessing, StatusCompleted,
		StatusFailed, StatusCancelled, StatusRefunding, StatusRefunded:
		return true
	}
	return false
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// paymentTransitions is the allowed adjacency list. Refunding may
// fall back to Completed after a partial refund settles.
var paymentTransitions = map[Status][]Status{
	StatusCreated:    {StatusPending, StatusCancelled, StatusFailed},
	StatusPending:    {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusRefunding},
	StatusRefunding:  {StatusRefunded, StatusCompleted},
	StatusFailed:     {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// CanTransitionTo checks whether the transition is on the adjacency list
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is permitted
func (s Status) IsTerminal() bool {
	return len(paymentTransitions[s]) == 0
}

// IsOpen reports whether the attempt still blocks a new one on the
// same order
func (s Status) IsOpen() bool {
	switch s {
	case StatusCreated, StatusPending, StatusProcessing:
		return true
	}
	return false
}
