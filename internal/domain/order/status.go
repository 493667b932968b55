package order

// Status is the lifecycle state of an order.
type Status string

const (
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// validNext lists the allowed forward edges. Delivered and Cancelled are
// terminal.
var validNext = map[Status]map[Status]bool{
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// ParseStatus returns ErrInvalidStatus unless s is one of the four statuses.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validNext[st]; !ok {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// CanTransition reports whether an order in status from may be set to to.
// Re-applying the current status is allowed and changes nothing.
func CanTransition(from, to Status) bool {
	if from == to {
		_, known := validNext[from]
		return known
	}
	return validNext[from][to]
}
