package orders

import "strings"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	// StatusDelivered exists alongside COMPLETED in historical data.
	// TODO: confirm with the admin surface whether DELIVERED is reachable
	// or should be folded into COMPLETED.
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var knownStatuses = map[Status]bool{
	StatusPending:   true,
	StatusPaid:      true,
	StatusShipped:   true,
	StatusConfirmed: true,
	StatusCompleted: true,
	StatusDelivered: true,
	StatusCancelled: true,
}

// activeStatuses are the states where inventory must stay reserved.
var activeStatuses = map[Status]bool{
	StatusPaid:      true,
	StatusShipped:   true,
	StatusConfirmed: true,
	StatusCompleted: true,
}

func (s Status) Active() bool { return activeStatuses[s] }

// ParseStatus maps a wire value onto the closed status set.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, knownStatuses[st]
}

// InitialStatus derives the status a new order starts in from its payment
// method: cash-on-delivery style methods are unpaid until delivery.
func InitialStatus(paymentMethod string) Status {
	m := strings.ToLower(strings.TrimSpace(paymentMethod))
	m = strings.NewReplacer("-", " ", "_", " ").Replace(m)
	switch m {
	case "cod", "cash on delivery":
		return StatusPending
	}
	return StatusPaid
}
