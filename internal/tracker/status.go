package tracker

// Status is the delivery state of a message.
type Status string

const (
	Sent      Status = "SENT"
	Delivered Status = "DELIVERED"
	Read      Status = "READ"
)

func (s Status) rank() int {
	switch s {
	case Sent:
		return 1
	case Delivered:
		return 2
	case Read:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	return s.rank() > 0
}

// Allows reports whether moving from s to next is a forward transition.
func (s Status) Allows(next Status) bool {
	return next.rank() > s.rank()
}

// ParseStatus maps a wire value to a Status. Unknown values are reported as
// not ok; an empty value defaults to Sent.
func ParseStatus(v string) (Status, bool) {
	if v == "" {
		return Sent, true
	}
	s := Status(v)
	return s, s.Valid()
}
