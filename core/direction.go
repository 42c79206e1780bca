package core

// Direction tells middleware which way a message is travelling through a
// connector.
type Direction int

const (
	// Inbound messages arrive from an external party.
	Inbound Direction = iota
	// Outbound messages are sent to an external party.
	Outbound
)

// String returns the lower case name of the direction.
func (d Direction) String() string {
	switch d {
	case Inbound:
		return "inbound"
	case Outbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// ParseDirection maps "inbound"/"outbound" onto a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "inbound":
		return Inbound, true
	case "outbound":
		return Outbound, true
	default:
		return Inbound, false
	}
}
