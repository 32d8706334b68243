package board

// Mode is the interaction mode. Exactly one is active at a time.
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdding
	ModeEditing
	ModeDeleting
	ModeDischarging
	ModeSearching
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeAdding:
		return "adding"
	case ModeEditing:
		return "editing"
	case ModeDeleting:
		return "deleting"
	case ModeDischarging:
		return "discharging"
	case ModeSearching:
		return "searching"
	default:
		return "unknown"
	}
}

// idle reports whether no modal flow is open (normal, or focus is in the search box).
func (m Mode) idle() bool {
	return m == ModeNormal || m == ModeSearching
}
