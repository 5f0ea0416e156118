package jobs

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of a job.
type State int

const (
	Queued State = iota
	Running
	Succeeded
	Failed
)

var stateNames = map[State]string{
	Queued:    "queued",
	Running:   "running",
	Succeeded: "succeeded",
	Failed:    "failed",
}

// String returns the lower case name of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Wire returns the upper case form used by Bonsai clients.
func (s State) Wire() string {
	return strings.ToUpper(s.String())
}

// ParseState accepts both the lower and the upper case forms.
func ParseState(s string) (State, error) {
	for state, name := range stateNames {
		if strings.EqualFold(name, s) {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown job state %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	state, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// IsTerminal reports whether no transition can leave the state.
func (s State) IsTerminal() bool {
	return s == Succeeded || s == Failed
}

// allowedTransition is the whole state machine.
func allowedTransition(from, to State) bool {
	switch from {
	case Queued:
		return to == Running
	case Running:
		return to == Succeeded || to == Failed
	default:
		return false
	}
}
