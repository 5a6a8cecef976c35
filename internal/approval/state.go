package approval

import (
	"errors"
	"fmt"
)

// State is the allowance status of one (token, owner, spender) triple.
type State int

const (
	Unknown State = iota
	NotApproved
	Pending
	Approved
)

func (s State) String() string {
	switch s {
	case NotApproved:
		return "NOT_APPROVED"
	case Pending:
		return "PENDING"
	case Approved:
		return "APPROVED"
	default:
		return "UNKNOWN"
	}
}

var ErrInvalidTransition = errors.New("invalid approval transition")

// CanTransition reports whether from -> to is allowed. A self-transition is
// always allowed and changes nothing.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	switch from {
	case Unknown:
		return to == NotApproved || to == Approved
	case NotApproved:
		return to == Pending
	case Pending:
		return to == Approved || to == NotApproved
	default:
		return false
	}
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
