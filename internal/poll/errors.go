package poll

import "fmt"

// Kind classifies a rejected transition. All kinds are user-facing and recoverable.
type Kind int

const (
	KindAlreadyActive Kind = iota + 1
	KindNoActivePoll
	KindNotOwner
	KindNoSuchOrder
)

// Sentinels for errors.Is checks; the concrete value returned by Manager is *Error.
var (
	ErrAlreadyActive = &Error{Kind: KindAlreadyActive}
	ErrNoActivePoll  = &Error{Kind: KindNoActivePoll}
	ErrNotOwner      = &Error{Kind: KindNotOwner}
	ErrNoSuchOrder   = &Error{Kind: KindNoSuchOrder}
)

// Error reports why a transition was rejected. Poll and Owner describe the
// poll that blocked the request when one exists.
type Error struct {
	Kind  Kind
	Poll  string
	Owner Participant
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAlreadyActive:
		return fmt.Sprintf("poll %q is already active (owner %s)", e.Poll, e.Owner.Name)
	case KindNoActivePoll:
		if e.Poll != "" {
			return fmt.Sprintf("no active poll %q", e.Poll)
		}
		return "no active poll"
	case KindNotOwner:
		return fmt.Sprintf("poll %q is owned by %s", e.Poll, e.Owner.Name)
	case KindNoSuchOrder:
		return fmt.Sprintf("no order recorded in poll %q", e.Poll)
	default:
		return "poll error"
	}
}

// Code is picked up by the handler summary logs as err_code.
func (e *Error) Code() string {
	switch e.Kind {
	case KindAlreadyActive:
		return "ALREADY_ACTIVE"
	case KindNoActivePoll:
		return "NO_ACTIVE_POLL"
	case KindNotOwner:
		return "NOT_OWNER"
	case KindNoSuchOrder:
		return "NO_SUCH_ORDER"
	default:
		return "POLL_ERROR"
	}
}

// Is matches on Kind so callers can compare against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
