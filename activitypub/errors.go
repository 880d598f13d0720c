package activitypub

import "errors"

var (
	// ErrNotResolvable means an actor or object could not be found locally nor fetched
	ErrNotResolvable = errors.New("not resolvable")
	// ErrPolicy means the operation violates a local rule (content too large, unauthorized, missing parent)
	ErrPolicy = errors.New("policy violation")
	// ErrNoPublicAddress means this server has no address remote peers could deliver back to
	ErrNoPublicAddress = errors.New("no public address")
	// ErrInvalidSignature means an inbound request failed HTTP signature verification
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrMalformed means an inbound body is not a usable activity
	ErrMalformed = errors.New("malformed activity")
	// ErrGone means the signing actor no longer exists remotely
	ErrGone = errors.New("gone")
)

// Outcome is the result of a single dispatch. Dispatch never returns errors, only outcomes.
type Outcome int

const (
	Applied Outcome = iota
	Duplicate
	Ignored
	Unresolvable
	Rejected
	Unsupported
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Duplicate:
		return "duplicate"
	case Ignored:
		return "ignored"
	case Unresolvable:
		return "unresolvable"
	case Rejected:
		return "rejected"
	case Unsupported:
		return "unsupported"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Direction tells whether an activity arrived from a peer or originates from a local user
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}
