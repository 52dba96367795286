package ledger

import "errors"

// ErrShowingNotFound is returned when no showing has the requested ID.
var ErrShowingNotFound = errors.New("showing not found")

// ErrSeatNotFound is returned when the showing has no seat with the
// requested number.
var ErrSeatNotFound = errors.New("seat not found")

// ErrShowingExists is returned by Provision for a duplicate showing ID.
var ErrShowingExists = errors.New("showing already exists")

// ErrInvalidShowing is returned by Provision when the showing is malformed.
var ErrInvalidShowing = errors.New("invalid showing")

// ErrInvalidTransition is returned when a compare-and-set asks for a move
// the seat state machine does not allow, such as leaving Booked.
var ErrInvalidTransition = errors.New("invalid seat transition")
