package reservation

import (
	"errors"

	"github.com/iliyamo/seatsync/internal/ledger"
)

// Caller-facing error kinds.  All of them are recoverable and are reported to
// the caller as-is; handlers translate them into HTTP statuses with errors.Is.
var (
	// ErrSeatUnavailable means the seat was not available at reserve time.
	ErrSeatUnavailable = errors.New("seat unavailable")
	// ErrNotHolder means confirm or release was attempted by someone who
	// does not hold the seat.
	ErrNotHolder = errors.New("not the seat holder")
	// ErrLeaseExpired means confirm was attempted after the hold lapsed.
	ErrLeaseExpired = errors.New("lease expired")
	// ErrUnauthenticated means no caller identity was supplied.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrShowingNotFound = ledger.ErrShowingNotFound
	ErrSeatNotFound    = ledger.ErrSeatNotFound
)

// errLeaseChanged is the sweep's internal veto when the lease it meant to
// expire was already replaced.
var errLeaseChanged = errors.New("lease changed since scan")
