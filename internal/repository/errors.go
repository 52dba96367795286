// Package repository persists the seat ledger to MySQL.  The in-memory
// ledger stays authoritative while the process runs; the tables here let a
// restarted process pick up showings, holds and bookings where it left off.
package repository

import "errors"

// ErrShowingNotFound is returned when no showings row has the given ID.
var ErrShowingNotFound = errors.New("showing not found")

// ErrConflict is returned when an insert collides with an existing showing.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
