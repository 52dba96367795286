// Package service ties the reservation core together for the HTTP layer.
// Every mutating call returns the full updated showing so clients can
// re-render from server state.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/seatsync/internal/ledger"
	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/internal/pricing"
	"github.com/iliyamo/seatsync/internal/repository"
	"github.com/iliyamo/seatsync/internal/reservation"
	"github.com/iliyamo/seatsync/pkg/logger"
)

// ShowingStore persists newly provisioned showings.
type ShowingStore interface {
	Create(ctx context.Context, s model.Showing) error
}

// BookingService is the entry point for reserve, confirm, release and
// showing reads.
type BookingService struct {
	ledger  *ledger.Ledger
	leases  *reservation.Manager
	pricing *pricing.Adjuster
	store   ShowingStore
	log     *logger.Logger
}

// NewBookingService wires the service.  store may be nil when persistence is
// disabled.
func NewBookingService(l *ledger.Ledger, m *reservation.Manager, a *pricing.Adjuster, store ShowingStore, log *logger.Logger) *BookingService {
	if log == nil {
		log = logger.Discard()
	}
	return &BookingService{ledger: l, leases: m, pricing: a, store: store, log: log}
}

// ReserveSeat holds a seat for holder and returns the updated showing along
// with the granted lease.
func (s *BookingService) ReserveSeat(ctx context.Context, showingID, seatNumber, holder string) (model.Showing, model.Lease, error) {
	if holder == "" {
		return model.Showing{}, model.Lease{}, reservation.ErrUnauthenticated
	}
	lease, err := s.leases.Reserve(ctx, showingID, seatNumber, holder)
	if err != nil {
		return model.Showing{}, model.Lease{}, err
	}
	snap, err := s.ledger.Snapshot(showingID)
	return snap, lease, err
}

// ConfirmBooking books a seat held by holder.  A pricing failure does not
// undo the booking; it is logged and the booking stands.
func (s *BookingService) ConfirmBooking(ctx context.Context, showingID, seatNumber, holder string) (model.Showing, error) {
	if holder == "" {
		return model.Showing{}, reservation.ErrUnauthenticated
	}
	if _, err := s.leases.Confirm(ctx, showingID, seatNumber, holder); err != nil {
		return model.Showing{}, err
	}
	if s.pricing != nil {
		if _, err := s.pricing.OnBookingEvent(ctx, showingID); err != nil {
			s.log.ErrorWithContext(ctx, "reprice after booking failed", err, map[string]interface{}{
				"showing_id": showingID,
				"seat":       seatNumber,
			})
		}
	}
	return s.ledger.Snapshot(showingID)
}

// ReleaseSeat gives a held seat back.
func (s *BookingService) ReleaseSeat(ctx context.Context, showingID, seatNumber, holder string) (model.Showing, error) {
	if holder == "" {
		return model.Showing{}, reservation.ErrUnauthenticated
	}
	if _, err := s.leases.Release(ctx, showingID, seatNumber, holder); err != nil {
		return model.Showing{}, err
	}
	return s.ledger.Snapshot(showingID)
}

// GetShowing returns the current state of one showing.
func (s *BookingService) GetShowing(ctx context.Context, showingID string) (model.Showing, error) {
	if err := ctx.Err(); err != nil {
		return model.Showing{}, err
	}
	return s.ledger.Snapshot(showingID)
}

// ListShowings returns a summary of every showing ordered by showtime.
func (s *BookingService) ListShowings(ctx context.Context) []model.ShowingSummary {
	return s.ledger.List()
}

// ProvisionRequest describes a new showing.  Seats lists explicit labels;
// when it is empty the layout is built from Rows and SeatsPerRow.
type ProvisionRequest struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Showtime       time.Time `json:"showtime"`
	BasePriceCents int64     `json:"base_price_cents"`
	Rows           int       `json:"rows"`
	SeatsPerRow    int       `json:"seats_per_row"`
	Seats          []string  `json:"seats"`
}

const (
	maxRows       = 26 // generated row labels stay within A..Z
	maxIDLen      = 64 // showings.id
	maxTitleLen   = 255
	maxSeatNumLen = 16 // show_seats.seat_number
)

// Showing builds the model for the request and checks everything the ledger
// and the tables would reject, so an invalid showing never reaches storage.
func (r ProvisionRequest) Showing() (model.Showing, error) {
	r.ID = strings.TrimSpace(r.ID)
	r.Title = strings.TrimSpace(r.Title)
	if r.ID == "" || r.Title == "" {
		return model.Showing{}, fmt.Errorf("%w: id and title are required", ledger.ErrInvalidShowing)
	}
	if utf8.RuneCountInString(r.ID) > maxIDLen || utf8.RuneCountInString(r.Title) > maxTitleLen {
		return model.Showing{}, fmt.Errorf("%w: id is limited to %d and title to %d characters", ledger.ErrInvalidShowing, maxIDLen, maxTitleLen)
	}
	if r.BasePriceCents <= 0 {
		return model.Showing{}, fmt.Errorf("%w: base price must be positive", ledger.ErrInvalidShowing)
	}
	labels := r.Seats
	if len(labels) == 0 {
		var err error
		if labels, err = SeatLayout(r.Rows, r.SeatsPerRow); err != nil {
			return model.Showing{}, err
		}
	}
	sh := model.Showing{
		ID:             r.ID,
		Title:          r.Title,
		Showtime:       r.Showtime.UTC(),
		BasePriceCents: r.BasePriceCents,
	}
	seen := make(map[string]struct{}, len(labels))
	for _, n := range labels {
		n = strings.TrimSpace(n)
		switch {
		case n == "":
			return model.Showing{}, fmt.Errorf("%w: blank seat number", ledger.ErrInvalidShowing)
		case utf8.RuneCountInString(n) > maxSeatNumLen:
			return model.Showing{}, fmt.Errorf("%w: seat number %q longer than %d characters", ledger.ErrInvalidShowing, n, maxSeatNumLen)
		}
		if _, dup := seen[n]; dup {
			return model.Showing{}, fmt.Errorf("%w: duplicate seat %q", ledger.ErrInvalidShowing, n)
		}
		seen[n] = struct{}{}
		sh.Seats = append(sh.Seats, model.Seat{Number: n, Status: model.SeatAvailable})
	}
	return sh, nil
}

// SeatLayout labels a rectangular hall row by row: A1, A2, ..., B1, ...
func SeatLayout(rows, perRow int) ([]string, error) {
	if rows <= 0 || perRow <= 0 || rows > maxRows {
		return nil, fmt.Errorf("%w: layout needs 1-%d rows and at least one seat per row", ledger.ErrInvalidShowing, maxRows)
	}
	labels := make([]string, 0, rows*perRow)
	for r := 0; r < rows; r++ {
		for c := 1; c <= perRow; c++ {
			labels = append(labels, fmt.Sprintf("%c%d", 'A'+r, c))
		}
	}
	return labels, nil
}

// Provision adds a showing.  The row is stored before the ledger accepts the
// showing so a restart never loses a showing clients have already seen.
func (s *BookingService) Provision(ctx context.Context, req ProvisionRequest) (model.Showing, error) {
	sh, err := req.Showing()
	if err != nil {
		return model.Showing{}, err
	}
	if _, err := s.ledger.Snapshot(sh.ID); err == nil {
		return model.Showing{}, fmt.Errorf("%w: %s", ledger.ErrShowingExists, sh.ID)
	}
	if s.store != nil {
		if err := s.store.Create(ctx, sh); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return model.Showing{}, fmt.Errorf("%w: %s", ledger.ErrShowingExists, sh.ID)
			}
			return model.Showing{}, err
		}
	}
	if err := s.ledger.Provision(sh); err != nil {
		return model.Showing{}, err
	}
	s.log.WithShowing(sh.ID).Info("showing provisioned", "title", sh.Title, "seats", len(sh.Seats))
	return s.ledger.Snapshot(sh.ID)
}

// DemoShowing is the showing seeded when SEED_DEMO is set: five rows of
// eight seats starting one day after now.
func DemoShowing(now time.Time) ProvisionRequest {
	return ProvisionRequest{
		ID:             "demo",
		Title:          "Demo Screening",
		Showtime:       now.Add(24 * time.Hour).Truncate(time.Hour),
		BasePriceCents: 1000,
		Rows:           5,
		SeatsPerRow:    8,
	}
}
