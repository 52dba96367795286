package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/seatsync/internal/model"
)

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// ShowingRepo stores showings and their seat states.  All timestamps are
// written and read in UTC.
type ShowingRepo struct {
	db *sql.DB
}

// NewShowingRepo constructs a ShowingRepo with the given DB handle.
func NewShowingRepo(db *sql.DB) *ShowingRepo {
	return &ShowingRepo{db: db}
}

// DB exposes the underlying sql.DB.
func (r *ShowingRepo) DB() *sql.DB { return r.db }

// Create inserts a showing and all of its seats in one transaction.  A
// duplicate ID returns ErrConflict.
func (r *ShowingRepo) Create(ctx context.Context, s model.Showing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO showings (id, title, showtime, base_price_cents, current_price_cents, price_version)
	           VALUES (?, ?, ?, ?, ?, ?)`
	price := s.CurrentPriceCents
	if price <= 0 {
		price = s.BasePriceCents
	}
	if _, err := tx.ExecContext(ctx, q, s.ID, s.Title, s.Showtime.UTC(), s.BasePriceCents, price, s.PriceVersion); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return fmt.Errorf("%w: showing %s", ErrConflict, s.ID)
		}
		return err
	}
	if err := r.createSeatsTx(ctx, tx, s.ID, s.Seats); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// createSeatsTx inserts all seats of a showing in a single statement.  The
// slice order becomes the position column.
func (r *ShowingRepo) createSeatsTx(ctx context.Context, tx *sql.Tx, showingID string, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO show_seats (showing_id, seat_number, position, status, holder, lease_id, held_at, expires_at, booked_by, version) VALUES `)
	args := make([]interface{}, 0, len(seats)*10)
	for i, st := range seats {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		status := st.Status
		if status == "" {
			status = model.SeatAvailable
		}
		args = append(args, showingID, st.Number, i, string(status),
			nullString(st.Holder), nullString(st.LeaseID), nullTime(st.HeldAt), nullTime(st.ExpiresAt),
			nullString(st.BookedBy), st.Version)
	}
	_, err := tx.ExecContext(ctx, b.String(), args...)
	return err
}

// LoadAll reads every showing with its seats in position order.
func (r *ShowingRepo) LoadAll(ctx context.Context) ([]model.Showing, error) {
	const qs = `SELECT id, title, showtime, base_price_cents, current_price_cents, price_version
	            FROM showings ORDER BY showtime, id`
	rows, err := r.db.QueryContext(ctx, qs)
	if err != nil {
		return nil, err
	}
	var showings []model.Showing
	index := make(map[string]int)
	for rows.Next() {
		var s model.Showing
		if err := rows.Scan(&s.ID, &s.Title, &s.Showtime, &s.BasePriceCents, &s.CurrentPriceCents, &s.PriceVersion); err != nil {
			rows.Close()
			return nil, err
		}
		index[s.ID] = len(showings)
		showings = append(showings, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(showings) == 0 {
		return showings, nil
	}

	const qseats = `SELECT showing_id, seat_number, status, holder, lease_id, held_at, expires_at, booked_by, version
	                FROM show_seats ORDER BY showing_id, position`
	srows, err := r.db.QueryContext(ctx, qseats)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var (
			showingID                 string
			st                        model.Seat
			status                    string
			holder, leaseID, bookedBy sql.NullString
			heldAt, expiresAt         sql.NullTime
		)
		if err := srows.Scan(&showingID, &st.Number, &status, &holder, &leaseID, &heldAt, &expiresAt, &bookedBy, &st.Version); err != nil {
			return nil, err
		}
		i, ok := index[showingID]
		if !ok {
			continue
		}
		st.Status = model.SeatStatus(status)
		st.Holder = holder.String
		st.LeaseID = leaseID.String
		st.BookedBy = bookedBy.String
		if heldAt.Valid {
			st.HeldAt = heldAt.Time.UTC()
		}
		if expiresAt.Valid {
			st.ExpiresAt = expiresAt.Time.UTC()
		}
		showings[i].Seats = append(showings[i].Seats, st)
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return showings, nil
}

// SaveSeat writes the state of one seat.  The write only lands when the
// stored version is older, so replays and out-of-order writes are harmless.
func (r *ShowingRepo) SaveSeat(ctx context.Context, showingID string, st model.Seat) error {
	const q = `UPDATE show_seats
	           SET status = ?, holder = ?, lease_id = ?, held_at = ?, expires_at = ?, booked_by = ?, version = ?
	           WHERE showing_id = ? AND seat_number = ? AND version < ?`
	_, err := r.db.ExecContext(ctx, q,
		string(st.Status), nullString(st.Holder), nullString(st.LeaseID), nullTime(st.HeldAt), nullTime(st.ExpiresAt),
		nullString(st.BookedBy), st.Version,
		showingID, st.Number, st.Version)
	return err
}

// SavePrice writes the current price of a showing, guarded by version like
// SaveSeat.
func (r *ShowingRepo) SavePrice(ctx context.Context, showingID string, cents int64, version uint64) error {
	const q = `UPDATE showings SET current_price_cents = ?, price_version = ? WHERE id = ? AND price_version < ?`
	_, err := r.db.ExecContext(ctx, q, cents, version, showingID, version)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
