package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/iliyamo/seatsync/internal/ledger"
	"github.com/iliyamo/seatsync/internal/model"
)

func TestCompute(t *testing.T) {
	def := DefaultParams()
	cases := []struct {
		name          string
		base          int64
		booked, total int
		p             Params
		want          int64
	}{
		{"nothing booked", 1000, 0, 10, def, 1000},
		{"one of ten", 1000, 1, 10, def, 1050},
		{"half", 1000, 5, 10, def, 1250},
		{"full house", 1000, 10, 10, def, 1500},
		{"over-count clamps", 1000, 12, 10, def, 1500},
		{"cap below curve", 1000, 10, 10, Params{SurgePerOccupancy: 1, MaxMultiplier: 1.2, StepCents: 1}, 1200},
		{"rounded to quarter", 999, 1, 3, Params{SurgePerOccupancy: 0.5, MaxMultiplier: 2, StepCents: 25}, 1175},
		{"no seats", 1000, 0, 0, def, 1000},
		{"free showing", 0, 5, 10, def, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compute(tc.base, tc.booked, tc.total, tc.p); got != tc.want {
				t.Fatalf("Compute = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	p := DefaultParams()
	first := Compute(1234, 7, 40, p)
	for i := 0; i < 100; i++ {
		if got := Compute(1234, 7, 40, p); got != first {
			t.Fatalf("run %d: %d != %d", i, got, first)
		}
	}
}

func TestOnBookingEvent(t *testing.T) {
	l := ledger.New()
	l.Provision(model.Showing{ID: "s1", BasePriceCents: 1000, Seats: []model.Seat{{Number: "A1"}, {Number: "A2"}}})
	a := NewAdjuster(l, DefaultParams(), nil)
	ctx := context.Background()

	d, err := a.OnBookingEvent(ctx, "s1")
	if err != nil || d != nil {
		t.Fatalf("no bookings: delta=%v err=%v", d, err)
	}

	l.CompareAndSet("s1", "A1", model.SeatAvailable, ledger.Transition{Status: model.SeatHeld, Holder: "x", ExpiresAt: time.Now().Add(time.Minute)})
	l.CompareAndSet("s1", "A1", model.SeatHeld, ledger.Transition{Status: model.SeatBooked})

	d, err = a.OnBookingEvent(ctx, "s1")
	if err != nil || d == nil {
		t.Fatalf("after booking: delta=%v err=%v", d, err)
	}
	if d.Type != model.DeltaPrice || d.PriceCents != 1250 || d.Version != 1 {
		t.Fatalf("delta = %+v", *d)
	}
	if _, err := a.OnBookingEvent(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown showing")
	}
}
