// Package pricing derives a showing's current price from demand.
package pricing

import (
	"context"
	"math"

	"github.com/iliyamo/seatsync/internal/model"
	"github.com/iliyamo/seatsync/pkg/logger"
)

// Params shapes the demand curve.  The price grows linearly with the booked
// share of seats, SurgePerOccupancy being the extra multiple at a full house,
// and is capped at MaxMultiplier times the base price.  Results are rounded
// to the nearest StepCents.
type Params struct {
	SurgePerOccupancy float64
	MaxMultiplier     float64
	StepCents         int64
}

// DefaultParams returns +50% at a sold-out house, capped at 1.5x, whole cents.
func DefaultParams() Params {
	return Params{SurgePerOccupancy: 0.5, MaxMultiplier: 1.5, StepCents: 1}
}

// Compute returns the price for a showing with the given base price and
// booked/total seat counts.  It is a pure function of its inputs.
func Compute(baseCents int64, booked, total int, p Params) int64 {
	if total <= 0 || booked <= 0 || baseCents <= 0 {
		return baseCents
	}
	if booked > total {
		booked = total
	}
	mult := 1 + p.SurgePerOccupancy*float64(booked)/float64(total)
	if p.MaxMultiplier >= 1 && mult > p.MaxMultiplier {
		mult = p.MaxMultiplier
	}
	if mult < 0 {
		mult = 0
	}
	price := float64(baseCents) * mult
	step := p.StepCents
	if step <= 0 {
		step = 1
	}
	return int64(math.Round(price/float64(step))) * step
}

// Repricer is the ledger capability the adjuster needs.
type Repricer interface {
	Reprice(showingID string, fn func(model.Occupancy) int64) (model.Delta, bool, error)
}

// Adjuster recomputes prices after bookings.  The ledger emits the resulting
// PriceChanged delta, which reaches subscribers through the broadcaster.
type Adjuster struct {
	ledger Repricer
	params Params
	log    *logger.Logger
}

// NewAdjuster returns an Adjuster writing prices into l.
func NewAdjuster(l Repricer, params Params, log *logger.Logger) *Adjuster {
	if log == nil {
		log = logger.Discard()
	}
	return &Adjuster{ledger: l, params: params, log: log}
}

// Params returns the adjuster's curve.
func (a *Adjuster) Params() Params { return a.params }

// OnBookingEvent reprices a showing from its current booked count.  It
// returns the published delta, or nil when the price did not move.
func (a *Adjuster) OnBookingEvent(ctx context.Context, showingID string) (*model.Delta, error) {
	var old int64
	d, changed, err := a.ledger.Reprice(showingID, func(o model.Occupancy) int64 {
		old = o.CurrentPriceCents
		return Compute(o.BasePriceCents, o.Booked, o.Total, a.params)
	})
	if err != nil || !changed {
		return nil, err
	}
	a.log.LogPriceChange(ctx, showingID, old, d.PriceCents)
	return &d, nil
}
