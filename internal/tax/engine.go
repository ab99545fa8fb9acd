// Package tax computes income tax from a progressive bracket schedule.
//
// Amounts are integer cents throughout. The taxable base is income minus
// deductions, floored at zero. Each bracket taxes the slice of the base that
// falls inside it at its marginal rate. Premium accounts then receive a
// percentage rebate on the bracket total. The result is rounded half-up to
// the cent once, at the end, so the output is exact and reproducible.
//
// With DefaultSchedule a taxable base of 45,000.00 owes
// 10% of 10,000 + 20% of 30,000 + 30% of 5,000 = 8,500.00 on the free tier
// and 8,500.00 - 10% = 7,650.00 on the premium tier.
package tax

import (
	"errors"
	"fmt"

	"github.com/spec-kit/taxdesk/internal/domain"
)

var ErrUnknownTier = errors.New("unknown subscription tier")

// Bracket taxes the part of the base up to UpToCents at RatePercent.
// The last bracket uses UpToCents == 0 to mean unbounded.
type Bracket struct {
	UpToCents   int64
	RatePercent int64
}

// Schedule is a full rate table plus the premium rebate.
type Schedule struct {
	Brackets             []Bracket
	PremiumRebatePercent int64
}

// DefaultSchedule is the schedule the service runs with.
var DefaultSchedule = Schedule{
	Brackets: []Bracket{
		{UpToCents: 1_000_000, RatePercent: 10},
		{UpToCents: 4_000_000, RatePercent: 20},
		{UpToCents: 0, RatePercent: 30},
	},
	PremiumRebatePercent: 10,
}

// Engine applies a Schedule. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	schedule Schedule
}

// NewEngine validates the schedule and builds an engine.
func NewEngine(schedule Schedule) (*Engine, error) {
	if len(schedule.Brackets) == 0 {
		return nil, errors.New("schedule has no brackets")
	}
	var prev int64
	for i, b := range schedule.Brackets {
		last := i == len(schedule.Brackets)-1
		if b.RatePercent < 0 || b.RatePercent > 100 {
			return nil, fmt.Errorf("bracket %d: rate %d out of range", i, b.RatePercent)
		}
		if last && b.UpToCents != 0 {
			return nil, fmt.Errorf("bracket %d: last bracket must be unbounded", i)
		}
		if !last && b.UpToCents <= prev {
			return nil, fmt.Errorf("bracket %d: bounds must increase", i)
		}
		prev = b.UpToCents
	}
	if schedule.PremiumRebatePercent < 0 || schedule.PremiumRebatePercent > 100 {
		return nil, fmt.Errorf("premium rebate %d out of range", schedule.PremiumRebatePercent)
	}
	return &Engine{schedule: schedule}, nil
}

// Default returns an engine for DefaultSchedule.
func Default() *Engine {
	e, err := NewEngine(DefaultSchedule)
	if err != nil {
		panic(err)
	}
	return e
}

// Compute is ComputeCents for decimal amounts.
func (e *Engine) Compute(income, deductions float64, tier domain.SubscriptionType) (float64, error) {
	incomeCents, err := FromFloat(income)
	if err != nil {
		return 0, fmt.Errorf("income: %w", err)
	}
	deductionsCents, err := FromFloat(deductions)
	if err != nil {
		return 0, fmt.Errorf("deductions: %w", err)
	}
	cents, err := e.ComputeCents(incomeCents, deductionsCents, tier)
	if err != nil {
		return 0, err
	}
	return ToFloat(cents), nil
}

// ComputeCents returns the tax owed in cents.
func (e *Engine) ComputeCents(incomeCents, deductionsCents int64, tier domain.SubscriptionType) (int64, error) {
	if incomeCents < 0 || deductionsCents < 0 {
		return 0, ErrNegativeAmount
	}
	if incomeCents > MaxAmountCents || deductionsCents > MaxAmountCents {
		return 0, ErrAmountTooLarge
	}
	if !tier.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	base := max(incomeCents-deductionsCents, 0)

	// hundredths of a cent
	var owed int64
	var lower int64
	for _, b := range e.schedule.Brackets {
		upper := b.UpToCents
		if upper == 0 || upper > base {
			upper = base
		}
		if upper > lower {
			owed += (upper - lower) * b.RatePercent
		}
		if upper == base {
			break
		}
		lower = upper
	}

	denominator := int64(100)
	if tier == domain.SubscriptionPremium {
		owed *= 100 - e.schedule.PremiumRebatePercent
		denominator *= 100
	}
	return roundHalfUp(owed, denominator), nil
}

func roundHalfUp(n, d int64) int64 {
	return (n + d/2) / d
}
