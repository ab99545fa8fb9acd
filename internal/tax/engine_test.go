package tax

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/taxdesk/internal/domain"
)

var tiers = []domain.SubscriptionType{domain.SubscriptionFree, domain.SubscriptionPremium}

func TestComputeCentsSchedule(t *testing.T) {
	engine := Default()

	tests := []struct {
		name       string
		income     int64
		deductions int64
		free       int64
		premium    int64
	}{
		{name: "zero income", income: 0, deductions: 0, free: 0, premium: 0},
		{name: "first bracket", income: 500_000, deductions: 0, free: 50_000, premium: 45_000},
		{name: "first bracket boundary", income: 1_000_000, deductions: 0, free: 100_000, premium: 90_000},
		{name: "second bracket", income: 2_500_000, deductions: 0, free: 400_000, premium: 360_000},
		{name: "second bracket boundary", income: 4_000_000, deductions: 0, free: 700_000, premium: 630_000},
		{name: "top bracket", income: 5_000_000, deductions: 500_000, free: 850_000, premium: 765_000},
		{name: "deductions exceed income", income: 100_000, deductions: 900_000, free: 0, premium: 0},
		{name: "rounds half up", income: 5, deductions: 0, free: 1, premium: 0},
		{name: "one cent", income: 1, deductions: 0, free: 0, premium: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			free, err := engine.ComputeCents(tt.income, tt.deductions, domain.SubscriptionFree)
			require.NoError(t, err)
			assert.Equal(t, tt.free, free)

			premium, err := engine.ComputeCents(tt.income, tt.deductions, domain.SubscriptionPremium)
			require.NoError(t, err)
			assert.Equal(t, tt.premium, premium)
		})
	}
}

func TestComputeFloat(t *testing.T) {
	got, err := Default().Compute(50000, 5000, domain.SubscriptionFree)
	require.NoError(t, err)
	assert.Equal(t, 8500.0, got)

	got, err = Default().Compute(50000, 5000, domain.SubscriptionPremium)
	require.NoError(t, err)
	assert.Equal(t, 7650.0, got)
}

func TestComputeRejectsBadInput(t *testing.T) {
	engine := Default()

	_, err := engine.Compute(-10, 0, domain.SubscriptionFree)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = engine.Compute(10, -1, domain.SubscriptionFree)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = engine.Compute(math.NaN(), 0, domain.SubscriptionFree)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = engine.Compute(math.Inf(1), 0, domain.SubscriptionFree)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = engine.Compute(1e13, 0, domain.SubscriptionFree)
	assert.ErrorIs(t, err, ErrAmountTooLarge)

	_, err = engine.ComputeCents(100, 0, domain.SubscriptionType("gold"))
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestComputeProperties(t *testing.T) {
	engine := Default()
	amounts := []int64{0, 1, 99, 12_345, 999_999, 1_000_000, 1_000_001, 3_999_999, 4_000_000, 7_654_321, 123_456_789_00}

	for _, tier := range tiers {
		for _, income := range amounts {
			noRelief, err := engine.ComputeCents(income, 0, tier)
			require.NoError(t, err)

			for _, deductions := range amounts {
				first, err := engine.ComputeCents(income, deductions, tier)
				require.NoError(t, err)
				again, err := engine.ComputeCents(income, deductions, tier)
				require.NoError(t, err)

				assert.Equal(t, first, again, "deterministic")
				assert.GreaterOrEqual(t, first, int64(0), "never negative")
				assert.GreaterOrEqual(t, noRelief, first, "deductions never raise tax")
			}
		}
	}
}

func TestPremiumNeverPaysMore(t *testing.T) {
	engine := Default()
	for _, income := range []int64{0, 50, 1_000_000, 4_500_000, 99_999_999} {
		free, err := engine.ComputeCents(income, 0, domain.SubscriptionFree)
		require.NoError(t, err)
		premium, err := engine.ComputeCents(income, 0, domain.SubscriptionPremium)
		require.NoError(t, err)
		assert.LessOrEqual(t, premium, free)
	}
}

func TestNewEngineValidatesSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule Schedule
	}{
		{name: "empty", schedule: Schedule{}},
		{name: "bounded tail", schedule: Schedule{Brackets: []Bracket{{UpToCents: 100, RatePercent: 10}}}},
		{name: "non increasing", schedule: Schedule{Brackets: []Bracket{
			{UpToCents: 100, RatePercent: 10},
			{UpToCents: 100, RatePercent: 20},
			{RatePercent: 30},
		}}},
		{name: "rate above 100", schedule: Schedule{Brackets: []Bracket{{RatePercent: 101}}}},
		{name: "rebate out of range", schedule: Schedule{Brackets: []Bracket{{RatePercent: 10}}, PremiumRebatePercent: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.schedule)
			assert.Error(t, err)
		})
	}

	flat, err := NewEngine(Schedule{Brackets: []Bracket{{RatePercent: 25}}})
	require.NoError(t, err)
	got, err := flat.ComputeCents(10_000, 0, domain.SubscriptionPremium)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500), got)
}
