package tax

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MaxAmountCents caps accepted amounts at 1,000,000,000,000.00.
const MaxAmountCents int64 = 100_000_000_000_000

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrInvalidAmount  = errors.New("amount is not a finite number")
	ErrAmountTooLarge = errors.New("amount exceeds the supported maximum")
)

// decimalNumeral excludes the hex, underscore, Inf and NaN forms that
// strconv.ParseFloat would otherwise accept.
var decimalNumeral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseCents converts a decimal string to cents, rounding half-up on the
// third fractional digit. Exponent notation is accepted.
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !decimalNumeral.MatchString(s) {
		return 0, ErrInvalidAmount
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return FromFloat(f)
}

// FromFloat converts v to cents using its shortest decimal representation,
// so 0.285 becomes 29 cents rather than falling victim to binary rounding.
func FromFloat(v float64) (int64, error) {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, ErrInvalidAmount
	case v < 0:
		return 0, ErrNegativeAmount
	case v > float64(MaxAmountCents)/100:
		return 0, ErrAmountTooLarge
	}

	repr := strconv.FormatFloat(v, 'f', -1, 64)
	whole, frac, _ := strings.Cut(repr, ".")

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	padded := (frac + "00")[:2]
	hundredths, err := strconv.ParseInt(padded, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	cents := units*100 + hundredths
	if len(frac) > 2 && frac[2] >= '5' {
		cents++
	}
	if cents > MaxAmountCents {
		return 0, ErrAmountTooLarge
	}
	return cents, nil
}

// ToFloat renders cents as a currency amount.
func ToFloat(cents int64) float64 {
	return float64(cents) / 100
}
