package dto

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/spec-kit/taxdesk/internal/domain"
	"github.com/spec-kit/taxdesk/internal/tax"
)

var errNotNumeric = errors.New("must be a number")

// Amount is a currency value sent either as a JSON number or as a numeric
// string, the way HTML number inputs often arrive.
type Amount struct {
	raw string
}

// UnmarshalJSON keeps the literal so it can be parsed to exact cents.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errNotNumeric
		}
		a.raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errNotNumeric
	}
	a.raw = n.String()
	return nil
}

// Cents parses the amount.
func (a *Amount) Cents() (int64, error) {
	return tax.ParseCents(a.raw)
}

// TaxProfileRequest is the body of POST /tax/profile.
type TaxProfileRequest struct {
	Income     *Amount `json:"income"`
	Deductions *Amount `json:"deductions"`
}

// TaxProfileResponse renders a profile in currency units.
type TaxProfileResponse struct {
	Income        float64 `json:"income"`
	Deductions    float64 `json:"deductions"`
	TaxCalculated float64 `json:"taxCalculated"`
}

// NewTaxProfileResponse renders profile; nil renders the zero profile.
func NewTaxProfileResponse(profile *domain.TaxProfile) TaxProfileResponse {
	if profile == nil {
		return TaxProfileResponse{}
	}
	return TaxProfileResponse{
		Income:        tax.ToFloat(profile.IncomeCents),
		Deductions:    tax.ToFloat(profile.DeductionsCents),
		TaxCalculated: tax.ToFloat(profile.TaxCalculatedCents),
	}
}
