package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/taxdesk/internal/domain"
	"github.com/spec-kit/taxdesk/internal/tax"
)

func TestTaxProfileRequestCoercesNumbers(t *testing.T) {
	tests := []struct {
		body       string
		income     int64
		deductions int64
	}{
		{body: `{"income":50000,"deductions":5000}`, income: 5_000_000, deductions: 500_000},
		{body: `{"income":"50000","deductions":"5000.5"}`, income: 5_000_000, deductions: 500_050},
		{body: `{"income":1e3,"deductions":0.005}`, income: 100_000, deductions: 1},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req TaxProfileRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			income, err := req.Income.Cents()
			require.NoError(t, err)
			assert.Equal(t, tt.income, income)

			deductions, err := req.Deductions.Cents()
			require.NoError(t, err)
			assert.Equal(t, tt.deductions, deductions)
		})
	}
}

func TestTaxProfileRequestRejects(t *testing.T) {
	var req TaxProfileRequest
	assert.Error(t, json.Unmarshal([]byte(`{"income":true,"deductions":0}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"income":{},"deductions":0}`), &req))

	req = TaxProfileRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"income":"abc","deductions":-1}`), &req))
	_, err := req.Income.Cents()
	assert.ErrorIs(t, err, tax.ErrInvalidAmount)
	_, err = req.Deductions.Cents()
	assert.ErrorIs(t, err, tax.ErrNegativeAmount)

	req = TaxProfileRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"income":null}`), &req))
	assert.Nil(t, req.Income)
	assert.Nil(t, req.Deductions)
}

func TestNewTaxProfileResponse(t *testing.T) {
	assert.Equal(t, TaxProfileResponse{}, NewTaxProfileResponse(nil))

	got := NewTaxProfileResponse(&domain.TaxProfile{IncomeCents: 5_000_000, DeductionsCents: 500_000, TaxCalculatedCents: 850_000})
	assert.Equal(t, TaxProfileResponse{Income: 50000, Deductions: 5000, TaxCalculated: 8500}, got)

	body, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"income":50000,"deductions":5000,"taxCalculated":8500}`, string(body))
}
