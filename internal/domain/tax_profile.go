package domain

import "time"

// TaxProfile is the last figures an identity submitted together with the tax
// computed for them. Amounts are integer cents.
type TaxProfile struct {
	IdentityID         string
	IncomeCents        int64
	DeductionsCents    int64
	TaxCalculatedCents int64
	// SubscriptionType is the tier TaxCalculatedCents was computed for.
	SubscriptionType SubscriptionType
	UpdatedAt        time.Time
}
