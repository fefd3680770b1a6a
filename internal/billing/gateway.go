package billing

import (
	"context"
	"time"

	"github.com/angelmondragon/mealbox-backend/pkg/enums"
)

// ProrationNone keeps the provider from charging partial periods when the
// weekly price changes.
const ProrationNone = "none"

// Subscription is the provider-side subscription as far as plan billing
// cares about it.
type Subscription struct {
	ID       string
	Status   string
	TrialEnd time.Time
	ItemIDs  []string
}

// UpdateParams describes one subscription update. Zero values leave the
// corresponding field untouched.
type UpdateParams struct {
	NewPriceRef       string
	RemoveItemIDs     []string
	ProrationPolicy   string
	TrialEnd          *time.Time
	CancelAtPeriodEnd bool
}

// PriceParams describes a recurring price for the plan product.
type PriceParams struct {
	AmountCents int64
	Currency    enums.Currency
	Interval    enums.BillingInterval
}

// Gateway is the billing provider surface used by plan billing.
type Gateway interface {
	ListSubscriptions(ctx context.Context, customerRef string) ([]Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params UpdateParams) (Subscription, error)
	CreatePrice(ctx context.Context, params PriceParams) (string, error)
	CreateSubscription(ctx context.Context, customerRef, priceRef string, trialDays int) (Subscription, error)
	HasPaymentMethod(ctx context.Context, customerRef string) (bool, error)
}
