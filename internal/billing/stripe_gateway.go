package billing

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentmethod"
	"github.com/stripe/stripe-go/v84/price"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/mealbox-backend/pkg/stripe"
)

const defaultCallTimeout = 15 * time.Second

// stripeAPI is the slice of stripe-go used here, kept behind an interface
// so tests can inspect the params.
type stripeAPI interface {
	ListSubscriptions(params *stripe.SubscriptionListParams) ([]*stripe.Subscription, error)
	UpdateSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	NewSubscription(params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	NewPrice(params *stripe.PriceParams) (*stripe.Price, error)
	FirstPaymentMethod(params *stripe.PaymentMethodListParams) (*stripe.PaymentMethod, error)
}

type stripePackageAPI struct{}

func (stripePackageAPI) ListSubscriptions(params *stripe.SubscriptionListParams) ([]*stripe.Subscription, error) {
	iter := subscription.List(params)
	var out []*stripe.Subscription
	for iter.Next() {
		out = append(out, iter.Subscription())
	}
	return out, iter.Err()
}

func (stripePackageAPI) UpdateSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return subscription.Update(id, params)
}

func (stripePackageAPI) NewSubscription(params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return subscription.New(params)
}

func (stripePackageAPI) NewPrice(params *stripe.PriceParams) (*stripe.Price, error) {
	return price.New(params)
}

func (stripePackageAPI) FirstPaymentMethod(params *stripe.PaymentMethodListParams) (*stripe.PaymentMethod, error) {
	iter := paymentmethod.List(params)
	if iter.Next() {
		return iter.PaymentMethod(), nil
	}
	return nil, iter.Err()
}

// StripeGateway implements Gateway on stripe-go. Every call runs under its
// own timeout.
type StripeGateway struct {
	api       stripeAPI
	productID string
	timeout   time.Duration
}

// NewStripeGateway requires an initialised client so stripe.Key is set.
func NewStripeGateway(client *pkgstripe.Client, productID string, timeout time.Duration) (*StripeGateway, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	if productID == "" {
		return nil, errors.New("stripe product id required")
	}
	return newStripeGateway(stripePackageAPI{}, productID, timeout), nil
}

func newStripeGateway(api stripeAPI, productID string, timeout time.Duration) *StripeGateway {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &StripeGateway{api: api, productID: productID, timeout: timeout}
}

func (g *StripeGateway) ListSubscriptions(ctx context.Context, customerRef string) ([]Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.SubscriptionListParams{Customer: stripe.String(customerRef)}
	params.Context = ctx
	subs, err := g.api.ListSubscriptions(params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stripe subscriptions")
	}
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		out = append(out, fromStripeSubscription(s))
	}
	return out, nil
}

func (g *StripeGateway) UpdateSubscription(ctx context.Context, id string, in UpdateParams) (Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	for _, itemID := range in.RemoveItemIDs {
		params.Items = append(params.Items, &stripe.SubscriptionItemsParams{
			ID:      stripe.String(itemID),
			Deleted: stripe.Bool(true),
		})
	}
	if in.NewPriceRef != "" {
		params.Items = append(params.Items, &stripe.SubscriptionItemsParams{Price: stripe.String(in.NewPriceRef)})
	}
	if in.ProrationPolicy != "" {
		params.ProrationBehavior = stripe.String(in.ProrationPolicy)
	}
	if in.TrialEnd != nil {
		params.TrialEnd = stripe.Int64(in.TrialEnd.Unix())
	}
	if in.CancelAtPeriodEnd {
		params.CancelAtPeriodEnd = stripe.Bool(true)
	}

	sub, err := g.api.UpdateSubscription(id, params)
	if err != nil {
		return Subscription{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stripe subscription")
	}
	return fromStripeSubscription(sub), nil
}

func (g *StripeGateway) CreatePrice(ctx context.Context, in PriceParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PriceParams{
		Currency:   stripe.String(in.Currency.String()),
		Product:    stripe.String(g.productID),
		UnitAmount: stripe.Int64(in.AmountCents),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(in.Interval.String()),
		},
	}
	params.Context = ctx
	p, err := g.api.NewPrice(params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe price")
	}
	return p.ID, nil
}

func (g *StripeGateway) CreateSubscription(ctx context.Context, customerRef, priceRef string, trialDays int) (Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerRef),
		Items:    []*stripe.SubscriptionItemsParams{{Price: stripe.String(priceRef)}},
	}
	if trialDays > 0 {
		params.TrialPeriodDays = stripe.Int64(int64(trialDays))
	}
	params.Context = ctx
	sub, err := g.api.NewSubscription(params)
	if err != nil {
		return Subscription{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe subscription")
	}
	return fromStripeSubscription(sub), nil
}

func (g *StripeGateway) HasPaymentMethod(ctx context.Context, customerRef string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentMethodListParams{Customer: stripe.String(customerRef)}
	params.Limit = stripe.Int64(1)
	params.Context = ctx
	method, err := g.api.FirstPaymentMethod(params)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stripe payment methods")
	}
	return method != nil, nil
}

func fromStripeSubscription(s *stripe.Subscription) Subscription {
	if s == nil {
		return Subscription{}
	}
	out := Subscription{ID: s.ID, Status: string(s.Status)}
	if s.TrialEnd > 0 {
		out.TrialEnd = time.Unix(s.TrialEnd, 0)
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			if item != nil {
				out.ItemIDs = append(out.ItemIDs, item.ID)
			}
		}
	}
	return out
}
