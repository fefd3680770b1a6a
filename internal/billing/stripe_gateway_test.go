package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
)

type fakeStripeAPI struct {
	listParams   *stripe.SubscriptionListParams
	updateID     string
	updateParams *stripe.SubscriptionParams
	newParams    *stripe.SubscriptionParams
	priceParams  *stripe.PriceParams
	methodParams *stripe.PaymentMethodListParams
	subs         []*stripe.Subscription
	method       *stripe.PaymentMethod
	err          error
}

func (f *fakeStripeAPI) ListSubscriptions(params *stripe.SubscriptionListParams) ([]*stripe.Subscription, error) {
	f.listParams = params
	return f.subs, f.err
}

func (f *fakeStripeAPI) UpdateSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	f.updateID = id
	f.updateParams = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.Subscription{ID: id}, nil
}

func (f *fakeStripeAPI) NewSubscription(params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	f.newParams = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.Subscription{ID: "sub_new"}, nil
}

func (f *fakeStripeAPI) NewPrice(params *stripe.PriceParams) (*stripe.Price, error) {
	f.priceParams = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.Price{ID: "price_new"}, nil
}

func (f *fakeStripeAPI) FirstPaymentMethod(params *stripe.PaymentMethodListParams) (*stripe.PaymentMethod, error) {
	f.methodParams = params
	return f.method, f.err
}

func TestStripeGateway_ListMapsItemsAndTrial(t *testing.T) {
	trialEnd := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	api := &fakeStripeAPI{subs: []*stripe.Subscription{{
		ID:       "sub_1",
		Status:   stripe.SubscriptionStatusTrialing,
		TrialEnd: trialEnd.Unix(),
		Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{
			{ID: "si_1"},
			{ID: "si_2"},
		}},
	}}}
	gw := newStripeGateway(api, "prod_plan", 0)

	subs, err := gw.ListSubscriptions(context.Background(), "cus_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if api.listParams.Customer == nil || *api.listParams.Customer != "cus_1" {
		t.Fatalf("expected customer filter")
	}
	if _, ok := api.listParams.Context.Deadline(); !ok {
		t.Fatalf("expected call deadline")
	}
	if len(subs) != 1 || subs[0].ID != "sub_1" || len(subs[0].ItemIDs) != 2 || subs[0].Status != "trialing" {
		t.Fatalf("unexpected subscriptions %+v", subs)
	}
	if !subs[0].TrialEnd.Equal(trialEnd) {
		t.Fatalf("expected trial end %v, got %v", trialEnd, subs[0].TrialEnd)
	}
}

func TestStripeGateway_UpdateSwapsItems(t *testing.T) {
	api := &fakeStripeAPI{}
	gw := newStripeGateway(api, "prod_plan", time.Second)
	trialEnd := time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)

	_, err := gw.UpdateSubscription(context.Background(), "sub_1", UpdateParams{
		NewPriceRef:     "price_2",
		RemoveItemIDs:   []string{"si_1"},
		ProrationPolicy: ProrationNone,
		TrialEnd:        &trialEnd,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	p := api.updateParams
	if api.updateID != "sub_1" || len(p.Items) != 2 {
		t.Fatalf("unexpected update %s %+v", api.updateID, p.Items)
	}
	if *p.Items[0].ID != "si_1" || !*p.Items[0].Deleted {
		t.Fatalf("expected old item deleted")
	}
	if *p.Items[1].Price != "price_2" {
		t.Fatalf("expected new price item")
	}
	if *p.ProrationBehavior != "none" || *p.TrialEnd != trialEnd.Unix() {
		t.Fatalf("unexpected proration or trial end")
	}
	if p.CancelAtPeriodEnd != nil {
		t.Fatalf("cancel flag must stay unset")
	}
}

func TestStripeGateway_CreatePriceIsWeeklyForProduct(t *testing.T) {
	api := &fakeStripeAPI{}
	gw := newStripeGateway(api, "prod_plan", 0)

	ref, err := gw.CreatePrice(context.Background(), PriceParams{AmountCents: 5606, Currency: enums.CurrencyEUR, Interval: enums.BillingIntervalWeek})
	if err != nil {
		t.Fatalf("create price: %v", err)
	}
	p := api.priceParams
	if ref != "price_new" || *p.Product != "prod_plan" || *p.UnitAmount != 5606 || *p.Currency != "eur" || *p.Recurring.Interval != "week" {
		t.Fatalf("unexpected price params %+v", p)
	}
}

func TestStripeGateway_CreateSubscriptionTrial(t *testing.T) {
	api := &fakeStripeAPI{}
	gw := newStripeGateway(api, "prod_plan", 0)

	if _, err := gw.CreateSubscription(context.Background(), "cus_1", "price_1", 12); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	p := api.newParams
	if *p.Customer != "cus_1" || *p.Items[0].Price != "price_1" || *p.TrialPeriodDays != 12 {
		t.Fatalf("unexpected subscription params %+v", p)
	}
}

func TestStripeGateway_HasPaymentMethod(t *testing.T) {
	api := &fakeStripeAPI{}
	gw := newStripeGateway(api, "prod_plan", 0)

	ok, err := gw.HasPaymentMethod(context.Background(), "cus_1")
	if err != nil || ok {
		t.Fatalf("expected no method, got %v %v", ok, err)
	}
	api.method = &stripe.PaymentMethod{ID: "pm_1"}
	ok, err = gw.HasPaymentMethod(context.Background(), "cus_1")
	if err != nil || !ok {
		t.Fatalf("expected method, got %v %v", ok, err)
	}
	if *api.methodParams.Limit != 1 {
		t.Fatalf("expected single-item page")
	}
}

func TestStripeGateway_ErrorsAreUpstreamFailures(t *testing.T) {
	api := &fakeStripeAPI{err: errors.New("connection reset")}
	gw := newStripeGateway(api, "prod_plan", 0)

	if _, err := gw.ListSubscriptions(context.Background(), "cus_1"); !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if _, err := gw.CreatePrice(context.Background(), PriceParams{}); !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
