package stripewebhook

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
)

type subscriberStore interface {
	FindByCustomerRef(ctx context.Context, customerRef string) (*models.Subscriber, error)
	UpdatePlanStatus(ctx context.Context, planID uuid.UUID, status enums.PlanStatus) error
}

type ServiceParams struct {
	Subscribers subscriberStore
	Logger      *logger.Logger
}

// Service reacts to Stripe billing events that end a subscriber's plan.
type Service struct {
	subscribers subscriberStore
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscribers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriber repo required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{subscribers: params.Subscribers, logg: params.Logger}, nil
}

// HandleEvent cancels the plan of the customer behind a failed invoice or a
// deleted subscription. Every other event type is acknowledged and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeInvoicePaymentFailed, stripe.EventTypeCustomerSubscriptionDeleted:
	default:
		return nil
	}

	customerRef := event.GetObjectValue("customer")
	if customerRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id missing")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_type":  string(event.Type),
		"customer_id": customerRef,
	})
	return s.cancelPlan(ctx, customerRef)
}

func (s *Service) cancelPlan(ctx context.Context, customerRef string) error {
	sub, err := s.subscribers.FindByCustomerRef(ctx, customerRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Customers created outside the meal plan flow are not ours.
			s.logg.Warn(ctx, "stripe event for unknown customer ignored")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscriber")
	}
	if sub.Plan == nil {
		s.logg.Warn(s.logg.WithSubscriberID(ctx, sub.ID.String()), "stripe event for subscriber without plan ignored")
		return nil
	}
	if sub.Plan.Status == enums.PlanStatusCanceled {
		return nil
	}
	if err := s.subscribers.UpdatePlanStatus(ctx, sub.Plan.ID, enums.PlanStatusCanceled); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel plan")
	}
	s.logg.Info(s.logg.WithSubscriberID(ctx, sub.ID.String()), "plan canceled by billing event")
	return nil
}
