// Package app assembles the plan billing and ordering services shared by the
// api and cron-worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/mealbox-backend/internal/admins"
	"github.com/angelmondragon/mealbox-backend/internal/auth"
	"github.com/angelmondragon/mealbox-backend/internal/autoconfirm"
	"github.com/angelmondragon/mealbox-backend/internal/billing"
	"github.com/angelmondragon/mealbox-backend/internal/meals"
	"github.com/angelmondragon/mealbox-backend/internal/notify"
	"github.com/angelmondragon/mealbox-backend/internal/planorders"
	"github.com/angelmondragon/mealbox-backend/internal/plans"
	"github.com/angelmondragon/mealbox-backend/internal/pricing"
	"github.com/angelmondragon/mealbox-backend/internal/subscribers"
	"github.com/angelmondragon/mealbox-backend/internal/weekcal"
	"github.com/angelmondragon/mealbox-backend/pkg/config"
	"github.com/angelmondragon/mealbox-backend/pkg/db"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/metrics"
	"github.com/angelmondragon/mealbox-backend/pkg/pubsub"
	"github.com/angelmondragon/mealbox-backend/pkg/stripe"
)

type PlanStackParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Registerer prometheus.Registerer
}

// PlanStack holds everything the plan workflow needs once wired.
type PlanStack struct {
	Calendar    *weekcal.Calendar
	Stripe      *stripe.Client
	Subscribers subscribers.Repository
	Billing     billing.Service
	Plans       plans.Service
	Orders      planorders.Service
	AdminOrders planorders.AdminService
	Auth        auth.Service
	Runner      *autoconfirm.Runner

	pubsub *pubsub.Client
	closer func()
}

func NewPlanStack(ctx context.Context, params PlanStackParams) (*PlanStack, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	cfg := params.Config

	rates, err := cfg.Pricing.Rates()
	if err != nil {
		return nil, err
	}
	engine := pricing.NewEngine(rates)

	calendar, err := weekcal.New(cfg.AutoConfirm.Timezone)
	if err != nil {
		return nil, err
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, params.Logger)
	if err != nil {
		return nil, fmt.Errorf("stripe client: %w", err)
	}
	gateway, err := billing.NewStripeGateway(stripeClient, stripeClient.ProductID(), cfg.AutoConfirm.BillingTimeout)
	if err != nil {
		return nil, err
	}

	subscriberRepo := subscribers.NewRepository(params.DB.DB())
	mealRepo := meals.NewRepository(params.DB.DB())
	orderRepo := planorders.NewRepository(params.DB.DB())

	billingService, err := billing.NewService(billing.ServiceParams{
		Subscribers: subscriberRepo,
		Orders:      orderRepo,
		Gateway:     gateway,
		Pricing:     engine,
		Calendar:    calendar,
		Logger:      params.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("billing service: %w", err)
	}

	orderService, err := planorders.NewService(planorders.ServiceParams{
		Orders:            orderRepo,
		Subscribers:       subscriberRepo,
		Meals:             mealRepo,
		Billing:           billingService,
		Pricing:           engine,
		Calendar:          calendar,
		TransactionRunner: params.DB,
		Logger:            params.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("plan order service: %w", err)
	}

	planService, err := plans.NewService(plans.ServiceParams{
		Subscribers: subscriberRepo,
		Billing:     billingService,
		Calendar:    calendar,
		Logger:      params.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("plan service: %w", err)
	}

	adminOrders, err := planorders.NewAdminService(planorders.AdminServiceParams{
		Orders:   orderRepo,
		Calendar: calendar,
		Logger:   params.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("admin order service: %w", err)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Subscribers: subscriberRepo,
		Admins:      admins.NewRepository(params.DB.DB()),
		JWTConfig:   cfg.JWT,
		Logger:      params.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	reports, err := notify.NewReports(cfg.Notify.Recipients())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.EnvSupportEmails, err)
	}

	stack := &PlanStack{
		Calendar:    calendar,
		Stripe:      stripeClient,
		Subscribers: subscriberRepo,
		Billing:     billingService,
		Plans:       planService,
		Orders:      orderService,
		AdminOrders: adminOrders,
		Auth:        authService,
	}

	notifier, err := stack.buildNotifier(ctx, cfg, params.Logger)
	if err != nil {
		return nil, err
	}

	runner, err := autoconfirm.NewRunner(autoconfirm.RunnerParams{
		Subscribers:   subscriberRepo,
		Meals:         mealRepo,
		Orders:        orderService,
		Calendar:      calendar,
		Notifier:      notifier,
		Reports:       reports,
		Metrics:       metrics.NewAutoConfirmMetrics(params.Registerer),
		Logger:        params.Logger,
		Throttle:      cfg.AutoConfirm.Throttle,
		NotifyTimeout: cfg.AutoConfirm.NotifyTimeout,
	})
	if err != nil {
		stack.Close()
		return nil, fmt.Errorf("auto confirm runner: %w", err)
	}
	stack.Runner = runner
	return stack, nil
}

// buildNotifier fans reports out to every configured channel. With none
// configured the reports are only logged by the runner.
func (s *PlanStack) buildNotifier(ctx context.Context, cfg *config.Config, logg *logger.Logger) (notify.Notifier, error) {
	var channels notify.Multi

	if strings.TrimSpace(cfg.Sendgrid.APIKey) != "" {
		mailer, err := notify.NewSendGridMailer(cfg.Sendgrid.APIKey, cfg.Sendgrid.DefaultFrom, cfg.AutoConfirm.NotifyTimeout)
		if err != nil {
			return nil, fmt.Errorf("sendgrid mailer: %w", err)
		}
		channels = append(channels, mailer)
	}

	if strings.TrimSpace(cfg.GCP.ProjectID) != "" && strings.TrimSpace(cfg.PubSub.ReportsTopic) != "" {
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		publisher := client.ReportsPublisher()
		notifier, err := notify.NewPubSubNotifier(publisher, cfg.AutoConfirm.NotifyTimeout)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		s.pubsub = client
		s.closer = func() {
			publisher.Stop()
			_ = client.Close()
		}
		channels = append(channels, notifier)
	}

	if len(channels) == 0 {
		logg.Warn(ctx, "no report channels configured; auto confirm reports are dropped")
		return notify.Noop{}, nil
	}
	return channels, nil
}

// PubSub returns the reports client, or nil when reports are not published.
func (s *PlanStack) PubSub() *pubsub.Client {
	if s == nil {
		return nil
	}
	return s.pubsub
}

// Close flushes pending report publishes and releases clients.
func (s *PlanStack) Close() {
	if s == nil || s.closer == nil {
		return
	}
	s.closer()
	s.closer = nil
}
