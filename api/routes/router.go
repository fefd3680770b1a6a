package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/mealbox-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/mealbox-backend/api/controllers/admin"
	authcontrollers "github.com/angelmondragon/mealbox-backend/api/controllers/auth"
	plancontrollers "github.com/angelmondragon/mealbox-backend/api/controllers/plan"
	webhookcontrollers "github.com/angelmondragon/mealbox-backend/api/controllers/webhooks"
	"github.com/angelmondragon/mealbox-backend/api/middleware"
	"github.com/angelmondragon/mealbox-backend/internal/auth"
	"github.com/angelmondragon/mealbox-backend/internal/billing"
	"github.com/angelmondragon/mealbox-backend/internal/planorders"
	"github.com/angelmondragon/mealbox-backend/internal/plans"
	"github.com/angelmondragon/mealbox-backend/pkg/config"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/redis"
)

type autoConfirmTrigger interface {
	Trigger(ctx context.Context) error
}

type eventVerifier interface {
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	idempotencyStore redis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	authService auth.Service,
	billingService billing.Service,
	planService plans.Service,
	planOrdersService planorders.Service,
	adminOrdersService planorders.AdminService,
	autoConfirm autoConfirmTrigger,
	stripeVerifier eventVerifier,
	stripeWebhookService webhookcontrollers.StripeWebhookService,
	stripeWebhookGuard webhookGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.Origins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeVerifier, stripeWebhookGuard, logg))
	})

	r.Post("/api/v1/auth/login", authcontrollers.Login(authService, logg))

	r.Route("/api/v1/plan", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RequireRole(enums.RoleSubscriber, logg),
			middleware.Idempotency(idempotencyStore, logg),
		)
		r.Get("/", plancontrollers.GetPlan(planService, logg))
		r.Post("/", plancontrollers.CreatePlan(planService, logg))
		r.Put("/", plancontrollers.UpdatePlan(planService, logg))
		r.Post("/activate", plancontrollers.Activate(billingService, logg))
		r.Post("/cancel", plancontrollers.Cancel(billingService, logg))
		r.Post("/orders/confirm", plancontrollers.ConfirmOrder(planOrdersService, logg))
		r.Get("/orders", plancontrollers.ListOrders(planOrdersService, logg))
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Post("/auth/login", authcontrollers.AdminLogin(authService, logg))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.RequireRole(enums.RoleAdmin, logg),
				middleware.Idempotency(idempotencyStore, logg),
			)
			r.Post("/auto-confirm/run", admincontrollers.RunAutoConfirm(autoConfirm, logg))
			r.Get("/orders", admincontrollers.ListOrders(adminOrdersService, logg))
			r.Get("/orders/current", admincontrollers.ListCurrentWeekOrders(adminOrdersService, logg))
			r.Get("/orders/{orderId}", admincontrollers.GetOrder(adminOrdersService, logg))
			r.Put("/orders/{orderId}", admincontrollers.UpdateOrderStatus(adminOrdersService, logg))
		})
	})

	return r
}
