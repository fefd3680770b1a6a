package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/mealbox-backend/pkg/config"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired    = errors.New("stripe api key is required")
	errProductRequired   = errors.New("stripe plan product id is required")
	errSecretNotSet      = errors.New("stripe webhook secret not configured")
	errInvalidStripeEnv  = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	errSignatureRequired = errors.New("stripe signature missing")
)

// Client carries the Stripe key setup plus the plan product and webhook
// secret. The webhook secret is only needed by processes that receive events.
type Client struct {
	api           *stripe.Client
	environment   string
	productID     string
	signingSecret string
}

// NewClient sets the package-level Stripe key once and validates that the key
// matches the configured environment.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	productID := strings.TrimSpace(cfg.ProductID)
	if productID == "" {
		return nil, errProductRequired
	}

	stripe.Key = apiKey
	client := &Client{
		api:           stripe.NewClient(apiKey),
		environment:   env,
		productID:     productID,
		signingSecret: strings.TrimSpace(cfg.Secret),
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"stripe_env":      env,
			"webhooks_signed": client.signingSecret != "",
		}), "stripe client initialized")
	}
	return client, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// ProductID is the Stripe product that weekly plan prices are created under.
func (c *Client) ProductID() string {
	if c == nil {
		return ""
	}
	return c.productID
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// VerifyEvent checks the Stripe-Signature header against the payload and
// decodes the event.
func (c *Client) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	return VerifyEvent(payload, signature, c.SigningSecret())
}

// VerifyEvent is the secret-explicit form of Client.VerifyEvent.
func VerifyEvent(payload []byte, signature, secret string) (stripe.Event, error) {
	if strings.TrimSpace(secret) == "" {
		return stripe.Event{}, errSecretNotSet
	}
	if strings.TrimSpace(signature) == "" {
		return stripe.Event{}, errSignatureRequired
	}
	return webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	prefixes := map[string][]string{
		testEnv: {"sk_test", "rk_test"},
		liveEnv: {"sk_live", "rk_live"},
	}
	allowed, ok := prefixes[env]
	if !ok {
		return errInvalidStripeEnv
	}
	for _, p := range allowed {
		if strings.HasPrefix(key, p) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires a %s secret key (%s)", env, env, strings.Join(allowed, "/"))
}
