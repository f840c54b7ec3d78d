package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/payout"

	"github.com/avelardi/atelia-backend/pkg/config"
	"github.com/avelardi/atelia-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired    = errors.New("stripe api key is required")
	errInvalidStripeEnv  = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
	errAccountIDRequired = errors.New("stripe account id is required")
)

// AccountIdentity carries what Stripe needs to open a Connect account for an
// artisan.
type AccountIdentity struct {
	Email        string
	Country      string
	BusinessName string
}

// Client wraps Stripe Connect operations for artisan payouts.
type Client struct {
	api         *stripe.Client
	environment string
	country     string
}

// NewClient initializes Stripe once with the configured secrets and env.
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

	api := stripe.NewClient(apiKey)
	stripe.Key = apiKey

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:         api,
		environment: env,
		country:     strings.TrimSpace(cfg.Country),
	}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateAccount opens an Express Connect account and returns its id.
func (c *Client) CreateAccount(ctx context.Context, identity AccountIdentity) (string, error) {
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Email:   stripe.String(identity.Email),
		Country: stripe.String(c.accountCountry(identity.Country)),
		Capabilities: &stripe.AccountCapabilitiesParams{
			Transfers: &stripe.AccountCapabilitiesTransfersParams{
				Requested: stripe.Bool(true),
			},
		},
	}
	if identity.BusinessName != "" {
		params.BusinessProfile = &stripe.AccountBusinessProfileParams{
			Name: stripe.String(identity.BusinessName),
		}
	}
	params.Context = ctx

	acct, err := account.New(params)
	if err != nil {
		return "", fmt.Errorf("creating connect account: %w", err)
	}
	return acct.ID, nil
}

// IsReadyForPayouts reports whether the connected account can receive payouts.
func (c *Client) IsReadyForPayouts(ctx context.Context, accountID string) (bool, error) {
	acct, err := c.getAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	return acct.PayoutsEnabled, nil
}

// AccountRequirements returns the outstanding onboarding requirements for the
// connected account.
func (c *Client) AccountRequirements(ctx context.Context, accountID string) ([]string, error) {
	acct, err := c.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.Requirements == nil {
		return nil, nil
	}
	return acct.Requirements.CurrentlyDue, nil
}

// CreatePayout moves funds from the connected account's Stripe balance to its
// bank account and returns the payout id.
func (c *Client) CreatePayout(ctx context.Context, accountID string, amountCents int64, currency, description string) (string, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", errAccountIDRequired
	}
	params := &stripe.PayoutParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(strings.ToLower(currency)),
		Description: stripe.String(description),
	}
	params.Context = ctx
	params.SetStripeAccount(accountID)

	p, err := payout.New(params)
	if err != nil {
		return "", fmt.Errorf("creating payout: %w", err)
	}
	return p.ID, nil
}

func (c *Client) getAccount(ctx context.Context, accountID string) (*stripe.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, errAccountIDRequired
	}
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct, err := account.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieving connect account: %w", err)
	}
	return acct, nil
}

func (c *Client) accountCountry(override string) string {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return trimmed
	}
	if c.country != "" {
		return c.country
	}
	return "US"
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
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
