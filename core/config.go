package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PayPalEnvironmentSandbox = "sandbox"
	PayPalEnvironmentLive    = "live"

	payPalSandboxAPIBase = "https://api.sandbox.paypal.com"
	payPalLiveAPIBase    = "https://api.paypal.com"

	DefaultWebhookPath = "/paypal_donations_tracker/v1/webhook"
)

type PayPalConfig struct {
	Environment   string        `koanf:"environment" mapstructure:"environment"`
	ClientID      string        `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret  string        `koanf:"client_secret" mapstructure:"client_secret"`
	WebhookID     string        `koanf:"webhook_id" mapstructure:"webhook_id"`
	VerifyTimeout time.Duration `koanf:"verify_timeout" mapstructure:"verify_timeout"`
	// APIBaseURL overrides the environment endpoint, mainly for tests.
	APIBaseURL string `koanf:"api_base_url" mapstructure:"api_base_url"`
}

// BaseURL resolves the REST API host for the configured environment.
func (c PayPalConfig) BaseURL() string {
	if override := strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/"); override != "" {
		return override
	}
	if strings.EqualFold(strings.TrimSpace(c.Environment), PayPalEnvironmentLive) {
		return payPalLiveAPIBase
	}
	return payPalSandboxAPIBase
}

func (c PayPalConfig) TokenURL() string {
	return c.BaseURL() + "/v1/oauth2/token"
}

func (c PayPalConfig) VerifySignatureURL() string {
	return c.BaseURL() + "/v1/notifications/verify-webhook-signature"
}

type FeeConfig struct {
	Percentage float64 `koanf:"percentage" mapstructure:"percentage"`
	Fixed      float64 `koanf:"fixed" mapstructure:"fixed"`
}

type CampaignConfig struct {
	Goal     float64 `koanf:"goal" mapstructure:"goal"`
	Currency string  `koanf:"currency" mapstructure:"currency"`
}

type ReconcileConfig struct {
	PendingTTL time.Duration `koanf:"pending_ttl" mapstructure:"pending_ttl"`
	BatchSize  int           `koanf:"batch_size" mapstructure:"batch_size"`
	LockTTL    time.Duration `koanf:"lock_ttl" mapstructure:"lock_ttl"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	PayPal      PayPalConfig    `koanf:"paypal" mapstructure:"paypal"`
	Fees        FeeConfig       `koanf:"fees" mapstructure:"fees"`
	Campaign    CampaignConfig  `koanf:"campaign" mapstructure:"campaign"`
	Reconcile   ReconcileConfig `koanf:"reconcile" mapstructure:"reconcile"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "donations",
		PayPal: PayPalConfig{
			Environment:   PayPalEnvironmentSandbox,
			VerifyTimeout: 30 * time.Second,
		},
		Fees: FeeConfig{
			Percentage: 2.9,
			Fixed:      0.30,
		},
		Campaign: CampaignConfig{
			Goal:     0,
			Currency: DefaultCurrency,
		},
		Reconcile: ReconcileConfig{
			PendingTTL: 72 * time.Hour,
			BatchSize:  100,
			LockTTL:    30 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.PayPal.Environment)) {
	case "", PayPalEnvironmentSandbox, PayPalEnvironmentLive:
	default:
		return fmt.Errorf("core: invalid paypal environment %q", c.PayPal.Environment)
	}
	if c.PayPal.VerifyTimeout < 0 {
		return fmt.Errorf("core: invalid paypal verify_timeout %s", c.PayPal.VerifyTimeout)
	}
	if c.Fees.Percentage < 0 || c.Fees.Fixed < 0 {
		return fmt.Errorf("core: invalid fee configuration")
	}
	if c.Campaign.Goal < 0 {
		return fmt.Errorf("core: invalid campaign goal %v", c.Campaign.Goal)
	}
	if c.Reconcile.PendingTTL < 0 || c.Reconcile.BatchSize < 0 || c.Reconcile.LockTTL < 0 {
		return fmt.Errorf("core: invalid reconcile configuration")
	}
	return nil
}

func (c Config) FeePercentage() decimal.Decimal {
	return decimal.NewFromFloat(c.Fees.Percentage)
}

func (c Config) FixedFee() decimal.Decimal {
	return decimal.NewFromFloat(c.Fees.Fixed)
}

func (c Config) Goal() decimal.Decimal {
	return decimal.NewFromFloat(c.Campaign.Goal)
}
