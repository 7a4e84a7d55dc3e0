package gateways

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"gorm.io/gorm"
)

const (
	MPESA_SANDBOX_SHORTCODE = "174379"
	MPESA_SANDBOX_URL       = "https://sandbox.safaricom.co.ke"
	MPESA_PRODUCTION_URL    = "https://api.safaricom.co.ke"
	PAYPAL_SANDBOX_URL      = "https://api-m.sandbox.paypal.com"
	PAYPAL_LIVE_URL         = "https://api-m.paypal.com"
)

type MpesaConfig struct {
	ConsumerKey        string `json:"consumerKey"`
	ConsumerSecret     string `json:"consumerSecret"`
	Shortcode          string `json:"shortcode"`
	Passkey            string `json:"passkey"`
	CallbackURL        string `json:"callbackUrl"`
	ConfirmationURL    string `json:"confirmationUrl,omitempty"`
	ValidationURL      string `json:"validationUrl,omitempty"`
	Environment        string `json:"environment,omitempty"`
	BaseURL            string `json:"baseUrl,omitempty"`
	TransactionType    string `json:"transactionType,omitempty"`
	AccountReferenceID string `json:"accountReference,omitempty"`
}

func (c *MpesaConfig) Validate() error {
	return requireFields("mpesa", map[string]string{
		"consumerKey":    c.ConsumerKey,
		"consumerSecret": c.ConsumerSecret,
		"shortcode":      c.Shortcode,
		"passkey":        c.Passkey,
		"callbackUrl":    c.CallbackURL,
	})
}

func (c *MpesaConfig) IsSandbox() bool {
	return c.Shortcode == MPESA_SANDBOX_SHORTCODE || strings.EqualFold(c.Environment, "sandbox")
}

func (c *MpesaConfig) URL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.IsSandbox() {
		return MPESA_SANDBOX_URL
	}
	return MPESA_PRODUCTION_URL
}

type PaypalConfig struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Mode         string `json:"mode,omitempty"`
	BaseURL      string `json:"baseUrl,omitempty"`
	ReturnURL    string `json:"returnUrl"`
	CancelURL    string `json:"cancelUrl"`
	WebhookID    string `json:"webhookId,omitempty"`
	BrandName    string `json:"brandName,omitempty"`
}

func (c *PaypalConfig) Validate() error {
	return requireFields("paypal", map[string]string{
		"clientId":     c.ClientID,
		"clientSecret": c.ClientSecret,
		"returnUrl":    c.ReturnURL,
		"cancelUrl":    c.CancelURL,
	})
}

func (c *PaypalConfig) URL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if strings.EqualFold(c.Mode, "live") {
		return PAYPAL_LIVE_URL
	}
	return PAYPAL_SANDBOX_URL
}

type StripeConfig struct {
	SecretKey     string `json:"secretKey"`
	WebhookSecret string `json:"webhookSecret"`
	SuccessURL    string `json:"successUrl"`
	CancelURL     string `json:"cancelUrl"`
}

func (c *StripeConfig) Validate() error {
	return requireFields("stripe", map[string]string{
		"secretKey":  c.SecretKey,
		"successUrl": c.SuccessURL,
		"cancelUrl":  c.CancelURL,
	})
}

// ConfigError wraps ErrNotConfigured with the fields that were missing.
type ConfigError struct {
	Gateway string
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (missing %s)", ErrNotConfigured.Error(), e.Gateway, strings.Join(e.Missing, ", "))
}

func (e *ConfigError) Unwrap() error {
	return ErrNotConfigured
}

func requireFields(gateway string, fields map[string]string) error {
	missing := []string{}
	for _, name := range []string{"consumerKey", "consumerSecret", "clientId", "clientSecret", "secretKey", "shortcode", "passkey", "callbackUrl", "returnUrl", "successUrl", "cancelUrl"} {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ConfigError{Gateway: gateway, Missing: missing}
	}
	return nil
}

type validatable interface {
	Validate() error
}

// loadSetting parses the payments setting stored under key, falling back to the environment
// when no row exists. The result is always validated.
func loadSetting[T any, PT interface {
	*T
	validatable
}](db *gorm.DB, key string, fromEnv func() T) (*T, error) {
	var cfg T
	var setting models.Setting
	err := db.
		Model(&models.Setting{}).
		Where(&models.Setting{SettingKey: key, Group: models.SETTINGS_GROUP_PAYMENTS}).
		First(&setting).
		Error
	switch {
	case err == nil:
		raw, err := json.Marshal(setting.SettingValue.Inner)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, &ConfigError{Gateway: key, Missing: []string{"valid JSON settings"}}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		cfg = fromEnv()
	default:
		return nil, err
	}
	if err := PT(&cfg).Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadMpesaConfig(db *gorm.DB) (*MpesaConfig, error) {
	return loadSetting[MpesaConfig](db, "mpesa", func() MpesaConfig {
		return MpesaConfig{
			ConsumerKey:     os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret:  os.Getenv("MPESA_CONSUMER_SECRET"),
			Shortcode:       os.Getenv("MPESA_SHORTCODE"),
			Passkey:         os.Getenv("MPESA_PASSKEY"),
			CallbackURL:     os.Getenv("MPESA_CALLBACK_URL"),
			ConfirmationURL: os.Getenv("MPESA_CONFIRMATION_URL"),
			ValidationURL:   os.Getenv("MPESA_VALIDATION_URL"),
			Environment:     os.Getenv("MPESA_ENVIRONMENT"),
		}
	})
}

func LoadPaypalConfig(db *gorm.DB) (*PaypalConfig, error) {
	return loadSetting[PaypalConfig](db, "paypal", func() PaypalConfig {
		return PaypalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			Mode:         os.Getenv("PAYPAL_MODE"),
			ReturnURL:    fmt.Sprintf("%s/give/paypal/return", os.Getenv("APP_HOST")),
			CancelURL:    fmt.Sprintf("%s/give/paypal/cancel", os.Getenv("APP_HOST")),
			WebhookID:    os.Getenv("PAYPAL_WEBHOOK_ID"),
		}
	})
}

func LoadStripeConfig(db *gorm.DB) (*StripeConfig, error) {
	return loadSetting[StripeConfig](db, "stripe", func() StripeConfig {
		return StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    fmt.Sprintf("%s/give/success", os.Getenv("APP_HOST")),
			CancelURL:     fmt.Sprintf("%s/give/cancel", os.Getenv("APP_HOST")),
		}
	})
}
