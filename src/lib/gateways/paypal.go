package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/redis/go-redis/v9"
)

type PaypalGateway struct {
	cfg    PaypalConfig
	tokens *TokenCache
}

func NewPaypalGateway(cfg PaypalConfig, rd *redis.Client) *PaypalGateway {
	g := &PaypalGateway{cfg: cfg}
	g.tokens = sharedTokenCache(fmt.Sprintf("paypal:%s:%s", cfg.URL(), cfg.ClientID), g.fetchToken, WithRedisStore(rd))
	return g
}

func (g *PaypalGateway) Name() types.PaymentMethod {
	return types.METHOD_PAYPAL
}

func (g *PaypalGateway) fetchToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL()+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(g.cfg.ClientID, g.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := send(req)
	if err != nil {
		return "", 0, &types.GatewayError{Gateway: "paypal", Err: err}
	}
	if res.Status != http.StatusOK {
		return "", 0, &types.GatewayError{Gateway: "paypal", Code: strconv.Itoa(res.Status), Message: fmt.Sprintf("PayPal authentication failed: %s", string(res.Body))}
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return "", 0, &types.GatewayError{Gateway: "paypal", Err: err}
	}
	return body.AccessToken, time.Duration(body.ExpiresIn) * time.Second, nil
}

type paypalError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (g *PaypalGateway) call(ctx context.Context, method, path string, payload any, out any) error {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return err
	}
	res, err := doJSON(ctx, method, g.cfg.URL()+path, map[string]string{
		"Authorization": "Bearer " + token,
		"Prefer":        "return=representation",
	}, payload)
	if err != nil {
		return &types.GatewayError{Gateway: "paypal", Err: err}
	}
	if res.Status == http.StatusUnauthorized {
		g.tokens.Invalidate(ctx)
	}
	if res.Status >= 400 {
		var e paypalError
		if err := json.Unmarshal(res.Body, &e); err == nil && e.Message != "" {
			msg := e.Message
			if len(e.Details) > 0 && e.Details[0].Description != "" {
				msg = fmt.Sprintf("%s: %s", e.Message, e.Details[0].Description)
			}
			return &types.GatewayError{Gateway: "paypal", Code: e.Name, Message: msg}
		}
		return &types.GatewayError{Gateway: "paypal", Code: strconv.Itoa(res.Status), Message: string(res.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return &types.GatewayError{Gateway: "paypal", Err: fmt.Errorf("unreadable PayPal response: %w", err)}
	}
	return nil
}

type PaypalLink struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

type PaypalOrder struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	Links         []PaypalLink `json:"links"`
	PurchaseUnits []struct {
		ReferenceID string `json:"reference_id"`
		CustomID    string `json:"custom_id"`
		Payments    struct {
			Captures []PaypalCapture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Payer struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

type PaypalCapture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
	CustomID   string `json:"custom_id"`
	CreateTime string `json:"create_time"`
}

// ApprovalURL picks the link the donor must visit to approve the order.
func (o *PaypalOrder) ApprovalURL() string {
	for _, rel := range []string{"approve", "payer-action"} {
		for _, l := range o.Links {
			if l.Rel == rel {
				return l.Href
			}
		}
	}
	return ""
}

func (g *PaypalGateway) Validate(req InitiationRequest) error {
	if req.AmountMinor <= 0 {
		return types.NewValidationError("amount", "must be greater than zero")
	}
	return nil
}

func (g *PaypalGateway) Initiate(ctx context.Context, req InitiationRequest) (*InitiationResult, error) {
	if err := g.Validate(req); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}
	description := req.Description
	if description == "" {
		description = "Donation"
	}
	brand := g.cfg.BrandName
	if brand == "" {
		brand = "Church Giving"
	}
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"reference_id": req.DonationID,
				"custom_id":    req.DonationID,
				"description":  truncate(description, 127),
				"amount": map[string]any{
					"currency_code": currency,
					"value":         FormatMinorUnits(req.AmountMinor),
				},
			},
		},
		"application_context": map[string]any{
			"brand_name":          brand,
			"user_action":         "PAY_NOW",
			"shipping_preference": "NO_SHIPPING",
			"return_url":          g.cfg.ReturnURL,
			"cancel_url":          g.cfg.CancelURL,
		},
	}
	var order PaypalOrder
	if err := g.call(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order); err != nil {
		return nil, err
	}
	approvalURL := order.ApprovalURL()
	if approvalURL == "" {
		return nil, &types.GatewayError{Gateway: "paypal", Message: fmt.Sprintf("PayPal order %s has no approval link", order.ID)}
	}
	return &InitiationResult{
		Kind:          RESULT_APPROVAL_URL,
		ApprovalURL:   approvalURL,
		ProvisionalID: order.ID,
		Correlation:   types.CORRELATION_PAYPAL_ORDER,
		Raw: types.JSONB{
			"orderId": order.ID,
			"status":  order.Status,
		},
	}, nil
}

// CaptureOrder settles an approved order. Repeating it for a captured order returns
// the provider's ORDER_ALREADY_CAPTURED error.
func (g *PaypalGateway) CaptureOrder(ctx context.Context, orderID string) (*PaypalOrder, error) {
	var order PaypalOrder
	if err := g.call(ctx, http.MethodPost, fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID)), map[string]any{}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// VerifyWebhook checks the transmission signature headers with PayPal. When no webhook id
// is configured verification is skipped and true is returned.
func (g *PaypalGateway) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (bool, error) {
	if g.cfg.WebhookID == "" {
		return true, nil
	}
	payload := map[string]any{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        g.cfg.WebhookID,
		"webhook_event":     json.RawMessage(body),
	}
	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := g.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &out); err != nil {
		return false, err
	}
	return out.VerificationStatus == "SUCCESS", nil
}
