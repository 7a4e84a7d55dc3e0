package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/redis/go-redis/v9"
)

const (
	MPESA_RESULT_SUCCESS        = 0
	MPESA_RESULT_CANCELLED      = 1032
	MPESA_PROCESSING_ERROR_CODE = "500.001.1001"
)

type MpesaGateway struct {
	cfg    MpesaConfig
	tokens *TokenCache
	now    func() time.Time
}

func NewMpesaGateway(cfg MpesaConfig, rd *redis.Client) *MpesaGateway {
	g := &MpesaGateway{cfg: cfg, now: time.Now}
	sum := sha256.Sum256([]byte(cfg.ConsumerKey + ":" + cfg.URL()))
	name := fmt.Sprintf("mpesa:%s:%s", cfg.Shortcode, hex.EncodeToString(sum[:8]))
	g.tokens = sharedTokenCache(name, g.fetchToken, WithRedisStore(rd))
	return g
}

func (g *MpesaGateway) Name() types.PaymentMethod {
	return types.METHOD_MPESA
}

func (g *MpesaGateway) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.URL()+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret)
	res, err := send(req)
	if err != nil {
		return "", 0, &types.GatewayError{Gateway: "mpesa", Err: err}
	}
	if res.Status != http.StatusOK {
		return "", 0, &types.GatewayError{Gateway: "mpesa", Code: strconv.Itoa(res.Status), Message: fmt.Sprintf("M-Pesa authentication failed: %s", string(res.Body))}
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return "", 0, &types.GatewayError{Gateway: "mpesa", Err: err}
	}
	secs, err := strconv.Atoi(body.ExpiresIn)
	if err != nil {
		secs = 3599
	}
	return body.AccessToken, time.Duration(secs) * time.Second, nil
}

// Password is base64(shortcode + passkey + timestamp).
func (g *MpesaGateway) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.cfg.Shortcode + g.cfg.Passkey + timestamp))
}

func (g *MpesaGateway) timestamp() string {
	return g.now().In(config.MpesaLocation()).Format(config.MPESA_TIME_FORMAT)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

type mpesaError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (g *MpesaGateway) post(ctx context.Context, path string, payload any, out any) error {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return err
	}
	res, err := doJSON(ctx, http.MethodPost, g.cfg.URL()+path, map[string]string{
		"Authorization": "Bearer " + token,
	}, payload)
	if err != nil {
		return &types.GatewayError{Gateway: "mpesa", Err: err}
	}
	if res.Status == http.StatusUnauthorized {
		g.tokens.Invalidate(ctx)
	}
	if res.Status >= 400 {
		var e mpesaError
		if err := json.Unmarshal(res.Body, &e); err == nil && e.ErrorMessage != "" {
			return &types.GatewayError{Gateway: "mpesa", Code: e.ErrorCode, Message: e.ErrorMessage}
		}
		return &types.GatewayError{Gateway: "mpesa", Code: strconv.Itoa(res.Status), Message: string(res.Body)}
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return &types.GatewayError{Gateway: "mpesa", Err: fmt.Errorf("unreadable M-Pesa response: %w", err)}
	}
	return nil
}

type StkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// Validate rejects what Daraja would: payers outside Safaricom's numbering and cents.
func (g *MpesaGateway) Validate(req InitiationRequest) error {
	if _, err := ValidatePhone(req.PayerHandle); err != nil {
		return err
	}
	_, err := WholeUnits(req.AmountMinor)
	return err
}

func (g *MpesaGateway) Initiate(ctx context.Context, req InitiationRequest) (*InitiationResult, error) {
	if err := g.Validate(req); err != nil {
		return nil, err
	}
	phone, _ := ValidatePhone(req.PayerHandle)
	amount, _ := WholeUnits(req.AmountMinor)
	reference := req.Reference
	if reference == "" {
		reference = g.cfg.AccountReferenceID
	}
	if reference == "" {
		reference = "Donation"
	}
	description := req.Description
	if description == "" {
		description = "Donation"
	}
	transactionType := g.cfg.TransactionType
	if transactionType == "" {
		transactionType = "CustomerPayBillOnline"
	}
	ts := g.timestamp()
	payload := map[string]any{
		"BusinessShortCode": g.cfg.Shortcode,
		"Password":          g.Password(ts),
		"Timestamp":         ts,
		"TransactionType":   transactionType,
		"Amount":            amount,
		"PartyA":            phone,
		"PartyB":            g.cfg.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       g.cfg.CallbackURL,
		"AccountReference":  truncate(reference, 12),
		"TransactionDesc":   truncate(description, 13),
	}
	var out StkPushResponse
	if err := g.post(ctx, "/mpesa/stkpush/v1/processrequest", payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != "0" {
		msg := out.ResponseDescription
		if msg == "" {
			msg = out.CustomerMessage
		}
		return nil, &types.GatewayError{Gateway: "mpesa", Code: out.ResponseCode, Message: msg}
	}
	log.Printf("[M-Pesa] STK push accepted: merchant=%s checkout=%s\n", out.MerchantRequestID, out.CheckoutRequestID)
	return &InitiationResult{
		Kind:              RESULT_PUSH_ACKNOWLEDGED,
		MerchantRequestID: out.MerchantRequestID,
		CheckoutRequestID: out.CheckoutRequestID,
		CustomerMessage:   out.CustomerMessage,
		Correlation:       types.CORRELATION_MPESA_CHECKOUT,
		Raw: types.JSONB{
			"merchantRequestId": out.MerchantRequestID,
			"checkoutRequestId": out.CheckoutRequestID,
			"responseCode":      out.ResponseCode,
			"phone":             phone,
		},
	}, nil
}

type StkQueryResult struct {
	Pending    bool
	ResultCode int
	ResultDesc string
}

func (r *StkQueryResult) Succeeded() bool {
	return !r.Pending && r.ResultCode == MPESA_RESULT_SUCCESS
}

// QueryStatus asks Daraja for the outcome of a push whose callback never arrived.
func (g *MpesaGateway) QueryStatus(ctx context.Context, checkoutRequestID string) (*StkQueryResult, error) {
	ts := g.timestamp()
	payload := map[string]any{
		"BusinessShortCode": g.cfg.Shortcode,
		"Password":          g.Password(ts),
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}
	var out struct {
		ResponseCode string `json:"ResponseCode"`
		ResultCode   string `json:"ResultCode"`
		ResultDesc   string `json:"ResultDesc"`
	}
	if err := g.post(ctx, "/mpesa/stkpushquery/v1/query", payload, &out); err != nil {
		var ge *types.GatewayError
		if errors.As(err, &ge) && ge.Code == MPESA_PROCESSING_ERROR_CODE {
			return &StkQueryResult{Pending: true, ResultDesc: ge.Message}, nil
		}
		return nil, err
	}
	code, err := strconv.Atoi(out.ResultCode)
	if err != nil {
		return &StkQueryResult{Pending: true, ResultDesc: out.ResultDesc}, nil
	}
	return &StkQueryResult{ResultCode: code, ResultDesc: out.ResultDesc}, nil
}

// RegisterURLs points paybill confirmations and validations at this API.
func (g *MpesaGateway) RegisterURLs(ctx context.Context) (map[string]any, error) {
	if g.cfg.ConfirmationURL == "" || g.cfg.ValidationURL == "" {
		return nil, &ConfigError{Gateway: "mpesa", Missing: []string{"confirmationUrl", "validationUrl"}}
	}
	payload := map[string]any{
		"ShortCode":       g.cfg.Shortcode,
		"ResponseType":    "Completed",
		"ConfirmationURL": g.cfg.ConfirmationURL,
		"ValidationURL":   g.cfg.ValidationURL,
	}
	out := map[string]any{}
	if err := g.post(ctx, "/mpesa/c2b/v1/registerurl", payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseMpesaTime reads Daraja's 14 digit timestamps, which are East Africa local time.
func ParseMpesaTime(v string) (*time.Time, error) {
	if len(v) != 14 {
		return nil, fmt.Errorf("invalid M-Pesa timestamp %q", v)
	}
	t, err := time.ParseInLocation(config.MPESA_TIME_FORMAT, v, config.MpesaLocation())
	if err != nil {
		return nil, err
	}
	utc := t.UTC()
	return &utc, nil
}
