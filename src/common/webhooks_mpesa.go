package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	MPESA_EVENT_STK_CALLBACK     = "stk.callback"
	MPESA_EVENT_C2B_CONFIRMATION = "c2b.confirmation"
	MPESA_EVENT_STK_QUERY        = "stk.query"
	PAYBILL_CATEGORY             = "paybill"
)

// StkCallback is the part of a Daraja STK callback the ledger uses.
type StkCallback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int64
	ResultDesc        string
	AmountMinor       int64
	ReceiptNumber     string
	TransactionDate   string
	PhoneNumber       string
}

// ParseStkCallback checks the shape of an untrusted callback body.
func ParseStkCallback(body []byte) (*StkCallback, error) {
	if !gjson.ValidBytes(body) {
		return nil, types.NewValidationError("body", "invalid json")
	}
	cb := gjson.GetBytes(body, "Body.stkCallback")
	if !cb.IsObject() {
		return nil, types.NewValidationError("Body.stkCallback", "is required")
	}
	checkout := cb.Get("CheckoutRequestID")
	if checkout.Type != gjson.String || checkout.String() == "" {
		return nil, types.NewValidationError("CheckoutRequestID", "is required")
	}
	code := cb.Get("ResultCode")
	if !code.Exists() {
		return nil, types.NewValidationError("ResultCode", "is required")
	}
	out := &StkCallback{
		MerchantRequestID: cb.Get("MerchantRequestID").String(),
		CheckoutRequestID: checkout.String(),
		ResultCode:        code.Int(),
		ResultDesc:        cb.Get("ResultDesc").String(),
	}
	for _, item := range cb.Get("CallbackMetadata.Item").Array() {
		value := item.Get("Value")
		switch item.Get("Name").String() {
		case "Amount":
			amount, err := decimal.NewFromString(value.Raw)
			if err != nil {
				amount, err = decimal.NewFromString(value.String())
			}
			if err != nil {
				return nil, types.NewValidationError("Amount", "must be a number")
			}
			minor, err := gateways.MinorFromDecimalValue("Amount", amount)
			if err != nil {
				return nil, err
			}
			out.AmountMinor = minor
		case "MpesaReceiptNumber":
			out.ReceiptNumber = value.String()
		case "TransactionDate":
			out.TransactionDate = strings.Trim(value.Raw, `"`)
		case "PhoneNumber":
			out.PhoneNumber = strings.Trim(value.Raw, `"`)
		}
	}
	if out.ResultCode == gateways.MPESA_RESULT_SUCCESS && out.ReceiptNumber == "" {
		return nil, types.NewValidationError("MpesaReceiptNumber", "is required for a successful payment")
	}
	return out, nil
}

func (cb *StkCallback) outcome() (Outcome, error) {
	out := Outcome{
		Gateway:   "mpesa",
		EventType: MPESA_EVENT_STK_CALLBACK,
		Method:    types.METHOD_MPESA,
		Lookups: []Lookup{
			{Correlation: types.CORRELATION_MPESA_CHECKOUT, Value: cb.CheckoutRequestID},
		},
		Success:     cb.ResultCode == gateways.MPESA_RESULT_SUCCESS,
		Reason:      cb.ResultDesc,
		AmountMinor: cb.AmountMinor,
		PayerPhone:  cb.PhoneNumber,
		Metadata: types.JSONB{
			"merchantRequestId": cb.MerchantRequestID,
			"checkoutRequestId": cb.CheckoutRequestID,
			"resultCode":        cb.ResultCode,
			"resultDesc":        cb.ResultDesc,
		},
	}
	if !out.Success {
		return out, nil
	}
	out.Handles = map[types.Correlation]string{types.CORRELATION_MPESA_RECEIPT: cb.ReceiptNumber}
	out.Metadata["receiptNumber"] = cb.ReceiptNumber
	if cb.TransactionDate != "" {
		paidAt, err := gateways.ParseMpesaTime(cb.TransactionDate)
		if err != nil {
			return out, types.NewValidationError("TransactionDate", err.Error())
		}
		out.PaidAt = paidAt
		out.Metadata["transactionDate"] = cb.TransactionDate
	}
	return out, nil
}

// HandleStkCallback settles the push identified by the callback's CheckoutRequestID.
func (l *Ledger) HandleStkCallback(ctx context.Context, body []byte) (*models.Donation, error) {
	cb, err := ParseStkCallback(body)
	if err != nil {
		l.logGatewayEvent(ctx, "mpesa", MPESA_EVENT_STK_CALLBACK, "", body, nil, err)
		return nil, err
	}
	out, err := cb.outcome()
	if err != nil {
		l.logGatewayEvent(ctx, "mpesa", MPESA_EVENT_STK_CALLBACK, cb.CheckoutRequestID, body, nil, err)
		return nil, err
	}
	donation, err := l.Reconcile(ctx, out)
	l.logGatewayEvent(ctx, "mpesa", MPESA_EVENT_STK_CALLBACK, cb.CheckoutRequestID, body, donation, err)
	return donation, err
}

// C2BConfirmation is a paybill payment pushed by Daraja with no prior donation.
type C2BConfirmation struct {
	TransactionType   string
	TransID           string
	TransTime         string
	AmountMinor       int64
	BusinessShortCode string
	BillRefNumber     string
	InvoiceNumber     string
	MSISDN            string
	PayerName         string
}

func ParseC2BConfirmation(body []byte) (*C2BConfirmation, error) {
	if !gjson.ValidBytes(body) {
		return nil, types.NewValidationError("body", "invalid json")
	}
	fields := gjson.GetManyBytes(body, "TransID", "TransTime", "TransAmount", "BusinessShortCode", "BillRefNumber", "MSISDN", "FirstName", "MiddleName", "LastName", "TransactionType", "InvoiceNumber")
	transID := strings.TrimSpace(fields[0].String())
	if transID == "" {
		return nil, types.NewValidationError("TransID", "is required")
	}
	if !fields[1].Exists() {
		return nil, types.NewValidationError("TransTime", "is required")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(fields[2].String()))
	if err != nil || !amount.IsPositive() {
		return nil, types.NewValidationError("TransAmount", "must be a positive number")
	}
	amountMinor, err := gateways.MinorFromDecimalValue("TransAmount", amount)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, f := range fields[6:9] {
		if n := strings.TrimSpace(f.String()); n != "" {
			names = append(names, n)
		}
	}
	return &C2BConfirmation{
		TransID:           transID,
		TransTime:         strings.TrimSpace(fields[1].String()),
		AmountMinor:       amountMinor,
		BusinessShortCode: fields[3].String(),
		BillRefNumber:     fields[4].String(),
		MSISDN:            fields[5].String(),
		PayerName:         strings.Join(names, " "),
		TransactionType:   fields[9].String(),
		InvoiceNumber:     fields[10].String(),
	}, nil
}

// HandleC2BConfirmation records a paybill payment and routes it by its bill reference.
func (l *Ledger) HandleC2BConfirmation(ctx context.Context, body []byte) (*models.Donation, error) {
	c, err := ParseC2BConfirmation(body)
	if err != nil {
		l.logGatewayEvent(ctx, "mpesa", MPESA_EVENT_C2B_CONFIRMATION, "", body, nil, err)
		return nil, err
	}
	paidAt, err := gateways.ParseMpesaTime(c.TransTime)
	if err != nil {
		verr := types.NewValidationError("TransTime", err.Error())
		l.logGatewayEvent(ctx, "mpesa", MPESA_EVENT_C2B_CONFIRMATION, c.TransID, body, nil, verr)
		return nil, verr
	}
	reference := c.BillRefNumber
	donation, err := l.Reconcile(ctx, Outcome{
		Gateway:          "mpesa",
		EventType:        MPESA_EVENT_C2B_CONFIRMATION,
		Method:           types.METHOD_MPESA,
		Lookups:          []Lookup{{Correlation: types.CORRELATION_MPESA_RECEIPT, Value: c.TransID}},
		Success:          true,
		AccountReference: &reference,
		Handles:          map[types.Correlation]string{types.CORRELATION_MPESA_RECEIPT: c.TransID},
		AmountMinor:      c.AmountMinor,
		Currency:         "KES",
		Category:         PAYBILL_CATEGORY,
		PaidAt:           paidAt,
		PayerPhone:       c.MSISDN,
		PayerName:        c.PayerName,
		CreateIfMissing:  true,
		Metadata: types.JSONB{
			"transactionType":   c.TransactionType,
			"transId":           c.TransID,
			"transTime":         c.TransTime,
			"businessShortCode": c.BusinessShortCode,
			"billRefNumber":     c.BillRefNumber,
			"invoiceNumber":     c.InvoiceNumber,
		},
	})
	l.logGatewayEvent(ctx, "mpesa", MPESA_EVENT_C2B_CONFIRMATION, c.TransID, body, donation, err)
	return donation, err
}

type StkStatusQuerier interface {
	QueryStatus(ctx context.Context, checkoutRequestID string) (*gateways.StkQueryResult, error)
}

// RefreshMpesaStatus asks Daraja about a push whose callback has not arrived and settles
// the donation when the answer is final.
func (l *Ledger) RefreshMpesaStatus(ctx context.Context, q StkStatusQuerier, d *models.Donation) (*models.Donation, error) {
	if d.Status != types.DONATION_PROCESSING || d.MpesaCheckoutRequestID == nil {
		return d, nil
	}
	res, err := q.QueryStatus(ctx, *d.MpesaCheckoutRequestID)
	if err != nil {
		return nil, err
	}
	if res.Pending {
		return d, nil
	}
	reason := res.ResultDesc
	if reason == "" {
		reason = fmt.Sprintf("M-Pesa result code %d", res.ResultCode)
	}
	settled, err := l.Reconcile(ctx, Outcome{
		Gateway:   "mpesa",
		EventType: MPESA_EVENT_STK_QUERY,
		Method:    types.METHOD_MPESA,
		Lookups:   []Lookup{{Correlation: types.CORRELATION_MPESA_CHECKOUT, Value: *d.MpesaCheckoutRequestID}},
		Success:   res.Succeeded(),
		Reason:    reason,
		Metadata: types.JSONB{
			"resultCode": res.ResultCode,
			"resultDesc": res.ResultDesc,
			"cancelled":  res.ResultCode == gateways.MPESA_RESULT_CANCELLED,
		},
	})
	if errors.Is(err, types.ErrDuplicateWebhook) {
		return settled, nil
	}
	return settled, err
}
