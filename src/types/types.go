package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBAny struct {
	Inner any
}

func scanBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, errors.New("type assertion to []byte failed")
}

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	if value == nil {
		return nil
	}
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a JSONBAny) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a.Inner)
	return string(valueString), err
}
func (a *JSONBAny) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	var inner any
	if err := json.Unmarshal(b, &inner); err != nil {
		return err
	}
	a.Inner = inner
	return nil
}

type Metadata map[string]any

type DonationStatus string

const (
	DONATION_PENDING     DonationStatus = "pending"
	DONATION_PROCESSING  DonationStatus = "processing"
	DONATION_COMPLETED   DonationStatus = "completed"
	DONATION_FAILED      DonationStatus = "failed"
	DONATION_UNALLOCATED DonationStatus = "unallocated"
)

// IsTerminal reports whether no webhook may move the status any further.
func (s DonationStatus) IsTerminal() bool {
	return s == DONATION_COMPLETED || s == DONATION_FAILED
}

type PaymentMethod string

const (
	METHOD_MPESA  PaymentMethod = "mpesa"
	METHOD_PAYPAL PaymentMethod = "paypal"
	METHOD_STRIPE PaymentMethod = "stripe"
	METHOD_CHECK  PaymentMethod = "check"
)

type CheckStatus string

const (
	CHECK_PENDING   CheckStatus = "pending"
	CHECK_DEPOSITED CheckStatus = "deposited"
	CHECK_CLEARED   CheckStatus = "cleared"
	CHECK_BOUNCED   CheckStatus = "bounced"
)

// CanMoveTo encodes pending -> deposited -> cleared | bounced.
func (s CheckStatus) CanMoveTo(next CheckStatus) bool {
	switch s {
	case CHECK_PENDING:
		return next == CHECK_DEPOSITED
	case CHECK_DEPOSITED:
		return next == CHECK_CLEARED || next == CHECK_BOUNCED
	}
	return false
}

type QRCodeMethod string

const (
	QR_MPESA  QRCodeMethod = "MPESA"
	QR_PAYPAL QRCodeMethod = "PAYPAL"
)

// Correlation identifies which gateway handle a lookup is keyed on.
type Correlation string

const (
	CORRELATION_MPESA_CHECKOUT Correlation = "mpesa_checkout_request_id"
	CORRELATION_MPESA_MERCHANT Correlation = "mpesa_merchant_request_id"
	CORRELATION_MPESA_RECEIPT  Correlation = "transaction_id"
	CORRELATION_PAYPAL_ORDER   Correlation = "paypal_order_id"
	CORRELATION_PAYPAL_CAPTURE Correlation = "paypal_capture_id"
	CORRELATION_STRIPE_SESSION Correlation = "stripe_session_id"
	CORRELATION_CHECK_NUMBER   Correlation = "check_number"
	CORRELATION_DONATION_ID    Correlation = "id"
)

const (
	ROLE_ADMIN     = "ADMIN"
	ROLE_PASTOR    = "PASTOR"
	ROLE_TREASURER = "TREASURER"
)

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required"`
}

type CreateDonationRequestBody struct {
	Amount      string        `json:"amount,omitempty"`
	Currency    string        `json:"currency,omitempty"`
	Category    string        `json:"category,omitempty"`
	Method      PaymentMethod `json:"method" binding:"required,oneof=mpesa paypal stripe"`
	Phone       string        `json:"phone,omitempty"`
	Email       string        `json:"email,omitempty" binding:"omitempty,email"`
	DonorName   string        `json:"donor_name,omitempty"`
	Reference   string        `json:"reference,omitempty"`
	Description string        `json:"description,omitempty"`
	QRCodeID    *string       `json:"qr_code_id,omitempty"`
	GroupID     *string       `json:"group_id,omitempty"`
	FundID      *string       `json:"fund_category_id,omitempty"`
	SessionID   *string       `json:"session_id,omitempty"`
}

type AllocateDonationRequestBody struct {
	GroupID        string `json:"group_id" binding:"required"`
	FundCategoryID string `json:"fund_category_id" binding:"required"`
	Note           string `json:"note,omitempty"`
}

type CreateCheckRequestBody struct {
	CheckNumber string `json:"check_number" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency,omitempty"`
	Category    string `json:"category" binding:"required"`
	BankName    string `json:"bank_name,omitempty"`
	PayerName   string `json:"payer_name" binding:"required"`
	CheckDate   string `json:"check_date,omitempty"`
	Memo        string `json:"memo,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

type UpdateCheckStatusRequestBody struct {
	Status CheckStatus `json:"status" binding:"required,oneof=deposited cleared bounced"`
	Note   string      `json:"note,omitempty"`
}

type SetGroupCodeRequestBody struct {
	GroupCode     string `json:"group_code" binding:"required,groupcode"`
	GivingEnabled *bool  `json:"giving_enabled,omitempty"`
}

type CreateGroupRequestBody struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description,omitempty"`
	GroupCode     string `json:"group_code,omitempty" binding:"omitempty,groupcode"`
	GivingEnabled bool   `json:"giving_enabled,omitempty"`
}

type CreateFundCategoryRequestBody struct {
	Name     string `json:"name" binding:"required"`
	FundCode string `json:"fund_code" binding:"required,fundcode"`
	Active   *bool  `json:"active,omitempty"`
}

type UpdateFundCategoryRequestBody struct {
	Name     string `json:"name,omitempty"`
	FundCode string `json:"fund_code,omitempty" binding:"omitempty,fundcode"`
	Active   *bool  `json:"active,omitempty"`
}

type GenerateAccountNumberRequestBody struct {
	GroupID        string `json:"group_id" binding:"required"`
	FundCategoryID string `json:"fund_category_id" binding:"required"`
}

type CreateSessionRequestBody struct {
	Name      string  `json:"name" binding:"required"`
	GroupID   *string `json:"group_id,omitempty"`
	StartsAt  string  `json:"starts_at,omitempty"`
	Amount    string  `json:"amount,omitempty"`
	Category  string  `json:"category,omitempty"`
	NoQRCodes bool    `json:"no_qr_codes,omitempty"`
}

type PaybillValidateQuery struct {
	Account string `form:"account" binding:"required"`
}

type DonationQueryFilters struct {
	Status string `form:"status,omitempty"`
	Limit  int    `form:"limit,omitempty" binding:"omitempty,min=1,max=200"`
}

type CreateSettingRequestBody struct {
	Key   string `json:"key" binding:"required"`
	Value any    `json:"value" binding:"required"`
	Group string `json:"group" binding:"required"`
}

type Handler func(payload string)

type Environment string

const (
	Local      Environment = "local"
	Test       Environment = "test"
	Production Environment = "production"
)

type RejectDonationRequestBody struct {
	Reason string `json:"reason" binding:"required"`
}
