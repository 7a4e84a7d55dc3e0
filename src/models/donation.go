package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

// Donation is one attempt to give. Correlation handles are nullable and unique: the
// first writer wins and every later delivery of the same external event collides.
type Donation struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	AmountMinor int64                `gorm:"not null" json:"amount_minor"`
	Currency    string               `gorm:"size:3" json:"currency"`
	Category    string               `json:"category"`
	Method      types.PaymentMethod  `gorm:"index" json:"method"`
	Status      types.DonationStatus `gorm:"index" json:"status"`
	Reference   string               `json:"reference,omitempty"`
	Description string               `json:"description,omitempty"`

	PayerPhone *string `json:"payer_phone,omitempty"`
	PayerEmail *string `json:"payer_email,omitempty"`
	PayerName  *string `json:"payer_name,omitempty"`

	MpesaCheckoutRequestID *string `gorm:"uniqueIndex" json:"mpesa_checkout_request_id,omitempty"`
	MpesaMerchantRequestID *string `gorm:"index" json:"mpesa_merchant_request_id,omitempty"`
	TransactionID          *string `gorm:"uniqueIndex" json:"transaction_id,omitempty"`
	PaybillAccountRef      *string `json:"paybill_account_ref,omitempty"`
	PaypalOrderID          *string `gorm:"uniqueIndex" json:"paypal_order_id,omitempty"`
	PaypalCaptureID        *string `gorm:"uniqueIndex" json:"paypal_capture_id,omitempty"`
	StripeSessionID        *string `gorm:"uniqueIndex" json:"stripe_session_id,omitempty"`
	CheckNumber            *string `gorm:"uniqueIndex" json:"check_number,omitempty"`

	GroupID        *uuid.UUID `gorm:"type:uuid;index" json:"group_id,omitempty"`
	FundCategoryID *uuid.UUID `gorm:"type:uuid;index" json:"fund_category_id,omitempty"`
	SessionID      *uuid.UUID `gorm:"type:uuid;index" json:"session_id,omitempty"`
	QRCodeID       *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"qr_code_id,omitempty"`

	AllocationError *string     `json:"allocation_error,omitempty"`
	FailureReason   *string     `json:"failure_reason,omitempty"`
	PaidAt          *time.Time  `json:"paid_at,omitempty"`
	AllocatedBy     *uint       `json:"allocated_by,omitempty"`
	AllocatedAt     *time.Time  `json:"allocated_at,omitempty"`
	Metadata        types.JSONB `gorm:"type:jsonb" json:"metadata,omitempty"`

	types.Timestamps

	Group        *Group        `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	FundCategory *FundCategory `gorm:"foreignKey:FundCategoryID" json:"fund_category,omitempty"`
}

func (d *Donation) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = types.DONATION_PENDING
	}
	if d.Metadata == nil {
		d.Metadata = types.JSONB{}
	}
	return nil
}
