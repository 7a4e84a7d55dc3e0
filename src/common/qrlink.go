package common

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

var (
	errQRCodeUsed    = types.NewValidationError("qr_code_id", "has already been used")
	errQRCodeExpired = types.NewValidationError("qr_code_id", "has expired")
)

func loadLinkableQRCode(tx *gorm.DB, id uuid.UUID, now time.Time) (*models.QRCode, error) {
	var qr models.QRCode
	if err := tx.Where("id = ?", id).First(&qr).Error; err != nil {
		return nil, notFound(err, "qr code", id)
	}
	if qr.IsUsed {
		return nil, errQRCodeUsed
	}
	if qr.IsExpired(now) {
		return nil, errQRCodeExpired
	}
	return &qr, nil
}

// inheritQRContext fills whatever the caller left unset from the scanned code.
func inheritQRContext(in DonationInput, qr *models.QRCode) DonationInput {
	if in.AmountMinor == 0 && qr.AmountMinor != nil {
		in.AmountMinor = *qr.AmountMinor
	}
	if in.Category == "" {
		in.Category = qr.Category
	}
	if in.Currency == "" {
		in.Currency = qr.Currency
	}
	if in.SessionID == nil {
		in.SessionID = qr.SessionID
	}
	if in.GroupID == nil {
		in.GroupID = qr.GroupID
	}
	if in.FundCategoryID == nil {
		in.FundCategoryID = qr.FundCategoryID
	}
	return in
}

// consumeQRCode flips is_used exactly once; the loser of a race gets errQRCodeUsed.
func consumeQRCode(tx *gorm.DB, qrID uuid.UUID, donationID uuid.UUID, now time.Time) error {
	res := tx.
		Model(&models.QRCode{}).
		Where("id = ?", qrID).
		Where("is_used = ?", false).
		Updates(map[string]any{
			"is_used":     true,
			"used_at":     now.UTC(),
			"donation_id": donationID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errQRCodeUsed
	}
	return nil
}

type QRContext struct {
	ID             uuid.UUID          `json:"id"`
	Method         types.QRCodeMethod `json:"method"`
	AmountMinor    *int64             `json:"amount_minor,omitempty"`
	Currency       string             `json:"currency,omitempty"`
	Category       string             `json:"category,omitempty"`
	SessionID      *uuid.UUID         `json:"session_id,omitempty"`
	GroupID        *uuid.UUID         `json:"group_id,omitempty"`
	FundCategoryID *uuid.UUID         `json:"fund_category_id,omitempty"`
	ImageURL       *string            `json:"image_url,omitempty"`
	ExpiresAt      time.Time          `json:"expires_at"`
	Expired        bool               `json:"expired"`
	Used           bool               `json:"used"`
}

// QRScanContext is what a donor screen needs after scanning a code.
func (l *Ledger) QRScanContext(ctx context.Context, id string) (*QRContext, error) {
	qrID, err := uuid.Parse(id)
	if err != nil {
		return nil, types.NewValidationError("id", "must be a valid uuid")
	}
	var qr models.QRCode
	if err := l.db.WithContext(ctx).Where("id = ?", qrID).First(&qr).Error; err != nil {
		return nil, notFound(err, "qr code", id)
	}
	return &QRContext{
		ID:             qr.ID,
		Method:         qr.Method,
		AmountMinor:    qr.AmountMinor,
		Currency:       qr.Currency,
		Category:       qr.Category,
		SessionID:      qr.SessionID,
		GroupID:        qr.GroupID,
		FundCategoryID: qr.FundCategoryID,
		ImageURL:       qr.ImageURL,
		ExpiresAt:      qr.ExpiresAt,
		Expired:        qr.IsExpired(l.now()),
		Used:           qr.IsUsed,
	}, nil
}
