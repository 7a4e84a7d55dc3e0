package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

type QRCode struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	AmountMinor    *int64             `json:"amount_minor,omitempty"`
	Currency       string             `gorm:"size:3" json:"currency,omitempty"`
	Category       string             `json:"category,omitempty"`
	Method         types.QRCodeMethod `json:"method"`
	SessionID      *uuid.UUID         `gorm:"type:uuid;index" json:"session_id,omitempty"`
	GroupID        *uuid.UUID         `gorm:"type:uuid" json:"group_id,omitempty"`
	FundCategoryID *uuid.UUID         `gorm:"type:uuid" json:"fund_category_id,omitempty"`
	Payload        string             `json:"payload,omitempty"`
	ImageURL       *string            `json:"image_url,omitempty"`
	ExpiresAt      time.Time          `gorm:"index" json:"expires_at"`
	IsUsed         bool               `gorm:"index" json:"is_used"`
	UsedAt         *time.Time         `json:"used_at,omitempty"`
	DonationID     *uuid.UUID         `gorm:"type:uuid;uniqueIndex" json:"donation_id,omitempty"`

	types.Timestamps
}

func (q *QRCode) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

func (q *QRCode) IsExpired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && now.After(q.ExpiresAt)
}
