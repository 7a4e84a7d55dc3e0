package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

type Check struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	CheckNumber string            `gorm:"uniqueIndex;not null" json:"check_number"`
	AmountMinor int64             `gorm:"not null" json:"amount_minor"`
	Currency    string            `gorm:"size:3" json:"currency"`
	BankName    string            `json:"bank_name,omitempty"`
	PayerName   string            `json:"payer_name"`
	CheckDate   *time.Time        `json:"check_date,omitempty"`
	Memo        string            `json:"memo,omitempty"`
	Status      types.CheckStatus `gorm:"index" json:"status"`
	DepositedAt *time.Time        `json:"deposited_at,omitempty"`
	ClearedAt   *time.Time        `json:"cleared_at,omitempty"`
	BouncedAt   *time.Time        `json:"bounced_at,omitempty"`
	DonationID  *uuid.UUID        `gorm:"type:uuid;uniqueIndex" json:"donation_id,omitempty"`
	RecordedBy  uint              `json:"recorded_by,omitempty"`

	types.Timestamps

	Donation *Donation `gorm:"foreignKey:DonationID" json:"donation,omitempty"`
}

func (c *Check) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = types.CHECK_PENDING
	}
	return nil
}
