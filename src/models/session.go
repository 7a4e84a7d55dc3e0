package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

const (
	QR_STATUS_PENDING    = "pending"
	QR_STATUS_PROCESSING = "processing"
	QR_STATUS_GENERATED  = "generated"
	QR_STATUS_FAILED     = "failed"
	QR_STATUS_SKIPPED    = "skipped"
)

type AttendanceSession struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	Name               string     `json:"name"`
	GroupID            *uuid.UUID `gorm:"type:uuid;index" json:"group_id,omitempty"`
	StartsAt           time.Time  `json:"starts_at"`
	DefaultAmountMinor *int64     `json:"default_amount_minor,omitempty"`
	Category           string     `json:"category,omitempty"`
	QRStatus           string     `json:"qr_status"`
	QRError            *string    `json:"qr_error,omitempty"`
	CreatedBy          uint       `json:"created_by,omitempty"`

	types.Timestamps

	QRCodes []QRCode `gorm:"foreignKey:SessionID" json:"qr_codes,omitempty"`
}

func (s *AttendanceSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.QRStatus == "" {
		s.QRStatus = QR_STATUS_PENDING
	}
	return nil
}
