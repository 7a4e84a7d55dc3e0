package models

import (
	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

const (
	EVENT_OUTCOME_APPLIED   = "applied"
	EVENT_OUTCOME_DUPLICATE = "duplicate"
	EVENT_OUTCOME_IGNORED   = "ignored"
	EVENT_OUTCOME_REJECTED  = "rejected"
	EVENT_OUTCOME_ERROR     = "error"
)

// GatewayEvent is the raw inbound webhook log, written for every delivery.
type GatewayEvent struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	Gateway    string      `gorm:"index" json:"gateway"`
	EventType  string      `json:"event_type"`
	ExternalID string      `gorm:"index" json:"external_id,omitempty"`
	Payload    types.JSONB `gorm:"type:jsonb" json:"payload,omitempty"`
	Outcome    string      `json:"outcome"`
	Detail     string      `json:"detail,omitempty"`
	DonationID *uuid.UUID  `gorm:"type:uuid;index" json:"donation_id,omitempty"`

	types.Timestamps
}

func (e *GatewayEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
