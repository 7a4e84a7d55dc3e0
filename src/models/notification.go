package models

import (
	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

// Notification is an outbound message handed to the mail queue, e.g. a donation receipt.
type Notification struct {
	ID              uuid.UUID    `gorm:"primarykey;type:uuid" json:"id"`
	ReferenceSource string       `json:"ref_src"`
	ReferenceType   string       `json:"ref_name"`
	ReferenceValue  string       `gorm:"uniqueIndex:notification_ref" json:"ref_value"`
	Title           string       `json:"title"`
	Description     *string      `json:"description"`
	ReferenceBody   *types.JSONB `gorm:"type:jsonb" json:"ref_body"`
	Type            string       `gorm:"uniqueIndex:notification_ref" json:"type"`
	Status          string       `json:"status"`

	types.Timestamps
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
