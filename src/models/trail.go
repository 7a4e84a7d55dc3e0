package models

import (
	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

// TrailLog records operator actions such as manual allocation and check status changes.
type TrailLog struct {
	ID        uuid.UUID   `gorm:"primarykey;type:uuid" json:"id"`
	Type      string      `json:"type"`
	Initiator string      `json:"initiator"`
	Group     string      `json:"group"`
	SubjectID string      `gorm:"index" json:"subject_id"`
	Detail    types.JSONB `gorm:"type:jsonb" json:"detail,omitempty"`

	types.Timestamps
}

func (t *TrailLog) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
