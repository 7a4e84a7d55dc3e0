package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

const (
	JOB_STATUS_PENDING   = "pending"
	JOB_STATUS_COMPLETED = "completed"
	JOB_STATUS_FAILED    = "failed"
	JOB_STATUS_EXPIRED   = "expired"

	JOB_TYPE_STK_QUERY = "StkStatusQuery"
)

// JobTask persists deferred work so it survives a restart.
type JobTask struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	Name      string      `json:"name"`
	JobType   string      `gorm:"index" json:"job_type"`
	RunsAt    time.Time   `gorm:"index" json:"runs_at"`
	PayloadID string      `gorm:"index" json:"payload_id"`
	Payload   types.JSONB `gorm:"type:jsonb" json:"payload,omitempty"`
	Attempts  int         `json:"attempts"`
	LastError *string     `json:"last_error,omitempty"`
	Status    string      `gorm:"index" json:"status"`
}

func (j *JobTask) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = JOB_STATUS_PENDING
	}
	return nil
}
