package scopes

import (
	"time"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func WithID(id string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ?", id)
	}
}

func WithStatuses(statuses ...types.DonationStatus) func(db *gorm.DB) *gorm.DB {
	values := make([]any, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, s)
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.IN{Column: "status", Values: values})
	}
}

// Open matches donations a webhook may still settle.
func Open(db *gorm.DB) *gorm.DB {
	return WithStatuses(types.DONATION_PENDING, types.DONATION_PROCESSING)(db)
}

func WithUnallocatedStatus(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", types.DONATION_UNALLOCATED)
}

func UpdatedBefore(t time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("updated_at < ?", t)
	}
}

func Limit(n int) func(db *gorm.DB) *gorm.DB {
	if n <= 0 || n > 200 {
		n = 50
	}
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(n)
	}
}
