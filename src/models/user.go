package models

import (
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

type User struct {
	ID       uint            `gorm:"primarykey" json:"id"`
	Name     string          `json:"name,omitempty"`
	Email    string          `gorm:"uniqueIndex" json:"email,omitempty"`
	Phone    string          `json:"phone,omitempty"`
	Role     string          `json:"role,omitempty"`
	UID      string          `json:"uid,omitempty"`
	Metadata *types.Metadata `gorm:"serializer:json" json:"-"`

	types.Timestamps
}
