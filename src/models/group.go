package models

import (
	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

type Group struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	GroupCode     *string `gorm:"uniqueIndex;size:10" json:"group_code,omitempty"`
	GivingEnabled bool    `json:"giving_enabled"`

	types.Timestamps
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

type FundCategory struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	Name   string `json:"name"`
	Code   string `gorm:"uniqueIndex;size:5;not null" json:"fund_code"`
	Active bool   `json:"active"`

	types.Timestamps
}

func (f *FundCategory) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
