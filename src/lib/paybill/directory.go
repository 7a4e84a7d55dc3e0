package paybill

import (
	"context"
	"errors"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"gorm.io/gorm"
)

// GormDirectory looks codes up in the groups and fund_categories tables.
type GormDirectory struct {
	DB *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{DB: db}
}

func (d *GormDirectory) GroupByCode(ctx context.Context, code string) (*GroupRef, error) {
	var group models.Group
	err := d.DB.WithContext(ctx).
		Model(&models.Group{}).
		Where("group_code = ?", code).
		First(&group).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &GroupRef{ID: group.ID, Name: group.Name, GivingEnabled: group.GivingEnabled}, nil
}

func (d *GormDirectory) FundByCode(ctx context.Context, code string) (*FundRef, error) {
	var fund models.FundCategory
	err := d.DB.WithContext(ctx).
		Model(&models.FundCategory{}).
		Where("code = ?", code).
		First(&fund).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &FundRef{ID: fund.ID, Name: fund.Name, Active: fund.Active}, nil
}
