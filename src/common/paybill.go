package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/paybill"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models/scopes"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

var paybillRoles = []string{types.ROLE_ADMIN, types.ROLE_PASTOR}

// ValidateAccount runs the resolver against the live directory. It never fails; lookup
// problems come back as an invalid result.
func (l *Ledger) ValidateAccount(ctx context.Context, raw string) paybill.Result {
	return paybill.Resolve(ctx, paybill.NewGormDirectory(l.db.WithContext(ctx)), raw)
}

// GenerateAccountNumber builds the GROUP-FUND reference donors type at the paybill prompt.
func (l *Ledger) GenerateAccountNumber(ctx context.Context, groupID, fundID string) (string, error) {
	gid, err := parseID("group_id", groupID)
	if err != nil {
		return "", err
	}
	fid, err := parseID("fund_category_id", fundID)
	if err != nil {
		return "", err
	}
	gdb := l.db.WithContext(ctx)
	var group models.Group
	if err := gdb.Where("id = ?", gid).First(&group).Error; err != nil {
		return "", notFound(err, "group", groupID)
	}
	if group.GroupCode == nil || *group.GroupCode == "" {
		return "", types.NewValidationError("group_id", fmt.Sprintf("%s has no group code", group.Name))
	}
	var fund models.FundCategory
	if err := gdb.Where("id = ?", fid).First(&fund).Error; err != nil {
		return "", notFound(err, "fund category", fundID)
	}
	return paybill.Generate(*group.GroupCode, fund.Code), nil
}

func duplicateCode(err error, field string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return types.NewValidationError(field, "is already in use")
	}
	return err
}

type GroupInput struct {
	Name          string
	Description   string
	GroupCode     string
	GivingEnabled bool
}

func (l *Ledger) CreateGroup(ctx context.Context, actor Actor, in GroupInput) (*models.Group, error) {
	if err := actor.require("create groups", paybillRoles...); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, types.NewValidationError("name", "is required")
	}
	group := models.Group{
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		GivingEnabled: in.GivingEnabled,
	}
	if in.GroupCode != "" {
		if err := paybill.ValidateGroupCode(in.GroupCode); err != nil {
			return nil, types.NewValidationError("group_code", err.Error())
		}
		code := strings.ToUpper(strings.TrimSpace(in.GroupCode))
		group.GroupCode = &code
	}
	if err := l.db.WithContext(ctx).Create(&group).Error; err != nil {
		return nil, duplicateCode(err, "group_code")
	}
	return &group, nil
}

func (l *Ledger) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := l.db.WithContext(ctx).Order("name").Find(&groups).Error
	return groups, err
}

// SetGroupCode assigns the paybill code of a group and optionally toggles giving.
func (l *Ledger) SetGroupCode(ctx context.Context, actor Actor, groupID, code string, givingEnabled *bool) (*models.Group, error) {
	if err := actor.require("set group codes", paybillRoles...); err != nil {
		return nil, err
	}
	gid, err := parseID("id", groupID)
	if err != nil {
		return nil, err
	}
	if err := paybill.ValidateGroupCode(code); err != nil {
		return nil, types.NewValidationError("group_code", err.Error())
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	var group models.Group
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", gid).First(&group).Error; err != nil {
			return notFound(err, "group", groupID)
		}
		updates := map[string]any{"group_code": code}
		if givingEnabled != nil {
			updates["giving_enabled"] = *givingEnabled
		}
		if err := tx.Model(&group).Updates(updates).Error; err != nil {
			return duplicateCode(err, "group_code")
		}
		return tx.Where("id = ?", gid).First(&group).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Paybill] Group [%s] code set to %s by %s\n", group.ID.String(), code, actor.initiator())
	return &group, nil
}

// SuggestGroupCode proposes an unused code derived from the group's name, appending a digit
// suffix when the plain form is taken.
func (l *Ledger) SuggestGroupCode(ctx context.Context, groupID string) (string, error) {
	gid, err := parseID("id", groupID)
	if err != nil {
		return "", err
	}
	gdb := l.db.WithContext(ctx)
	var group models.Group
	if err := gdb.Where("id = ?", gid).First(&group).Error; err != nil {
		return "", notFound(err, "group", groupID)
	}
	base := paybill.SuggestGroupCode(group.Name)
	for i := 0; i < 100; i++ {
		candidate := base
		if i > 0 {
			suffix := fmt.Sprint(i)
			if len(base)+len(suffix) > 10 {
				candidate = base[:10-len(suffix)] + suffix
			} else {
				candidate = base + suffix
			}
		}
		var count int64
		if err := gdb.Model(&models.Group{}).
			Where("group_code = ? AND id <> ?", candidate, gid).
			Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", types.NewValidationError("name", "no free group code could be derived")
}

type FundCategoryInput struct {
	Name   string
	Code   string
	Active *bool
}

func (l *Ledger) CreateFundCategory(ctx context.Context, actor Actor, in FundCategoryInput) (*models.FundCategory, error) {
	if err := actor.require("create fund categories", paybillRoles...); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, types.NewValidationError("name", "is required")
	}
	if err := paybill.ValidateFundCode(in.Code); err != nil {
		return nil, types.NewValidationError("fund_code", err.Error())
	}
	fund := models.FundCategory{
		Name:   strings.TrimSpace(in.Name),
		Code:   strings.ToUpper(strings.TrimSpace(in.Code)),
		Active: true,
	}
	if in.Active != nil {
		fund.Active = *in.Active
	}
	if err := l.db.WithContext(ctx).Create(&fund).Error; err != nil {
		return nil, duplicateCode(err, "fund_code")
	}
	return &fund, nil
}

func (l *Ledger) UpdateFundCategory(ctx context.Context, actor Actor, id string, in FundCategoryInput) (*models.FundCategory, error) {
	if err := actor.require("update fund categories", paybillRoles...); err != nil {
		return nil, err
	}
	fid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if name := strings.TrimSpace(in.Name); name != "" {
		updates["name"] = name
	}
	if in.Code != "" {
		if err := paybill.ValidateFundCode(in.Code); err != nil {
			return nil, types.NewValidationError("fund_code", err.Error())
		}
		updates["code"] = strings.ToUpper(strings.TrimSpace(in.Code))
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	var fund models.FundCategory
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", fid).First(&fund).Error; err != nil {
			return notFound(err, "fund category", id)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&fund).Updates(updates).Error; err != nil {
			return duplicateCode(err, "fund_code")
		}
		return tx.Where("id = ?", fid).First(&fund).Error
	})
	if err != nil {
		return nil, err
	}
	return &fund, nil
}

func (l *Ledger) ListFundCategories(ctx context.Context, activeOnly bool) ([]models.FundCategory, error) {
	var funds []models.FundCategory
	q := l.db.WithContext(ctx).Model(&models.FundCategory{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	err := q.Scopes(scopes.Limit(200)).Order("code").Find(&funds).Error
	return funds, err
}
