package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models/scopes"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

// Actor is the authenticated caller performing an operator action.
type Actor struct {
	ID   uint
	Role string
	Name string
}

func (a Actor) require(action string, roles ...string) error {
	for _, r := range roles {
		if strings.EqualFold(a.Role, r) {
			return nil
		}
	}
	return &types.AuthorizationError{Role: a.Role, Action: action}
}

func (a Actor) initiator() string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprint(a.ID)
}

func parseID(field, id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, types.NewValidationError(field, "must be a valid uuid")
	}
	return parsed, nil
}

// Allocate routes an unallocated donation to a group and fund. The pair is checked again
// because the target may have been disabled since the payment arrived.
func (l *Ledger) Allocate(ctx context.Context, actor Actor, donationID, groupID, fundID, note string) (*models.Donation, error) {
	if err := actor.require("allocate donations", types.ROLE_ADMIN, types.ROLE_PASTOR); err != nil {
		return nil, err
	}
	id, err := parseID("id", donationID)
	if err != nil {
		return nil, err
	}
	gid, err := parseID("group_id", groupID)
	if err != nil {
		return nil, err
	}
	fid, err := parseID("fund_category_id", fundID)
	if err != nil {
		return nil, err
	}
	var donation models.Donation
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&donation).Error; err != nil {
			return notFound(err, "donation", id)
		}
		if donation.Status != types.DONATION_UNALLOCATED {
			return fmt.Errorf("%w: donation is %s", types.ErrInvalidTransition, donation.Status)
		}
		var group models.Group
		if err := tx.Where("id = ?", gid).First(&group).Error; err != nil {
			return notFound(err, "group", gid)
		}
		if !group.GivingEnabled {
			return &types.AllocationError{Reference: donation.Reference, Reason: fmt.Sprintf("Group giving is not enabled for %s", group.Name)}
		}
		var fund models.FundCategory
		if err := tx.Where("id = ?", fid).First(&fund).Error; err != nil {
			return notFound(err, "fund category", fid)
		}
		if !fund.Active {
			return &types.AllocationError{Reference: donation.Reference, Reason: fmt.Sprintf("Fund category %s is not active", fund.Name)}
		}
		now := l.now().UTC()
		res := tx.
			Model(&models.Donation{}).
			Where("id = ?", id).
			Scopes(scopes.WithUnallocatedStatus).
			Updates(map[string]any{
				"status":           types.DONATION_COMPLETED,
				"group_id":         gid,
				"fund_category_id": fid,
				"allocation_error": nil,
				"allocated_by":     actor.ID,
				"allocated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: donation was settled concurrently", types.ErrInvalidTransition)
		}
		if err := tx.Create(&models.TrailLog{
			Type:      "donation.allocated",
			Initiator: actor.initiator(),
			Group:     "donations",
			SubjectID: id.String(),
			Detail: types.JSONB{
				"groupId":        gid.String(),
				"fundCategoryId": fid.String(),
				"previousError":  donation.AllocationError,
				"note":           note,
			},
		}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&donation).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Allocation] donation [%s] allocated by %s\n", donation.ID.String(), actor.initiator())
	l.emitCompleted(&donation)
	return &donation, nil
}

// Reject closes an unallocated donation as failed, e.g. after the money was refunded.
func (l *Ledger) Reject(ctx context.Context, actor Actor, donationID, reason string) (*models.Donation, error) {
	if err := actor.require("reject donations", types.ROLE_ADMIN, types.ROLE_PASTOR); err != nil {
		return nil, err
	}
	id, err := parseID("id", donationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, types.NewValidationError("reason", "is required")
	}
	var donation models.Donation
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&donation).Error; err != nil {
			return notFound(err, "donation", id)
		}
		res := tx.
			Model(&models.Donation{}).
			Where("id = ?", id).
			Scopes(scopes.WithUnallocatedStatus).
			Updates(map[string]any{
				"status":         types.DONATION_FAILED,
				"failure_reason": reason,
				"allocated_by":   actor.ID,
				"allocated_at":   l.now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: donation is %s", types.ErrInvalidTransition, donation.Status)
		}
		if err := tx.Create(&models.TrailLog{
			Type:      "donation.rejected",
			Initiator: actor.initiator(),
			Group:     "donations",
			SubjectID: id.String(),
			Detail:    types.JSONB{"reason": reason},
		}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&donation).Error
	})
	if err != nil {
		return nil, err
	}
	return &donation, nil
}
