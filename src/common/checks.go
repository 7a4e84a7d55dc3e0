package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models/scopes"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

const (
	CHECK_BOUNCED_REASON = "check bounced"
	CHECK_DELETED_REASON = "check deleted before deposit"
)

type CheckInput struct {
	CheckNumber string
	AmountMinor int64
	Currency    string
	Category    string
	BankName    string
	PayerName   string
	CheckDate   *time.Time
	Memo        string
	Reference   string
}

var checkRoles = []string{types.ROLE_ADMIN, types.ROLE_PASTOR, types.ROLE_TREASURER}

// RecordCheck stores a paper check and its donation. The donation waits in processing
// until the check clears or bounces.
func (l *Ledger) RecordCheck(ctx context.Context, actor Actor, in CheckInput) (*models.Check, error) {
	if err := actor.require("record checks", checkRoles...); err != nil {
		return nil, err
	}
	number := strings.TrimSpace(in.CheckNumber)
	if in.PayerName == "" {
		return nil, types.NewValidationError("payer_name", "is required")
	}
	result, err := gateways.ManualGateway{}.Initiate(ctx, gateways.InitiationRequest{
		AmountMinor: in.AmountMinor,
		Currency:    in.Currency,
		Reference:   number,
	})
	if err != nil {
		return nil, err
	}
	var check models.Check
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		donation, err := l.createTx(tx, DonationInput{
			AmountMinor: in.AmountMinor,
			Currency:    in.Currency,
			Category:    in.Category,
			Method:      types.METHOD_CHECK,
			Reference:   in.Reference,
			Description: in.Memo,
			PayerName:   in.PayerName,
		}, nil)
		if err != nil {
			return err
		}
		if _, err := attachTx(tx, donation.ID, result.Handles(), types.JSONB{"bank": in.BankName}); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return types.NewValidationError("check_number", "has already been recorded")
			}
			return err
		}
		check = models.Check{
			CheckNumber: result.InstrumentNumber,
			AmountMinor: donation.AmountMinor,
			Currency:    donation.Currency,
			BankName:    in.BankName,
			PayerName:   in.PayerName,
			CheckDate:   in.CheckDate,
			Memo:        in.Memo,
			Status:      types.CHECK_PENDING,
			DonationID:  &donation.ID,
			RecordedBy:  actor.ID,
		}
		if err := tx.Create(&check).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return types.NewValidationError("check_number", "has already been recorded")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &check, nil
}

func (l *Ledger) GetCheck(ctx context.Context, id string) (*models.Check, error) {
	cid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	var check models.Check
	if err := l.db.WithContext(ctx).Preload("Donation").Where("id = ?", cid).First(&check).Error; err != nil {
		return nil, notFound(err, "check", id)
	}
	return &check, nil
}

func (l *Ledger) ListChecks(ctx context.Context, status string, limit int) ([]models.Check, error) {
	checks := make([]models.Check, 0)
	q := l.db.WithContext(ctx).Model(&models.Check{}).Scopes(scopes.Limit(limit))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at desc").Find(&checks).Error
	return checks, err
}

// UpdateCheckStatus walks pending -> deposited -> cleared | bounced and settles the
// linked donation on the last step.
func (l *Ledger) UpdateCheckStatus(ctx context.Context, actor Actor, id string, next types.CheckStatus, note string) (*models.Check, error) {
	if err := actor.require("update checks", checkRoles...); err != nil {
		return nil, err
	}
	cid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	var check models.Check
	var completed *models.Donation
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", cid).First(&check).Error; err != nil {
			return notFound(err, "check", id)
		}
		previous := check.Status
		if !previous.CanMoveTo(next) {
			return fmt.Errorf("%w: check cannot move from %s to %s", types.ErrInvalidTransition, previous, next)
		}
		now := l.now().UTC()
		updates := map[string]any{"status": next}
		switch next {
		case types.CHECK_DEPOSITED:
			updates["deposited_at"] = now
		case types.CHECK_CLEARED:
			updates["cleared_at"] = now
		case types.CHECK_BOUNCED:
			updates["bounced_at"] = now
		}
		res := tx.
			Model(&models.Check{}).
			Where("id = ?", cid).
			Where("status = ?", previous).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: check was updated concurrently", types.ErrInvalidTransition)
		}
		if check.DonationID != nil && (next == types.CHECK_CLEARED || next == types.CHECK_BOUNCED) {
			donationUpdates := map[string]any{"status": types.DONATION_COMPLETED, "paid_at": now}
			if next == types.CHECK_BOUNCED {
				donationUpdates = map[string]any{"status": types.DONATION_FAILED, "failure_reason": CHECK_BOUNCED_REASON}
			}
			if err := tx.
				Model(&models.Donation{}).
				Where("id = ?", *check.DonationID).
				Scopes(scopes.Open).
				Updates(donationUpdates).
				Error; err != nil {
				return err
			}
			if next == types.CHECK_CLEARED {
				var d models.Donation
				if err := tx.Where("id = ?", *check.DonationID).First(&d).Error; err != nil {
					return err
				}
				completed = &d
			}
		}
		if err := tx.Create(&models.TrailLog{
			Type:      "check.status",
			Initiator: actor.initiator(),
			Group:     "checks",
			SubjectID: cid.String(),
			Detail: types.JSONB{
				"from": previous,
				"to":   next,
				"note": note,
			},
		}).Error; err != nil {
			return err
		}
		return tx.Preload("Donation").Where("id = ?", cid).First(&check).Error
	})
	if err != nil {
		return nil, err
	}
	if completed != nil && completed.Status == types.DONATION_COMPLETED {
		l.emitCompleted(completed)
	}
	return &check, nil
}

// DeleteCheck removes a check that has not been deposited. Its donation is kept and
// closed as failed, and the check number is released so it can be recorded again.
func (l *Ledger) DeleteCheck(ctx context.Context, actor Actor, id string) error {
	if err := actor.require("delete checks", checkRoles...); err != nil {
		return err
	}
	cid, err := parseID("id", id)
	if err != nil {
		return err
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var check models.Check
		if err := tx.Where("id = ?", cid).First(&check).Error; err != nil {
			return notFound(err, "check", id)
		}
		res := tx.
			Unscoped().
			Where("id = ?", cid).
			Where("status = ?", types.CHECK_PENDING).
			Delete(&models.Check{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: only pending checks can be deleted, check is %s", types.ErrInvalidTransition, check.Status)
		}
		if check.DonationID != nil {
			if err := tx.
				Model(&models.Donation{}).
				Where("id = ?", *check.DonationID).
				Scopes(scopes.Open).
				Updates(map[string]any{
					"status":         types.DONATION_FAILED,
					"failure_reason": CHECK_DELETED_REASON,
					"check_number":   nil,
				}).
				Error; err != nil {
				return err
			}
		}
		return tx.Create(&models.TrailLog{
			Type:      "check.deleted",
			Initiator: actor.initiator(),
			Group:     "checks",
			SubjectID: cid.String(),
			Detail:    types.JSONB{"checkNumber": check.CheckNumber},
		}).Error
	})
}
