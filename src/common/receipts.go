package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/mailer"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

const (
	NOTIFICATION_RECEIPT = "receipt"
	NOTIFICATION_EMAIL   = "email"

	NOTIFICATION_QUEUED = "queued"
)

// Receipts queues a thank-you email once per completed donation.
type Receipts struct {
	db   *gorm.DB
	send func(in *lib.SendMailInput) error
}

func NewReceipts(gdb *gorm.DB) *Receipts {
	return &Receipts{db: gdb, send: mailer.NewMailerMessage}
}

func receiptBody(d *models.Donation) string {
	var b strings.Builder
	name := "friend"
	if d.PayerName != nil && *d.PayerName != "" {
		name = *d.PayerName
	}
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	fmt.Fprintf(&b, "Thank you for your gift of %s %s", d.Currency, gateways.FormatMinorUnits(d.AmountMinor))
	if d.FundCategory != nil {
		fmt.Fprintf(&b, " to %s", d.FundCategory.Name)
	}
	if d.Group != nil {
		fmt.Fprintf(&b, " (%s)", d.Group.Name)
	}
	b.WriteString(".\n\n")
	fmt.Fprintf(&b, "Receipt: %s\n", d.ID.String())
	if d.TransactionID != nil {
		fmt.Fprintf(&b, "Transaction: %s\n", *d.TransactionID)
	}
	if d.PaidAt != nil {
		fmt.Fprintf(&b, "Date: %s\n", d.PaidAt.Format("2 Jan 2006 15:04"))
	}
	return b.String()
}

// HandleDonationCompleted is the dispatcher subscription for EVENT_DONATION_COMPLETED.
func (r *Receipts) HandleDonationCompleted(ctx context.Context, ev Event) error {
	id, err := uuid.Parse(ev.ID)
	if err != nil {
		return types.NewValidationError("id", "must be a valid uuid")
	}
	return r.Send(ctx, id)
}

// Send records the receipt notification and hands the email to the mail queue. A receipt
// that was already recorded is not sent again.
func (r *Receipts) Send(ctx context.Context, donationID uuid.UUID) error {
	gdb := r.db.WithContext(ctx)
	var d models.Donation
	err := gdb.
		Preload("Group").
		Preload("FundCategory").
		Where("id = ?", donationID).
		First(&d).
		Error
	if err != nil {
		return notFound(err, "donation", donationID)
	}
	if d.Status != types.DONATION_COMPLETED {
		return nil
	}
	if d.PayerEmail == nil || *d.PayerEmail == "" {
		log.Printf("[Receipts] Donation [%s] has no email, skipping receipt\n", d.ID.String())
		return nil
	}
	title := fmt.Sprintf("Receipt for your %s gift", d.Category)
	body := receiptBody(&d)
	notification := models.Notification{
		ReferenceSource: "donation",
		ReferenceType:   NOTIFICATION_RECEIPT,
		ReferenceValue:  d.ID.String(),
		Title:           title,
		Description:     &body,
		ReferenceBody:   &types.JSONB{"email": *d.PayerEmail, "amountMinor": d.AmountMinor, "currency": d.Currency},
		Type:            NOTIFICATION_EMAIL,
		Status:          NOTIFICATION_QUEUED,
	}
	if err := gdb.Create(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	err = r.send(&lib.SendMailInput{
		FromName: "Giving",
		To:       []string{*d.PayerEmail},
		Subject:  title,
		Body:     body,
	})
	if err != nil {
		log.Printf("[Receipts] Error queueing receipt for [%s]: %s\n", d.ID.String(), err.Error())
		// drop the marker so a redelivered event can try again
		if derr := gdb.Unscoped().Delete(&notification).Error; derr != nil {
			log.Printf("[Receipts] Error removing notification [%s]: %s\n", notification.ID.String(), derr.Error())
		}
		return err
	}
	return nil
}
