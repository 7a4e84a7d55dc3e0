package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/db"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/paybill"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models/scopes"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"gorm.io/gorm"
)

// Ledger owns every status change of a Donation.
//
//	pending -> processing -> completed | failed | unallocated
//	unallocated -> completed | failed (operator only)
//
// Webhook-driven moves are conditional updates guarded by status IN (pending, processing)
// and by the unique correlation columns, so a replayed delivery either finds a settled row
// or collides, and both come back as types.ErrDuplicateWebhook.
type Ledger struct {
	db     *gorm.DB
	events *Dispatcher
	now    func() time.Time
}

func NewLedger(gdb *gorm.DB, events *Dispatcher) *Ledger {
	return &Ledger{db: gdb, events: events, now: time.Now}
}

// DefaultLedger uses the shared database handle and dispatcher.
func DefaultLedger() *Ledger {
	return NewLedger(db.GetDb(), GetDispatcher())
}

type DonationInput struct {
	AmountMinor    int64
	Currency       string
	Category       string
	Method         types.PaymentMethod
	Reference      string
	Description    string
	PayerPhone     string
	PayerEmail     string
	PayerName      string
	QRCodeID       *uuid.UUID
	GroupID        *uuid.UUID
	FundCategoryID *uuid.UUID
	SessionID      *uuid.UUID
	Metadata       types.JSONB
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func notFound(err error, entity string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewNotFoundError(entity, fmt.Sprint(id))
	}
	return err
}

func mergeMetadata(current types.JSONB, key string, value types.JSONB) types.JSONB {
	merged := types.JSONB{}
	maps.Copy(merged, current)
	if len(value) > 0 {
		merged[key] = value
	}
	return merged
}

// Create records a new pending donation. When a QR code is given its context is inherited
// and the code is consumed in the same transaction.
func (l *Ledger) Create(ctx context.Context, in DonationInput) (*models.Donation, error) {
	return l.create(ctx, in, nil)
}

// create runs accept against the fully resolved donation before it is inserted. A
// rejection rolls the transaction back, leaving no row and the QR code unconsumed.
func (l *Ledger) create(ctx context.Context, in DonationInput, accept func(*models.Donation) error) (*models.Donation, error) {
	var donation *models.Donation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := l.createTx(tx, in, accept)
		if err != nil {
			return err
		}
		donation = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return donation, nil
}

func (l *Ledger) createTx(tx *gorm.DB, in DonationInput, accept func(*models.Donation) error) (*models.Donation, error) {
	var qr *models.QRCode
	if in.QRCodeID != nil {
		linked, err := loadLinkableQRCode(tx, *in.QRCodeID, l.now())
		if err != nil {
			return nil, err
		}
		qr = linked
		in = inheritQRContext(in, qr)
	}
	if in.AmountMinor <= 0 {
		return nil, types.NewValidationError("amount", "is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, types.NewValidationError("category", "is required")
	}
	if in.Method == "" {
		return nil, types.NewValidationError("method", "is required")
	}
	if err := ensureExists(tx, &models.Group{}, "group", in.GroupID); err != nil {
		return nil, err
	}
	if err := ensureExists(tx, &models.FundCategory{}, "fund category", in.FundCategoryID); err != nil {
		return nil, err
	}
	if err := ensureExists(tx, &models.AttendanceSession{}, "session", in.SessionID); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = config.DEFAULT_CURRENCY
	}
	metadata := in.Metadata
	if metadata == nil {
		metadata = types.JSONB{}
	}
	donation := models.Donation{
		AmountMinor:    in.AmountMinor,
		Currency:       currency,
		Category:       strings.TrimSpace(in.Category),
		Method:         in.Method,
		Status:         types.DONATION_PENDING,
		Reference:      strings.TrimSpace(in.Reference),
		Description:    in.Description,
		PayerPhone:     optional(in.PayerPhone),
		PayerEmail:     optional(in.PayerEmail),
		PayerName:      optional(in.PayerName),
		GroupID:        in.GroupID,
		FundCategoryID: in.FundCategoryID,
		SessionID:      in.SessionID,
		QRCodeID:       in.QRCodeID,
		Metadata:       metadata,
	}
	if accept != nil {
		if err := accept(&donation); err != nil {
			return nil, err
		}
	}
	if err := tx.Create(&donation).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) && qr != nil {
			return nil, errQRCodeUsed
		}
		return nil, err
	}
	if qr != nil {
		if err := consumeQRCode(tx, qr.ID, donation.ID, l.now()); err != nil {
			return nil, err
		}
	}
	return &donation, nil
}

func ensureExists(tx *gorm.DB, model any, entity string, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := tx.Model(model).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return types.NewNotFoundError(entity, id.String())
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*models.Donation, error) {
	var donation models.Donation
	err := l.db.WithContext(ctx).
		Model(&models.Donation{}).
		Preload("Group").
		Preload("FundCategory").
		Scopes(scopes.WithID(id)).
		First(&donation).
		Error
	if err != nil {
		return nil, notFound(err, "donation", id)
	}
	return &donation, nil
}

// FindByCorrelation looks a donation up by one of its gateway handles.
func (l *Ledger) FindByCorrelation(ctx context.Context, c types.Correlation, value string) (*models.Donation, error) {
	d, err := findByLookups(l.db.WithContext(ctx), []Lookup{{Correlation: c, Value: value}})
	if err != nil {
		return nil, notFound(err, "donation", fmt.Sprintf("%s=%s", c, value))
	}
	return d, nil
}

func (l *Ledger) ListUnallocated(ctx context.Context, limit int) ([]models.Donation, error) {
	donations := make([]models.Donation, 0)
	err := l.db.WithContext(ctx).
		Model(&models.Donation{}).
		Scopes(scopes.WithUnallocatedStatus, scopes.Limit(limit)).
		Order("created_at desc").
		Find(&donations).
		Error
	return donations, err
}

// ListStaleMpesa returns pushes still waiting for a callback after the given instant.
func (l *Ledger) ListStaleMpesa(ctx context.Context, before time.Time, limit int) ([]models.Donation, error) {
	donations := make([]models.Donation, 0)
	err := l.db.WithContext(ctx).
		Model(&models.Donation{}).
		Scopes(scopes.WithStatuses(types.DONATION_PROCESSING), scopes.UpdatedBefore(before), scopes.Limit(limit)).
		Where("method = ?", types.METHOD_MPESA).
		Where("mpesa_checkout_request_id IS NOT NULL").
		Order("updated_at asc").
		Find(&donations).
		Error
	return donations, err
}

// AttachGatewayHandle stores the handles returned by an adapter and moves the donation to
// processing. It is a no-op for a donation that has already been settled.
func (l *Ledger) AttachGatewayHandle(ctx context.Context, id uuid.UUID, handles map[types.Correlation]string, raw types.JSONB) (*models.Donation, error) {
	var donation *models.Donation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := attachTx(tx, id, handles, raw)
		if err != nil {
			return err
		}
		donation = d
		return nil
	})
	return donation, err
}

func attachTx(tx *gorm.DB, id uuid.UUID, handles map[types.Correlation]string, raw types.JSONB) (*models.Donation, error) {
	var d models.Donation
	if err := tx.Where("id = ?", id).First(&d).Error; err != nil {
		return nil, notFound(err, "donation", id)
	}
	if d.Status != types.DONATION_PENDING && d.Status != types.DONATION_PROCESSING {
		return &d, nil
	}
	updates := map[string]any{"status": types.DONATION_PROCESSING}
	for c, v := range handles {
		if v == "" || c == types.CORRELATION_DONATION_ID {
			continue
		}
		updates[string(c)] = v
	}
	if len(raw) > 0 {
		updates["metadata"] = mergeMetadata(d.Metadata, "initiation", raw)
	}
	res := tx.
		Model(&models.Donation{}).
		Where("id = ?", id).
		Scopes(scopes.Open).
		Updates(updates)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("gateway handle already belongs to another donation: %w", res.Error)
		}
		return nil, res.Error
	}
	if err := tx.Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// MarkFailed settles an open donation as failed, keeping reason verbatim.
func (l *Ledger) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*models.Donation, error) {
	var donation models.Donation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&donation).Error; err != nil {
			return notFound(err, "donation", id)
		}
		if err := tx.
			Model(&models.Donation{}).
			Where("id = ?", id).
			Scopes(scopes.Open).
			Updates(map[string]any{
				"status":         types.DONATION_FAILED,
				"failure_reason": reason,
			}).
			Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&donation).Error
	})
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

type Lookup struct {
	Correlation types.Correlation
	Value       string
}

func findByLookups(tx *gorm.DB, lookups []Lookup) (*models.Donation, error) {
	for _, lk := range lookups {
		if strings.TrimSpace(lk.Value) == "" {
			continue
		}
		if lk.Correlation == types.CORRELATION_DONATION_ID {
			if _, err := uuid.Parse(lk.Value); err != nil {
				continue
			}
		}
		var d models.Donation
		err := tx.
			Model(&models.Donation{}).
			Where(fmt.Sprintf("%s = ?", lk.Correlation), lk.Value).
			First(&d).
			Error
		if err == nil {
			return &d, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// Outcome is a normalized gateway confirmation.
type Outcome struct {
	Gateway   string
	EventType string
	Method    types.PaymentMethod
	// Lookups are tried in order; the first match is the donation being settled.
	Lookups []Lookup
	Success bool
	Reason  string
	// AccountReference is set for direct collections that carry a GROUP-FUND reference.
	AccountReference *string
	Handles          map[types.Correlation]string
	AmountMinor      int64
	Currency         string
	Category         string
	PaidAt           *time.Time
	PayerPhone       string
	PayerEmail       string
	PayerName        string
	// CreateIfMissing is for payment-first rails where no donation was created beforehand.
	CreateIfMissing bool
	Metadata        types.JSONB
}

func (o *Outcome) describe() string {
	parts := []string{}
	for _, lk := range o.Lookups {
		if lk.Value != "" {
			parts = append(parts, fmt.Sprintf("%s=%s", lk.Correlation, lk.Value))
		}
	}
	return strings.Join(parts, ",")
}

// Reconcile applies a gateway outcome exactly once. A replay of an event that has already
// been applied returns the stored donation together with types.ErrDuplicateWebhook.
func (l *Ledger) Reconcile(ctx context.Context, out Outcome) (*models.Donation, error) {
	var settled models.Donation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := findByLookups(tx, out.Lookups)
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			if !out.CreateIfMissing {
				return types.NewNotFoundError("donation", out.describe())
			}
			created, err := createForOutcome(tx, out)
			if err != nil {
				return err
			}
			d = created
		default:
			return err
		}
		if d.Status != types.DONATION_PENDING && d.Status != types.DONATION_PROCESSING {
			settled = *d
			return types.ErrDuplicateWebhook
		}
		updates, err := l.settlement(ctx, tx, d, out)
		if err != nil {
			return err
		}
		res := tx.
			Model(&models.Donation{}).
			Where("id = ?", d.ID).
			Scopes(scopes.Open).
			Updates(updates)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return types.ErrDuplicateWebhook
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrDuplicateWebhook
		}
		return tx.Where("id = ?", d.ID).First(&settled).Error
	})
	if errors.Is(err, types.ErrDuplicateWebhook) {
		log.Printf("[%s] %s already processed (%s)\n", out.Gateway, out.describe(), out.EventType)
		if settled.ID == uuid.Nil {
			if existing, lerr := findByLookups(l.db.WithContext(ctx), append(handleLookups(out.Handles), out.Lookups...)); lerr == nil {
				settled = *existing
			}
		}
		return &settled, err
	}
	if err != nil {
		return nil, err
	}
	if settled.Status == types.DONATION_COMPLETED {
		l.emitCompleted(&settled)
	}
	return &settled, nil
}

func handleLookups(handles map[types.Correlation]string) []Lookup {
	lookups := []Lookup{}
	for c, v := range handles {
		lookups = append(lookups, Lookup{Correlation: c, Value: v})
	}
	return lookups
}

func createForOutcome(tx *gorm.DB, out Outcome) (*models.Donation, error) {
	category := out.Category
	if category == "" {
		category = "general"
	}
	currency := out.Currency
	if currency == "" {
		currency = config.DEFAULT_CURRENCY
	}
	d := models.Donation{
		AmountMinor: out.AmountMinor,
		Currency:    strings.ToUpper(currency),
		Category:    category,
		Method:      out.Method,
		Status:      types.DONATION_PROCESSING,
		PayerPhone:  optional(out.PayerPhone),
		PayerEmail:  optional(out.PayerEmail),
		PayerName:   optional(out.PayerName),
	}
	if out.AccountReference != nil {
		d.Reference = strings.TrimSpace(*out.AccountReference)
	}
	// handles are written on insert so a concurrent replay collides here
	for c, v := range out.Handles {
		setHandle(&d, c, v)
	}
	if err := tx.Create(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, types.ErrDuplicateWebhook
		}
		return nil, err
	}
	return &d, nil
}

func setHandle(d *models.Donation, c types.Correlation, v string) {
	value := optional(v)
	if value == nil {
		return
	}
	switch c {
	case types.CORRELATION_MPESA_CHECKOUT:
		d.MpesaCheckoutRequestID = value
	case types.CORRELATION_MPESA_MERCHANT:
		d.MpesaMerchantRequestID = value
	case types.CORRELATION_MPESA_RECEIPT:
		d.TransactionID = value
	case types.CORRELATION_PAYPAL_ORDER:
		d.PaypalOrderID = value
	case types.CORRELATION_PAYPAL_CAPTURE:
		d.PaypalCaptureID = value
	case types.CORRELATION_STRIPE_SESSION:
		d.StripeSessionID = value
	case types.CORRELATION_CHECK_NUMBER:
		d.CheckNumber = value
	}
}

// settlement computes the column updates that take d to its outcome state.
func (l *Ledger) settlement(ctx context.Context, tx *gorm.DB, d *models.Donation, out Outcome) (map[string]any, error) {
	updates := map[string]any{}
	for c, v := range out.Handles {
		if v == "" || c == types.CORRELATION_DONATION_ID {
			continue
		}
		updates[string(c)] = v
	}
	if d.PayerPhone == nil && out.PayerPhone != "" {
		updates["payer_phone"] = out.PayerPhone
	}
	if d.PayerEmail == nil && out.PayerEmail != "" {
		updates["payer_email"] = out.PayerEmail
	}
	if d.PayerName == nil && out.PayerName != "" {
		updates["payer_name"] = out.PayerName
	}
	receipt := types.JSONB{}
	maps.Copy(receipt, out.Metadata)
	if out.EventType != "" {
		receipt["event"] = out.EventType
	}
	if out.AmountMinor > 0 && out.AmountMinor != d.AmountMinor {
		log.Printf("[%s] amount mismatch on donation [%s]: recorded %d, gateway reported %d\n", out.Gateway, d.ID.String(), d.AmountMinor, out.AmountMinor)
		receipt["reportedAmountMinor"] = out.AmountMinor
	}

	if !out.Success {
		updates["status"] = types.DONATION_FAILED
		updates["failure_reason"] = out.Reason
		updates["metadata"] = mergeMetadata(d.Metadata, out.Gateway, receipt)
		return updates, nil
	}

	paidAt := l.now().UTC()
	if out.PaidAt != nil {
		paidAt = out.PaidAt.UTC()
	}
	updates["paid_at"] = paidAt
	updates["status"] = types.DONATION_COMPLETED

	reference := referenceToResolve(d, out)
	if reference != nil {
		if out.AccountReference != nil {
			updates["paybill_account_ref"] = *out.AccountReference
		}
		res := paybill.Resolve(ctx, paybill.NewGormDirectory(tx), *reference)
		if res.IsValid {
			updates["group_id"] = *res.GroupID
			updates["fund_category_id"] = *res.FundCategoryID
			updates["allocation_error"] = nil
		} else {
			updates["status"] = types.DONATION_UNALLOCATED
			updates["allocation_error"] = res.Error
			receipt["allocation"] = types.JSONB{
				"reason":         res.Reason,
				"groupCode":      res.GroupCode,
				"fundCode":       res.FundCode,
				"groupId":        res.GroupID,
				"fundCategoryId": res.FundCategoryID,
			}
		}
	}
	updates["metadata"] = mergeMetadata(d.Metadata, out.Gateway, receipt)
	return updates, nil
}

// referenceToResolve prefers the reference carried by the payment. A donation without a fund
// whose own reference looks structured is routed by that reference instead.
func referenceToResolve(d *models.Donation, out Outcome) *string {
	if out.AccountReference != nil {
		return out.AccountReference
	}
	if d.FundCategoryID == nil && strings.Contains(d.Reference, paybill.Delimiter) {
		ref := d.Reference
		return &ref
	}
	return nil
}

func (l *Ledger) emitCompleted(d *models.Donation) {
	if l.events == nil {
		return
	}
	l.events.Emit(Event{
		Name: EVENT_DONATION_COMPLETED,
		ID:   d.ID.String(),
		Payload: types.JSONB{
			"amountMinor": d.AmountMinor,
			"currency":    d.Currency,
			"method":      d.Method,
		},
	})
}
