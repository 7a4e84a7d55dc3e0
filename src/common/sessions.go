package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	awslib "github.com/mrhoseah/shepherd-chMS-sub005/src/lib/aws"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models/scopes"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/utils"
	"github.com/yeqown/go-qrcode"
	"gorm.io/gorm"
)

type SessionInput struct {
	Name               string
	GroupID            *uuid.UUID
	StartsAt           time.Time
	DefaultAmountMinor *int64
	Category           string
	NoQRCodes          bool
}

// CreateSession stores an attendance session. QR codes are generated afterwards by whoever
// consumes the SessionCreated event, so a slow or failing generator never fails the request.
func (l *Ledger) CreateSession(ctx context.Context, actor Actor, in SessionInput) (*models.AttendanceSession, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, types.NewValidationError("name", "is required")
	}
	if in.DefaultAmountMinor != nil && *in.DefaultAmountMinor <= 0 {
		return nil, types.NewValidationError("amount", "must be positive")
	}
	session := models.AttendanceSession{
		Name:               strings.TrimSpace(in.Name),
		GroupID:            in.GroupID,
		StartsAt:           in.StartsAt,
		DefaultAmountMinor: in.DefaultAmountMinor,
		Category:           strings.TrimSpace(in.Category),
		QRStatus:           models.QR_STATUS_PENDING,
		CreatedBy:          actor.ID,
	}
	if session.StartsAt.IsZero() {
		session.StartsAt = l.now()
	}
	if in.NoQRCodes {
		session.QRStatus = models.QR_STATUS_SKIPPED
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Group{}, "group", in.GroupID); err != nil {
			return err
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		log.Printf("[Sessions] Error creating session: %s\n", err.Error())
		return nil, err
	}
	if !in.NoQRCodes && l.events != nil {
		l.events.Emit(Event{Name: EVENT_SESSION_CREATED, ID: session.ID.String()})
	}
	return &session, nil
}

func (l *Ledger) GetSession(ctx context.Context, id string) (*models.AttendanceSession, error) {
	sid, err := parseID("id", id)
	if err != nil {
		return nil, err
	}
	var session models.AttendanceSession
	err = l.db.WithContext(ctx).
		Preload("QRCodes").
		Where("id = ?", sid).
		First(&session).
		Error
	if err != nil {
		return nil, notFound(err, "session", id)
	}
	return &session, nil
}

func (l *Ledger) ListSessions(ctx context.Context, limit int) ([]models.AttendanceSession, error) {
	var sessions []models.AttendanceSession
	err := l.db.WithContext(ctx).
		Scopes(scopes.Limit(limit)).
		Order("starts_at DESC").
		Find(&sessions).
		Error
	return sessions, err
}

// QRGenerator creates the MPESA and PAYPAL codes of a session and renders their images.
type QRGenerator struct {
	db      *gorm.DB
	now     func() time.Time
	tempDir string
	render  func(payload, path string) error
	upload  func(key, path string) (*string, error)
}

func NewQRGenerator(gdb *gorm.DB) *QRGenerator {
	g := &QRGenerator{
		db:      gdb,
		now:     time.Now,
		tempDir: os.Getenv("TEMP_DIR"),
		render:  renderQRCode,
	}
	if awslib.AssetsBucket() != "" {
		g.upload = awslib.S3UploadAsset
	}
	return g
}

func renderQRCode(payload, path string) error {
	qrc, err := qrcode.New(payload)
	if err != nil {
		return err
	}
	return qrc.Save(path)
}

// HandleSessionCreated is the dispatcher subscription for EVENT_SESSION_CREATED.
func (g *QRGenerator) HandleSessionCreated(ctx context.Context, ev Event) error {
	id, err := uuid.Parse(ev.ID)
	if err != nil {
		return types.NewValidationError("id", "must be a valid uuid")
	}
	return g.GenerateForSession(ctx, id)
}

// GenerateForSession claims a pending session and creates its codes. A session that is
// already claimed is skipped, so redelivered events do no work.
func (g *QRGenerator) GenerateForSession(ctx context.Context, id uuid.UUID) error {
	gdb := g.db.WithContext(ctx)
	claim := gdb.
		Model(&models.AttendanceSession{}).
		Where("id = ? AND qr_status = ?", id, models.QR_STATUS_PENDING).
		Update("qr_status", models.QR_STATUS_PROCESSING)
	if claim.Error != nil {
		return claim.Error
	}
	if claim.RowsAffected == 0 {
		log.Printf("[QRGenerator] Session [%s] already claimed, skipping\n", id.String())
		return nil
	}
	codes, err := g.createCodes(gdb, id)
	if err != nil {
		g.finish(gdb, id, err)
		return err
	}
	var renderErr error
	for i := range codes {
		if err := g.attachImage(gdb, &codes[i]); err != nil {
			log.Printf("[QRGenerator] Error rendering QR code [%s]: %s\n", codes[i].ID.String(), err.Error())
			renderErr = err
		}
	}
	g.finish(gdb, id, renderErr)
	return renderErr
}

func (g *QRGenerator) createCodes(gdb *gorm.DB, id uuid.UUID) ([]models.QRCode, error) {
	var codes []models.QRCode
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var session models.AttendanceSession
		if err := tx.Where("id = ?", id).First(&session).Error; err != nil {
			return notFound(err, "session", id)
		}
		expiresAt := g.now().Add(config.QR_CODE_TTL)
		for _, method := range []types.QRCodeMethod{types.QR_MPESA, types.QR_PAYPAL} {
			qrID := uuid.New()
			currency := config.DEFAULT_CURRENCY
			amount := session.DefaultAmountMinor
			if method == types.QR_PAYPAL {
				// PayPal does not settle KES; the donor enters a USD amount.
				currency = "USD"
				amount = nil
			}
			codes = append(codes, models.QRCode{
				ID:          qrID,
				AmountMinor: amount,
				Currency:    currency,
				Category:    session.Category,
				Method:      method,
				SessionID:   &session.ID,
				GroupID:     session.GroupID,
				Payload:     utils.AppURL(fmt.Sprintf("/give?qr=%s", qrID.String())),
				ExpiresAt:   expiresAt,
			})
		}
		return tx.Create(&codes).Error
	})
	return codes, err
}

func (g *QRGenerator) attachImage(gdb *gorm.DB, code *models.QRCode) error {
	if g.render == nil {
		return nil
	}
	path := filepath.Join(g.tempDir, fmt.Sprintf("qr-%s.jpeg", code.ID.String()))
	if g.tempDir == "" {
		path = filepath.Join(os.TempDir(), fmt.Sprintf("qr-%s.jpeg", code.ID.String()))
	}
	if err := g.render(code.Payload, path); err != nil {
		return err
	}
	if g.upload == nil {
		return nil
	}
	defer os.Remove(path)
	url, err := g.upload(fmt.Sprintf("qrcodes/%s.jpeg", code.ID.String()), path)
	if err != nil {
		return err
	}
	code.ImageURL = url
	return gdb.Model(&models.QRCode{}).Where("id = ?", code.ID).Update("image_url", *url).Error
}

func (g *QRGenerator) finish(gdb *gorm.DB, id uuid.UUID, err error) {
	updates := map[string]any{"qr_status": models.QR_STATUS_GENERATED, "qr_error": nil}
	if err != nil {
		updates = map[string]any{"qr_status": models.QR_STATUS_FAILED, "qr_error": err.Error()}
	}
	if uerr := gdb.Model(&models.AttendanceSession{}).Where("id = ?", id).Updates(updates).Error; uerr != nil {
		log.Printf("[QRGenerator] Error updating session [%s]: %s\n", id.String(), uerr.Error())
	}
}

// ExpireQRCodes removes unused codes that expired more than QR_CODE_RETENTION ago. Until then a
// scan still reports the code as expired instead of unknown.
func (g *QRGenerator) ExpireQRCodes(ctx context.Context) (int64, error) {
	res := g.db.WithContext(ctx).
		Where("is_used = ? AND expires_at < ?", false, g.now().Add(-config.QR_CODE_RETENTION)).
		Delete(&models.QRCode{})
	if res.Error != nil {
		log.Printf("[QRGenerator] Error expiring QR codes: %s\n", res.Error.Error())
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[QRGenerator] Expired %d QR codes\n", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
