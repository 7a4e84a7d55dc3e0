package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/stretchr/testify/assert"
)

func (s *LedgerSuite) generator() (*QRGenerator, *[]string) {
	rendered := []string{}
	g := NewQRGenerator(s.db)
	g.now = func() time.Time { return s.now }
	g.tempDir = s.T().TempDir()
	g.render = func(payload, path string) error {
		rendered = append(rendered, payload)
		return nil
	}
	g.upload = func(key, path string) (*string, error) {
		url := fmt.Sprintf("https://assets.example.org/%s", key)
		return &url, nil
	}
	return g, &rendered
}

func (s *LedgerSuite) session(amount *int64) *models.AttendanceSession {
	session, err := s.ledger.CreateSession(s.ctx, admin, SessionInput{
		Name:               "Sunday Service",
		GroupID:            &s.group.ID,
		DefaultAmountMinor: amount,
		Category:           "offering",
	})
	s.Require().NoError(err)
	return session
}

func (s *LedgerSuite) TestCreateSession() {
	_, err := s.ledger.CreateSession(s.ctx, admin, SessionInput{Name: " "})
	var verr *types.ValidationError
	s.ErrorAs(err, &verr)

	zero := int64(0)
	_, err = s.ledger.CreateSession(s.ctx, admin, SessionInput{Name: "Vigil", DefaultAmountMinor: &zero})
	s.ErrorAs(err, &verr)

	skipped, err := s.ledger.CreateSession(s.ctx, admin, SessionInput{Name: "Vigil", NoQRCodes: true})
	s.Require().NoError(err)
	assert.Equal(s.T(), models.QR_STATUS_SKIPPED, skipped.QRStatus)
	assert.True(s.T(), s.now.Equal(skipped.StartsAt))

	events := NewDispatcher(4, 1)
	defer events.Close()
	got := make(chan Event, 1)
	events.Subscribe(EVENT_SESSION_CREATED, func(ctx context.Context, ev Event) error {
		got <- ev
		return nil
	})
	s.ledger.events = events
	created := s.session(nil)
	assert.Equal(s.T(), models.QR_STATUS_PENDING, created.QRStatus)
	select {
	case ev := <-got:
		assert.Equal(s.T(), created.ID.String(), ev.ID)
	case <-time.After(2 * time.Second):
		s.Fail("SessionCreated was not delivered")
	}

	sessions, err := s.ledger.ListSessions(s.ctx, 0)
	s.Require().NoError(err)
	assert.Len(s.T(), sessions, 2)
}

func (s *LedgerSuite) TestGenerateSessionCodes() {
	amount := int64(50000)
	session := s.session(&amount)
	g, rendered := s.generator()

	s.Require().NoError(g.HandleSessionCreated(s.ctx, Event{Name: EVENT_SESSION_CREATED, ID: session.ID.String()}))
	assert.Len(s.T(), *rendered, 2)

	loaded, err := s.ledger.GetSession(s.ctx, session.ID.String())
	s.Require().NoError(err)
	assert.Equal(s.T(), models.QR_STATUS_GENERATED, loaded.QRStatus)
	s.Require().Len(loaded.QRCodes, 2)
	for _, qr := range loaded.QRCodes {
		s.Require().NotNil(qr.ImageURL)
		assert.Contains(s.T(), *qr.ImageURL, qr.ID.String())
		assert.Contains(s.T(), qr.Payload, "/give?qr="+qr.ID.String())
		assert.True(s.T(), s.now.Add(config.QR_CODE_TTL).Equal(qr.ExpiresAt))
		assert.Equal(s.T(), s.group.ID, *qr.GroupID)
		switch qr.Method {
		case types.QR_MPESA:
			assert.Equal(s.T(), "KES", qr.Currency)
			assert.Equal(s.T(), amount, *qr.AmountMinor)
		case types.QR_PAYPAL:
			assert.Equal(s.T(), "USD", qr.Currency)
			assert.Nil(s.T(), qr.AmountMinor)
		}
	}

	s.Require().NoError(g.GenerateForSession(s.ctx, session.ID))
	assert.Len(s.T(), *rendered, 2)
}

func (s *LedgerSuite) TestGenerateSessionCodesRenderFailure() {
	session := s.session(nil)
	g, _ := s.generator()
	g.render = func(payload, path string) error {
		return errors.New("disk full")
	}

	s.Error(g.GenerateForSession(s.ctx, session.ID))
	loaded, err := s.ledger.GetSession(s.ctx, session.ID.String())
	s.Require().NoError(err)
	assert.Equal(s.T(), models.QR_STATUS_FAILED, loaded.QRStatus)
	assert.Equal(s.T(), "disk full", *loaded.QRError)
	assert.Len(s.T(), loaded.QRCodes, 2)
}

func (s *LedgerSuite) sessionCode(method types.QRCodeMethod) (*models.AttendanceSession, models.QRCode) {
	amount := int64(20000)
	session := s.session(&amount)
	g, _ := s.generator()
	s.Require().NoError(g.GenerateForSession(s.ctx, session.ID))
	var qr models.QRCode
	s.Require().NoError(s.db.Where("session_id = ? AND method = ?", session.ID, method).First(&qr).Error)
	return session, qr
}

func (s *LedgerSuite) TestDonationInheritsQRContext() {
	session, qr := s.sessionCode(types.QR_MPESA)

	d, err := s.ledger.Create(s.ctx, DonationInput{Method: types.METHOD_MPESA, QRCodeID: &qr.ID})
	s.Require().NoError(err)
	assert.Equal(s.T(), int64(20000), d.AmountMinor)
	assert.Equal(s.T(), "offering", d.Category)
	assert.Equal(s.T(), session.ID, *d.SessionID)
	assert.Equal(s.T(), s.group.ID, *d.GroupID)
	assert.Equal(s.T(), qr.ID, *d.QRCodeID)

	var used models.QRCode
	s.Require().NoError(s.db.Where("id = ?", qr.ID).First(&used).Error)
	assert.True(s.T(), used.IsUsed)
	assert.Equal(s.T(), d.ID, *used.DonationID)

	_, err = s.ledger.Create(s.ctx, DonationInput{Method: types.METHOD_MPESA, AmountMinor: 100, QRCodeID: &qr.ID})
	s.ErrorIs(err, errQRCodeUsed)

	scan, err := s.ledger.QRScanContext(s.ctx, qr.ID.String())
	s.Require().NoError(err)
	assert.True(s.T(), scan.Used)
	assert.False(s.T(), scan.Expired)
}

func (s *LedgerSuite) TestExplicitValuesOverrideQRContext() {
	_, qr := s.sessionCode(types.QR_PAYPAL)
	d, err := s.ledger.Create(s.ctx, DonationInput{Method: types.METHOD_PAYPAL, AmountMinor: 1500, Category: "missions", QRCodeID: &qr.ID})
	s.Require().NoError(err)
	assert.Equal(s.T(), int64(1500), d.AmountMinor)
	assert.Equal(s.T(), "missions", d.Category)
	assert.Equal(s.T(), "USD", d.Currency)
}

func (s *LedgerSuite) TestExpiredQRCode() {
	_, qr := s.sessionCode(types.QR_MPESA)
	s.now = s.now.Add(config.QR_CODE_TTL + time.Minute)

	_, err := s.ledger.Create(s.ctx, DonationInput{Method: types.METHOD_MPESA, QRCodeID: &qr.ID})
	s.ErrorIs(err, errQRCodeExpired)

	scan, err := s.ledger.QRScanContext(s.ctx, qr.ID.String())
	s.Require().NoError(err)
	assert.True(s.T(), scan.Expired)

	g, _ := s.generator()
	removed, err := g.ExpireQRCodes(s.ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), int64(0), removed)

	s.now = s.now.Add(config.QR_CODE_RETENTION)
	removed, err = g.ExpireQRCodes(s.ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), int64(2), removed)

	_, err = s.ledger.QRScanContext(s.ctx, qr.ID.String())
	var nf *types.NotFoundError
	s.ErrorAs(err, &nf)
}
