package common

import (
	"errors"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/stretchr/testify/assert"
)

func (s *LedgerSuite) TestReceipts() {
	var sent []*lib.SendMailInput
	var failWith error
	r := NewReceipts(s.db)
	r.send = func(in *lib.SendMailInput) error {
		if failWith != nil {
			return failWith
		}
		sent = append(sent, in)
		return nil
	}

	d := s.processing("ws_CO_200", DonationInput{PayerEmail: "donor@example.org", PayerName: "Jane", FundCategoryID: &s.fund.ID, GroupID: &s.group.ID})

	s.Require().NoError(r.HandleDonationCompleted(s.ctx, Event{Name: EVENT_DONATION_COMPLETED, ID: d.ID.String()}))
	assert.Empty(s.T(), sent, "processing donations get no receipt")

	_, err := s.ledger.Reconcile(s.ctx, stkOutcome("ws_CO_200", "RCPT00001"))
	s.Require().NoError(err)

	failWith = errors.New("queue unavailable")
	s.Error(r.Send(s.ctx, d.ID))
	var count int64
	s.db.Model(&models.Notification{}).Count(&count)
	assert.Equal(s.T(), int64(0), count)

	failWith = nil
	s.Require().NoError(r.Send(s.ctx, d.ID))
	s.Require().NoError(r.Send(s.ctx, d.ID))
	s.Require().Len(sent, 1)
	assert.Equal(s.T(), []string{"donor@example.org"}, sent[0].To)
	assert.Contains(s.T(), sent[0].Body, "Dear Jane")
	assert.Contains(s.T(), sent[0].Body, "KES 100.00 to Tithe (Jericho)")
	assert.Contains(s.T(), sent[0].Body, "Transaction: RCPT00001")

	var n models.Notification
	s.Require().NoError(s.db.First(&n).Error)
	assert.Equal(s.T(), d.ID.String(), n.ReferenceValue)
	assert.Equal(s.T(), NOTIFICATION_QUEUED, n.Status)

	s.Run("no email", func() {
		anon := s.processing("ws_CO_201", DonationInput{})
		_, err := s.ledger.Reconcile(s.ctx, stkOutcome("ws_CO_201", "RCPT00002"))
		s.Require().NoError(err)
		s.Require().NoError(r.Send(s.ctx, anon.ID))
		assert.Len(s.T(), sent, 1)
	})

	err = r.HandleDonationCompleted(s.ctx, Event{Name: EVENT_DONATION_COMPLETED, ID: "not-a-uuid"})
	var verr *types.ValidationError
	s.ErrorAs(err, &verr)
}
