package common

import (
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/stretchr/testify/assert"
)

func (s *LedgerSuite) recordCheck(number string) *models.Check {
	check, err := s.ledger.RecordCheck(s.ctx, treasurer, CheckInput{
		CheckNumber: number,
		AmountMinor: 250000,
		Category:    "building",
		BankName:    "Equity",
		PayerName:   "Mary Wanjiku",
	})
	s.Require().NoError(err)
	return check
}

func (s *LedgerSuite) donationOf(check *models.Check) models.Donation {
	var d models.Donation
	s.Require().NoError(s.db.Where("id = ?", *check.DonationID).First(&d).Error)
	return d
}

func (s *LedgerSuite) TestRecordCheck() {
	_, err := s.ledger.RecordCheck(s.ctx, Actor{ID: 9, Role: "MEMBER"}, CheckInput{CheckNumber: "1", AmountMinor: 100, Category: "tithe", PayerName: "X"})
	var authErr *types.AuthorizationError
	s.ErrorAs(err, &authErr)

	check := s.recordCheck(" 000123 ")
	assert.Equal(s.T(), "000123", check.CheckNumber)
	assert.Equal(s.T(), types.CHECK_PENDING, check.Status)
	assert.Equal(s.T(), "KES", check.Currency)
	assert.Equal(s.T(), treasurer.ID, check.RecordedBy)

	d := s.donationOf(check)
	assert.Equal(s.T(), types.METHOD_CHECK, d.Method)
	assert.Equal(s.T(), types.DONATION_PROCESSING, d.Status)
	assert.Equal(s.T(), "000123", *d.CheckNumber)
	assert.Equal(s.T(), "Mary Wanjiku", *d.PayerName)

	_, err = s.ledger.RecordCheck(s.ctx, treasurer, CheckInput{CheckNumber: "000123", AmountMinor: 100, Category: "tithe", PayerName: "Y"})
	var verr *types.ValidationError
	s.ErrorAs(err, &verr)
	assert.Equal(s.T(), "check_number", verr.Field)

	_, err = s.ledger.RecordCheck(s.ctx, treasurer, CheckInput{CheckNumber: " ", AmountMinor: 100, Category: "tithe", PayerName: "Y"})
	s.ErrorAs(err, &verr)

	var count int64
	s.db.Model(&models.Donation{}).Where("method = ?", types.METHOD_CHECK).Count(&count)
	assert.Equal(s.T(), int64(1), count)
}

func (s *LedgerSuite) TestCheckClears() {
	check := s.recordCheck("000200")

	_, err := s.ledger.UpdateCheckStatus(s.ctx, treasurer, check.ID.String(), types.CHECK_CLEARED, "")
	s.ErrorIs(err, types.ErrInvalidTransition)

	deposited, err := s.ledger.UpdateCheckStatus(s.ctx, treasurer, check.ID.String(), types.CHECK_DEPOSITED, "Sunday batch")
	s.Require().NoError(err)
	assert.Equal(s.T(), types.CHECK_DEPOSITED, deposited.Status)
	s.Require().NotNil(deposited.DepositedAt)
	assert.Equal(s.T(), types.DONATION_PROCESSING, s.donationOf(check).Status)

	cleared, err := s.ledger.UpdateCheckStatus(s.ctx, admin, check.ID.String(), types.CHECK_CLEARED, "")
	s.Require().NoError(err)
	assert.Equal(s.T(), types.CHECK_CLEARED, cleared.Status)
	s.Require().NotNil(cleared.Donation)
	assert.Equal(s.T(), types.DONATION_COMPLETED, cleared.Donation.Status)
	assert.True(s.T(), s.now.Equal(*cleared.Donation.PaidAt))

	_, err = s.ledger.UpdateCheckStatus(s.ctx, admin, check.ID.String(), types.CHECK_BOUNCED, "")
	s.ErrorIs(err, types.ErrInvalidTransition)

	var trail []models.TrailLog
	s.db.Where("subject_id = ?", check.ID.String()).Find(&trail)
	assert.Len(s.T(), trail, 2)
}

func (s *LedgerSuite) TestCheckBounces() {
	check := s.recordCheck("000300")
	_, err := s.ledger.UpdateCheckStatus(s.ctx, treasurer, check.ID.String(), types.CHECK_DEPOSITED, "")
	s.Require().NoError(err)
	_, err = s.ledger.UpdateCheckStatus(s.ctx, treasurer, check.ID.String(), types.CHECK_BOUNCED, "insufficient funds")
	s.Require().NoError(err)

	d := s.donationOf(check)
	assert.Equal(s.T(), types.DONATION_FAILED, d.Status)
	assert.Equal(s.T(), CHECK_BOUNCED_REASON, *d.FailureReason)
}

func (s *LedgerSuite) TestDeleteCheck() {
	pending := s.recordCheck("000400")
	deposited := s.recordCheck("000401")
	_, err := s.ledger.UpdateCheckStatus(s.ctx, treasurer, deposited.ID.String(), types.CHECK_DEPOSITED, "")
	s.Require().NoError(err)

	err = s.ledger.DeleteCheck(s.ctx, treasurer, deposited.ID.String())
	s.ErrorIs(err, types.ErrInvalidTransition)

	s.Require().NoError(s.ledger.DeleteCheck(s.ctx, treasurer, pending.ID.String()))
	_, err = s.ledger.GetCheck(s.ctx, pending.ID.String())
	var nf *types.NotFoundError
	s.ErrorAs(err, &nf)
	d := s.donationOf(pending)
	assert.Equal(s.T(), types.DONATION_FAILED, d.Status)
	assert.Equal(s.T(), CHECK_DELETED_REASON, *d.FailureReason)
	assert.Nil(s.T(), d.CheckNumber)

	var remaining int64
	s.db.Unscoped().Model(&models.Check{}).Where("id = ?", pending.ID).Count(&remaining)
	assert.Zero(s.T(), remaining)

	listed, err := s.ledger.ListChecks(s.ctx, string(types.CHECK_DEPOSITED), 0)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	assert.Equal(s.T(), deposited.ID, listed[0].ID)
}

func (s *LedgerSuite) TestDeletedCheckNumberCanBeRecordedAgain() {
	mistaken := s.recordCheck("000777")
	s.Require().NoError(s.ledger.DeleteCheck(s.ctx, treasurer, mistaken.ID.String()))

	again := s.recordCheck("000777")
	assert.NotEqual(s.T(), mistaken.ID, again.ID)
	assert.Equal(s.T(), "000777", *s.donationOf(again).CheckNumber)
	assert.Equal(s.T(), types.DONATION_FAILED, s.donationOf(mistaken).Status)
}
