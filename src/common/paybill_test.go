package common

import (
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/paybill"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/stretchr/testify/assert"
)

func (s *LedgerSuite) TestGenerateAccountNumber() {
	account, err := s.ledger.GenerateAccountNumber(s.ctx, s.group.ID.String(), s.fund.ID.String())
	s.Require().NoError(err)
	assert.Equal(s.T(), "JERICHO-TTH", account)

	res := s.ledger.ValidateAccount(s.ctx, account)
	assert.True(s.T(), res.IsValid)
	assert.Equal(s.T(), s.group.ID, *res.GroupID)

	uncoded := models.Group{Name: "Choir"}
	s.Require().NoError(s.db.Create(&uncoded).Error)
	_, err = s.ledger.GenerateAccountNumber(s.ctx, uncoded.ID.String(), s.fund.ID.String())
	var verr *types.ValidationError
	s.ErrorAs(err, &verr)

	_, err = s.ledger.GenerateAccountNumber(s.ctx, "nope", s.fund.ID.String())
	s.ErrorAs(err, &verr)
}

func (s *LedgerSuite) TestGroupCodes() {
	_, err := s.ledger.CreateGroup(s.ctx, treasurer, GroupInput{Name: "Youth"})
	var authErr *types.AuthorizationError
	s.ErrorAs(err, &authErr)

	youth, err := s.ledger.CreateGroup(s.ctx, pastor, GroupInput{Name: " Jericho Youth ", GivingEnabled: true})
	s.Require().NoError(err)
	assert.Equal(s.T(), "Jericho Youth", youth.Name)
	assert.Nil(s.T(), youth.GroupCode)

	suggested, err := s.ledger.SuggestGroupCode(s.ctx, youth.ID.String())
	s.Require().NoError(err)
	assert.Equal(s.T(), "JERICHOYOU", suggested)

	_, err = s.ledger.SetGroupCode(s.ctx, admin, youth.ID.String(), "jericho", nil)
	var verr *types.ValidationError
	s.ErrorAs(err, &verr)
	assert.Equal(s.T(), "group_code", verr.Field)

	_, err = s.ledger.SetGroupCode(s.ctx, admin, youth.ID.String(), "JER-YTH", nil)
	s.ErrorAs(err, &verr)

	disabled := false
	updated, err := s.ledger.SetGroupCode(s.ctx, admin, youth.ID.String(), suggested, &disabled)
	s.Require().NoError(err)
	assert.Equal(s.T(), "JERICHOYOU", *updated.GroupCode)
	assert.False(s.T(), updated.GivingEnabled)

	res := s.ledger.ValidateAccount(s.ctx, "JERICHOYOU-TTH")
	assert.False(s.T(), res.IsValid)
	assert.Equal(s.T(), paybill.REASON_GROUP_GIVING_DISABLED, res.Reason)

	twin, err := s.ledger.CreateGroup(s.ctx, admin, GroupInput{Name: "Jericho Youth"})
	s.Require().NoError(err)
	suggested, err = s.ledger.SuggestGroupCode(s.ctx, twin.ID.String())
	s.Require().NoError(err)
	assert.Equal(s.T(), "JERICHOYO1", suggested)

	groups, err := s.ledger.ListGroups(s.ctx)
	s.Require().NoError(err)
	assert.Len(s.T(), groups, 3)
}

func (s *LedgerSuite) TestFundCategories() {
	_, err := s.ledger.CreateFundCategory(s.ctx, admin, FundCategoryInput{Name: "Tithe again", Code: "tth"})
	var verr *types.ValidationError
	s.ErrorAs(err, &verr)
	assert.Equal(s.T(), "fund_code", verr.Field)

	inactive := false
	building, err := s.ledger.CreateFundCategory(s.ctx, pastor, FundCategoryInput{Name: "Building", Code: "bld", Active: &inactive})
	s.Require().NoError(err)
	assert.Equal(s.T(), "BLD", building.Code)
	assert.False(s.T(), building.Active)

	res := s.ledger.ValidateAccount(s.ctx, "JERICHO-BLD")
	assert.Equal(s.T(), paybill.REASON_FUND_INACTIVE, res.Reason)

	active := true
	building, err = s.ledger.UpdateFundCategory(s.ctx, admin, building.ID.String(), FundCategoryInput{Name: "Building Fund", Active: &active})
	s.Require().NoError(err)
	assert.Equal(s.T(), "Building Fund", building.Name)
	assert.True(s.T(), s.ledger.ValidateAccount(s.ctx, "jericho-bld").IsValid)

	_, err = s.ledger.UpdateFundCategory(s.ctx, treasurer, building.ID.String(), FundCategoryInput{Name: "X"})
	var authErr *types.AuthorizationError
	s.ErrorAs(err, &authErr)

	funds, err := s.ledger.ListFundCategories(s.ctx, true)
	s.Require().NoError(err)
	assert.Len(s.T(), funds, 2)
	assert.Equal(s.T(), "BLD", funds[0].Code)
}
