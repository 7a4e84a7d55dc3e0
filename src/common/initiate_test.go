package common

import (
	"context"
	"errors"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/stretchr/testify/assert"
)

// stubGateway checks requests like the M-Pesa adapter does and answers Initiate with the
// configured result or error.
type stubGateway struct {
	mpesa  *gateways.MpesaGateway
	result *gateways.InitiationResult
	err    error
	calls  []gateways.InitiationRequest
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		mpesa: gateways.NewMpesaGateway(gateways.MpesaConfig{ConsumerKey: "stub", Shortcode: "600000"}, nil),
		result: &gateways.InitiationResult{
			Kind:              gateways.RESULT_PUSH_ACKNOWLEDGED,
			MerchantRequestID: "29115-34620561-1",
			CheckoutRequestID: "ws_CO_500",
			Correlation:       types.CORRELATION_MPESA_CHECKOUT,
		},
	}
}

func (g *stubGateway) Name() types.PaymentMethod {
	return types.METHOD_MPESA
}

func (g *stubGateway) Validate(req gateways.InitiationRequest) error {
	return g.mpesa.Validate(req)
}

func (g *stubGateway) Initiate(ctx context.Context, req gateways.InitiationRequest) (*gateways.InitiationResult, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func (s *LedgerSuite) countDonations() int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.Donation{}).Count(&n).Error)
	return n
}

func (s *LedgerSuite) qrCode(id any) models.QRCode {
	var qr models.QRCode
	s.Require().NoError(s.db.Where("id = ?", id).First(&qr).Error)
	return qr
}

func (s *LedgerSuite) TestInitiateAttachesHandles() {
	gw := newStubGateway()
	out, err := s.ledger.Initiate(s.ctx, gw, DonationInput{AmountMinor: 10000, Category: "tithe", PayerPhone: "0712345678", Reference: "JERICHO-TTH"})
	s.Require().NoError(err)

	assert.Equal(s.T(), types.DONATION_PROCESSING, out.Donation.Status)
	assert.Equal(s.T(), "ws_CO_500", *out.Donation.MpesaCheckoutRequestID)
	assert.Equal(s.T(), "254712345678", *out.Donation.PayerPhone)
	s.Require().Len(gw.calls, 1)
	assert.Equal(s.T(), out.Donation.ID.String(), gw.calls[0].DonationID)
	assert.Equal(s.T(), "254712345678", gw.calls[0].PayerHandle)
	assert.Equal(s.T(), "JERICHO-TTH", gw.calls[0].Reference)
}

func (s *LedgerSuite) TestInitiateProviderRejectionFailsDonation() {
	gw := newStubGateway()
	gw.err = &types.GatewayError{Gateway: "mpesa", Code: "400.002.02", Message: "Bad Request - Invalid PhoneNumber"}

	out, err := s.ledger.Initiate(s.ctx, gw, DonationInput{AmountMinor: 10000, Category: "tithe", PayerPhone: "0712345678"})
	var gerr *types.GatewayError
	s.Require().ErrorAs(err, &gerr)
	assert.Equal(s.T(), "400.002.02", gerr.Code)

	s.Require().NotNil(out)
	assert.Equal(s.T(), types.DONATION_FAILED, out.Donation.Status)
	assert.Equal(s.T(), "Bad Request - Invalid PhoneNumber", *out.Donation.FailureReason)

	stored, err := s.ledger.Get(s.ctx, out.Donation.ID.String())
	s.Require().NoError(err)
	assert.Equal(s.T(), types.DONATION_FAILED, stored.Status)
}

func (s *LedgerSuite) TestInitiateTransportFailureIsGatewayError() {
	gw := newStubGateway()
	gw.err = errors.New("dial tcp 196.201.214.200:443: i/o timeout")

	out, err := s.ledger.Initiate(s.ctx, gw, DonationInput{AmountMinor: 10000, Category: "tithe", PayerPhone: "0712345678"})
	var gerr *types.GatewayError
	s.Require().ErrorAs(err, &gerr)
	assert.Equal(s.T(), "mpesa", gerr.Gateway)
	assert.Equal(s.T(), types.DONATION_FAILED, out.Donation.Status)
	assert.Equal(s.T(), "dial tcp 196.201.214.200:443: i/o timeout", *out.Donation.FailureReason)
}

func (s *LedgerSuite) TestInitiateRejectsBeforeWriting() {
	gw := newStubGateway()

	_, err := s.ledger.Initiate(s.ctx, gw, DonationInput{AmountMinor: 10050, Category: "tithe", PayerPhone: "0712345678"})
	var verr *types.ValidationError
	s.Require().ErrorAs(err, &verr)
	assert.Equal(s.T(), "amount", verr.Field)

	_, err = s.ledger.Initiate(s.ctx, gw, DonationInput{AmountMinor: 10000, Category: "tithe", PayerPhone: "12"})
	s.ErrorAs(err, &verr)

	assert.Empty(s.T(), gw.calls)
	assert.Zero(s.T(), s.countDonations())
}

func (s *LedgerSuite) TestInitiateFractionalQRAmountKeepsCodeUnused() {
	amount := int64(1050)
	session := s.session(&amount)
	g, _ := s.generator()
	s.Require().NoError(g.GenerateForSession(s.ctx, session.ID))
	var qr models.QRCode
	s.Require().NoError(s.db.Where("session_id = ? AND method = ?", session.ID, types.QR_MPESA).First(&qr).Error)

	gw := newStubGateway()
	_, err := s.ledger.Initiate(s.ctx, gw, DonationInput{PayerPhone: "0712345678", QRCodeID: &qr.ID})
	var verr *types.ValidationError
	s.Require().ErrorAs(err, &verr)
	assert.Equal(s.T(), "amount", verr.Field)

	assert.Empty(s.T(), gw.calls)
	assert.Zero(s.T(), s.countDonations())
	unused := s.qrCode(qr.ID)
	assert.False(s.T(), unused.IsUsed)
	assert.Nil(s.T(), unused.DonationID)

	explicit, err := s.ledger.Initiate(s.ctx, gw, DonationInput{AmountMinor: 1000, PayerPhone: "0712345678", QRCodeID: &qr.ID})
	s.Require().NoError(err)
	assert.Equal(s.T(), int64(1000), explicit.Donation.AmountMinor)
	assert.True(s.T(), s.qrCode(qr.ID).IsUsed)
}

func (s *LedgerSuite) TestInitiateProviderRejectionWithQRCode() {
	_, qr := s.sessionCode(types.QR_MPESA)
	gw := newStubGateway()
	gw.err = &types.GatewayError{Gateway: "mpesa", Code: "1", Message: "The balance is insufficient for the transaction"}

	out, err := s.ledger.Initiate(s.ctx, gw, DonationInput{PayerPhone: "0712345678", QRCodeID: &qr.ID})
	var gerr *types.GatewayError
	s.Require().ErrorAs(err, &gerr)

	assert.Equal(s.T(), types.DONATION_FAILED, out.Donation.Status)
	assert.Equal(s.T(), int64(20000), out.Donation.AmountMinor)
	assert.Equal(s.T(), "The balance is insufficient for the transaction", *out.Donation.FailureReason)
	used := s.qrCode(qr.ID)
	assert.True(s.T(), used.IsUsed)
	assert.Equal(s.T(), out.Donation.ID, *used.DonationID)
}
