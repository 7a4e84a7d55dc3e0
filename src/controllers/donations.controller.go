package controllers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/common"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

func donationInput(body *types.CreateDonationRequestBody) (common.DonationInput, error) {
	in := common.DonationInput{
		Currency:    body.Currency,
		Category:    strings.TrimSpace(body.Category),
		Method:      body.Method,
		Reference:   body.Reference,
		Description: body.Description,
		PayerPhone:  body.Phone,
		PayerEmail:  body.Email,
		PayerName:   body.DonorName,
	}
	if body.Amount != "" {
		amount, err := gateways.ParseMinorUnits(body.Amount)
		if err != nil {
			return in, err
		}
		in.AmountMinor = amount
	}
	var err error
	if in.QRCodeID, err = parseOptionalID("qr_code_id", body.QRCodeID); err != nil {
		return in, err
	}
	if in.GroupID, err = parseOptionalID("group_id", body.GroupID); err != nil {
		return in, err
	}
	if in.FundCategoryID, err = parseOptionalID("fund_category_id", body.FundID); err != nil {
		return in, err
	}
	if in.SessionID, err = parseOptionalID("session_id", body.SessionID); err != nil {
		return in, err
	}
	return in, nil
}

// DonationsCreate starts a donor payment. A gateway rejection still returns the failed donation.
func DonationsCreate(ctx *gin.Context) (*common.Initiation, int, error) {
	var body types.CreateDonationRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	in, err := donationInput(&body)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	gw, err := gateways.ForMethod(GatewayDeps(), body.Method)
	if err != nil {
		log.Printf("[Donations] Error loading %s gateway: %s\n", body.Method, err.Error())
		return nil, StatusFor(err), err
	}
	initiation, err := GetLedger().Initiate(ctx.Request.Context(), gw, in)
	if err != nil {
		return initiation, StatusFor(err), err
	}
	if body.Method == types.METHOD_MPESA {
		if err := GetStkPoller().Schedule(ctx.Request.Context(), initiation.Donation); err != nil {
			log.Printf("[Donations] Error scheduling status query for [%s]: %s\n", initiation.Donation.ID.String(), err.Error())
		}
	}
	return initiation, http.StatusOK, nil
}

func DonationsGet(ctx *gin.Context) (*models.Donation, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	d, err := GetLedger().Get(ctx.Request.Context(), params.ID)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return d, http.StatusOK, nil
}

// DonationsStatus returns the donation, first asking Daraja about a push still in processing.
// A failed query is logged and the stored status returned.
func DonationsStatus(ctx *gin.Context) (*models.Donation, int, error) {
	d, status, err := DonationsGet(ctx)
	if err != nil {
		return nil, status, err
	}
	if d.Method != types.METHOD_MPESA || d.Status != types.DONATION_PROCESSING {
		return d, http.StatusOK, nil
	}
	q, err := MpesaQuerier(ctx.Request.Context())
	if err != nil {
		log.Printf("[Donations] M-Pesa unavailable for [%s]: %s\n", d.ID.String(), err.Error())
		return d, http.StatusOK, nil
	}
	refreshed, err := GetLedger().RefreshMpesaStatus(ctx.Request.Context(), q, d)
	if err != nil {
		log.Printf("[Donations] Error querying status of [%s]: %s\n", d.ID.String(), err.Error())
		return d, http.StatusOK, nil
	}
	return refreshed, http.StatusOK, nil
}

func DonationsUnallocated(ctx *gin.Context) ([]models.Donation, int, error) {
	var filters types.DonationQueryFilters
	if err := ctx.ShouldBindQuery(&filters); err != nil {
		return nil, http.StatusBadRequest, err
	}
	donations, err := GetLedger().ListUnallocated(ctx.Request.Context(), filters.Limit)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return donations, http.StatusOK, nil
}

func DonationsAllocate(ctx *gin.Context) (*models.Donation, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	var body types.AllocateDonationRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	d, err := GetLedger().Allocate(ctx.Request.Context(), actorFrom(ctx), params.ID, body.GroupID, body.FundCategoryID, body.Note)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return d, http.StatusOK, nil
}

func DonationsReject(ctx *gin.Context) (*models.Donation, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	var body types.RejectDonationRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	d, err := GetLedger().Reject(ctx.Request.Context(), actorFrom(ctx), params.ID, body.Reason)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return d, http.StatusOK, nil
}

// DonationsCapturePaypal captures the order once the donor is back from the approval page.
func DonationsCapturePaypal(ctx *gin.Context) (*models.Donation, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	gw, err := paypalGateway()
	if err != nil {
		return nil, StatusFor(err), err
	}
	d, err := GetLedger().CapturePaypal(ctx.Request.Context(), gw, params.ID)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return d, http.StatusOK, nil
}
