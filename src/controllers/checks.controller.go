package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/common"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

func ChecksCreate(ctx *gin.Context) (*models.Check, int, error) {
	var body types.CreateCheckRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	amount, err := gateways.ParseMinorUnits(body.Amount)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	in := common.CheckInput{
		CheckNumber: body.CheckNumber,
		AmountMinor: amount,
		Currency:    body.Currency,
		Category:    body.Category,
		BankName:    body.BankName,
		PayerName:   body.PayerName,
		Memo:        body.Memo,
		Reference:   body.Reference,
	}
	if body.CheckDate != "" {
		date, err := time.Parse(time.DateOnly, body.CheckDate)
		if err != nil {
			return nil, http.StatusBadRequest, types.NewValidationError("check_date", "must be YYYY-MM-DD")
		}
		in.CheckDate = &date
	}
	check, err := GetLedger().RecordCheck(ctx.Request.Context(), actorFrom(ctx), in)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return check, http.StatusOK, nil
}

func ChecksList(ctx *gin.Context) ([]models.Check, int, error) {
	var filters types.DonationQueryFilters
	if err := ctx.ShouldBindQuery(&filters); err != nil {
		return nil, http.StatusBadRequest, err
	}
	checks, err := GetLedger().ListChecks(ctx.Request.Context(), filters.Status, filters.Limit)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return checks, http.StatusOK, nil
}

func ChecksGet(ctx *gin.Context) (*models.Check, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	check, err := GetLedger().GetCheck(ctx.Request.Context(), params.ID)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return check, http.StatusOK, nil
}

func ChecksUpdateStatus(ctx *gin.Context) (*models.Check, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	var body types.UpdateCheckStatusRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	check, err := GetLedger().UpdateCheckStatus(ctx.Request.Context(), actorFrom(ctx), params.ID, body.Status, body.Note)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return check, http.StatusOK, nil
}

func ChecksDelete(ctx *gin.Context) (int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return http.StatusBadRequest, err
	}
	if err := GetLedger().DeleteCheck(ctx.Request.Context(), actorFrom(ctx), params.ID); err != nil {
		return StatusFor(err), err
	}
	return http.StatusNoContent, nil
}
