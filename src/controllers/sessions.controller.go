package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/common"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

func parseStartsAt(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(config.TIME_PARSE_FORMAT, v)
	if err != nil {
		return time.Time{}, types.NewValidationError("starts_at", "must be an RFC 3339 timestamp")
	}
	return t, nil
}

func SessionsCreate(ctx *gin.Context) (*models.AttendanceSession, int, error) {
	var body types.CreateSessionRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	startsAt, err := parseStartsAt(body.StartsAt)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	groupID, err := parseOptionalID("group_id", body.GroupID)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	in := common.SessionInput{
		Name:      body.Name,
		GroupID:   groupID,
		StartsAt:  startsAt,
		Category:  body.Category,
		NoQRCodes: body.NoQRCodes,
	}
	if body.Amount != "" {
		amount, err := gateways.ParseMinorUnits(body.Amount)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		in.DefaultAmountMinor = &amount
	}
	session, err := GetLedger().CreateSession(ctx.Request.Context(), actorFrom(ctx), in)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return session, http.StatusOK, nil
}

func SessionsGet(ctx *gin.Context) (*models.AttendanceSession, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	session, err := GetLedger().GetSession(ctx.Request.Context(), params.ID)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return session, http.StatusOK, nil
}

func SessionsList(ctx *gin.Context) ([]models.AttendanceSession, int, error) {
	var filters types.DonationQueryFilters
	if err := ctx.ShouldBindQuery(&filters); err != nil {
		return nil, http.StatusBadRequest, err
	}
	sessions, err := GetLedger().ListSessions(ctx.Request.Context(), filters.Limit)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return sessions, http.StatusOK, nil
}

// QRCodeContext is what the donor page loads after a scan.
func QRCodeContext(ctx *gin.Context) (*common.QRContext, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	qr, err := GetLedger().QRScanContext(ctx.Request.Context(), params.ID)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return qr, http.StatusOK, nil
}
