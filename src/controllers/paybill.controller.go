package controllers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/common"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/paybill"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

// PaybillValidate runs the resolver for donor screens. An invalid reference is still a 200.
func PaybillValidate(ctx *gin.Context) (*paybill.Result, int, error) {
	var query types.PaybillValidateQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		return nil, http.StatusBadRequest, err
	}
	res := GetLedger().ValidateAccount(ctx.Request.Context(), query.Account)
	return &res, http.StatusOK, nil
}

func PaybillAccountNumber(ctx *gin.Context) (string, int, error) {
	var body types.GenerateAccountNumberRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return "", http.StatusBadRequest, err
	}
	account, err := GetLedger().GenerateAccountNumber(ctx.Request.Context(), body.GroupID, body.FundCategoryID)
	if err != nil {
		return "", StatusFor(err), err
	}
	return account, http.StatusOK, nil
}

func GroupsList(ctx *gin.Context) ([]models.Group, int, error) {
	groups, err := GetLedger().ListGroups(ctx.Request.Context())
	if err != nil {
		return nil, StatusFor(err), err
	}
	return groups, http.StatusOK, nil
}

func GroupsCreate(ctx *gin.Context) (*models.Group, int, error) {
	var body types.CreateGroupRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	group, err := GetLedger().CreateGroup(ctx.Request.Context(), actorFrom(ctx), common.GroupInput{
		Name:          body.Name,
		Description:   body.Description,
		GroupCode:     body.GroupCode,
		GivingEnabled: body.GivingEnabled,
	})
	if err != nil {
		return nil, StatusFor(err), err
	}
	return group, http.StatusOK, nil
}

func GroupsSetCode(ctx *gin.Context) (*models.Group, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	var body types.SetGroupCodeRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	group, err := GetLedger().SetGroupCode(ctx.Request.Context(), actorFrom(ctx), params.ID, body.GroupCode, body.GivingEnabled)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return group, http.StatusOK, nil
}

func GroupsSuggestCode(ctx *gin.Context) (string, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return "", http.StatusBadRequest, err
	}
	code, err := GetLedger().SuggestGroupCode(ctx.Request.Context(), params.ID)
	if err != nil {
		return "", StatusFor(err), err
	}
	return code, http.StatusOK, nil
}

func FundCategoriesList(ctx *gin.Context) ([]models.FundCategory, int, error) {
	activeOnly := ctx.Query("active") == "true"
	funds, err := GetLedger().ListFundCategories(ctx.Request.Context(), activeOnly)
	if err != nil {
		return nil, StatusFor(err), err
	}
	return funds, http.StatusOK, nil
}

func FundCategoriesCreate(ctx *gin.Context) (*models.FundCategory, int, error) {
	var body types.CreateFundCategoryRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	fund, err := GetLedger().CreateFundCategory(ctx.Request.Context(), actorFrom(ctx), common.FundCategoryInput{
		Name:   body.Name,
		Code:   body.FundCode,
		Active: body.Active,
	})
	if err != nil {
		return nil, StatusFor(err), err
	}
	return fund, http.StatusOK, nil
}

func FundCategoriesUpdate(ctx *gin.Context) (*models.FundCategory, int, error) {
	var params types.SimpleRequestParams
	if err := ctx.ShouldBindUri(&params); err != nil {
		return nil, http.StatusBadRequest, err
	}
	var body types.UpdateFundCategoryRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	fund, err := GetLedger().UpdateFundCategory(ctx.Request.Context(), actorFrom(ctx), params.ID, common.FundCategoryInput{
		Name:   body.Name,
		Code:   body.FundCode,
		Active: body.Active,
	})
	if err != nil {
		return nil, StatusFor(err), err
	}
	return fund, http.StatusOK, nil
}

// MpesaRegisterURLs points the paybill's confirmation and validation callbacks at this API.
func MpesaRegisterURLs(ctx *gin.Context) (map[string]any, int, error) {
	gw, err := mpesaGateway()
	if err != nil {
		return nil, StatusFor(err), err
	}
	out, err := gw.RegisterURLs(ctx.Request.Context())
	if err != nil {
		log.Printf("[Mpesa] Error registering C2B URLs: %s\n", err.Error())
		return nil, StatusFor(err), err
	}
	return out, http.StatusOK, nil
}
