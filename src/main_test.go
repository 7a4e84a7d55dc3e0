package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/common"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/controllers"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/db/dbtest"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/middlewares"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

type TestSuite struct {
	suite.Suite
	DB        *gorm.DB
	Router    *gin.Engine
	Admin     string
	Treasurer string
	Group     models.Group
	Fund      models.FundCategory
	Daraja    *httptest.Server
}

func (s *TestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	os.Setenv("JWT_SECRET", "suite-secret")
	os.Unsetenv("MAINTENANCE_MODE")

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "daraja-token", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"MerchantRequestID":   "29115-34620561-1",
			"CheckoutRequestID":   "ws_CO_191220191020363925",
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CustomerMessage":     "Success. Request accepted for processing",
		})
	})
	s.Daraja = httptest.NewServer(mux)
}

func (s *TestSuite) TearDownSuite() {
	s.Daraja.Close()
}

func (s *TestSuite) SetupTest() {
	s.DB = dbtest.NewSQLite(s.T())
	controllers.NewLedger(common.NewLedger(s.DB, nil))

	admin := models.User{Name: "Admin", Email: "admin@example.org", Role: types.ROLE_ADMIN}
	treasurer := models.User{Name: "Treasurer", Email: "treasurer@example.org", Role: types.ROLE_TREASURER}
	s.Require().NoError(s.DB.Create(&admin).Error)
	s.Require().NoError(s.DB.Create(&treasurer).Error)
	var err error
	s.Admin, err = middlewares.IssueToken(&admin, time.Hour)
	s.Require().NoError(err)
	s.Treasurer, err = middlewares.IssueToken(&treasurer, time.Hour)
	s.Require().NoError(err)

	code := "JERICHO"
	s.Group = models.Group{Name: "Jericho", GroupCode: &code, GivingEnabled: true}
	s.Require().NoError(s.DB.Create(&s.Group).Error)
	s.Fund = models.FundCategory{Name: "Tithe", Code: "TTH", Active: true}
	s.Require().NoError(s.DB.Create(&s.Fund).Error)

	s.Require().NoError(s.DB.Create(&models.Setting{
		SettingKey: "mpesa",
		Group:      models.SETTINGS_GROUP_PAYMENTS,
		SettingValue: types.JSONBAny{Inner: map[string]any{
			"consumerKey":    "key",
			"consumerSecret": "secret",
			"shortcode":      "174379",
			"passkey":        "passkey",
			"callbackUrl":    "https://example.org/api/v1/webhook/mpesa/stk",
			"baseUrl":        s.Daraja.URL,
		}},
	}).Error)

	s.Router = buildRouter()
}

func (s *TestSuite) do(method, url, token string, body any) (*httptest.ResponseRecorder, string) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w, w.Body.String()
}

func (s *TestSuite) countDonations(where string, args ...any) int64 {
	var n int64
	s.Require().NoError(s.DB.Model(&models.Donation{}).Where(where, args...).Count(&n).Error)
	return n
}

const c2bConfirmation = `{
	"TransactionType": "Pay Bill",
	"TransID": "RKTQDM7W6S",
	"TransTime": "20191122063845",
	"TransAmount": "500.00",
	"BusinessShortCode": "600638",
	"BillRefNumber": "%s",
	"MSISDN": "254708374149",
	"FirstName": "John",
	"MiddleName": "",
	"LastName": "Doe"
}`

const stkSuccess = `{"Body":{"stkCallback":{
	"MerchantRequestID":"29115-34620561-1",
	"CheckoutRequestID":"ws_CO_191220191020363925",
	"ResultCode":0,
	"ResultDesc":"The service request is processed successfully.",
	"CallbackMetadata":{"Item":[
		{"Name":"Amount","Value":100.00},
		{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
		{"Name":"TransactionDate","Value":20191219102115},
		{"Name":"PhoneNumber","Value":254712345678}
	]}}}}`

const stkCancelled = `{"Body":{"stkCallback":{
	"MerchantRequestID":"29115-34620561-1",
	"CheckoutRequestID":"ws_CO_191220191020363925",
	"ResultCode":1032,
	"ResultDesc":"Request cancelled by user"}}}`

func (s *TestSuite) TestPingRoute() {
	w, _ := s.do(http.MethodGet, "/", "", nil)
	assert.Equal(s.T(), 200, w.Code)
}

func (s *TestSuite) TestMaintenanceMode() {
	os.Setenv("MAINTENANCE_MODE", "true")
	defer os.Unsetenv("MAINTENANCE_MODE")

	router := setupRouter()
	router = maintenanceModeMiddleware(router)
	apiv1Group(router)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(s.T(), 503, w.Code)
}

func (s *TestSuite) TestPaybillValidate() {
	s.Run("resolves a lowercase reference", func() {
		w, body := s.do(http.MethodGet, "/api/v1/paybill/validate?account=jericho-tth", "", nil)
		assert.Equal(s.T(), 200, w.Code)
		assert.True(s.T(), gjson.Get(body, "data.is_valid").Bool())
		assert.Equal(s.T(), s.Group.ID.String(), gjson.Get(body, "data.group_id").String())
		assert.Equal(s.T(), s.Fund.ID.String(), gjson.Get(body, "data.fund_category_id").String())
	})
	s.Run("reports a missing delimiter", func() {
		w, body := s.do(http.MethodGet, "/api/v1/paybill/validate?account=JERICHO", "", nil)
		assert.Equal(s.T(), 200, w.Code)
		assert.False(s.T(), gjson.Get(body, "data.is_valid").Bool())
		assert.Contains(s.T(), gjson.Get(body, "data.error").String(), "delimiter")
	})
	s.Run("requires the account parameter", func() {
		w, _ := s.do(http.MethodGet, "/api/v1/paybill/validate", "", nil)
		assert.Equal(s.T(), 400, w.Code)
	})
}

func (s *TestSuite) TestC2BConfirmationIsIdempotent() {
	payload := fmt.Sprintf(c2bConfirmation, "jericho-tth")

	w, body := s.do(http.MethodPost, "/api/v1/webhook/mpesa/c2b/confirmation", "", payload)
	s.Require().Equal(200, w.Code)
	assert.Equal(s.T(), int64(0), gjson.Get(body, "ResultCode").Int())

	var first models.Donation
	s.Require().NoError(s.DB.Where("transaction_id = ?", "RKTQDM7W6S").First(&first).Error)
	assert.Equal(s.T(), types.DONATION_COMPLETED, first.Status)
	assert.Equal(s.T(), int64(50000), first.AmountMinor)
	assert.Equal(s.T(), s.Group.ID, *first.GroupID)
	assert.Equal(s.T(), s.Fund.ID, *first.FundCategoryID)
	s.Require().NotNil(first.PaidAt)
	assert.Equal(s.T(), time.Date(2019, 11, 22, 3, 38, 45, 0, time.UTC), first.PaidAt.UTC())

	w, body = s.do(http.MethodPost, "/api/v1/webhook/mpesa/c2b/confirmation", "", payload)
	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "Accepted", gjson.Get(body, "ResultDesc").String())
	assert.Equal(s.T(), int64(1), s.countDonations("transaction_id = ?", "RKTQDM7W6S"))

	var second models.Donation
	s.Require().NoError(s.DB.Where("transaction_id = ?", "RKTQDM7W6S").First(&second).Error)
	assert.Equal(s.T(), first.UpdatedAt, second.UpdatedAt)
	assert.Equal(s.T(), first.Metadata, second.Metadata)
}

func (s *TestSuite) TestC2BUnresolvableReferenceIsUnallocated() {
	w, _ := s.do(http.MethodPost, "/api/v1/webhook/mpesa/c2b/confirmation", "", fmt.Sprintf(c2bConfirmation, "NOWHERE-TTH"))
	s.Require().Equal(200, w.Code)

	var d models.Donation
	s.Require().NoError(s.DB.Where("transaction_id = ?", "RKTQDM7W6S").First(&d).Error)
	assert.Equal(s.T(), types.DONATION_UNALLOCATED, d.Status)
	s.Require().NotNil(d.AllocationError)
	assert.Contains(s.T(), *d.AllocationError, "NOWHERE")

	s.Run("shows up for operators", func() {
		w, body := s.do(http.MethodGet, "/api/v1/donations/unallocated", s.Treasurer, nil)
		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), d.ID.String(), gjson.Get(body, "data.0.id").String())
	})
	s.Run("treasurer cannot allocate", func() {
		w, _ := s.do(http.MethodPost, fmt.Sprintf("/api/v1/donations/%s/allocate", d.ID), s.Treasurer, map[string]string{
			"group_id":         s.Group.ID.String(),
			"fund_category_id": s.Fund.ID.String(),
		})
		assert.Equal(s.T(), 403, w.Code)
	})
	s.Run("admin allocates", func() {
		w, body := s.do(http.MethodPost, fmt.Sprintf("/api/v1/donations/%s/allocate", d.ID), s.Admin, map[string]string{
			"group_id":         s.Group.ID.String(),
			"fund_category_id": s.Fund.ID.String(),
		})
		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), string(types.DONATION_COMPLETED), gjson.Get(body, "data.status").String())
	})
}

func (s *TestSuite) TestC2BValidationAlwaysAccepts() {
	w, body := s.do(http.MethodPost, "/api/v1/webhook/mpesa/c2b/validation", "", "not json")
	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), int64(0), gjson.Get(body, "ResultCode").Int())

	w, body = s.do(http.MethodPost, "/api/v1/webhook/mpesa/c2b/validation", "", fmt.Sprintf(c2bConfirmation, "NOWHERE"))
	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), int64(0), gjson.Get(body, "ResultCode").Int())
	assert.Equal(s.T(), int64(0), s.countDonations("1 = 1"))
}

func (s *TestSuite) TestMalformedWebhooksAreRejected() {
	w, body := s.do(http.MethodPost, "/api/v1/webhook/mpesa/stk", "", `{"Body":{}}`)
	assert.Equal(s.T(), 400, w.Code)
	assert.Equal(s.T(), int64(1), gjson.Get(body, "ResultCode").Int())

	w, _ = s.do(http.MethodPost, "/api/v1/webhook/mpesa/c2b/confirmation", "", `{"TransID":""}`)
	assert.Equal(s.T(), 400, w.Code)

	var events int64
	s.DB.Model(&models.GatewayEvent{}).Count(&events)
	assert.Equal(s.T(), int64(2), events)
}

func (s *TestSuite) startStkDonation() string {
	w, body := s.do(http.MethodPost, "/api/v1/donations", "", map[string]string{
		"method":    "mpesa",
		"amount":    "100",
		"category":  "tithe",
		"phone":     "0712345678",
		"reference": "JERICHO-TTH",
	})
	s.Require().Equal(200, w.Code, body)
	assert.Equal(s.T(), string(types.DONATION_PROCESSING), gjson.Get(body, "data.donation.status").String())
	assert.Equal(s.T(), "254712345678", gjson.Get(body, "data.donation.payer_phone").String())
	assert.Equal(s.T(), "ws_CO_191220191020363925", gjson.Get(body, "data.donation.mpesa_checkout_request_id").String())
	return gjson.Get(body, "data.donation.id").String()
}

func (s *TestSuite) TestStkPushSettlesOnce() {
	id := s.startStkDonation()

	w, body := s.do(http.MethodPost, "/api/v1/webhook/mpesa/stk", "", stkSuccess)
	s.Require().Equal(200, w.Code, body)

	w, body = s.do(http.MethodGet, "/api/v1/donations/"+id, s.Admin, nil)
	s.Require().Equal(200, w.Code)
	assert.Equal(s.T(), string(types.DONATION_COMPLETED), gjson.Get(body, "data.status").String())
	assert.Equal(s.T(), "NLJ7RT61SV", gjson.Get(body, "data.transaction_id").String())
	assert.Equal(s.T(), s.Group.ID.String(), gjson.Get(body, "data.group_id").String())
	updatedAt := gjson.Get(body, "data.updated_at").String()

	s.Run("replay is acknowledged without changes", func() {
		w, body := s.do(http.MethodPost, "/api/v1/webhook/mpesa/stk", "", stkSuccess)
		assert.Equal(s.T(), 200, w.Code)
		assert.Equal(s.T(), int64(0), gjson.Get(body, "ResultCode").Int())

		_, body = s.do(http.MethodGet, "/api/v1/donations/"+id, s.Admin, nil)
		assert.Equal(s.T(), updatedAt, gjson.Get(body, "data.updated_at").String())
		assert.Equal(s.T(), int64(1), s.countDonations("mpesa_checkout_request_id = ?", "ws_CO_191220191020363925"))
	})
	s.Run("late failure does not reopen it", func() {
		w, _ := s.do(http.MethodPost, "/api/v1/webhook/mpesa/stk", "", stkCancelled)
		assert.Equal(s.T(), 200, w.Code)
		_, body := s.do(http.MethodGet, "/api/v1/donations/"+id+"/status", s.Admin, nil)
		assert.Equal(s.T(), string(types.DONATION_COMPLETED), gjson.Get(body, "data.status").String())
	})
}

func (s *TestSuite) TestStkPushCancelled() {
	id := s.startStkDonation()

	w, _ := s.do(http.MethodPost, "/api/v1/webhook/mpesa/stk", "", stkCancelled)
	s.Require().Equal(200, w.Code)

	_, body := s.do(http.MethodGet, "/api/v1/donations/"+id, s.Admin, nil)
	assert.Equal(s.T(), string(types.DONATION_FAILED), gjson.Get(body, "data.status").String())
	assert.Equal(s.T(), "Request cancelled by user", gjson.Get(body, "data.failure_reason").String())
}

func (s *TestSuite) TestDonationValidation() {
	s.Run("unknown method", func() {
		w, _ := s.do(http.MethodPost, "/api/v1/donations", "", map[string]string{"method": "cash", "amount": "10", "category": "tithe"})
		assert.Equal(s.T(), 400, w.Code)
	})
	s.Run("bad phone leaves no donation", func() {
		w, body := s.do(http.MethodPost, "/api/v1/donations", "", map[string]string{
			"method": "mpesa", "amount": "10", "category": "tithe", "phone": "12",
		})
		assert.Equal(s.T(), 400, w.Code)
		assert.NotEmpty(s.T(), gjson.Get(body, "error").String())
		assert.Equal(s.T(), int64(0), s.countDonations("1 = 1"))
	})
	s.Run("unconfigured gateway", func() {
		w, _ := s.do(http.MethodPost, "/api/v1/donations", "", map[string]string{
			"method": "paypal", "amount": "10", "category": "tithe", "email": "donor@example.org",
		})
		assert.Equal(s.T(), 503, w.Code)
	})
}

func (s *TestSuite) TestChecksLifecycle() {
	w, body := s.do(http.MethodPost, "/api/v1/checks", s.Treasurer, map[string]string{
		"check_number": "000123",
		"amount":       "2500.00",
		"category":     "building",
		"payer_name":   "Mary Wanjiku",
		"check_date":   "2024-03-01",
	})
	s.Require().Equal(200, w.Code, body)
	checkID := gjson.Get(body, "data.id").String()
	donationID := gjson.Get(body, "data.donation_id").String()
	assert.Equal(s.T(), string(types.CHECK_PENDING), gjson.Get(body, "data.status").String())

	w, _ = s.do(http.MethodPost, "/api/v1/checks", s.Treasurer, map[string]string{
		"check_number": "000123", "amount": "1", "category": "building", "payer_name": "Someone",
	})
	assert.Equal(s.T(), 400, w.Code)

	w, _ = s.do(http.MethodPatch, "/api/v1/checks/"+checkID+"/status", s.Treasurer, map[string]string{"status": "cleared"})
	assert.Equal(s.T(), 409, w.Code)

	w, _ = s.do(http.MethodPatch, "/api/v1/checks/"+checkID+"/status", s.Treasurer, map[string]string{"status": "deposited"})
	assert.Equal(s.T(), 200, w.Code)

	w, _ = s.do(http.MethodDelete, "/api/v1/checks/"+checkID, s.Treasurer, nil)
	assert.Equal(s.T(), 409, w.Code)

	w, _ = s.do(http.MethodPatch, "/api/v1/checks/"+checkID+"/status", s.Treasurer, map[string]string{"status": "cleared"})
	assert.Equal(s.T(), 200, w.Code)

	_, body = s.do(http.MethodGet, "/api/v1/donations/"+donationID, s.Treasurer, nil)
	assert.Equal(s.T(), string(types.DONATION_COMPLETED), gjson.Get(body, "data.status").String())
	assert.Equal(s.T(), string(types.METHOD_CHECK), gjson.Get(body, "data.method").String())
}

func (s *TestSuite) TestPaybillManagement() {
	w, body := s.do(http.MethodPost, "/api/v1/fund-categories", s.Admin, map[string]string{"name": "Building", "fund_code": "bld"})
	s.Require().Equal(200, w.Code, body)
	assert.Equal(s.T(), "BLD", gjson.Get(body, "data.fund_code").String())

	w, _ = s.do(http.MethodPost, "/api/v1/fund-categories", s.Admin, map[string]string{"name": "Bad", "fund_code": "toolong"})
	assert.Equal(s.T(), 400, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/fund-categories", s.Treasurer, map[string]string{"name": "Missions", "fund_code": "MSN"})
	assert.Equal(s.T(), 403, w.Code)

	w, body = s.do(http.MethodPost, "/api/v1/paybill/account-number", s.Treasurer, map[string]string{
		"group_id":         s.Group.ID.String(),
		"fund_category_id": s.Fund.ID.String(),
	})
	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "JERICHO-TTH", gjson.Get(body, "data.account_number").String())

	w, body = s.do(http.MethodPost, "/api/v1/groups", s.Admin, map[string]string{"name": "Jericho"})
	s.Require().Equal(200, w.Code, body)
	second := gjson.Get(body, "data.id").String()

	w, body = s.do(http.MethodGet, "/api/v1/groups/"+second+"/code/suggest", s.Admin, nil)
	assert.Equal(s.T(), 200, w.Code)
	assert.Equal(s.T(), "JERICHO1", gjson.Get(body, "data.group_code").String())
}

func (s *TestSuite) TestAuthorizedRoutesNeedToken() {
	w, _ := s.do(http.MethodGet, "/api/v1/donations/unallocated", "", nil)
	assert.Equal(s.T(), 401, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/mpesa/register-urls", s.Treasurer, nil)
	assert.Equal(s.T(), 403, w.Code)
}

func (s *TestSuite) TestStripeWebhookRejectsBadSignature() {
	os.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	os.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	defer os.Unsetenv("STRIPE_SECRET_KEY")
	defer os.Unsetenv("STRIPE_WEBHOOK_SECRET")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	assert.Equal(s.T(), 400, w.Code)
}

func TestRunner(t *testing.T) {
	suite.Run(t, new(TestSuite))
}
