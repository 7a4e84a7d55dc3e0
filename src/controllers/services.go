package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/common"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/db"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

var (
	ledger    *common.Ledger
	stkPoller *common.StkPoller
	lock      sync.Mutex
)

func NewLedger(l *common.Ledger) {
	lock.Lock()
	defer lock.Unlock()
	ledger = l
	stkPoller = nil
}

func GetLedger() *common.Ledger {
	lock.Lock()
	defer lock.Unlock()
	if ledger == nil {
		ledger = common.DefaultLedger()
	}
	return ledger
}

func NewStkPoller(p *common.StkPoller) {
	lock.Lock()
	defer lock.Unlock()
	stkPoller = p
}

func GetStkPoller() *common.StkPoller {
	l := GetLedger()
	lock.Lock()
	defer lock.Unlock()
	if stkPoller == nil {
		stkPoller = common.NewStkPoller(l, MpesaQuerier)
	}
	return stkPoller
}

func GatewayDeps() gateways.Deps {
	return gateways.Deps{
		DB:    db.GetDb(),
		Redis: lib.GetRedisClient(),
	}
}

func mpesaGateway() (*gateways.MpesaGateway, error) {
	gw, err := gateways.ForMethod(GatewayDeps(), types.METHOD_MPESA)
	if err != nil {
		return nil, err
	}
	return gw.(*gateways.MpesaGateway), nil
}

func paypalGateway() (*gateways.PaypalGateway, error) {
	gw, err := gateways.ForMethod(GatewayDeps(), types.METHOD_PAYPAL)
	if err != nil {
		return nil, err
	}
	return gw.(*gateways.PaypalGateway), nil
}

// MpesaQuerier loads the M-Pesa adapter for status queries.
func MpesaQuerier(ctx context.Context) (common.StkStatusQuerier, error) {
	gw, err := mpesaGateway()
	if err != nil {
		return nil, err
	}
	return gw, nil
}

func actorFrom(ctx *gin.Context) common.Actor {
	return common.Actor{
		ID:   ctx.GetUint("id"),
		Role: ctx.GetString("role"),
		Name: ctx.GetString("name"),
	}
}

// StatusFor maps an error to its response code. A gateway without configuration is 503.
func StatusFor(err error) int {
	if errors.Is(err, gateways.ErrNotConfigured) {
		return http.StatusServiceUnavailable
	}
	return types.HTTPStatus(err)
}

func parseOptionalID(field string, v *string) (*uuid.UUID, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*v))
	if err != nil {
		return nil, types.NewValidationError(field, "must be a valid uuid")
	}
	return &id, nil
}
