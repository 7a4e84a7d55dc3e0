package common

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

func eventOutcome(err error) string {
	var validationErr *types.ValidationError
	switch {
	case err == nil:
		return models.EVENT_OUTCOME_APPLIED
	case errors.Is(err, types.ErrDuplicateWebhook):
		return models.EVENT_OUTCOME_DUPLICATE
	case errors.Is(err, errIgnoredEvent):
		return models.EVENT_OUTCOME_IGNORED
	case errors.As(err, &validationErr):
		return models.EVENT_OUTCOME_REJECTED
	}
	return models.EVENT_OUTCOME_ERROR
}

var errIgnoredEvent = errors.New("event type not handled")

// logGatewayEvent keeps the raw delivery whatever happened to it. Failures here are logged only.
func (l *Ledger) logGatewayEvent(ctx context.Context, gateway, eventType, externalID string, body []byte, donation *models.Donation, err error) {
	payload := types.JSONB{}
	if jerr := json.Unmarshal(body, &payload); jerr != nil {
		payload = types.JSONB{"raw": string(body)}
	}
	ev := models.GatewayEvent{
		Gateway:    gateway,
		EventType:  eventType,
		ExternalID: externalID,
		Payload:    payload,
		Outcome:    eventOutcome(err),
	}
	if err != nil && !errors.Is(err, errIgnoredEvent) {
		ev.Detail = err.Error()
	}
	if donation != nil {
		id := donation.ID
		ev.DonationID = &id
	}
	if cerr := l.db.WithContext(ctx).Create(&ev).Error; cerr != nil {
		log.Printf("[%s] Error saving gateway event %s: %s\n", gateway, eventType, cerr.Error())
	}
}
