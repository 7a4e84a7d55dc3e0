package common

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherDeliversToEverySubscriber(t *testing.T) {
	d := NewDispatcher(8, 2)
	var mu sync.Mutex
	seen := map[string]int{}
	record := func(tag string) EventHandler {
		return func(ctx context.Context, ev Event) error {
			mu.Lock()
			defer mu.Unlock()
			seen[tag+":"+ev.ID]++
			return nil
		}
	}
	d.Subscribe(EVENT_DONATION_COMPLETED, record("receipt"))
	d.Subscribe(EVENT_DONATION_COMPLETED, record("audit"))
	d.Subscribe(EVENT_SESSION_CREATED, record("qr"))

	var forwarded int32
	d.SetForwarder(func(ev Event) error {
		atomic.AddInt32(&forwarded, 1)
		return errors.New("broker down")
	})

	d.Emit(Event{Name: EVENT_DONATION_COMPLETED, ID: "d1"})
	d.Emit(Event{Name: EVENT_SESSION_CREATED, ID: "s1"})
	d.Close()

	assert.Equal(t, map[string]int{"receipt:d1": 1, "audit:d1": 1, "qr:s1": 1}, seen)
	assert.Equal(t, int32(2), forwarded)
}

func TestDispatcherSurvivesFailingHandlers(t *testing.T) {
	d := NewDispatcher(1, 1)
	var handled int32
	d.Subscribe(EVENT_DONATION_COMPLETED, func(ctx context.Context, ev Event) error {
		if ev.ID == "boom" {
			panic("nil map write")
		}
		if ev.ID == "err" {
			return errors.New("smtp unavailable")
		}
		atomic.AddInt32(&handled, 1)
		return nil
	})

	for _, id := range []string{"boom", "err", "ok1", "ok2", "ok3"} {
		d.Emit(Event{Name: EVENT_DONATION_COMPLETED, ID: id})
	}
	d.Close()
	assert.Equal(t, int32(3), handled)

	d.Emit(Event{Name: EVENT_DONATION_COMPLETED, ID: "late"})
	assert.Equal(t, int32(3), handled)
}

func TestNilDispatcherEmitIsNoop(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() {
		d.Emit(Event{Name: EVENT_DONATION_COMPLETED, ID: "x"})
	})
}
