package common

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

type EventName string

const (
	EVENT_SESSION_CREATED    EventName = "SessionCreated"
	EVENT_DONATION_COMPLETED EventName = "DonationCompleted"
)

type Event struct {
	Name    EventName   `json:"name"`
	ID      string      `json:"id"`
	Payload types.JSONB `json:"payload,omitempty"`
}

type EventHandler func(ctx context.Context, ev Event) error

// Dispatcher delivers events to subscribers on background workers. Emit never blocks
// and handler failures are logged, never returned to the emitter.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventName][]EventHandler
	forward  func(ev Event) error
	queue    chan Event
	wg       sync.WaitGroup
	closed   bool
}

func NewDispatcher(buffer int, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		handlers: map[EventName][]EventHandler{},
		queue:    make(chan Event, buffer),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for ev := range d.queue {
				d.deliver(ev)
			}
		}()
	}
	return d
}

var dispatcher *Dispatcher
var dispatcherOnce sync.Once

func GetDispatcher() *Dispatcher {
	dispatcherOnce.Do(func() {
		dispatcher = NewDispatcher(256, 4)
	})
	return dispatcher
}

func (d *Dispatcher) Subscribe(name EventName, h EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], h)
}

// SetForwarder mirrors every emitted event to an external broker.
func (d *Dispatcher) SetForwarder(fn func(ev Event) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forward = fn
}

func (d *Dispatcher) Emit(ev Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Printf("[Dispatcher] dropped %s [%s]: dispatcher closed\n", ev.Name, ev.ID)
		return
	}
	select {
	case d.queue <- ev:
	default:
		log.Printf("[Dispatcher] queue full, delivering %s [%s] inline on a new goroutine\n", ev.Name, ev.ID)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(ev)
		}()
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.handlers[ev.Name]...)
	forward := d.forward
	d.mu.RUnlock()
	for _, h := range handlers {
		if err := safeHandle(h, ev); err != nil {
			log.Printf("[Dispatcher] Error handling %s [%s]: %s\n", ev.Name, ev.ID, err.Error())
		}
	}
	if forward != nil {
		if err := forward(ev); err != nil {
			log.Printf("[Dispatcher] Error forwarding %s [%s]: %s\n", ev.Name, ev.ID, err.Error())
		}
	}
}

func safeHandle(h EventHandler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(context.Background(), ev)
}

// Close stops accepting events and waits for queued ones to be handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
