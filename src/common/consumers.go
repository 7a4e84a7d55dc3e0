package common

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib"
	awslib "github.com/mrhoseah/shepherd-chMS-sub005/src/lib/aws"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/mailer"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/utils"
)

// EventQueue names the external topic an event is published to and the queue subscribed to it.
func EventQueue(name EventName) string {
	switch name {
	case EVENT_SESSION_CREATED:
		return utils.WithSuffix(config.SESSION_EVENTS_QUEUE)
	case EVENT_DONATION_COMPLETED:
		return utils.WithSuffix(config.RECEIPTS_QUEUE)
	}
	return ""
}

// PublishEvent fans an event out through SNS. The subscribed queue feeds an isolated worker.
func PublishEvent(ev Event) error {
	queue := EventQueue(ev.Name)
	if queue == "" {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return lib.SNSPublish(queue, string(body))
}

// eventConsumer adapts an EventHandler to a raw queue message.
func eventConsumer(name string, h EventHandler) func(payload string) {
	return func(payload string) {
		var ev Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			log.Printf("[%s] Error deserializing JSON: %s\n", name, err.Error())
			return
		}
		if err := safeHandle(h, ev); err != nil {
			log.Printf("[%s] Error handling %s [%s]: %s\n", name, ev.Name, ev.ID, err.Error())
		}
	}
}

// EmailsToSendConsumer delivers a message taken off the mail queue.
func EmailsToSendConsumer(payload string) {
	in, err := mailer.ParseMailerMessage(payload)
	if err != nil {
		log.Printf("[Emails] Invalid message: %s\n", err.Error())
		return
	}
	if err := mailer.Deliver(in); err != nil {
		log.Printf("[Emails] Error sending email to %v: %s\n", in.To, err.Error())
	}
}

// Workers wires the background side of the system: event handlers, queue consumers and
// periodic jobs.
type Workers struct {
	Dispatcher *Dispatcher
	QR         *QRGenerator
	Receipts   *Receipts
	Stk        *StkPoller
}

// Start subscribes the handlers in-process when running locally. Elsewhere events are
// published to SNS and consumed from the subscribed SQS queues.
func (w *Workers) Start(ctx context.Context) {
	lib.RegisterTaskHandler(StkQueryTopic(), w.Stk.HandleJob)
	if utils.IsLocal() {
		w.Dispatcher.Subscribe(EVENT_SESSION_CREATED, w.QR.HandleSessionCreated)
		w.Dispatcher.Subscribe(EVENT_DONATION_COMPLETED, w.Receipts.HandleDonationCompleted)
		if err := lib.KafkaConsumer(ctx, "emails", []string{mailer.EmailQueue()}, EmailsToSendConsumer); err != nil {
			log.Printf("[Workers] Email consumer not started: %s\n", err.Error())
		}
		if n, err := w.Stk.RecoverQueuedJobs(ctx); err != nil {
			log.Printf("[Workers] Error recovering queued jobs: %s\n", err.Error())
		} else if n > 0 {
			log.Printf("[Workers] Recovered %d queued jobs\n", n)
		}
	} else {
		w.Dispatcher.SetForwarder(PublishEvent)
		w.SQSConsumers(ctx)
	}
	w.cronJobs(ctx)
}

func (w *Workers) SQSConsumers(ctx context.Context) {
	awslib.NewSQSConsumer(EventQueue(EVENT_SESSION_CREATED), eventConsumer("SessionEvents", w.QR.HandleSessionCreated)).Listen(ctx)
	awslib.NewSQSConsumer(EventQueue(EVENT_DONATION_COMPLETED), eventConsumer("DonationReceipts", w.Receipts.HandleDonationCompleted)).Listen(ctx)
	awslib.NewSQSConsumer(mailer.EmailQueue(), EmailsToSendConsumer).Listen(ctx)
	awslib.NewSQSConsumer(StkQueryTopic(), w.Stk.HandleJob).Listen(ctx)
}

// SNSSubscribes attaches every topic to the queue of the same name.
func SNSSubscribes(ctx context.Context) {
	topics := []string{
		StkQueryTopic(),
		EventQueue(EVENT_SESSION_CREATED),
		EventQueue(EVENT_DONATION_COMPLETED),
	}
	for _, topic := range topics {
		sub := awslib.NewSNSSubscriber(topic)
		if sub == nil {
			return
		}
		if _, err := sub.Subscribe(ctx, "sqs", lib.GetQueueArn(topic)); err != nil {
			log.Printf("[Workers] Error subscribing %s: %s\n", topic, err.Error())
		}
	}
}

func (w *Workers) cronJobs(ctx context.Context) {
	lib.CreateCronJob("stk-status-sweep", func() {
		if _, err := w.Stk.Sweep(ctx); err != nil {
			log.Printf("[Workers] STK sweep failed: %s\n", err.Error())
		}
	}, time.Minute)
	lib.CreateCronJob("qr-expiry-sweep", func() {
		w.QR.ExpireQRCodes(ctx)
	}, time.Hour)
	if s, err := lib.GetScheduler(); err == nil {
		s.Start()
	}
}
