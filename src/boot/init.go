package boot

import (
	"context"
	"log"
	"time"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/common"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/db"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/mailer"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/utils"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(models.All()...)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitBroker prepares the messaging side: Kafka topics locally, SNS subscriptions elsewhere.
func InitBroker(ctx context.Context) {
	if utils.IsLocal() {
		if _, err := lib.KafkaCreateTopics(mailer.EmailQueue()); err != nil {
			log.Printf("[Kafka] Topics not created: %s\n", err.Error())
		}
		return
	}
	common.SNSSubscribes(ctx)
}

// InitWorkers starts event handlers, queue consumers and periodic jobs.
func InitWorkers(ctx context.Context, gdb *gorm.DB, stk *common.StkPoller) *common.Workers {
	UpdateExpiredJobs(gdb)
	w := &common.Workers{
		Dispatcher: common.GetDispatcher(),
		QR:         common.NewQRGenerator(gdb),
		Receipts:   common.NewReceipts(gdb),
		Stk:        stk,
	}
	w.Start(ctx)
	return w
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while shutting stopping Scheduler. Check logs for info")
		return
	}
}

// UpdateExpiredJobs gives up on status queries that are more than a day overdue. The
// periodic sweep still covers their donations.
func UpdateExpiredJobs(gdb *gorm.DB) {
	err := gdb.
		Transaction(func(tx *gorm.DB) error {
			return tx.Model(&models.JobTask{}).
				Where("status = ?", models.JOB_STATUS_PENDING).
				Where("runs_at < ?", time.Now().Add(-24*time.Hour)).
				Update("status", models.JOB_STATUS_EXPIRED).
				Error
		})
	if err != nil {
		log.Printf("Error while processing expired jobs: %s\n", err.Error())
	}
}
