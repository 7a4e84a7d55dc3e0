package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/utils"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

// StkPoller settles M-Pesa pushes whose callback never arrived by asking Daraja directly.
// Each push gets one scheduled query; a periodic sweep catches whatever slipped through.
type StkPoller struct {
	ledger   *Ledger
	querier  func(ctx context.Context) (StkStatusQuerier, error)
	schedule func(runsAt time.Time, vars map[string]string, p types.JSONB) (*uuid.UUID, error)
	now      func() time.Time
}

func NewStkPoller(l *Ledger, querier func(ctx context.Context) (StkStatusQuerier, error)) *StkPoller {
	return &StkPoller{
		ledger:   l,
		querier:  querier,
		schedule: lib.NewScheduledJob,
		now:      time.Now,
	}
}

func StkQueryTopic() string {
	return utils.WithSuffix(config.STK_QUERY_TOPIC)
}

// Schedule records a status query for a push and hands it to the scheduler.
func (p *StkPoller) Schedule(ctx context.Context, d *models.Donation) error {
	if d == nil || d.MpesaCheckoutRequestID == nil {
		return nil
	}
	job := models.JobTask{
		Name:      fmt.Sprintf("stk_%s", *d.MpesaCheckoutRequestID),
		JobType:   models.JOB_TYPE_STK_QUERY,
		RunsAt:    p.now().Add(config.STALE_PROCESSING_AFTER),
		PayloadID: d.ID.String(),
	}
	job.Payload = types.JSONB{"donationId": d.ID.String()}
	if err := p.ledger.db.WithContext(ctx).Create(&job).Error; err != nil {
		log.Printf("[StkPoller] Error saving job for [%s]: %s\n", d.ID.String(), err.Error())
		return err
	}
	return p.enqueue(&job)
}

func (p *StkPoller) enqueue(job *models.JobTask) error {
	_, err := p.schedule(job.RunsAt, map[string]string{
		"name":  job.Name,
		"topic": StkQueryTopic(),
	}, types.JSONB{"jobId": job.ID.String(), "donationId": job.PayloadID})
	return err
}

// HandleJob runs a scheduled query. payload is the JSON written by Schedule.
func (p *StkPoller) HandleJob(payload string) {
	if !gjson.Valid(payload) {
		log.Printf("[StkPoller] Received invalid json body. Aborting\n")
		return
	}
	fields := gjson.GetMany(payload, "jobId", "donationId")
	ctx := context.Background()
	err := p.refresh(ctx, fields[1].String())
	if jobID, perr := uuid.Parse(fields[0].String()); perr == nil {
		p.finishJob(ctx, jobID, err)
	}
	if err != nil {
		log.Printf("[StkPoller] Error refreshing donation [%s]: %s\n", fields[1].String(), err.Error())
	}
}

func (p *StkPoller) refresh(ctx context.Context, donationID string) error {
	d, err := p.ledger.Get(ctx, donationID)
	if err != nil {
		return err
	}
	if d.Status != types.DONATION_PROCESSING {
		return nil
	}
	q, err := p.querier(ctx)
	if err != nil {
		return err
	}
	_, err = p.ledger.RefreshMpesaStatus(ctx, q, d)
	return err
}

func (p *StkPoller) finishJob(ctx context.Context, jobID uuid.UUID, err error) {
	updates := map[string]any{
		"status":   models.JOB_STATUS_COMPLETED,
		"attempts": gorm.Expr("attempts + 1"),
	}
	if err != nil {
		updates["status"] = models.JOB_STATUS_FAILED
		updates["last_error"] = err.Error()
	}
	if uerr := p.ledger.db.WithContext(ctx).Model(&models.JobTask{}).Where("id = ?", jobID).Updates(updates).Error; uerr != nil {
		log.Printf("[StkPoller] Error updating job [%s]: %s\n", jobID.String(), uerr.Error())
	}
}

// Sweep queries every push that has been processing for longer than STALE_PROCESSING_AFTER.
func (p *StkPoller) Sweep(ctx context.Context) (int, error) {
	stale, err := p.ledger.ListStaleMpesa(ctx, p.now().Add(-config.STALE_PROCESSING_AFTER), 50)
	if err != nil {
		log.Printf("[StkPoller] Error listing stale pushes: %s\n", err.Error())
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	q, err := p.querier(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("[StkPoller] M-Pesa unavailable: %s\n", err.Error())
		}
		return 0, err
	}
	settled := 0
	for i := range stale {
		d, err := p.ledger.RefreshMpesaStatus(ctx, q, &stale[i])
		if err != nil {
			log.Printf("[StkPoller] Error refreshing donation [%s]: %s\n", stale[i].ID.String(), err.Error())
			continue
		}
		if d != nil && d.Status != types.DONATION_PROCESSING {
			settled++
		}
	}
	return settled, nil
}

// RecoverQueuedJobs reschedules pending queries after a restart. Overdue ones run at once.
func (p *StkPoller) RecoverQueuedJobs(ctx context.Context) (int, error) {
	var jobs []models.JobTask
	err := p.ledger.db.WithContext(ctx).
		Where("job_type = ? AND status = ?", models.JOB_TYPE_STK_QUERY, models.JOB_STATUS_PENDING).
		Find(&jobs).
		Error
	if err != nil {
		return 0, err
	}
	recovered := 0
	for i := range jobs {
		job := &jobs[i]
		if job.RunsAt.Before(p.now()) {
			job.RunsAt = p.now().Add(5 * time.Second)
		}
		if err := p.enqueue(job); err != nil {
			log.Printf("[StkPoller] Error rescheduling job [%s]: %s\n", job.ID.String(), err.Error())
			continue
		}
		recovered++
	}
	return recovered, nil
}
