package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/lib/gateways"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
	"github.com/stretchr/testify/assert"
)

type stubQuerier struct {
	result *gateways.StkQueryResult
	err    error
	asked  []string
}

func (q *stubQuerier) QueryStatus(ctx context.Context, checkoutRequestID string) (*gateways.StkQueryResult, error) {
	q.asked = append(q.asked, checkoutRequestID)
	return q.result, q.err
}

type scheduled struct {
	runsAt  time.Time
	vars    map[string]string
	payload types.JSONB
}

func (s *LedgerSuite) poller(q *stubQuerier) (*StkPoller, *[]scheduled) {
	calls := []scheduled{}
	p := NewStkPoller(s.ledger, func(ctx context.Context) (StkStatusQuerier, error) {
		if q == nil {
			return nil, gateways.ErrNotConfigured
		}
		return q, nil
	})
	p.now = func() time.Time { return s.now }
	p.schedule = func(runsAt time.Time, vars map[string]string, payload types.JSONB) (*uuid.UUID, error) {
		calls = append(calls, scheduled{runsAt: runsAt, vars: vars, payload: payload})
		id := uuid.New()
		return &id, nil
	}
	return p, &calls
}

func (s *LedgerSuite) TestStkPollerSchedule() {
	d := s.processing("ws_CO_300", DonationInput{})
	p, calls := s.poller(&stubQuerier{})

	s.Require().NoError(p.Schedule(s.ctx, d))
	s.Require().Len(*calls, 1)
	call := (*calls)[0]
	assert.True(s.T(), s.now.Add(config.STALE_PROCESSING_AFTER).Equal(call.runsAt))
	assert.Equal(s.T(), StkQueryTopic(), call.vars["topic"])
	assert.Equal(s.T(), d.ID.String(), call.payload["donationId"])

	var job models.JobTask
	s.Require().NoError(s.db.Where("payload_id = ?", d.ID.String()).First(&job).Error)
	assert.Equal(s.T(), models.JOB_TYPE_STK_QUERY, job.JobType)
	assert.Equal(s.T(), models.JOB_STATUS_PENDING, job.Status)
	assert.Equal(s.T(), job.ID.String(), call.payload["jobId"])

	s.Require().NoError(p.Schedule(s.ctx, &models.Donation{}))
	assert.Len(s.T(), *calls, 1)
}

func (s *LedgerSuite) TestStkPollerHandleJob() {
	d := s.processing("ws_CO_301", DonationInput{})
	q := &stubQuerier{result: &gateways.StkQueryResult{ResultCode: gateways.MPESA_RESULT_CANCELLED, ResultDesc: "Request cancelled by user"}}
	p, calls := s.poller(q)
	s.Require().NoError(p.Schedule(s.ctx, d))
	payload := fmt.Sprintf(`{"jobId":"%s","donationId":"%s"}`, (*calls)[0].payload["jobId"], d.ID.String())

	p.HandleJob(payload)

	settled, err := s.ledger.Get(s.ctx, d.ID.String())
	s.Require().NoError(err)
	assert.Equal(s.T(), types.DONATION_FAILED, settled.Status)
	assert.Equal(s.T(), "Request cancelled by user", *settled.FailureReason)
	assert.Equal(s.T(), []string{"ws_CO_301"}, q.asked)

	var job models.JobTask
	s.Require().NoError(s.db.Where("payload_id = ?", d.ID.String()).First(&job).Error)
	assert.Equal(s.T(), models.JOB_STATUS_COMPLETED, job.Status)
	assert.Equal(s.T(), 1, job.Attempts)

	p.HandleJob(payload)
	assert.Len(s.T(), q.asked, 1, "settled donations are not queried again")
	p.HandleJob("not json")
}

func (s *LedgerSuite) TestStkPollerRecordsFailures() {
	d := s.processing("ws_CO_302", DonationInput{})
	q := &stubQuerier{err: &types.GatewayError{Gateway: "mpesa", Code: gateways.MPESA_PROCESSING_ERROR_CODE, Message: "The transaction is being processed"}}
	p, calls := s.poller(q)
	s.Require().NoError(p.Schedule(s.ctx, d))

	p.HandleJob(fmt.Sprintf(`{"jobId":"%s","donationId":"%s"}`, (*calls)[0].payload["jobId"], d.ID.String()))

	var job models.JobTask
	s.Require().NoError(s.db.Where("payload_id = ?", d.ID.String()).First(&job).Error)
	assert.Equal(s.T(), models.JOB_STATUS_FAILED, job.Status)
	assert.Equal(s.T(), "The transaction is being processed", *job.LastError)

	still, err := s.ledger.Get(s.ctx, d.ID.String())
	s.Require().NoError(err)
	assert.Equal(s.T(), types.DONATION_PROCESSING, still.Status)
}

func (s *LedgerSuite) TestStkPollerSweep() {
	stale := []*models.Donation{
		s.processing("ws_CO_310", DonationInput{}),
		s.processing("ws_CO_311", DonationInput{}),
	}
	fresh := s.processing("ws_CO_312", DonationInput{})
	for _, d := range stale {
		s.Require().NoError(s.db.Model(&models.Donation{}).Where("id = ?", d.ID).UpdateColumn("updated_at", s.now.Add(-10*time.Minute)).Error)
	}
	s.Require().NoError(s.db.Model(&models.Donation{}).Where("id = ?", fresh.ID).UpdateColumn("updated_at", s.now).Error)

	p, _ := s.poller(nil)
	_, err := p.Sweep(s.ctx)
	s.ErrorIs(err, gateways.ErrNotConfigured)

	q := &stubQuerier{result: &gateways.StkQueryResult{ResultCode: gateways.MPESA_RESULT_SUCCESS, ResultDesc: "The service request is processed successfully."}}
	p, _ = s.poller(q)
	settled, err := p.Sweep(s.ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), 2, settled)
	assert.ElementsMatch(s.T(), []string{"ws_CO_310", "ws_CO_311"}, q.asked)

	d, err := s.ledger.Get(s.ctx, stale[0].ID.String())
	s.Require().NoError(err)
	assert.Equal(s.T(), types.DONATION_COMPLETED, d.Status)

	q.result = &gateways.StkQueryResult{Pending: true}
	settled, err = p.Sweep(s.ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), 0, settled)
}

func (s *LedgerSuite) TestStkPollerRecoverQueuedJobs() {
	overdue := models.JobTask{Name: "stk_ws_CO_320", JobType: models.JOB_TYPE_STK_QUERY, RunsAt: s.now.Add(-time.Hour), PayloadID: uuid.NewString()}
	upcoming := models.JobTask{Name: "stk_ws_CO_321", JobType: models.JOB_TYPE_STK_QUERY, RunsAt: s.now.Add(time.Minute), PayloadID: uuid.NewString()}
	done := models.JobTask{Name: "stk_ws_CO_322", JobType: models.JOB_TYPE_STK_QUERY, RunsAt: s.now, Status: models.JOB_STATUS_COMPLETED}
	s.Require().NoError(s.db.Create(&[]*models.JobTask{&overdue, &upcoming, &done}).Error)

	p, calls := s.poller(&stubQuerier{})
	recovered, err := p.RecoverQueuedJobs(s.ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), 2, recovered)

	runs := map[string]time.Time{}
	for _, c := range *calls {
		runs[c.vars["name"]] = c.runsAt
	}
	assert.True(s.T(), s.now.Add(5*time.Second).Equal(runs["stk_ws_CO_320"]))
	assert.True(s.T(), upcoming.RunsAt.Equal(runs["stk_ws_CO_321"]))

	p.schedule = func(runsAt time.Time, vars map[string]string, payload types.JSONB) (*uuid.UUID, error) {
		return nil, errors.New("scheduler stopped")
	}
	recovered, err = p.RecoverQueuedJobs(s.ctx)
	s.Require().NoError(err)
	assert.Equal(s.T(), 0, recovered)
}
