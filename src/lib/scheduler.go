package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsched "github.com/aws/aws-sdk-go-v2/service/scheduler"
	schedulerTypes "github.com/aws/aws-sdk-go-v2/service/scheduler/types"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

type Key string

const (
	varsKey Key = "vars"
)

var (
	scheduler     gocron.Scheduler
	schedulerLock sync.Mutex

	taskHandlers     = map[string]types.Handler{}
	taskHandlersLock sync.RWMutex
)

func NewScheduler(s gocron.Scheduler) {
	schedulerLock.Lock()
	defer schedulerLock.Unlock()
	scheduler = s
}

func GetScheduler() (gocron.Scheduler, error) {
	schedulerLock.Lock()
	defer schedulerLock.Unlock()
	if scheduler != nil {
		return scheduler, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("Error initializing Scheduler: %s\n", err.Error())
		return nil, err
	}
	scheduler = sched
	return sched, nil
}

// CreateCronJob runs handler every duration. Overlapping runs are skipped.
func CreateCronJob(name string, handler any, duration time.Duration, args ...any) (*string, error) {
	sched, err := GetScheduler()
	if err != nil {
		return nil, err
	}
	j, err := sched.NewJob(
		gocron.DurationJob(duration),
		gocron.NewTask(handler, args...),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("[%s] Error creating job: %s\n", name, err.Error())
		return nil, err
	}
	id := j.ID().String()
	log.Printf("[%s] Job registered: %s every %s\n", name, id, duration)
	return &id, nil
}

// RegisterTaskHandler binds a topic to the handler that runs its scheduled payloads in-process.
func RegisterTaskHandler(topic string, handler types.Handler) {
	taskHandlersLock.Lock()
	defer taskHandlersLock.Unlock()
	taskHandlers[topic] = handler
}

func taskHandlerFor(topic string) (types.Handler, bool) {
	taskHandlersLock.RLock()
	defer taskHandlersLock.RUnlock()
	h, ok := taskHandlers[topic]
	return h, ok
}

type Scheduler interface {
	Name() string
	CreateScheduleWithStartDate(ctx context.Context, s time.Time, p types.JSONB) (*uuid.UUID, error)
}

// EventBridgeScheduler publishes the payload to an SNS topic at the start date.
type EventBridgeScheduler struct {
	inner *awsched.Client
}

func (e *EventBridgeScheduler) Name() string {
	return "EventBridge"
}

func (e *EventBridgeScheduler) CreateScheduleWithStartDate(ctx context.Context, s time.Time, p types.JSONB) (*uuid.UUID, error) {
	if e.inner == nil {
		return nil, fmt.Errorf("scheduler client unavailable")
	}
	vars := ctx.Value(varsKey).(map[string]string)
	name := vars["name"]
	topic := vars["topic"]
	bPayload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	sid := uuid.New()
	roleArn := os.Getenv("SCHEDULER_ROLE_ARN")
	topicArn := GetTopicArn(topic)
	sRunsAt := s.UTC().Format("2006-01-02T15:04:05")
	sched, err := e.inner.CreateSchedule(ctx, &awsched.CreateScheduleInput{
		Name:      aws.String(fmt.Sprintf("schedule_%s", name)),
		StartDate: aws.Time(s),
		Target: &schedulerTypes.Target{
			Arn:     aws.String(topicArn),
			RoleArn: aws.String(roleArn),
			Input:   aws.String(string(bPayload)),
			RetryPolicy: &schedulerTypes.RetryPolicy{
				MaximumRetryAttempts: aws.Int32(3),
			},
		},
		FlexibleTimeWindow:    &schedulerTypes.FlexibleTimeWindow{Mode: schedulerTypes.FlexibleTimeWindowModeOff},
		ScheduleExpression:    aws.String(fmt.Sprintf("at(%s)", sRunsAt)),
		ActionAfterCompletion: schedulerTypes.ActionAfterCompletionDelete,
	})
	if err != nil {
		log.Printf("Failed to create Schedule: %s\n", err.Error())
		return nil, err
	}
	log.Printf("Created schedule at: %s\n", *sched.ScheduleArn)
	return &sid, nil
}

// LocalScheduler runs the topic's registered handler in-process at the start date.
type LocalScheduler struct {
	inner gocron.Scheduler
}

func (l *LocalScheduler) Name() string {
	return "Local"
}

func (l *LocalScheduler) CreateScheduleWithStartDate(ctx context.Context, s time.Time, p types.JSONB) (*uuid.UUID, error) {
	if l.inner == nil {
		return nil, fmt.Errorf("local scheduler unavailable")
	}
	vars := ctx.Value(varsKey).(map[string]string)
	topic := vars["topic"]
	handler, ok := taskHandlerFor(topic)
	if !ok {
		return nil, fmt.Errorf("no task handler registered for %s", topic)
	}
	bPayload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if s.Before(time.Now()) {
		s = time.Now().Add(time.Second)
	}
	j, err := l.inner.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(s)),
		gocron.NewTask(func(payload string) {
			log.Printf("[%s] Running scheduled task for %s...\n", l.Name(), topic)
			handler(payload)
		}, string(bPayload)),
		gocron.WithName(vars["name"]),
	)
	if err != nil {
		log.Printf("Error creating job: %s\n", err.Error())
		return nil, err
	}
	sRunsAt := s.Format(config.TIME_PARSE_FORMAT)
	log.Printf("[%s] New Job scheduled on: %s %s\n", l.Name(), j.ID().String(), sRunsAt)
	jid := j.ID()
	return &jid, nil
}

func NewAwsScheduler() *EventBridgeScheduler {
	return &EventBridgeScheduler{inner: AWSGetSchedulerClient()}
}

func NewLocalScheduler() *LocalScheduler {
	inner, _ := GetScheduler()
	return &LocalScheduler{inner: inner}
}

// CreateScheduler returns either an instance of LocalScheduler or EventBridgeScheduler based on the app environment value
func CreateScheduler() Scheduler {
	env := config.APIEnv()
	if env == string(types.Production) || env == string(types.Test) {
		return NewAwsScheduler()
	}
	return NewLocalScheduler()
}

// NewScheduledJob schedules payload p for the topic named in vars ("name", "topic").
func NewScheduledJob(startDate time.Time, vars map[string]string, p types.JSONB) (*uuid.UUID, error) {
	sch := CreateScheduler()
	ctx := context.WithValue(context.Background(), varsKey, vars)
	sid, err := sch.CreateScheduleWithStartDate(ctx, startDate, p)
	if err != nil {
		log.Printf("[%s] Error scheduling %s: %s\n", sch.Name(), vars["name"], err.Error())
		return nil, err
	}
	return sid, nil
}
