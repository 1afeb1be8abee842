package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"

	"jsbridge/job"
)

var (
	ErrNotStarted = errors.New("schedule not started")
	ErrNoTrigger  = errors.New("job has neither a cron expression nor an execution time")
)

type Schedule interface {
	Close()
	Start(ctx context.Context) error
	AddJob(j *job.Job) error
	CancelJob(key string) error
}

// resolveCron returns the delay from now to the next time str fires.
func resolveCron(str string, now time.Time) (time.Duration, error) {
	expr, err := cronexpr.Parse(str)
	if err != nil {
		return 0, fmt.Errorf("parse cron %q: %w", str, err)
	}
	next := expr.Next(now)
	if next.IsZero() {
		return 0, fmt.Errorf("cron %q never fires after %s", str, now.Format(time.RFC3339))
	}
	return next.Sub(now), nil
}

// CheckCron reports whether str is a cron expression with a future run.
func CheckCron(str string) error {
	_, err := resolveCron(str, time.Now())
	return err
}

// nextDelay is the delay before j should run, measured from now.
func nextDelay(j *job.Job, now time.Time) (time.Duration, error) {
	if j.CronExpression != "" {
		return resolveCron(j.CronExpression, now)
	}
	if j.ExecAt != nil {
		return j.ExecAt.Sub(now), nil
	}
	return 0, ErrNoTrigger
}
