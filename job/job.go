package job

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"jsbridge/dao"
	"jsbridge/dao/model"
	"jsbridge/js_exec"
	"jsbridge/js_exec/console"
	"jsbridge/logger"
)

const (
	ScriptJob = 0
	GolangJob = 1
)

const defaultTimeout = 30 * time.Second

type Job struct {
	JobId    string // should be unique.
	Function func()
	// CronExpression re-arms the job after every run. When empty the job runs once at ExecAt.
	CronExpression string
	ExecAt         *time.Time
	JobType        int
}

func CreateGolangJob(key string, f func(), cron string) *Job {
	return &Job{
		JobId:          key,
		Function:       f,
		CronExpression: cron,
		JobType:        GolangJob,
	}
}

// Runner executes scripts, each in a fresh context that is closed afterwards.
type Runner struct {
	factory *js_exec.Factory
	router  *console.Router
	dao     dao.Dao
	timeout time.Duration
	log     *log.Logger
}

// NewRunner builds a runner. router must be the one the console builtin was registered with,
// otherwise per-run sinks never see any output.
func NewRunner(factory *js_exec.Factory, router *console.Router, d dao.Dao, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{
		factory: factory,
		router:  router,
		dao:     d,
		timeout: timeout,
		log:     logger.With("component", "job"),
	}
}

// Run evaluates source as the main module of a new context and waits for its dispatched work.
// When the timeout passes first the script is interrupted. sink, when non-nil, receives the
// console output of this run only.
func (r *Runner) Run(ctx context.Context, filename, source string, sink console.Sink) error {
	c, err := r.factory.NewContext()
	if err != nil {
		return err
	}
	defer c.Close()
	if sink != nil && r.router != nil {
		r.router.Attach(c.ID(), sink)
		defer r.router.Detach(c.ID())
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { c.Interrupt(ctx.Err()) })
	defer stop()

	if err = c.RunMainSource(filename, source); err != nil {
		return err
	}
	if err = c.Wait(ctx); err != nil {
		return fmt.Errorf("wait for pending callbacks: %w", err)
	}
	return nil
}

// RunScript loads a stored script, runs it and records the execution time.
func (r *Runner) RunScript(ctx context.Context, id string, sink console.Sink) error {
	e, err := r.dao.GetScript(ctx, id)
	if err != nil {
		return err
	}
	start := time.Now()
	runErr := r.Run(ctx, e.FileName(), e.Source, sink)
	if err = r.dao.UpdateScript(ctx, id, map[string]any{model.LastExecTime: &start}); err != nil {
		r.log.Warn("record execution time", "script", id, "err", err)
	}
	return runErr
}

// CreateScriptJob wraps a stored script into a schedulable job. The source is read again on
// every run so edits apply to the next execution.
func (r *Runner) CreateScriptJob(e model.ScriptEntity) *Job {
	id := e.ScriptId
	j := &Job{
		JobId:   id,
		JobType: ScriptJob,
		ExecAt:  e.ExecAt,
		Function: func() {
			if err := r.RunScript(context.Background(), id, nil); err != nil {
				r.log.Error("script run failed", "script", id, "err", err)
			}
		},
	}
	if e.ExecType == model.TimingExecute {
		j.CronExpression = e.Cron
	}
	return j
}
