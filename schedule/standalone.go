package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"jsbridge/dao"
	"jsbridge/dao/model"
	"jsbridge/job"
	"jsbridge/logger"
)

type StandaloneSchedule struct {
	timeWheel *timeWheel
	dao       dao.Dao
	runner    *job.Runner
	now       func() time.Time
	log       *log.Logger

	mu      sync.Mutex
	started bool
	jobs    map[string]*job.Job
}

func MakeStandalone(d dao.Dao, runner *job.Runner) *StandaloneSchedule {
	return makeStandalone(d, runner, makeTimeWheel(interval, slotNums))
}

func makeStandalone(d dao.Dao, runner *job.Runner, tw *timeWheel) *StandaloneSchedule {
	return &StandaloneSchedule{
		timeWheel: tw,
		dao:       d,
		runner:    runner,
		now:       time.Now,
		log:       logger.With("component", "schedule"),
		jobs:      make(map[string]*job.Job),
	}
}

// Start runs the wheel and arms every runnable script from the store.
func (s *StandaloneSchedule) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()
	s.timeWheel.start()
	return s.initJobs(ctx)
}

func (s *StandaloneSchedule) initJobs(ctx context.Context) error {
	if s.dao == nil || s.runner == nil {
		return nil
	}
	scripts, err := s.dao.ListRunnable(ctx)
	if err != nil {
		return err
	}
	for _, sc := range scripts {
		if err = s.AddJob(s.runner.CreateScriptJob(sc)); err != nil {
			s.log.Warn("script not scheduled", "script", sc.ScriptId, "err", err)
		}
	}
	return nil
}

func (s *StandaloneSchedule) Close() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.jobs = make(map[string]*job.Job)
	s.mu.Unlock()
	if started {
		s.timeWheel.stop()
	}
}

// AddJob arms j, replacing any job with the same id. Cron jobs re-arm after every run.
func (s *StandaloneSchedule) AddJob(j *job.Job) error {
	delay, err := nextDelay(j, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.jobs[j.JobId] = j
	s.mu.Unlock()
	s.timeWheel.addJob(delay, j.JobId, s.wrap(j))
	s.log.Debug("job armed", "job", j.JobId, "delay", delay)
	return nil
}

// wrap runs j only while it is still the armed job for its id, so a fire that races with
// CancelJob or a replacement is dropped.
func (s *StandaloneSchedule) wrap(j *job.Job) func() {
	return func() {
		if !s.current(j) {
			return
		}
		j.Function()
		if j.CronExpression == "" {
			s.mu.Lock()
			if s.jobs[j.JobId] == j {
				delete(s.jobs, j.JobId)
			}
			s.mu.Unlock()
			return
		}
		if err := s.rearm(j); err != nil {
			s.log.Warn("job not re-armed", "job", j.JobId, "err", err)
		}
	}
}

func (s *StandaloneSchedule) current(j *job.Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && s.jobs[j.JobId] == j
}

func (s *StandaloneSchedule) rearm(j *job.Job) error {
	delay, err := nextDelay(j, s.now())
	if err != nil {
		return err
	}
	if !s.current(j) {
		return nil
	}
	s.timeWheel.addJob(delay, j.JobId, s.wrap(j))
	return nil
}

func (s *StandaloneSchedule) CancelJob(key string) error {
	s.mu.Lock()
	delete(s.jobs, key)
	started := s.started
	s.mu.Unlock()
	if started {
		s.timeWheel.removeJob(key)
	}
	return nil
}

// Scheduled returns the ids of the armed jobs.
func (s *StandaloneSchedule) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

// HandleJobStateChange arms a script that became runnable and cancels one that stopped.
func (s *StandaloneSchedule) HandleJobStateChange(ctx context.Context, key string, state uint8) error {
	if state != model.Runnable {
		return s.CancelJob(key)
	}
	return s.HandleJobTimeChange(ctx, key)
}

// HandleJobTimeChange re-reads the script's trigger and re-arms it.
func (s *StandaloneSchedule) HandleJobTimeChange(ctx context.Context, key string) error {
	e, err := s.dao.GetScript(ctx, key)
	if err != nil {
		return err
	}
	if e.State != model.Runnable {
		return s.CancelJob(key)
	}
	return s.AddJob(s.runner.CreateScriptJob(e))
}
