// Package scheduler drives reminder batch runs.
//
// Two triggers share one state machine: a daily cron entry at a configured
// local wall-clock time, and a synchronous manual trigger used by operators.
// At most one run is active at a time; a trigger that finds a run in progress
// is rejected with ErrRunInProgress rather than queued.
//
// Stop waits for an in-flight run up to the caller's deadline, then asks the
// run to stop at the next user boundary. Sends already started are never
// interrupted.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/carlog-backend/internal/observability"
	"github.com/tbourn/carlog-backend/internal/services"
)

// ErrRunInProgress is returned when a trigger fires while a run is active.
// It is a no-op signal, not a failure.
var ErrRunInProgress = errors.New("reminder run already in progress")

// Trigger names.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// State is the scheduler's run state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Runner executes one batch. *services.ReminderService implements it.
type Runner interface {
	Process(ctx context.Context, today time.Time) (services.RunResult, error)
}

// RunReport describes the most recent finished run.
type RunReport struct {
	Trigger    string             `json:"trigger"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Result     services.RunResult `json:"result"`
	Error      string             `json:"error,omitempty"`
}

// Status is a snapshot for the operator surface.
type Status struct {
	State   State      `json:"state"`
	NextRun *time.Time `json:"next_run,omitempty"`
	LastRun *RunReport `json:"last_run,omitempty"`
}

// Options configures a Scheduler.
type Options struct {
	Hour, Minute int
	Location     *time.Location
	// Lock adds cross-process exclusivity on top of the in-process guard.
	Lock Locker
	Now  func() time.Time
	Log  *zerolog.Logger
}

// Scheduler owns the cron cadence and the run-exclusivity guard.
type Scheduler struct {
	runner Runner
	cron   *cron.Cron
	spec   string
	loc    *time.Location
	local  LocalLock
	lock   Locker
	now    func() time.Time
	log    zerolog.Logger

	// stopCtx is cancelled on Stop timeout; runs observe it at user boundaries.
	stopCtx    context.Context
	stopCancel context.CancelFunc

	mu      sync.Mutex
	entry   cron.EntryID
	started bool
	done    chan struct{} // closed when the active run finishes
	lastRun *RunReport
}

// New builds a Scheduler that fires daily at opts.Hour:opts.Minute in
// opts.Location. The cadence is not registered until Start.
func New(runner Runner, opts Options) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner required")
	}
	if opts.Hour < 0 || opts.Hour > 23 || opts.Minute < 0 || opts.Minute > 59 {
		return nil, fmt.Errorf("scheduler: invalid time %02d:%02d", opts.Hour, opts.Minute)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	l := log.Logger
	if opts.Log != nil {
		l = *opts.Log
	}
	stopCtx, stopCancel := context.WithCancel(context.Background())

	return &Scheduler{
		runner:     runner,
		cron:       cron.New(cron.WithLocation(loc)),
		spec:       fmt.Sprintf("%d %d * * *", opts.Minute, opts.Hour),
		loc:        loc,
		lock:       opts.Lock,
		now:        now,
		log:        l.With().Str("component", "scheduler").Logger(),
		stopCtx:    stopCtx,
		stopCancel: stopCancel,
	}, nil
}

// Start registers the daily cadence and starts the cron loop. Calling Start
// twice is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	id, err := s.cron.AddFunc(s.spec, s.RunScheduled)
	if err != nil {
		return fmt.Errorf("scheduler: register cadence: %w", err)
	}
	s.entry = id
	s.started = true
	s.cron.Start()
	s.log.Info().Str("cron", s.spec).Str("tz", s.loc.String()).Msg("scheduler started")
	return nil
}

// Stop halts the cadence and waits for an in-flight run until ctx is done.
// On timeout the run is cancelled cooperatively and ctx.Err() is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	var cronDone <-chan struct{}
	s.mu.Lock()
	if s.started {
		cronDone = s.cron.Stop().Done()
		s.started = false
	}
	done := s.done
	s.mu.Unlock()

	// done covers runs holding the guard; cronDone covers a cron job that
	// fired but has not reached the guard yet.
	for _, ch := range []<-chan struct{}{done, cronDone} {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		case <-ctx.Done():
			s.stopCancel()
			s.log.Warn().Msg("shutdown deadline reached; cancelling reminder run at next user boundary")
			return ctx.Err()
		}
	}
	s.log.Info().Msg("scheduler stopped")
	return nil
}

// RunScheduled is the cron callback. Overlap and failures are logged only.
func (s *Scheduler) RunScheduled() {
	res, err := s.run(context.Background(), TriggerScheduled)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.log.Info().Msg("scheduled run skipped; previous run still active")
	case err != nil:
		s.log.Error().Err(err).Msg("scheduled reminder run failed")
	default:
		s.log.Info().Int("sms_sent", res.SMSSent).Int("maintenance_sent", res.MaintenanceSent).Msg("scheduled reminder run finished")
	}
}

// RunManual runs a batch synchronously. It returns ErrRunInProgress if a run
// is already active. Cancelling ctx does not cancel the run.
func (s *Scheduler) RunManual(ctx context.Context) (services.RunResult, error) {
	return s.run(ctx, TriggerManual)
}

// Status returns the current state, next cadence and last finished run.
func (s *Scheduler) Status() Status {
	st := Status{State: StateIdle}
	if s.local.Held() {
		st.State = StateRunning
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun != nil {
		r := *s.lastRun
		st.LastRun = &r
	}
	if s.started {
		if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}

func (s *Scheduler) run(ctx context.Context, trigger string) (services.RunResult, error) {
	l := s.log.With().Str("trigger", trigger).Logger()
	// Only Stop cancels a run; the caller's cancellation is dropped and its
	// values (trace span) kept.
	ctx = context.WithoutCancel(ctx)

	done := make(chan struct{})
	s.mu.Lock()
	release, ok, _ := s.local.TryLock(ctx)
	if ok {
		s.done = done
	}
	s.mu.Unlock()
	if !ok {
		observability.ReminderRuns.WithLabelValues(trigger, "skipped").Inc()
		return services.RunResult{}, ErrRunInProgress
	}
	defer func() {
		s.mu.Lock()
		s.done = nil
		release()
		s.mu.Unlock()
		close(done)
	}()

	if s.lock != nil {
		unlock, ok, err := s.lock.TryLock(ctx)
		if err != nil {
			observability.ReminderRuns.WithLabelValues(trigger, "error").Inc()
			return services.RunResult{}, err
		}
		if !ok {
			observability.ReminderRuns.WithLabelValues(trigger, "skipped").Inc()
			l.Info().Msg("another instance holds the reminder run lock")
			return services.RunResult{}, ErrRunInProgress
		}
		defer unlock()
	}

	observability.SchedulerRunning.Set(1)
	defer observability.SchedulerRunning.Set(0)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.stopCtx, cancel)
	defer stop()

	started := s.now()
	l.Info().Msg("reminder run started")
	res, err := s.runner.Process(runCtx, started.In(s.loc))
	finished := s.now()

	report := &RunReport{Trigger: trigger, StartedAt: started, FinishedAt: finished, Result: res}
	outcome := "ok"
	if err != nil {
		report.Error = err.Error()
		outcome = "error"
	}
	observability.ReminderRuns.WithLabelValues(trigger, outcome).Inc()
	observability.ReminderRunDuration.Observe(finished.Sub(started).Seconds())

	s.mu.Lock()
	s.lastRun = report
	s.mu.Unlock()

	return res, err
}
