// Package jobs schedules the engine's periodic work on a seconds-resolution
// cron.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Status is the outcome of a job's most recent run.
type Status struct {
	Name     string        `json:"name"`
	Spec     string        `json:"spec"`
	Runs     int64         `json:"runs"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	LastErr  string        `json:"last_error,omitempty"`
}

type entry struct {
	spec   string
	job    Job
	status Status
}

// Runner owns the cron scheduler and the named jobs registered on it.
type Runner struct {
	cron    *cron.Cron
	baseCtx context.Context

	mu   sync.Mutex
	jobs map[string]*entry
}

// New creates a runner. Scheduled runs receive baseCtx, so cancelling it
// aborts in-flight work. A job still running when its next tick fires is
// skipped for that tick.
func New(baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger := cronLogger{l: log.Logger}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		baseCtx: baseCtx,
		jobs:    make(map[string]*entry),
	}
}

// Add registers job under name on spec. An empty spec or "-" registers the
// job for RunNow only.
func (r *Runner) Add(name, spec string, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.jobs[name]; dup {
		return fmt.Errorf("jobs: %s already registered", name)
	}
	e := &entry{spec: spec, job: job, status: Status{Name: name, Spec: spec}}
	if spec != "" && spec != "-" {
		if _, err := r.cron.AddFunc(spec, func() { r.run(r.baseCtx, name, e) }); err != nil {
			return fmt.Errorf("jobs: %s: spec %q: %w", name, spec, err)
		}
	}
	r.jobs[name] = e
	return nil
}

// RunNow runs a registered job synchronously on ctx.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	e, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("jobs: unknown job %q", name)
	}
	return r.run(ctx, name, e)
}

func (r *Runner) run(ctx context.Context, name string, e *entry) error {
	start := time.Now()
	err := e.job(ctx)
	took := time.Since(start)

	r.mu.Lock()
	e.status.Runs++
	e.status.LastRun = start
	e.status.Duration = took
	e.status.LastErr = ""
	if err != nil {
		e.status.LastErr = err.Error()
	}
	r.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("job", name).Dur("took", took).Msg("jobs: run failed")
		return err
	}
	log.Debug().Str("job", name).Dur("took", took).Msg("jobs: run finished")
	return nil
}

// Statuses returns the status of every job, sorted by name.
func (r *Runner) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, 0, len(r.jobs))
	for _, e := range r.jobs {
		out = append(out, e.status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Runner) Start() {
	log.Info().Int("jobs", len(r.Statuses())).Msg("jobs: cron started")
	r.cron.Start()
}

// Stop halts the scheduler and waits for running jobs, or for ctx.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		log.Info().Msg("jobs: cron stopped")
	case <-ctx.Done():
		log.Warn().Msg("jobs: cron stop timed out with jobs still running")
	}
}

// cronLogger routes the scheduler's own messages to zerolog.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
