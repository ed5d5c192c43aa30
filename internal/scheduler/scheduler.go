// ABOUTME: Cron-driven background jobs: periodic sync and the daily workout log update.
// ABOUTME: A sync tick is skipped while another sync cycle is still running.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/harperreed/lift/internal/logging"
	"github.com/harperreed/lift/internal/sync"
	"github.com/robfig/cron/v3"
)

// Job names.
const (
	JobSync = "sync"
	JobLogs = "logs"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a five-field cron spec or an @descriptor.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

// Syncer runs sync cycles.
type Syncer interface {
	Running() bool
	Run(ctx context.Context) (*sync.Result, error)
}

// LogUpdater back-fills workout logs through a given day.
type LogUpdater interface {
	UpdateLogs(ctx context.Context, today time.Time) (int, error)
}

// Config holds job schedules. An empty schedule disables its job.
type Config struct {
	SyncSchedule string
	LogSchedule  string
	// Now supplies the day passed to the log update. Defaults to time.Now.
	Now func() time.Time
}

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cfg     Config
	syncer  Syncer
	logs    LogUpdater
	logger  *logging.Logger
	cron    *cron.Cron
	entries map[string]cron.EntryID

	mu      gosync.Mutex
	ctx     context.Context
	running bool
}

// New validates the schedules and registers the jobs. syncer or logs may be
// nil to leave that job out.
func New(cfg Config, syncer Syncer, logs LogUpdater, logger *logging.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Scheduler{
		cfg:     cfg,
		syncer:  syncer,
		logs:    logs,
		logger:  logger.WithComponent("scheduler"),
		cron:    cron.New(cron.WithParser(parser)),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
	}

	if syncer != nil && cfg.SyncSchedule != "" {
		if err := s.add(JobSync, cfg.SyncSchedule, s.RunSync); err != nil {
			return nil, err
		}
	}
	if logs != nil && cfg.LogSchedule != "" {
		if err := s.add(JobLogs, cfg.LogSchedule, s.RunLogUpdate); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, job func(context.Context)) error {
	if err := ValidateSchedule(spec); err != nil {
		return err
	}
	id, err := s.cron.AddFunc(spec, func() { job(s.jobContext()) })
	if err != nil {
		return fmt.Errorf("schedule %s job: %w", name, err)
	}
	s.entries[name] = id
	return nil
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	var names []string
	for _, name := range []string{JobSync, JobLogs} {
		if _, ok := s.entries[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Start runs the jobs in the background until Stop or until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.ctx = ctx
	s.running = true
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}

// NextRun returns when a job fires next, or nil when it is not scheduled
// or the scheduler is stopped.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	id, ok := s.entries[name]
	if !running || !ok {
		return nil
	}
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// RunSync runs one sync cycle unless one is already in flight.
func (s *Scheduler) RunSync(ctx context.Context) {
	if s.syncer.Running() {
		s.logger.Debug("sync tick skipped, cycle in progress")
		return
	}
	res, err := s.syncer.Run(ctx)
	switch {
	case errors.Is(err, sync.ErrInProgress):
		s.logger.Debug("sync tick skipped, cycle in progress")
	case err != nil:
		s.logger.Warn("scheduled sync failed", "error", err)
	default:
		s.logger.Debug("scheduled sync done", "pushed", res.Pushed, "applied", res.Applied)
	}
}

// RunLogUpdate back-fills workout logs through today.
func (s *Scheduler) RunLogUpdate(ctx context.Context) {
	n, err := s.logs.UpdateLogs(ctx, s.cfg.Now())
	if err != nil {
		s.logger.Warn("scheduled log update failed", "error", err)
		return
	}
	s.logger.Debug("scheduled log update done", "created", n)
}
