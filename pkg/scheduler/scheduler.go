// Package scheduler runs named periodic tasks on cron expressions with a seconds field.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/prateek8731/Market-Monitor/pkg/logger"
)

// Task is one scheduled unit of work. The context is cancelled on Stop.
type Task func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	log     *logger.Logger
	timeout time.Duration
	loc     *time.Location

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

type Option func(*Scheduler)

// WithTaskTimeout bounds every run; zero means no deadline.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// WithLocation evaluates specs in loc instead of the local zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

func New(l *logger.Logger, opts ...Option) *Scheduler {
	if l == nil {
		l = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		log:     l.With(logger.String("component", "scheduler")),
		loc:     time.Local,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
	for _, o := range opts {
		o(s)
	}
	// overlapping runs of one task are skipped
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return s
}

// Register adds task under name. Names are unique.
func (s *Scheduler) Register(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("task %q already registered", name)
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, task) })
	if err != nil {
		return fmt.Errorf("register %s (%q): %w", name, spec, err)
	}
	s.entries[name] = id
	s.log.Info("task registered", logger.String("task", name), logger.String("spec", spec))
	return nil
}

// RunNow executes a registered task synchronously, outside the schedule.
func (s *Scheduler) RunNow(name string, task Task) error {
	return s.exec(name, task)
}

func (s *Scheduler) run(name string, task Task) {
	_ = s.exec(name, task)
}

func (s *Scheduler) exec(name string, task Task) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.log.Info("task started", logger.String("task", name))
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return task(ctx)
	}()
	if err != nil {
		s.log.Error("task failed", logger.String("task", name), logger.Duration("took", time.Since(start)), logger.Error(err))
		return err
	}
	s.log.Info("task finished", logger.String("task", name), logger.Duration("took", time.Since(start)))
	return nil
}

// Next reports the next activation of name, or zero if unknown or not started.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("tasks", len(s.entries)))
}

// Stop cancels running tasks and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
