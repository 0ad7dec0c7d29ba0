package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
	pkgkafka "github.com/prateek8731/Market-Monitor/pkg/kafka"
	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
	"github.com/prateek8731/Market-Monitor/pkg/queue"
	"github.com/prateek8731/Market-Monitor/pkg/scheduler"
)

// Component is a long-running part of the process. Components start in
// registration order and stop in reverse.
type Component struct {
	Name  string
	Start func() error
	Stop  func(ctx context.Context) error
}

type closer struct {
	name string
	fn   func() error
}

// App owns the process lifecycle: background workers, the HTTP server and the
// infrastructure clients released on shutdown.
type App struct {
	log             *applogger.Logger
	components      []Component
	closers         []closer
	shutdownTimeout time.Duration
	signals         []os.Signal
}

type AppOption func(*App)

// WithHTTPServer serves the API; it is started last so workers are ready first.
func WithHTTPServer(s *xhttp.Server) AppOption {
	return func(a *App) {
		if s == nil {
			return
		}
		a.shutdownTimeout = s.ShutdownTimeout()
		a.components = append(a.components, Component{Name: "http", Start: s.Start, Stop: s.Stop})
	}
}

// WithConsumer registers handlers on c and runs it. A nil consumer is skipped.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) AppOption {
	return func(a *App) {
		if c == nil || len(handlers) == 0 {
			return
		}
		for _, h := range handlers {
			c.RegisterHandler(h)
		}
		a.components = append(a.components, Component{Name: "kafka-consumer", Start: c.Start, Stop: c.Stop})
	}
}

func WithQueue(q *queue.RedisQueue) AppOption {
	return func(a *App) {
		if q == nil {
			return
		}
		a.components = append(a.components, Component{Name: "queue", Start: q.Start, Stop: q.Stop})
	}
}

func WithScheduler(s *scheduler.Scheduler) AppOption {
	return func(a *App) {
		if s == nil {
			return
		}
		a.components = append(a.components, Component{
			Name:  "scheduler",
			Start: func() error { s.Start(); return nil },
			Stop:  s.Stop,
		})
	}
}

func WithComponent(c Component) AppOption {
	return func(a *App) { a.components = append(a.components, c) }
}

// WithCloser releases a client after every component has stopped.
func WithCloser(name string, fn func() error) AppOption {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, closer{name: name, fn: fn})
		}
	}
}

func WithShutdownTimeout(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

func New(l *applogger.Logger, opts ...AppOption) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{
		log:             l,
		shutdownTimeout: 10 * time.Second,
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run starts the application and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), a.signals...)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done. A component
// that fails to start stops the ones already running.
func (a *App) RunContext(ctx context.Context) error {
	started := 0
	for _, c := range a.components {
		if err := c.Start(); err != nil {
			a.log.Error("component start failed", applogger.String("component", c.Name), applogger.Error(err))
			_ = a.shutdown(started)
			return fmt.Errorf("start %s: %w", c.Name, err)
		}
		a.log.Info("component started", applogger.String("component", c.Name))
		started++
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(started)
}

func (a *App) shutdown(started int) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	for i := started - 1; i >= 0; i-- {
		c := a.components[i]
		if err := c.Stop(ctx); err != nil {
			a.log.Warn("component stop error", applogger.String("component", c.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name, err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
