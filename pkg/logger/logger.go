package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
	// sink is shared with every child from With, so a collector attached
	// later still sees their errors.
	sink *collectorSink
}

type collectorSink struct {
	c atomic.Pointer[LogCollector]
}

type Config struct {
	Level      string // debug, info, warn, error, fatal, panic
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string // time format for log messages
}

func New(cfg *Config) (*Logger, error) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	// Configure output writer
	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	// Configure time format (ensure it's not empty)
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	// If format is "console", use human-readable, otherwise use JSON
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
			NoColor:    false,
		}
	}

	// Create logger instance
	logger := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()

	return &Logger{zl: logger, sink: &collectorSink{}}, nil
}

// Nop returns a logger that discards everything. Used by tests and optional wiring.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), sink: &collectorSink{}}
}

// With returns a child logger that stamps fields on every entry.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		if k, v := f.GetKeyValue(); k != "" {
			ctx = ctx.Interface(k, v)
		}
	}
	return &Logger{zl: ctx.Logger(), sink: l.sink}
}

func emit(e *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		f.AddTo(e)
	}
	e.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { emit(l.zl.Warn(), msg, fields) }

// Error also feeds the attached collector, if any.
func (l *Logger) Error(msg string, fields ...Field) {
	emit(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

// collect must be called directly from a level method so the caller frame resolves.
func (l *Logger) collect(level, msg string, fields []Field) {
	c := l.sink.c.Load()
	if c == nil {
		return
	}
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if i := strings.LastIndex(file, "Market-Monitor/"); i >= 0 {
			file = file[i+len("Market-Monitor/"):]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if k, v := f.GetKeyValue(); k != "" {
			m[k] = v
		}
	}
	c.Add(level, msg, m, caller)
}

// AddCollector starts aggregating error entries of l and all its children,
// replacing (and flushing) any previous collector.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if old := l.sink.c.Swap(NewLogCollector(config)); old != nil {
		old.Close()
	}
}

// RemoveCollector detaches the collector and publishes what it still holds.
func (l *Logger) RemoveCollector() {
	if old := l.sink.c.Swap(nil); old != nil {
		old.Close()
	}
}

// Field is one structured key/value. The zero Field is ignored.
type Field struct {
	key   string
	value interface{}
	add   func(e *zerolog.Event)
}

func (f Field) AddTo(e *zerolog.Event) {
	if f.add != nil {
		f.add(e)
	}
}

// GetKeyValue is the form handed to the log collector.
func (f Field) GetKeyValue() (string, interface{}) {
	return f.key, f.value
}

func String(key, value string) Field {
	return Field{key, value, func(e *zerolog.Event) { e.Str(key, value) }}
}

// Ticker tags an entry with the symbol it concerns.
func Ticker(symbol string) Field {
	return String("ticker", symbol)
}

func Strings(key string, value []string) Field {
	return Field{key, value, func(e *zerolog.Event) { e.Strs(key, value) }}
}

func Int(key string, value int) Field {
	return Field{key, value, func(e *zerolog.Event) { e.Int(key, value) }}
}

func Int64(key string, value int64) Field {
	return Field{key, value, func(e *zerolog.Event) { e.Int64(key, value) }}
}

func Float64(key string, value float64) Field {
	return Field{key, value, func(e *zerolog.Event) { e.Float64(key, value) }}
}

func Bool(key string, value bool) Field {
	return Field{key, value, func(e *zerolog.Event) { e.Bool(key, value) }}
}

func Time(key string, value time.Time) Field {
	return Field{key, value, func(e *zerolog.Event) { e.Time(key, value) }}
}

// Duration logs whole milliseconds.
func Duration(key string, value time.Duration) Field {
	ms := value.Milliseconds()
	return Field{key, ms, func(e *zerolog.Event) { e.Int64(key, ms) }}
}

func Any(key string, value interface{}) Field {
	return Field{key, value, func(e *zerolog.Event) { e.Interface(key, value) }}
}

// Error logs err under "error"; a nil err adds nothing.
func Error(err error) Field {
	if err == nil {
		return Field{}
	}
	return Field{"error", err.Error(), func(e *zerolog.Event) { e.Err(err) }}
}
