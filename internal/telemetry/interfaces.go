package telemetry

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// WrapZerolog routes Printf calls to zerolog at info level under component.
func WrapZerolog(logger zerolog.Logger, component string) Logger {
	if component != "" {
		logger = logger.With().Str("component", component).Logger()
	}
	return &zerologAdapter{logger: logger}
}

type zerologAdapter struct {
	logger zerolog.Logger
}

func (l *zerologAdapter) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Info().Msg(fmt.Sprintf(format, args...))
}

// Metrics exposes the telemetry methods required by server components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// Counters is an in-process Metrics implementation. Add accumulates, Store
// overwrites.
type Counters struct {
	mu     sync.Mutex
	values map[string]uint64
}

// NewCounters returns an empty counter set.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]uint64)}
}

func (c *Counters) Add(key string, delta uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]uint64)
	}
	c.values[key] += delta
}

func (c *Counters) Store(key string, value uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values == nil {
		c.values = make(map[string]uint64)
	}
	c.values[key] = value
}

// Snapshot copies the current values.
func (c *Counters) Snapshot() map[string]uint64 {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Keys lists the recorded metric names in order.
func (c *Counters) Keys() []string {
	snapshot := c.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fanout forwards to every non-nil Metrics.
func Fanout(metrics ...Metrics) Metrics {
	targets := make(multiMetrics, 0, len(metrics))
	for _, m := range metrics {
		if m != nil {
			targets = append(targets, m)
		}
	}
	return targets
}

type multiMetrics []Metrics

func (m multiMetrics) Add(key string, delta uint64) {
	for _, target := range m {
		target.Add(key, delta)
	}
}

func (m multiMetrics) Store(key string, value uint64) {
	for _, target := range m {
		target.Store(key, value)
	}
}
