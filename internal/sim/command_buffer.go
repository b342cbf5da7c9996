package sim

import (
	"strings"
	"sync"
	"time"

	"github.com/seawatts/grid-sub000/internal/telemetry"
)

const (
	commandBufferOccupancyMetricKey = "sim_command_buffer_occupancy"
	commandBufferOverflowMetricKey  = "sim_command_buffer_overflow_total"
	commandBufferWaitMetricKey      = "sim_command_queue_wait_ms"

	commandStagedMetricPrefix   = "sim_commands_staged_total"
	commandOverflowMetricPrefix = "sim_commands_overflow_total"
)

// commandMetricKey suffixes prefix with the lower-cased command type, e.g.
// sim_commands_staged_total_placetower.
func commandMetricKey(prefix string, t CommandType) string {
	if t == "" {
		return prefix + "_unknown"
	}
	return prefix + "_" + strings.ToLower(string(t))
}

// CommandBuffer is a bounded FIFO of player commands between ticks. Producers
// on any goroutine Push; the loop goroutine Drains once per step.
type CommandBuffer struct {
	mu      sync.Mutex
	ring    []Command
	start   int
	size    int
	metrics telemetry.Metrics
	now     func() time.Time
}

// NewCommandBuffer allocates a buffer holding up to capacity commands.
func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{
		ring:    make([]Command, capacity),
		metrics: metrics,
		now:     time.Now,
	}
}

// Push stages cmd. It returns false without blocking when the buffer is full.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == len(b.ring) {
		b.add(commandBufferOverflowMetricKey, 1)
		b.add(commandMetricKey(commandOverflowMetricPrefix, cmd.Type), 1)
		return false
	}
	b.ring[(b.start+b.size)%len(b.ring)] = cmd
	b.size++
	b.add(commandMetricKey(commandStagedMetricPrefix, cmd.Type), 1)
	b.store(commandBufferOccupancyMetricKey, uint64(b.size))
	return true
}

// Drain empties the buffer, oldest command first. The longest time any
// drained command spent queued is stored as a gauge.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		return nil
	}
	now := b.now()
	var longest time.Duration
	out := make([]Command, b.size)
	for i := range out {
		slot := (b.start + i) % len(b.ring)
		out[i] = b.ring[slot]
		b.ring[slot] = Command{}
		if issued := out[i].IssuedAt; !issued.IsZero() {
			if wait := now.Sub(issued); wait > longest {
				longest = wait
			}
		}
	}
	b.start, b.size = 0, 0
	b.store(commandBufferOccupancyMetricKey, 0)
	b.store(commandBufferWaitMetricKey, uint64(longest.Milliseconds()))
	return out
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *CommandBuffer) add(key string, delta uint64) {
	if b.metrics != nil {
		b.metrics.Add(key, delta)
	}
}

func (b *CommandBuffer) store(key string, value uint64) {
	if b.metrics != nil {
		b.metrics.Store(key, value)
	}
}
