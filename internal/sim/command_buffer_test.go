package sim

import (
	"testing"
	"time"

	"github.com/seawatts/grid-sub000/internal/telemetry"
)

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	cmds := []Command{
		{Type: CommandStartWave},
		{Type: CommandPause},
		{Type: CommandResume},
	}
	for _, cmd := range cmds {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed for %+v", cmd)
		}
	}
	if buffer.Push(Command{Type: CommandSave}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.Type != cmds[i].Type {
			t.Fatalf("expected drain order %v, got %v", cmds[i].Type, cmd.Type)
		}
	}
	// Push again to ensure the indices wrap correctly.
	for _, cmd := range []Command{{Type: CommandSellTower}, {Type: CommandUpgradeTower}} {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed after drain for %+v", cmd)
		}
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 {
		t.Fatalf("expected 2 commands after wraparound, got %d", len(wrapped))
	}
	if wrapped[0].Type != CommandSellTower || wrapped[1].Type != CommandUpgradeTower {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
}

func TestCommandBufferOverflowMetrics(t *testing.T) {
	metrics := telemetry.NewCounters()
	buffer := NewCommandBuffer(1, metrics)
	if !buffer.Push(Command{Type: CommandStartWave}) {
		t.Fatalf("expected initial push to succeed")
	}
	if buffer.Push(Command{Type: CommandPause}) {
		t.Fatalf("expected push to fail when capacity exceeded")
	}
	snapshot := metrics.Snapshot()
	if snapshot[commandBufferOverflowMetricKey] != 1 {
		t.Fatalf("expected one overflow, got %d", snapshot[commandBufferOverflowMetricKey])
	}
	if snapshot[commandBufferOccupancyMetricKey] != 1 {
		t.Fatalf("expected occupancy 1, got %d", snapshot[commandBufferOccupancyMetricKey])
	}
	drained := buffer.Drain()
	if len(drained) != 1 || drained[0].Type != CommandStartWave {
		t.Fatalf("unexpected drained commands: %+v", drained)
	}
	if metrics.Snapshot()[commandBufferOccupancyMetricKey] != 0 {
		t.Fatalf("expected occupancy reset after drain")
	}
}

func TestCommandBufferCountsPerCommandType(t *testing.T) {
	metrics := telemetry.NewCounters()
	buffer := NewCommandBuffer(2, metrics)
	buffer.Push(Command{Type: CommandPlaceTower})
	buffer.Push(Command{Type: CommandPlaceTower})
	buffer.Push(Command{Type: CommandStartWave})

	snapshot := metrics.Snapshot()
	if got := snapshot["sim_commands_staged_total_placetower"]; got != 2 {
		t.Fatalf("expected 2 staged placeTower, got %d", got)
	}
	if got := snapshot["sim_commands_overflow_total_startwave"]; got != 1 {
		t.Fatalf("expected 1 overflowed startWave, got %d", got)
	}
	if got := snapshot[commandMetricKey(commandStagedMetricPrefix, "")]; got != 0 {
		t.Fatalf("expected no untyped commands, got %d", got)
	}
}

func TestCommandBufferRecordsQueueWait(t *testing.T) {
	metrics := telemetry.NewCounters()
	buffer := NewCommandBuffer(4, metrics)
	issued := time.Unix(1700000000, 0)
	buffer.now = func() time.Time { return issued.Add(120 * time.Millisecond) }

	buffer.Push(Command{Type: CommandPause, IssuedAt: issued})
	buffer.Push(Command{Type: CommandResume, IssuedAt: issued.Add(100 * time.Millisecond)})
	buffer.Push(Command{Type: CommandResume})
	buffer.Drain()

	if got := metrics.Snapshot()[commandBufferWaitMetricKey]; got != 120 {
		t.Fatalf("expected longest wait 120ms, got %d", got)
	}
}
