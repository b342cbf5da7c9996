package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Graylog2/go-gelf/gelf"

	"github.com/seawatts/grid-sub000/logging"
)

func sampleEvent() logging.Event {
	return logging.Event{
		Type:     "combat.enemy_killed",
		Tick:     12,
		Time:     time.Unix(1700000000, 0).UTC(),
		Actor:    logging.Ref(logging.EntityKindTower, 3),
		Targets:  []logging.EntityRef{logging.Ref(logging.EntityKindEnemy, 9)},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  map[string]int{"reward": 10},
		Extra:    map[string]any{"wave": 2},
	}
}

func TestConsoleSinkFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"[combat.enemy_killed]", "tick=12", "actor=tower:3", "targets=enemy:9", `payload={"reward":10}`, "wave=2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestJSONSinkWritesNDJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if decoded["type"] != "combat.enemy_killed" {
		t.Fatalf("unexpected type %v", decoded["type"])
	}
	if decoded["severity"] != "info" {
		t.Fatalf("unexpected severity %v", decoded["severity"])
	}
}

func TestMemorySinkFiltersByType(t *testing.T) {
	sink := NewMemorySink()
	sink.Publish(context.Background(), sampleEvent())
	sink.Publish(context.Background(), logging.Event{Type: "lifecycle.wave_started"})

	if got := len(sink.OfType("combat.enemy_killed")); got != 1 {
		t.Fatalf("expected 1 kill event, got %d", got)
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}

type recordingWriter struct {
	messages []*gelf.Message
	closed   bool
}

func (w *recordingWriter) WriteMessage(m *gelf.Message) error {
	w.messages = append(w.messages, m)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestGelfSinkMapsSeverityAndFields(t *testing.T) {
	writer := &recordingWriter{}
	sink := NewGelfWithWriter(writer, "gridtd")

	event := sampleEvent()
	event.Severity = logging.SeverityWarn
	if err := sink.Write(event); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if msg.Level != gelfLevelWarning {
		t.Fatalf("expected warning level, got %d", msg.Level)
	}
	if msg.Facility != "gridtd" {
		t.Fatalf("unexpected facility %q", msg.Facility)
	}
	if msg.Extra["event_type"] != "combat.enemy_killed" || msg.Extra["targets"] != "enemy:9" {
		t.Fatalf("unexpected extra %+v", msg.Extra)
	}
	if msg.Full != `{"reward":10}` {
		t.Fatalf("unexpected full message %q", msg.Full)
	}
	if err := sink.Close(context.Background()); err != nil || !writer.closed {
		t.Fatalf("expected writer to close")
	}
}
