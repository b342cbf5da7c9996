package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Graylog2/go-gelf/gelf"

	"github.com/seawatts/grid-sub000/logging"
)

// Syslog levels used by GELF.
const (
	gelfLevelError   int32 = 3
	gelfLevelWarning int32 = 4
	gelfLevelInfo    int32 = 6
	gelfLevelDebug   int32 = 7
)

// MessageWriter is the part of *gelf.Writer the sink uses.
type MessageWriter interface {
	WriteMessage(m *gelf.Message) error
	Close() error
}

// Gelf forwards events to a Graylog input.
type Gelf struct {
	writer   MessageWriter
	host     string
	facility string
}

// NewGelf dials the Graylog UDP input at cfg.Address.
func NewGelf(cfg logging.GelfConfig) (*Gelf, error) {
	writer, err := gelf.NewWriter(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("dial graylog %s: %w", cfg.Address, err)
	}
	return NewGelfWithWriter(writer, cfg.Facility), nil
}

// NewGelfWithWriter wraps an existing writer.
func NewGelfWithWriter(writer MessageWriter, facility string) *Gelf {
	host, err := os.Hostname()
	if err != nil {
		host = "gridtd"
	}
	return &Gelf{writer: writer, host: host, facility: facility}
}

func (s *Gelf) Write(event logging.Event) error {
	if s.writer == nil {
		return nil
	}
	extra := map[string]interface{}{
		"event_type": string(event.Type),
		"tick":       event.Tick,
		"actor":      formatEntity(event.Actor),
	}
	if event.Category != "" {
		extra["category"] = event.Category
	}
	if len(event.Targets) > 0 {
		extra["targets"] = formatTargets(event.Targets)[len(" targets="):]
	}
	for k, v := range event.Extra {
		extra[k] = v
	}
	full := ""
	if event.Payload != nil {
		if data, err := json.Marshal(event.Payload); err == nil {
			full = string(data)
		}
	}
	msg := &gelf.Message{
		Version:  "1.1",
		Host:     s.host,
		Short:    fmt.Sprintf("%s %s", event.Type, formatEntity(event.Actor)),
		Full:     full,
		TimeUnix: float64(event.Time.UnixNano()) / 1e9,
		Level:    gelfLevel(event.Severity),
		Facility: s.facility,
		Extra:    extra,
	}
	return s.writer.WriteMessage(msg)
}

func (s *Gelf) Close(context.Context) error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

func gelfLevel(sev logging.Severity) int32 {
	switch sev {
	case logging.SeverityDebug:
		return gelfLevelDebug
	case logging.SeverityWarn:
		return gelfLevelWarning
	case logging.SeverityError:
		return gelfLevelError
	default:
		return gelfLevelInfo
	}
}
