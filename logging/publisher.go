package logging

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity accepts the names produced by Severity.String.
func ParseSeverity(value string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return SeverityDebug, nil
	case "", "info":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "error":
		return SeverityError, nil
	default:
		return SeverityInfo, fmt.Errorf("unknown severity %q", value)
	}
}

type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindTower   EntityKind = "tower"
	EntityKindEnemy   EntityKind = "enemy"
	EntityKindTrap    EntityKind = "trap"
	EntityKindPowerUp EntityKind = "powerup"
	EntityKindWorld   EntityKind = "world"
)

type Event struct {
	Type      EventType      `json:"type"`
	Tick      uint64         `json:"tick"`
	Time      time.Time      `json:"time"`
	Actor     EntityRef      `json:"actor"`
	Targets   []EntityRef    `json:"targets,omitempty"`
	Severity  Severity       `json:"severity"`
	Category  string         `json:"category,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	CommandID string         `json:"commandId,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// Ref builds an EntityRef for an integer entity id.
func Ref(kind EntityKind, id int) EntityRef {
	return EntityRef{ID: strconv.Itoa(id), Kind: kind}
}

// World is the actor used for events no single entity caused.
func World() EntityRef {
	return EntityRef{Kind: EntityKindWorld}
}

const (
	CategoryCombat     = "combat"
	CategoryEconomy    = "economy"
	CategoryLifecycle  = "lifecycle"
	CategorySimulation = "simulation"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

type fieldPublisher struct {
	next   Publisher
	fields map[string]any
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	if len(p.fields) > 0 {
		event = mergeFields(event, p.fields)
	}
	p.next.Publish(ctx, event)
}

func mergeFields(event Event, fields map[string]any) Event {
	event = cloneForFields(event)
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
	return event
}

func cloneForFields(event Event) Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}

// WithFields decorates p so every event carries fields in Extra unless the
// event already sets the key.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &fieldPublisher{next: p, fields: copied}
}

// TickSource reports the current simulation tick.
type TickSource interface {
	Tick() uint64
}

type tickPublisher struct {
	next   Publisher
	source TickSource
}

func (p *tickPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	if event.Tick == 0 && p.source != nil {
		event.Tick = p.source.Tick()
	}
	p.next.Publish(ctx, event)
}

// WithTick stamps events that do not carry a tick with source's current tick.
// Systems publish without knowing the tick counter; the engine owns it.
func WithTick(p Publisher, source TickSource) Publisher {
	if p == nil {
		p = NopPublisher()
	}
	return &tickPublisher{next: p, source: source}
}
