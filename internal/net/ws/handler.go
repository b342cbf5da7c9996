package ws

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seawatts/grid-sub000/internal/sim"
	"github.com/seawatts/grid-sub000/internal/telemetry"
)

const replyBacklog = 32

type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades requests to websockets attached to the hub.
type Handler struct {
	hub      *Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = hub.logger
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	sub, err := h.hub.Subscribe(conn)
	if err != nil {
		h.logger.Printf("failed to send initial state to %s: %v", r.RemoteAddr, err)
		return
	}
	defer h.hub.Disconnect(sub)

	writeJSON := func(payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			h.logger.Printf("failed to marshal response for %d: %v", sub.id, err)
			return true
		}
		return sub.write(data) == nil
	}

	// Replies arrive on the loop goroutine and are written from here.
	replies := make(chan sim.CommandResult, replyBacklog)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case result := <-replies:
				if result.Err != nil {
					writeJSON(errorMessage{Type: TypeError, Command: result.Type, Message: result.Err.Error()})
				} else {
					writeJSON(ackMessage{Type: TypeAck, Command: result.Type})
				}
			}
		}
	}()
	reply := func(result sim.CommandResult) {
		select {
		case replies <- result:
		default:
			h.logger.Printf("dropping %s reply for %d: backlog full", result.Type, sub.id)
		}
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %d: %v", sub.id, err)
			if !writeJSON(errorMessage{Type: TypeError, Message: "malformed message"}) {
				return
			}
			continue
		}

		switch msg.Type {
		case TypeCommand:
			if msg.Command == nil || msg.Command.Type == "" {
				if !writeJSON(errorMessage{Type: TypeError, Message: "missing command"}) {
					return
				}
				continue
			}
			cmd := *msg.Command
			cmd.IssuedAt = time.Time{}
			cmd.Reply = reply
			h.hub.sim.Enqueue(cmd)
		default:
			h.logger.Printf("unknown message type %q from %d", msg.Type, sub.id)
			if !writeJSON(errorMessage{Type: TypeError, Message: "unknown message type " + msg.Type}) {
				return
			}
		}
	}
}
