package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seawatts/grid-sub000/internal/sim"
	"github.com/seawatts/grid-sub000/internal/state"
	"github.com/seawatts/grid-sub000/internal/telemetry"
)

const (
	writeWait = 10 * time.Second

	metricSubscribers    = "ws_subscribers"
	metricBroadcastBytes = "ws_broadcast_bytes_total"
)

// Simulation is the slice of the loop the socket layer needs.
type Simulation interface {
	Snapshot() state.GameState
	Tick() uint64
	Enqueue(cmd sim.Command) (bool, string)
}

type subscriber struct {
	id   uint64
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans loop steps out to every connected client.
type Hub struct {
	sim     Simulation
	logger  telemetry.Logger
	metrics telemetry.Metrics

	mu          sync.Mutex
	nextID      uint64
	subscribers map[uint64]*subscriber
}

// NewHub returns a hub serving snapshots from sim.
func NewHub(sim Simulation, logger telemetry.Logger, metrics telemetry.Metrics) *Hub {
	if logger == nil {
		logger = telemetry.WrapLogger(nil)
	}
	if metrics == nil {
		metrics = telemetry.NewCounters()
	}
	return &Hub{
		sim:         sim,
		logger:      logger,
		metrics:     metrics,
		subscribers: make(map[uint64]*subscriber),
	}
}

// Subscribe registers conn and sends it the current snapshot. Broadcasts to
// the new subscriber wait until the snapshot is written.
func (h *Hub) Subscribe(conn *websocket.Conn) (*subscriber, error) {
	sub := &subscriber{conn: conn}
	sub.mu.Lock()

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	h.subscribers[sub.id] = sub
	count := len(h.subscribers)
	h.mu.Unlock()
	h.metrics.Store(metricSubscribers, uint64(count))

	data, err := json.Marshal(stateMessage{Type: TypeState, Tick: h.sim.Tick(), State: h.sim.Snapshot()})
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteMessage(websocket.TextMessage, data)
	}
	sub.mu.Unlock()
	if err != nil {
		h.Disconnect(sub)
		return nil, err
	}
	return sub, nil
}

// Disconnect drops sub and closes its connection.
func (h *Hub) Disconnect(sub *subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.subscribers[sub.id]
	delete(h.subscribers, sub.id)
	count := len(h.subscribers)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.metrics.Store(metricSubscribers, uint64(count))
	sub.conn.Close()
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast publishes one loop step. A reset step sends a full snapshot;
// steps that changed nothing send nothing.
func (h *Hub) Broadcast(result sim.LoopStepResult) {
	var payload any
	switch {
	case result.Reset:
		payload = stateMessage{Type: TypeState, Tick: result.Tick, State: h.sim.Snapshot()}
	case result.Delta.Empty():
		return
	default:
		payload = deltaMessage{Type: TypeDelta, Tick: result.Tick, Delta: result.Delta}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("failed to marshal step %d: %v", result.Tick, err)
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.write(data); err != nil {
			h.logger.Printf("failed to send step %d to %d: %v", result.Tick, sub.id, err)
			h.Disconnect(sub)
			continue
		}
		h.metrics.Add(metricBroadcastBytes, uint64(len(data)))
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[uint64]*subscriber)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.mu.Lock()
		sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		sub.mu.Unlock()
		sub.conn.Close()
	}
	h.metrics.Store(metricSubscribers, 0)
}
