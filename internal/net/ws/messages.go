package ws

import (
	"github.com/seawatts/grid-sub000/internal/sim"
	"github.com/seawatts/grid-sub000/internal/state"
)

const (
	TypeState   = "state"
	TypeDelta   = "delta"
	TypeCommand = "command"
	TypeAck     = "ack"
	TypeError   = "error"
)

// stateMessage carries a full snapshot. It is sent once on connect and again
// whenever the simulation state is replaced by a load.
type stateMessage struct {
	Type  string          `json:"type"`
	Tick  uint64          `json:"tick"`
	State state.GameState `json:"state"`
}

// deltaMessage carries the aggregated changes of one loop step.
type deltaMessage struct {
	Type  string      `json:"type"`
	Tick  uint64      `json:"tick"`
	Delta state.Delta `json:"delta"`
}

type ackMessage struct {
	Type    string          `json:"type"`
	Command sim.CommandType `json:"command"`
}

type errorMessage struct {
	Type    string          `json:"type"`
	Command sim.CommandType `json:"command,omitempty"`
	Message string          `json:"message"`
}

type clientMessage struct {
	Type    string       `json:"type"`
	Command *sim.Command `json:"command"`
}
