package net

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/seawatts/grid-sub000/internal/net/ws"
	"github.com/seawatts/grid-sub000/internal/persistence"
	"github.com/seawatts/grid-sub000/internal/sim"
	"github.com/seawatts/grid-sub000/internal/telemetry"
	"github.com/seawatts/grid-sub000/internal/waves"
)

const (
	defaultCommandTimeout = 5 * time.Second
	maxCommandBody        = 64 << 10
)

var errCommandTimeout = errors.New("command not applied in time")

type HTTPHandlerConfig struct {
	Logger telemetry.Logger
	// Store lists saves. Save and load go through the loop either way.
	Store persistence.Store
	// Socket serves /ws when set.
	Socket *ws.Handler
	// CommandTimeout bounds how long a request waits for the loop.
	CommandTimeout time.Duration
}

type commandResponse struct {
	Status  string          `json:"status"`
	Command sim.CommandType `json:"command"`
	Slot    string          `json:"slot,omitempty"`
	Tick    uint64          `json:"tick"`
}

func NewHTTPHandler(loop ws.Simulation, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(nil)
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/state", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		payload := struct {
			Tick  uint64 `json:"tick"`
			State any    `json:"state"`
		}{Tick: loop.Tick(), State: loop.Snapshot()}
		writeJSON(w, logger, payload)
	})

	// /waves/next previews the upcoming wave; ?wave=N previews a later one.
	mux.HandleFunc("/waves/next", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		st := loop.Snapshot()
		wave := st.Wave + 1
		if raw := r.URL.Query().Get("wave"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				httpError(w, "wave must be a positive integer", nethttp.StatusBadRequest)
				return
			}
			wave = n
		}
		writeJSON(w, logger, waves.Preview(st, wave))
	})

	slotCommand := func(kind sim.CommandType) nethttp.HandlerFunc {
		return func(w nethttp.ResponseWriter, r *nethttp.Request) {
			if r.Method != nethttp.MethodPost {
				httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
				return
			}
			slot := r.URL.Query().Get("slot")
			if slot == "" {
				slot = "default"
			}
			if err := persistence.ValidateSlot(slot); err != nil {
				httpError(w, err.Error(), nethttp.StatusBadRequest)
				return
			}
			result, err := submit(r.Context(), loop, sim.Command{Type: kind, Slot: &sim.SlotCommand{Slot: slot}}, timeout)
			if err == nil {
				err = result.Err
			}
			if err != nil {
				logger.Printf("%s slot %q failed: %v", kind, slot, err)
				httpError(w, err.Error(), statusFor(err))
				return
			}
			writeJSON(w, logger, commandResponse{Status: "ok", Command: kind, Slot: slot, Tick: loop.Tick()})
		}
	}
	mux.HandleFunc("/save", slotCommand(sim.CommandSave))
	mux.HandleFunc("/load", slotCommand(sim.CommandLoad))

	mux.HandleFunc("/saves", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.Store == nil {
			httpError(w, sim.ErrNoPersistence.Error(), nethttp.StatusServiceUnavailable)
			return
		}
		saves, err := cfg.Store.List(r.Context())
		if err != nil {
			logger.Printf("failed to list saves: %v", err)
			httpError(w, "failed to list saves", nethttp.StatusInternalServerError)
			return
		}
		if saves == nil {
			saves = []persistence.Summary{}
		}
		writeJSON(w, logger, struct {
			Saves []persistence.Summary `json:"saves"`
		}{Saves: saves})
	})

	mux.HandleFunc("/command", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var cmd sim.Command
		if err := json.NewDecoder(io.LimitReader(r.Body, maxCommandBody)).Decode(&cmd); err != nil {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
		if cmd.Type == "" {
			httpError(w, "missing command type", nethttp.StatusBadRequest)
			return
		}
		cmd.IssuedAt = time.Time{}
		result, err := submit(r.Context(), loop, cmd, timeout)
		if err == nil {
			err = result.Err
		}
		if err != nil {
			httpError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, logger, commandResponse{Status: "ok", Command: cmd.Type, Tick: loop.Tick()})
	})

	if cfg.Socket != nil {
		mux.HandleFunc("/ws", cfg.Socket.Handle)
	}

	return mux
}

// submit stages cmd and waits for the loop to apply it.
func submit(ctx context.Context, loop ws.Simulation, cmd sim.Command, timeout time.Duration) (sim.CommandResult, error) {
	done := make(chan sim.CommandResult, 1)
	cmd.Reply = func(result sim.CommandResult) {
		done <- result
	}
	loop.Enqueue(cmd)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return sim.CommandResult{}, ctx.Err()
	case <-timer.C:
		return sim.CommandResult{}, errCommandTimeout
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, persistence.ErrSlotNotFound):
		return nethttp.StatusNotFound
	case errors.Is(err, persistence.ErrInvalidSlot),
		errors.Is(err, persistence.ErrUnsupportedVersion),
		errors.Is(err, sim.ErrUnknownCommand),
		errors.Is(err, sim.ErrMissingPayload):
		return nethttp.StatusBadRequest
	case errors.Is(err, sim.ErrNoPersistence), errors.Is(err, errCommandTimeout):
		return nethttp.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nethttp.StatusRequestTimeout
	default:
		return nethttp.StatusConflict
	}
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
