package net

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seawatts/grid-sub000/internal/net/ws"
	"github.com/seawatts/grid-sub000/internal/persistence"
	"github.com/seawatts/grid-sub000/internal/sim"
	"github.com/seawatts/grid-sub000/internal/state"
	"github.com/seawatts/grid-sub000/internal/waves"
)

func corridor() state.GameState {
	return state.New(state.Grid{
		Width:  10,
		Height: 5,
		Starts: []state.Position{{X: 0, Y: 2}},
		Goals:  []state.Position{{X: 9, Y: 2}},
	}, 200, 20, 0)
}

func newServer(t *testing.T, store persistence.Store) (*httptest.Server, *sim.Loop) {
	t.Helper()
	hooks := sim.LoopHooks{}
	if store != nil {
		hooks.Save = persistence.SaveFunc(store, nil)
		hooks.Load = persistence.LoadFunc(store)
	}
	engine := sim.NewEngine(sim.Deps{}, sim.Config{Seed: "http"})
	loop := sim.NewLoop(engine, corridor(), sim.LoopConfig{TickRate: 50}, hooks)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	hub := ws.NewHub(loop, nil, nil)
	srv := httptest.NewServer(NewHTTPHandler(loop, HTTPHandlerConfig{
		Store:          store,
		Socket:         ws.NewHandler(hub, ws.HandlerConfig{}),
		CommandTimeout: 2 * time.Second,
	}))
	t.Cleanup(srv.Close)
	return srv, loop
}

func do(t *testing.T, method, url string, body string) (int, string) {
	t.Helper()
	req, err := nethttp.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := nethttp.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestHealth(t *testing.T) {
	srv, _ := newServer(t, nil)

	code, body := do(t, nethttp.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, "ok", body)
}

func TestStateReturnsSnapshot(t *testing.T) {
	srv, _ := newServer(t, nil)

	code, body := do(t, nethttp.MethodGet, srv.URL+"/state", "")
	require.Equal(t, nethttp.StatusOK, code)
	var payload struct {
		State state.GameState `json:"state"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, 200, payload.State.Money)
	assert.Equal(t, 20, payload.State.Lives)
	assert.Equal(t, state.StatusPlaying, payload.State.Status)

	code, _ = do(t, nethttp.MethodPost, srv.URL+"/state", "")
	assert.Equal(t, nethttp.StatusMethodNotAllowed, code)
}

func TestCommandEndpoint(t *testing.T) {
	srv, loop := newServer(t, nil)

	code, body := do(t, nethttp.MethodPost, srv.URL+"/command",
		`{"type":"placeTower","tower":{"type":"basic","position":{"x":4,"y":0}}}`)
	require.Equal(t, nethttp.StatusOK, code, body)
	assert.Contains(t, body, `"command":"placeTower"`)
	assert.Len(t, loop.Snapshot().Towers, 1)
	assert.Equal(t, 150, loop.Snapshot().Money)

	code, body = do(t, nethttp.MethodPost, srv.URL+"/command",
		`{"type":"placeTower","tower":{"type":"basic","position":{"x":4,"y":0}}}`)
	assert.Equal(t, nethttp.StatusConflict, code)
	assert.Contains(t, body, "cell occupied")

	code, _ = do(t, nethttp.MethodPost, srv.URL+"/command", `{"type":"teleport"}`)
	assert.Equal(t, nethttp.StatusBadRequest, code)

	code, _ = do(t, nethttp.MethodPost, srv.URL+"/command", `{`)
	assert.Equal(t, nethttp.StatusBadRequest, code)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store, err := persistence.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	srv, loop := newServer(t, store)

	code, body := do(t, nethttp.MethodPost, srv.URL+"/save?slot=alpha", "")
	require.Equal(t, nethttp.StatusOK, code, body)

	code, body = do(t, nethttp.MethodPost, srv.URL+"/command",
		`{"type":"placeTower","tower":{"type":"basic","position":{"x":4,"y":0}}}`)
	require.Equal(t, nethttp.StatusOK, code, body)
	require.Equal(t, 150, loop.Snapshot().Money)

	code, body = do(t, nethttp.MethodPost, srv.URL+"/load?slot=alpha", "")
	require.Equal(t, nethttp.StatusOK, code, body)
	assert.Equal(t, 200, loop.Snapshot().Money)
	assert.Empty(t, loop.Snapshot().Towers)

	code, body = do(t, nethttp.MethodGet, srv.URL+"/saves", "")
	require.Equal(t, nethttp.StatusOK, code)
	var listing struct {
		Saves []persistence.Summary `json:"saves"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &listing))
	require.Len(t, listing.Saves, 1)
	assert.Equal(t, "alpha", listing.Saves[0].Slot)
}

func TestSaveAndLoadErrors(t *testing.T) {
	store, err := persistence.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	srv, _ := newServer(t, store)

	code, _ := do(t, nethttp.MethodPost, srv.URL+"/load?slot=missing", "")
	assert.Equal(t, nethttp.StatusNotFound, code)

	code, _ = do(t, nethttp.MethodPost, srv.URL+"/save?slot=../etc", "")
	assert.Equal(t, nethttp.StatusBadRequest, code)

	code, _ = do(t, nethttp.MethodGet, srv.URL+"/save", "")
	assert.Equal(t, nethttp.StatusMethodNotAllowed, code)
}

func TestPersistenceUnavailable(t *testing.T) {
	srv, _ := newServer(t, nil)

	code, _ := do(t, nethttp.MethodPost, srv.URL+"/save", "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, code)

	code, _ = do(t, nethttp.MethodGet, srv.URL+"/saves", "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, code)
}

func TestNextWavePreview(t *testing.T) {
	srv, loop := newServer(t, nil)

	code, body := do(t, nethttp.MethodGet, srv.URL+"/waves/next", "")
	require.Equal(t, nethttp.StatusOK, code, body)
	var info waves.Info
	require.NoError(t, json.Unmarshal([]byte(body), &info))
	assert.Equal(t, loop.Snapshot().Wave+1, info.Wave)
	assert.Equal(t, waves.EnemyCount(1), info.Count)
	assert.False(t, info.IsBossWave)

	code, body = do(t, nethttp.MethodGet, srv.URL+"/waves/next?wave=10", "")
	require.Equal(t, nethttp.StatusOK, code, body)
	require.NoError(t, json.Unmarshal([]byte(body), &info))
	assert.Equal(t, 10, info.Wave)
	assert.True(t, info.IsBossWave)
	assert.Equal(t, 1, info.Composition[state.EnemyBoss])
}

func TestNextWavePreviewErrors(t *testing.T) {
	srv, _ := newServer(t, nil)

	code, _ := do(t, nethttp.MethodGet, srv.URL+"/waves/next?wave=abc", "")
	assert.Equal(t, nethttp.StatusBadRequest, code)
	code, _ = do(t, nethttp.MethodGet, srv.URL+"/waves/next?wave=0", "")
	assert.Equal(t, nethttp.StatusBadRequest, code)
	code, _ = do(t, nethttp.MethodPost, srv.URL+"/waves/next", "")
	assert.Equal(t, nethttp.StatusMethodNotAllowed, code)
}
