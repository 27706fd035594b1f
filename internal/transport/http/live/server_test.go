package livehttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"augur/internal/agent"
	"augur/internal/history"
	"augur/internal/store/decisionlog"
)

type fixedStatus agent.Status

func (f fixedStatus) Status() agent.Status { return agent.Status(f) }

type fakeLogs struct {
	got  decisionlog.Query
	recs []decisionlog.Record
	err  error
}

func (f *fakeLogs) ListDecisions(_ context.Context, q decisionlog.Query) ([]decisionlog.Record, error) {
	f.got = q
	return f.recs, f.err
}

func newTestServer(t *testing.T, cfg ServerConfig) http.Handler {
	t.Helper()
	if cfg.Status == nil {
		cfg.Status = fixedStatus{Phase: agent.PhaseWatching}
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv.Handler()
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestNewServer_RequiresStatus(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthAndStatus(t *testing.T) {
	h := newTestServer(t, ServerConfig{Status: fixedStatus{
		Phase:       agent.PhaseJoined,
		GameID:      "g1",
		Predictions: map[string]int{"A": 1, "B": -1},
		Breaker:     "closed",
	}})

	rec, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = get(t, h, "/api/live/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "joined", body["phase"])
	assert.Equal(t, "g1", body["game_id"])
	assert.Equal(t, map[string]any{"A": 1.0, "B": -1.0}, body["predictions"])
}

func TestHistoryTail(t *testing.T) {
	store := history.NewMemory()
	for _, sym := range []string{"A", "B", "C", "D"} {
		require.NoError(t, store.Append(context.Background(), history.Entry{GameID: "g", Symbol: sym, Prediction: 1}))
	}
	h := newTestServer(t, ServerConfig{History: store})

	rec, body := get(t, h, "/api/live/history?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, body["total"])
	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "C", entries[0].(map[string]any)["symbol"])
	assert.Equal(t, "D", entries[1].(map[string]any)["symbol"])
}

func TestHistoryUnavailable(t *testing.T) {
	rec, _ := get(t, newTestServer(t, ServerConfig{}), "/api/live/history")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDecisions(t *testing.T) {
	logs := &fakeLogs{recs: []decisionlog.Record{{ID: 7, TraceID: "t1", GameID: "g1", Selections: map[string]int{"A": 1}}}}
	h := newTestServer(t, ServerConfig{Logs: logs})

	rec, body := get(t, h, "/api/live/decisions?game_id=g1&limit=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "g1", logs.got.GameID)
	assert.Equal(t, maxListLimit, logs.got.Limit)
	records := body["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "t1", records[0].(map[string]any)["trace_id"])

	logs.err = errors.New("db locked")
	rec, body = get(t, h, "/api/live/decisions")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "db locked", body["error"])
	assert.Equal(t, defaultListLimit, logs.got.Limit)
}

func TestLogs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "augur.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))
	h := newTestServer(t, ServerConfig{LogPaths: map[string]string{"app": path, "llm": ""}})

	rec, body := get(t, h, "/api/live/logs?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "app", body["name"])
	assert.Equal(t, []any{"two", "three"}, body["lines"])
	assert.Equal(t, []any{"app"}, body["available"])
}
