package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/gridlock/internal/coordinator"
	"github.com/louisbranch/gridlock/internal/game"
	"github.com/louisbranch/gridlock/internal/notifier"
	"github.com/louisbranch/gridlock/internal/rpc"
	"github.com/louisbranch/gridlock/internal/storage/sqlite"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "gridlock.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	n := notifier.New(store, time.Minute)
	coord := coordinator.New(store, n)
	dispatcher := rpc.NewDispatcher(coord, n, game.OriginUI)
	return New(dispatcher, n).Handler()
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestGetGameReturnsSnapshot(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/game", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var snapshot map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	for _, key := range []string{"id", "board", "currentTurn", "status", "moveHistory", "taunts"} {
		if _, ok := snapshot[key]; !ok {
			t.Fatalf("snapshot missing %q: %v", key, snapshot)
		}
	}
	if snapshot["status"] != string(game.StatusInProgress) {
		t.Fatalf("status = %v, want %q", snapshot["status"], game.StatusInProgress)
	}
}

func TestMoveEndpoint(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/move", strings.NewReader(`{"row":0,"col":0}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	// The same cell again is a domain rejection, not a protocol failure.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/move", strings.NewReader(`{"row":0,"col":0}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestMoveEndpointRejectsBadBody(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/move", strings.NewReader(`{broken`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTauntEndpoint(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/taunt", strings.NewReader(`{"message":"good luck"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/taunt", strings.NewReader(`{"message":"   "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestNewGameEndpoint(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/game", nil))
	var before map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &before); err != nil {
		t.Fatalf("unmarshal before: %v", err)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/game/new", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var result map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	state, ok := result["gameState"].(map[string]any)
	if !ok {
		t.Fatalf("gameState missing: %v", result)
	}
	if state["id"] == before["id"] {
		t.Fatal("restart must mint a new session id")
	}
}

func TestRPCEndpoint(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)

	body := `{"jsonrpc":"2.0","id":1,"method":"get_turn"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp rpc.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if string(resp.ID) != "1" {
		t.Fatalf("id = %s, want 1", resp.ID)
	}

	// Protocol errors still travel inside the envelope.
	body = `{"jsonrpc":"2.0","id":2,"method":"no_such_method"}`
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("expected method not found error")
	}
}

func TestEventsStream(t *testing.T) {
	t.Parallel()

	handler := newTestHandler(t)
	server := httptest.NewServer(handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}

	reader := bufio.NewReader(resp.Body)
	kind, data := readFrame(t, reader)
	if kind != string(notifier.KindSession) {
		t.Fatalf("first frame kind = %q, want %q", kind, notifier.KindSession)
	}
	var snapshot map[string]any
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		t.Fatalf("first frame data: %v", err)
	}
	if _, ok := snapshot["board"]; !ok {
		t.Fatalf("first frame missing board: %v", snapshot)
	}

	move := bytes.NewReader([]byte(`{"row":1,"col":1}`))
	moveResp, err := http.Post(server.URL+"/api/game/move", "application/json", move)
	if err != nil {
		t.Fatalf("post move: %v", err)
	}
	moveResp.Body.Close()

	seen := map[string]bool{}
	for !seen[string(notifier.KindActivityStarted)] || !seen[string(notifier.KindSession)] || !seen[string(notifier.KindActivityEnded)] {
		kind, _ := readFrame(t, reader)
		seen[kind] = true
	}
}

// readFrame consumes one SSE frame, skipping keep-alive comments.
func readFrame(t *testing.T, reader *bufio.Reader) (kind, data string) {
	t.Helper()

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		case line == "":
			if kind != "" || data != "" {
				return kind, data
			}
		}
	}
}
