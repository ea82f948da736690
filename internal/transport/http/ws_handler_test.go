package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cuequiz-service/internal/app"
	"cuequiz-service/internal/catalog"
	"cuequiz-service/internal/domain"
	"cuequiz-service/internal/infra/memory"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.SessionStore) {
	t.Helper()
	store := memory.NewSessionStore()
	catalogs := memory.NewCatalogRepository(memory.NewStaticCatalogLoader(catalog.Defaults()), time.Minute)
	service := app.NewQuizService(store, catalogs, app.ServiceConfig{
		Options: app.Options{RevealDelay: 10 * time.Millisecond, LoadingDelay: 10 * time.Millisecond},
		Logger:  zerolog.Nop(),
	})
	wsHandler := NewWSHandler(service, catalog.DefaultID)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil reads messages until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(envelope) bool) envelope {
	t.Helper()
	for i := 0; i < 50; i++ {
		var msg envelope
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
	t.Fatalf("expected message not received")
	return envelope{}
}

func stateWhere(t *testing.T, pred func(domain.Snapshot) bool) func(envelope) bool {
	return func(msg envelope) bool {
		if msg.Type != "state" {
			return false
		}
		var snap domain.Snapshot
		if err := json.Unmarshal(msg.Payload, &snap); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		return pred(snap)
	}
}

func decodeState(t *testing.T, msg envelope) domain.Snapshot {
	t.Helper()
	var snap domain.Snapshot
	if err := json.Unmarshal(msg.Payload, &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return snap
}

func TestWebSocketQuizFlow(t *testing.T) {
	server, store := newTestServer(t)
	conn := dial(t, server, "?catalogId=leipzig")

	session := readUntil(t, conn, func(m envelope) bool { return m.Type == "session" })
	var info sessionPayload
	if err := json.Unmarshal(session.Payload, &info); err != nil || info.ID == "" {
		t.Fatalf("expected session id, got %s (%v)", session.Payload, err)
	}
	if _, ok := store.Get(info.ID); !ok {
		t.Fatalf("expected session tracked in store")
	}

	send(t, conn, "start", map[string]any{"videoCapability": true})
	readUntil(t, conn, func(m envelope) bool { return m.Type == "play" })
	readUntil(t, conn, stateWhere(t, func(s domain.Snapshot) bool { return s.Phase == domain.PhasePlaying }))

	send(t, conn, "timeupdate", map[string]any{"currentTime": 1, "duration": 40})
	readUntil(t, conn, stateWhere(t, func(s domain.Snapshot) bool { return s.Countdown == 1 }))

	send(t, conn, "timeupdate", map[string]any{"currentTime": 2.5, "duration": 40})
	msg := readUntil(t, conn, stateWhere(t, func(s domain.Snapshot) bool { return s.ActiveID == 1 }))
	if snap := decodeState(t, msg); snap.Active == nil || snap.Active.Prompt == "" {
		t.Fatalf("expected active question payload, got %+v", snap)
	}

	// Empty submit is silently ignored.
	send(t, conn, "submit", map[string]any{"questionId": 1})
	send(t, conn, "select", map[string]any{"questionId": 1, "value": "Berlin"})
	send(t, conn, "submit", map[string]any{"questionId": 1})
	readUntil(t, conn, stateWhere(t, func(s domain.Snapshot) bool { return s.Reveal && s.RevealCorrect }))
	readUntil(t, conn, stateWhere(t, func(s domain.Snapshot) bool { return !s.Reveal && s.ActiveID == domain.NoQuestion }))

	send(t, conn, "ended", nil)
	msg = readUntil(t, conn, stateWhere(t, func(s domain.Snapshot) bool { return s.Phase == domain.PhaseComplete }))
	snap := decodeState(t, msg)
	if snap.Summary == nil || snap.Summary.Correct != 1 || snap.Summary.Total != 5 || snap.Summary.Skipped != 4 {
		t.Fatalf("unexpected summary %+v", snap.Summary)
	}
}

func TestWebSocketPermissionDenied(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server, "")

	readUntil(t, conn, func(m envelope) bool { return m.Type == "session" })
	send(t, conn, "start", map[string]any{"videoCapability": false})
	readUntil(t, conn, func(m envelope) bool { return m.Type == "notice" })
	msg := readUntil(t, conn, stateWhere(t, func(s domain.Snapshot) bool { return s.Denied }))
	if snap := decodeState(t, msg); snap.Phase != domain.PhaseInstructions {
		t.Fatalf("expected instructions phase after denial, got %s", snap.Phase)
	}
}

func TestWebSocketUnknownCatalog(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server, "?catalogId=missing")

	msg := readUntil(t, conn, func(m envelope) bool { return true })
	if msg.Type != "error" {
		t.Fatalf("expected error, got %s", msg.Type)
	}
}

func TestWebSocketUnsupportedMessage(t *testing.T) {
	server, _ := newTestServer(t)
	conn := dial(t, server, "")

	readUntil(t, conn, func(m envelope) bool { return m.Type == "session" })
	send(t, conn, "rewind", nil)
	readUntil(t, conn, func(m envelope) bool { return m.Type == "error" })
}
