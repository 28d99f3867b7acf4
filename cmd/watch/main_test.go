package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/service"
	"github.com/wricardo/mcp-training/minecarts/game/track"
	hub "github.com/wricardo/mcp-training/minecarts/transport/websocket"
)

// feedServer upgrades /ws and writes msgs in order
func feedServer(t *testing.T, msgs []hub.Message) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("session") != "abc12345" {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range msgs {
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
		// keep the connection open until the client hangs up
		conn.ReadMessage()
	}))
}

func TestWatch(t *testing.T) {
	crash := track.Position{X: 3, Y: 0}
	msgs := []hub.Message{
		{
			SessionID: "abc12345",
			SimState:  &engine.SimState{Tick: 1, LiveCarts: 2, Grid: []string{"--><--"}},
		},
		{
			SessionID: "abc12345",
			Event:     hub.EventCollision,
			Data:      service.SimEvent{Type: hub.EventCollision, Tick: 2, Position: &crash},
		},
		{
			SessionID: "abc12345",
			SimState: &engine.SimState{
				Tick:       2,
				Grid:       []string{"---X--"},
				Finished:   true,
				StopReason: engine.StopCollisionDetected,
				Result:     &crash,
				Message:    "Crash at 3,0 on tick 2",
			},
		},
	}

	server := feedServer(t, msgs)
	defer server.Close()

	conn, err := connect(strings.TrimPrefix(server.URL, "http://"), "abc12345")
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	var out bytes.Buffer
	if err := watch(conn, &out); err != nil {
		t.Fatalf("Expected watch to end cleanly, got %v", err)
	}

	expected := "Tick 1 | live carts: 2\n--><--\n" +
		"Crash at 3,0 on tick 2\n" +
		"Tick 2 | live carts: 0\n---X--\n" +
		"Finished (collision_detected): Crash at 3,0 on tick 2\n"
	if out.String() != expected {
		t.Errorf("Expected output:\n%s\ngot:\n%s", expected, out.String())
	}
}

func TestConnect_UnknownSession(t *testing.T) {
	server := feedServer(t, nil)
	defer server.Close()

	if _, err := connect(strings.TrimPrefix(server.URL, "http://"), "missing"); err == nil {
		t.Error("Expected error for unknown session")
	}
}

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		expectedID string
		wantErr    bool
	}{
		{"created", http.StatusCreated, `{"id":"abc12345","config_name":"Crossing"}`, "abc12345", false},
		{"unknown config", http.StatusNotFound, `{"error":"configuration not found"}`, "", true},
		{"bad body", http.StatusOK, `not json`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/api/sessions" {
					t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
				}
				var req map[string]string
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["config_id"] != "crossing" {
					t.Errorf("Expected config_id crossing, got %v (%v)", req, err)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			id, err := createSession(server.Client(), strings.TrimPrefix(server.URL, "http://"), "crossing")
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if id != tt.expectedID {
				t.Errorf("Expected session %s, got %s", tt.expectedID, id)
			}
		})
	}
}
