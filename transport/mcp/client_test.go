package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/service"
	"github.com/wricardo/mcp-training/minecarts/game/track"
)

var crossingLayout = []string{
	`/->-\        `,
	`|   |  /----\`,
	`| /-+--+-\  |`,
	`| | |  | v  |`,
	`\-+-/  \-+--/`,
	`  \------/   `,
}

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("Expected result, got nil")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL + "/")

	if client.baseURL != baseURL {
		t.Errorf("Expected baseURL %s, got %s", baseURL, client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "ab12", "tick": 3})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]interface{}
	if err := client.apiCall(t.Context(), "GET", "/api/sessions/ab12", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["id"] != "ab12" {
		t.Errorf("Expected id ab12, got %v", response["id"])
	}
}

func TestClient_apiCall_Errors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1")
		if err := client.apiCall(t.Context(), "GET", "/api", nil, nil); err == nil {
			t.Error("Expected error for unreachable server")
		}
	})

	t.Run("plain HTTP error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(t.Context(), "GET", "/api", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "API error: 500") {
			t.Errorf("Expected 'API error: 500', got: %v", err)
		}
	})

	t.Run("JSON error message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "session not found"})
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(t.Context(), "GET", "/api", nil, nil)
		if err == nil || err.Error() != "session not found" {
			t.Errorf("Expected 'session not found', got: %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		if err := NewClient(server.URL).apiCall(ctx, "GET", "/api", nil, nil); err == nil {
			t.Error("Expected error for cancelled context")
		}
	})
}

func TestClient_handleCreateSession(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions" {
			t.Errorf("Expected POST /api/sessions, got %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(service.SessionInfo{
			ID:         "ab12",
			ConfigName: "crossing",
			SimState:   &engine.SimState{Mode: engine.ModeCollision, LiveCarts: 2, Grid: crossingLayout},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleCreateSession(t.Context(), toolRequest("create_session", map[string]interface{}{
		"config_id": "crossing",
	}))
	if err != nil {
		t.Fatalf("handleCreateSession failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Created session: ab12") {
		t.Errorf("Expected session ID in result, got: %s", text)
	}
	if gotBody["config_id"] != "crossing" {
		t.Errorf("Expected config_id crossing to be sent, got %v", gotBody)
	}
}

func TestClient_handleTick(t *testing.T) {
	tests := []struct {
		name          string
		args          map[string]interface{}
		expectedTicks float64
		expectedReset bool
	}{
		{"default one tick", map[string]interface{}{"session_id": "ab12"}, 1, false},
		{"bulk with reset", map[string]interface{}{"session_id": "ab12", "ticks": float64(14), "reset": true}, 14, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/sessions/ab12/tick" {
					t.Errorf("Unexpected path %s", r.URL.Path)
				}
				var body map[string]interface{}
				json.NewDecoder(r.Body).Decode(&body)
				if body["ticks"] != tt.expectedTicks {
					t.Errorf("Expected ticks %v, got %v", tt.expectedTicks, body["ticks"])
				}
				if body["reset"] != tt.expectedReset {
					t.Errorf("Expected reset %v, got %v", tt.expectedReset, body["reset"])
				}
				pos := track.Position{X: 7, Y: 3}
				json.NewEncoder(w).Encode(service.TickResult{
					TicksExecuted:  int(tt.expectedTicks),
					RequestedTicks: int(tt.expectedTicks),
					Events: []service.SimEvent{
						{Type: "collision", Tick: 14, Message: "Carts 0 and 1 collided at 7,3", Position: &pos},
					},
					SimState: &engine.SimState{Tick: 14, Finished: true, StopReason: engine.StopCollisionDetected, Result: &pos},
					Finished: true,
				})
			}))
			defer server.Close()

			result, err := NewClient(server.URL).handleTick(t.Context(), toolRequest("tick", tt.args))
			if err != nil {
				t.Fatalf("handleTick failed: %v", err)
			}
			text := resultText(t, result)
			for _, want := range []string{"Ticks executed:", "collided at 7,3", "FINISHED (collision_detected) at 7,3"} {
				if !strings.Contains(text, want) {
					t.Errorf("Expected %q in result, got: %s", want, text)
				}
			}
		})
	}
}

func TestClient_handleRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(service.RunResult{
			Outcome: &engine.RunResult{
				Mode:       engine.ModeLastCart,
				StopReason: engine.StopLastCart,
				Position:   &track.Position{X: 6, Y: 4},
				Ticks:      3,
				LiveCarts:  1,
			},
			TicksExecuted: 3,
			Answer:        "6 4",
		})
	}))
	defer server.Close()

	result, err := NewClient(server.URL).handleRun(t.Context(), toolRequest("run", map[string]interface{}{"session_id": "ab12"}))
	if err != nil {
		t.Fatalf("handleRun failed: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Answer: 6 4") {
		t.Errorf("Expected answer in result, got: %s", text)
	}
}

func TestClient_handleErrorResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session not found: zz99"})
	}))
	defer server.Close()

	result, err := NewClient(server.URL).handleSimState(t.Context(), toolRequest("sim_state", map[string]interface{}{"session_id": "zz99"}))
	if err != nil {
		t.Fatalf("Tool errors should be reported in the result, got %v", err)
	}
	if !result.IsError {
		t.Error("Expected an error result")
	}
	if text := resultText(t, result); !strings.Contains(text, "zz99") {
		t.Errorf("Expected error message, got: %s", text)
	}
}

func TestClient_handleRender(t *testing.T) {
	board := strings.Join(crossingLayout, "\n")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(board + "\n"))
	}))
	defer server.Close()

	result, err := NewClient(server.URL).handleRender(t.Context(), toolRequest("render", map[string]interface{}{"session_id": "ab12"}))
	if err != nil {
		t.Fatalf("handleRender failed: %v", err)
	}
	if text := resultText(t, result); text != board {
		t.Errorf("Expected rendered board, got:\n%s", text)
	}
}

func TestClient_handleTickHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "5" || q.Get("order") != "asc" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(service.HistoryResponse{
			Ticks: []engine.TickReport{
				{Tick: 6, LiveCarts: 2},
				{Tick: 7, LiveCarts: 0, Collisions: []track.Collision{{Tick: 7, Position: track.Position{X: 3, Y: 0}}}},
			},
			TotalTicks: 7,
			Page:       2,
			PageSize:   5,
			TotalPages: 2,
		})
	}))
	defer server.Close()

	result, err := NewClient(server.URL).handleTickHistory(t.Context(), toolRequest("tick_history", map[string]interface{}{
		"session_id": "ab12",
		"page":       float64(2),
		"limit":      float64(5),
		"order":      "asc",
	}))
	if err != nil {
		t.Fatalf("handleTickHistory failed: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "Tick 7: 0 live carts, crash at 3,0") {
		t.Errorf("Expected crash line, got: %s", text)
	}
}

func TestDescribeTile(t *testing.T) {
	state := &engine.SimState{
		Carts: []track.CartState{
			{ID: 0, Position: track.Position{X: 2, Y: 0}, Direction: track.East},
		},
		Collisions: []track.Collision{{Tick: 14, Position: track.Position{X: 7, Y: 3}, CartIDs: [2]int{0, 1}}},
	}

	tests := []struct {
		name string
		x, y int
		want []string
	}{
		{"cart on straight", 2, 0, []string{"'-' straight", "east-west", "Cart #0 is here"}},
		{"backslash curve", 0, 4, []string{"'\\' curve"}},
		{"intersection", 4, 2, []string{"'+' intersection"}},
		{"crash site", 7, 3, []string{"'|' straight", "crashed here on tick 14"}},
		{"empty", 1, 1, []string{"empty", "derail"}},
		{"outside", 40, 0, []string{"outside the grid (13x6)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describeTile(crossingLayout, state, tt.x, tt.y)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("Expected %q in %q", want, got)
				}
			}
		})
	}
}

func TestFormatSimState(t *testing.T) {
	if got := formatSimState(nil); got != "No simulation state available" {
		t.Errorf("Unexpected nil state text: %s", got)
	}

	state := &engine.SimState{
		Tick:      3,
		Mode:      engine.ModeLastCart,
		LiveCarts: 1,
		Grid:      []string{"->-"},
		Carts: []track.CartState{
			{ID: 4, Position: track.Position{X: 6, Y: 4}, Direction: track.North, TurnIndex: 1},
			{ID: 5, Destroyed: true},
		},
		Finished:   true,
		StopReason: engine.StopLastCart,
		Result:     &track.Position{X: 6, Y: 4},
		Closest:    &engine.CartPair{CartIDs: [2]int{4, 7}, Distance: 3},
	}
	got := formatSimState(state)
	for _, want := range []string{"Tick: 3 | Mode: last_cart | Live carts: 1", "#4 at 6,4", "next turn: straight", "FINISHED (last_cart) at 6,4", "Headings: north 1\n", "Closest carts: #4 and #7, 3 apart"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "#5") {
		t.Error("Destroyed carts should not be listed")
	}
}

func TestClient_handleRules(t *testing.T) {
	result, err := NewClient("http://localhost:8080").handleRules(t.Context(), toolRequest("simulation_rules", nil))
	if err != nil {
		t.Fatalf("handleRules failed: %v", err)
	}
	text := resultText(t, result)
	for _, want := range []string{"CURVES:", "INTERSECTIONS:", "COLLISIONS:", `"x,y"`, `"x y"`} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in rules", want)
		}
	}
}

func TestClient_handleDeleteSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/sessions/ab12" {
			t.Errorf("Expected DELETE /api/sessions/ab12, got %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"message": "Session ab12 deleted"})
	}))
	defer server.Close()

	result, err := NewClient(server.URL).handleDeleteSession(t.Context(), toolRequest("delete_session", map[string]interface{}{"session_id": "ab12"}))
	if err != nil {
		t.Fatalf("handleDeleteSession failed: %v", err)
	}
	if text := resultText(t, result); text != "Session ab12 deleted" {
		t.Errorf("Expected delete confirmation, got: %s", text)
	}
}

func TestClient_Tools(t *testing.T) {
	tools := NewClient("http://localhost:8080").tools()

	expected := []string{
		"create_session", "list_sessions", "get_session", "delete_session", "sim_state",
		"tick", "run", "reset_sim", "tick_history", "render", "describe_tile",
		"list_configs", "simulation_rules",
	}
	if len(tools) != len(expected) {
		t.Fatalf("Expected %d tools, got %d", len(expected), len(tools))
	}
	for i, name := range expected {
		if tools[i].Tool.Name != name {
			t.Errorf("Expected tool %d to be %s, got %s", i, name, tools[i].Tool.Name)
		}
		if tools[i].Handler == nil {
			t.Errorf("Tool %s has no handler", name)
		}
	}

	for _, tool := range tools {
		if tool.Tool.Name != "describe_tile" {
			continue
		}
		required := strings.Join(tool.Tool.InputSchema.Required, ",")
		if required != "session_id,x,y" {
			t.Errorf("Expected describe_tile to require session_id,x,y, got %s", required)
		}
	}
}

func TestClient_handleDescribeTile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(service.SessionInfo{
			ID:           "ab12",
			LayoutConfig: &engine.LayoutConfig{Layout: crossingLayout},
			SimState:     &engine.SimState{},
		})
	}))
	defer server.Close()
	client := NewClient(server.URL)

	result, err := client.handleDescribeTile(t.Context(), toolRequest("describe_tile", map[string]interface{}{
		"session_id": "ab12", "x": float64(4), "y": float64(2),
	}))
	if err != nil {
		t.Fatalf("handleDescribeTile failed: %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "'+' intersection") {
		t.Errorf("Expected intersection description, got: %s", text)
	}

	result, _ = client.handleDescribeTile(t.Context(), toolRequest("describe_tile", map[string]interface{}{
		"session_id": "ab12", "x": float64(4),
	}))
	if !result.IsError {
		t.Error("Expected an error result without y")
	}
}
