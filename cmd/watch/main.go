// Command watch follows a simulation session live over the WebSocket feed
// and prints the board after every update.
//
// Watch an existing session:
//
//	watch -session abc12345
//
// Or create a session from a layout and watch it while another client ticks it:
//
//	watch -config crossing
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/service"
	hub "github.com/wricardo/mcp-training/minecarts/transport/websocket"
)

var (
	serverAddr = flag.String("server", "localhost:8080", "Simulator server host:port")
	sessionID  = flag.String("session", "", "Session to watch")
	configName = flag.String("config", "", "Create a session from this layout when -session is empty")
)

func main() {
	flag.Parse()

	id := *sessionID
	if id == "" {
		if *configName == "" {
			log.Fatal("Either -session or -config is required")
		}
		created, err := createSession(&http.Client{Timeout: 10 * time.Second}, *serverAddr, *configName)
		if err != nil {
			log.Fatalf("Failed to create session: %v", err)
		}
		id = created
		log.Printf("Created session %s (config: %s)", id, *configName)
	}

	conn, err := connect(*serverAddr, id)
	if err != nil {
		log.Fatalf("WebSocket connection failed: %v", err)
	}
	defer conn.Close()
	log.Printf("Watching session %s", id)

	if err := watch(conn, os.Stdout); err != nil {
		log.Fatalf("Watch stopped: %v", err)
	}
}

// createSession asks the server for a new session and returns its ID
func createSession(client *http.Client, addr, config string) (string, error) {
	body, err := json.Marshal(map[string]string{"config_id": config})
	if err != nil {
		return "", err
	}

	resp, err := client.Post(fmt.Sprintf("http://%s/api/sessions", addr), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var info service.SessionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("failed to parse session response: %v (body: %s)", err, string(data))
	}
	return info.ID, nil
}

func connect(addr, id string) (*websocket.Conn, error) {
	wsURL := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	q := wsURL.Query()
	q.Set("session", id)
	wsURL.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	return conn, err
}

// watch prints updates until the simulation finishes or the connection drops
func watch(conn *websocket.Conn, out io.Writer) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg hub.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WebSocket JSON parse error: %v", err)
			continue
		}

		if msg.Event == hub.EventCollision {
			printCollision(out, msg.Data)
			continue
		}
		if msg.SimState == nil {
			continue
		}

		printState(out, msg.SimState)
		if msg.SimState.Finished {
			return nil
		}
	}
}

func printState(out io.Writer, state *engine.SimState) {
	fmt.Fprintf(out, "Tick %d | live carts: %d\n", state.Tick, state.LiveCarts)
	for _, row := range state.Grid {
		fmt.Fprintln(out, row)
	}
	if state.Finished {
		fmt.Fprintf(out, "Finished (%s): %s\n", state.StopReason, state.Message)
	}
}

func printCollision(out io.Writer, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	var ev service.SimEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Position == nil {
		return
	}
	fmt.Fprintf(out, "Crash at %s on tick %d\n", ev.Position, ev.Tick)
}
