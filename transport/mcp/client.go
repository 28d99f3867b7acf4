package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/service"
	"github.com/wricardo/mcp-training/minecarts/game/track"
)

const instructions = `Minecart Simulator - MCP Interface

Every tool proxies to the REST API server.

Carts (> v < ^) move along a track grid one step per tick. In collision mode
the simulation stops at the first crash; in last_cart mode crashed carts are
removed until a single cart remains.

Typical flow: list_configs, create_session, then tick or run. Use
simulation_rules for the movement and turning rules.`

// Client exposes the REST API as MCP tools
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	c.mcpServer = server.NewMCPServer(
		"Minecart Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)
	c.mcpServer.AddTools(c.tools()...)
	return c
}

// GetMCPServer returns the MCP server holding the registered tools
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func withSessionID() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID"))
}

func (c *Client) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("create_session",
				mcp.WithDescription("Create a new simulation session with optional layout selection"),
				mcp.WithString("config_id", mcp.Description("ID of the layout config to use (optional, see list_configs)")),
			),
			Handler: c.handleCreateSession,
		},
		{
			Tool:    mcp.NewTool("list_sessions", mcp.WithDescription("List all active simulation sessions")),
			Handler: c.handleListSessions,
		},
		{
			Tool:    mcp.NewTool("get_session", mcp.WithDescription("Get details of a specific session"), withSessionID()),
			Handler: c.handleGetSession,
		},
		{
			Tool:    mcp.NewTool("delete_session", mcp.WithDescription("Delete a session and its stored copy"), withSessionID()),
			Handler: c.handleDeleteSession,
		},
		{
			Tool:    mcp.NewTool("sim_state", mcp.WithDescription("Get the current simulation state"), withSessionID()),
			Handler: c.handleSimState,
		},
		{
			Tool: mcp.NewTool("tick",
				mcp.WithDescription(fmt.Sprintf("Advance the simulation by one or more ticks (at most %d per call)", engine.MaxBulkTicks)),
				withSessionID(),
				mcp.WithNumber("ticks", mcp.Min(1), mcp.Description("Number of ticks to advance (default 1)")),
				mcp.WithBoolean("reset", mcp.Description("Reset before ticking")),
			),
			Handler: c.handleTick,
		},
		{
			Tool: mcp.NewTool("run",
				mcp.WithDescription("Run the simulation until it finishes and report the crash or survivor position"),
				withSessionID(),
				mcp.WithBoolean("reset", mcp.Description("Reset before running")),
			),
			Handler: c.handleRun,
		},
		{
			Tool:    mcp.NewTool("reset_sim", mcp.WithDescription("Reset the simulation to its initial layout"), withSessionID()),
			Handler: c.handleReset,
		},
		{
			Tool: mcp.NewTool("tick_history",
				mcp.WithDescription("Get the tick reports of a session"),
				withSessionID(),
				mcp.WithNumber("page", mcp.Min(1), mcp.Description("Page number")),
				mcp.WithNumber("limit", mcp.Min(1), mcp.Description("Items per page")),
				mcp.WithString("order", mcp.Enum("asc", "desc"), mcp.Description("Sort order by tick")),
			),
			Handler: c.handleTickHistory,
		},
		{
			Tool:    mcp.NewTool("render", mcp.WithDescription("Render the board as plain text"), withSessionID()),
			Handler: c.handleRender,
		},
		{
			Tool: mcp.NewTool("describe_tile",
				mcp.WithDescription("Describe the track piece at a coordinate and any cart standing on it"),
				withSessionID(),
				mcp.WithNumber("x", mcp.Required(), mcp.Description("Column (0-based)")),
				mcp.WithNumber("y", mcp.Required(), mcp.Description("Row (0-based)")),
			),
			Handler: c.handleDescribeTile,
		},
		{
			Tool:    mcp.NewTool("list_configs", mcp.WithDescription("List available layout configurations")),
			Handler: c.handleListConfigs,
		},
		{
			Tool:    mcp.NewTool("simulation_rules", mcp.WithDescription("Get the movement, turning and collision rules")),
			Handler: c.handleRules,
		},
	}
}

// do sends a request to the REST API. Responses of 400 and above become
// errors carrying the API's "error" message when it has one.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}

	defer resp.Body.Close()
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
		return nil, fmt.Errorf("%s", apiErr.Error)
	}
	return nil, fmt.Errorf("API error: %d", resp.StatusCode)
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func (c *Client) apiText(ctx context.Context, path string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// textOrError turns an API failure into an MCP error result
func textOrError(text string, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]string{}
	if configID := request.GetString("config_id", ""); configID != "" {
		body["config_id"] = configID
	}

	var info service.SessionInfo
	err := c.apiCall(ctx, http.MethodPost, "/api/sessions", body, &info)
	return textOrError(fmt.Sprintf("Created session: %s\nConfig: %s\n\n%s",
		info.ID, info.ConfigName, formatSimState(info.SimState)), err)
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var listing struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, http.MethodGet, "/api/sessions", nil, &listing); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", listing.Count)
	for _, info := range listing.Sessions {
		status := "running"
		if st := info.SimState; st != nil {
			status = fmt.Sprintf("tick %d, %d live carts", st.Tick, st.LiveCarts)
			if st.Finished {
				status = fmt.Sprintf("finished at tick %d (%s)", st.Tick, st.StopReason)
			}
		}
		fmt.Fprintf(&b, "- %s (Config: %s, Created: %s, %s)\n",
			info.ID, info.ConfigName, info.CreatedAt.Format("15:04:05"), status)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var info service.SessionInfo
	err := c.apiCall(ctx, http.MethodGet, sessionPath(request.GetString("session_id", ""), ""), nil, &info)
	return textOrError(formatSessionInfo(&info), err)
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var reply struct {
		Message string `json:"message"`
	}
	err := c.apiCall(ctx, http.MethodDelete, sessionPath(request.GetString("session_id", ""), ""), nil, &reply)
	return textOrError(reply.Message, err)
}

func (c *Client) handleSimState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var state engine.SimState
	err := c.apiCall(ctx, http.MethodGet, sessionPath(request.GetString("session_id", ""), "/state"), nil, &state)
	return textOrError(formatSimState(&state), err)
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]interface{}{
		"ticks": request.GetInt("ticks", 1),
		"reset": request.GetBool("reset", false),
	}

	var result service.TickResult
	err := c.apiCall(ctx, http.MethodPost, sessionPath(request.GetString("session_id", ""), "/tick"), body, &result)
	return textOrError(formatTickResult(&result), err)
}

func (c *Client) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body := map[string]bool{"reset": request.GetBool("reset", false)}

	var result service.RunResult
	err := c.apiCall(ctx, http.MethodPost, sessionPath(request.GetString("session_id", ""), "/run"), body, &result)
	return textOrError(formatRunResult(&result), err)
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var reply struct {
		Message string           `json:"message"`
		State   *engine.SimState `json:"state"`
	}
	err := c.apiCall(ctx, http.MethodPost, sessionPath(request.GetString("session_id", ""), "/reset"), nil, &reply)
	return textOrError(reply.Message+"\n\n"+formatSimState(reply.State), err)
}

func (c *Client) handleTickHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := url.Values{}
	if page := request.GetInt("page", 0); page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if limit := request.GetInt("limit", 0); limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if order := request.GetString("order", ""); order != "" {
		params.Set("order", order)
	}

	path := sessionPath(request.GetString("session_id", ""), "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	err := c.apiCall(ctx, http.MethodGet, path, nil, &history)
	return textOrError(formatHistory(&history), err)
}

func (c *Client) handleRender(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return textOrError(c.apiText(ctx, sessionPath(request.GetString("session_id", ""), "/render")))
}

func (c *Client) handleDescribeTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	_, hasX := args["x"]
	_, hasY := args["y"]
	if !hasX || !hasY {
		return mcp.NewToolResultError("x and y are required integers"), nil
	}
	x, y := request.GetInt("x", 0), request.GetInt("y", 0)

	var info service.SessionInfo
	if err := c.apiCall(ctx, http.MethodGet, sessionPath(request.GetString("session_id", ""), ""), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if info.LayoutConfig == nil {
		return mcp.NewToolResultError("session has no layout"), nil
	}
	return mcp.NewToolResultText(describeTile(info.LayoutConfig.Layout, info.SimState, x, y)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, http.MethodGet, "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (%s)\n  %s\n  Grid: %dx%d, Carts: %d, Intersections: %d, Mode: %s\n\n",
			config.ConfigID, config.Name, config.Description,
			config.Width, config.Height, config.Carts, config.Intersections, config.Mode)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules := `Minecart Simulator - Rules

TRACK:
  -  |   straight pieces
  /  \   curves
  +      intersection
  > v < ^  carts (standing on a straight piece)

TICKS:
Every tick the board is scanned top to bottom, left to right. Each cart found
moves exactly one step in its direction. A cart that already moved this tick
is not moved again when the scan reaches its new tile.

CURVES:
  /  east<->north, west<->south
  \  east<->south, west<->north

INTERSECTIONS:
Each cart cycles left, straight, right on successive intersections,
starting with left.

COLLISIONS:
A cart moving onto an occupied tile destroys both carts immediately.
  collision mode: the simulation stops after the first crash; answer "x,y"
  last_cart mode: crashed carts are removed and the simulation continues
                  until one cart is left; answer "x y"

Coordinates are 0-based: x is the column, y is the row.`

	return mcp.NewToolResultText(rules), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatSimState(session.SimState))
}

func formatSimState(state *engine.SimState) string {
	if state == nil {
		return "No simulation state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tick: %d | Mode: %s | Live carts: %d | Collisions: %d\n\n",
		state.Tick, state.Mode, state.LiveCarts, len(state.Collisions))

	for _, row := range state.Grid {
		b.WriteString(row)
		b.WriteString("\n")
	}

	if len(state.Carts) > 0 {
		b.WriteString("\nCarts:\n")
		for _, cart := range state.Carts {
			if cart.Destroyed {
				continue
			}
			fmt.Fprintf(&b, "  #%d at %s heading %s (next turn: %s)\n",
				cart.ID, cart.Position, cart.Direction, turnName(cart.TurnIndex))
		}
	}

	if headings := formatHeadings(engine.CountCartsByDirection(state)); headings != "" {
		fmt.Fprintf(&b, "Headings: %s\n", headings)
	}
	if state.Closest != nil {
		fmt.Fprintf(&b, "Closest carts: #%d and #%d, %d apart\n",
			state.Closest.CartIDs[0], state.Closest.CartIDs[1], state.Closest.Distance)
	}

	if state.Finished {
		b.WriteString("\nFINISHED")
		if state.StopReason != "" {
			fmt.Fprintf(&b, " (%s)", state.StopReason)
		}
		if state.Result != nil {
			fmt.Fprintf(&b, " at %s", state.Result)
		}
		b.WriteString("\n")
	}

	if state.Message != "" {
		fmt.Fprintf(&b, "\nMessage: %s", state.Message)
	}

	return b.String()
}

// formatHeadings lists live cart counts in east, south, west, north order
func formatHeadings(counts map[track.Direction]int) string {
	var parts []string
	for _, d := range []track.Direction{track.East, track.South, track.West, track.North} {
		if n := counts[d]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", d, n))
		}
	}
	return strings.Join(parts, ", ")
}

func turnName(index int) string {
	switch index {
	case 0:
		return "left"
	case 1:
		return "straight"
	case 2:
		return "right"
	}
	return "unknown"
}

func formatCollisions(events []service.SimEvent) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Type == "collision" {
			fmt.Fprintf(&b, "  tick %d: %s\n", ev.Tick, ev.Message)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "Collisions:\n" + b.String()
}

func formatTickResult(result *service.TickResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticks executed: %d/%d", result.TicksExecuted, result.RequestedTicks)
	if result.Truncated {
		fmt.Fprintf(&b, " (truncated to %d)", result.Limit)
	}
	b.WriteString("\n")

	if c := formatCollisions(result.Events); c != "" {
		b.WriteString(c)
	}
	if result.Finished && result.TicksExecuted == 0 {
		b.WriteString("Simulation already finished; use reset to start over.\n")
	}
	b.WriteString("\n")
	b.WriteString(formatSimState(result.SimState))
	return b.String()
}

func formatRunResult(result *service.RunResult) string {
	var b strings.Builder
	if result.Answer != "" {
		fmt.Fprintf(&b, "Answer: %s\n", result.Answer)
	} else if result.Outcome != nil {
		fmt.Fprintf(&b, "No position: %s\n", result.Outcome.StopReason)
	}
	fmt.Fprintf(&b, "Ticks executed: %d\n", result.TicksExecuted)
	if result.Outcome != nil {
		fmt.Fprintf(&b, "Stopped after tick %d with %d live carts (%s)\n",
			result.Outcome.Ticks, result.Outcome.LiveCarts, result.Outcome.StopReason)
	}
	if c := formatCollisions(result.Events); c != "" {
		b.WriteString(c)
	}
	if result.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", result.Message)
	}
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tick History (Page %d/%d) | Total ticks: %d\n\n",
		history.Page, history.TotalPages, history.TotalTicks)

	for _, report := range history.Ticks {
		fmt.Fprintf(&b, "Tick %d: %d live carts", report.Tick, report.LiveCarts)
		for _, c := range report.Collisions {
			fmt.Fprintf(&b, ", crash at %s", c.Position)
		}
		b.WriteString("\n")
	}

	if len(history.Ticks) == 0 {
		b.WriteString("(no ticks recorded)\n")
	}
	return b.String()
}

// describeTile explains the track under x,y and the cart on it, if any
func describeTile(layout []string, state *engine.SimState, x, y int) string {
	board := track.ParseBoard(layout)
	tile := board.TileAt(x, y)
	if tile == nil {
		return fmt.Sprintf("(%d,%d) is outside the grid (%dx%d): no track", x, y, board.Width(), board.Height())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tile (%d,%d): '%c' %s", x, y, tile.Glyph(), tile.Kind)
	switch tile.Kind {
	case track.Straight:
		if tile.Orientation == track.Horizontal {
			b.WriteString(" (east-west)")
		} else {
			b.WriteString(" (north-south)")
		}
	case track.Curve:
		if tile.Orientation == track.Slash {
			b.WriteString(" (east<->north, west<->south)")
		} else {
			b.WriteString(" (east<->south, west<->north)")
		}
	case track.Intersection:
		b.WriteString(" (carts turn left, straight, right in rotation)")
	case track.Empty:
		b.WriteString(" (no track; a cart here would derail)")
	}
	b.WriteString("\n")

	if state != nil {
		for _, cart := range state.Carts {
			if cart.Destroyed || cart.Position.X != x || cart.Position.Y != y {
				continue
			}
			fmt.Fprintf(&b, "Cart #%d is here heading %s, next intersection turn: %s\n",
				cart.ID, cart.Direction, turnName(cart.TurnIndex))
		}
		for _, c := range state.Collisions {
			if c.Position.X == x && c.Position.Y == y {
				fmt.Fprintf(&b, "Carts %d and %d crashed here on tick %d\n", c.CartIDs[0], c.CartIDs[1], c.Tick)
			}
		}
	}

	return b.String()
}
