package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/service"
	"github.com/wricardo/mcp-training/minecarts/transport/websocket"
)

// Server exposes a SimService over REST and pushes updates to the websocket hub
type Server struct {
	service service.SimService
	hub     *websocket.Hub
	router  *mux.Router
}

func NewServer(simService service.SimService, hub *websocket.Hub) *Server {
	s := &Server{service: simService, hub: hub, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	// registered ahead of /{id} so "unified" is not taken as an ID
	api.HandleFunc("/sessions/unified", s.handleUnifiedSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/state", s.handleGetSimState).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/tick", s.handleTick).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/run", s.handleRun).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/render", s.handleRender).Methods(http.MethodGet)

	api.HandleFunc("/configs", s.handleListConfigs).Methods(http.MethodGet)
	api.HandleFunc("/configs", s.handleCreateConfig).Methods(http.MethodPost)
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods(http.MethodGet)

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// fail reports err with the status matching its cause
func fail(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTickCount), errors.Is(err, service.ErrInvalidSessionID):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeOptional decodes a JSON body into v; an empty body leaves v untouched
func decodeOptional(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func sessionID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// positiveInt parses raw, falling back to def for anything but a positive integer
func positiveInt(raw string, def int) int {
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return def
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID   string `json:"config_id,omitempty"`
		ConfigName string `json:"config_name,omitempty"`
	}
	decodeOptional(r, &req)

	configID := req.ConfigID
	if configID == "" {
		configID = req.ConfigName
	}

	info, err := s.service.CreateSession(r.Context(), configID)
	if err != nil {
		fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, info)
}

// handleListSessions supports ?sort=created|accessed, ?order=asc|desc and ?limit=N
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	query := r.URL.Query()
	sortBy, order := query.Get("sort"), query.Get("order")
	if sortBy != "created" {
		sortBy = "accessed"
	}
	if order != "asc" {
		order = "desc"
	}

	stamp := func(i int) time.Time {
		if sortBy == "created" {
			return sessions[i].CreatedAt
		}
		return sessions[i].LastAccessedAt
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if order == "asc" {
			return stamp(i).Before(stamp(j))
		}
		return stamp(i).After(stamp(j))
	})

	total := len(sessions)
	if limit := positiveInt(query.Get("limit"), total); limit < total {
		sessions = sessions[:limit]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), sessionID(r))
	if err != nil {
		fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if err := s.service.DeleteSession(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Session %s deleted", id)})
}

func (s *Server) handleGetSimState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetSimState(r.Context(), sessionID(r))
	if err != nil {
		fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// handleTick advances by {"ticks": n}, one tick when the body is empty
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	req := struct {
		Ticks int  `json:"ticks"`
		Reset bool `json:"reset,omitempty"`
	}{Ticks: 1}
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Tick(r.Context(), id, req.Ticks, req.Reset)
	if err != nil {
		fail(w, err)
		return
	}
	s.broadcast(id, result.SimState, result.Events)

	status := "RUNNING"
	if result.Finished {
		status = strings.ToUpper(string(result.StopReason))
	}
	live := 0
	if result.SimState != nil {
		live = result.SimState.LiveCarts
	}
	log.Printf("[TICK] session=%s exec=%d/%d live=%d status=%s",
		id, result.TicksExecuted, result.RequestedTicks, live, status)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	var req struct {
		Reset bool `json:"reset,omitempty"`
	}
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.Run(r.Context(), id, req.Reset)
	if err != nil {
		fail(w, err)
		return
	}
	s.broadcast(id, result.SimState, result.Events)

	var stop engine.StopReason
	if result.Outcome != nil {
		stop = result.Outcome.StopReason
	}
	log.Printf("[RUN] session=%s ticks=%d stop=%s answer=%q", id, result.TicksExecuted, stop, result.Answer)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	state, err := s.service.Reset(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	s.broadcast(id, state, nil)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Simulation reset successfully",
		"state":   state,
	})
}

// handleGetHistory pages with ?page, ?limit and ?order=asc|desc
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := service.HistoryOptions{
		Page:  positiveInt(query.Get("page"), 1),
		Limit: positiveInt(query.Get("limit"), 20),
		Order: "desc",
	}
	if query.Get("order") == "asc" {
		opts.Order = "asc"
	}

	history, err := s.service.GetTickHistory(r.Context(), sessionID(r), opts)
	if err != nil {
		fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	board, err := s.service.Render(r.Context(), sessionID(r))
	if err != nil {
		fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, board)
}

// broadcast sends collision and finish events, then the new state, to the
// session's websocket viewers
func (s *Server) broadcast(id string, state *engine.SimState, events []service.SimEvent) {
	if s.hub == nil {
		return
	}
	for _, ev := range events {
		if ev.Type == websocket.EventCollision || ev.Type == websocket.EventFinished {
			s.hub.BroadcastEvent(id, ev.Type, ev)
		}
	}
	if state != nil {
		s.hub.BroadcastToSession(id, state)
	}
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	config, err := s.service.LoadConfig(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, config)
}

// handleCreateConfig validates and stores a layout. The config ID defaults to
// the snake_cased name.
func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
		engine.LayoutConfig
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Config name is required")
		return
	}
	if err := engine.ValidateLayoutConfig(&req.LayoutConfig); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(req.Name), " ", "_"))
	}
	if err := s.service.SaveConfig(r.Context(), configID, &req.LayoutConfig); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to save config: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

// handleUnifiedSessions returns several sessions side by side, picked by
// ?sessionIds=a,b or ?configName=x, so runs of one layout can be compared
func (s *Server) handleUnifiedSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var picked []*service.SessionInfo
	if ids := query.Get("sessionIds"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id == "" {
				continue
			}
			if info, err := s.service.GetSession(r.Context(), id); err == nil {
				picked = append(picked, info)
			}
		}
	} else {
		all, err := s.service.ListSessions(r.Context())
		if err != nil {
			fail(w, err)
			return
		}
		configName := query.Get("configName")
		for _, info := range all {
			if configName == "" || info.ConfigName == configName {
				picked = append(picked, info)
			}
		}
	}

	configName, totalCarts := "", 0
	if len(picked) > 0 {
		configName = picked[0].ConfigName
		if picked[0].LayoutConfig != nil {
			totalCarts = engine.AnalyzeLayout(picked[0].LayoutConfig.Layout).Carts
		}
	}

	entries := make([]map[string]interface{}, len(picked))
	for i, info := range picked {
		entries[i] = map[string]interface{}{
			"session_id":    info.ID,
			"config_name":   info.ConfigName,
			"sim_state":     info.SimState,
			"created_at":    info.CreatedAt,
			"last_accessed": info.LastAccessedAt,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"config_name": configName,
		"total_carts": totalCarts,
		"sessions":    entries,
	})
}

// handleWebSocket attaches a viewer to ?session=<id>
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if _, err := s.service.GetSession(r.Context(), id); err != nil {
		http.Error(w, "Invalid session", statusFor(err))
		return
	}
	s.hub.ServeWS(w, r, id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
