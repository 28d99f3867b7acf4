package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/track"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrConfigNotFound   = errors.New("configuration not found")
	ErrInvalidTickCount = errors.New("tick count must be at least 1")
	ErrInvalidSessionID = errors.New("invalid session ID")
	ErrSessionExists    = errors.New("session already exists")
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type simServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	journal  TickJournal
	mu       sync.RWMutex
}

// Option configures a SimService
type Option func(*simServiceImpl)

// WithJournal records every executed tick in j
func WithJournal(j TickJournal) Option {
	return func(s *simServiceImpl) {
		s.journal = j
	}
}

// NewSimService wires the session store and config source into a SimService
func NewSimService(sessions SessionManager, configs ConfigManager, opts ...Option) SimService {
	s := &simServiceImpl{sessions: sessions, configs: configs}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession starts a session on the named config, or on the default one
// when configName is empty
func (s *simServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	config := s.configs.GetDefault()
	if configName != "" {
		var err error
		if config, err = s.configs.LoadConfig(configName); err != nil {
			return nil, s.configError(configName, err)
		}
	}

	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	info := s.sessionInfo(sess)
	if configName != "" {
		info.ConfigName = configName
	}
	return info, nil
}

func (s *simServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID, true)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(sess), nil
}

func (s *simServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	infos := make([]*SessionInfo, len(sessions))
	for i, sess := range sessions {
		infos[i] = s.sessionInfo(sess)
	}
	return infos, nil
}

func (s *simServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return s.lookupError(sessionID, err)
	}
	return nil
}

// Tick advances a session by up to n ticks, capped at engine.MaxBulkTicks
func (s *simServiceImpl) Tick(ctx context.Context, sessionID string, n int, reset bool) (*TickResult, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidTickCount, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID, true)
	if err != nil {
		return nil, err
	}

	result := &TickResult{RequestedTicks: n, Reports: []engine.TickReport{}, Events: []SimEvent{}}
	if n > engine.MaxBulkTicks {
		result.Truncated = true
		result.Limit = engine.MaxBulkTicks
		n = engine.MaxBulkTicks
	}

	var ctxErr error
	result.Events, ctxErr = s.advance(ctx, sess, n, reset, func(report *engine.TickReport) {
		result.Reports = append(result.Reports, *report)
	})
	s.save(sessionID, "tick")
	if ctxErr != nil {
		return nil, ctxErr
	}

	state := sess.Engine.GetState().Clone()
	result.TicksExecuted = len(result.Reports)
	result.SimState = state
	result.Finished = state.Finished
	result.StopReason = state.StopReason
	result.Result = state.Result
	result.Message = state.Message
	return result, nil
}

// Run steps a session until its simulation finishes
func (s *simServiceImpl) Run(ctx context.Context, sessionID string, reset bool) (*RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID, true)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	var ctxErr error
	result.Events, ctxErr = s.advance(ctx, sess, -1, reset, func(*engine.TickReport) {
		result.TicksExecuted++
	})
	s.save(sessionID, "run")
	if ctxErr != nil {
		return nil, ctxErr
	}

	state := sess.Engine.GetState().Clone()
	result.Outcome = sess.Engine.Result()
	result.Answer = result.Outcome.Answer()
	result.SimState = state
	result.Message = state.Message
	return result, nil
}

// advance optionally resets sess and then steps it limit times, or until it
// finishes when limit is negative. Each executed report goes to onReport. The
// returned events cover the reset, collisions and the finish, in that order.
func (s *simServiceImpl) advance(ctx context.Context, sess *Session, limit int, reset bool, onReport func(*engine.TickReport)) ([]SimEvent, error) {
	events := []SimEvent{}
	if reset {
		sess.Engine.Reset()
		events = append(events, resetEvent())
	}

	executed := 0
	for (limit < 0 || executed < limit) && !sess.Engine.IsFinished() {
		if err := ctx.Err(); err != nil {
			return events, err
		}
		report, stepErr := sess.Engine.Step()
		if report != nil {
			executed++
			onReport(report)
			events = append(events, s.recordTick(sess.ID, report)...)
		}
		if stepErr != nil {
			break
		}
	}

	if executed > 0 && sess.Engine.IsFinished() {
		events = append(events, finishedEvent(sess.Engine.GetState()))
	}
	return events, nil
}

func (s *simServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.SimState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID, true)
	if err != nil {
		return nil, err
	}

	state := sess.Engine.Reset().Clone()
	s.save(sessionID, "reset")
	return state, nil
}

func (s *simServiceImpl) GetSimState(ctx context.Context, sessionID string) (*engine.SimState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID, true)
	if err != nil {
		return nil, err
	}
	return sess.Engine.GetState().Clone(), nil
}

// GetTickHistory pages through the retained tick reports, newest first by
// default. Limit defaults to 20 and is capped at 100.
func (s *simServiceImpl) GetTickHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.lookup(sessionID, false)
	if err != nil {
		return nil, err
	}

	if opts.Page < 1 {
		opts.Page = 1
	}
	switch {
	case opts.Limit <= 0:
		opts.Limit = defaultHistoryLimit
	case opts.Limit > maxHistoryLimit:
		opts.Limit = maxHistoryLimit
	}

	history := slices.Clone(sess.Engine.GetTickHistory())
	if opts.Order != "asc" {
		slices.Reverse(history)
	}

	total := len(history)
	pages := max(1, (total+opts.Limit-1)/opts.Limit)
	start := min(total, (opts.Page-1)*opts.Limit)
	end := min(total, start+opts.Limit)

	return &HistoryResponse{
		Ticks:       append([]engine.TickReport{}, history[start:end]...),
		TotalTicks:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  pages,
		HasNext:     opts.Page < pages,
		HasPrevious: opts.Page > 1,
	}, nil
}

func (s *simServiceImpl) Render(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID, true)
	if err != nil {
		return "", err
	}
	return sess.Engine.Render(), nil
}

func (s *simServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

func (s *simServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.LayoutConfig, error) {
	config, err := s.configs.LoadConfig(configName)
	if err != nil {
		return nil, s.configError(configName, err)
	}
	return config, nil
}

func (s *simServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.LayoutConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// lookup fetches a session and, when touch is set, marks it as accessed
func (s *simServiceImpl) lookup(sessionID string, touch bool) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, s.lookupError(sessionID, err)
	}
	if touch {
		s.sessions.UpdateLastAccessed(sessionID)
	}
	return sess, nil
}

func (s *simServiceImpl) lookupError(sessionID string, err error) error {
	if errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return fmt.Errorf("session %s: %w", sessionID, err)
}

// configError names the available configs when configName is unknown
func (s *simServiceImpl) configError(configName string, err error) error {
	if !errors.Is(err, ErrConfigNotFound) {
		return fmt.Errorf("failed to load config %s: %w", configName, err)
	}

	available, listErr := s.configs.ListConfigs()
	if listErr != nil || len(available) == 0 {
		return fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
	}

	ids := make([]string, len(available))
	for i, cfg := range available {
		ids[i] = cfg.ConfigID
	}
	sort.Strings(ids)
	return fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, configName, ids)
}

func (s *simServiceImpl) save(sessionID, after string) {
	if err := s.sessions.Save(sessionID); err != nil {
		log.Printf("Warning: Failed to persist session %s after %s: %v", sessionID, after, err)
	}
}

// configID maps a layout display name back to the ID it was loaded under
func (s *simServiceImpl) configID(displayName string) string {
	if configs, err := s.configs.ListConfigs(); err == nil {
		for _, cfg := range configs {
			if cfg.Name == displayName {
				return cfg.ConfigID
			}
		}
	}
	if displayName == "" {
		return "default"
	}
	return displayName
}

func (s *simServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     s.configID(sess.Config.Name),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		SimState:       sess.Engine.GetState().Clone(),
		LayoutConfig:   sess.Config,
	}
}

// recordTick journals a report and turns its collisions into events
func (s *simServiceImpl) recordTick(sessionID string, report *engine.TickReport) []SimEvent {
	if s.journal != nil {
		if err := s.journal.Append(sessionID, *report); err != nil {
			log.Printf("Warning: Failed to journal tick %d of session %s: %v", report.Tick, sessionID, err)
		}
	}

	events := make([]SimEvent, 0, len(report.Collisions))
	for _, c := range report.Collisions {
		pos := c.Position
		events = append(events, SimEvent{
			Type:      "collision",
			Message:   fmt.Sprintf("Carts %d and %d collided at %s", c.CartIDs[0], c.CartIDs[1], pos),
			Timestamp: time.Now(),
			Tick:      c.Tick,
			Position:  &pos,
		})
	}
	return events
}

func resetEvent() SimEvent {
	return SimEvent{Type: "reset", Message: "Simulation reset to initial layout", Timestamp: time.Now()}
}

func finishedEvent(state *engine.SimState) SimEvent {
	var pos *track.Position
	if state.Result != nil {
		p := *state.Result
		pos = &p
	}
	return SimEvent{Type: "finished", Message: state.Message, Timestamp: time.Now(), Tick: state.Tick, Position: pos}
}
