package main

import (
	"bytes"
	"flag"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/wricardo/mcp-training/minecarts/game/config"
	"github.com/wricardo/mcp-training/minecarts/game/service"
	"github.com/wricardo/mcp-training/minecarts/game/session"
	"github.com/wricardo/mcp-training/minecarts/transport/mcp"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName == "" {
		t.Error("AppName should not be empty")
	}

	expectedVersion := "1.0.0"
	if Version != expectedVersion {
		t.Errorf("Expected version %s, got %s", expectedVersion, Version)
	}

	expectedAppName := "Minecart Simulator Server"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

// withFlags points the storage flags at test values for the duration of a test
func withFlags(t *testing.T, store, sessions, journalPath string) {
	t.Helper()

	originalConfigDir, originalStore := *configDir, *sessionStore
	originalSessions, originalJournal := *sessionsDir, *journalDir
	t.Cleanup(func() {
		*configDir, *sessionStore = originalConfigDir, originalStore
		*sessionsDir, *journalDir = originalSessions, originalJournal
	})

	if _, err := os.Stat("configs"); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}

	*configDir = "configs"
	*sessionStore = store
	*sessionsDir = sessions
	*journalDir = journalPath
}

func TestInitializeServices(t *testing.T) {
	tests := []struct {
		name  string
		store string
	}{
		{"memory store", storeMemory},
		{"file store", storeFile},
		{"sqlite store", storeSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFlags(t, tt.store, t.TempDir(), "")

			simService, shutdown, err := initializeServices()
			if err != nil {
				t.Fatalf("Failed to initialize services: %v", err)
			}
			defer shutdown()

			if simService == nil {
				t.Fatal("Expected sim service to be initialized")
			}

			info, err := simService.CreateSession(t.Context(), "crossing")
			if err != nil {
				t.Fatalf("Failed to create session: %v", err)
			}

			result, err := simService.Run(t.Context(), info.ID, false)
			if err != nil {
				t.Fatalf("Failed to run session: %v", err)
			}
			if result.Answer != "7,3" {
				t.Errorf("Expected answer 7,3, got %q", result.Answer)
			}
		})
	}
}

func TestInitializeServices_SQLiteCreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	withFlags(t, storeSQLite, dir, "")

	_, shutdown, err := initializeServices()
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	shutdown()
	// second call must be a no-op
	shutdown()

	if _, err := os.Stat(filepath.Join(dir, "sessions.db")); err != nil {
		t.Errorf("Expected sessions.db to exist, got %v", err)
	}
}

func TestInitializeServices_WithJournal(t *testing.T) {
	journalPath := t.TempDir()
	withFlags(t, storeMemory, t.TempDir(), journalPath)

	simService, shutdown, err := initializeServices()
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	info, err := simService.CreateSession(t.Context(), "crossing")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if _, err := simService.Tick(t.Context(), info.ID, 3, false); err != nil {
		t.Fatalf("Failed to tick: %v", err)
	}
	shutdown()

	entries, err := os.ReadDir(journalPath)
	if err != nil {
		t.Fatalf("Failed to read journal dir: %v", err)
	}
	if len(entries) == 0 {
		t.Error("Expected journal files to be written")
	}
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	originalConfigDir := *configDir
	*configDir = "/non/existent/path"
	defer func() { *configDir = originalConfigDir }()

	_, _, err := initializeServices()
	if err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestInitializeServices_UnknownStore(t *testing.T) {
	withFlags(t, "postgres", t.TempDir(), "")

	_, _, err := initializeServices()
	if err == nil {
		t.Error("Expected error for unknown session store")
	}
}

func TestFlagDefaults(t *testing.T) {
	if *port <= 0 || *port > 65535 {
		t.Errorf("Invalid default port: %d", *port)
	}

	if *host == "" {
		t.Error("Host should have a default value")
	}

	if *configDir == "" {
		t.Error("Config directory should have a default value")
	}

	if *sessionStore != storeFile {
		t.Errorf("Expected default store %s, got %s", storeFile, *sessionStore)
	}
}

func TestApplyEnvDefaults(t *testing.T) {
	newFlagSet := func() *flag.FlagSet {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.String("config-dir", "configs", "")
		fs.String("sessions-dir", "sessions", "")
		fs.String("store", storeFile, "")
		fs.String("journal-dir", "", "")
		return fs
	}
	env := map[string]string{
		"CONFIG_DIR":    "/etc/layouts",
		"SESSION_STORE": storeSQLite,
		"JOURNAL_DIR":   "/var/journal",
	}
	getenv := func(key string) string { return env[key] }

	tests := []struct {
		name     string
		args     []string
		expected map[string]string
	}{
		{
			name: "environment fills unset flags",
			args: nil,
			expected: map[string]string{
				"config-dir":   "/etc/layouts",
				"sessions-dir": "sessions",
				"store":        storeSQLite,
				"journal-dir":  "/var/journal",
			},
		},
		{
			name: "command line wins over environment",
			args: []string{"-config-dir", "mine", "-store", storeMemory},
			expected: map[string]string{
				"config-dir":   "mine",
				"sessions-dir": "sessions",
				"store":        storeMemory,
				"journal-dir":  "/var/journal",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFlagSet()
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("Failed to parse flags: %v", err)
			}

			applyEnvDefaults(fs, getenv)

			for name, want := range tt.expected {
				if got := fs.Lookup(name).Value.String(); got != want {
					t.Errorf("Expected %s=%q, got %q", name, want, got)
				}
			}
		})
	}
}

func TestPruneOrphanedSessions(t *testing.T) {
	if _, err := os.Stat("configs"); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}

	configManager, err := config.NewManager("configs")
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}
	persistence, err := session.NewFilePersistence(t.TempDir(), configManager)
	if err != nil {
		t.Fatalf("Failed to create persistence: %v", err)
	}
	manager := session.NewManagerWithPersistence(persistence)

	layout, err := configManager.LoadConfig("crossing")
	if err != nil {
		t.Fatalf("Failed to load layout: %v", err)
	}
	for _, id := range []string{"kept", "orphan"} {
		if _, err := manager.Create(id, layout); err != nil {
			t.Fatalf("Failed to create session %s: %v", id, err)
		}
	}

	if pruned := pruneOrphanedSessions(manager, persistence); pruned != 0 {
		t.Errorf("Expected 0 pruned sessions, got %d", pruned)
	}

	if err := persistence.Delete("orphan"); err != nil {
		t.Fatalf("Failed to delete stored session: %v", err)
	}

	if pruned := pruneOrphanedSessions(manager, persistence); pruned != 1 {
		t.Errorf("Expected 1 pruned session, got %d", pruned)
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session in memory, got %d", manager.Count())
	}
	if _, err := manager.Get("kept"); err != nil {
		t.Errorf("Expected session kept to remain, got %v", err)
	}
}

func TestMCPHandler(t *testing.T) {
	handler := mcpHandler(mcp.NewClient("http://127.0.0.1:1"))

	t.Run("rejects GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected status 405, got %d", rec.Code)
		}
	})

	t.Run("lists tools", func(t *testing.T) {
		body := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body)))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		if !bytes.Contains(rec.Body.Bytes(), []byte("simulation_rules")) {
			t.Errorf("Expected tool list to contain simulation_rules, got %s", rec.Body.String())
		}
	})
}

func TestRootHandler(t *testing.T) {
	configManager, err := config.NewManager("configs")
	if err != nil {
		t.Fatalf("Failed to load configs: %v", err)
	}
	handler := newRootHandler(service.NewSimService(session.NewManager(), configManager), "127.0.0.1:1")

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/configs", http.StatusOK},
		{http.MethodGet, "/api/sessions/missing", http.StatusNotFound},
		{http.MethodGet, "/mcp", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestResolveNgrok(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		flag   bool
		ok     bool
		token  string
		domain string
	}{
		{name: "Disabled", env: map[string]string{"NGROK_AUTHTOKEN": "tok"}},
		{name: "Enabled without token", env: map[string]string{"NGROK_ENABLED": "true"}},
		{name: "Env token", env: map[string]string{"NGROK_ENABLED": "1", "NGROK_AUTHTOKEN": "tok", "NGROK_DOMAIN": "carts.ngrok.app"}, ok: true, token: "tok", domain: "carts.ngrok.app"},
		{name: "Legacy token name", env: map[string]string{"NGROK_AUTH_TOKEN": "old"}, flag: true, ok: true, token: "old"},
	}

	original := *ngrokEnabled
	t.Cleanup(func() { *ngrokEnabled = original })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*ngrokEnabled = tt.flag
			tunnel, ok := resolveNgrok(func(key string) string { return tt.env[key] })
			if ok != tt.ok {
				t.Fatalf("Expected ok %v, got %v", tt.ok, ok)
			}
			if tunnel.authToken != tt.token {
				t.Errorf("Expected token %q, got %q", tt.token, tunnel.authToken)
			}
			if tunnel.domain != tt.domain {
				t.Errorf("Expected domain %q, got %q", tt.domain, tunnel.domain)
			}
		})
	}
}
