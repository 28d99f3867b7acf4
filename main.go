// Command minecarts starts the minecart simulator server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, config and session storage, the tick journal,
// debug logging, version output, and optional ngrok tunneling for external
// access during development. Unset flags fall back to environment variables,
// which may come from a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/minecarts/api"
	"github.com/wricardo/mcp-training/minecarts/game/config"
	"github.com/wricardo/mcp-training/minecarts/game/journal"
	"github.com/wricardo/mcp-training/minecarts/game/service"
	"github.com/wricardo/mcp-training/minecarts/game/session"
	"github.com/wricardo/mcp-training/minecarts/transport/mcp"
	"github.com/wricardo/mcp-training/minecarts/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Minecart Simulator Server"
)

// Session store kinds
const (
	storeFile   = "file"
	storeSQLite = "sqlite"
	storeMemory = "memory"
)

// Configuration flags control how the server starts and which services are enabled.
var (
	port         = flag.Int("port", 8080, "HTTP server port")
	host         = flag.String("host", "localhost", "HTTP server host")
	configDir    = flag.String("config-dir", "configs", "Directory containing track layouts (env CONFIG_DIR)")
	sessionsDir  = flag.String("sessions-dir", "sessions", "Directory for persisted sessions (env SESSIONS_DIR)")
	sessionStore = flag.String("store", storeFile, "Session store: file, sqlite or memory (env SESSION_STORE)")
	journalDir   = flag.String("journal-dir", "", "Directory for the compressed tick journal, empty to disable (env JOURNAL_DIR)")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// envFlags maps flags to the environment variables that fill them when unset
var envFlags = map[string]string{
	"config-dir":   "CONFIG_DIR",
	"sessions-dir": "SESSIONS_DIR",
	"store":        "SESSION_STORE",
	"journal-dir":  "JOURNAL_DIR",
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                        # Run HTTP server on default port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -store sqlite          # Keep sessions in sessions/sessions.db\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -journal-dir journal   # Record every tick to compressed JSONL\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s mcp -port 9090         # Run MCP stdio server with internal HTTP on port 9090\n", os.Args[0])
	}
}

// main parses flags, initializes services, and starts the selected mode.
func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	flag.Parse()
	applyEnvDefaults(flag.CommandLine, os.Getenv)

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	args := flag.Args()
	mode := "server"
	if len(args) > 0 {
		mode = args[0]
	}

	log.Printf("Starting %s v%s (mode: %s, store: %s)", AppName, Version, mode, *sessionStore)

	simService, shutdown, err := initializeServices()
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer shutdown()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(simService)

	case "server", "http":
		runHTTPServer(simService)

	default:
		log.Fatalf("Unknown mode: %s. Use 'server' (default) or 'stdio-mcp'", mode)
	}
}

// applyEnvDefaults fills flags that were not set on the command line from
// their environment variables.
func applyEnvDefaults(fs *flag.FlagSet, getenv func(string) string) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	for name, env := range envFlags {
		if set[name] {
			continue
		}
		if value := getenv(env); value != "" {
			if err := fs.Set(name, value); err != nil {
				log.Printf("Warning: ignoring %s=%q: %v", env, value, err)
			}
		}
	}
}

// runHTTPServer serves the REST API, the websocket feed and POST /mcp until
// SIGINT or SIGTERM, optionally mirrored through an ngrok tunnel.
func runHTTPServer(simService service.SimService) {
	addr := fmt.Sprintf("%s:%d", *host, *port)
	handler := newRootHandler(simService, addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP server listening on %s", addr)
		logEndpoints("http://"+addr, "ws://"+addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	if tunnel, ok := resolveNgrok(os.Getenv); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, tunnel, handler)
		}()
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
}

// newRootHandler mounts the REST API and websocket hub at / and the MCP
// proxy at /mcp. The MCP tools call back into the API at addr.
func newRootHandler(simService service.SimService, addr string) http.Handler {
	hub := websocket.NewHub()
	go hub.Run()

	mux := http.NewServeMux()
	mux.Handle("/", api.NewServer(simService, hub))
	mux.HandleFunc("/mcp", mcpHandler(mcp.NewClient("http://"+addr)))
	return mux
}

func logEndpoints(httpBase, wsBase string) {
	log.Printf("  REST API: %s/api", httpBase)
	log.Printf("  WebSocket: %s/ws?session=<session_id>", wsBase)
	log.Printf("  MCP endpoint: %s/mcp", httpBase)
}

// mcpHandler serves single JSON-RPC MCP messages over plain HTTP POST
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}

		reply, err := json.Marshal(mcpClient.GetMCPServer().HandleMessage(r.Context(), body))
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(reply)
	}
}

// ngrokTunnel holds the resolved tunnel settings
type ngrokTunnel struct {
	authToken string
	domain    string
}

// resolveNgrok merges the ngrok flags with NGROK_ENABLED, NGROK_AUTHTOKEN
// (or NGROK_AUTH_TOKEN) and NGROK_DOMAIN. Flags win. It reports false when
// the tunnel is disabled or has no auth token.
func resolveNgrok(getenv func(string) string) (ngrokTunnel, bool) {
	enabled := *ngrokEnabled
	if env := getenv("NGROK_ENABLED"); env == "true" || env == "1" {
		enabled = true
	}
	if !enabled {
		return ngrokTunnel{}, false
	}

	t := ngrokTunnel{authToken: *ngrokAuth, domain: *ngrokDomain}
	for _, key := range []string{"NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"} {
		if t.authToken == "" {
			t.authToken = getenv(key)
		}
	}
	if t.domain == "" {
		t.domain = getenv("NGROK_DOMAIN")
	}

	if t.authToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return ngrokTunnel{}, false
	}
	return t, true
}

// runNgrokTunnel exposes handler through an ngrok endpoint until ctx is done
func runNgrokTunnel(ctx context.Context, t ngrokTunnel, handler http.Handler) {
	log.Println("Starting ngrok tunnel...")

	var opts []ngrokConfig.HTTPEndpointOption
	if t.domain != "" {
		opts = append(opts, ngrokConfig.WithDomain(t.domain))
		log.Printf("Using custom ngrok domain: %s", t.domain)
	}

	listener, err := ngrok.Listen(ctx, ngrokConfig.HTTPEndpoint(opts...), ngrok.WithAuthtoken(t.authToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	log.Printf("Ngrok tunnel established: %s", listener.URL())
	logEndpoints(listener.URL(), strings.Replace(listener.URL(), "http", "ws", 1))

	if err := http.Serve(listener, handler); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// openPersistence creates the session store selected by -store
func openPersistence(configManager *config.Manager) (session.SessionPersistence, io.Closer, error) {
	switch *sessionStore {
	case storeFile:
		fp, err := session.NewFilePersistence(*sessionsDir, configManager)
		if err != nil {
			return nil, nil, err
		}
		return fp, nil, nil
	case storeSQLite:
		if err := os.MkdirAll(*sessionsDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create sessions directory: %w", err)
		}
		sp, err := session.NewSQLitePersistence(filepath.Join(*sessionsDir, "sessions.db"), configManager)
		if err != nil {
			return nil, nil, err
		}
		return sp, sp, nil
	case storeMemory:
		return nil, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown session store %q (use %s, %s or %s)", *sessionStore, storeFile, storeSQLite, storeMemory)
}

// initializeServices wires config, session storage, the tick journal and
// the simulation service. The returned function releases open stores.
func initializeServices() (service.SimService, func(), error) {
	configManager, err := config.NewManager(*configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, storeCloser, err := openPersistence(configManager)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	var sessionManager *session.Manager
	if persistence != nil {
		sessionManager = session.NewManagerWithPersistence(persistence)
		if err := sessionManager.LoadPersistedSessions(); err != nil {
			log.Printf("Warning: Failed to load persisted sessions: %v", err)
		}
	} else {
		sessionManager = session.NewManager()
	}

	var opts []service.Option
	var tickJournal *journal.Journal
	if *journalDir != "" {
		tickJournal = journal.New(*journalDir)
		opts = append(opts, service.WithJournal(tickJournal))
		log.Printf("Journaling ticks to %s (run %s)", *journalDir, tickJournal.RunID())
	}

	simService := service.NewSimService(sessionManager, configManager, opts...)

	done := make(chan struct{})
	go sessionCleanupRoutine(done, sessionManager)
	if persistence != nil {
		go storeSyncRoutine(done, sessionManager, persistence)
	}

	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			close(done)
			if tickJournal != nil {
				if err := tickJournal.Close(); err != nil {
					log.Printf("Warning: Failed to close tick journal: %v", err)
				}
			}
			if storeCloser != nil {
				if err := storeCloser.Close(); err != nil {
					log.Printf("Warning: Failed to close session store: %v", err)
				}
			}
		})
	}

	return simService, shutdown, nil
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within the retention window.
func sessionCleanupRoutine(done <-chan struct{}, manager *session.Manager) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(24 * time.Hour); removed > 0 {
				log.Printf("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// storeSyncRoutine drops in-memory sessions whose stored copy was removed
// outside the server, e.g. a deleted session file.
func storeSyncRoutine(done <-chan struct{}, manager *session.Manager, persistence session.SessionPersistence) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			pruned := pruneOrphanedSessions(manager, persistence)
			if pruned > 0 {
				log.Printf("Store sync: pruned %d orphaned sessions from memory", pruned)
			}
		}
	}
}

func pruneOrphanedSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, s := range manager.List() {
		if persistence.Exists(s.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(s.ID); err == nil {
			pruned++
			log.Printf("Pruned session %s from memory (no longer in store)", s.ID)
		}
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API on the configured port; if unavailable, it
// starts an internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(simService service.SimService) {
	var baseURL string

	externalURL := fmt.Sprintf("http://localhost:%d", *port)
	log.Printf("Checking for external API server at %s...", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		log.Printf("External API server found at %s, using it for MCP", externalURL)
		baseURL = externalURL
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Fatalf("Failed to get available port: %v", err)
		}

		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		hub := websocket.NewHub()
		go hub.Run()

		httpServer := &http.Server{
			Handler: api.NewServer(simService, hub),
		}

		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()

		baseURL = fmt.Sprintf("http://%s", internalAddr)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		log.Fatalf("MCP stdio server error: %v", err)
	}
}
