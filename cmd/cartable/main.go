package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/cartable/audit"
	"github.com/hazyhaar/cartable/browser"
	"github.com/hazyhaar/cartable/campus"
	"github.com/hazyhaar/cartable/dbopen"
	"github.com/hazyhaar/cartable/session"
	"github.com/hazyhaar/cartable/shield"
)

func main() {
	port := env("PORT", "8086")
	baseURL := env("CAMPUS_BASE_URL", "")
	configPath := env("CAMPUS_CONFIG", "")
	auditPath := env("AUDIT_DB", "db/audit.db")
	logLevel := env("LOG_LEVEL", "info")
	remoteChrome := env("BROWSER_REMOTE_URL", "")
	statusHash := env("ADMIN_PASSWORD_HASH", "")

	// Logging. Stdout belongs to the MCP stdio transport, so logs go to
	// stderr.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Campus configuration: YAML file first, environment on top.
	cfg := campus.Config{Logger: logger}
	if configPath != "" {
		if err := campus.LoadConfig(configPath, &cfg); err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if cfg.BaseURL == "" {
		slog.Error("CAMPUS_BASE_URL is required")
		os.Exit(1)
	}
	cfg.Credentials = campus.Credentials{
		Username: os.Getenv("CAMPUS_USERNAME"),
		Password: os.Getenv("CAMPUS_PASSWORD"),
	}

	// Audit DB.
	auditDB, err := dbopen.Open(auditPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("audit db", "error", err)
		os.Exit(1)
	}
	defer auditDB.Close()
	auditLogger := audit.NewSQLiteLogger(auditDB, audit.WithLogger(logger))
	if err := auditLogger.Init(ctx); err != nil {
		slog.Error("audit init", "error", err)
		os.Exit(1)
	}

	// Browser manager. Chrome stays down until the first tool needs it.
	headless := env("HEADLESS", "true") != "false"
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        remoteChrome,
		Headless:         &headless,
		ResourceBlocking: splitList(env("BLOCK_RESOURCES", "")),
		Logger:           logger,
	})
	defer mgr.Close()

	newPage := func() (campus.Page, error) {
		p, err := mgr.Page()
		if err != nil {
			return nil, err
		}
		return campus.BindSession(session.New(p, session.Config{Logger: logger})), nil
	}

	svc, err := campus.New(cfg, newPage, campus.WithAudit(auditLogger))
	if err != nil {
		slog.Error("campus service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// MCP over stdio: the host process owns our stdin/stdout.
	mcpSrv := mcp.NewServer(&mcp.Implementation{
		Name:    "cartable",
		Version: "1.0.0",
	}, nil)
	svc.RegisterMCP(mcpSrv)

	mcpDone := make(chan struct{})
	go func() {
		defer close(mcpDone)
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			slog.Error("mcp server", "error", err)
		}
	}()

	// Operator sidecar: health plus the recent audit trail.
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		if !statusAuthorized(req, statusHash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="cartable"`)
			writeJSON(w, 401, map[string]string{"error": "unauthorized"})
			return
		}
		entries, err := auditLogger.Recent(req.Context(), req.URL.Query().Get("tool"), 50)
		if err != nil {
			writeJSON(w, 500, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, 200, map[string]any{"invocations": entries})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("sidecar starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("sidecar", "error", err)
		}
	}()

	// Run until the signal context fires or the MCP host hangs up.
	select {
	case <-ctx.Done():
	case <-mcpDone:
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("stopped")
}

// statusAuthorized checks HTTP basic auth against the bcrypt hash from the
// environment. An empty hash disables the endpoint entirely.
func statusAuthorized(r *http.Request, hash string) bool {
	if hash == "" {
		return false
	}
	_, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
