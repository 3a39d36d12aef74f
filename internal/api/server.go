// Package api serves the insight tools over HTTP for callers that do not
// speak MCP.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	corslib "github.com/rs/cors"

	"summoner-insights/internal/fault"
	"summoner-insights/internal/metrics"
	"summoner-insights/internal/storage"
	"summoner-insights/internal/tools"
)

const maxBodyBytes = 64 << 10

// Counter reports store sizes for the health check.
type Counter interface {
	Counts(ctx context.Context) (storage.Counts, error)
}

type Config struct {
	CORSAllowOrigins  []string
	RateLimitRequests int // per RateLimitWindow; 0 disables limiting
	RateLimitWindow   time.Duration
}

type handler struct {
	host   *tools.Host
	store  Counter
	logger *slog.Logger
}

// NewRouter wires middleware and routes. m may be nil, which drops /metrics.
func NewRouter(host *tools.Host, store Counter, m *metrics.Metrics, cfg Config, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{host: host, store: store, logger: logger.With("component", "api")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware)

	origins := cfg.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := corslib.New(corslib.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Request-Id"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	if cfg.RateLimitRequests > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, window))
	}

	r.Get("/health", h.health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tools", h.listTools)
		r.Post("/tools/{name}", h.callTool)
	})

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.Counts(r.Context())
	if err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "counts": counts})
}

type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

func (h *handler) listTools(w http.ResponseWriter, r *http.Request) {
	list := h.host.Tools()
	out := make([]toolInfo, len(list))
	for i, t := range list {
		out[i] = toolInfo{Name: t.Name, Description: t.Description, InputSchema: tools.Schema(t.Params)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (h *handler) callTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args := map[string]any{}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, string(fault.KindValidation), "could not read request body")
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, string(fault.KindValidation), "request body too large")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeError(w, http.StatusBadRequest, string(fault.KindValidation), "request body must be a JSON object")
			return
		}
	}

	resp := h.host.Call(r.Context(), name, args)
	status := http.StatusOK
	if !resp.OK {
		status = statusFor(resp.Error.Kind)
	}
	if errors.Is(r.Context().Err(), context.Canceled) {
		return
	}
	writeJSON(w, status, resp)
}

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindInsufficientData:
		return http.StatusUnprocessableEntity
	case fault.KindUpstream, fault.KindMalformedPayload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError is for failures outside a tool call, such as rate limiting or
// an unreadable body.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{
		"ok":    false,
		"error": map[string]string{"kind": kind, "message": message},
	})
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "component", "api", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("http server shutting down", "component", "api")
		return srv.Shutdown(shutdownCtx)
	}
}
