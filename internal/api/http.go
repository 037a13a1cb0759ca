package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/dbcheck/internal/report"
	"github.com/kalambet/dbcheck/internal/storage"
)

// Deps holds what the HTTP and MCP surfaces need to produce reports.
// Every request opens its own read-only handle on DatabasePath.
type Deps struct {
	DatabasePath string
	Options      report.Options
	// Token, when set, is required as a bearer token on every HTTP route
	// except /health.
	Token string
}

// NewHandler returns the HTTP API:
//
//	GET /health            liveness probe
//	GET /report[?profile=] plain-text report
//	GET /schema            JSON schema dump
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Get("/health", handleHealth)
	r.Get("/report", handleReport(deps))
	r.Get("/schema", handleSchema(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := deps.Options
		if name := r.URL.Query().Get("profile"); name != "" {
			p, err := opts.WithProfile(name)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			opts = p
		}

		text, err := report.Run(r.Context(), deps.DatabasePath, opts)
		if err != nil {
			writeOpenError(w, deps.DatabasePath, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(text))
	}
}

func handleSchema(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schemas, err := report.Describe(r.Context(), deps.DatabasePath)
		if err != nil {
			writeOpenError(w, deps.DatabasePath, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(schemas)
	}
}

func writeOpenError(w http.ResponseWriter, path string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found_error", "Database file '%s' not found!", path)
		return
	}
	slog.Error("inspecting database", "database", path, "error", err)
	httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
