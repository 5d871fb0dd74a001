// Package api exposes the HTTP surface: health and metrics, dataset schema,
// preview and replacement, direct SQL, and the question/repair endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askduck/askduck/internal/ask"
	"github.com/askduck/askduck/internal/config"
	"github.com/askduck/askduck/internal/dataset"
	"github.com/askduck/askduck/internal/guardrail"
	"github.com/askduck/askduck/internal/nl2sql"
	"github.com/askduck/askduck/internal/observability"
	"github.com/askduck/askduck/internal/query"
	"github.com/askduck/askduck/internal/storage"
)

type Dependencies struct {
	Logger  *slog.Logger
	Ask     *ask.Service
	Dataset *dataset.Store
	Engine  query.Engine
	Archive storage.ObjectStore
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	mux.HandleFunc("GET /v1/preview", func(w http.ResponseWriter, r *http.Request) {
		handlePreview(cfg, deps, w, r)
	})
	mux.HandleFunc("POST /v1/datasets", func(w http.ResponseWriter, r *http.Request) {
		handleUpload(cfg, deps, w, r)
	})
	mux.HandleFunc("POST /v1/datasets/demo", func(w http.ResponseWriter, r *http.Request) {
		handleLoadDemo(deps, w, r)
	})

	mux.HandleFunc("POST /v1/sql", func(w http.ResponseWriter, r *http.Request) {
		handleRunSQL(deps, w, r)
	})
	mux.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r)
	})
	mux.HandleFunc("POST /v1/query/retry", func(w http.ResponseWriter, r *http.Request) {
		handleRetry(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

// writePipelineError maps domain failures that escape the ask service onto
// HTTP statuses. Recoverable pipeline outcomes never reach this path; they are
// reported as ok:false payloads instead.
func writePipelineError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dataset.ErrDataSourceUnavailable):
		writeError(ctx, w, http.StatusServiceUnavailable, "DATA_SOURCE_UNAVAILABLE", "no active dataset is loaded", true, nil)
	case errors.Is(err, query.ErrTimeout):
		writeError(ctx, w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "query execution timed out", true, nil)
	case errors.Is(err, ask.ErrUnknownQueryID):
		writeError(ctx, w, http.StatusNotFound, "UNKNOWN_QUERY_ID", "no pending query with this id", false, nil)
	default:
		var malformed *nl2sql.MalformedOutputError
		if errors.As(err, &malformed) {
			writeError(ctx, w, http.StatusBadRequest, "TRANSLATOR_MALFORMED", "translator returned unusable output", true, map[string]any{"reason": malformed.Reason})
			return
		}
		var upstream *nl2sql.UpstreamError
		if errors.As(err, &upstream) {
			writeError(ctx, w, http.StatusBadGateway, "TRANSLATOR_UNAVAILABLE", "translator endpoint is unavailable", true, nil)
			return
		}
		var gerr *guardrail.Error
		if errors.As(err, &gerr) {
			writeError(ctx, w, http.StatusBadRequest, guardrailErrorCode(gerr.Kind), gerr.Message, false, nil)
			return
		}
		var execErr *query.ExecutionError
		if errors.As(err, &execErr) {
			writeError(ctx, w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", execErr.Message, false, nil)
			return
		}
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL", err.Error(), true, nil)
	}
}

func guardrailErrorCode(kind guardrail.Kind) string {
	return strings.ToUpper(string(kind))
}
