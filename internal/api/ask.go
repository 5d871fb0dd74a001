package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

type askRequest struct {
	Question string `json:"question"`
}

type retryRequest struct {
	QueryID string `json:"query_id"`
}

type sqlRequest struct {
	SQL string `json:"sql"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Ask == nil || deps.Ask.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATOR_NOT_CONFIGURED", "natural-language queries are not configured", false, nil)
		return
	}

	var request askRequest
	if !decodeBody(w, r, &request) {
		return
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	outcome, err := deps.Ask.Ask(r.Context(), question)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func handleRetry(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Ask == nil || deps.Ask.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATOR_NOT_CONFIGURED", "natural-language queries are not configured", false, nil)
		return
	}

	var request retryRequest
	if !decodeBody(w, r, &request) {
		return
	}
	queryID := strings.TrimSpace(request.QueryID)
	if queryID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_ID_REQUIRED", "query_id is required", false, nil)
		return
	}

	outcome, err := deps.Ask.Retry(r.Context(), queryID)
	if err != nil {
		// A repeat execution failure is a hard error for this call; the
		// pending entry survives with the newest SQL and error for a further
		// manual retry.
		writePipelineError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func handleRunSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Ask == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SQL_NOT_CONFIGURED", "sql execution is not configured", false, nil)
		return
	}

	var request sqlRequest
	if !decodeBody(w, r, &request) {
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	outcome, err := deps.Ask.RunSQL(r.Context(), request.SQL)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}
