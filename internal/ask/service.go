package ask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/askduck/askduck/internal/dataset"
	"github.com/askduck/askduck/internal/guardrail"
	"github.com/askduck/askduck/internal/nl2sql"
	"github.com/askduck/askduck/internal/observability"
	"github.com/askduck/askduck/internal/query"
)

// ErrUnknownQueryID rejects repair requests for ids with no pending record.
var ErrUnknownQueryID = errors.New("unknown query id")

const errTypeExecution = "sql_execution_error"

type Meta struct {
	Assumptions []string `json:"assumptions,omitempty"`
	Confidence  float64  `json:"confidence"`
}

type OutcomeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Outcome is the structured result of one pipeline pass. OK:false with
// Retryable:true is a recoverable failure, not a transport error: guardrail
// rejections invite a re-ask, execution failures carry a query id for repair.
type Outcome struct {
	OK        bool          `json:"ok"`
	QueryID   string        `json:"query_id,omitempty"`
	Question  string        `json:"question,omitempty"`
	SQL       string        `json:"sql,omitempty"`
	Columns   []string      `json:"columns,omitempty"`
	Rows      [][]any       `json:"rows,omitempty"`
	Retryable bool          `json:"retryable,omitempty"`
	Error     *OutcomeError `json:"error,omitempty"`
	Meta      *Meta         `json:"meta,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// SchemaSource provides the active dataset's live schema and the fixed table
// name the guardrail scopes queries to. Implemented by dataset.Store.
type SchemaSource interface {
	CurrentSchema(ctx context.Context) (dataset.Meta, error)
	TableName() string
}

// Service coordinates the NL→SQL pipeline: schema rendering, translation,
// guardrail validation, execution, and the single-retry repair state machine.
type Service struct {
	Store        SchemaSource
	Translator   nl2sql.Translator
	Engine       query.Engine
	Pending      *PendingStore
	DefaultLimit int
	Logger       *slog.Logger
}

// Ask translates a natural-language question, validates and executes the
// result. A first-attempt execution failure is captured as a pending entry and
// reported as a retryable outcome rather than an error.
func (s *Service) Ask(ctx context.Context, question string) (Outcome, error) {
	queryID := newQueryID()

	meta, err := s.Store.CurrentSchema(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve active schema: %w", err)
	}
	observability.SetDatasetRows(meta.RowCount)
	schemaText := dataset.Render(meta)

	generated, err := s.Translator.Generate(ctx, nl2sql.GenerateRequest{
		SchemaText: schemaText,
		Question:   question,
	})
	if err != nil {
		observability.ObserveAsk("translate_failed")
		return Outcome{}, err
	}

	normalized, err := guardrail.ValidateAndNormalize(generated.SQL, s.Store.TableName(), s.DefaultLimit)
	if err != nil {
		var gerr *guardrail.Error
		if errors.As(err, &gerr) {
			observability.ObserveAsk("guardrail_rejected")
			observability.ObserveGuardrailReject(string(gerr.Kind))
			s.log(ctx, "guardrail rejected generated sql",
				slog.String("query_id", queryID), slog.String("kind", string(gerr.Kind)))
			return Outcome{
				OK:        false,
				QueryID:   queryID,
				Question:  question,
				SQL:       generated.SQL,
				Retryable: true,
				Error:     &OutcomeError{Type: string(gerr.Kind), Message: gerr.Message},
				Timestamp: now(),
			}, nil
		}
		return Outcome{}, err
	}

	result, err := s.Engine.Execute(ctx, normalized)
	if err != nil {
		var execErr *query.ExecutionError
		if errors.As(err, &execErr) {
			s.Pending.Put(PendingQuery{
				QueryID:    queryID,
				Question:   question,
				SQL:        normalized,
				Error:      execErr.Message,
				SchemaText: schemaText,
			})
			observability.ObserveAsk("execution_failed")
			s.log(ctx, "execution failed, pending retry",
				slog.String("query_id", queryID), slog.String("error", execErr.Message))
			return Outcome{
				OK:        false,
				QueryID:   queryID,
				Question:  question,
				SQL:       normalized,
				Retryable: true,
				Error:     &OutcomeError{Type: errTypeExecution, Message: execErr.Message},
				Timestamp: now(),
			}, nil
		}
		return Outcome{}, err
	}

	observability.ObserveAsk("ok")
	return Outcome{
		OK:        true,
		QueryID:   queryID,
		Question:  question,
		SQL:       normalized,
		Columns:   result.Columns,
		Rows:      result.Rows,
		Meta:      &Meta{Assumptions: generated.Assumptions, Confidence: generated.Confidence},
		Timestamp: now(),
	}, nil
}

// Retry re-invokes the translator in repair mode against the stored failure
// context. Success clears the pending entry; another execution failure
// overwrites it and is reported as a hard error for this call, leaving the
// entry available for a further manual retry. Translator and guardrail
// failures are terminal for the call and leave the entry untouched.
func (s *Service) Retry(ctx context.Context, queryID string) (Outcome, error) {
	entry, ok := s.Pending.Get(queryID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownQueryID, queryID)
	}

	repaired, err := s.Translator.Repair(ctx, nl2sql.RepairRequest{
		SchemaText:   entry.SchemaText,
		Question:     entry.Question,
		LastSQL:      entry.SQL,
		ErrorMessage: entry.Error,
	})
	if err != nil {
		observability.ObserveRepair("translate_failed")
		return Outcome{}, err
	}

	normalized, err := guardrail.ValidateAndNormalize(repaired.SQL, s.Store.TableName(), s.DefaultLimit)
	if err != nil {
		var gerr *guardrail.Error
		if errors.As(err, &gerr) {
			observability.ObserveRepair("guardrail_rejected")
			observability.ObserveGuardrailReject(string(gerr.Kind))
		}
		return Outcome{}, fmt.Errorf("repaired sql rejected: %w", err)
	}

	result, err := s.Engine.Execute(ctx, normalized)
	if err != nil {
		var execErr *query.ExecutionError
		if errors.As(err, &execErr) {
			entry.SQL = normalized
			entry.Error = execErr.Message
			s.Pending.Put(entry)
			observability.ObserveRepair("execution_failed")
			s.log(ctx, "repair attempt failed",
				slog.String("query_id", queryID), slog.String("error", execErr.Message))
		}
		return Outcome{}, err
	}

	s.Pending.Delete(queryID)
	observability.ObserveRepair("ok")
	return Outcome{
		OK:        true,
		QueryID:   queryID,
		Question:  entry.Question,
		SQL:       normalized,
		Columns:   result.Columns,
		Rows:      result.Rows,
		Meta:      &Meta{Assumptions: repaired.Assumptions, Confidence: repaired.Confidence},
		Timestamp: now(),
	}, nil
}

// RunSQL validates and executes a caller-provided statement. No pending state
// is ever created for direct SQL.
func (s *Service) RunSQL(ctx context.Context, rawSQL string) (Outcome, error) {
	normalized, err := guardrail.ValidateAndNormalize(rawSQL, s.Store.TableName(), s.DefaultLimit)
	if err != nil {
		var gerr *guardrail.Error
		if errors.As(err, &gerr) {
			observability.ObserveGuardrailReject(string(gerr.Kind))
		}
		return Outcome{}, err
	}
	result, err := s.Engine.Execute(ctx, normalized)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		OK:        true,
		SQL:       normalized,
		Columns:   result.Columns,
		Rows:      result.Rows,
		Timestamp: now(),
	}, nil
}

func (s *Service) log(ctx context.Context, msg string, attrs ...any) {
	if s.Logger != nil {
		s.Logger.InfoContext(ctx, msg, attrs...)
	}
}

func now() time.Time {
	return time.Now().UTC()
}
