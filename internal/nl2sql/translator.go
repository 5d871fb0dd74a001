package nl2sql

import "context"

type GenerateRequest struct {
	SchemaText string
	Question   string
}

type RepairRequest struct {
	SchemaText   string
	Question     string
	LastSQL      string
	ErrorMessage string
}

// Result is the governed view of one model reply. Raw keeps the untouched
// model text for diagnostics.
type Result struct {
	SQL         string   `json:"sql"`
	Confidence  float64  `json:"confidence"`
	Assumptions []string `json:"assumptions"`
	Raw         string   `json:"-"`
}

// Translator converts a natural-language question into a candidate SQL
// statement. Repair is a corrective second pass fed with the prior failing
// statement and the backend's error message.
type Translator interface {
	Generate(ctx context.Context, req GenerateRequest) (Result, error)
	Repair(ctx context.Context, req RepairRequest) (Result, error)
}
