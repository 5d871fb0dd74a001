package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
	TableName       string
}

// OpenAITranslator talks to any OpenAI-compatible chat-completions endpoint.
type OpenAITranslator struct {
	baseURL         string
	apiKey          string
	model           string
	temperature     float64
	maxOutputTokens int
	tableName       string
	client          *http.Client
}

func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("table name is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4.1-mini"
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 200
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAITranslator{
		baseURL:         strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:          strings.TrimSpace(cfg.APIKey),
		model:           model,
		temperature:     cfg.Temperature,
		maxOutputTokens: maxTokens,
		tableName:       strings.TrimSpace(cfg.TableName),
		client:          &http.Client{Timeout: timeout},
	}, nil
}

func (t *OpenAITranslator) Generate(ctx context.Context, req GenerateRequest) (Result, error) {
	systemPrompt := fmt.Sprintf(
		"You generate SQL for DuckDB.\n"+
			"Return format:\n"+
			"- Return ONLY valid JSON (no markdown, no backticks, no code fences).\n"+
			"- Keys: sql (string), assumptions (string or list), confidence (number 0-1).\n"+
			"Rules:\n"+
			"- SQL must be a single SELECT statement.\n"+
			"- Query ONLY the table %s.\n"+
			"- Always include a LIMIT.\n"+
			"- Use only columns that exist in the schema.",
		t.tableName,
	)
	userPrompt := fmt.Sprintf("Schema:\n%s\n\nQuestion:\n%s\n", req.SchemaText, req.Question)
	return t.complete(ctx, systemPrompt, userPrompt)
}

func (t *OpenAITranslator) Repair(ctx context.Context, req RepairRequest) (Result, error) {
	systemPrompt := fmt.Sprintf(
		"You repair DuckDB SQL.\n"+
			"Return ONLY valid JSON with keys: sql, confidence.\n"+
			"Rules:\n"+
			"- Single SELECT statement.\n"+
			"- Query ONLY the table %s.\n"+
			"- Always include a LIMIT.\n"+
			"- Use only columns that exist in the schema.",
		t.tableName,
	)
	userPrompt := fmt.Sprintf(
		"Schema:\n%s\n\nQuestion:\n%s\n\nLast SQL:\n%s\n\nDuckDB error:\n%s\n\nFix the SQL to satisfy the question and schema.\n",
		req.SchemaText, req.Question, req.LastSQL, req.ErrorMessage,
	)
	return t.complete(ctx, systemPrompt, userPrompt)
}

func (t *OpenAITranslator) complete(ctx context.Context, systemPrompt, userPrompt string) (Result, error) {
	payload := map[string]any{
		"model": t.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": t.temperature,
		"max_tokens":  t.maxOutputTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Result{}, &UpstreamError{Message: fmt.Sprintf("request chat completion: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &UpstreamError{Message: fmt.Sprintf("read chat response body: %v", err)}
	}
	if resp.StatusCode >= 400 {
		return Result{}, &UpstreamError{Message: fmt.Sprintf("chat completion failed status=%d body=%s", resp.StatusCode, string(rawRespBody))}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, &UpstreamError{Message: fmt.Sprintf("decode chat completion response: %v", err)}
	}
	if len(parsed.Choices) == 0 {
		return Result{}, &UpstreamError{Message: "empty chat completion choices"}
	}

	return ExtractResult(parsed.Choices[0].Message.Content)
}
