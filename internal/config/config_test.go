package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("askduck-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Dataset.TableName != "ds_active" {
		t.Fatalf("Dataset.TableName = %q", cfg.Dataset.TableName)
	}
	if cfg.Dataset.DefaultRowLimit != 100 {
		t.Fatalf("Dataset.DefaultRowLimit = %d", cfg.Dataset.DefaultRowLimit)
	}
	if cfg.Dataset.PreviewRows != 10 {
		t.Fatalf("Dataset.PreviewRows = %d", cfg.Dataset.PreviewRows)
	}
	if cfg.AI.Enabled {
		t.Fatal("AI.Enabled should default to false")
	}
	if cfg.AI.Model != "gpt-4.1-mini" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.Archive.Enabled {
		t.Fatal("Archive.Enabled should default to false")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"ASKDUCK_PROFILE": "prod"})
	cfg, err := Load("askduck-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Archive.UseSSL {
		t.Fatal("Archive.UseSSL should default to true in prod")
	}
	if cfg.Archive.AutoCreateBucket {
		t.Fatal("Archive.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"ASKDUCK_HTTP_ADDR":                 ":9999",
		"ASKDUCK_DATASET_TABLE_NAME":        "ds_custom",
		"ASKDUCK_DATASET_DEFAULT_ROW_LIMIT": "250",
		"ASKDUCK_DATASET_QUERY_TIMEOUT":     "3s",
		"ASKDUCK_DATASET_MAX_UPLOAD_BYTES":  "1048576",
		"ASKDUCK_AI_ENABLED":                "true",
		"ASKDUCK_AI_TEMPERATURE":            "0.4",
		"ASKDUCK_LOG_LEVEL":                 "warn",
	})
	cfg, err := Load("askduck-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Dataset.TableName != "ds_custom" {
		t.Fatalf("Dataset.TableName = %q", cfg.Dataset.TableName)
	}
	if cfg.Dataset.DefaultRowLimit != 250 {
		t.Fatalf("Dataset.DefaultRowLimit = %d", cfg.Dataset.DefaultRowLimit)
	}
	if cfg.Dataset.QueryTimeout != 3*time.Second {
		t.Fatalf("Dataset.QueryTimeout = %v", cfg.Dataset.QueryTimeout)
	}
	if cfg.Dataset.MaxUploadBytes != 1<<20 {
		t.Fatalf("Dataset.MaxUploadBytes = %d", cfg.Dataset.MaxUploadBytes)
	}
	if !cfg.AI.Enabled {
		t.Fatal("AI.Enabled should be true")
	}
	if cfg.AI.Temperature != 0.4 {
		t.Fatalf("AI.Temperature = %v", cfg.AI.Temperature)
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"invalid profile":  {"ASKDUCK_PROFILE": "staging"},
		"invalid duration": {"ASKDUCK_HTTP_READ_TIMEOUT": "fast"},
		"invalid int":      {"ASKDUCK_DATASET_DEFAULT_ROW_LIMIT": "ten"},
		"invalid bool":     {"ASKDUCK_AI_ENABLED": "yep"},
		"invalid level":    {"ASKDUCK_LOG_LEVEL": "loud"},
		"zero row limit":   {"ASKDUCK_DATASET_DEFAULT_ROW_LIMIT": "0"},
		"zero upload cap":  {"ASKDUCK_DATASET_MAX_UPLOAD_BYTES": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load("askduck-api", mapLookup(env)); err == nil {
				t.Fatal("Load() expected error")
			}
		})
	}
}

func TestDatasetPathsJoinDir(t *testing.T) {
	cfg, err := Load("askduck-api", mapLookup(map[string]string{"ASKDUCK_DATASET_DIR": "/tmp/ds"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dataset.DBPath() != "/tmp/ds/askduck.duckdb" {
		t.Fatalf("DBPath() = %q", cfg.Dataset.DBPath())
	}
	if cfg.Dataset.MetaPath() != "/tmp/ds/dataset.json" {
		t.Fatalf("MetaPath() = %q", cfg.Dataset.MetaPath())
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
