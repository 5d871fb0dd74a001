package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/askduck/askduck/internal/config"
)

// Store owns the single active dataset inside an embedded DuckDB file.
// Replacement loads into a staging table and swaps inside one transaction, so
// readers observe either the fully-old or fully-new table, never a partial one.
type Store struct {
	cfg config.DatasetConfig
	db  *sql.DB
	mu  sync.RWMutex
}

type sidecar struct {
	Source   string `json:"source"`
	Filename string `json:"filename"`
}

func Open(cfg config.DatasetConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}
	db, err := sql.Open("duckdb", cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Store{cfg: cfg, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the backing handle for the execution engine. User SQL reads a
// consistent table because the replacement swap is transactional.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) TableName() string {
	return s.cfg.TableName
}

// Load replaces the active dataset with the contents of the given CSV (or
// parquet) file. The old table is gone once Load returns.
func (s *Store) Load(ctx context.Context, path string, source Source, filename string) (Meta, error) {
	if _, err := os.Stat(path); err != nil {
		return Meta{}, fmt.Errorf("%w: %s", ErrDataSourceUnavailable, path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staging := s.cfg.TableName + "_staging"
	createSQL := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM %s",
		quoteIdent(staging), readerExpr(path),
	)
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return Meta{}, fmt.Errorf("load dataset from %q: %w", path, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("begin table swap: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(s.cfg.TableName)); err != nil {
		_ = tx.Rollback()
		return Meta{}, fmt.Errorf("drop previous table: %w", err)
	}
	renameSQL := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(staging), quoteIdent(s.cfg.TableName))
	if _, err := tx.ExecContext(ctx, renameSQL); err != nil {
		_ = tx.Rollback()
		return Meta{}, fmt.Errorf("swap staging table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Meta{}, fmt.Errorf("commit table swap: %w", err)
	}

	// The swap has committed; a sidecar failure only degrades origin
	// reporting, which already tolerates missing or corrupt metadata.
	_ = s.writeSidecar(sidecar{Source: string(source), Filename: filename})
	return s.describeLocked(ctx)
}

// CurrentSchema reads the live schema and row count of the active table.
// Corrupt or missing sidecar metadata degrades to a presence heuristic, never
// to an error.
func (s *Store) CurrentSchema(ctx context.Context) (Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exists, err := s.tableExists(ctx)
	if err != nil {
		return Meta{}, err
	}
	if !exists {
		return Meta{}, fmt.Errorf("%w: no active table", ErrDataSourceUnavailable)
	}
	return s.describeLocked(ctx)
}

// EnsureInitialized loads a previously uploaded CSV if one is on disk, or the
// bundled demo CSV otherwise. Idempotent: an existing active table is kept.
func (s *Store) EnsureInitialized(ctx context.Context) error {
	s.mu.RLock()
	exists, err := s.tableExists(ctx)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := os.Stat(s.cfg.UploadPath()); err == nil {
		filename := filepath.Base(s.cfg.UploadPath())
		if meta, ok := s.readSidecar(); ok && meta.Filename != "" {
			filename = meta.Filename
		}
		_, err := s.Load(ctx, s.cfg.UploadPath(), SourceUpload, filename)
		return err
	}

	_, err = s.LoadDemo(ctx)
	return err
}

// LoadDemo replaces the active table with the bundled demo dataset.
func (s *Store) LoadDemo(ctx context.Context) (Meta, error) {
	if err := materializeDemo(s.cfg.DemoPath()); err != nil {
		return Meta{}, err
	}
	return s.Load(ctx, s.cfg.DemoPath(), SourceDemo, DemoFilename)
}

func (s *Store) describeLocked(ctx context.Context) (Meta, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position",
		s.cfg.TableName,
	)
	if err != nil {
		return Meta{}, fmt.Errorf("describe table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var column Column
		if err := rows.Scan(&column.Name, &column.Type); err != nil {
			return Meta{}, fmt.Errorf("scan column metadata: %w", err)
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return Meta{}, fmt.Errorf("iterate column metadata: %w", err)
	}

	var rowCount int64
	countSQL := "SELECT COUNT(*) FROM " + quoteIdent(s.cfg.TableName)
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&rowCount); err != nil {
		return Meta{}, fmt.Errorf("count rows: %w", err)
	}

	source, filename := s.resolveOrigin()
	return Meta{
		TableName: s.cfg.TableName,
		Source:    source,
		Filename:  filename,
		Columns:   columns,
		RowCount:  rowCount,
	}, nil
}

func (s *Store) tableExists(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?",
		s.cfg.TableName,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check table existence: %w", err)
	}
	return count > 0, nil
}

func (s *Store) resolveOrigin() (Source, string) {
	if meta, ok := s.readSidecar(); ok {
		switch Source(meta.Source) {
		case SourceDemo, SourceUpload:
			return Source(meta.Source), meta.Filename
		}
	}
	if _, err := os.Stat(s.cfg.UploadPath()); err == nil {
		return SourceUpload, filepath.Base(s.cfg.UploadPath())
	}
	return SourceDemo, DemoFilename
}

func (s *Store) readSidecar() (sidecar, bool) {
	raw, err := os.ReadFile(s.cfg.MetaPath())
	if err != nil {
		return sidecar{}, false
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return sidecar{}, false
	}
	return meta, true
}

func (s *Store) writeSidecar(meta sidecar) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal dataset metadata: %w", err)
	}
	if err := os.WriteFile(s.cfg.MetaPath(), raw, 0o644); err != nil {
		return fmt.Errorf("write dataset metadata: %w", err)
	}
	return nil
}

func readerExpr(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return "read_parquet(" + quoteLiteral(path) + ")"
	}
	return "read_csv_auto(" + quoteLiteral(path) + ", header=true)"
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteLiteral(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
