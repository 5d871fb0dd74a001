package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/askduck/askduck/internal/config"
	"github.com/askduck/askduck/internal/dataset"
	"github.com/askduck/askduck/internal/storage"
)

const multipartMemoryBytes = 32 << 20

type schemaResponse struct {
	Table      string           `json:"table"`
	Source     string           `json:"source"`
	Filename   string           `json:"filename"`
	RowCount   int64            `json:"row_count"`
	Columns    []dataset.Column `json:"columns"`
	SchemaText string           `json:"schema_text"`
}

type previewResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func schemaPayload(meta dataset.Meta) schemaResponse {
	return schemaResponse{
		Table:      meta.TableName,
		Source:     string(meta.Source),
		Filename:   meta.Filename,
		RowCount:   meta.RowCount,
		Columns:    meta.Columns,
		SchemaText: dataset.Render(meta),
	}
}

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Dataset == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASET_NOT_CONFIGURED", "dataset store is not configured", false, nil)
		return
	}
	meta, err := deps.Dataset.CurrentSchema(r.Context())
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, schemaPayload(meta))
}

func handlePreview(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Dataset == nil || deps.Engine == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASET_NOT_CONFIGURED", "dataset store is not configured", false, nil)
		return
	}
	if _, err := deps.Dataset.CurrentSchema(r.Context()); err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	rows := cfg.Dataset.PreviewRows
	if rows <= 0 {
		rows = 10
	}
	result, err := deps.Engine.Execute(r.Context(), fmt.Sprintf("SELECT * FROM %s LIMIT %d", deps.Dataset.TableName(), rows))
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Columns: result.Columns, Rows: result.Rows})
}

func handleUpload(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Dataset == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASET_NOT_CONFIGURED", "dataset store is not configured", false, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, cfg.Dataset.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "upload exceeds the configured size limit", false, map[string]any{"limit_bytes": cfg.Dataset.MaxUploadBytes})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_MULTIPART", "expected multipart form with a file field", false, map[string]any{"details": err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "FILE_REQUIRED", "file field is required", false, nil)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		writeError(r.Context(), w, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "only .csv uploads are accepted", false, map[string]any{"filename": header.Filename})
		return
	}

	uploadPath := cfg.Dataset.UploadPath()
	if err := saveUpload(uploadPath, file); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "UPLOAD_WRITE_FAILED", "failed to persist uploaded file", true, map[string]any{"details": err.Error()})
		return
	}

	meta, err := deps.Dataset.Load(r.Context(), uploadPath, dataset.SourceUpload, header.Filename)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "DATASET_LOAD_FAILED", "failed to load uploaded file into the active table", false, map[string]any{"details": err.Error()})
		return
	}

	archiveUpload(deps, r, uploadPath)
	writeJSON(w, http.StatusOK, schemaPayload(meta))
}

func handleLoadDemo(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Dataset == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASET_NOT_CONFIGURED", "dataset store is not configured", false, nil)
		return
	}
	meta, err := deps.Dataset.LoadDemo(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "DATASET_LOAD_FAILED", "failed to load demo dataset", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemaPayload(meta))
}

func saveUpload(path string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

// archiveUpload copies the accepted file to the object store. Archive failures
// do not fail the request, the local copy is already authoritative.
func archiveUpload(deps Dependencies, r *http.Request, path string) {
	if deps.Archive == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		logArchiveFailure(deps, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		logArchiveFailure(deps, r, err)
		return
	}
	if _, err := deps.Archive.Put(r.Context(), storage.UploadObjectKey, f, info.Size(), "text/csv"); err != nil {
		logArchiveFailure(deps, r, err)
	}
}

func logArchiveFailure(deps Dependencies, r *http.Request, err error) {
	if deps.Logger != nil {
		deps.Logger.WarnContext(r.Context(), "failed to archive uploaded dataset", "error", err)
	}
}
