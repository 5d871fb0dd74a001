package dataset

import "errors"

// ErrDataSourceUnavailable reports that no loadable data source exists, either
// because a CSV path is missing or because no active table has been created yet.
var ErrDataSourceUnavailable = errors.New("data source unavailable")

type Source string

const (
	SourceDemo   Source = "demo"
	SourceUpload Source = "upload"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Meta describes the active dataset: its fixed table name, where the data came
// from, and the live schema and row count.
type Meta struct {
	TableName string   `json:"table"`
	Source    Source   `json:"source"`
	Filename  string   `json:"filename"`
	Columns   []Column `json:"columns"`
	RowCount  int64    `json:"row_count"`
}
