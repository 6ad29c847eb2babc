package model

import "context"

// RowFetcher retrieves the raw rows of one named snapshot file.
type RowFetcher interface {
	Fetch(ctx context.Context, name string) ([]RawRow, error)
}

// DatasetWriter receives every dataset generation that becomes current.
// Implementations replace their previous contents wholesale.
type DatasetWriter interface {
	ReplaceDataset(ds *Dataset) error
}

// SchemaQuerier provides schema introspection and arbitrary read-only queries.
type SchemaQuerier interface {
	ExecuteQuery(query string) ([]map[string]interface{}, error)
	GetSchemaDescription() string
	TableRowCounts() (map[string]int64, error)
}
