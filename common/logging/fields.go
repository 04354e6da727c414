package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across the pipeline stages.
const (
	FieldRunID    = "run_id"
	FieldDataset  = "dataset"
	FieldURL      = "url"
	FieldStatus   = "status"
	FieldColumn   = "column"
	FieldEntityID = "entity_id"
	FieldRows     = "rows"
	FieldDuration = "duration_ms"
	FieldError    = "error"
	FieldStage    = "stage"
)

// RunID returns a slog attribute for the reconciliation run ID.
func RunID(id string) slog.Attr {
	return slog.String(FieldRunID, id)
}

// Dataset returns a slog attribute for a logical dataset name.
func Dataset(name string) slog.Attr {
	return slog.String(FieldDataset, name)
}

// URL returns a slog attribute for a retrieval address.
func URL(u string) slog.Attr {
	return slog.String(FieldURL, u)
}

// Status returns a slog attribute for a retrieval status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Column returns a slog attribute for a table column name.
func Column(name string) slog.Attr {
	return slog.String(FieldColumn, name)
}

// EntityID returns a slog attribute for an entity key.
func EntityID(id string) slog.Attr {
	return slog.String(FieldEntityID, id)
}

// Rows returns a slog attribute for a row count.
func Rows(n int) slog.Attr {
	return slog.Int(FieldRows, n)
}

// Duration returns a slog attribute for an elapsed time in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Stage returns a slog attribute for a pipeline stage name.
func Stage(name string) slog.Attr {
	return slog.String(FieldStage, name)
}
