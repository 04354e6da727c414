package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestStringFields(t *testing.T) {
	tests := []struct {
		name  string
		attr  slog.Attr
		key   string
		value string
	}{
		{name: "run id", attr: RunID("run-1"), key: FieldRunID, value: "run-1"},
		{name: "dataset", attr: Dataset("intake"), key: FieldDataset, value: "intake"},
		{name: "url", attr: URL("https://example.org/x.csv"), key: FieldURL, value: "https://example.org/x.csv"},
		{name: "column", attr: Column("datetime"), key: FieldColumn, value: "datetime"},
		{name: "entity id", attr: EntityID("A123"), key: FieldEntityID, value: "A123"},
		{name: "stage", attr: Stage("normalize"), key: FieldStage, value: "normalize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, tt.attr.Key)
			}
			if tt.attr.Value.String() != tt.value {
				t.Errorf("expected value %q, got %q", tt.value, tt.attr.Value.String())
			}
		})
	}
}

func TestStatus(t *testing.T) {
	attr := Status(404)
	if attr.Key != FieldStatus {
		t.Errorf("expected key %q, got %q", FieldStatus, attr.Key)
	}
	if attr.Value.Int64() != 404 {
		t.Errorf("expected value 404, got %d", attr.Value.Int64())
	}
}

func TestRows(t *testing.T) {
	attr := Rows(6)
	if attr.Key != FieldRows {
		t.Errorf("expected key %q, got %q", FieldRows, attr.Key)
	}
	if attr.Value.Int64() != 6 {
		t.Errorf("expected value 6, got %d", attr.Value.Int64())
	}
}

func TestDuration(t *testing.T) {
	attr := Duration(1500 * time.Millisecond)
	if attr.Key != FieldDuration {
		t.Errorf("expected key %q, got %q", FieldDuration, attr.Key)
	}
	if attr.Value.Int64() != 1500 {
		t.Errorf("expected value 1500, got %d", attr.Value.Int64())
	}
}

func TestError(t *testing.T) {
	attr := Error(errors.New("status 503"))
	if attr.Key != FieldError {
		t.Errorf("expected key %q, got %q", FieldError, attr.Key)
	}
	if attr.Value.String() != "status 503" {
		t.Errorf("expected value %q, got %q", "status 503", attr.Value.String())
	}
}
