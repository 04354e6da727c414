package loader

import (
	"errors"
	"fmt"
)

// ErrMissingDataset is matched by MissingDatasetError.
var ErrMissingDataset = errors.New("dataset not loaded")

// MissingDatasetError is returned when a logical dataset name is requested but
// was never retrieved, usually because its retrieval failed earlier.
type MissingDatasetError struct {
	Name string
}

func (e *MissingDatasetError) Error() string {
	return fmt.Sprintf("dataset %q not loaded", e.Name)
}

func (e *MissingDatasetError) Is(target error) bool {
	return target == ErrMissingDataset
}

// RetrievalError records a dataset whose retrieval did not succeed. It is
// reported as a diagnostic, never returned from Load.
type RetrievalError struct {
	Name       string
	Address    string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retrieve %s from %s: status %d: %v", e.Name, e.Address, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("retrieve %s from %s: status %d", e.Name, e.Address, e.StatusCode)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
