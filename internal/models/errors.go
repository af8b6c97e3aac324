package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResult is returned by aggregations asked to summarise a view with
// no rows. The filter engine itself never returns it.
var ErrEmptyResult = errors.New("no rows matched the filter criteria")

// DataUnavailableError reports a dataset input that cannot be read.
// It is fatal for the session that needed the data.
type DataUnavailableError struct {
	Path string
	Err  error
}

func (e *DataUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("data unavailable: %s", e.Path)
	}
	return fmt.Sprintf("data unavailable: %s: %v", e.Path, e.Err)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// IsTransient returns false; retrying the same read yields the same result
// until the file is fixed.
func (e *DataUnavailableError) IsTransient() bool {
	return false
}

// SchemaMismatchError reports columns a feature needs that the dataset lacks.
// Callers degrade by skipping the feature (or filter dimension) named here.
type SchemaMismatchError struct {
	Source     string
	Feature    string
	Columns    []string
	Dimensions []Dimension
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s requires column(s) %s missing from %s",
		e.Feature, strings.Join(e.Columns, ", "), e.Source)
}

// IsTransient returns false as the dataset schema does not change.
func (e *SchemaMismatchError) IsTransient() bool {
	return false
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// IsDataUnavailable reports whether err wraps a DataUnavailableError.
func IsDataUnavailable(err error) bool {
	var target *DataUnavailableError
	return errors.As(err, &target)
}

// AsSchemaMismatch extracts a SchemaMismatchError from err.
func AsSchemaMismatch(err error) (*SchemaMismatchError, bool) {
	var target *SchemaMismatchError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
