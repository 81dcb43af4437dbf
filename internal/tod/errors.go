package tod

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound is returned when the input path does not exist.
	ErrFileNotFound = errors.New("tod file not found")
	// ErrNotHDF5 is returned when the input exists but is not an HDF5 file.
	ErrNotHDF5 = errors.New("not an HDF5 file")
	// ErrMissingDataset is returned when a required dataset is absent.
	ErrMissingDataset = errors.New("missing dataset")
	// ErrShapeMismatch is returned when a dataset's rank or extent does not
	// fit the slicing the loader performs.
	ErrShapeMismatch = errors.New("dataset shape mismatch")
	// ErrUnsupportedType is returned when a dataset's element type cannot
	// be read as float64 without reinterpreting bytes.
	ErrUnsupportedType = errors.New("unsupported dataset type")
)

// SchemaError describes why a named dataset could not be used.
// Err is ErrMissingDataset, ErrShapeMismatch or ErrUnsupportedType.
type SchemaError struct {
	Dataset string
	Reason  string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: %q: %s", e.Err, e.Dataset, e.Reason)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func missing(name string) error {
	return &SchemaError{Dataset: name, Reason: "not present in file", Err: ErrMissingDataset}
}

func badShape(name, format string, args ...any) error {
	return &SchemaError{Dataset: name, Reason: fmt.Sprintf(format, args...), Err: ErrShapeMismatch}
}
