package tod

import (
	"fmt"

	"gonum.org/v1/hdf5"
)

// Source is a read-only view of a container of named float datasets.
// The HDF5 file opened by Load is the production implementation.
type Source interface {
	// Has reports whether a dataset with the given name exists.
	Has(name string) bool
	// Dims returns the extent of the named dataset, outermost axis first.
	Dims(name string) ([]int, error)
	// ReadFloat64 reads the whole named dataset in row-major order.
	ReadFloat64(name string) ([]float64, error)
}

// h5Source adapts an open HDF5 file to Source. It does not own the file.
type h5Source struct {
	f *hdf5.File
}

func (s h5Source) Has(name string) bool {
	return s.f.LinkExists(name)
}

func (s h5Source) Dims(name string) ([]int, error) {
	ds, err := s.open(name)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	return datasetDims(ds)
}

// open fails with a *SchemaError when the link exists but is not a dataset.
func (s h5Source) open(name string) (*hdf5.Dataset, error) {
	ds, err := s.f.OpenDataset(name)
	if err != nil {
		return nil, badShape(name, "not a dataset: %v", err)
	}
	return ds, nil
}

func (s h5Source) ReadFloat64(name string) ([]float64, error) {
	ds, err := s.open(name)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	dims, err := datasetDims(ds)
	if err != nil {
		return nil, err
	}
	n := product(dims)

	dtype, err := ds.Datatype()
	if err != nil {
		return nil, fmt.Errorf("datatype of %q: %w", name, err)
	}
	defer dtype.Close()

	// Read uses the stored type as the memory type, so the buffer must
	// match it exactly; widening to float64 happens here.
	switch {
	case dtype.Equal(hdf5.T_NATIVE_DOUBLE):
		return readInto(ds, name, make([]float64, n), func(v float64) float64 { return v })
	case dtype.Equal(hdf5.T_NATIVE_FLOAT):
		return readInto(ds, name, make([]float32, n), func(v float32) float64 { return float64(v) })
	case dtype.Equal(hdf5.T_NATIVE_INT64):
		return readInto(ds, name, make([]int64, n), func(v int64) float64 { return float64(v) })
	case dtype.Equal(hdf5.T_NATIVE_INT32):
		return readInto(ds, name, make([]int32, n), func(v int32) float64 { return float64(v) })
	}
	return nil, &SchemaError{
		Dataset: name,
		Reason:  fmt.Sprintf("stored as class %v (%d bytes); want native float32, float64, int32 or int64", dtype.Class(), dtype.Size()),
		Err:     ErrUnsupportedType,
	}
}

func readInto[T float32 | float64 | int32 | int64](ds *hdf5.Dataset, name string, buf []T, widen func(T) float64) ([]float64, error) {
	out := make([]float64, len(buf))
	if len(buf) == 0 {
		return out, nil
	}
	if err := ds.Read(&buf); err != nil {
		return nil, fmt.Errorf("read dataset %q: %w", name, err)
	}
	for i, v := range buf {
		out[i] = widen(v)
	}
	return out, nil
}

func datasetDims(ds *hdf5.Dataset) ([]int, error) {
	space := ds.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, fmt.Errorf("dataspace of %q: %w", ds.Name(), err)
	}
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d)
	}
	return out, nil
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
