// Package testutil provides shared test utilities and fixtures.
//
// The HDF5 helpers write small CES-shaped files at test time so tests never
// depend on checked-in binaries.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/hdf5"
)

// Dataset is one dataset to be written into a fixture file.
// Data is row-major and must hold the product of Dims values; it is
// narrowed to Type on write. A nil Type stores native float64. Group
// creates an empty group under Name instead of a dataset.
type Dataset struct {
	Name  string
	Dims  []uint
	Data  []float64
	Type  *hdf5.Datatype
	Group bool
}

// WriteHDF5 creates an HDF5 file at path containing the given datasets.
func WriteHDF5(t testing.TB, path string, datasets ...Dataset) {
	t.Helper()

	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	for _, ds := range datasets {
		if err := writeDataset(f, ds); err != nil {
			t.Fatalf("write %s/%s: %v", path, ds.Name, err)
		}
	}
}

func writeDataset(f *hdf5.File, ds Dataset) error {
	if ds.Group {
		g, err := f.CreateGroup(ds.Name)
		if err != nil {
			return err
		}
		return g.Close()
	}

	space, err := hdf5.CreateSimpleDataspace(ds.Dims, nil)
	if err != nil {
		return err
	}
	defer space.Close()

	dtype := ds.Type
	if dtype == nil {
		dtype = hdf5.T_NATIVE_DOUBLE
	}
	dset, err := f.CreateDataset(ds.Name, dtype, space)
	if err != nil {
		return err
	}
	defer dset.Close()

	if len(ds.Data) == 0 {
		return nil
	}
	// Write uses the stored type as the memory type, so the buffer must
	// already be in that type.
	switch {
	case dtype.Equal(hdf5.T_NATIVE_DOUBLE):
		data := ds.Data
		return dset.Write(&data)
	case dtype.Equal(hdf5.T_NATIVE_FLOAT):
		data := narrow[float32](ds.Data)
		return dset.Write(&data)
	case dtype.Equal(hdf5.T_NATIVE_INT64):
		data := narrow[int64](ds.Data)
		return dset.Write(&data)
	case dtype.Equal(hdf5.T_NATIVE_INT32):
		data := narrow[int32](ds.Data)
		return dset.Write(&data)
	}
	return fmt.Errorf("no writer for this datatype; leave Data empty to store fill values")
}

func narrow[T float32 | int32 | int64](in []float64) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = T(v)
	}
	return out
}

// Stored returns datasets with the named entries retyped to dtype.
func Stored(datasets []Dataset, dtype *hdf5.Datatype, names ...string) []Dataset {
	out := append([]Dataset(nil), datasets...)
	for i := range out {
		for _, n := range names {
			if out[i].Name == n {
				out[i].Type = dtype
			}
		}
	}
	return out
}

// TODDatasets builds the time, tod and point datasets from nested slices.
// tod is channels x samples and point is channels x samples x angles.
func TODDatasets(time []float64, tod [][]float64, point [][][]float64) []Dataset {
	out := []Dataset{{Name: "time", Dims: []uint{uint(len(time))}, Data: append([]float64(nil), time...)}}

	todSet := Dataset{Name: "tod", Dims: []uint{uint(len(tod)), 0}}
	for _, row := range tod {
		todSet.Dims[1] = uint(len(row))
		todSet.Data = append(todSet.Data, row...)
	}
	out = append(out, todSet)

	pointSet := Dataset{Name: "point", Dims: []uint{uint(len(point)), 0, 0}}
	for _, row := range point {
		pointSet.Dims[1] = uint(len(row))
		for _, angles := range row {
			pointSet.Dims[2] = uint(len(angles))
			pointSet.Data = append(pointSet.Data, angles...)
		}
	}
	return append(out, pointSet)
}

// UniformTOD builds datasets with time = 0..samples-1, every tod value set
// to level and every pointing sample set to angles.
func UniformTOD(channels, samples int, level float64, angles ...float64) []Dataset {
	time := make([]float64, samples)
	for j := range time {
		time[j] = float64(j)
	}
	tod := make([][]float64, channels)
	point := make([][][]float64, channels)
	for i := range tod {
		tod[i] = make([]float64, samples)
		point[i] = make([][]float64, samples)
		for j := range tod[i] {
			tod[i][j] = level
			point[i][j] = append([]float64(nil), angles...)
		}
	}
	return TODDatasets(time, tod, point)
}

// Without drops the named datasets.
func Without(datasets []Dataset, names ...string) []Dataset {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	var out []Dataset
	for _, ds := range datasets {
		if !skip[ds.Name] {
			out = append(out, ds)
		}
	}
	return out
}

// WriteCES writes datasets to a fresh file under t.TempDir and returns its
// path.
func WriteCES(t testing.TB, datasets []Dataset) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ces.hdf")
	WriteHDF5(t, path, datasets...)
	return path
}

// WriteText writes a non-HDF5 file and returns its path.
func WriteText(t testing.TB, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
