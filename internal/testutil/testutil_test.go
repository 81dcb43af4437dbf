package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/hdf5"
)

func TestTODDatasets_Shapes(t *testing.T) {
	sets := TODDatasets(
		[]float64{0, 1, 2},
		[][]float64{{1, 2, 3}, {4, 5, 6}},
		[][][]float64{
			{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}},
			{{4, 5, 6}, {4, 5, 6}, {4, 5, 6}},
		},
	)
	require.Len(t, sets, 3)
	assert.Equal(t, []uint{3}, sets[0].Dims)
	assert.Equal(t, []uint{2, 3}, sets[1].Dims)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, sets[1].Data)
	assert.Equal(t, []uint{2, 3, 3}, sets[2].Dims)
	assert.Len(t, sets[2].Data, 18)
}

func TestUniformTOD(t *testing.T) {
	sets := UniformTOD(2, 4, 0.5, 1, 2, 3)
	assert.Equal(t, []float64{0, 1, 2, 3}, sets[0].Data)
	assert.Equal(t, []uint{2, 4}, sets[1].Dims)
	for _, v := range sets[1].Data {
		assert.Equal(t, 0.5, v)
	}
	assert.Equal(t, []uint{2, 4, 3}, sets[2].Dims)
	assert.Equal(t, []float64{1, 2, 3}, sets[2].Data[:3])
}

func TestWithout(t *testing.T) {
	sets := Without(UniformTOD(1, 2, 0, 0, 0, 0), "point")
	require.Len(t, sets, 2)
	assert.Equal(t, "time", sets[0].Name)
	assert.Equal(t, "tod", sets[1].Name)
}

func TestWriteCES_RoundTrip(t *testing.T) {
	path := WriteCES(t, UniformTOD(2, 3, 7, 1, 2, 3))
	require.True(t, hdf5.IsHDF5(path))

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer f.Close()

	for _, name := range []string{"time", "tod", "point"} {
		assert.True(t, f.LinkExists(name), name)
	}

	ds, err := f.OpenDataset("tod")
	require.NoError(t, err)
	defer ds.Close()

	got := make([]float64, 6)
	require.NoError(t, ds.Read(&got))
	assert.Equal(t, []float64{7, 7, 7, 7, 7, 7}, got)
}

func TestWriteText_NotHDF5(t *testing.T) {
	path := WriteText(t, "notes.hdf", "not hdf5")
	assert.False(t, hdf5.IsHDF5(path))
}

func TestWriteCES_Float32Storage(t *testing.T) {
	sets := Stored(UniformTOD(1, 2, 0.5, 1, 2, 3), hdf5.T_NATIVE_FLOAT, "tod")
	assert.Nil(t, sets[0].Type, "other datasets keep native float64")
	path := WriteCES(t, sets)

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer f.Close()

	ds, err := f.OpenDataset("tod")
	require.NoError(t, err)
	defer ds.Close()

	dtype, err := ds.Datatype()
	require.NoError(t, err)
	defer dtype.Close()
	assert.True(t, dtype.Equal(hdf5.T_NATIVE_FLOAT))

	got := make([]float32, 2)
	require.NoError(t, ds.Read(&got))
	assert.Equal(t, []float32{0.5, 0.5}, got)
}

func TestWriteCES_Group(t *testing.T) {
	path := WriteCES(t, []Dataset{{Name: "point", Group: true}})

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, f.LinkExists("point"))
	_, err = f.OpenDataset("point")
	assert.Error(t, err)
}
