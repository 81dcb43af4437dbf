// Package tod loads time-ordered detector data and telescope pointing from
// a single CES file and derives the per-angle pointing matrices.
package tod

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/hdf5"

	"github.com/quiet-tools/todinspect/internal/monitoring"
	"github.com/quiet-tools/todinspect/internal/timeutil"
)

// LoadOptions names the datasets to read and where each angle sits along
// the last axis of the pointing dataset. Zero values take the defaults.
type LoadOptions struct {
	TimeDataset  string
	TODDataset   string
	PointDataset string

	// PointingIndex holds the phi, theta and psi positions, in that order.
	// A nil slice means 0, 1, 2.
	PointingIndex []int

	Clock timeutil.Clock
}

// DefaultLoadOptions reads time, tod and point with phi, theta, psi at
// positions 0, 1 and 2.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		TimeDataset:   "time",
		TODDataset:    "tod",
		PointDataset:  "point",
		PointingIndex: []int{0, 1, 2},
	}
}

func (o LoadOptions) withDefaults() LoadOptions {
	def := DefaultLoadOptions()
	if o.TimeDataset == "" {
		o.TimeDataset = def.TimeDataset
	}
	if o.TODDataset == "" {
		o.TODDataset = def.TODDataset
	}
	if o.PointDataset == "" {
		o.PointDataset = def.PointDataset
	}
	if o.PointingIndex == nil {
		o.PointingIndex = def.PointingIndex
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	return o
}

func (o LoadOptions) validate() error {
	if len(o.PointingIndex) != 3 {
		return fmt.Errorf("pointing index needs 3 positions (phi, theta, psi), got %d", len(o.PointingIndex))
	}
	for _, k := range o.PointingIndex {
		if k < 0 {
			return fmt.Errorf("pointing index must be non-negative, got %d", k)
		}
	}
	return nil
}

// Load opens the HDF5 file at path read-only, reads the time, tod and
// point datasets in full and derives phi, theta and psi. The file is
// closed before Load returns, on every path.
//
// A missing path yields ErrFileNotFound. A file that is not HDF5 yields
// ErrNotHDF5. Absent datasets and unexpected shapes yield a *SchemaError
// wrapping ErrMissingDataset or ErrShapeMismatch.
func Load(path string, opts LoadOptions) (*Observation, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrFileNotFound, err)
		}
		return nil, fmt.Errorf("stat tod file: %w", err)
	}
	if !hdf5.IsHDF5(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotHDF5, path)
	}

	start := opts.Clock.Now()
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			monitoring.Logf("close %s: %v", path, cerr)
		}
	}()
	monitoring.Debugf("opened %s", path)

	obs, err := Decode(h5Source{f: f}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	obs.Path = path

	monitoring.Logf("loaded %s: %d channels x %d samples in %v",
		path, obs.Channels(), obs.Samples(), opts.Clock.Since(start))
	return obs, nil
}

// Decode reads the three datasets from src and builds an Observation.
// Presence of every dataset is checked before anything is read, and all
// shapes are checked before any slicing.
func Decode(src Source, opts LoadOptions) (*Observation, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	for _, name := range []string{opts.TimeDataset, opts.TODDataset, opts.PointDataset} {
		if !src.Has(name) {
			return nil, missing(name)
		}
	}

	shape, err := checkShapes(src, opts)
	if err != nil {
		return nil, err
	}

	t, err := readExact(src, opts.TimeDataset, shape.samples)
	if err != nil {
		return nil, err
	}
	todData, err := readExact(src, opts.TODDataset, shape.channels*shape.samples)
	if err != nil {
		return nil, err
	}
	point, err := readExact(src, opts.PointDataset, shape.pointChannels*shape.samples*shape.angles)
	if err != nil {
		return nil, err
	}

	obs := &Observation{
		Time: t,
		TOD:  mat.NewDense(shape.channels, shape.samples, todData),
		Pointing: Pointing{
			Phi:   sliceLastAxis(point, shape, opts.PointingIndex[0]),
			Theta: sliceLastAxis(point, shape, opts.PointingIndex[1]),
			Psi:   sliceLastAxis(point, shape, opts.PointingIndex[2]),
		},
	}
	return obs, nil
}

type shapes struct {
	samples       int
	channels      int
	pointChannels int
	angles        int
}

func checkShapes(src Source, opts LoadOptions) (shapes, error) {
	var s shapes

	timeDims, err := src.Dims(opts.TimeDataset)
	if err != nil {
		return s, err
	}
	if len(timeDims) != 1 {
		return s, badShape(opts.TimeDataset, "rank %d, want 1", len(timeDims))
	}
	s.samples = timeDims[0]
	if s.samples == 0 {
		return s, badShape(opts.TimeDataset, "no samples")
	}

	todDims, err := src.Dims(opts.TODDataset)
	if err != nil {
		return s, err
	}
	if len(todDims) != 2 {
		return s, badShape(opts.TODDataset, "rank %d, want 2 (channels x samples)", len(todDims))
	}
	if todDims[0] == 0 {
		return s, badShape(opts.TODDataset, "no channels")
	}
	if todDims[1] != s.samples {
		return s, badShape(opts.TODDataset, "%d samples, %s has %d", todDims[1], opts.TimeDataset, s.samples)
	}
	s.channels = todDims[0]

	pointDims, err := src.Dims(opts.PointDataset)
	if err != nil {
		return s, err
	}
	if len(pointDims) != 3 {
		return s, badShape(opts.PointDataset, "rank %d, want 3 (channels x samples x angles)", len(pointDims))
	}
	if pointDims[0] == 0 {
		return s, badShape(opts.PointDataset, "no channels")
	}
	if pointDims[1] != s.samples {
		return s, badShape(opts.PointDataset, "%d samples, %s has %d", pointDims[1], opts.TimeDataset, s.samples)
	}
	for _, k := range opts.PointingIndex {
		if k >= pointDims[2] {
			return s, badShape(opts.PointDataset, "last axis has %d entries, index %d requested", pointDims[2], k)
		}
	}
	s.pointChannels = pointDims[0]
	s.angles = pointDims[2]

	monitoring.Debugf("shapes: %s=%v %s=%v %s=%v",
		opts.TimeDataset, timeDims, opts.TODDataset, todDims, opts.PointDataset, pointDims)
	return s, nil
}

func readExact(src Source, name string, want int) ([]float64, error) {
	data, err := src.ReadFloat64(name)
	if err != nil {
		return nil, err
	}
	if len(data) != want {
		return nil, badShape(name, "read %d values, want %d", len(data), want)
	}
	return data, nil
}

// sliceLastAxis copies point[:, :, k] into a pointChannels x samples matrix.
func sliceLastAxis(point []float64, s shapes, k int) *mat.Dense {
	out := make([]float64, s.pointChannels*s.samples)
	for i := 0; i < s.pointChannels; i++ {
		for j := 0; j < s.samples; j++ {
			out[i*s.samples+j] = point[(i*s.samples+j)*s.angles+k]
		}
	}
	return mat.NewDense(s.pointChannels, s.samples, out)
}
