package tod

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Observation is one CES worth of data, fully materialised at load time.
// Nothing mutates it afterwards; callers must treat the matrices as
// read-only.
type Observation struct {
	Path string
	// Time holds one timestamp per sample.
	Time []float64
	// TOD is channels x samples.
	TOD *mat.Dense
	// Pointing matrices are pointing-channels x samples.
	Pointing Pointing
}

// Pointing holds the three angular coordinates per channel and sample.
type Pointing struct {
	Phi   *mat.Dense // azimuth-like
	Theta *mat.Dense // zenith-like
	Psi   *mat.Dense // rotation
}

// Channels returns the number of tod channels.
func (o *Observation) Channels() int {
	r, _ := o.TOD.Dims()
	return r
}

// Samples returns the number of samples per channel.
func (o *Observation) Samples() int {
	return len(o.Time)
}

// PointingChannels returns the number of channels in the pointing matrices.
func (o *Observation) PointingChannels() int {
	r, _ := o.Pointing.Phi.Dims()
	return r
}

// Channel returns a copy of one channel's tod.
func (o *Observation) Channel(i int) []float64 {
	return mat.Row(nil, i, o.TOD)
}

// ChannelStats summarises one tod channel.
type ChannelStats struct {
	Channel int
	Label   string
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
}

// AngleRange is the extent of one pointing component.
type AngleRange struct {
	Min float64
	Max float64
}

// Summary is the scalar description of an Observation, suitable for
// printing and for the inspection catalogue.
type Summary struct {
	Path             string
	Channels         int
	Samples          int
	PointingChannels int
	TimeStart        float64
	TimeEnd          float64
	LayoutMatches    bool
	Stats            []ChannelStats
	Phi              AngleRange
	Theta            AngleRange
	Psi              AngleRange
}

// Duration is the span covered by the time axis, in the file's units.
func (s Summary) Duration() float64 {
	return s.TimeEnd - s.TimeStart
}

// Summarize computes per-channel statistics and pointing ranges. The
// StdDev of a single-sample channel is NaN.
func (o *Observation) Summarize(layout Layout) Summary {
	s := Summary{
		Path:             o.Path,
		Channels:         o.Channels(),
		Samples:          o.Samples(),
		PointingChannels: o.PointingChannels(),
		TimeStart:        o.Time[0],
		TimeEnd:          o.Time[len(o.Time)-1],
		LayoutMatches:    layout.Matches(o.Channels()),
		Phi:              angleRange(o.Pointing.Phi),
		Theta:            angleRange(o.Pointing.Theta),
		Psi:              angleRange(o.Pointing.Psi),
	}

	row := make([]float64, o.Samples())
	s.Stats = make([]ChannelStats, s.Channels)
	for i := range s.Stats {
		mat.Row(row, i, o.TOD)
		mean, std := stat.MeanStdDev(row, nil)
		s.Stats[i] = ChannelStats{
			Channel: i,
			Label:   layout.Label(i),
			Mean:    mean,
			StdDev:  std,
			Min:     floats.Min(row),
			Max:     floats.Max(row),
		}
	}
	return s
}

func angleRange(m *mat.Dense) AngleRange {
	return AngleRange{Min: mat.Min(m), Max: mat.Max(m)}
}
