// Package todplot renders an Observation as static PNG plots (gonum/plot)
// and as a single interactive HTML page (go-echarts).
package todplot

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/quiet-tools/todinspect/internal/tod"
)

// Options selects what to draw and where.
type Options struct {
	// OutputDir receives the rendered files. It is created if missing.
	OutputDir string
	// Channels are the tod channels drawn. Empty means DefaultChannels.
	Channels []int
	// PointingChannel is the row of the pointing matrices drawn.
	PointingChannel int
	// MaxPoints caps the number of points drawn per series.
	MaxPoints int
	Layout    tod.Layout
}

const defaultMaxPoints = 5000

// DefaultChannels picks the signal diodes of the first horn, falling back
// to channel 0 when the layout yields nothing for this file.
func DefaultChannels(obs *tod.Observation, layout tod.Layout) []int {
	sig := layout.SignalChannels(obs.Channels())
	if n := len(layout.SignalDiodes); len(sig) > n {
		sig = sig[:n]
	}
	if len(sig) == 0 {
		return []int{0}
	}
	return sig
}

func (o Options) resolve(obs *tod.Observation) (Options, error) {
	if o.MaxPoints < 2 {
		o.MaxPoints = defaultMaxPoints
	}
	if len(o.Channels) == 0 {
		o.Channels = DefaultChannels(obs, o.Layout)
	}
	for _, ch := range o.Channels {
		if ch < 0 || ch >= obs.Channels() {
			return o, fmt.Errorf("channel %d out of range [0, %d)", ch, obs.Channels())
		}
	}
	if o.PointingChannel < 0 || o.PointingChannel >= obs.PointingChannels() {
		return o, fmt.Errorf("pointing channel %d out of range [0, %d)", o.PointingChannel, obs.PointingChannels())
	}
	return o, nil
}

// stride returns the step that keeps n samples within max points.
func stride(n, max int) int {
	if max <= 0 || n <= max {
		return 1
	}
	return (n + max - 1) / max
}

// series is one decimated x/y trace with x relative to the first sample.
type series struct {
	label string
	x     []float64
	y     []float64
}

func decimate(label string, t, y []float64, max int) series {
	step := stride(len(t), max)
	s := series{label: label}
	if len(t) == 0 {
		return s
	}
	t0 := t[0]
	for _, v := range t {
		if finite(v) {
			t0 = v
			break
		}
	}
	for j := 0; j < len(t); j += step {
		s.x = append(s.x, t[j]-t0)
		s.y = append(s.y, y[j])
	}
	return s
}

// finite reports whether every value can be placed on an axis.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func todSeries(obs *tod.Observation, o Options) []series {
	out := make([]series, 0, len(o.Channels))
	for _, ch := range o.Channels {
		out = append(out, decimate(o.Layout.Label(ch), obs.Time, obs.Channel(ch), o.MaxPoints))
	}
	return out
}

func pointingSeries(obs *tod.Observation, o Options) []series {
	row := func(name string, m *mat.Dense) series {
		return decimate(name, obs.Time, m.RawRowView(o.PointingChannel), o.MaxPoints)
	}
	return []series{
		row("phi", obs.Pointing.Phi),
		row("theta", obs.Pointing.Theta),
		row("psi", obs.Pointing.Psi),
	}
}
