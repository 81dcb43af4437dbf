package todplot

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/quiet-tools/todinspect/internal/monitoring"
	"github.com/quiet-tools/todinspect/internal/tod"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func sampleObservation(channels, samples int) *tod.Observation {
	t := make([]float64, samples)
	todData := make([]float64, channels*samples)
	phi := make([]float64, channels*samples)
	theta := make([]float64, channels*samples)
	psi := make([]float64, channels*samples)
	for j := range t {
		t[j] = 55000.5 + float64(j)*0.01
	}
	for i := 0; i < channels; i++ {
		for j := 0; j < samples; j++ {
			k := i*samples + j
			todData[k] = float64(i) + float64(j%7)*0.1
			phi[k] = float64(j) * 0.02
			theta[k] = 0.7 + float64(j%5)*0.001
			psi[k] = 1.1
		}
	}
	return &tod.Observation{
		Path: "/data/patch_gc_2571.hdf",
		Time: t,
		TOD:  mat.NewDense(channels, samples, todData),
		Pointing: tod.Pointing{
			Phi:   mat.NewDense(channels, samples, phi),
			Theta: mat.NewDense(channels, samples, theta),
			Psi:   mat.NewDense(channels, samples, psi),
		},
	}
}

func TestStride(t *testing.T) {
	tests := []struct {
		n, max, want int
	}{
		{10, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{1000, 100, 10},
		{1001, 100, 11},
		{50, 0, 1},
	}
	for _, tt := range tests {
		if got := stride(tt.n, tt.max); got != tt.want {
			t.Errorf("stride(%d, %d) = %d, want %d", tt.n, tt.max, got, tt.want)
		}
	}
}

func TestDecimate_RelativeTime(t *testing.T) {
	s := decimate("ch", []float64{10, 11, 12, 13, 14}, []float64{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, []float64{0, 3}, s.x)
	assert.Equal(t, []float64{1, 4}, s.y)
}

func TestDecimate_NaNTimeOrigin(t *testing.T) {
	s := decimate("ch", []float64{math.NaN(), 11, 12}, []float64{1, 2, 3}, 10)
	assert.True(t, math.IsNaN(s.x[0]))
	assert.Equal(t, []float64{0, 1}, s.x[1:])
}

func TestSkyXYs_SkipsNonFinite(t *testing.T) {
	obs := sampleObservation(1, 4)
	obs.Pointing.Phi.Set(0, 1, math.NaN())
	obs.Pointing.Theta.Set(0, 2, math.Inf(1))

	pts := skyXYs(obs, Options{MaxPoints: 10})
	require.Len(t, pts, 2)
	assert.Equal(t, 0.0, pts[0].X)
	assert.InDelta(t, 0.06, pts[1].X, 1e-12)
}

// withDropouts blanks a stretch of samples the way a detector dropout does.
func withDropouts(obs *tod.Observation) *tod.Observation {
	rows, _ := obs.TOD.Dims()
	for i := 0; i < rows; i++ {
		for j := 10; j < 20; j++ {
			obs.TOD.Set(i, j, math.NaN())
			obs.Pointing.Phi.Set(i, j, math.NaN())
			obs.Pointing.Theta.Set(i, j, math.NaN())
		}
		obs.TOD.Set(i, 25, math.Inf(-1))
	}
	obs.Time[0] = math.NaN()
	return obs
}

func TestDefaultChannels(t *testing.T) {
	layout := tod.DefaultLayout()

	assert.Equal(t, []int{0, 3}, DefaultChannels(sampleObservation(76, 4), layout))
	assert.Equal(t, []int{0, 3}, DefaultChannels(sampleObservation(4, 4), layout))
	assert.Equal(t, []int{0}, DefaultChannels(sampleObservation(2, 4), layout))
	assert.Equal(t, []int{0}, DefaultChannels(sampleObservation(2, 4), tod.Layout{}))
}

func TestResolve_RejectsOutOfRange(t *testing.T) {
	obs := sampleObservation(2, 4)

	_, err := Options{Channels: []int{2}}.resolve(obs)
	assert.ErrorContains(t, err, "channel 2 out of range")

	_, err = Options{Channels: []int{0}, PointingChannel: 5}.resolve(obs)
	assert.ErrorContains(t, err, "pointing channel 5")
}

func TestRenderPNG(t *testing.T) {
	obs := sampleObservation(4, 300)
	dir := filepath.Join(t.TempDir(), "plots", "patch_gc_2571")

	paths, err := RenderPNG(obs, Options{OutputDir: dir, Layout: tod.DefaultLayout(), MaxPoints: 100})
	require.NoError(t, err)
	require.Len(t, paths, 3)

	for i, name := range []string{TODFile, PointingFile, SkyFile} {
		assert.Equal(t, filepath.Join(dir, name), paths[i])
		info, err := os.Stat(paths[i])
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestRenderPNG_NonFiniteSamples(t *testing.T) {
	obs := withDropouts(sampleObservation(2, 60))

	paths, err := RenderPNG(obs, Options{OutputDir: t.TempDir(), Layout: tod.DefaultLayout(), Channels: []int{0, 1}})
	require.NoError(t, err)
	assert.Len(t, paths, 3)
}

func TestRenderPNG_NoOutputDir(t *testing.T) {
	_, err := RenderPNG(sampleObservation(1, 3), Options{})
	assert.ErrorContains(t, err, "no output directory")
}

func TestRenderHTML(t *testing.T) {
	obs := sampleObservation(4, 50)

	var buf bytes.Buffer
	err := RenderHTML(obs, Options{Channels: []int{1, 2}, Layout: tod.DefaultLayout()}, &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.True(t, strings.Contains(html, "TOD - patch_gc_2571.hdf"))
	assert.Contains(t, html, "Sky track")
	assert.Contains(t, html, "H00D2")
	assert.Contains(t, html, "H00D3")
	assert.Contains(t, html, "theta")
}

func TestRenderHTML_NonFiniteSamples(t *testing.T) {
	obs := withDropouts(sampleObservation(2, 60))

	var buf bytes.Buffer
	err := RenderHTML(obs, Options{Channels: []int{0, 1}, Layout: tod.DefaultLayout()}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "channel=0 points=50")
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteHTML(sampleObservation(2, 10), Options{OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, HTMLFile), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "echarts")
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	colors := generateColors(5)
	require.Len(t, colors, 5)
	assert.NotEqual(t, colors[0], colors[1])
}

func TestHSLToRGB(t *testing.T) {
	r, g, b := hslToRGB(0, 0, 0.5)
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)

	r, g, b = hslToRGB(0, 1, 0.5)
	assert.Equal(t, uint8(255), r)
	assert.Equal(t, uint8(0), g)
	assert.Equal(t, uint8(0), b)
}
