package todplot

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/quiet-tools/todinspect/internal/monitoring"
	"github.com/quiet-tools/todinspect/internal/tod"
)

// File names written by RenderPNG, in order.
const (
	TODFile      = "tod.png"
	PointingFile = "pointing.png"
	SkyFile      = "sky.png"
)

// RenderPNG writes the tod, pointing and sky-track plots into
// opts.OutputDir and returns the paths written.
func RenderPNG(obs *tod.Observation, opts Options) ([]string, error) {
	o, err := opts.resolve(obs)
	if err != nil {
		return nil, err
	}
	if o.OutputDir == "" {
		return nil, fmt.Errorf("no output directory configured")
	}
	if err := os.MkdirAll(o.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var written []string

	pTOD := plot.New()
	pTOD.Title.Text = fmt.Sprintf("TOD - %s", filepath.Base(obs.Path))
	pTOD.X.Label.Text = "Time since start"
	pTOD.Y.Label.Text = "Amplitude"
	if err := addLines(pTOD, todSeries(obs, o)); err != nil {
		return written, err
	}
	if err := save(pTOD, filepath.Join(o.OutputDir, TODFile), &written); err != nil {
		return written, err
	}

	pPoint := plot.New()
	pPoint.Title.Text = fmt.Sprintf("Pointing - channel %d", o.PointingChannel)
	pPoint.X.Label.Text = "Time since start"
	pPoint.Y.Label.Text = "Angle"
	if err := addLines(pPoint, pointingSeries(obs, o)); err != nil {
		return written, err
	}
	if err := save(pPoint, filepath.Join(o.OutputDir, PointingFile), &written); err != nil {
		return written, err
	}

	pSky := plot.New()
	pSky.Title.Text = fmt.Sprintf("Sky track - channel %d", o.PointingChannel)
	pSky.X.Label.Text = "phi"
	pSky.Y.Label.Text = "theta"
	sky, err := plotter.NewScatter(skyXYs(obs, o))
	if err != nil {
		return written, err
	}
	sky.GlyphStyle.Radius = vg.Points(1)
	sky.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	pSky.Add(sky)
	if err := save(pSky, filepath.Join(o.OutputDir, SkyFile), &written); err != nil {
		return written, err
	}

	monitoring.Logf("wrote %d plots to %s", len(written), o.OutputDir)
	return written, nil
}

func addLines(p *plot.Plot, ss []series) error {
	colors := generateColors(len(ss))
	for i, s := range ss {
		if len(s.x) == 0 {
			continue
		}
		// plotter rejects NaN and Inf, so dropouts become gaps in the trace.
		pts := make(plotter.XYs, 0, len(s.x))
		for j := range s.x {
			if finite(s.x[j], s.y[j]) {
				pts = append(pts, plotter.XY{X: s.x[j], Y: s.y[j]})
			}
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s: %w", s.label, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.label, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return nil
}

func save(p *plot.Plot, path string, written *[]string) error {
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	*written = append(*written, path)
	return nil
}

func skyXYs(obs *tod.Observation, o Options) plotter.XYs {
	phi := obs.Pointing.Phi.RawRowView(o.PointingChannel)
	theta := obs.Pointing.Theta.RawRowView(o.PointingChannel)
	step := stride(len(phi), o.MaxPoints)
	pts := make(plotter.XYs, 0, len(phi)/step+1)
	for j := 0; j < len(phi); j += step {
		if finite(phi[j], theta[j]) {
			pts = append(pts, plotter.XY{X: phi[j], Y: theta[j]})
		}
	}
	return pts
}

// generateColors creates a palette of distinct colors for channel lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t += 1
	case t > 1:
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
