package todplot

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/quiet-tools/todinspect/internal/monitoring"
	"github.com/quiet-tools/todinspect/internal/tod"
)

// HTMLFile is the page written by WriteHTML.
const HTMLFile = "inspect.html"

// RenderHTML renders an interactive page with the tod lines, the pointing
// angles and the sky track, each with a zoom slider.
func RenderHTML(obs *tod.Observation, plotOpts Options, w io.Writer) error {
	o, err := plotOpts.resolve(obs)
	if err != nil {
		return err
	}
	name := filepath.Base(obs.Path)

	todChart := lineChart(
		fmt.Sprintf("TOD - %s", name),
		fmt.Sprintf("channels=%d samples=%d", obs.Channels(), obs.Samples()),
		todSeries(obs, o),
	)
	pointChart := lineChart(
		fmt.Sprintf("Pointing - channel %d", o.PointingChannel),
		"phi / theta / psi",
		pointingSeries(obs, o),
	)

	skyData := make([]opts.ScatterData, 0)
	for _, xy := range skyXYs(obs, o) {
		skyData = append(skyData, opts.ScatterData{Value: []interface{}{xy.X, xy.Y}})
	}
	sky := charts.NewScatter()
	sky.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Sky track", Subtitle: fmt.Sprintf("channel=%d points=%d", o.PointingChannel, len(skyData))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "phi", NameLocation: "middle", NameGap: 25, Min: "dataMin", Max: "dataMax"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "theta", NameLocation: "middle", NameGap: 40, Min: "dataMin", Max: "dataMax"}),
	)
	sky.AddSeries("track", skyData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("TOD inspection - %s", name)
	page.AddCharts(todChart, pointChart, sky)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// WriteHTML renders the page into the output directory and returns its path.
func WriteHTML(obs *tod.Observation, plotOpts Options) (string, error) {
	if plotOpts.OutputDir == "" {
		return "", fmt.Errorf("no output directory configured")
	}
	if err := os.MkdirAll(plotOpts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(plotOpts.OutputDir, HTMLFile)

	var buf bytes.Buffer
	if err := RenderHTML(obs, plotOpts, &buf); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	monitoring.Logf("wrote %s", path)
	return path, nil
}

func lineChart(title, subtitle string, ss []series) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t - t0", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: "dataMin", Max: "dataMax"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	if len(ss) == 0 {
		return line
	}

	// All series share the time axis, so labels come from the first one.
	labels := make([]string, len(ss[0].x))
	for j, x := range ss[0].x {
		labels[j] = strconv.FormatFloat(x, 'g', 8, 64)
	}
	line.SetXAxis(labels)

	for _, s := range ss {
		data := make([]opts.LineData, len(s.y))
		for j, y := range s.y {
			// "-" is the chart's missing-value marker; NaN cannot be encoded as JSON.
			if finite(y) {
				data[j] = opts.LineData{Value: y}
			} else {
				data[j] = opts.LineData{Value: "-"}
			}
		}
		line.AddSeries(s.label, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line
}

// OpenBrowser hands path to the platform's default opener.
func OpenBrowser(path string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{path}
	case "linux":
		cmd = "xdg-open"
		args = []string{path}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", path}
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
