package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiet-tools/todinspect/internal/catalog"
	"github.com/quiet-tools/todinspect/internal/config"
	"github.com/quiet-tools/todinspect/internal/monitoring"
	"github.com/quiet-tools/todinspect/internal/testutil"
	"github.com/quiet-tools/todinspect/internal/tod"
	"github.com/quiet-tools/todinspect/internal/todplot"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// setFlag sets a command-line flag for the duration of the test.
func setFlag(t *testing.T, name, value string) {
	t.Helper()
	f := flag.Lookup(name)
	require.NotNil(t, f, "flag %s not defined", name)
	old := f.Value.String()
	require.NoError(t, flag.Set(name, value))
	t.Cleanup(func() { _ = flag.Set(name, old) })
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "", *configPath)
	assert.Equal(t, "", *filePath)
	assert.False(t, *noPNG)
	assert.False(t, *noHTML)
	assert.False(t, *openHTML)
	assert.Equal(t, 0, *pointingChannel)
	assert.Equal(t, "", *catalogPath)
}

func TestParseChannels(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"0,3", []int{0, 3}, false},
		{" 4 , 7 ,", []int{4, 7}, false},
		{"12", []int{12}, false},
		{",", nil, true},
		{"a,1", nil, true},
	}
	for _, tt := range tests {
		got, err := parseChannels(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestApplyFlags(t *testing.T) {
	setFlag(t, "out", "/tmp/plots")
	setFlag(t, "no-html", "true")
	setFlag(t, "channels", "1,2")

	cfg := config.EmptyInspectConfig()
	require.NoError(t, applyFlags(cfg, []string{"patch_gc_2571.hdf"}))

	assert.Equal(t, "patch_gc_2571.hdf", cfg.GetFile())
	assert.Equal(t, "/tmp/plots", cfg.GetOutputDir())
	assert.True(t, cfg.GetWritePNG())
	assert.False(t, cfg.GetWriteHTML())
	assert.Equal(t, []int{1, 2}, cfg.GetPlotChannels())
}

func TestApplyFlags_FileFlagWins(t *testing.T) {
	setFlag(t, "file", "from-flag.hdf")
	cfg := config.EmptyInspectConfig()
	require.NoError(t, applyFlags(cfg, []string{"from-arg.hdf"}))
	assert.Equal(t, "from-flag.hdf", cfg.GetFile())
}

func TestApplyFlags_Errors(t *testing.T) {
	assert.ErrorContains(t, applyFlags(config.EmptyInspectConfig(), nil), "no input file")
	assert.ErrorContains(t, applyFlags(config.EmptyInspectConfig(), []string{"a", "b"}), "at most one")
}

func TestRun_EndToEnd(t *testing.T) {
	ces := testutil.WriteCES(t, testutil.UniformTOD(4, 20, 0.25, 1, 2, 3))
	out := filepath.Join(t.TempDir(), "plots")
	db := filepath.Join(t.TempDir(), "catalog.db")

	cfg := config.EmptyInspectConfig()
	cfg.File = config.PtrString(ces)
	cfg.OutputDir = config.PtrString(out)
	cfg.CatalogPath = config.PtrString(db)

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, runOptions{}, &buf))

	text := buf.String()
	assert.Contains(t, text, "tod:      4 channels x 20 samples")
	assert.Contains(t, text, "theta:    2.0000 .. 2.0000")
	assert.Contains(t, text, "H00D4")
	assert.Contains(t, text, "catalogue: ")

	for _, name := range []string{todplot.TODFile, todplot.PointingFile, todplot.SkyFile, todplot.HTMLFile} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	store, err := catalog.Open(db, nil)
	require.NoError(t, err)
	defer store.Close()
	entries, err := store.ForPath(context.Background(), ces)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].Summary.Channels)
}

func TestRun_SkipsDisabledOutputs(t *testing.T) {
	ces := testutil.WriteCES(t, testutil.UniformTOD(1, 5, 0, 1, 2, 3))
	out := filepath.Join(t.TempDir(), "plots")

	cfg := config.EmptyInspectConfig()
	cfg.File = config.PtrString(ces)
	cfg.OutputDir = config.PtrString(out)
	cfg.WritePNG = config.PtrBool(false)
	cfg.WriteHTML = config.PtrBool(false)

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, runOptions{}, &buf))
	_, err := os.Stat(out)
	assert.True(t, errors.Is(err, os.ErrNotExist), "no output directory should be created")
}

func TestRun_FileNotFound(t *testing.T) {
	cfg := config.EmptyInspectConfig()
	cfg.File = config.PtrString(filepath.Join(t.TempDir(), "missing.hdf"))

	err := run(context.Background(), cfg, runOptions{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, tod.ErrFileNotFound)
}

func TestRun_MissingPoint(t *testing.T) {
	ces := testutil.WriteCES(t, testutil.Without(testutil.UniformTOD(2, 3, 0, 1, 2, 3), "point"))
	cfg := config.EmptyInspectConfig()
	cfg.File = config.PtrString(ces)

	var buf bytes.Buffer
	err := run(context.Background(), cfg, runOptions{}, &buf)
	assert.ErrorIs(t, err, tod.ErrMissingDataset)
	assert.Empty(t, buf.String(), "nothing is printed before the file validates")
}

func TestLoadOptionsFromConfig(t *testing.T) {
	cfg := config.EmptyInspectConfig()
	cfg.PhiIndex = config.PtrInt(2)
	cfg.PsiIndex = config.PtrInt(0)
	cfg.PointDataset = config.PtrString("pointing")

	lo := loadOptionsFromConfig(cfg)
	assert.Equal(t, []int{2, 1, 0}, lo.PointingIndex)
	assert.Equal(t, "pointing", lo.PointDataset)
	assert.Equal(t, "time", lo.TimeDataset)
}

func TestLayoutFromConfig(t *testing.T) {
	l := layoutFromConfig(config.MustLoadDefaultConfig())
	assert.Equal(t, tod.DefaultLayout(), l)
}
