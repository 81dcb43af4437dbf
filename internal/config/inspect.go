package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical inspection defaults file.
const DefaultConfigPath = "config/inspect.defaults.json"

// InspectConfig is the root configuration for a TOD inspection run.
// Every field is optional; the Get* accessors fall back to built-in
// defaults so partial files are safe. Command-line flags are applied on
// top of whatever was loaded.
type InspectConfig struct {
	// Input
	File         *string `json:"file,omitempty"`
	TimeDataset  *string `json:"time_dataset,omitempty"`
	TODDataset   *string `json:"tod_dataset,omitempty"`
	PointDataset *string `json:"point_dataset,omitempty"`

	// Position of each angle along the last axis of the pointing dataset.
	PhiIndex   *int `json:"phi_index,omitempty"`
	ThetaIndex *int `json:"theta_index,omitempty"`
	PsiIndex   *int `json:"psi_index,omitempty"`

	// Detector layout. Informational: it drives channel labels and the
	// default plot selection, never validation of the file.
	Horns         *int  `json:"horns,omitempty"`
	DiodesPerHorn *int  `json:"diodes_per_horn,omitempty"`
	SignalDiodes  []int `json:"signal_diodes,omitempty"` // one-based

	// Output
	OutputDir     *string `json:"output_dir,omitempty"`
	WritePNG      *bool   `json:"write_png,omitempty"`
	WriteHTML     *bool   `json:"write_html,omitempty"`
	PlotChannels  []int   `json:"plot_channels,omitempty"` // zero-based
	MaxPlotPoints *int    `json:"max_plot_points,omitempty"`
	CatalogPath   *string `json:"catalog_path,omitempty"`
}

// Built-in defaults used when a field is absent.
const (
	defaultTimeDataset   = "time"
	defaultTODDataset    = "tod"
	defaultPointDataset  = "point"
	defaultHorns         = 19
	defaultDiodesPerHorn = 4
	defaultOutputDir     = "plots"
	defaultMaxPlotPoints = 5000
)

var defaultSignalDiodes = []int{1, 4}

// EmptyInspectConfig returns an InspectConfig with all fields unset.
func EmptyInspectConfig() *InspectConfig {
	return &InspectConfig{}
}

// LoadInspectConfig loads an InspectConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadInspectConfig(path string) (*InspectConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyInspectConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file
// cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *InspectConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/ and cmd/todinspect/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadInspectConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *InspectConfig) Validate() error {
	for name, v := range map[string]*string{
		"time_dataset":  c.TimeDataset,
		"tod_dataset":   c.TODDataset,
		"point_dataset": c.PointDataset,
	} {
		if v != nil && *v == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}

	phi, theta, psi := c.GetPhiIndex(), c.GetThetaIndex(), c.GetPsiIndex()
	if phi < 0 || theta < 0 || psi < 0 {
		return fmt.Errorf("pointing indices must be non-negative, got phi=%d theta=%d psi=%d", phi, theta, psi)
	}
	if phi == theta || phi == psi || theta == psi {
		return fmt.Errorf("pointing indices must be distinct, got phi=%d theta=%d psi=%d", phi, theta, psi)
	}

	if c.Horns != nil && *c.Horns <= 0 {
		return fmt.Errorf("horns must be positive, got %d", *c.Horns)
	}
	if c.DiodesPerHorn != nil && *c.DiodesPerHorn <= 0 {
		return fmt.Errorf("diodes_per_horn must be positive, got %d", *c.DiodesPerHorn)
	}
	diodes := c.GetDiodesPerHorn()
	for _, d := range c.SignalDiodes {
		if d < 1 || d > diodes {
			return fmt.Errorf("signal_diodes entry %d outside 1..%d", d, diodes)
		}
	}

	for _, ch := range c.PlotChannels {
		if ch < 0 {
			return fmt.Errorf("plot_channels entry must be non-negative, got %d", ch)
		}
	}

	if c.MaxPlotPoints != nil && *c.MaxPlotPoints < 2 {
		return fmt.Errorf("max_plot_points must be at least 2, got %d", *c.MaxPlotPoints)
	}

	return nil
}

// GetFile returns the input file path, or "" when none is configured.
func (c *InspectConfig) GetFile() string {
	if c.File == nil {
		return ""
	}
	return *c.File
}

// GetTimeDataset returns the name of the timestamp dataset.
func (c *InspectConfig) GetTimeDataset() string {
	if c.TimeDataset == nil {
		return defaultTimeDataset
	}
	return *c.TimeDataset
}

// GetTODDataset returns the name of the amplitude dataset.
func (c *InspectConfig) GetTODDataset() string {
	if c.TODDataset == nil {
		return defaultTODDataset
	}
	return *c.TODDataset
}

// GetPointDataset returns the name of the pointing dataset.
func (c *InspectConfig) GetPointDataset() string {
	if c.PointDataset == nil {
		return defaultPointDataset
	}
	return *c.PointDataset
}

// GetPhiIndex returns the phi position along the pointing axis.
func (c *InspectConfig) GetPhiIndex() int {
	if c.PhiIndex == nil {
		return 0
	}
	return *c.PhiIndex
}

// GetThetaIndex returns the theta position along the pointing axis.
func (c *InspectConfig) GetThetaIndex() int {
	if c.ThetaIndex == nil {
		return 1
	}
	return *c.ThetaIndex
}

// GetPsiIndex returns the psi position along the pointing axis.
func (c *InspectConfig) GetPsiIndex() int {
	if c.PsiIndex == nil {
		return 2
	}
	return *c.PsiIndex
}

// GetHorns returns the number of horns (modules).
func (c *InspectConfig) GetHorns() int {
	if c.Horns == nil {
		return defaultHorns
	}
	return *c.Horns
}

// GetDiodesPerHorn returns the number of diodes in each horn.
func (c *InspectConfig) GetDiodesPerHorn() int {
	if c.DiodesPerHorn == nil {
		return defaultDiodesPerHorn
	}
	return *c.DiodesPerHorn
}

// GetSignalDiodes returns the one-based diodes that carry most of the signal.
func (c *InspectConfig) GetSignalDiodes() []int {
	if len(c.SignalDiodes) == 0 {
		return append([]int(nil), defaultSignalDiodes...)
	}
	return append([]int(nil), c.SignalDiodes...)
}

// GetOutputDir returns the directory plots are written to.
func (c *InspectConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return defaultOutputDir
	}
	return *c.OutputDir
}

// GetWritePNG reports whether static PNG plots are rendered.
func (c *InspectConfig) GetWritePNG() bool {
	if c.WritePNG == nil {
		return true
	}
	return *c.WritePNG
}

// GetWriteHTML reports whether the interactive HTML page is rendered.
func (c *InspectConfig) GetWriteHTML() bool {
	if c.WriteHTML == nil {
		return true
	}
	return *c.WriteHTML
}

// GetPlotChannels returns the explicitly selected channels, or nil when the
// selection should be derived from the layout.
func (c *InspectConfig) GetPlotChannels() []int {
	if len(c.PlotChannels) == 0 {
		return nil
	}
	return append([]int(nil), c.PlotChannels...)
}

// GetMaxPlotPoints returns the per-series point budget for plots.
func (c *InspectConfig) GetMaxPlotPoints() int {
	if c.MaxPlotPoints == nil {
		return defaultMaxPlotPoints
	}
	return *c.MaxPlotPoints
}

// GetCatalogPath returns the SQLite catalogue path, or "" when disabled.
func (c *InspectConfig) GetCatalogPath() string {
	if c.CatalogPath == nil {
		return ""
	}
	return *c.CatalogPath
}

// PtrString returns a pointer to v, for flag overrides.
func PtrString(v string) *string { return &v }

// PtrBool returns a pointer to v, for flag overrides.
func PtrBool(v bool) *bool { return &v }

// PtrInt returns a pointer to v, for flag overrides.
func PtrInt(v int) *int { return &v }
