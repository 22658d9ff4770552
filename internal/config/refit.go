package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical refit defaults file.
// This is the single source of truth for all default refit values.
const DefaultConfigPath = "config/refit.defaults.json"

// Layer ranges switched off when fitting with silicon and micromegas only.
const (
	FirstTPCLayer = 7
	LastTPCLayer  = 54
)

// MaxLayer is the largest layer number a cluster key can encode.
const MaxLayer = 255

// RefitConfig represents the root configuration for the track refit.
// Every field is optional: the Get* methods supply defaults for anything
// left out of the file, so partial configs are safe.
type RefitConfig struct {
	// Layer selection
	DisabledLayers []int `json:"disabled_layers,omitempty" yaml:"disabled_layers,omitempty"`
	FitSiliconMMs  *bool `json:"fit_silicon_mms,omitempty" yaml:"fit_silicon_mms,omitempty"`
	UseMicromegas  *bool `json:"use_micromegas,omitempty" yaml:"use_micromegas,omitempty"`

	// Candidate selection
	FitMinPT        *float64 `json:"fit_min_pt,omitempty" yaml:"fit_min_pt,omitempty"`
	CandidateFilter *string  `json:"candidate_filter,omitempty" yaml:"candidate_filter,omitempty"`
	VertexMinNDF    *float64 `json:"vertex_min_ndf,omitempty" yaml:"vertex_min_ndf,omitempty"`

	// Fit seed and engine
	PrimaryPIDGuess  *int     `json:"primary_pid_guess,omitempty" yaml:"primary_pid_guess,omitempty"`
	SeedMomentum     *float64 `json:"seed_momentum,omitempty" yaml:"seed_momentum,omitempty"`
	SeedCovariance   *float64 `json:"seed_covariance,omitempty" yaml:"seed_covariance,omitempty"`
	EnginePriorScale *float64 `json:"engine_prior_scale,omitempty" yaml:"engine_prior_scale,omitempty"`

	// Cluster position corrections
	DisableModuleEdgeCorr  *bool    `json:"disable_module_edge_corr,omitempty" yaml:"disable_module_edge_corr,omitempty"`
	DisableStaticCorr      *bool    `json:"disable_static_corr,omitempty" yaml:"disable_static_corr,omitempty"`
	DisableAverageCorr     *bool    `json:"disable_average_corr,omitempty" yaml:"disable_average_corr,omitempty"`
	DisableFluctuationCorr *bool    `json:"disable_fluctuation_corr,omitempty" yaml:"disable_fluctuation_corr,omitempty"`
	TPCDriftVelocity       *float64 `json:"tpc_drift_velocity,omitempty" yaml:"tpc_drift_velocity,omitempty"` // cm/ns

	Verbosity *int `json:"verbosity,omitempty" yaml:"verbosity,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyRefitConfig returns a RefitConfig with all fields set to nil.
// Use LoadRefitConfig to load actual values from the defaults file.
func EmptyRefitConfig() *RefitConfig {
	return &RefitConfig{}
}

// DefaultRefitConfig returns a RefitConfig with every field populated
// from the built-in defaults.
func DefaultRefitConfig() *RefitConfig {
	empty := EmptyRefitConfig()
	return &RefitConfig{
		DisabledLayers:         []int{},
		FitSiliconMMs:          ptrBool(empty.GetFitSiliconMMs()),
		UseMicromegas:          ptrBool(empty.GetUseMicromegas()),
		FitMinPT:               ptrFloat64(empty.GetFitMinPT()),
		CandidateFilter:        ptrString(empty.GetCandidateFilter()),
		VertexMinNDF:           ptrFloat64(empty.GetVertexMinNDF()),
		PrimaryPIDGuess:        ptrInt(empty.GetPrimaryPIDGuess()),
		SeedMomentum:           ptrFloat64(empty.GetSeedMomentum()),
		SeedCovariance:         ptrFloat64(empty.GetSeedCovariance()),
		EnginePriorScale:       ptrFloat64(empty.GetEnginePriorScale()),
		DisableModuleEdgeCorr:  ptrBool(false),
		DisableStaticCorr:      ptrBool(false),
		DisableAverageCorr:     ptrBool(false),
		DisableFluctuationCorr: ptrBool(false),
		TPCDriftVelocity:       ptrFloat64(empty.GetTPCDriftVelocity()),
		Verbosity:              ptrInt(empty.GetVerbosity()),
	}
}

// LoadRefitConfig loads a RefitConfig from a JSON or YAML file.
// The extension selects the decoder; the file must be under 1MB.
// Fields omitted from the file retain their default values.
func LoadRefitConfig(path string) (*RefitConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
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

	cfg := EmptyRefitConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ErrNoDefaults is returned by LoadDefaultConfig when the defaults file is
// not found in any of the searched directories.
var ErrNoDefaults = errors.New("refit defaults file not found")

// defaultConfigCandidates are searched in order by LoadDefaultConfig.
var defaultConfigCandidates = []string{
	DefaultConfigPath,
	"../../" + DefaultConfigPath,       // from internal/config/ and cmd/trackrefit/
	"../../../" + DefaultConfigPath,    // from internal/fitengine/lineengine/
	"../../../../" + DefaultConfigPath, // deeper packages
}

// LoadDefaultConfig loads the canonical refit defaults from DefaultConfigPath,
// searching the current directory and common parent directories. A defaults
// file that exists but does not parse is an error.
func LoadDefaultConfig() (*RefitConfig, error) {
	for _, path := range defaultConfigCandidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadRefitConfig(path)
	}
	return nil, ErrNoDefaults
}

// MustLoadDefaultConfig is LoadDefaultConfig for test setup.
// Panics if the file cannot be loaded.
func MustLoadDefaultConfig() *RefitConfig {
	cfg, err := LoadDefaultConfig()
	if err != nil {
		panic("cannot load " + DefaultConfigPath + " - run tests from repository root: " + err.Error())
	}
	return cfg
}

// Overlay copies every field set in o onto c.
func (c *RefitConfig) Overlay(o *RefitConfig) {
	dst := reflect.ValueOf(c).Elem()
	src := reflect.ValueOf(o).Elem()
	for i := 0; i < src.NumField(); i++ {
		if f := src.Field(i); !f.IsNil() {
			dst.Field(i).Set(f)
		}
	}
}

// knownPIDs are the particle hypotheses the propagation model supports.
var knownPIDs = map[int]bool{
	11: true, -11: true,     // e-, e+
	13: true, -13: true,     // mu-, mu+
	211: true, -211: true,   // pi+, pi-
	321: true, -321: true,   // K+, K-
	2212: true, -2212: true, // p, pbar
}

// Validate checks that the configuration values are valid.
func (c *RefitConfig) Validate() error {
	for _, layer := range c.DisabledLayers {
		if layer < 0 || layer > MaxLayer {
			return fmt.Errorf("disabled layer %d out of range [0, %d]", layer, MaxLayer)
		}
	}

	if c.FitMinPT != nil && *c.FitMinPT < 0 {
		return fmt.Errorf("fit_min_pt must be non-negative, got %f", *c.FitMinPT)
	}

	if c.PrimaryPIDGuess != nil && !knownPIDs[*c.PrimaryPIDGuess] {
		return fmt.Errorf("unsupported primary_pid_guess %d", *c.PrimaryPIDGuess)
	}

	if c.SeedMomentum != nil && *c.SeedMomentum <= 0 {
		return fmt.Errorf("seed_momentum must be positive, got %f", *c.SeedMomentum)
	}

	if c.SeedCovariance != nil && *c.SeedCovariance <= 0 {
		return fmt.Errorf("seed_covariance must be positive, got %f", *c.SeedCovariance)
	}

	if c.EnginePriorScale != nil && *c.EnginePriorScale <= 0 {
		return fmt.Errorf("engine_prior_scale must be positive, got %f", *c.EnginePriorScale)
	}

	if c.TPCDriftVelocity != nil && *c.TPCDriftVelocity <= 0 {
		return fmt.Errorf("tpc_drift_velocity must be positive, got %f", *c.TPCDriftVelocity)
	}

	if c.Verbosity != nil && *c.Verbosity < 0 {
		return fmt.Errorf("verbosity must be non-negative, got %d", *c.Verbosity)
	}

	return nil
}

// GetDisabledLayers returns the sorted, de-duplicated set of layers excluded
// from the fit. When fit_silicon_mms is set all TPC layers are included.
func (c *RefitConfig) GetDisabledLayers() []int {
	seen := make(map[int]bool, len(c.DisabledLayers))
	var out []int
	add := func(layer int) {
		if !seen[layer] {
			seen[layer] = true
			out = append(out, layer)
		}
	}
	for _, layer := range c.DisabledLayers {
		add(layer)
	}
	if c.GetFitSiliconMMs() {
		for layer := FirstTPCLayer; layer <= LastTPCLayer; layer++ {
			add(layer)
		}
	}
	sort.Ints(out)
	return out
}

// GetFitSiliconMMs returns the fit_silicon_mms value or the default.
func (c *RefitConfig) GetFitSiliconMMs() bool {
	if c.FitSiliconMMs == nil {
		return false
	}
	return *c.FitSiliconMMs
}

// GetUseMicromegas returns the use_micromegas value or the default.
func (c *RefitConfig) GetUseMicromegas() bool {
	if c.UseMicromegas == nil {
		return true
	}
	return *c.UseMicromegas
}

// GetFitMinPT returns the fit_min_pt value (GeV) or the default.
func (c *RefitConfig) GetFitMinPT() float64 {
	if c.FitMinPT == nil {
		return 0.1
	}
	return *c.FitMinPT
}

// GetCandidateFilter returns the candidate_filter expression or "".
func (c *RefitConfig) GetCandidateFilter() string {
	if c.CandidateFilter == nil {
		return ""
	}
	return *c.CandidateFilter
}

// GetVertexMinNDF returns the vertex_min_ndf value or the default.
func (c *RefitConfig) GetVertexMinNDF() float64 {
	if c.VertexMinNDF == nil {
		return 20
	}
	return *c.VertexMinNDF
}

// GetPrimaryPIDGuess returns the primary_pid_guess value or the default (pi+).
func (c *RefitConfig) GetPrimaryPIDGuess() int {
	if c.PrimaryPIDGuess == nil {
		return 211
	}
	return *c.PrimaryPIDGuess
}

// GetSeedMomentum returns the seed_momentum value (GeV) or the default.
func (c *RefitConfig) GetSeedMomentum() float64 {
	if c.SeedMomentum == nil {
		return 100
	}
	return *c.SeedMomentum
}

// GetSeedCovariance returns the seed_covariance value or the default.
func (c *RefitConfig) GetSeedCovariance() float64 {
	if c.SeedCovariance == nil {
		return 100
	}
	return *c.SeedCovariance
}

// GetEnginePriorScale returns the engine_prior_scale value or the default.
func (c *RefitConfig) GetEnginePriorScale() float64 {
	if c.EnginePriorScale == nil {
		return 1000
	}
	return *c.EnginePriorScale
}

// GetDisableModuleEdgeCorr returns the disable_module_edge_corr value or false.
func (c *RefitConfig) GetDisableModuleEdgeCorr() bool {
	return c.DisableModuleEdgeCorr != nil && *c.DisableModuleEdgeCorr
}

// GetDisableStaticCorr returns the disable_static_corr value or false.
func (c *RefitConfig) GetDisableStaticCorr() bool {
	return c.DisableStaticCorr != nil && *c.DisableStaticCorr
}

// GetDisableAverageCorr returns the disable_average_corr value or false.
func (c *RefitConfig) GetDisableAverageCorr() bool {
	return c.DisableAverageCorr != nil && *c.DisableAverageCorr
}

// GetDisableFluctuationCorr returns the disable_fluctuation_corr value or false.
func (c *RefitConfig) GetDisableFluctuationCorr() bool {
	return c.DisableFluctuationCorr != nil && *c.DisableFluctuationCorr
}

// GetTPCDriftVelocity returns the tpc_drift_velocity value (cm/ns) or the default.
func (c *RefitConfig) GetTPCDriftVelocity() float64 {
	if c.TPCDriftVelocity == nil {
		return 0.00755
	}
	return *c.TPCDriftVelocity
}

// GetVerbosity returns the verbosity value or the default.
func (c *RefitConfig) GetVerbosity() int {
	if c.Verbosity == nil {
		return 0
	}
	return *c.Verbosity
}
