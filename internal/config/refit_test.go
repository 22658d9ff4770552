package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultRefitConfig(t *testing.T) {
	cfg := DefaultRefitConfig()

	if cfg.UseMicromegas == nil || *cfg.UseMicromegas != true {
		t.Errorf("Expected UseMicromegas true, got %v", cfg.UseMicromegas)
	}
	if cfg.FitMinPT == nil || *cfg.FitMinPT != 0.1 {
		t.Errorf("Expected FitMinPT 0.1, got %v", cfg.FitMinPT)
	}
	if cfg.PrimaryPIDGuess == nil || *cfg.PrimaryPIDGuess != 211 {
		t.Errorf("Expected PrimaryPIDGuess 211, got %v", cfg.PrimaryPIDGuess)
	}

	if cfg.GetSeedMomentum() != 100 {
		t.Errorf("GetSeedMomentum() = %f, want 100", cfg.GetSeedMomentum())
	}
	if cfg.GetSeedCovariance() != 100 {
		t.Errorf("GetSeedCovariance() = %f, want 100", cfg.GetSeedCovariance())
	}
	if cfg.GetVertexMinNDF() != 20 {
		t.Errorf("GetVertexMinNDF() = %f, want 20", cfg.GetVertexMinNDF())
	}
	if len(cfg.GetDisabledLayers()) != 0 {
		t.Errorf("GetDisabledLayers() = %v, want empty", cfg.GetDisabledLayers())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	defaults := DefaultRefitConfig()

	if cfg.GetFitMinPT() != defaults.GetFitMinPT() {
		t.Errorf("file fit_min_pt %f differs from built-in %f", cfg.GetFitMinPT(), defaults.GetFitMinPT())
	}
	if cfg.GetTPCDriftVelocity() != defaults.GetTPCDriftVelocity() {
		t.Errorf("file tpc_drift_velocity %f differs from built-in %f", cfg.GetTPCDriftVelocity(), defaults.GetTPCDriftVelocity())
	}
	if cfg.GetPrimaryPIDGuess() != defaults.GetPrimaryPIDGuess() {
		t.Errorf("file primary_pid_guess %d differs from built-in %d", cfg.GetPrimaryPIDGuess(), defaults.GetPrimaryPIDGuess())
	}
}

func TestOverlay(t *testing.T) {
	base := MustLoadDefaultConfig()
	over := EmptyRefitConfig()
	over.FitMinPT = ptrFloat64(5)
	over.DisabledLayers = []int{30}

	base.Overlay(over)
	if base.GetFitMinPT() != 5 {
		t.Errorf("GetFitMinPT() = %f, want 5", base.GetFitMinPT())
	}
	if got := base.GetDisabledLayers(); len(got) != 1 || got[0] != 30 {
		t.Errorf("GetDisabledLayers() = %v, want [30]", got)
	}
	if base.GetPrimaryPIDGuess() != 211 {
		t.Errorf("unset field changed: primary_pid_guess %d", base.GetPrimaryPIDGuess())
	}
	if base.TPCDriftVelocity == nil {
		t.Error("unset field cleared: tpc_drift_velocity")
	}
}

func TestLoadRefitConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "refit.json")

	testJSON := `{
  "disabled_layers": [30, 12, 30],
  "fit_min_pt": 0.5,
  "primary_pid_guess": -13,
  "verbosity": 2
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadRefitConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetDisabledLayers(); len(got) != 2 || got[0] != 12 || got[1] != 30 {
		t.Errorf("GetDisabledLayers() = %v, want [12 30]", got)
	}
	if cfg.GetFitMinPT() != 0.5 {
		t.Errorf("GetFitMinPT() = %f, want 0.5", cfg.GetFitMinPT())
	}
	if cfg.GetPrimaryPIDGuess() != -13 {
		t.Errorf("GetPrimaryPIDGuess() = %d, want -13", cfg.GetPrimaryPIDGuess())
	}
	if cfg.GetVerbosity() != 2 {
		t.Errorf("GetVerbosity() = %d, want 2", cfg.GetVerbosity())
	}
	// Omitted fields fall back to defaults
	if cfg.GetSeedMomentum() != 100 {
		t.Errorf("GetSeedMomentum() = %f, want default 100", cfg.GetSeedMomentum())
	}
	if !cfg.GetUseMicromegas() {
		t.Error("GetUseMicromegas() should default to true")
	}
}

func TestLoadRefitConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "refit.yaml")

	testYAML := `
fit_silicon_mms: true
use_micromegas: false
candidate_filter: "nsilicon >= 2"
disable_static_corr: true
`
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadRefitConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if !cfg.GetFitSiliconMMs() {
		t.Error("GetFitSiliconMMs() = false, want true")
	}
	if cfg.GetUseMicromegas() {
		t.Error("GetUseMicromegas() = true, want false")
	}
	if cfg.GetCandidateFilter() != "nsilicon >= 2" {
		t.Errorf("GetCandidateFilter() = %q", cfg.GetCandidateFilter())
	}
	if !cfg.GetDisableStaticCorr() || cfg.GetDisableAverageCorr() {
		t.Error("correction toggles not decoded")
	}

	layers := cfg.GetDisabledLayers()
	if len(layers) != LastTPCLayer-FirstTPCLayer+1 {
		t.Fatalf("silicon+MM mode should disable %d TPC layers, got %d", LastTPCLayer-FirstTPCLayer+1, len(layers))
	}
	if layers[0] != FirstTPCLayer || layers[len(layers)-1] != LastTPCLayer {
		t.Errorf("disabled range = [%d, %d], want [%d, %d]", layers[0], layers[len(layers)-1], FirstTPCLayer, LastTPCLayer)
	}
}

func TestLoadRefitConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "refit.txt", `{}`, "extension"},
		{"malformed json", "bad.json", `{"fit_min_pt": }`, "parse config JSON"},
		{"malformed yaml", "bad.yaml", "fit_min_pt: [", "parse config YAML"},
		{"negative pt", "pt.json", `{"fit_min_pt": -1}`, "fit_min_pt"},
		{"unknown pid", "pid.json", `{"primary_pid_guess": 99}`, "primary_pid_guess"},
		{"layer out of range", "layer.json", `{"disabled_layers": [300]}`, "out of range"},
		{"zero seed momentum", "seed.json", `{"seed_momentum": 0}`, "seed_momentum"},
		{"zero drift velocity", "drift.json", `{"tpc_drift_velocity": 0}`, "tpc_drift_velocity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			_, err := LoadRefitConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadRefitConfig(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
