package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	bssherrors "bssh/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got: %v", err)
	}

	sum := cfg.PriorWeight + cfg.LikelihoodWeight + cfg.RecencyWeight + cfg.SuccessWeight
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("default weights sum = %g, want 1", sum)
	}

	// Likelihood (match quality) dominates the other signals.
	if cfg.LikelihoodWeight <= cfg.PriorWeight ||
		cfg.LikelihoodWeight <= cfg.RecencyWeight ||
		cfg.LikelihoodWeight <= cfg.SuccessWeight {
		t.Errorf("likelihoodWeight should be the largest weight")
	}

	if cfg.MaxResults != 10 {
		t.Errorf("MaxResults = %d, want 10", cfg.MaxResults)
	}
	if cfg.DefaultPort != 22 {
		t.Errorf("DefaultPort = %d, want 22", cfg.DefaultPort)
	}
}

func TestDecayLambdaHalfLife(t *testing.T) {
	// With the default lambda, the recency factor after 168 hours is 0.5.
	got := math.Exp(-DefaultDecayLambda * 168)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("exp(-lambda*168) = %g, want 0.5", got)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"weight above one", func(c *Config) { c.PriorWeight = 1.5 }},
		{"negative weight", func(c *Config) { c.RecencyWeight = -0.1 }},
		{"weights not summing to one", func(c *Config) { c.SuccessWeight = 0.5 }},
		{"zero alpha", func(c *Config) { c.LaplaceAlpha = 0 }},
		{"negative beta", func(c *Config) { c.SuccessBeta = -1 }},
		{"zero lambda", func(c *Config) { c.DecayLambda = 0 }},
		{"zero max results", func(c *Config) { c.MaxResults = 0 }},
		{"port out of range", func(c *Config) { c.DefaultPort = 70000 }},
		{"zero cleanup workers", func(c *Config) { c.CleanupWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() should fail")
			}
			if !bssherrors.HasCode(err, bssherrors.Configuration) {
				t.Errorf("error should carry CONFIGURATION code, got: %v", err)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	// Point the search path at an empty directory via explicit missing check:
	// an unset path with no config.yaml present must yield defaults.
	cfg, err := Load("")
	if err != nil {
		// A config.yaml may exist in the environment; only a parse failure
		// would be a bug here.
		t.Fatalf("Load with no explicit path failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load with an explicit missing path should fail")
	}
	if !bssherrors.HasCode(err, bssherrors.Configuration) {
		t.Errorf("error should carry CONFIGURATION code, got: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.PriorWeight = 0.25
	cfg.LikelihoodWeight = 0.35
	cfg.RecencyWeight = 0.25
	cfg.SuccessWeight = 0.15
	cfg.MaxResults = 5
	cfg.DefaultUser = "deploy"
	cfg.DefaultBastion = "jump.example.com"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.PriorWeight != 0.25 || loaded.LikelihoodWeight != 0.35 {
		t.Errorf("weights did not round trip: %+v", loaded)
	}
	if loaded.MaxResults != 5 {
		t.Errorf("MaxResults = %d, want 5", loaded.MaxResults)
	}
	if loaded.DefaultUser != "deploy" {
		t.Errorf("DefaultUser = %q, want deploy", loaded.DefaultUser)
	}
	if loaded.DefaultBastion != "jump.example.com" {
		t.Errorf("DefaultBastion = %q, want jump.example.com", loaded.DefaultBastion)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("round-tripped config should validate: %v", err)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("maxResults: 3\ndefaultUser: ops\n"), 0644); err != nil {
		t.Fatalf("write partial config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MaxResults != 3 {
		t.Errorf("MaxResults = %d, want 3", cfg.MaxResults)
	}
	if cfg.DefaultUser != "ops" {
		t.Errorf("DefaultUser = %q, want ops", cfg.DefaultUser)
	}
	// Untouched keys keep their defaults.
	if cfg.LikelihoodWeight != 0.40 {
		t.Errorf("LikelihoodWeight = %g, want default 0.40", cfg.LikelihoodWeight)
	}
	if cfg.DefaultPort != 22 {
		t.Errorf("DefaultPort = %d, want default 22", cfg.DefaultPort)
	}
}
