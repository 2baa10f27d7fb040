// Package config loads and validates bssh configuration. Settings live in
// ~/.config/bssh/config.yaml and may be overridden with BSSH_* environment
// variables or the --config flag.
package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	bssherrors "bssh/internal/errors"
)

// Config represents the complete bssh configuration.
// The four *Weight fields form a convex combination and must sum to 1.
type Config struct {
	PriorWeight      float64 `json:"priorWeight" yaml:"priorWeight" mapstructure:"priorWeight"`
	LikelihoodWeight float64 `json:"likelihoodWeight" yaml:"likelihoodWeight" mapstructure:"likelihoodWeight"`
	RecencyWeight    float64 `json:"recencyWeight" yaml:"recencyWeight" mapstructure:"recencyWeight"`
	SuccessWeight    float64 `json:"successWeight" yaml:"successWeight" mapstructure:"successWeight"`

	LaplaceAlpha float64 `json:"laplaceAlpha" yaml:"laplaceAlpha" mapstructure:"laplaceAlpha"`
	SuccessBeta  float64 `json:"successBeta" yaml:"successBeta" mapstructure:"successBeta"`
	DecayLambda  float64 `json:"decayLambda" yaml:"decayLambda" mapstructure:"decayLambda"`
	MaxResults   int     `json:"maxResults" yaml:"maxResults" mapstructure:"maxResults"`

	DatabasePath         string `json:"databasePath" yaml:"databasePath" mapstructure:"databasePath"`
	DefaultUser          string `json:"defaultUser" yaml:"defaultUser" mapstructure:"defaultUser"`
	DefaultPort          int    `json:"defaultPort" yaml:"defaultPort" mapstructure:"defaultPort"`
	DefaultBastion       string `json:"defaultBastion,omitempty" yaml:"defaultBastion,omitempty" mapstructure:"defaultBastion"`
	DefaultBastionUser   string `json:"defaultBastionUser,omitempty" yaml:"defaultBastionUser,omitempty" mapstructure:"defaultBastionUser"`
	UseKerberosByDefault bool   `json:"useKerberosByDefault" yaml:"useKerberosByDefault" mapstructure:"useKerberosByDefault"`
	SSHConfigPath        string `json:"sshConfigPath" yaml:"sshConfigPath" mapstructure:"sshConfigPath"`
	CleanupWorkers       int    `json:"cleanupWorkers" yaml:"cleanupWorkers" mapstructure:"cleanupWorkers"`

	Logging LoggingConfig `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// DefaultDecayLambda halves the recency score every 7 days (168 hours).
var DefaultDecayLambda = math.Ln2 / 168.0

// Dir returns the bssh configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "bssh"), nil
}

// Default returns the default configuration
func Default() *Config {
	dir, err := Dir()
	if err != nil {
		dir = "."
	}

	home, _ := os.UserHomeDir()

	return &Config{
		// Text match dominates, usage signals refine ties.
		PriorWeight:      0.20,
		LikelihoodWeight: 0.40,
		RecencyWeight:    0.25,
		SuccessWeight:    0.15,

		LaplaceAlpha: 1.0,
		SuccessBeta:  1.0,
		DecayLambda:  DefaultDecayLambda,
		MaxResults:   10,

		DatabasePath:         filepath.Join(dir, "history.db"),
		DefaultUser:          "admin",
		DefaultPort:          22,
		UseKerberosByDefault: true,
		SSHConfigPath:        filepath.Join(home, ".ssh", "config"),
		CleanupWorkers:       4,

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration. An explicit path takes precedence; otherwise
// config.yaml is searched in the bssh config directory. A missing file is not
// an error: defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BSSH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := Dir()
		if err != nil {
			return Default(), nil
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file yet; defaults apply.
			return unmarshal(v)
		}
		if path != "" && os.IsNotExist(err) {
			return nil, bssherrors.Newf(bssherrors.Configuration, "config file %s does not exist", path)
		}
		return nil, bssherrors.Wrap(bssherrors.Configuration, "failed to read config", err)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, bssherrors.Wrap(bssherrors.Configuration, "failed to parse config", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("priorWeight", def.PriorWeight)
	v.SetDefault("likelihoodWeight", def.LikelihoodWeight)
	v.SetDefault("recencyWeight", def.RecencyWeight)
	v.SetDefault("successWeight", def.SuccessWeight)
	v.SetDefault("laplaceAlpha", def.LaplaceAlpha)
	v.SetDefault("successBeta", def.SuccessBeta)
	v.SetDefault("decayLambda", def.DecayLambda)
	v.SetDefault("maxResults", def.MaxResults)
	v.SetDefault("databasePath", def.DatabasePath)
	v.SetDefault("defaultUser", def.DefaultUser)
	v.SetDefault("defaultPort", def.DefaultPort)
	v.SetDefault("defaultBastion", def.DefaultBastion)
	v.SetDefault("defaultBastionUser", def.DefaultBastionUser)
	v.SetDefault("useKerberosByDefault", def.UseKerberosByDefault)
	v.SetDefault("sshConfigPath", def.SSHConfigPath)
	v.SetDefault("cleanupWorkers", def.CleanupWorkers)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
}

// Save writes the configuration as YAML. An empty path writes to
// config.yaml in the bssh config directory.
func (c *Config) Save(path string) error {
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return bssherrors.Wrap(bssherrors.Configuration, "cannot resolve config directory", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return bssherrors.Wrap(bssherrors.Configuration, "cannot create config directory", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return bssherrors.Wrap(bssherrors.Configuration, "cannot encode config", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	weights := map[string]float64{
		"priorWeight":      c.PriorWeight,
		"likelihoodWeight": c.LikelihoodWeight,
		"recencyWeight":    c.RecencyWeight,
		"successWeight":    c.SuccessWeight,
	}
	for name, w := range weights {
		if w < 0 || w > 1 {
			return bssherrors.Newf(bssherrors.Configuration, "%s must be in [0,1], got %g", name, w)
		}
	}

	sum := c.PriorWeight + c.LikelihoodWeight + c.RecencyWeight + c.SuccessWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return bssherrors.Newf(bssherrors.Configuration, "ranking weights must sum to 1, got %g", sum)
	}

	if c.LaplaceAlpha <= 0 {
		return bssherrors.Newf(bssherrors.Configuration, "laplaceAlpha must be positive, got %g", c.LaplaceAlpha)
	}
	if c.SuccessBeta <= 0 {
		return bssherrors.Newf(bssherrors.Configuration, "successBeta must be positive, got %g", c.SuccessBeta)
	}
	if c.DecayLambda <= 0 {
		return bssherrors.Newf(bssherrors.Configuration, "decayLambda must be positive, got %g", c.DecayLambda)
	}
	if c.MaxResults < 1 {
		return bssherrors.Newf(bssherrors.Configuration, "maxResults must be at least 1, got %d", c.MaxResults)
	}
	if c.DefaultPort < 1 || c.DefaultPort > 65535 {
		return bssherrors.Newf(bssherrors.Configuration, "defaultPort must be in [1,65535], got %d", c.DefaultPort)
	}
	if c.CleanupWorkers < 1 {
		return bssherrors.Newf(bssherrors.Configuration, "cleanupWorkers must be at least 1, got %d", c.CleanupWorkers)
	}

	return nil
}
