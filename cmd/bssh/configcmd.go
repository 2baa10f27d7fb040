package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bssh/internal/config"
	bssherrors "bssh/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage bssh configuration",
	Long: `View and update the configuration stored in config.yaml under the
bssh config directory. Keys use the same camelCase names as the file.

Examples:
  bssh config show
  bssh config get recencyWeight
  bssh config set maxResults 20`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	Run:   runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	Run:   runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update one configuration value",
	Long: `Update one configuration value and save the file. The full
configuration is validated before saving, so a change that breaks an
invariant (for example ranking weights no longer summing to 1) is
rejected as a whole.`,
	Args: cobra.ExactArgs(2),
	Run:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// configKey binds a camelCase key to its field accessors.
type configKey struct {
	name string
	get  func(*config.Config) interface{}
	set  func(*config.Config, string) error
}

func floatKey(name string, field func(*config.Config) *float64) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) interface{} { return *field(c) },
		set: func(c *config.Config, raw string) error {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return bssherrors.Newf(bssherrors.Configuration, "%s expects a number, got %q", name, raw)
			}
			*field(c) = v
			return nil
		},
	}
}

func intKey(name string, field func(*config.Config) *int) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) interface{} { return *field(c) },
		set: func(c *config.Config, raw string) error {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return bssherrors.Newf(bssherrors.Configuration, "%s expects an integer, got %q", name, raw)
			}
			*field(c) = v
			return nil
		},
	}
}

func boolKey(name string, field func(*config.Config) *bool) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) interface{} { return *field(c) },
		set: func(c *config.Config, raw string) error {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return bssherrors.Newf(bssherrors.Configuration, "%s expects true or false, got %q", name, raw)
			}
			*field(c) = v
			return nil
		},
	}
}

func stringKey(name string, field func(*config.Config) *string) configKey {
	return configKey{
		name: name,
		get:  func(c *config.Config) interface{} { return *field(c) },
		set: func(c *config.Config, raw string) error {
			*field(c) = raw
			return nil
		},
	}
}

// configKeys lists every settable key in display order.
var configKeys = []configKey{
	floatKey("priorWeight", func(c *config.Config) *float64 { return &c.PriorWeight }),
	floatKey("likelihoodWeight", func(c *config.Config) *float64 { return &c.LikelihoodWeight }),
	floatKey("recencyWeight", func(c *config.Config) *float64 { return &c.RecencyWeight }),
	floatKey("successWeight", func(c *config.Config) *float64 { return &c.SuccessWeight }),
	floatKey("laplaceAlpha", func(c *config.Config) *float64 { return &c.LaplaceAlpha }),
	floatKey("successBeta", func(c *config.Config) *float64 { return &c.SuccessBeta }),
	floatKey("decayLambda", func(c *config.Config) *float64 { return &c.DecayLambda }),
	intKey("maxResults", func(c *config.Config) *int { return &c.MaxResults }),
	stringKey("databasePath", func(c *config.Config) *string { return &c.DatabasePath }),
	stringKey("defaultUser", func(c *config.Config) *string { return &c.DefaultUser }),
	intKey("defaultPort", func(c *config.Config) *int { return &c.DefaultPort }),
	stringKey("defaultBastion", func(c *config.Config) *string { return &c.DefaultBastion }),
	stringKey("defaultBastionUser", func(c *config.Config) *string { return &c.DefaultBastionUser }),
	boolKey("useKerberosByDefault", func(c *config.Config) *bool { return &c.UseKerberosByDefault }),
	stringKey("sshConfigPath", func(c *config.Config) *string { return &c.SSHConfigPath }),
	intKey("cleanupWorkers", func(c *config.Config) *int { return &c.CleanupWorkers }),
	stringKey("logging.level", func(c *config.Config) *string { return &c.Logging.Level }),
	stringKey("logging.format", func(c *config.Config) *string { return &c.Logging.Format }),
}

func lookupConfigKey(name string) (configKey, error) {
	for _, k := range configKeys {
		if k.name == name {
			return k, nil
		}
	}
	return configKey{}, bssherrors.Newf(bssherrors.Configuration,
		"unknown config key %q (see: bssh config show)", name)
}

// loadFileConfig reads the configuration without the --db/--log-* flag
// overrides, so a save only persists what the file and environment held.
func loadFileConfig() *config.Config {
	cfg, err := config.Load(configFlag)
	if err != nil {
		fail(err)
	}
	return cfg
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := loadFileConfig()

	if jsonFlag {
		printJSON(cfg)
		return
	}

	def := config.Default()
	for _, k := range configKeys {
		value := k.get(cfg)
		note := ""
		if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", k.get(def)) {
			note = fmt.Sprintf("  (default: %v)", k.get(def))
		}
		fmt.Printf("%-22s %v%s\n", k.name+":", value, note)
	}

	fmt.Println("\nOverride any key with a BSSH_* environment variable, for example:")
	fmt.Println("  BSSH_MAXRESULTS=20 bssh search web")
}

func runConfigGet(cmd *cobra.Command, args []string) {
	key, err := lookupConfigKey(args[0])
	if err != nil {
		fail(err)
	}

	cfg := loadFileConfig()
	value := key.get(cfg)

	if jsonFlag {
		printJSON(map[string]interface{}{args[0]: value})
		return
	}
	fmt.Printf("%v\n", value)
}

func runConfigSet(cmd *cobra.Command, args []string) {
	key, err := lookupConfigKey(args[0])
	if err != nil {
		fail(err)
	}

	cfg := loadFileConfig()
	if err := key.set(cfg, args[1]); err != nil {
		fail(err)
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}
	if err := cfg.Save(configFlag); err != nil {
		fail(err)
	}

	fmt.Printf("Set %s = %v\n", key.name, key.get(cfg))
}
