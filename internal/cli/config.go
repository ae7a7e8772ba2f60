package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable hubtest reads,
// e.g. HUBTEST_LOG_LEVEL or HUBTEST_DB.
const EnvPrefix = "HUBTEST"

// Config is the resolved configuration. Keys match flag names.
type Config struct {
	Verbose  bool   `mapstructure:"verbose"`
	Format   string `mapstructure:"format"`
	LogLevel string `mapstructure:"log-level"`

	// DB is the transaction log used by test and trace.
	DB string `mapstructure:"db"`

	// Parallel bounds concurrent scenario runs.
	Parallel int `mapstructure:"parallel"`

	// Exclude lists scenario name globs the test command skips. The
	// environment form is comma separated: HUBTEST_EXCLUDE="hub_*,slow_*".
	Exclude []string `mapstructure:"exclude"`

	// ScenarioTimeout bounds the wall-clock time of a single scenario, e.g. "30s".
	ScenarioTimeout time.Duration `mapstructure:"scenario-timeout"`
}

// loadConfig binds flags into v, layers the environment and an optional
// config file under them and decodes the result. Explicit flags win, then
// environment, then file, then flag defaults.
func loadConfig(v *viper.Viper, file string, flags *pflag.FlagSet) (Config, error) {
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("hubtest")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hooks)); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}
