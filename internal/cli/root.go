package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	LogLevel   string
	ConfigFile string

	// Config is resolved from flags, HUBTEST_* variables and the config
	// file before any subcommand runs.
	Config Config
	Logger *slog.Logger

	viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the hubtest CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{viper: viper.New()}

	cmd := &cobra.Command{
		Use:   "hubtest",
		Short: "hubtest - Context Hub nanoapp test runner",
		Long: `Run nanoapp load, unload and query scenarios against a simulated
Context Hub and inspect the recorded transaction log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.viper, opts.ConfigFile, cmd.Flags())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			if !isValidFormat(cfg.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", cfg.Format, ValidFormats)
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg)
			if err != nil {
				return err
			}

			opts.Config = cfg
			opts.Verbose = cfg.Verbose
			opts.Format = cfg.Format
			opts.LogLevel = cfg.LogLevel
			opts.Logger = logger
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level, one of: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default \"hubtest.yaml\" in . or $HOME)")

	// Add subcommands
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger builds the diagnostic logger. JSON output keeps logs structured
// as well.
func newLogger(w io.Writer, cfg Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}

// logger returns the configured logger, or a discarding one for commands
// constructed without the root.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
