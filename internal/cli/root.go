package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/vecqueue"
)

// EnvPrefix prefixes environment variables that override flags, for example
// VECQUEUE_PATH or VECQUEUE_CACHE_SIZE.
const EnvPrefix = "VECQUEUE"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Path        string
	ConfigFile  string
	Verbose     bool
	Format      string // "json" | "text"
	CacheSize   int64
	Compression bool
	MaxWorkers  int

	v *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the vecqueue CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "vecqueue",
		Short: "Inspect and operate a vector staging queue",
		Long: `vecqueue operates a durable staging queue for vector ingestion.

Every flag can also be set in a YAML config file (--config) or through an
environment variable prefixed with VECQUEUE_, for example VECQUEUE_PATH.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.load(cmd); err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "path to a YAML config file")
	flags.StringVarP(&opts.Path, "path", "p", "./vecqueue-data", "queue database directory")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.Int64Var(&opts.CacheSize, "cache-size", vecqueue.DefaultCacheSize, "block cache size in bytes")
	flags.BoolVar(&opts.Compression, "compression", false, "enable block compression")
	flags.IntVar(&opts.MaxWorkers, "max-workers", 0, "maximum concurrent storage operations (0 = GOMAXPROCS)")

	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewPopCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewDrainCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))

	return cmd
}

// load merges flags, environment and config file into opts. Explicit flags
// win over the environment, which wins over the config file.
func (o *RootOptions) load(cmd *cobra.Command) error {
	v := o.v
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if cfg := v.GetString("config"); cfg != "" {
		v.SetConfigFile(cfg)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfg, err)
		}
	}

	o.Path = v.GetString("path")
	o.Verbose = v.GetBool("verbose")
	o.Format = v.GetString("format")
	o.CacheSize = v.GetInt64("cache-size")
	o.Compression = v.GetBool("compression")
	o.MaxWorkers = v.GetInt("max-workers")
	return nil
}

// config returns the merged configuration for subcommand specific keys.
func (o *RootOptions) config() *viper.Viper { return o.v }

func (o *RootOptions) logger() *vecqueue.Logger {
	if o.Verbose {
		return vecqueue.NewTextLogger(slog.LevelDebug)
	}
	return vecqueue.NewTextLogger(slog.LevelWarn)
}

// openQueue opens the queue configured by the global flags.
func (o *RootOptions) openQueue(ctx context.Context, extra ...vecqueue.Option) (*vecqueue.PersistentQueue, error) {
	opts := append([]vecqueue.Option{
		vecqueue.WithCacheSize(o.CacheSize),
		vecqueue.WithCompression(o.Compression),
		vecqueue.WithMaxWorkers(o.MaxWorkers),
		vecqueue.WithLogger(o.logger()),
	}, extra...)
	q, err := vecqueue.Open(ctx, o.Path, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open queue", err)
	}
	return q, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
