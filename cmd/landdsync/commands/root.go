package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/landdsync/internal/config"
	"github.com/systmms/landdsync/internal/engine"
	"github.com/systmms/landdsync/internal/logging"
)

// Option customizes the command tree.
type Option func(*options)

type options struct {
	deps    engine.Deps
	version string
}

// WithEngineDeps overrides collaborators the engine would otherwise build
// from configuration.
func WithEngineDeps(deps engine.Deps) Option {
	return func(o *options) {
		o.deps = deps
	}
}

// WithVersion sets the --version string.
func WithVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// NewRootCommand builds the landdsync command tree. Running the root with a
// mode argument performs one sync.
func NewRootCommand(cfg *config.Config, opts ...Option) *cobra.Command {
	o := &options{version: "dev"}
	for _, opt := range opts {
		opt(o)
	}

	var (
		noColor     bool
		debug       bool
		logFile     string
		metricsFile string
	)

	modes := make([]string, 0, len(config.Modes))
	for _, m := range config.Modes {
		modes = append(modes, string(m))
	}

	rootCmd := &cobra.Command{
		Use:   fmt.Sprintf("landdsync <%s>", strings.Join(modes, "|")),
		Short: "Sync Open edX course catalog and consumption to L&D",
		Long: `landdsync reads the course catalog or learner grades from Open edX and
publishes them to the L&D service. Credentials come from the host managed
identity and Azure Key Vault; consumption runs resume from a checkpoint.`,
		Version:       o.version,
		ValidArgs:     modes,
		Args:          cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Logger == nil {
				cfg.Logger = logging.New(debug, noColor)
			}
			if logFile != "" {
				if err := cfg.Logger.OpenFile(logFile); err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logFile != "" {
				_ = cfg.Logger.Close()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := config.ParseMode(args[0])
			if err != nil {
				return err
			}
			return runSync(cmd.Context(), cfg, mode, o.deps, metricsFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfg.Path, "config", defaultConfigPath(), "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append timestamped log lines to this file")
	rootCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write run metrics in Prometheus textfile format (overrides metrics.textfile)")

	rootCmd.AddCommand(
		NewInitCommand(cfg),
		NewValidateCommand(cfg),
		NewCheckpointCommand(cfg),
		NewKeyringCommand(cfg),
		NewCompletionCommand(cfg),
	)
	return rootCmd
}

func defaultConfigPath() string {
	if path := os.Getenv("LANDDSYNC_CONFIG"); path != "" {
		return path
	}
	return "landdsync.yaml"
}
