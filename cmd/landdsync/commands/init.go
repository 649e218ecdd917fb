package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/systmms/landdsync/internal/config"
)

const sampleHeader = `# landdsync configuration.
# ${VAR} references are expanded from the environment when the file is loaded.
`

func NewInitCommand(cfg *config.Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new landdsync configuration",
		Long:  "Create a landdsync.yaml file with every setting and its default value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(cfg.Path); err == nil && !force {
				return fmt.Errorf("%s already exists. Remove it first or pass --force to overwrite it", cfg.Path)
			}

			data, err := config.Sample().Marshal()
			if err != nil {
				return fmt.Errorf("failed to render sample configuration: %w", err)
			}
			if dir := filepath.Dir(cfg.Path); dir != "." {
				if err := os.MkdirAll(dir, 0o750); err != nil {
					return fmt.Errorf("failed to create config directory: %w", err)
				}
			}
			if err := os.WriteFile(cfg.Path, append([]byte(sampleHeader), data...), 0o600); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			cfg.Logger.Info("Created %s", cfg.Path)
			cfg.Logger.Info("Next steps:")
			cfg.Logger.Info("  1. Fill in key_vault.url, the edx and landd endpoints and landd.tenant")
			cfg.Logger.Info("  2. Run 'landdsync validate' to check the file")
			cfg.Logger.Info("  3. Run 'landdsync course_catalog' or 'landdsync course_consumption'")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}
