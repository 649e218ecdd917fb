package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/landdsync/internal/config"
)

func NewValidateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [mode]",
		Short: "Check the configuration for one or every sync mode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := config.Modes
			if len(args) == 1 {
				mode, err := config.ParseMode(args[0])
				if err != nil {
					return err
				}
				modes = []config.Mode{mode}
			}

			if err := cfg.Load(); err != nil {
				return err
			}
			for _, mode := range modes {
				if err := cfg.Definition.Validate(mode); err != nil {
					return err
				}
				cfg.Logger.Info("Configuration is valid for %s", mode)
			}

			def := cfg.Definition
			cfg.Logger.Debug("Secret backend: %s, %d secret bindings", def.KeyVault.Backend, len(def.KeyVault.Secrets))
			cfg.Logger.Debug("Retry: %d attempts, %s initial wait, %s max wait", def.General.RetryAttempts, def.General.RetryInitialWait, def.General.RetryMaxWait)
			return nil
		},
	}
}
