package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/landdsync/internal/config"
	"github.com/systmms/landdsync/internal/secrets"
)

// NewKeyringCommand seeds the OS keyring used by the keyring secret backend.
func NewKeyringCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyring",
		Short: "Manage secrets for the keyring backend",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret read from stdin under key",
		Long: `Store a secret for key_vault.backend: keyring. The value is read from the
first line of stdin so it never appears in shell history:

  $ landdsync keyring set edx-api-key < edx-api-key.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			service := cfg.Definition.KeyVault.KeyringService

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			value := strings.TrimRight(line, "\r\n")
			if value == "" {
				if err != nil {
					return fmt.Errorf("no value on stdin: %w", err)
				}
				return fmt.Errorf("no value on stdin")
			}

			if err := (secrets.KeyringResolver{Service: service}).Store(args[0], value); err != nil {
				return fmt.Errorf("failed to store %s in keyring service %s: %w", args[0], service, err)
			}
			cfg.Logger.Info("Stored %s in keyring service %s", args[0], service)
			return nil
		},
	})
	return cmd
}
