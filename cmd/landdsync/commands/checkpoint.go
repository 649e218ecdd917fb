package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/landdsync/internal/checkpoint"
	"github.com/systmms/landdsync/internal/config"
)

func NewCheckpointCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or move the consumption sync checkpoint",
		Long: `The checkpoint holds the end of the last consumption window that was fully
published. The next consumption run starts from it.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored checkpoint",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openCheckpoint(cfg)
				if err != nil {
					return err
				}
				value, err := store.Read()
				if err != nil {
					return err
				}
				if value == "" {
					cfg.Logger.Info("No checkpoint stored; the next run fetches from the beginning")
					return nil
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
				return err
			},
		},
		&cobra.Command{
			Use:   "set <timestamp>",
			Short: "Store a checkpoint (format 2006-01-02T15:04:05, UTC)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ts, err := checkpoint.Parse(args[0])
				if err != nil {
					return err
				}
				store, err := openCheckpoint(cfg)
				if err != nil {
					return err
				}
				value := checkpoint.Format(ts)
				if err := store.Write(value); err != nil {
					return err
				}
				cfg.Logger.Info("Checkpoint set to %s", value)
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Clear the checkpoint so the next run fetches from the beginning",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openCheckpoint(cfg)
				if err != nil {
					return err
				}
				if err := store.Reset(); err != nil {
					return err
				}
				cfg.Logger.Info("Checkpoint cleared")
				return nil
			},
		},
	)
	return cmd
}

func openCheckpoint(cfg *config.Config) (*checkpoint.Store, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return checkpoint.Open(cfg.Definition.Consumption.CheckpointFile), nil
}
