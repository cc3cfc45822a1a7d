package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"eagle-studio/internal/app"
	"eagle-studio/internal/credential"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage the stored API key",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Validate and store an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCredentials(cmd, func(ctx context.Context, store credential.Store) error {
			key, err := credential.Validate(args[0])
			if err != nil {
				return err
			}
			if err := store.Set(ctx, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", credential.Mask(key))
			return nil
		})
	},
}

var credentialClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCredentials(cmd, func(ctx context.Context, store credential.Store) error {
			if err := store.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared")
			return nil
		})
	},
}

var credentialStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether an API key is stored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCredentials(cmd, func(ctx context.Context, store credential.Store) error {
			return printCredential(ctx, cmd.OutOrStdout(), store)
		})
	},
}

func init() {
	credentialCmd.AddCommand(credentialSetCmd, credentialClearCmd, credentialStatusCmd)
	rootCmd.AddCommand(credentialCmd)
}

func withCredentials(cmd *cobra.Command, fn func(context.Context, credential.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, closer, err := app.OpenCredentials(ctx, cfg, nil)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return fn(ctx, store)
}

func printCredential(ctx context.Context, w io.Writer, store credential.Store) error {
	key, err := store.Get(ctx)
	if errors.Is(err, credential.ErrNotSet) {
		_, err = fmt.Fprintln(w, "not set")
		return err
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "set %s\n", credential.Mask(key))
	return err
}
