// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/trialscout/internal/profile"
	"github.com/pdiddy/trialscout/pkg/types"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage stored caller profiles (get, set, delete, export)",
	Long: `Profile manages the local SQLite profile store. A profile holds a caller's
conditions and default location; search falls back to it when given neither
a narrative nor terms.`,
}

var profileGetCmd = &cobra.Command{
	Use:   "get <caller-id>",
	Short: "Print a stored profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfileStore(func(store *profile.Store) error {
			p, err := store.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		})
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <caller-id>",
	Short: "Create or replace a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conds, _ := cmd.Flags().GetStringSlice("conditions")
		city, _ := cmd.Flags().GetString("city")
		country, _ := cmd.Flags().GetString("country")

		p := types.Profile{CallerID: args[0], Conditions: conds}
		if loc := (types.Location{City: city, Country: country}); !loc.IsZero() {
			p.Location = &loc
		}
		return withProfileStore(func(store *profile.Store) error {
			saved, err := store.Put(context.Background(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s: %s\n", saved.CallerID, strings.Join(saved.Conditions, ", "))
			return nil
		})
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <caller-id>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withProfileStore(func(store *profile.Store) error {
			return store.Delete(context.Background(), args[0])
		})
	},
}

var profileExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all profiles as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return withProfileStore(func(store *profile.Store) error {
			if output == "" || output == "-" {
				return store.ExportYAML(context.Background(), cmd.OutOrStdout())
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			if err := store.ExportYAML(context.Background(), f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		})
	},
}

func withProfileStore(fn func(*profile.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := profile.NewStore(cfg.Profile)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func init() {
	profileSetCmd.Flags().StringSlice("conditions", nil, "conditions (comma-separated)")
	profileSetCmd.Flags().String("city", "", "default city")
	profileSetCmd.Flags().String("country", "", "default country")
	profileSetCmd.MarkFlagRequired("conditions")

	profileExportCmd.Flags().String("output", "", "output file (default stdout)")

	profileCmd.AddCommand(profileGetCmd, profileSetCmd, profileDeleteCmd, profileExportCmd)
	rootCmd.AddCommand(profileCmd)
}
