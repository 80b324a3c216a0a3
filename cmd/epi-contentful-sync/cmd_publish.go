/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toothbrush/epi-contentful-sync/migrate"
)

var publishUsage = strings.TrimSpace(`
Publish the assets a sync imported for the given content types.  Assets Contentful refuses to
publish are deleted, so the next sync uploads them afresh.
`)

var publishCmd = &cobra.Command{
	Use:   "publish TYPES",
	Short: "Publish imported assets",
	Long:  publishUsage,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		types, err := migrate.ParseTypes(args[0])
		if err != nil {
			return err
		}

		w, err := newWiring(cmd.Context(), log.Default())
		if err != nil {
			return err
		}
		defer w.close()
		w.migrator.Progress = !Debug

		reports, err := w.migrator.PublishMany(cmd.Context(), types)
		for _, r := range reports {
			fmt.Println(r)
		}
		if err != nil {
			return fmt.Errorf("cmd: publish failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
