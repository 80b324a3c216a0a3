/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
)

var listUnmigratedUsage = strings.TrimSpace(`
Print the IDs Episerver lists for a content type that have no Contentful entry yet.  Feed them to
"sync TYPE --ids" to fill the gaps.
`)

var listUnmigratedCmd = &cobra.Command{
	Use:   "unmigrated TYPE",
	Short: "Print source IDs missing from Contentful",
	Long:  listUnmigratedUsage,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := newWiring(cmd.Context(), log.Default())
		if err != nil {
			return err
		}
		defer w.close()

		log.Printf("Comparing %s in Episerver and Contentful...\n", args[0])
		ids, err := w.migrator.Unmigrated(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("cmd: couldn't list unmigrated %s: %w", args[0], err)
		}

		log.Printf("Found %d unmigrated %s.\n", len(ids), args[0])
		fmt.Printf("%s:\n", args[0])
		for _, id := range ids {
			fmt.Printf("  - %s\n", id)
		}
		return nil
	},
}

func init() {
	listCmd.AddCommand(listUnmigratedCmd)
}
