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

var purgeUsage = strings.TrimSpace(`
Delete every entry of a Contentful content type, unpublishing them first.  With --delete-type the
content type itself goes too.  This can't be undone, so it asks for --yes.
`)

var purgeCmd = &cobra.Command{
	Use:   "purge CONTENT_TYPE",
	Short: "Delete all entries of a content type",
	Long:  purgeUsage,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contentType := args[0]
		if !PurgeConfirmed {
			return fmt.Errorf("cmd: refusing to purge %s without --yes", contentType)
		}

		w, err := newWiring(cmd.Context(), log.Default())
		if err != nil {
			return err
		}
		defer w.close()

		n, err := w.migrator.Purge(cmd.Context(), contentType, DeleteType)
		fmt.Printf("Deleted %d %s entries\n", n, contentType)
		if err != nil {
			return fmt.Errorf("cmd: purge failed: %w", err)
		}
		return nil
	},
}

var (
	DeleteType     bool
	PurgeConfirmed bool
)

func init() {
	rootCmd.AddCommand(purgeCmd)

	purgeCmd.Flags().BoolVar(&DeleteType, "delete-type", false, "delete the content type as well")
	purgeCmd.Flags().BoolVar(&PurgeConfirmed, "yes", false, "really delete")
}
