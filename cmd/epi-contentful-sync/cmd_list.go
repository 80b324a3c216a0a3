/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Commands to list items",
	Long: `
Commands in this namespace compare what Episerver has with what Contentful has.
`,
}

func init() {
	rootCmd.AddCommand(listCmd)
}
