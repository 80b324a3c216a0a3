/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whichCmd = &cobra.Command{
	Use:   "which",
	Short: "Tell me the resolved config path",
	Long: `
Output the filename that's being used to store your config.
`,
	Run: func(cmd *cobra.Command, args []string) {
		if ConfigActual == "" {
			fmt.Printf("No config file, looked for: %s\n", Config)
			return
		}
		fmt.Printf("Config path: %s\n", ConfigActual)
	},
}

func init() {
	configCmd.AddCommand(whichCmd)
}
