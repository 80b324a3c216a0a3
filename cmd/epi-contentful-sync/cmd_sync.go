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

var syncUsage = strings.TrimSpace(`
Sync one or more content types from Episerver into Contentful.  TYPES is a comma-separated list of
excursions, voyages, ships, programs, ports and destinations, or "all" for excursions, voyages and
ships.  Records whose source didn't change since the last run are skipped unless --always-sync is
given.
`)

var syncCmd = &cobra.Command{
	Use:   "sync TYPES",
	Short: "Sync content from Episerver into Contentful",
	Long:  syncUsage,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		types, err := migrate.ParseTypes(args[0])
		if err != nil {
			return err
		}
		debugLog("  Types: %v, IDs: %v, exclude: %v\n", types, SyncIDs, Exclude)

		w, err := newWiring(cmd.Context(), log.Default())
		if err != nil {
			return err
		}
		defer w.close()

		w.migrator.Progress = !Debug
		if URIFixes != "" {
			fixes, err := loadURIFixes(URIFixes)
			if err != nil {
				return err
			}
			debugLog("Loaded %d URI fixes\n", len(fixes))
			w.upserter.Corrector = tableCorrector(fixes, log.Default())
		}

		reports, err := w.migrator.SyncMany(cmd.Context(), types, migrate.RunOptions{
			IDs:        SyncIDs,
			Exclude:    Exclude,
			Shuffle:    Shuffle,
			AlwaysSync: AlwaysSync,
		})
		printReports(reports)
		if err != nil {
			return fmt.Errorf("cmd: sync failed: %w", err)
		}
		return nil
	},
}

var (
	SyncIDs    []string
	Exclude    bool
	Shuffle    bool
	AlwaysSync bool
	URIFixes   string
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringSliceVar(&SyncIDs, "ids", []string{}, "only sync these source IDs")
	syncCmd.Flags().BoolVar(&Exclude, "exclude", false, "sync everything except --ids")
	syncCmd.Flags().BoolVar(&Shuffle, "shuffle", false, "process records in random order, so several instances can share a run")
	syncCmd.Flags().BoolVarP(&AlwaysSync, "always-sync", "f", false, "sync records even when their source is unchanged")
	syncCmd.Flags().StringVar(&URIFixes, "uri-fixes", "", "YAML file mapping malformed asset URLs to corrected ones")
}

func printReports(reports []migrate.Report) {
	for _, r := range reports {
		fmt.Println(r)
		if len(r.Failed) > 0 {
			fmt.Printf("  failed: %s\n", strings.Join(r.Failed, ", "))
		}
	}
}
