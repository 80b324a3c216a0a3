/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var versionUsage = strings.TrimSpace(`
Show version information
`)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: versionUsage,
	Long:  versionUsage,
	RunE:  versionRun,
	Args:  cobra.ExactArgs(0),
	// No config needed to say who we are.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var (
	// Version is the module version when built with "go install url/tool@version", else "(devel)".
	Version = "unknown"
	// Revision is taken from the vcs.revision tag.
	Revision = "unknown"
	// LastCommit is taken from the vcs.time tag.
	LastCommit time.Time
	// DirtyBuild is taken from the vcs.modified tag.
	DirtyBuild = true
)

func versionRun(cmd *cobra.Command, args []string) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Errorf("cmd_version: could not read build info")
	}
	Version = info.Main.Version
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			Revision = kv.Value
		case "vcs.time":
			LastCommit, _ = time.Parse(time.RFC3339, kv.Value)
		case "vcs.modified":
			DirtyBuild = kv.Value == "true"
		}
	}

	fmt.Printf("epi-contentful-sync version %s\n", shortVersion(Version, Revision, DirtyBuild))
	if !LastCommit.IsZero() {
		fmt.Printf("  committed %s\n", LastCommit.Format(time.RFC3339))
	}
	return nil
}

func shortVersion(version, revision string, dirty bool) string {
	parts := make([]string, 0, 4)
	if version != "unknown" && version != "(devel)" && version != "" {
		parts = append(parts, version)
	}
	if revision != "unknown" && revision != "" {
		parts = append(parts, "rev", revision)
		if dirty {
			parts = append(parts, "dirty")
		}
	}
	if len(parts) == 0 {
		return "devel"
	}
	return strings.Join(parts, "-")
}
