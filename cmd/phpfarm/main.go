package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	extension string
	asJSON    bool
	force     bool
	noHooks   bool
	yes       bool
	verbose   bool
	cfgFile   string
}

func init() {
	cobra.EnablePrefixMatching = true
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:   "phpfarm",
		Short: "Manage local PHP source trees",
		Long: `phpfarm downloads PHP source releases, extracts them into build trees and
upgrades existing trees to the newest patch release while keeping the
files you added.

Versions are given as MAJOR.MINOR (newest release of the branch) or as an
exact MAJOR.MINOR.PATCH, optionally with an alpha, beta or RC suffix.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&g.extension, "extension", "e", "", "archive compression: gz, bz2 or xz (default from config, bz2)")
	pf.BoolVarP(&g.asJSON, "json", "j", false, "print JSON instead of tables")
	pf.BoolVarP(&g.force, "force", "f", false, "overwrite existing archives, trees and backups")
	pf.BoolVar(&g.noHooks, "no-hooks", false, "do not run the post-extract, configure and make hooks")
	pf.BoolVarP(&g.yes, "yes", "y", false, "answer yes to confirmation prompts")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&g.cfgFile, "config", "", "config file (default is $PHPFARM_ROOT/.phpfarm/config.yaml)")

	rootCmd.AddCommand(
		newCachedCmd(g),
		newDownloadCmd(g),
		newExtractCmd(g),
		newSaveScriptsCmd(g),
		newLatestCmd(g),
		newListCmd(g),
		newUpgradeCmd(g),
		newVersionCmd(g),
	)
	return rootCmd
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
