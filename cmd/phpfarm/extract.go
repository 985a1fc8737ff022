package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/phpfarm/internal/buildtree"
	"github.com/frederic-klein/phpfarm/internal/release"
	"github.com/frederic-klein/phpfarm/internal/view"
)

func newExtractCmd(g *globalFlags) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "extract <version> <dir>",
		Short: "Extract a release into a new build tree",
		Long: `Resolve a version, download it if needed and extract it to
<dir>/php-<version> (or <dir>/<name>). The hooks run against the new tree
unless --no-hooks is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			spec, err := release.ParseSpecifier(args[0])
			if err != nil {
				return err
			}
			entry, err := a.resolve(ctx, spec)
			if err != nil {
				return err
			}

			parent, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(parent, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", parent, err)
			}
			if err := buildtree.CheckWritable(parent); err != nil {
				return err
			}
			dirName := name
			if dirName == "" {
				dirName = buildtree.DirName(entry.Version, "")
			}
			dest := filepath.Join(parent, dirName)
			if g.force {
				if err := os.RemoveAll(dest); err != nil {
					return fmt.Errorf("removing %s: %w", dest, err)
				}
			}

			archive, err := a.downloader.Ensure(ctx, entry, a.compression, false)
			if err != nil {
				return fmt.Errorf("downloading %s: %w", entry.Version, err)
			}
			m, err := a.extractor.Extract(archive, a.compression, dest)
			if err != nil {
				return err
			}
			a.logger.Info("extracted", "version", entry.Version, "files", m.Len(), "dest", dest)

			if !g.noHooks {
				if err := a.hooks.RunAll(ctx, dest); err != nil {
					return err
				}
			}
			return a.view.Paths([]view.Path{{Version: entry.Version.String(), Path: dest}})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "directory name for the tree (default php-<version>)")
	return cmd
}
