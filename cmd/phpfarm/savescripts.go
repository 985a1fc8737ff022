package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/phpfarm/internal/buildtree"
	"github.com/frederic-klein/phpfarm/internal/manifest"
)

func newSaveScriptsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "save-scripts <tree> [dest]",
		Short: "Back up the files you added to a build tree",
		Long: `Copy every file in <tree> that did not come from the release archive
to [dest], by default <parent>/.phpfarm-backup/<tree-name>.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			tree, err := buildtree.Parse(path)
			if err != nil {
				return err
			}
			m, err := manifest.Read(tree.Path)
			if err != nil {
				return err
			}
			diff, err := manifest.Diff(m, tree.Path)
			if err != nil {
				return err
			}

			dest := buildtree.BackupPath(tree, a.cfg.BackupDir)
			if len(args) == 2 {
				if dest, err = filepath.Abs(args[1]); err != nil {
					return err
				}
			}

			n := 0
			if len(diff.Foreign) > 0 {
				if n, err = buildtree.Backup(tree.Path, diff.Foreign, dest, g.force); err != nil {
					return err
				}
			}

			if a.view.JSON() {
				return json.NewEncoder(a.out).Encode(map[string]any{
					"tree":   tree.Path,
					"backup": dest,
					"files":  diff.Foreign,
					"copied": n,
				})
			}
			if n == 0 {
				fmt.Fprintf(a.out, "%s has no local files\n", tree.Name())
				return nil
			}
			fmt.Fprintf(a.out, "saved %d file(s) from %s to %s\n", n, tree.Name(), dest)
			return nil
		},
	}
}
