package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/phpfarm/internal/prompt"
	"github.com/frederic-klein/phpfarm/internal/upgrade"
)

func newUpgradeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade <tree-or-root>",
		Short: "Upgrade build trees to the newest patch release",
		Long: `Upgrade a build tree named php-<version>[-suffix], or every such tree
directly under a directory, to the newest release of its branch.

The new release is extracted next to the old tree, files you added to the
old tree are backed up, and the old tree is removed once you confirm.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			o := upgrade.New(upgrade.Collaborators{
				Loader:   a.loader,
				Resolver: a.resolver,
				Fetcher:  a.downloader,
				Unpacker: a.extractor,
				Hooks:    a.hooks,
				Confirm:  prompt.ForStdin(g.yes),
			}, upgrade.Options{
				Compression: a.compression,
				Force:       g.force,
				NoHooks:     g.noHooks,
				BackupDir:   a.cfg.BackupDir,
			}, a.logger)

			reports, err := o.Run(cmd.Context(), path)
			if err != nil {
				return err
			}
			if err := a.view.Reports(reports); err != nil {
				return err
			}
			return upgrade.Err(reports)
		},
	}
}
