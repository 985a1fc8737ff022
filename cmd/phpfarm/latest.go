package main

import (
	"github.com/spf13/cobra"

	"github.com/frederic-klein/phpfarm/internal/release"
)

func newLatestCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "latest [version]",
		Short: "Show the newest release",
		Long: `Show the release a version resolves to. Without a version, show the
newest release of every default branch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			spec, err := parseSpecArg(args)
			if err != nil {
				return err
			}
			if spec.Kind != release.Empty {
				entry, err := a.resolve(ctx, spec)
				if err != nil {
					return err
				}
				return a.view.Releases([]release.Entry{entry}, a.compression)
			}

			snap, err := a.loader.ForSpecifier(ctx, spec, a.defaults)
			if err != nil {
				return err
			}
			return a.view.Releases(a.resolver.Latest(a.defaults, snap), a.compression)
		},
	}
}
