package main

import (
	"github.com/spf13/cobra"

	"github.com/frederic-klein/phpfarm/internal/release"
	"github.com/frederic-klein/phpfarm/internal/resolver"
)

func newListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list [branch]",
		Short: "List every release of a branch",
		Long:  "List every known release of a branch, oldest first. Without a branch, the newest default branch is listed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}

			spec, err := parseSpecArg(args)
			if err != nil {
				return err
			}
			if spec.Kind == release.Empty {
				spec = release.BranchSpecifier(newestBranch(a.defaults))
			}

			snap, err := a.loader.ForSpecifier(cmd.Context(), spec, a.defaults)
			if err != nil {
				return err
			}
			var entries []release.Entry
			for _, e := range snap.Entries() {
				if spec.Matches(e.Version) {
					entries = append(entries, e)
				}
			}
			if len(entries) == 0 {
				return &resolver.NotFoundError{Specifier: spec, Searched: []release.Origin{release.OriginCurrent, release.OriginMuseum}}
			}
			return a.view.Releases(entries, a.compression)
		},
	}
}

func newestBranch(branches []release.Branch) release.Branch {
	var best release.Branch
	for i, b := range branches {
		if i == 0 || b.Compare(best) > 0 {
			best = b
		}
	}
	return best
}
