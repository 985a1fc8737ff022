package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCachedCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cached [version]",
		Short: "List downloaded archives",
		Long:  "List the archives in the local cache, optionally only those matching a branch or version.",
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

			archives, err := a.registry.Entries(spec)
			if err != nil {
				return fmt.Errorf("reading cache: %w", err)
			}
			if len(archives) == 0 && !a.view.JSON() {
				fmt.Fprintf(a.out, "no archives cached in %s\n", a.registry.Root())
				return nil
			}
			return a.view.Archives(archives)
		},
	}
}
