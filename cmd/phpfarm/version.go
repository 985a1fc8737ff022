package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if g.asJSON {
				return json.NewEncoder(out).Encode(map[string]string{
					"version":    Version,
					"commit":     Commit,
					"build_date": BuildDate,
					"go":         runtime.Version(),
				})
			}
			fmt.Fprintf(out, "phpfarm %s\n", Version)
			fmt.Fprintf(out, "commit:  %s\n", Commit)
			fmt.Fprintf(out, "built:   %s\n", BuildDate)
			fmt.Fprintf(out, "go:      %s\n", runtime.Version())
			return nil
		},
	}
}
