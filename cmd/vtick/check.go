package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stealthrocket/vthread/internal/config"
)

func newCheckCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Validate scenario files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok := color.New(color.FgGreen)
			bad := color.New(color.FgRed)
			if !root.colors() {
				ok.DisableColor()
				bad.DisableColor()
			} else {
				ok.EnableColor()
				bad.EnableColor()
			}

			out := cmd.OutOrStdout()
			var errs []error
			for _, path := range args {
				s, err := config.Load(path, config.Overrides{})
				if err != nil {
					bad.Fprintf(out, "✗ %s\n", path)
					errs = append(errs, err)
					continue
				}
				ok.Fprintf(out, "✓ %s", path)
				fmt.Fprintf(out, " (%s: %d procedure(s), root %s)\n", s.Name, len(s.Procs), s.Root)
			}
			if len(errs) > 0 {
				return wrapExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) invalid", len(errs), len(args)), errors.Join(errs...))
			}
			return nil
		},
	}
}
