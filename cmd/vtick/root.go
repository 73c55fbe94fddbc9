package main

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const long = `
vtick drives scenario files on virtual threads, one tick at a time.

A scenario is a set of procedures made of wait, log, call, spawn, fail and
background operations, written in YAML (.yaml, .yml) or TOML (.toml). Each
file runs on its own runtime; several files run concurrently and their
reports are printed in the order the files were given.
`

// colorModes lists the values accepted by --color.
var colorModes = []string{"auto", "always", "never"}

type rootOptions struct {
	verbose bool
	color   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "vtick",
		Short:         "Drive virtual thread scenarios tick by tick",
		Long:          long[1:],
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(colorModes, opts.color) {
				return fmt.Errorf("invalid color mode %q: must be one of %v", opts.color, colorModes)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log thread lifecycle and print fault traces")
	cmd.PersistentFlags().StringVar(&opts.color, "color", "auto", "colorize text reports (auto|always|never)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	return cmd
}

func (o *rootOptions) colors() bool {
	switch o.color {
	case "always":
		return true
	case "never":
		return false
	default:
		return !color.NoColor
	}
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
