package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stealthrocket/vthread"
	"github.com/stealthrocket/vthread/internal/config"
	"github.com/stealthrocket/vthread/internal/scenario"
)

type runOptions struct {
	*rootOptions
	format             string
	maxTicks           int
	interval           time.Duration
	jobs               int
	failFast           bool
	tolerateViolations bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run FILE...",
		Short: "Run scenario files and report each tick",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(scenario.Formats, opts.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.format, scenario.Formats)
			}
			return runScenarios(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "report format (text|json|msgpack)")
	cmd.Flags().IntVar(&opts.maxTicks, "max-ticks", 0, "override the tick budget of every scenario")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "override the delay between ticks of every scenario")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 4, "number of scenarios running at the same time")
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "cancel the other scenarios when one fails")
	cmd.Flags().BoolVar(&opts.tolerateViolations, "tolerate-violations", false, "log contract violations instead of aborting")
	return cmd
}

func runScenarios(cmd *cobra.Command, opts *runOptions, paths []string) error {
	overrides := config.Overrides{MaxTicks: opts.maxTicks, Interval: opts.interval}
	scenarios := make([]*scenario.Scenario, len(paths))
	for i, path := range paths {
		s, err := config.Load(path, overrides)
		if err != nil {
			return wrapExitError(ExitCommandError, "loading scenario", err)
		}
		scenarios[i] = s
	}

	logger := opts.logger(cmd.ErrOrStderr())
	outputs := make([]bytes.Buffer, len(scenarios))
	failures := make([]error, len(scenarios))

	g, ctx := errgroup.WithContext(cmd.Context())
	if opts.jobs > 0 {
		g.SetLimit(opts.jobs)
	}
	for i, s := range scenarios {
		g.Go(func() error {
			failures[i] = runScenario(ctx, opts, logger, s, &outputs[i])
			if failures[i] != nil {
				if opts.verbose {
					var fault *vthread.Fault
					if errors.As(failures[i], &fault) {
						logger.Debug("fault trace", "scenario", s.Name, "trace", fmt.Sprintf("%+v", fault))
					}
				}
				logger.Error("scenario failed", "scenario", s.Name, "error", failures[i])
				if opts.failFast {
					return failures[i]
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := cmd.OutOrStdout()
	for i := range outputs {
		if _, err := outputs[i].WriteTo(out); err != nil {
			return wrapExitError(ExitCommandError, "writing report", err)
		}
	}

	var errs []error
	for i, err := range failures {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", paths[i], err))
		}
	}
	if len(errs) > 0 {
		return wrapExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", len(errs), len(paths)), errors.Join(errs...))
	}
	return nil
}

func runScenario(ctx context.Context, opts *runOptions, logger *slog.Logger, s *scenario.Scenario, out *bytes.Buffer) error {
	rep, err := scenario.NewReporter(opts.format, out, opts.colors())
	if err != nil {
		return err
	}

	id := uuid.Must(uuid.NewV7())
	logger = logger.With("run", id.String(), "scenario", s.Name)
	runtimeOpts := []vthread.Option{vthread.WithLogger(logger)}
	if opts.tolerateViolations {
		runtimeOpts = append(runtimeOpts, vthread.WithAsserter(vthread.LogAsserter{Logger: logger}))
	}

	r := scenario.NewRunner(s, runtimeOpts...)
	r.ID = id
	start := time.Now()
	err = r.Run(ctx, rep)
	logger.Debug("scenario finished", "duration", time.Since(start), "error", err)
	return err
}
