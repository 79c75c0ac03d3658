// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"routingtables/common/daemon"
	"routingtables/common/httpserver"
	"routingtables/common/reporter"
	"routingtables/engine"
)

type runOptions struct {
	ConfigRelatedOptions
	CheckMode bool
}

// RunOptions stores the command-line option values for the run command.
var RunOptions runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the routing-tables engine",
	Long: `The routing-tables engine folds BGP records from a configured source into
a view of peers and prefix×peer cells, and periodically publishes the result
to the configured sinks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := RunConfiguration{}
		config.Reset()
		RunOptions.Path = args[0]
		if err := RunOptions.Parse(cmd.OutOrStdout(), "run", &config); err != nil {
			return err
		}

		r, err := reporter.New(config.Reporting)
		if err != nil {
			return fmt.Errorf("unable to initialize reporter: %w", err)
		}
		return runStart(r, config, RunOptions.CheckMode)
	},
}

func init() {
	RootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVarP(&RunOptions.ConfigRelatedOptions.Dump, "dump", "D", false,
		"Dump configuration before starting")
	runCmd.Flags().BoolVarP(&RunOptions.CheckMode, "check", "C", false,
		"Check configuration, but do not start")
}

func runStart(r *reporter.Reporter, config RunConfiguration, checkOnly bool) error {
	daemonComponent, err := daemon.New(r)
	if err != nil {
		return fmt.Errorf("unable to initialize daemon component: %w", err)
	}
	httpComponent, err := httpserver.New(r, config.HTTP, httpserver.Dependencies{
		Daemon: daemonComponent,
	})
	if err != nil {
		return fmt.Errorf("unable to initialize HTTP component: %w", err)
	}

	source, err := config.Source.Config.NewSource(r)
	if err != nil {
		return fmt.Errorf("unable to initialize record source: %w", err)
	}
	viewSinks := make([]engine.ViewSink, 0, len(config.ViewSinks))
	for _, sc := range config.ViewSinks {
		sink, err := sc.Config.NewViewSink(r)
		if err != nil {
			return fmt.Errorf("unable to initialize view sink: %w", err)
		}
		viewSinks = append(viewSinks, sink)
	}
	metricsSink, err := config.MetricsSink.Config.NewMetricsSink(r)
	if err != nil {
		return fmt.Errorf("unable to initialize metrics sink: %w", err)
	}

	engineComponent, err := engine.New(config.Engine, r, engine.Dependencies{
		Daemon: daemonComponent,
	}, source, viewSinks, metricsSink)
	if err != nil {
		return fmt.Errorf("unable to initialize engine component: %w", err)
	}

	interval := newIntervalRunner(daemonComponent, nil, config.Engine.IntervalDuration,
		func(ctx context.Context, tStart, tEnd int64) {
			engineComponent.RunInterval(ctx, tStart, tEnd)
		})

	addCommonHTTPHandlers(r, "run", httpComponent)
	versionMetrics(r)

	if checkOnly {
		return nil
	}

	components := []interface{}{
		httpComponent,
		engineComponent,
		interval,
		sourceCloser{source},
	}
	return StartStopComponents(r, daemonComponent, components)
}

// sourceCloser adapts a RecordSource's Close method to the stopper
// interface StartStopComponents looks for, so the source is closed on
// shutdown. Components stop in reverse order, so the source is closed
// before the interval runner and the engine are stopped.
type sourceCloser struct {
	source engine.RecordSource
}

func (sc sourceCloser) Stop() error {
	return sc.source.Close()
}
