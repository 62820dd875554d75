// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// ignite runs a startup-readiness plan file through the coordinator and
// renders the outcome as a terminal timeline, optionally writing the
// recording artifact and serving the health endpoint.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/ignition/pkg/ignition"
	"github.com/AleutianAI/ignition/pkg/ignition/health"
	"github.com/AleutianAI/ignition/pkg/ignition/recording"
	"github.com/AleutianAI/ignition/pkg/logging"
)

// Exit codes.
const (
	exitSuccess = 0
	exitFailed  = 1
	exitUsage   = 2
)

var (
	runOutPath  string
	runListen   string
	runVerbose  bool
	runTimeline bool
	runLogDir   string
)

var rootCmd = &cobra.Command{
	Use:   "ignite",
	Short: "Startup readiness coordinator",
	Long: `ignite executes a YAML plan of readiness signals through the
coordination engine and reports the per-signal outcomes.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Execute a readiness plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

func init() {
	runCmd.Flags().StringVar(&runOutPath, "out", "", "write the recording JSON to this path")
	runCmd.Flags().StringVar(&runListen, "listen", "", "serve the health endpoint on this address after the run")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "log coordinator events")
	runCmd.Flags().BoolVar(&runTimeline, "timeline", true, "render the Gantt timeline")
	runCmd.Flags().StringVar(&runLogDir, "log-dir", "", "also write JSON logs to this directory")
	rootCmd.AddCommand(runCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	plan, err := LoadPlan(args[0])
	if err != nil {
		return err
	}

	opts, err := plan.BuildOptions()
	if err != nil {
		return err
	}
	signals, err := plan.BuildSignals()
	if err != nil {
		return err
	}

	level := logging.LevelWarn
	if runVerbose {
		level = logging.LevelDebug
	}
	logger, err := logging.New(logging.Config{
		Level:   level,
		LogDir:  runLogDir,
		Service: "ignite",
	})
	if err != nil {
		return err
	}
	defer logger.Close()
	opts.Logger = logger.Logger

	coord, err := ignition.NewCoordinator(signals, opts)
	if err != nil {
		return err
	}
	if runVerbose {
		coord.OnSignalCompleted(func(ev ignition.SignalCompletedEvent) {
			fmt.Fprintf(os.Stderr, "  %s -> %s (%.1fms)\n",
				ev.Result.Name, ev.Result.Status, float64(ev.Result.Duration.Microseconds())/1000)
		})
	}

	runErr := coord.Run(cmd.Context())
	res := coord.Result()

	rec := recording.FromResult(res, opts)
	fmt.Println(RenderSummary(rec))
	if runTimeline {
		fmt.Println(RenderTimeline(recording.NewTimeline(res, opts)))
	}

	if runOutPath != "" {
		data, err := rec.JSON()
		if err != nil {
			return fmt.Errorf("encode recording: %w", err)
		}
		if err := os.WriteFile(runOutPath, data, 0o644); err != nil {
			return fmt.Errorf("write recording: %w", err)
		}
		fmt.Printf("recording written to %s\n", runOutPath)
	}

	if runListen != "" {
		if err := serveHealth(cmd.Context(), coord, runListen); err != nil {
			return err
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run finished with failures: %v\n", runErr)
		os.Exit(exitFailed)
	}
	return nil
}

// serveHealth blocks serving the readiness endpoint until the context is
// cancelled or the server fails.
func serveHealth(ctx context.Context, coord *ignition.Coordinator, addr string) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", health.NewChecker(coord).GinHandler())

	fmt.Printf("serving health endpoint on %s/healthz\n", addr)
	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(addr) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitUsage)
	}
}
