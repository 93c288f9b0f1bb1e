package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"tcp-loadgen/config"
	"tcp-loadgen/internal/dispatcher"
	"tcp-loadgen/internal/logger"
	"tcp-loadgen/internal/models"
	"tcp-loadgen/internal/pinger"
	"tcp-loadgen/internal/reporter"
	"tcp-loadgen/internal/sender"
	"tcp-loadgen/pkg/checkpoint"
	"tcp-loadgen/pkg/utils"
)

// resultsQueueSize bounds the results waiting for the reporter.
const resultsQueueSize = 1024

// reachable is a package-level variable so tests can replace the ICMP check.
var reachable = pinger.Reachable

// main is the entry point for the load generator.
func main() {
	os.Exit(run(filepath.Base(os.Args[0]), os.Args[1:], os.Stderr))
}

func run(prog string, args []string, stderr io.Writer) int {
	cfg, err := config.Load(prog, args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	appLogger, closeLogFile, err := logger.New(stderr, cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	defer closeLogFile()

	// Set the global logger
	slog.SetDefault(appLogger)

	params := cfg.RunParameters
	var previouslySent int64
	if cfg.ResumeFile != "" {
		appLogger.Info("Attempting to resume run", "file", cfg.ResumeFile)
		state, err := checkpoint.LoadState(cfg.ResumeFile)
		if err != nil {
			appLogger.Error("Failed to load checkpoint file.", "file", cfg.ResumeFile, "error", err)
			return 1
		}
		if params, err = state.Apply(params); err != nil {
			appLogger.Error("Checkpoint does not belong to this run.", "file", cfg.ResumeFile, "error", err)
			return 1
		}
		previouslySent = state.Sent
		appLogger.Info("Resuming run.", "previous_run_id", state.RunID, "previously_sent", state.Sent, "remaining", params.ObjectCount)
	}

	if params.Sequential() {
		fmt.Fprintln(stderr, "INFO: Parallelism disabled")
	} else {
		utils.CheckFileDescriptorLimit(appLogger, params.ConcurrencyLimit)
	}

	if cfg.Ping && !reachable(params.Target.Host, cfg.PingTimeout, utils.IsPrivileged(), appLogger) {
		appLogger.Error("Target host did not answer ping, aborting.", "host", params.Target.Host)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []dispatcher.Option
	var reporterWg sync.WaitGroup
	var resultsChan chan models.SendResult
	if cfg.ReportFile != "" {
		resultsChan = make(chan models.SendResult, resultsQueueSize)
		rep, err := reporter.New(ctx, &reporterWg, resultsChan, cfg.ReportFile, appLogger)
		if err != nil {
			appLogger.Error("Failed to open report.", "file", cfg.ReportFile, "error", err)
			return 1
		}
		reporterWg.Add(1)
		go rep.Run()
		opts = append(opts, dispatcher.WithResults(resultsChan))
	}

	d := dispatcher.New(sender.NewTCPSender(cfg.Timeout, cfg.RateLimit, appLogger), appLogger, opts...)
	_, runErr := d.Run(ctx, params)

	// Goroutines die with main, so in-flight sends are waited for here.
	stats := d.Wait()
	if resultsChan != nil {
		close(resultsChan)
		reporterWg.Wait()
	}

	appLogger.Info("Summary.",
		"run_id", stats.RunID,
		"attempted", stats.Attempted,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"remaining", stats.Remaining,
		"peak_active", stats.PeakActive,
		"duration", stats.Duration,
	)

	if runErr != nil {
		if ctx.Err() == nil {
			appLogger.Error("Run failed.", "error", runErr)
			return 1
		}
		appLogger.Warn("Run interrupted.", "remaining", stats.Remaining)
		saveCheckpoint(cfg, params, stats, previouslySent, appLogger)
		return 1
	}
	if cfg.Strict && stats.Failed > 0 {
		return 2
	}
	return 0
}

// saveCheckpoint records the unstarted remainder. previouslySent carries the
// count of a resumed checkpoint forward so it spans every attempt.
func saveCheckpoint(cfg *config.Config, params models.RunParameters, stats models.RunStats, previouslySent int64, appLogger *slog.Logger) {
	if cfg.CheckpointFile == "" || stats.Remaining == 0 {
		appLogger.Debug("No checkpoint written.", "remaining", stats.Remaining, "checkpoint_configured", cfg.CheckpointFile != "")
		return
	}
	params.ObjectCount = int(stats.Remaining)
	state := checkpoint.State{RunID: stats.RunID, Sent: previouslySent + stats.Started, Params: params}
	if err := checkpoint.SaveState(state, cfg.CheckpointFile); err != nil {
		appLogger.Error("Failed to save checkpoint", "error", err)
		return
	}
	appLogger.Info("Checkpoint saved", "file", cfg.CheckpointFile, "remaining", stats.Remaining)
}
