// tagd is the indexing daemon: it watches project trees, schedules parse
// jobs for an external C/C++ parser and answers symbol queries.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tagd-dev/tagd/internal/config"
	"github.com/tagd-dev/tagd/internal/server"
	"github.com/tagd-dev/tagd/internal/storage"
	"github.com/tagd-dev/tagd/internal/watcher"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	flagConfig   string
	flagDataDir  string
	flagProjects []string
	flagParser   string
	flagJobs     int
	flagVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:   "tagd",
		Short: "C/C++ indexing daemon",
		RunE:  runDaemon,
	}
	root.Flags().StringVarP(&flagConfig, "config", "c", "", "path to YAML config file")
	root.Flags().StringVar(&flagDataDir, "data-dir", "", "override data directory")
	root.Flags().StringSliceVarP(&flagProjects, "project", "p", nil, "project root to open (repeatable)")
	root.Flags().StringVar(&flagParser, "parser", "tagd-parse", "external parser command")
	root.Flags().IntVarP(&flagJobs, "jobs", "j", 0, "number of concurrent parse jobs (0 = config default)")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tagd %s\n", version)
			fmt.Printf("Build Time: %s\n", buildTime)
			fmt.Printf("Build Mode: %s\n", storage.BuildMode)
			fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	// stdout is reserved for query output.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	opts, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagDataDir != "" {
		opts.DataDir = flagDataDir
	}
	if flagJobs > 0 {
		opts.JobCount = flagJobs
	}

	logger.Info("starting",
		slog.String("version", version),
		slog.String("build_mode", storage.BuildMode),
		slog.String("driver", storage.DriverName),
		slog.Int("jobs", opts.JobCount))

	srv, err := server.New(opts, server.NewExecParser(flagParser), logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var fw *watcher.Watcher
	if !opts.HasFlag(config.NoFileSystemWatch) {
		fw, err = watcher.New(srv.OnFileModified, logger)
		if err != nil {
			return err
		}
		defer fw.Close()
		go fw.Run(ctx)
	}

	for _, path := range flagProjects {
		if _, err := srv.AddProject(ctx, path); err != nil {
			return fmt.Errorf("open project %s: %w", path, err)
		}
		if fw != nil {
			if err := fw.Add(path); err != nil {
				logger.Warn("watch failed",
					slog.String("path", path), slog.String("error", err.Error()))
			}
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("dispatch loop ready")
		errChan <- srv.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		cancel()
		<-errChan
	case err := <-errChan:
		if err != nil {
			return err
		}
	}
	logger.Info("stopped")
	return nil
}
