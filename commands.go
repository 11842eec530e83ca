package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kiwi/internal/database"
	"kiwi/internal/filesystem"
	"kiwi/internal/indexer"
	"kiwi/internal/logging"
	"kiwi/internal/memory"
	"kiwi/internal/startup"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kiwi",
		Short: "Keep a searchable index in step with an on-disk asset library",
		Long: titleStyle.Render("kiwi") + " " + mutedStyle.Render(startup.Version) + "\n" +
			"  Mirrors a library of <id>.info folders into a SQLite index, incrementally.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML, TOML or JSON config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync engine with its HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			return runServe(configFile)
		},
	}
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync pass and print its outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			asJSON, _ := cmd.Flags().GetBool("json")
			return runOnce(cmd.Context(), configFile, asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "Print the result as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, _ []string) {
			info := startup.GetBuildInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "kiwi %s (commit %s, built %s, %s %s/%s)\n",
				info.Version, info.Commit, info.BuildTime, info.GoVersion, info.OS, info.Arch)
		},
	}
}

// runOnce performs one sync against the configured library and exits
// non-zero when the run fails outright.
func runOnce(ctx context.Context, configFile string, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	memResult := memory.ConfigureFromEnv()

	cfg, err := startup.ReadConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	defer setupLogFile(cfg.LogFile)()

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn("Failed to close database: %v", err)
		}
	}()

	idx := indexer.New(db, indexerConfig(cfg))
	if memMonitor := startMemoryMonitor(memResult.Configured); memMonitor != nil {
		defer memMonitor.Stop()
		idx.SetMemoryMonitor(memMonitor)
	}
	progress := newProgressLine(os.Stderr)
	idx.SetProgressFunc(progress.Update)

	res := idx.Run(ctx)
	progress.Done()

	if asJSON {
		if err := printJSON(os.Stdout, res); err != nil {
			return err
		}
	} else {
		renderResult(os.Stdout, res)
	}

	if res.State == indexer.StateFailed {
		return fmt.Errorf("sync failed: %w", res.Err)
	}
	return nil
}

// indexerConfig maps application configuration onto the orchestrator's.
func indexerConfig(cfg *startup.Config) indexer.Config {
	retry := filesystem.DefaultRetryConfig()
	retry.Timeout = cfg.FSTimeout

	return indexer.Config{
		LibraryDir:   cfg.LibraryDir,
		Interval:     cfg.SyncInterval,
		PollInterval: cfg.PollInterval,
		Workers:      cfg.SyncWorkers,
		ChunkSize:    cfg.SyncChunkSize,
		BatchSize:    cfg.SyncBatchSize,
		ProbeImages:  cfg.ProbeImages,
		Retry:        retry,
	}
}

// setupLogFile tees logging into path when it is set and returns the function
// that closes the file again.
func setupLogFile(path string) func() {
	if path == "" {
		return func() {}
	}
	if err := logging.EnableFile(logging.DefaultFileConfig(path)); err != nil {
		logging.Warn("Failed to open log file %s: %v", path, err)
		return func() {}
	}
	return func() {
		if err := logging.Close(); err != nil {
			logging.Warn("Failed to close log file: %v", err)
		}
	}
}

// startMemoryMonitor starts a monitor that gates sync chunks when a memory
// limit is known, and returns nil otherwise.
func startMemoryMonitor(limitConfigured bool) *memory.Monitor {
	if !limitConfigured {
		return nil
	}
	m := memory.NewMonitor(memory.DefaultConfig())
	m.Start()
	return m
}
