package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"duxwatch/pkg/actions"
	"duxwatch/pkg/config"
	"duxwatch/pkg/logging"
	"duxwatch/pkg/models"
	"duxwatch/pkg/notify"
	"duxwatch/pkg/rpc"
	"duxwatch/pkg/server"
	"duxwatch/pkg/store"
	"duxwatch/pkg/tui"
	"duxwatch/pkg/watcher"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version should be set during build
var Version = "dev"

// errCheckFailed makes the process exit non-zero after the report has been
// printed.
var errCheckFailed = errors.New("check failed")

var (
	configFlag  string
	envFileFlag string
	jsonFlag    bool
	portFlag    int
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "duxwatch",
		Short:         "Terminal dashboard for a DUX node wallet",
		Long:          `Watch a DUX node's wallet balances, addresses, history and keys, and send funds, from the terminal.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runTUI,
	}
	root.SetVersionTemplate("duxwatch version {{.Version}}\n")
	root.PersistentFlags().StringVar(&configFlag, "config", "", "Path to configuration file (default ~/"+config.ConfigFileName+")")
	root.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Optional .env file with DUXWATCH_* overrides")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run headless and publish node state over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port for the state server (default from config)")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Test the configuration and the node connection, then exit",
		Args:  cobra.NoArgs,
		RunE:  runCheck,
	}
	checkCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output check results as JSON")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "restore",
		Short: "Restore the most recent configuration backup",
		Args:  cobra.NoArgs,
		RunE:  runConfigRestore,
	})

	root.AddCommand(serveCmd, checkCmd, configCmd,
		newWalletCmd(), newServicesCmd(), newTasksCmd(), newEscrowCmd(), newReputationCmd())
	return root
}

// loadConfig reads the config file, applies environment overrides and
// validates the result.
func loadConfig() (config.Config, string, error) {
	path, err := config.GetConfigPath(configFlag)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determining config path: %w", err)
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return config.Config{}, path, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := config.ApplyEnv(&cfg, envFileFlag); err != nil {
		return config.Config{}, path, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, path, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, path, nil
}

// app holds the components shared by the TUI and serve modes.
type app struct {
	cfg     config.Config
	logger  *log.Logger
	closer  io.Closer
	store   *store.Store
	queue   *notify.Queue
	watcher *watcher.Watcher
	actions *actions.Service
}

func newApp(cfg config.Config, opts logging.Options) *app {
	logger, closer := logging.New(opts)
	client := rpc.NewClient(cfg.APIBaseURL, cfg.RequestTimeout(), logger)
	st := store.New()
	q := notify.NewQueue(cfg.NotificationDuration(), logger)
	w := watcher.NewWatcher(cfg, client, st, q, logger)
	return &app{
		cfg:     cfg,
		logger:  logger,
		closer:  closer,
		store:   st,
		queue:   q,
		watcher: w,
		actions: actions.NewService(client, st, q, w, logger),
	}
}

// run starts the watcher (and desktop alerts when enabled) and returns a
// function that shuts everything down.
func (a *app) run(ctx context.Context) func() {
	a.watcher.Start(ctx)
	stopAlerts := func() {}
	if a.cfg.DesktopAlerts {
		stopAlerts = notify.DesktopAlerts(a.queue, "duxwatch", a.logger)
	}
	return func() {
		stopAlerts()
		a.watcher.Stop()
		a.queue.Close()
		_ = a.closer.Close()
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	// The screen belongs to the TUI, so logs only go to the file.
	logFile := cfg.LogFile
	if logFile == "" {
		logFile = logging.DefaultFile()
	}
	a := newApp(cfg, logging.Options{Level: cfg.LogLevel, File: logFile})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	shutdown := a.run(ctx)
	defer shutdown()

	return tui.Start(a.watcher, a.queue, a.actions, cfg, Version)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	port := cfg.ServerPort
	if portFlag != 0 {
		port = portFlag
	}
	a := newApp(cfg, logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Stderr: true})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	shutdown := a.run(ctx)
	defer shutdown()

	color.New(color.FgBlue).Printf("Running in server mode on port %d...\n", port)
	return server.NewServer(a.watcher, a.queue, a.logger).Start(ctx, port)
}

func runCheck(cmd *cobra.Command, args []string) error {
	report := models.CheckReport{}
	cfg, path, err := loadConfig()
	report.ConfigPath = path
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return printReport(report)
	}
	report.APIBaseURL = cfg.APIBaseURL

	if !jsonFlag {
		fmt.Printf("Testing configuration at: %s\n", path)
		fmt.Printf("Node API: %s\n", cfg.APIBaseURL)
	}

	logger, closer := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Stderr: !jsonFlag})
	defer func() { _ = closer.Close() }()
	client := rpc.NewClient(cfg.APIBaseURL, cfg.RequestTimeout(), logger)
	st := store.New()
	w := watcher.NewWatcher(cfg, client, st, nil, logger)
	defer w.Stop()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.RequestTimeout())
	defer cancel()

	for _, c := range []store.Category{store.CategoryStatus, store.CategoryStats} {
		if err := w.RefreshNow(ctx, c); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", c, rpc.UserMessage(err, "request failed")))
		}
	}
	if v, ok := st.GetStatus(); ok {
		report.Status = &v
	}
	if v, ok := st.GetStats(); ok {
		report.Stats = &v
	}
	return printReport(report)
}

func printReport(report models.CheckReport) error {
	report.OK = len(report.Errors) == 0

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
	} else {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		if s := report.Status; s != nil {
			green.Printf("  /status OK")
			fmt.Printf(" (DID %s, online %t, %d peers)\n", s.DID, s.IsOnline, s.PeersCount)
		}
		if s := report.Stats; s != nil {
			green.Printf("  /stats OK")
			fmt.Printf(" (%d DHT entries, %d escrows, %d tasks)\n", s.DHT.TotalEntries, s.Escrow.TotalContracts, s.Tasks.TotalTasks)
		}
		for _, e := range report.Errors {
			red.Printf("  Error: %s\n", e)
		}
		if report.OK {
			green.Println("Node reachable, configuration valid.")
		} else {
			red.Println("Check failed.")
		}
	}

	if !report.OK {
		return errCheckFailed
	}
	return nil
}

func runConfigRestore(cmd *cobra.Command, args []string) error {
	path, err := config.GetConfigPath(configFlag)
	if err != nil {
		return fmt.Errorf("determining config path: %w", err)
	}
	backup, err := config.RestoreLastBackup(path)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("Restored %s from %s\n", path, backup)
	return nil
}
