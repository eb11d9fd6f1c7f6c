package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dtn-bard/bard/internal/logger"
	"github.com/dtn-bard/bard/internal/telemetry"
	"github.com/dtn-bard/bard/pkg/api"
	"github.com/dtn-bard/bard/pkg/bard"
	"github.com/dtn-bard/bard/pkg/bard/imc"
	"github.com/dtn-bard/bard/pkg/bard/restagecl"
	"github.com/dtn-bard/bard/pkg/config"
	"github.com/dtn-bard/bard/pkg/durablestore"
	"github.com/dtn-bard/bard/pkg/metrics"
	prometheusmetrics "github.com/dtn-bard/bard/pkg/metrics/prometheus"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the BARD daemon",
	Long: `Start the BARD daemon with the specified configuration.

By default, the daemon runs in the background. Use --foreground to run
in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/bard/config.yaml.

Examples:
  # Start in background (default)
  bardd start

  # Start in foreground
  bardd start --foreground

  # Start with custom config file
  bardd start --config /etc/bard/config.yaml

  # Start with environment variable overrides
  BARD_LOGGING_LEVEL=DEBUG bardd start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/bard/bardd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/bard/bardd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry.ToTelemetryConfig("bardd", Version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(cfg.Telemetry.ToProfilingConfig("bardd", Version))
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	metricsServer := startMetricsServer(cfg)

	store, err := durablestore.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("durable store close error", "error", err)
		}
	}()

	imcTable := imc.NewTable()
	imcRecords, err := store.LoadIMCRecords()
	if err != nil {
		return err
	}
	for _, rec := range imcRecords {
		imcTable.Apply(rec)
	}
	logger.Info("IMC region/group table loaded",
		"records", len(imcRecords), "home_region", imcTable.HomeRegion())

	b := bard.New(store)
	b.SetMetrics(prometheusmetrics.NewBARDMetrics())
	b.SetReloadIssuer(bard.NewSelfReloadIssuer(b))

	// Store wins over startup configuration for overlapping quota keys;
	// config records absent from the store are written back through
	// AddQuota with quota_in_datastore set.
	if err := b.LoadQuotasFromStore(); err != nil {
		return err
	}
	stored := make(map[string]bool)
	for _, u := range b.Quotas() {
		stored[u.Key] = true
	}
	for _, qc := range cfg.Quotas {
		qt, err := bard.ParseQuotaType(qc.QuotaType)
		if err != nil {
			return err
		}
		scheme, err := bard.ParseScheme(qc.Scheme)
		if err != nil {
			return err
		}
		key := bard.CanonicalKey(qt, scheme, qc.Node)
		if stored[key] {
			logger.Debug("startup quota overridden by durable store", "key", key)
			continue
		}
		if err := b.AddQuota(qt, scheme, qc.Node, qc.ToQuota()); err != nil {
			return err
		}
	}
	logger.Info("Quota table loaded", "configured", len(b.Quotas()))

	clMetrics := prometheusmetrics.NewRestageCLMetrics()
	sep := cfg.Separators.ToSeparators()
	links := make([]*restagecl.RestageCL, 0, len(cfg.RestageCLs))
	for _, rc := range cfg.RestageCLs {
		if err := os.MkdirAll(rc.StoragePath, 0o755); err != nil {
			return fmt.Errorf("failed to create storage root %s: %w", rc.StoragePath, err)
		}
		cl := restagecl.New(restagecl.Config{
			Name:               rc.Name,
			StorageRoot:        rc.StoragePath,
			PartOfPool:         rc.PartOfPool,
			RequireMountPoint:  rc.RequireMountPoint,
			RateLimitBps:       rc.RateLimitBytesPerSec,
			Separators:         sep,
			PollInterval:       rc.PollInterval,
			DiskQuota:          rc.DiskQuota.Uint64(),
			ExpireBundles:      rc.ExpireBundles,
			DaysRetention:      rc.DaysRetention,
			AutoReloadInterval: rc.AutoReloadInterval,
			Email: restagecl.EmailConfig{
				Enabled:  rc.Email.Enabled,
				SMTPAddr: rc.Email.SMTPAddr,
				From:     rc.Email.From,
				To:       rc.Email.To,
			},
		}, b)
		cl.SetMetrics(clMetrics)
		if err := cl.CheckMount(); err != nil {
			// The link is registered anyway: it sits in ERROR until the
			// mount comes back and the poll loop revalidates.
			logger.Error("restage link validation failed", "link", rc.Name, "error", err)
		}
		b.RegisterRestageCL(cl)
		cl.Start()
		links = append(links, cl)
		logger.Info("restage link registered", "link", rc.Name, "storage_path", rc.StoragePath)
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	if cfg.API.IsEnabled() {
		apiServer := api.NewServer(cfg.API, b)
		go func() {
			serverDone <- apiServer.Start(ctx)
		}()
		logger.Info("API server configured", "port", apiServer.Port())
	} else {
		logger.Info("API server disabled")
		go func() {
			<-ctx.Done()
			serverDone <- nil
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("BARD is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		runErr = <-serverDone
	case runErr = <-serverDone:
		signal.Stop(sigChan)
		cancel()
	}

	for _, cl := range links {
		cl.Stop()
	}
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	if runErr != nil {
		logger.Error("daemon exited with error", "error", runErr)
		return runErr
	}
	logger.Info("BARD stopped gracefully")
	return nil
}

// startMetricsServer installs the process-wide Prometheus registry and
// serves it, returning nil when metrics are disabled.
func startMetricsServer(cfg *config.Config) *http.Server {
	if !cfg.Metrics.Enabled {
		logger.Info("Metrics collection disabled")
		return nil
	}
	reg := metrics.InitRegistry(nil)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// startDaemon re-executes bardd in the background with --foreground,
// detached from the controlling terminal, logging to a file.
func startDaemon() error {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	bardStateDir := filepath.Join(stateDir, "bard")

	if err := os.MkdirAll(bardStateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = filepath.Join(bardStateDir, "bardd.pid")
	}

	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("bardd is already running (PID %d)", pid)
					}
				}
			}
		}
		// Stale PID file, remove it
		_ = os.Remove(pidPath)
	}

	logPath := logFile
	if logPath == "" {
		logPath = filepath.Join(bardStateDir, "bardd.log")
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	daemon := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	daemon.Stdout = logFileHandle
	daemon.Stderr = logFileHandle
	daemon.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := daemon.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	_ = logFileHandle.Close()

	fmt.Printf("bardd started in background (PID %d)\n", daemon.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'bardd logs -f' to follow the daemon's logs")

	return nil
}
