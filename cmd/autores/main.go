// Package main is the CLI entry point for autores.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/autores/internal/api"
	"github.com/eliteGoblin/focusd/autores/internal/clock"
	"github.com/eliteGoblin/focusd/autores/internal/daemon"
	"github.com/eliteGoblin/focusd/autores/internal/domain"
	"github.com/eliteGoblin/focusd/autores/internal/infra"
	"github.com/eliteGoblin/focusd/autores/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "autores",
	Short: "Per-application display automation",
	Long: `autores watches which application has focus and switches the display
resolution and confines the mouse cursor according to per-application rules.

When a profiled application loses focus the original resolution is restored
after a grace delay, so quick alt-tabs don't cause a flicker of mode changes.`,
	Version:      Version,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the automation daemon in the foreground",
	Long: `Runs the automation engine in the foreground until interrupted.
On SIGINT/SIGTERM the cursor is released and any active profile is reverted.`,
	RunE: runDaemon,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and automation state",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath    string
	debugLogging  bool
	desktopNotify bool
	listenAddr    string
	jsonOutput    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Automation config file (.json, .toml, .yaml)")

	runCmd.Flags().BoolVar(&debugLogging, "debug", false, "Enable debug logging")
	runCmd.Flags().BoolVar(&desktopNotify, "desktop-notify", false, "Show desktop notifications (Linux)")
	runCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:0", "Control API listen address")
	startCmd.Flags().BoolVar(&debugLogging, "debug", false, "Enable debug logging")
	startCmd.Flags().BoolVar(&desktopNotify, "desktop-notify", false, "Show desktop notifications (Linux)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output state as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(modesCmd)
	rootCmd.AddCommand(currentCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveConfigPath returns --config or the per-user default.
func resolveConfigPath(paths *infra.Paths) string {
	if configPath != "" {
		return configPath
	}
	return paths.ConfigPath
}

func runDaemon(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	logger := createLogger(paths, debugLogging)
	defer func() { _ = logger.Sync() }()

	registry := infra.NewFileRegistry(paths.DataDir)
	if info, _ := registry.Get(); info != nil && info.PID != os.Getpid() {
		if alive, _ := registry.IsAlive(); alive {
			return fmt.Errorf("autores is already running (pid %d)", info.PID)
		}
	}

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := infra.NewConfigLoader(resolveConfigPath(paths), logger)
	if err := loader.Watch(ctx); err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
	}

	platform, err := infra.NewPlatform(logger)
	if err != nil {
		logger.Error("platform adapters unavailable, running degraded", zap.Error(err))
		platform = infra.UnsupportedPlatform()
	}
	defer func() {
		if err := platform.Close(); err != nil {
			logger.Warn("failed to close platform adapters", zap.Error(err))
		}
	}()

	hub := infra.NewHub(infra.NewLogNotifier(logger))
	if desktopNotify {
		desktop, err := infra.NewDesktopNotifier(logger)
		if err != nil {
			logger.Warn("desktop notifications unavailable", zap.Error(err))
		} else {
			hub.AddSink(desktop)
			defer desktop.Close()
		}
	}

	clk := clock.Real()
	loader.NotifyReloads(hub, clk)
	automator := usecase.NewAutomator(
		platform.Display,
		platform.Windows,
		infra.NewProcessResolver(platform.Windows),
		loader,
		hub,
		clk,
		logger,
	)
	engine := daemon.NewEngine(daemon.DefaultEngineConfig(), automator, platform.Focus, clk, logger)

	// Control API
	server := api.NewServer(platform.Display, automator, loader, hub, logger)
	server.SetVersion(Version)
	server.SetPlatform(platform.Name)
	server.SetDegraded(engine.Degraded)

	ln, err := api.Listen(listenAddr)
	if err != nil {
		return fmt.Errorf("failed to open control API listener: %w", err)
	}
	go func() {
		if err := server.Serve(ctx, ln); err != nil {
			logger.Error("control API stopped", zap.Error(err))
		}
	}()

	if err := registry.Register(domain.DaemonInfo{
		PID:         os.Getpid(),
		ControlAddr: ln.Addr().String(),
		AppVersion:  Version,
		StartedAt:   time.Now(),
	}); err != nil {
		logger.Warn("failed to write daemon registry", zap.Error(err))
	}
	defer func() {
		if err := registry.Clear(); err != nil {
			logger.Warn("failed to clear daemon registry", zap.Error(err))
		}
	}()

	logger.Info("autores daemon started",
		zap.Int("pid", os.Getpid()),
		zap.String("version", Version),
		zap.String("platform", platform.Name),
		zap.String("config", loader.Path()),
		zap.String("control_addr", ln.Addr().String()))

	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("autores daemon stopped")
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	registry := infra.NewFileRegistry(paths.DataDir)

	// Check if already running
	if alive, _ := registry.IsAlive(); alive {
		info, _ := registry.Get()
		fmt.Printf("autores is already running (pid %d)\n", info.PID)
		return nil
	}

	var extra []string
	if configPath != "" {
		extra = append(extra, "--config", configPath)
	}
	if debugLogging {
		extra = append(extra, "--debug")
	}
	if desktopNotify {
		extra = append(extra, "--desktop-notify")
	}
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	refreshAutostart(execPath)

	if err := daemon.StartDaemonWithPath(execPath, extra...); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait for the daemon to register
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if alive, _ := registry.IsAlive(); alive {
			info, _ := registry.Get()
			fmt.Println("=== autores Started ===")
			fmt.Printf("PID: %d\n", info.PID)
			fmt.Printf("Control API: %s\n", info.ControlAddr)
			fmt.Printf("Config: %s\n", resolveConfigPath(paths))
			fmt.Printf("Log: %s\n", paths.LogPath)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not register within 3s, see %s", paths.ErrorLogPath)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, info, err := daemonClient()
	if err != nil {
		if errors.Is(err, domain.ErrDaemonNotRunning) {
			fmt.Println("Status: NOT RUNNING")
			fmt.Println("\nRun 'autores start' to enable automation.")
			return nil
		}
		return err
	}

	state, err := client.State(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(state)
	}

	fmt.Println("\n=== autores Status ===")
	if state.Degraded {
		fmt.Println("Status: DEGRADED (no focus events, automation inactive)")
	} else {
		fmt.Println("Status: RUNNING")
	}
	fmt.Printf("PID: %d\n", info.PID)
	fmt.Printf("Platform: %s\n", state.Platform)
	fmt.Printf("Version: %s\n", state.Version)
	fmt.Printf("Uptime: %s\n", time.Since(state.StartedAt).Round(time.Second))

	snap := state.State
	fmt.Println()
	if snap.ActiveProfile == "" {
		fmt.Println("Profile: none")
	} else {
		fmt.Printf("Profile: %s\n", snap.ActiveProfile)
		if snap.OriginalResolution != nil {
			fmt.Printf("Original resolution: %s\n", snap.OriginalResolution)
		}
		if snap.RevertDeadline != nil {
			remaining := time.Until(snap.RevertDeadline.Add(state.Config.AutoRes.RevertDelay()))
			fmt.Printf("Revert pending: in %s\n", max(remaining, 0).Round(time.Second))
		}
	}
	if snap.LockedProcess == "" {
		fmt.Println("Cursor lock: none")
	} else {
		fmt.Printf("Cursor lock: %s (padding %d,%d)\n", snap.LockedProcess, snap.LockedPaddingX, snap.LockedPaddingY)
	}
	fmt.Println("======================")
	return nil
}

func createLogger(paths *infra.Paths, debug bool) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{paths.LogPath}
	config.ErrorOutputPaths = []string{paths.ErrorLogPath}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("autores %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
