package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/api"
	"github.com/eliteGoblin/focusd/autores/internal/domain"
	"github.com/eliteGoblin/focusd/autores/internal/infra"
	"github.com/eliteGoblin/focusd/autores/internal/policy"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List supported display modes",
	Args:  cobra.NoArgs,
	RunE:  runModes,
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the current display mode",
	Args:  cobra.NoArgs,
	RunE:  runCurrent,
}

var setCmd = &cobra.Command{
	Use:   "set WIDTHxHEIGHT@HZ",
	Short: "Apply a display mode",
	Long: `Applies an exact supported display mode, e.g. "autores set 1920x1080@144".
This does not touch automation state; a pending revert still fires.`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

var revertCmd = &cobra.Command{
	Use:   "revert",
	Short: "Revert a pending resolution change now",
	Args:  cobra.NoArgs,
	RunE:  runRevert,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the configured automation rules",
	Args:  cobra.NoArgs,
	RunE:  runRules,
}

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running processes by memory use",
	Long:  `Lists running processes, largest first, to help pick process names for rules.`,
	Args:  cobra.NoArgs,
	RunE:  runPs,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream automation notifications from the daemon",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

var (
	initConfig bool
	psLimit    int
)

func init() {
	modesCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rulesCmd.Flags().BoolVar(&initConfig, "init", false, "Write a starter config file if none exists")
	psCmd.Flags().IntVarP(&psLimit, "limit", "n", 25, "Maximum processes to show (0 for all)")
	psCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	eventsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output one JSON object per line")
}

// daemonClient returns a client for the running daemon, or an error wrapping
// domain.ErrDaemonNotRunning.
func daemonClient() (*api.Client, *domain.DaemonInfo, error) {
	registry := infra.NewFileRegistry(infra.DetectPaths().DataDir)
	info, err := registry.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read daemon registry: %w", err)
	}
	if info == nil || info.ControlAddr == "" {
		return nil, nil, domain.ErrDaemonNotRunning
	}
	if alive, _ := registry.IsAlive(); !alive {
		return nil, nil, domain.ErrDaemonNotRunning
	}
	return api.NewClient(info.ControlAddr), info, nil
}

// localDisplay opens the platform display adapter directly. The caller must
// close the returned platform.
func localDisplay() (*infra.Platform, error) {
	logger, _ := zap.NewDevelopment()
	platform, err := infra.NewPlatform(logger)
	if err != nil {
		return nil, err
	}
	return platform, nil
}

func runModes(cmd *cobra.Command, args []string) error {
	var modes []domain.Resolution
	if client, _, err := daemonClient(); err == nil {
		if modes, err = client.Modes(cmd.Context()); err != nil {
			return err
		}
	} else {
		platform, err := localDisplay()
		if err != nil {
			return err
		}
		defer platform.Close()
		if modes, err = platform.Display.SupportedModes(); err != nil {
			return err
		}
	}

	if jsonOutput {
		return printJSON(modes)
	}
	for _, m := range modes {
		fmt.Println(m)
	}
	return nil
}

func runCurrent(cmd *cobra.Command, args []string) error {
	var mode domain.Resolution
	if client, _, err := daemonClient(); err == nil {
		if mode, err = client.Current(cmd.Context()); err != nil {
			return err
		}
	} else {
		platform, err := localDisplay()
		if err != nil {
			return err
		}
		defer platform.Close()
		if mode, err = platform.Display.Current(); err != nil {
			return err
		}
	}
	fmt.Println(mode)
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	mode, err := domain.ParseResolution(args[0])
	if err != nil {
		return err
	}

	if client, _, cerr := daemonClient(); cerr == nil {
		err = client.SetMode(cmd.Context(), mode)
	} else {
		platform, perr := localDisplay()
		if perr != nil {
			return perr
		}
		defer platform.Close()
		err = platform.Display.Apply(mode)
	}

	if errors.Is(err, domain.ErrModeNotFound) {
		return fmt.Errorf("%s is not a supported mode (see 'autores modes')", mode)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Display set to %s\n", mode)
	return nil
}

func runRevert(cmd *cobra.Command, args []string) error {
	client, _, err := daemonClient()
	if err != nil {
		return err
	}
	pending, err := client.Revert(cmd.Context())
	if err != nil {
		return err
	}
	if !pending {
		fmt.Println("No revert pending.")
		return nil
	}
	fmt.Println("Revert scheduled for the next scheduler tick.")
	return nil
}

func runRules(cmd *cobra.Command, args []string) error {
	paths := infra.DetectPaths()
	path := resolveConfigPath(paths)

	if initConfig {
		created, err := infra.WriteDefaultConfig(path)
		if err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		if created {
			fmt.Printf("Wrote starter config to %s\n", path)
		}
	}

	cfg, err := infra.LoadConfigFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Printf("No config at %s (run 'autores rules --init'), using defaults.\n", path)
		cfg = domain.DefaultAutomationConfig()
	case err != nil:
		return err
	}
	for _, problem := range infra.Normalize(&cfg) {
		fmt.Printf("warning: %s\n", problem)
	}

	rules := policy.NewRuleSet(cfg)
	fmt.Printf("\n=== Automation Rules (%s) ===\n", path)
	fmt.Printf("Revert delay: %s\n", cfg.AutoRes.RevertDelay())
	if cfg.AutoRes.DefaultProfile != nil {
		fmt.Printf("Default resolution: %s\n", cfg.AutoRes.DefaultProfile)
	} else {
		fmt.Println("Default resolution: original")
	}

	fmt.Println("\nResolution profiles:")
	if len(rules.Profiles()) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range rules.Profiles() {
		fmt.Printf("  - %s -> %s\n", p.MatchKey, p.Resolution)
	}

	fmt.Println("\nCursor lock:")
	if len(rules.Locks()) == 0 {
		fmt.Println("  (none)")
	}
	for _, r := range rules.Locks() {
		fmt.Printf("  - %s (padding %d,%d)\n", r.MatchKey, r.PaddingX, r.PaddingY)
	}
	if rules.Empty() {
		fmt.Println("\nNo rules configured: the daemon will not change the display or cursor.")
	}
	fmt.Println("\n=============================")
	return nil
}

func runPs(cmd *cobra.Command, args []string) error {
	procs, err := infra.NewProcessLister().List()
	if err != nil {
		return err
	}
	if psLimit > 0 && len(procs) > psLimit {
		procs = procs[:psLimit]
	}
	if jsonOutput {
		return printJSON(procs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tMEMORY")
	for _, p := range procs {
		fmt.Fprintf(w, "%d\t%s\t%s\n", p.PID, p.Name, humanize.IBytes(p.Memory))
	}
	return w.Flush()
}

func runEvents(cmd *cobra.Command, args []string) error {
	client, _, err := daemonClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = client.Events(ctx, func(n domain.Notification) {
		if jsonOutput {
			_ = json.NewEncoder(os.Stdout).Encode(n)
			return
		}
		line := fmt.Sprintf("%s  %-20s %-15s", n.At.Local().Format("15:04:05"), n.Event, n.Status)
		if n.Process != "" {
			line += "  " + n.Process
		}
		if n.Resolution != "" {
			line += "  " + n.Resolution
		}
		if n.Error != "" {
			line += "  error: " + n.Error
		}
		fmt.Println(line)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
