package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
	"github.com/eliteGoblin/focusd/autores/internal/infra"
)

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage starting autores at login",
}

var autostartEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Start the daemon automatically at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		manager := autostartManager()
		if err := manager.Install(execPath); err != nil {
			return fmt.Errorf("failed to install autostart entry: %w", err)
		}
		fmt.Printf("Autostart enabled (%s)\n", manager.Location())
		return nil
	},
}

var autostartDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Stop starting the daemon at login",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := autostartManager()
		if err := manager.Uninstall(); err != nil {
			return fmt.Errorf("failed to remove autostart entry: %w", err)
		}
		fmt.Println("Autostart disabled")
		return nil
	},
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether autostart is enabled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := autostartManager()
		if manager.IsInstalled() {
			fmt.Printf("Autostart: enabled (%s)\n", manager.Location())
		} else {
			fmt.Println("Autostart: disabled")
		}
		return nil
	},
}

func init() {
	autostartCmd.AddCommand(autostartEnableCmd)
	autostartCmd.AddCommand(autostartDisableCmd)
	autostartCmd.AddCommand(autostartStatusCmd)
	rootCmd.AddCommand(autostartCmd)
}

func autostartManager() domain.AutostartManager {
	return infra.NewAutostart(infra.DetectPaths())
}

// refreshAutostart rewrites an installed entry that points at another binary,
// e.g. after the executable moved.
func refreshAutostart(execPath string) {
	manager := autostartManager()
	if !manager.NeedsUpdate(execPath) {
		return
	}
	if err := manager.Install(execPath); err != nil {
		fmt.Printf("Warning: Could not update autostart entry: %v\n", err)
		return
	}
	fmt.Printf("Updated autostart entry (%s)\n", manager.Location())
}
