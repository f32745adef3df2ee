//go:build integration

package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/api"
	"github.com/eliteGoblin/focusd/autores/internal/clock"
	"github.com/eliteGoblin/focusd/autores/internal/domain"
	"github.com/eliteGoblin/focusd/autores/internal/infra"
	"github.com/eliteGoblin/focusd/autores/internal/usecase"
	"github.com/eliteGoblin/focusd/autores/test/fixtures"
)

// TestControlAPI_DiscoveredThroughRegistry wires the daemon's control plane
// the way `autores run` does and drives it from a registry-discovered client.
func TestControlAPI_DiscoveredThroughRegistry(t *testing.T) {
	tmpDir := t.TempDir()
	logger := zap.NewNop()

	configPath := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(configPath, []byte(baseConfig), 0600); err != nil {
		t.Fatal(err)
	}

	desktop := fixtures.NewFakeDesktop(mode4K, mode1080)
	desktop.OpenWindow(hwndGame, 100, "game.exe", domain.Rect{Right: 1920, Bottom: 1080})
	desktop.OpenWindow(hwndEditor, 200, "code.exe", domain.Rect{Right: 800, Bottom: 600})

	clk := clock.Fake(time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC))
	loader := infra.NewConfigLoader(configPath, logger)
	hub := infra.NewHub()
	automator := usecase.NewAutomator(desktop, desktop, desktop, loader, hub, clk, logger)

	server := api.NewServer(desktop, automator, loader, hub, logger)
	server.SetPlatform("fake")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := api.Listen("")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go server.Serve(ctx, ln)

	registry := infra.NewFileRegistry(tmpDir)
	if err := registry.Register(domain.DaemonInfo{
		PID:         os.Getpid(),
		ControlAddr: ln.Addr().String(),
		StartedAt:   time.Now(),
	}); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	// A second registry instance stands in for a separate CLI invocation.
	info, err := infra.NewFileRegistry(tmpDir).Get()
	if err != nil || info == nil {
		t.Fatalf("registry lookup failed: %v", err)
	}
	client := api.NewClient(info.ControlAddr)

	modes, err := client.Modes(ctx)
	if err != nil {
		t.Fatalf("modes failed: %v", err)
	}
	if len(modes) != 2 {
		t.Errorf("expected 2 modes, got %v", modes)
	}

	// Drive a focus change and a leave, then force the revert remotely.
	automator.HandleFocus(hwndGame)
	automator.HandleFocus(hwndEditor)

	state, err := client.State(ctx)
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if state.State.ActiveProfile != "game.exe" || state.State.RevertDeadline == nil {
		t.Fatalf("expected pending revert for game.exe, got %+v", state.State)
	}
	if state.Platform != "fake" {
		t.Errorf("expected platform fake, got %q", state.Platform)
	}

	pending, err := client.Revert(ctx)
	if err != nil || !pending {
		t.Fatalf("expected forced revert, got pending=%v err=%v", pending, err)
	}
	automator.Tick()

	current, err := client.Current(ctx)
	if err != nil {
		t.Fatalf("current failed: %v", err)
	}
	if current != mode4K {
		t.Errorf("expected %s after revert, got %s", mode4K, current)
	}

	// Manual mode change through the API.
	if err := client.SetMode(ctx, mode1080); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if desktop.Mode() != mode1080 {
		t.Errorf("expected %s, got %s", mode1080, desktop.Mode())
	}
	if err := client.SetMode(ctx, mode720); !errors.Is(err, domain.ErrModeNotFound) {
		t.Errorf("expected ErrModeNotFound for unsupported mode, got %v", err)
	}

	if err := registry.Clear(); err != nil {
		t.Fatalf("failed to clear registry: %v", err)
	}
	if info, _ := registry.Get(); info != nil {
		t.Errorf("expected empty registry after clear, got %+v", info)
	}
}
