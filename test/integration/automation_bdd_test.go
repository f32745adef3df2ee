//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/clock"
	"github.com/eliteGoblin/focusd/autores/internal/daemon"
	"github.com/eliteGoblin/focusd/autores/internal/domain"
	"github.com/eliteGoblin/focusd/autores/internal/infra"
	"github.com/eliteGoblin/focusd/autores/internal/usecase"
	"github.com/eliteGoblin/focusd/autores/test/fixtures"
)

const (
	hwndGame   domain.WindowHandle = 0x1001
	hwndEditor domain.WindowHandle = 0x2002
	hwndRacer  domain.WindowHandle = 0x3003
)

var (
	mode4K   = domain.Resolution{Width: 3840, Height: 2160, FrequencyHz: 60}
	mode1080 = domain.Resolution{Width: 1920, Height: 1080, FrequencyHz: 144}
	mode720  = domain.Resolution{Width: 1280, Height: 720, FrequencyHz: 60}
)

const baseConfig = `{
  "automation": {
    "mouseLock": [{"process": "game.exe", "paddingX": 10, "paddingY": 20}],
    "autoRes": {
      "revertDelay": 5000,
      "profiles": [{"process": "game.exe", "width": 1920, "height": 1080, "frequencyHz": 144}]
    }
  }
}`

const racerConfig = `{
  "automation": {
    "autoRes": {
      "revertDelay": 5000,
      "profiles": [
        {"process": "game.exe", "width": 1920, "height": 1080, "frequencyHz": 144},
        {"process": "racer", "width": 1280, "height": 720, "frequencyHz": 60}
      ]
    }
  }
}`

// recorder collects notifications from a hub subscription.
type recorder struct {
	mu     sync.Mutex
	events []domain.Notification
}

func (r *recorder) drain(ch <-chan domain.Notification) {
	for n := range ch {
		r.mu.Lock()
		r.events = append(r.events, n)
		r.mu.Unlock()
	}
}

func (r *recorder) statuses(event string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.events {
		if n.Event == event {
			out = append(out, n.Status)
		}
	}
	return out
}

var _ = Describe("Automation engine", func() {
	var (
		desktop    *fixtures.FakeDesktop
		clk        *clock.FakeClock
		loader     *infra.ConfigLoader
		automator  *usecase.AutomatorImpl
		engine     *daemon.Engine
		events     *recorder
		configPath string
		cancel     context.CancelFunc
		done       chan error
	)

	lockedClip := func() *domain.Rect {
		rect, ok := desktop.Clip()
		if !ok {
			return nil
		}
		return &rect
	}

	revertPending := func() bool {
		return automator.Snapshot().RevertDeadline != nil
	}

	stopEngine := func() {
		cancel()
		cancel = nil
		Eventually(done, 2*time.Second).Should(Receive(MatchError(context.Canceled)))
	}

	BeforeEach(func() {
		configPath = filepath.Join(GinkgoT().TempDir(), "config.json")
		Expect(os.WriteFile(configPath, []byte(baseConfig), 0600)).To(Succeed())

		desktop = fixtures.NewFakeDesktop(mode4K, mode1080, mode720)
		desktop.OpenWindow(hwndGame, 100, "game.exe", domain.Rect{Left: 0, Top: 0, Right: 1920, Bottom: 1080})
		desktop.OpenWindow(hwndEditor, 200, "code.exe", domain.Rect{Left: 100, Top: 100, Right: 900, Bottom: 700})
		desktop.OpenWindow(hwndRacer, 300, "Racer.exe", domain.Rect{Left: 0, Top: 0, Right: 1280, Bottom: 720})

		clk = clock.Fake(time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC))
		logger := zap.NewNop()

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())

		loader = infra.NewConfigLoader(configPath, logger)
		Expect(loader.Watch(ctx)).To(Succeed())

		hub := infra.NewHub(infra.NewLogNotifier(logger))
		_, ch, unsubscribe := hub.Subscribe(64)
		events = &recorder{}
		go events.drain(ch)
		DeferCleanup(unsubscribe)

		automator = usecase.NewAutomator(desktop, desktop, desktop, loader, hub, clk, logger)
		engine = daemon.NewEngine(daemon.DefaultEngineConfig(), automator, desktop, clk, logger)

		done = make(chan error, 1)
		go func() { done <- engine.Run(ctx) }()

		Eventually(clk.Tickers).Should(Equal(2))
		Expect(desktop.Subscribed()).To(BeTrue())
		Expect(engine.Degraded()).To(BeFalse())
	})

	AfterEach(func() {
		if cancel != nil {
			stopEngine()
		}
	})

	Describe("resolution profiles", func() {
		It("switches mode when a profiled process gains focus", func() {
			desktop.Focus(hwndGame)

			Eventually(desktop.Mode).Should(Equal(mode1080))
			snap := automator.Snapshot()
			Expect(snap.ActiveProfile).To(Equal("game.exe"))
			Expect(snap.OriginalResolution).To(PointTo(Equal(mode4K)))
		})

		It("reverts to the original mode after the grace delay", func() {
			desktop.Focus(hwndGame)
			Eventually(desktop.Mode).Should(Equal(mode1080))

			desktop.Focus(hwndEditor)
			Eventually(revertPending).Should(BeTrue())

			clk.Advance(4 * time.Second)
			Consistently(desktop.Mode, 100*time.Millisecond).Should(Equal(mode1080))

			clk.Advance(time.Second)
			Eventually(desktop.Mode).Should(Equal(mode4K))
			Eventually(func() bool { return automator.Snapshot().Idle() }).Should(BeTrue())
			Eventually(func() []string { return events.statuses(domain.EventResolutionChanged) }).Should(Equal(
				[]string{domain.StatusChanged, domain.StatusRevertPending, domain.StatusReverted}))
		})

		It("cancels the revert when focus returns within the delay", func() {
			desktop.Focus(hwndGame)
			Eventually(desktop.Mode).Should(Equal(mode1080))

			desktop.Focus(hwndEditor)
			Eventually(revertPending).Should(BeTrue())
			clk.Advance(2 * time.Second)

			desktop.Focus(hwndGame)
			Eventually(revertPending).Should(BeFalse())

			clk.Advance(10 * time.Second)
			Consistently(desktop.Mode, 100*time.Millisecond).Should(Equal(mode1080))
			Expect(desktop.Applied()).To(Equal([]domain.Resolution{mode1080}))
		})

		It("reverts on the next tick when forced", func() {
			desktop.Focus(hwndGame)
			Eventually(desktop.Mode).Should(Equal(mode1080))
			desktop.Focus(hwndEditor)
			Eventually(revertPending).Should(BeTrue())

			Expect(automator.ForceRevert()).To(BeTrue())
			clk.Advance(time.Second)

			Eventually(desktop.Mode).Should(Equal(mode4K))
			Expect(automator.ForceRevert()).To(BeFalse())
		})

		It("picks up config edits without a restart", func() {
			Expect(os.WriteFile(configPath, []byte(racerConfig), 0600)).To(Succeed())
			Eventually(func() int { return len(loader.Current().AutoRes.Profiles) }, 3*time.Second).Should(Equal(2))

			desktop.Focus(hwndRacer)
			Eventually(desktop.Mode).Should(Equal(mode720))
			Expect(automator.Snapshot().ActiveProfile).To(Equal("racer"))
		})

		It("restores the display when the engine stops", func() {
			desktop.Focus(hwndGame)
			Eventually(desktop.Mode).Should(Equal(mode1080))
			Eventually(lockedClip).ShouldNot(BeNil())

			stopEngine()

			Expect(desktop.Mode()).To(Equal(mode4K))
			Expect(lockedClip()).To(BeNil())
			Expect(desktop.Subscribed()).To(BeFalse())
		})
	})

	Describe("cursor lock", func() {
		It("confines the cursor inside the padded window", func() {
			desktop.Focus(hwndGame)

			Eventually(lockedClip).Should(PointTo(Equal(domain.Rect{Left: 10, Top: 20, Right: 1910, Bottom: 1060})))
			Expect(automator.Snapshot().LockedProcess).To(Equal("game.exe"))
		})

		It("follows the window when it moves", func() {
			desktop.Focus(hwndGame)
			Eventually(lockedClip).ShouldNot(BeNil())

			desktop.MoveWindow(hwndGame, domain.Rect{Left: 500, Top: 300, Right: 1300, Bottom: 900})
			clk.Advance(50 * time.Millisecond)

			Eventually(lockedClip).Should(PointTo(Equal(domain.Rect{Left: 510, Top: 320, Right: 1290, Bottom: 880})))
		})

		It("keeps the last clip while the window is unreadable", func() {
			desktop.Focus(hwndGame)
			Eventually(lockedClip).ShouldNot(BeNil())
			clips := desktop.ClipCount()

			desktop.CloseWindow(hwndGame)
			clk.Advance(50 * time.Millisecond)

			Consistently(desktop.ClipCount, 100*time.Millisecond).Should(Equal(clips))
			Expect(automator.Snapshot().LockedWindow).To(Equal(hwndGame))
		})

		It("releases the cursor when focus leaves", func() {
			desktop.Focus(hwndGame)
			Eventually(lockedClip).ShouldNot(BeNil())

			desktop.Focus(hwndEditor)

			Eventually(lockedClip).Should(BeNil())
			Eventually(func() []string { return events.statuses(domain.EventMouseLockChanged) }).Should(Equal(
				[]string{domain.StatusActive, domain.StatusInactive}))
		})
	})
})
