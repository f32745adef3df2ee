package infra

import (
	"errors"
	"sort"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// Platform bundles the OS adapters the engine needs.
type Platform struct {
	Name    string
	Display domain.DisplayController
	Windows domain.WindowManager
	Focus   domain.FocusSource

	closers []func() error
}

// Close releases OS connections held by the adapters.
func (p *Platform) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// UnsupportedPlatform returns adapters that fail every call with
// domain.ErrUnsupported and no focus source, so the engine runs degraded.
func UnsupportedPlatform() *Platform {
	return &Platform{
		Name:    "unsupported",
		Display: unsupportedDisplay{},
		Windows: unsupportedWindows{},
	}
}

type unsupportedDisplay struct{}

func (unsupportedDisplay) SupportedModes() ([]domain.Resolution, error) {
	return nil, domain.ErrUnsupported
}

func (unsupportedDisplay) Current() (domain.Resolution, error) {
	return domain.Resolution{}, domain.ErrUnsupported
}

func (unsupportedDisplay) Apply(domain.Resolution) error { return domain.ErrUnsupported }

type unsupportedWindows struct{}

func (unsupportedWindows) WindowPID(domain.WindowHandle) (int32, error) {
	return 0, domain.ErrUnsupported
}

func (unsupportedWindows) WindowRect(domain.WindowHandle) (domain.Rect, error) {
	return domain.Rect{}, domain.ErrUnsupported
}

func (unsupportedWindows) ClipCursor(domain.Rect) error { return domain.ErrUnsupported }
func (unsupportedWindows) ReleaseCursor() error         { return domain.ErrUnsupported }

// sortModes removes duplicates and orders modes by width, height, then
// frequency, all descending.
func sortModes(modes []domain.Resolution) []domain.Resolution {
	seen := make(map[domain.Resolution]bool, len(modes))
	out := make([]domain.Resolution, 0, len(modes))
	for _, m := range modes {
		if !m.Valid() || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Width != b.Width {
			return a.Width > b.Width
		}
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		return a.FrequencyHz > b.FrequencyHz
	})
	return out
}

var (
	_ domain.DisplayController = unsupportedDisplay{}
	_ domain.WindowManager     = unsupportedWindows{}
)
