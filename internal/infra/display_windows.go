//go:build windows

package infra

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// Win32Display implements domain.DisplayController for the primary display
// using EnumDisplaySettingsW and ChangeDisplaySettingsW.
type Win32Display struct{}

// NewWin32Display creates the primary display controller.
func NewWin32Display() *Win32Display {
	return &Win32Display{}
}

func enumDisplayMode(index uint32) (devMode, bool) {
	var dm devMode
	dm.Size = uint16(unsafe.Sizeof(dm))
	r, _, _ := procEnumDisplaySettingsW.Call(0, uintptr(index), uintptr(unsafe.Pointer(&dm)))
	return dm, r != 0
}

func (dm *devMode) resolution() domain.Resolution {
	return domain.Resolution{
		Width:       int(dm.PelsWidth),
		Height:      int(dm.PelsHeight),
		FrequencyHz: int(dm.DisplayFrequency),
	}
}

// SupportedModes enumerates every mode the primary display reports.
func (d *Win32Display) SupportedModes() ([]domain.Resolution, error) {
	var modes []domain.Resolution
	for i := uint32(0); ; i++ {
		dm, ok := enumDisplayMode(i)
		if !ok {
			break
		}
		modes = append(modes, dm.resolution())
	}
	if len(modes) == 0 {
		return nil, errors.New("EnumDisplaySettingsW returned no modes")
	}
	return sortModes(modes), nil
}

// Current returns the active mode.
func (d *Win32Display) Current() (domain.Resolution, error) {
	dm, ok := enumDisplayMode(enumCurrentSettings)
	if !ok {
		return domain.Resolution{}, errors.New("EnumDisplaySettingsW(ENUM_CURRENT_SETTINGS) failed")
	}
	return dm.resolution(), nil
}

// Apply switches to the first enumerated mode matching width, height and
// frequency exactly.
func (d *Win32Display) Apply(mode domain.Resolution) error {
	for i := uint32(0); ; i++ {
		dm, ok := enumDisplayMode(i)
		if !ok {
			break
		}
		if dm.resolution() != mode {
			continue
		}

		r, _, _ := procChangeDisplaySettingsW.Call(uintptr(unsafe.Pointer(&dm)), cdsFullscreen)
		if int32(r) != dispChangeSuccess {
			return errors.Wrapf(domain.ErrModeChangeRejected, "ChangeDisplaySettingsW(%s) returned %d", mode, int32(r))
		}
		return nil
	}
	return errors.Wrapf(domain.ErrModeNotFound, "%s", mode)
}

var _ domain.DisplayController = (*Win32Display)(nil)
