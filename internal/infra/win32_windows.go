//go:build windows

package infra

import (
	"golang.org/x/sys/windows"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procEnumDisplaySettingsW   = user32.NewProc("EnumDisplaySettingsW")
	procChangeDisplaySettingsW = user32.NewProc("ChangeDisplaySettingsW")
	procGetWindowRect          = user32.NewProc("GetWindowRect")
	procIsIconic               = user32.NewProc("IsIconic")
	procClipCursor             = user32.NewProc("ClipCursor")
	procSetWinEventHook        = user32.NewProc("SetWinEventHook")
	procUnhookWinEvent         = user32.NewProc("UnhookWinEvent")
	procGetMessageW            = user32.NewProc("GetMessageW")
	procTranslateMessage       = user32.NewProc("TranslateMessage")
	procDispatchMessageW       = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW     = user32.NewProc("PostThreadMessageW")
)

const (
	enumCurrentSettings = 0xFFFFFFFF // ENUM_CURRENT_SETTINGS
	cdsFullscreen       = 0x00000004 // CDS_FULLSCREEN
	dispChangeSuccess   = 0          // DISP_CHANGE_SUCCESSFUL

	eventSystemForeground = 0x0003 // EVENT_SYSTEM_FOREGROUND
	wineventOutOfContext  = 0x0000 // WINEVENT_OUTOFCONTEXT
	wineventSkipOwnProc   = 0x0002 // WINEVENT_SKIPOWNPROCESS

	wmQuit = 0x0012 // WM_QUIT
)

// devMode mirrors DEVMODEW with the display union arm.
type devMode struct {
	DeviceName         [32]uint16
	SpecVersion        uint16
	DriverVersion      uint16
	Size               uint16
	DriverExtra        uint16
	Fields             uint32
	PositionX          int32
	PositionY          int32
	DisplayOrientation uint32
	DisplayFixedOutput uint32
	Color              int16
	Duplex             int16
	YResolution        int16
	TTOption           int16
	Collate            int16
	FormName           [32]uint16
	LogPixels          uint16
	BitsPerPel         uint32
	PelsWidth          uint32
	PelsHeight         uint32
	DisplayFlags       uint32
	DisplayFrequency   uint32
	ICMMethod          uint32
	ICMIntent          uint32
	MediaType          uint32
	DitherType         uint32
	Reserved1          uint32
	Reserved2          uint32
	PanningWidth       uint32
	PanningHeight      uint32
}

// msg mirrors MSG.
type msg struct {
	Hwnd    windows.HWND
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
	Private uint32
}
