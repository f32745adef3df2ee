//go:build linux

package infra

import (
	"math"
	"sync"

	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// X11Display implements domain.DisplayController for the primary RandR output.
type X11Display struct {
	x  *x11Conn
	mu sync.Mutex
}

// NewX11Display initializes the RandR extension (1.3 or newer).
func NewX11Display(x *x11Conn) (*X11Display, error) {
	if err := randr.Init(x.conn); err != nil {
		return nil, errors.Wrap(err, "RandR extension unavailable")
	}
	if _, err := randr.QueryVersion(x.conn, 1, 3).Reply(); err != nil {
		return nil, errors.Wrap(err, "RandR version query")
	}
	return &X11Display{x: x}, nil
}

// primaryOutput describes the output being controlled.
type primaryOutput struct {
	resources *randr.GetScreenResourcesCurrentReply
	info      *randr.GetOutputInfoReply
	modes     map[uint32]randr.ModeInfo
}

func (d *X11Display) primary() (*primaryOutput, error) {
	res, err := randr.GetScreenResourcesCurrent(d.x.conn, d.x.root).Reply()
	if err != nil {
		return nil, errors.Wrap(err, "GetScreenResourcesCurrent")
	}

	modes := make(map[uint32]randr.ModeInfo, len(res.Modes))
	for _, m := range res.Modes {
		modes[m.Id] = m
	}

	candidates := res.Outputs
	if prim, err := randr.GetOutputPrimary(d.x.conn, d.x.root).Reply(); err == nil && prim.Output != 0 {
		candidates = append([]randr.Output{prim.Output}, res.Outputs...)
	}

	for _, out := range candidates {
		info, err := randr.GetOutputInfo(d.x.conn, out, res.ConfigTimestamp).Reply()
		if err != nil || info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}
		return &primaryOutput{resources: res, info: info, modes: modes}, nil
	}
	return nil, errors.New("no connected RandR output with an active CRTC")
}

func modeResolution(m randr.ModeInfo) domain.Resolution {
	return domain.Resolution{
		Width:       int(m.Width),
		Height:      int(m.Height),
		FrequencyHz: modeRefresh(m),
	}
}

// modeRefresh derives the vertical refresh rate in whole Hz.
func modeRefresh(m randr.ModeInfo) int {
	if m.Htotal == 0 || m.Vtotal == 0 {
		return 0
	}
	vtotal := float64(m.Vtotal)
	if m.ModeFlags&randr.ModeFlagDoubleScan != 0 {
		vtotal *= 2
	}
	if m.ModeFlags&randr.ModeFlagInterlace != 0 {
		vtotal /= 2
	}
	return int(math.Round(float64(m.DotClock) / (float64(m.Htotal) * vtotal)))
}

// SupportedModes lists the modes of the primary output.
func (d *X11Display) SupportedModes() ([]domain.Resolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.primary()
	if err != nil {
		return nil, err
	}

	modes := make([]domain.Resolution, 0, len(p.info.Modes))
	for _, id := range p.info.Modes {
		if m, ok := p.modes[uint32(id)]; ok {
			modes = append(modes, modeResolution(m))
		}
	}
	return sortModes(modes), nil
}

// Current returns the mode of the primary output's CRTC.
func (d *X11Display) Current() (domain.Resolution, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.primary()
	if err != nil {
		return domain.Resolution{}, err
	}
	crtc, err := randr.GetCrtcInfo(d.x.conn, p.info.Crtc, p.resources.ConfigTimestamp).Reply()
	if err != nil {
		return domain.Resolution{}, errors.Wrap(err, "GetCrtcInfo")
	}
	m, ok := p.modes[uint32(crtc.Mode)]
	if !ok {
		return domain.Resolution{}, errors.Errorf("CRTC mode %d not in screen resources", crtc.Mode)
	}
	return modeResolution(m), nil
}

// Apply switches the primary output's CRTC to an exact mode, resizing the
// screen around it.
func (d *X11Display) Apply(mode domain.Resolution) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.primary()
	if err != nil {
		return err
	}

	var target randr.Mode
	for _, id := range p.info.Modes {
		if m, ok := p.modes[uint32(id)]; ok && modeResolution(m) == mode {
			target = id
			break
		}
	}
	if target == 0 {
		return errors.Wrapf(domain.ErrModeNotFound, "%s", mode)
	}

	cfgTS := p.resources.ConfigTimestamp
	crtc, err := randr.GetCrtcInfo(d.x.conn, p.info.Crtc, cfgTS).Reply()
	if err != nil {
		return errors.Wrap(err, "GetCrtcInfo")
	}

	needW, needH := d.screenBounds(p, crtc, mode)
	curW, curH, err := d.screenSize()
	if err != nil {
		return err
	}

	// Grow first so the new CRTC fits, shrink after it is applied.
	if needW > curW || needH > curH {
		if err := d.setScreenSize(max(needW, curW), max(needH, curH), p); err != nil {
			return err
		}
	}

	reply, err := randr.SetCrtcConfig(d.x.conn, p.info.Crtc, xproto.TimeCurrentTime, cfgTS,
		crtc.X, crtc.Y, target, crtc.Rotation, crtc.Outputs).Reply()
	if err != nil {
		return errors.Wrap(err, "SetCrtcConfig")
	}
	if reply.Status != randr.SetConfigSuccess {
		return errors.Wrapf(domain.ErrModeChangeRejected, "SetCrtcConfig(%s) status %d", mode, reply.Status)
	}

	if needW != curW || needH != curH {
		if err := d.setScreenSize(needW, needH, p); err != nil {
			return err
		}
	}
	return nil
}

// screenBounds returns the bounding box of all active CRTCs once the
// primary CRTC shows mode.
func (d *X11Display) screenBounds(p *primaryOutput, primary *randr.GetCrtcInfoReply, mode domain.Resolution) (int, int) {
	w := int(primary.X) + mode.Width
	h := int(primary.Y) + mode.Height
	if primary.Rotation&(randr.RotationRotate90|randr.RotationRotate270) != 0 {
		w = int(primary.X) + mode.Height
		h = int(primary.Y) + mode.Width
	}

	for _, c := range p.resources.Crtcs {
		if c == p.info.Crtc {
			continue
		}
		info, err := randr.GetCrtcInfo(d.x.conn, c, p.resources.ConfigTimestamp).Reply()
		if err != nil || info.Mode == 0 {
			continue
		}
		w = max(w, int(info.X)+int(info.Width))
		h = max(h, int(info.Y)+int(info.Height))
	}
	return w, h
}

func (d *X11Display) screenSize() (int, int, error) {
	geom, err := xproto.GetGeometry(d.x.conn, xproto.Drawable(d.x.root)).Reply()
	if err != nil {
		return 0, 0, errors.Wrap(err, "GetGeometry(root)")
	}
	return int(geom.Width), int(geom.Height), nil
}

// setScreenSize keeps the physical DPI of the default screen.
func (d *X11Display) setScreenSize(w, h int, p *primaryOutput) error {
	s := d.x.screen
	mmW, mmH := uint32(s.WidthInMillimeters), uint32(s.HeightInMillimeters)
	if s.WidthInPixels > 0 && s.HeightInPixels > 0 {
		mmW = uint32(float64(w) * float64(s.WidthInMillimeters) / float64(s.WidthInPixels))
		mmH = uint32(float64(h) * float64(s.HeightInMillimeters) / float64(s.HeightInPixels))
	}
	if p.info.MmWidth > 0 && p.info.MmHeight > 0 && len(p.resources.Crtcs) == 1 {
		mmW, mmH = p.info.MmWidth, p.info.MmHeight
	}

	err := randr.SetScreenSizeChecked(d.x.conn, d.x.root, u16(w), u16(h), mmW, mmH).Check()
	return errors.Wrapf(err, "SetScreenSize(%dx%d)", w, h)
}

var _ domain.DisplayController = (*X11Display)(nil)
