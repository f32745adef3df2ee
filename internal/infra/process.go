// Package infra implements infrastructure concerns (display, windows, process, config, registry).
package infra

import (
	"fmt"
	"sort"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// ProcessResolverImpl implements domain.ProcessResolver: the window manager
// supplies the owning PID and gopsutil supplies the executable name.
type ProcessResolverImpl struct {
	windows domain.WindowManager
	nameOf  func(pid int32) (string, error)
}

// NewProcessResolver creates a resolver backed by gopsutil.
func NewProcessResolver(windows domain.WindowManager) *ProcessResolverImpl {
	return &ProcessResolverImpl{windows: windows, nameOf: processName}
}

// ResolveWindow returns the name of the process owning hwnd.
func (r *ProcessResolverImpl) ResolveWindow(hwnd domain.WindowHandle) (domain.ProcessName, error) {
	pid, err := r.windows.WindowPID(hwnd)
	if err != nil {
		return domain.ProcessName{}, fmt.Errorf("%w: window %#x: %v", domain.ErrProcessUnavailable, uintptr(hwnd), err)
	}
	if pid <= 0 {
		return domain.ProcessName{}, fmt.Errorf("%w: window %#x has no owner", domain.ErrProcessUnavailable, uintptr(hwnd))
	}

	name, err := r.nameOf(pid)
	if err != nil {
		return domain.ProcessName{}, fmt.Errorf("%w: pid %d: %v", domain.ErrProcessUnavailable, pid, err)
	}
	resolved := domain.NewProcessName(name)
	if resolved.IsZero() {
		return domain.ProcessName{}, fmt.Errorf("%w: pid %d has empty name", domain.ErrProcessUnavailable, pid)
	}
	return resolved, nil
}

func processName(pid int32) (string, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return "", err
	}
	return p.Name()
}

// ProcessListerImpl implements domain.ProcessLister using gopsutil.
type ProcessListerImpl struct{}

// NewProcessLister creates a new process lister.
func NewProcessLister() *ProcessListerImpl {
	return &ProcessListerImpl{}
}

// List returns running processes sorted by resident memory, largest first.
func (l *ProcessListerImpl) List() ([]domain.ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	infos := make([]domain.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || name == "" {
			continue // Process may have exited
		}
		info := domain.ProcessInfo{PID: p.Pid, Name: name}
		if mem, err := p.MemoryInfo(); err == nil && mem != nil {
			info.Memory = mem.RSS
		}
		infos = append(infos, info)
	}

	sortByMemory(infos)
	return infos, nil
}

func sortByMemory(infos []domain.ProcessInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Memory != infos[j].Memory {
			return infos[i].Memory > infos[j].Memory
		}
		return infos[i].PID < infos[j].PID
	})
}

// IsRunning checks if a PID exists.
func IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}

// Ensure implementations satisfy domain interfaces.
var (
	_ domain.ProcessResolver = (*ProcessResolverImpl)(nil)
	_ domain.ProcessLister   = (*ProcessListerImpl)(nil)
)
