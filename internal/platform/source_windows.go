//go:build windows

package platform

import (
	"fmt"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/windows"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetLastInputInfo         = user32.NewProc("GetLastInputInfo")

	kernel32         = windows.NewLazySystemDLL("kernel32.dll")
	procGetTickCount = kernel32.NewProc("GetTickCount")
)

// winSource enumerates visible top-level windows via user32. The
// EnumWindows callback is created once; per-call state lives on the
// struct under the mutex.
type winSource struct {
	mu     sync.Mutex
	cb     uintptr
	snap   *Snapshot
	active uintptr
}

// NewSource returns the Win32 window enumerator.
func NewSource() (Source, error) {
	s := &winSource{}
	s.cb = syscall.NewCallback(s.collect)
	return s, nil
}

func (s *winSource) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Windows: make(map[string]WindowDetails),
		Apps:    make(map[string]WindowDetails),
	}
	s.snap = &snap
	s.active, _, _ = procGetForegroundWindow.Call()

	ret, _, err := procEnumWindows.Call(s.cb, 0)
	s.snap = nil
	if ret == 0 {
		return Snapshot{}, fmt.Errorf("enum windows: %w", err)
	}
	return snap, nil
}

// collect is the EnumWindows callback. Returning 1 continues the
// enumeration.
func (s *winSource) collect(hwnd, _ uintptr) uintptr {
	visible, _, _ := procIsWindowVisible.Call(hwnd)
	if visible == 0 {
		return 1
	}
	title := windowTitle(hwnd)
	if title == "" {
		return 1
	}

	details := WindowDetails{
		WindowTitle: title,
		IsActive:    hwnd == s.active,
	}
	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid != 0 {
		if p, err := process.NewProcess(int32(pid)); err == nil {
			details.AppName, _ = p.Name()
			details.AppPath, _ = p.Exe()
		}
	}

	s.snap.Windows[title] = details
	if details.AppName != "" {
		s.snap.Apps[details.AppName] = details
	}
	return 1
}

func windowTitle(hwnd uintptr) string {
	var buf [512]uint16
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

// IdleDuration reports time since the last keyboard or mouse input.
func (s *winSource) IdleDuration() (time.Duration, error) {
	info := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}
	ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0, fmt.Errorf("last input info: %w", err)
	}
	ticks, _, _ := procGetTickCount.Call()
	// Tick arithmetic in uint32 so the ~49-day wraparound cancels.
	elapsed := uint32(ticks) - info.dwTime
	return time.Duration(elapsed) * time.Millisecond, nil
}
