// Package tray shows a status indicator while curie runs: idle, monitoring,
// or monitoring with a warning. Its menu mirrors the screen's start/stop
// action.
package tray

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

var (
	quitCh    = make(chan struct{})
	closeOnce sync.Once
	// quitReq carries Quit clicks; a refused request leaves the tray running.
	quitReq = make(chan struct{}, 1)
	endOnce sync.Once
	endFn   func()

	startFn    func()
	stopFn     func()
	copyLastFn func()

	stateMu     sync.Mutex
	monitoring  bool
	warning     bool
	segments    int
	lastSegment string
	deviceName  string
	errorUntil  time.Time

	isBTFn func(string) bool
)

func OnToggle(start, stop func()) { startFn = start; stopFn = stop }
func OnCopyLast(fn func())        { copyLastFn = fn }
func SetBTCheck(fn func(string) bool) {
	isBTFn = fn
}

func SetMonitoring(on bool) {
	stateMu.Lock()
	monitoring = on
	warning = false
	if on {
		segments = 0
	}
	stateMu.Unlock()
	updateMonitoringIcon(on)
	refreshTooltip()
}

func SetWarning(on bool) {
	stateMu.Lock()
	if !monitoring {
		stateMu.Unlock()
		return
	}
	warning = on
	stateMu.Unlock()
	updateWarningIcon(on)
	refreshTooltip()
}

func SetDevice(name string) {
	stateMu.Lock()
	deviceName = name
	stateMu.Unlock()
	refreshTooltip()
}

func SetLastSegment(count int, path string) {
	stateMu.Lock()
	segments = count
	lastSegment = path
	stateMu.Unlock()
	updateCopyLastTitle(fmt.Sprintf("Copy Last Segment Path (%s)", filepath.Base(path)))
	refreshTooltip()
}

// SetError shows msg in the tooltip for ten seconds.
func SetError(msg string) {
	stateMu.Lock()
	errorUntil = time.Now().Add(10 * time.Second)
	stateMu.Unlock()
	updateTooltip("curie - " + msg)
	go func() {
		time.Sleep(10 * time.Second)
		refreshTooltip()
	}()
}

func refreshTooltip() {
	stateMu.Lock()
	if time.Now().Before(errorUntil) {
		stateMu.Unlock()
		return
	}
	text := statusText(monitoring, warning, segments, deviceName)
	stateMu.Unlock()
	updateTooltip(text)
}

func statusText(monitoring, warning bool, segments int, device string) string {
	var s string
	switch {
	case monitoring && warning:
		s = "curie - no audio detected"
	case monitoring:
		s = fmt.Sprintf("curie - monitoring (%d saved)", segments)
	default:
		s = "curie - idle"
	}
	if device != "" {
		s += "\n" + deviceDisplayName(device)
	}
	return s
}

func toggle() {
	stateMu.Lock()
	on := monitoring
	stateMu.Unlock()
	if on {
		if stopFn != nil {
			stopFn()
		}
	} else if startFn != nil {
		startFn()
	}
}

func requestQuit() {
	select {
	case quitReq <- struct{}{}:
	default:
	}
}

// ServeQuit handles Quit clicks until the tray is torn down. Each click asks
// allow; the first allowed one runs quit.
func ServeQuit(allow func() bool, quit func()) {
	serveQuit(quitReq, quitCh, allow, quit)
}

func serveQuit(reqs, done <-chan struct{}, allow func() bool, quit func()) {
	for {
		select {
		case <-reqs:
			if allow() {
				quit()
				return
			}
		case <-done:
			return
		}
	}
}

// Quit tears the tray down. Safe to call more than once.
func Quit() {
	closeOnce.Do(func() { close(quitCh) })
	stateMu.Lock()
	end := endFn
	stateMu.Unlock()
	if end != nil {
		endOnce.Do(end)
	}
}

func deviceDisplayName(name string) string {
	if isBTFn != nil && isBTFn(name) {
		return name + " [lower audio quality]"
	}
	return name
}
