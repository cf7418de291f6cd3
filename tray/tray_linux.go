//go:build linux

package tray

import (
	"sync/atomic"

	"fyne.io/systray"
)

var (
	mToggle *systray.MenuItem
	mCopy   *systray.MenuItem
	ready   = make(chan struct{})
	started atomic.Bool
)

// Init registers the status icon. Quit clicks are handled by ServeQuit.
func Init() {
	start, end := systray.RunWithExternalLoop(onReady, onExit)
	stateMu.Lock()
	endFn = end
	stateMu.Unlock()
	start()
	started.Store(true)
}

func onReady() {
	systray.SetIcon(iconIdle)
	systray.SetTitle("curie")
	systray.SetTooltip("curie - idle")

	mToggle = systray.AddMenuItem("Start Monitoring", "Start or stop monitoring")
	mCopy = systray.AddMenuItem("Copy Last Segment Path", "Copy the last segment path to the clipboard")
	mCopy.Disable()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit curie")

	go func() {
		for {
			select {
			case <-mToggle.ClickedCh:
				toggle()
			case <-mCopy.ClickedCh:
				if copyLastFn != nil {
					copyLastFn()
				}
			case <-mQuit.ClickedCh:
				requestQuit()
			case <-quitCh:
				return
			}
		}
	}()
	close(ready)
}

func onExit() {
	closeOnce.Do(func() { close(quitCh) })
}

// whenReady runs fn once the menu exists; calls before Init are dropped.
func whenReady(fn func()) {
	if !started.Load() {
		return
	}
	select {
	case <-ready:
		fn()
	default:
	}
}

func updateMonitoringIcon(on bool) {
	whenReady(func() {
		if on {
			systray.SetIcon(iconRec)
			mToggle.SetTitle("Stop Monitoring")
		} else {
			systray.SetIcon(iconIdle)
			mToggle.SetTitle("Start Monitoring")
		}
	})
}

func updateWarningIcon(on bool) {
	whenReady(func() {
		if on {
			systray.SetIcon(iconWarn)
		} else {
			systray.SetIcon(iconRec)
		}
	})
}

func updateTooltip(msg string) {
	whenReady(func() { systray.SetTooltip(msg) })
}

func updateCopyLastTitle(title string) {
	whenReady(func() {
		mCopy.SetTitle(title)
		mCopy.Enable()
	})
}
