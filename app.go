package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"curie/audio"
	"curie/beep"
	"curie/clipboard"
	"curie/config"
	"curie/log"
	"curie/monitor"
	"curie/notify"
	"curie/permission"
	"curie/scheduler"
	"curie/shutdown"
	"curie/tray"
)

type app struct {
	cfg      *config.Config
	headless bool

	actx     audio.Context
	rec      *audio.CaptureRecorder
	notifier notify.Notifier
	mon      *monitor.Monitor
	sink     *eventSink
	trayOn   bool
}

// fakeAudio is the synthetic microphone behind --fake: a quiet 440 Hz tone
// looped in real time.
func fakeAudio() audio.Context {
	ctx := audio.NewFakeContext(audio.Tone(440, 0.3, time.Second), true)
	ctx.SetDevices([]audio.DeviceInfo{{ID: "fake", Name: "Fake Microphone"}})
	return ctx
}

func runApp(cfg *config.Config, opts options) error {
	if !cfg.UI.Beep || opts.fake {
		beep.Disable()
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	a, err := newApp(cfg, opts)
	if err != nil {
		log.Errorf("startup: %v", err)
		log.Close()
		return err
	}
	defer a.close()

	if opts.headless {
		return a.runHeadless(opts.script)
	}
	return a.runTUI()
}

func newApp(cfg *config.Config, opts options) (*app, error) {
	a := &app{cfg: cfg, headless: opts.headless}

	if opts.fake {
		a.actx = fakeAudio()
	} else {
		actx, err := audio.NewContext()
		if err != nil {
			return nil, fmt.Errorf("initializing audio: %w", err)
		}
		a.actx = actx
	}

	device, err := audio.FindDevice(a.actx, cfg.Audio.Device)
	if err != nil {
		a.actx.Close()
		return nil, err
	}
	a.rec = audio.NewRecorder(a.actx, device, audio.RecorderConfig{
		Dir:        cfg.Output.Directory,
		Format:     cfg.Audio.Format,
		SampleRate: uint32(cfg.Audio.SampleRate),
		Channels:   uint32(cfg.Audio.Channels),
	})

	switch {
	case opts.fake:
		a.notifier = notify.NewFake()
	default:
		n, err := notify.New("curie")
		if err != nil {
			log.Warnf("notifications unavailable, logging instead: %v", err)
			a.notifier = logNotifier{}
		} else {
			a.notifier = n
		}
	}

	a.sink = &eventSink{cfg: cfg}
	if opts.headless {
		a.sink.out = os.Stdout
	}

	a.mon = monitor.New(monitor.Config{
		SegmentInterval:     cfg.Monitor.SegmentInterval,
		StopCooldown:        cfg.Monitor.StopCooldown,
		NotificationTitle:   cfg.Monitor.NotificationTitle,
		NotificationMessage: cfg.Monitor.NotificationMessage,
	}, monitor.Deps{
		Recorder: a.rec,
		Notifier: a.notifier,
		Permissions: permission.AudioProbe{
			Ctx:     a.actx,
			Device:  device,
			Timeout: cfg.Monitor.PermissionTimeout,
		},
		Sink: a.sink,
	})

	log.SessionStart(a.rec.DeviceName(), cfg.Audio.Format, opts.headless)
	return a, nil
}

func (a *app) close() {
	segments := a.mon.Snapshot().Segments
	if err := a.mon.Close(); err != nil {
		log.Errorf("monitor close: %v", err)
	}
	a.notifier.Close()
	a.actx.Close()
	if a.trayOn {
		tray.Quit()
	}
	log.SessionEnd(segments)
	log.Close()
}

// watchLevel samples the input level while recording, feeds the screen's
// animation and raises the no-audio warning.
func (a *app) watchLevel(stop <-chan struct{}) {
	ticker := scheduler.Real.NewTicker(levelInterval)
	defer ticker.Stop()
	silence := newSilenceMonitor()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
		}

		if !a.mon.Snapshot().Recording {
			if silence.Warned() {
				a.sink.NoAudio(false)
			}
			silence.Reset()
			continue
		}

		level := a.rec.Level()
		tuiSend(AudioLevelMsg{level})
		switch silence.Tick(level) {
		case SilenceWarn:
			a.sink.NoAudio(true)
		case SilenceWarnClear:
			a.sink.NoAudio(false)
		case SilenceRepeat:
			beep.Play(beep.Error)
		}
	}
}

func (a *app) startTray() {
	tray.SetBTCheck(audio.IsBluetooth)
	tray.OnToggle(
		func() {
			if err := a.mon.Start(context.Background()); err != nil {
				tray.SetError(err.Error())
			}
		},
		func() { a.mon.Stop() },
	)
	tray.OnCopyLast(func() {
		if path := a.mon.Snapshot().AudioFile; path != "" {
			if err := clipboard.Copy(path); err != nil {
				log.Errorf("clipboard: %v", err)
			}
		}
	})
	tray.Init()
	a.trayOn = true
	tray.SetDevice(a.rec.DeviceName())
	// the tray's Quit is a back action: it cannot end a recording
	go tray.ServeQuit(
		func() bool {
			if a.mon.Back() {
				return true
			}
			tray.SetError("recording in progress, stop monitoring first")
			return false
		},
		func() {
			tuiMu.Lock()
			p := tuiProgram
			tuiMu.Unlock()
			if p != nil {
				p.Quit()
			}
		},
	)
}

func (a *app) runTUI() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newTUIModel(ctx, a.mon, a.cfg.Monitor.ClockInterval, a.rec.DeviceName())
	p := tea.NewProgram(m, tea.WithAltScreen())
	tuiMu.Lock()
	tuiProgram = p
	tuiMu.Unlock()
	defer func() {
		tuiMu.Lock()
		tuiProgram = nil
		tuiMu.Unlock()
	}()

	go a.mon.Bootstrap(ctx)
	if a.cfg.UI.Tray {
		a.startTray()
	}

	stop := make(chan struct{})
	defer close(stop)
	go a.watchLevel(stop)

	sigCh := make(chan os.Signal, 1)
	shutdown.Notify(sigCh)
	defer shutdown.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			p.Quit()
		case <-stop:
		}
	}()

	_, err := p.Run()
	return err
}

// runHeadless monitors without the screen until SIGINT/SIGTERM, or follows
// commands from stdin when script is set.
func (a *app) runHeadless(script bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	status := a.mon.Bootstrap(ctx)
	fmt.Printf("microphone permission: %s\n", status)

	stop := make(chan struct{})
	defer close(stop)
	go a.watchLevel(stop)

	if script {
		return a.runScript(ctx, os.Stdin)
	}

	if err := a.mon.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("monitoring %s every %s into %s (Ctrl+C to stop)\n",
		a.rec.DeviceName(), a.cfg.Monitor.SegmentInterval, a.cfg.Output.Directory)

	sigCh := make(chan os.Signal, 1)
	shutdown.Notify(sigCh)
	defer shutdown.Stop(sigCh)

	clock := scheduler.Real.NewTicker(a.cfg.Monitor.ClockInterval)
	defer clock.Stop()
	for {
		select {
		case <-sigCh:
			if err := a.mon.Stop(); err != nil {
				log.Errorf("stop: %v", err)
			}
			fmt.Printf("stopped after %d segment(s)\n", a.mon.Snapshot().Segments)
			return nil
		case t := <-clock.C():
			snap := a.mon.Snapshot()
			fmt.Printf("%s  %s  segments: %d\n", t.Format(clockTimeLayout), t.Format(clockDateLayout), snap.Segments)
		}
	}
}
