package main

import (
	"fmt"
	"io"
	"sync"

	"curie/audio"
	"curie/beep"
	"curie/config"
	"curie/log"
	"curie/monitor"
	"curie/notify"
	"curie/tray"
)

// eventSink fans monitor events out to the screen, the tray, audible cues
// and, in headless mode, plain lines on out.
type eventSink struct {
	cfg *config.Config
	out io.Writer // nil unless headless

	mu   sync.Mutex
	last monitor.State
}

func (s *eventSink) printf(format string, args ...any) {
	if s.out != nil {
		fmt.Fprintf(s.out, format, args...)
	}
}

func (s *eventSink) StateChanged(snap monitor.Snapshot) {
	s.mu.Lock()
	prev := s.last
	s.last = snap.State
	s.mu.Unlock()

	tuiSend(StateMsg{snap})
	if prev == snap.State {
		return
	}
	tray.SetMonitoring(snap.State == monitor.Monitoring)
	switch snap.State {
	case monitor.Monitoring:
		beep.Play(beep.Start)
	case monitor.StoppingPending:
		beep.Play(beep.Stop)
	}
	s.printf("state: %s\n", snap.State)
}

func (s *eventSink) SegmentSaved(index int, path string) {
	tuiSend(SegmentMsg{Index: index, Path: path})
	tray.SetLastSegment(index, path)
	s.printf("segment %d: %s\n", index, path)

	if keep := s.cfg.Output.Retain; keep > 0 {
		removed, err := audio.PruneSegments(s.cfg.Output.Directory, keep)
		if err != nil {
			log.Errorf("prune segments: %v", err)
			return
		}
		log.SegmentsPruned(removed)
	}
}

func (s *eventSink) Error(err error) {
	tuiSend(ErrorMsg{err})
	tray.SetError(err.Error())
	beep.Play(beep.Error)
	s.printf("error: %v\n", err)
}

// NoAudio reports the silence warning raised and cleared by watchLevel.
func (s *eventSink) NoAudio(on bool) {
	tuiSend(NoAudioMsg{on})
	tray.SetWarning(on)
	if on {
		beep.Play(beep.Error)
		log.Warn("no_audio_detected")
		s.printf("warning: no audio detected\n")
	} else {
		log.Info("audio_resumed")
		s.printf("audio resumed\n")
	}
}

// logNotifier stands in when no notification service is reachable, so
// monitoring still runs without a desktop session.
type logNotifier struct{}

func (logNotifier) Post(n notify.Notification) error {
	log.Infof("notification %d: %s", n.ID, n.Message)
	return nil
}

func (logNotifier) CancelAll() error {
	log.Info("notifications_cancelled")
	return nil
}

func (logNotifier) Close() error { return nil }
