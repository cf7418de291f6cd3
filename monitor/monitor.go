// Package monitor is the monitoring state machine: it keeps one capture
// session open while monitoring, rotates it into a new segment file every
// interval, and owns the persistent notification.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"curie/audio"
	"curie/log"
	"curie/notify"
	"curie/permission"
	"curie/scheduler"
)

var (
	ErrNotIdle          = errors.New("monitor: not idle")
	ErrNotMonitoring    = errors.New("monitor: not monitoring")
	ErrRotationInFlight = errors.New("monitor: rotation already in progress")
	ErrClosed           = errors.New("monitor: closed")
)

type Config struct {
	SegmentInterval     time.Duration
	StopCooldown        time.Duration
	NotificationTitle   string
	NotificationMessage string
}

func DefaultConfig() Config {
	return Config{
		SegmentInterval:     30 * time.Second,
		StopCooldown:        2 * time.Second,
		NotificationTitle:   "Curie",
		NotificationMessage: "Curie Symptom monitoring undergoing",
	}
}

type Deps struct {
	Recorder    audio.Recorder
	Notifier    notify.Notifier
	Permissions permission.Requester
	Clock       scheduler.Clock // nil means scheduler.Real
	Sink        Sink            // optional
}

type Monitor struct {
	cfg      Config
	rec      audio.Recorder
	notifier notify.Notifier
	perms    permission.Requester
	clock    scheduler.Clock
	sink     Sink
	rotation *scheduler.Recurring

	// rotating admits one rotation at a time; later ones are skipped.
	rotating sync.Mutex

	mu        sync.Mutex
	state     State
	loading   bool
	havePerm  bool
	recording bool
	stopping  bool
	session   audio.Segment
	audioFile string
	notifyID  int
	segments  int
	startedAt time.Time
	lastErr   error
	cooldown  scheduler.Timer
	gen       int // bumped on every Start so stale rotation ticks are ignored
	closed    bool
}

func New(cfg Config, d Deps) *Monitor {
	def := DefaultConfig()
	if cfg.SegmentInterval <= 0 {
		cfg.SegmentInterval = def.SegmentInterval
	}
	if cfg.StopCooldown < 0 {
		cfg.StopCooldown = 0
	}
	if cfg.NotificationTitle == "" {
		cfg.NotificationTitle = def.NotificationTitle
	}
	if cfg.NotificationMessage == "" {
		cfg.NotificationMessage = def.NotificationMessage
	}
	clock := d.Clock
	if clock == nil {
		clock = scheduler.Real
	}
	sink := d.Sink
	if sink == nil {
		sink = nopSink{}
	}
	return &Monitor{
		cfg:      cfg,
		rec:      d.Recorder,
		notifier: d.Notifier,
		perms:    d.Permissions,
		clock:    clock,
		sink:     sink,
		rotation: scheduler.NewRecurring(clock),
	}
}

// events collects sink calls made while holding the lock so they can be
// delivered after it is released.
type events struct {
	saved []savedSegment
	errs  []error
	snap  *Snapshot
}

type savedSegment struct {
	index int
	path  string
}

func (m *Monitor) emit(ev events) {
	for _, s := range ev.saved {
		m.sink.SegmentSaved(s.index, s.path)
	}
	for _, err := range ev.errs {
		m.sink.Error(err)
	}
	if ev.snap != nil {
		m.sink.StateChanged(*ev.snap)
	}
}

func (m *Monitor) failLocked(ev *events, err error) {
	m.lastErr = err
	log.Errorf("monitor: %v", err)
	ev.errs = append(ev.errs, err)
}

func (m *Monitor) snapLocked(ev *events) {
	s := m.snapshotLocked()
	ev.snap = &s
}

// Bootstrap asks for microphone permission once. A failed request counts
// as denied.
func (m *Monitor) Bootstrap(ctx context.Context) permission.Status {
	var ev events
	m.mu.Lock()
	m.loading = true
	m.snapLocked(&ev)
	m.mu.Unlock()
	m.emit(ev)

	status := permission.Denied
	var err error
	if m.perms != nil {
		status, err = m.perms.Request(ctx, permission.Microphone)
	}
	log.Permission(string(permission.Microphone), status.String())

	ev = events{}
	m.mu.Lock()
	m.havePerm = err == nil && status == permission.Granted
	m.loading = false
	if err != nil {
		m.failLocked(&ev, fmt.Errorf("permission request: %w", err))
	}
	m.snapLocked(&ev)
	m.mu.Unlock()
	m.emit(ev)

	if err != nil {
		return permission.Denied
	}
	return status
}

// openSession opens and starts a capture session. It does file and device
// I/O and needs no lock: the recorder is fixed at construction.
func (m *Monitor) openSession() (audio.Segment, error) {
	seg, err := m.rec.Open()
	if err != nil {
		return nil, err
	}
	if err := seg.Start(); err != nil {
		discard(seg)
		return nil, err
	}
	return seg, nil
}

// discard stops a session nobody wants and removes its file.
func discard(seg audio.Segment) {
	if path, _ := seg.Stop(); path != "" {
		os.Remove(path)
	}
}

// finalizeLocked stops the open session, if any, and records its file.
func (m *Monitor) finalizeLocked(ev *events) {
	if m.session == nil {
		return
	}
	seg := m.session
	m.session = nil
	path, err := seg.Stop()
	if err != nil {
		m.failLocked(ev, fmt.Errorf("finalizing segment %s: %w", seg.ID(), err))
		return
	}
	m.savedLocked(ev, path)
}

func (m *Monitor) savedLocked(ev *events, path string) {
	m.audioFile = path
	m.segments++
	log.SegmentSaved(m.segments, path)
	ev.saved = append(ev.saved, savedSegment{m.segments, path})
}

// Start opens the first capture session, schedules rotation and posts the
// persistent notification.
func (m *Monitor) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var ev events
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != Idle {
		m.mu.Unlock()
		return ErrNotIdle
	}

	m.recording = true
	m.audioFile = ""
	seg, err := m.openSession()
	if err != nil {
		m.recording = false
		err = fmt.Errorf("starting monitoring: %w", err)
		m.failLocked(&ev, err)
		m.snapLocked(&ev)
		m.mu.Unlock()
		m.emit(ev)
		return err
	}
	m.session = seg
	m.segments = 0
	m.lastErr = nil
	m.startedAt = m.clock.Now()

	m.gen++
	gen := m.gen
	m.rotation.Schedule(m.cfg.SegmentInterval, func() { m.rotate(gen) })

	m.notifyID++
	if err := m.notifier.Post(notify.Notification{
		ID:         m.notifyID,
		Title:      m.cfg.NotificationTitle,
		Message:    m.cfg.NotificationMessage,
		Persistent: true,
	}); err != nil {
		m.failLocked(&ev, fmt.Errorf("posting notification: %w", err))
	}

	m.state = Monitoring
	log.MonitoringStart(m.notifyID, m.cfg.SegmentInterval)
	m.snapLocked(&ev)
	m.mu.Unlock()
	m.emit(ev)
	return nil
}

// Rotate finalizes the current segment and opens the next one. It is a
// no-op unless monitoring. A rotation failure never stops monitoring: if the
// next session cannot be opened, Recording drops to false and the following
// rotation tries again.
func (m *Monitor) Rotate() error {
	return m.rotate(-1)
}

// rotate runs one rotation for the session generation gen, or for the
// current one when gen is negative. The session is swapped out under the
// lock but finalized and reopened without it, so Snapshot and Back stay
// responsive; the result is committed only if the same session is still
// monitoring.
func (m *Monitor) rotate(gen int) error {
	if !m.rotating.TryLock() {
		log.RotationSkipped()
		return ErrRotationInFlight
	}
	defer m.rotating.Unlock()

	m.mu.Lock()
	if m.state != Monitoring || (gen >= 0 && gen != m.gen) {
		m.mu.Unlock()
		return nil
	}
	cur := m.gen
	prev := m.session
	m.session = nil
	m.mu.Unlock()

	var (
		errs []error
		path string
	)
	if prev != nil {
		p, err := prev.Stop()
		if err != nil {
			errs = append(errs, fmt.Errorf("finalizing segment %s: %w", prev.ID(), err))
		} else {
			path = p
		}
	}
	next, openErr := m.openSession()

	var (
		ev     events
		unused audio.Segment
	)
	m.mu.Lock()
	for _, err := range errs {
		m.failLocked(&ev, err)
	}
	if path != "" {
		m.savedLocked(&ev, path)
	}
	switch {
	case m.state != Monitoring || m.gen != cur || m.closed:
		// stopped or closed while unlocked
		unused = next
	case openErr != nil:
		m.recording = false
		err := fmt.Errorf("opening next segment: %w", openErr)
		m.failLocked(&ev, err)
		errs = append(errs, err)
	default:
		m.session = next
		m.recording = true
	}
	m.snapLocked(&ev)
	m.mu.Unlock()

	if unused != nil {
		discard(unused)
	}
	m.emit(ev)
	return errors.Join(errs...)
}

// Stop finalizes the open session, clears the notification and cancels
// rotation. MonitoringStatus stays true for the stop cooldown.
func (m *Monitor) Stop() error {
	var ev events
	m.mu.Lock()
	if m.state != Monitoring {
		m.mu.Unlock()
		return ErrNotMonitoring
	}

	m.finalizeLocked(&ev)
	errs := append([]error(nil), ev.errs...)
	m.recording = false

	if err := m.notifier.CancelAll(); err != nil {
		err = fmt.Errorf("cancelling notifications: %w", err)
		m.failLocked(&ev, err)
		errs = append(errs, err)
	}
	m.rotation.Cancel()

	m.state = StoppingPending
	m.stopping = true
	m.cooldown = m.clock.AfterFunc(m.cfg.StopCooldown, m.finishStop)
	log.MonitoringStop(m.segments)
	m.snapLocked(&ev)
	m.mu.Unlock()
	m.emit(ev)
	return errors.Join(errs...)
}

func (m *Monitor) finishStop() {
	var ev events
	m.mu.Lock()
	if m.state != StoppingPending {
		m.mu.Unlock()
		return
	}
	m.state = Idle
	m.stopping = false
	m.cooldown = nil
	m.snapLocked(&ev)
	m.mu.Unlock()
	m.emit(ev)
}

// Back reports whether a back-navigation may proceed. It is refused while
// a capture session is recording.
func (m *Monitor) Back() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.recording
}

// Close tears the monitor down: rotation and cooldown are cancelled, an open
// session is finalized and notifications are cleared. Safe to call twice.
func (m *Monitor) Close() error {
	var ev events
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	wasActive := m.state != Idle

	m.rotation.Cancel()
	if m.cooldown != nil {
		m.cooldown.Stop()
		m.cooldown = nil
	}
	m.finalizeLocked(&ev)
	errs := append([]error(nil), ev.errs...)
	m.recording = false

	if err := m.notifier.CancelAll(); err != nil {
		err = fmt.Errorf("cancelling notifications: %w", err)
		m.failLocked(&ev, err)
		errs = append(errs, err)
	}
	if m.state == Monitoring {
		log.MonitoringStop(m.segments)
	}
	m.state = Idle
	m.stopping = false
	if wasActive {
		m.snapLocked(&ev)
	}
	m.mu.Unlock()
	m.emit(ev)
	return errors.Join(errs...)
}

func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() Snapshot {
	return Snapshot{
		State:                    m.state,
		Loading:                  m.loading,
		HaveRecordingPermissions: m.havePerm,
		MonitoringStatus:         m.state != Idle,
		MonitoringStop:           m.stopping,
		Recording:                m.recording,
		AudioFile:                m.audioFile,
		NotifyID:                 m.notifyID,
		Segments:                 m.segments,
		StartedAt:                m.startedAt,
		LastError:                m.lastErr,
	}
}
