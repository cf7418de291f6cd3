package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"curie/audio"
	"curie/notify"
	"curie/permission"
	"curie/scheduler"
)

type fakeSegment struct {
	id      string
	rec     *fakeRecorder
	started bool
	stopped bool
	block   chan struct{} // Stop waits on it when non-nil
}

func (s *fakeSegment) ID() string { return s.id }

func (s *fakeSegment) Start() error {
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	if s.rec.startErr != nil {
		return s.rec.startErr
	}
	s.started = true
	return nil
}

func (s *fakeSegment) Stop() (string, error) {
	s.rec.mu.Lock()
	block := s.block
	s.rec.mu.Unlock()
	if block != nil {
		s.rec.stopEntered <- struct{}{}
		<-block
	}
	s.rec.mu.Lock()
	defer s.rec.mu.Unlock()
	s.stopped = true
	s.rec.finalized++
	return "/segments/" + s.id + ".wav", s.rec.stopErr
}

type fakeRecorder struct {
	mu          sync.Mutex
	segs        []*fakeSegment
	finalized   int
	openErr     error
	startErr    error
	stopErr     error
	block       chan struct{}
	stopEntered chan struct{}
}

func (r *fakeRecorder) Open() (audio.Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openErr != nil {
		return nil, r.openErr
	}
	s := &fakeSegment{id: fmt.Sprintf("seg%d", len(r.segs)+1), rec: r, block: r.block}
	r.segs = append(r.segs, s)
	return s, nil
}

func (r *fakeRecorder) opened() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segs)
}

func (r *fakeRecorder) finalizedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalized
}

func (r *fakeRecorder) setOpenErr(err error) {
	r.mu.Lock()
	r.openErr = err
	r.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	states []Snapshot
	saved  []string
	errs   []error
}

func (s *recordingSink) StateChanged(snap Snapshot) {
	s.mu.Lock()
	s.states = append(s.states, snap)
	s.mu.Unlock()
}

func (s *recordingSink) SegmentSaved(_ int, path string) {
	s.mu.Lock()
	s.saved = append(s.saved, path)
	s.mu.Unlock()
}

func (s *recordingSink) Error(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *recordingSink) errCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

type harness struct {
	m     *Monitor
	rec   *fakeRecorder
	notes *notify.Fake
	clock *scheduler.FakeClock
	sink  *recordingSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		rec:   &fakeRecorder{},
		notes: notify.NewFake(),
		clock: scheduler.NewFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)),
		sink:  &recordingSink{},
	}
	h.m = New(DefaultConfig(), Deps{
		Recorder:    h.rec,
		Notifier:    h.notes,
		Permissions: permission.Static(permission.Granted),
		Clock:       h.clock,
		Sink:        h.sink,
	})
	t.Cleanup(func() { h.m.Close() })
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

// tick advances one segment interval and waits for the rotation it triggers.
func (h *harness) tick(t *testing.T) {
	t.Helper()
	want := h.rec.opened() + 1
	h.clock.Advance(30 * time.Second)
	waitFor(t, fmt.Sprintf("%d sessions", want), func() bool { return h.rec.opened() >= want })
}

func TestBootstrapPermission(t *testing.T) {
	h := newHarness(t)
	if st := h.m.Bootstrap(context.Background()); st != permission.Granted {
		t.Fatalf("Bootstrap = %v, want granted", st)
	}
	snap := h.m.Snapshot()
	if snap.Loading || !snap.HaveRecordingPermissions {
		t.Errorf("after bootstrap: loading=%v perms=%v", snap.Loading, snap.HaveRecordingPermissions)
	}
	if len(h.sink.states) < 2 || !h.sink.states[0].Loading {
		t.Error("expected a loading snapshot before the result")
	}
}

type failingRequester struct{}

func (failingRequester) Request(context.Context, permission.Kind) (permission.Status, error) {
	return permission.Granted, errors.New("portal crashed")
}

func TestBootstrapErrorCountsAsDenied(t *testing.T) {
	m := New(DefaultConfig(), Deps{
		Recorder:    &fakeRecorder{},
		Notifier:    notify.NewFake(),
		Permissions: failingRequester{},
		Clock:       scheduler.NewFakeClock(time.Unix(0, 0)),
	})
	defer m.Close()
	if st := m.Bootstrap(context.Background()); st != permission.Denied {
		t.Fatalf("Bootstrap = %v, want denied", st)
	}
	snap := m.Snapshot()
	if snap.HaveRecordingPermissions || snap.LastError == nil {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStartMonitoring(t *testing.T) {
	h := newHarness(t)
	h.m.Bootstrap(context.Background())

	if h.m.Snapshot().MonitoringStatus {
		t.Fatal("monitoring before Start")
	}
	h.start(t)

	snap := h.m.Snapshot()
	if !snap.MonitoringStatus || snap.State != Monitoring || !snap.Recording {
		t.Errorf("after Start: %+v", snap)
	}
	if h.rec.opened() != 1 || !h.rec.segs[0].started {
		t.Errorf("opened %d sessions, want exactly one started", h.rec.opened())
	}
	posts := h.notes.Posts()
	if len(posts) != 1 || posts[0].ID != 1 || !posts[0].Persistent {
		t.Fatalf("posts = %+v, want one persistent notification with id 1", posts)
	}
	if posts[0].Message != "Curie Symptom monitoring undergoing" {
		t.Errorf("message = %q", posts[0].Message)
	}
	if snap.NotifyID != 1 {
		t.Errorf("NotifyID = %d, want 1", snap.NotifyID)
	}
}

func TestStartTwice(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	if err := h.m.Start(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("second Start err = %v, want ErrNotIdle", err)
	}
	if h.rec.opened() != 1 {
		t.Errorf("second Start opened a session")
	}
}

func TestStartOpenFailure(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("device busy")
	h.rec.setOpenErr(boom)

	if err := h.m.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Start err = %v, want %v", err, boom)
	}
	snap := h.m.Snapshot()
	if snap.State != Idle || snap.Recording || snap.MonitoringStatus {
		t.Errorf("failed Start left %+v", snap)
	}
	if len(h.notes.Posts()) != 0 {
		t.Error("notification posted for a failed start")
	}
	if h.clock.Tickers() != 0 {
		t.Error("rotation scheduled for a failed start")
	}
}

func TestRotationEveryInterval(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.clock.Advance(29 * time.Second)
	time.Sleep(5 * time.Millisecond)
	if h.rec.opened() != 1 {
		t.Fatal("rotated before the interval elapsed")
	}
	h.clock.Advance(time.Second)
	waitFor(t, "first rotation", func() bool { return h.rec.opened() == 2 })

	const n = 4
	for i := 1; i < n; i++ {
		h.tick(t)
	}
	if got := h.rec.opened(); got != n+1 {
		t.Errorf("sessions after %d rotations = %d, want %d", n, got, n+1)
	}
	if got := h.rec.finalizedCount(); got != n {
		t.Errorf("finalized %d segments, want %d", got, n)
	}
}

func TestRotationScenario(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	first := h.rec.segs[0]

	h.tick(t)
	waitFor(t, "snapshot update", func() bool { return h.m.Snapshot().Segments == 1 })

	if !first.stopped {
		t.Error("prior session not finalized")
	}
	snap := h.m.Snapshot()
	if snap.AudioFile != "/segments/seg1.wav" {
		t.Errorf("AudioFile = %q", snap.AudioFile)
	}
	if !snap.Recording || snap.State != Monitoring {
		t.Errorf("after rotation: %+v", snap)
	}
	if len(h.notes.Posts()) != 1 || h.notes.Cancels() != 0 {
		t.Error("rotation touched the notification")
	}
}

func TestRotateWhenIdle(t *testing.T) {
	h := newHarness(t)
	if err := h.m.Rotate(); err != nil {
		t.Fatal(err)
	}
	if h.rec.opened() != 0 {
		t.Error("idle rotation opened a session")
	}
}

func TestRotationInFlightGuard(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.rec.mu.Lock()
	release := make(chan struct{})
	h.rec.segs[0].block = release
	h.rec.stopEntered = make(chan struct{}, 1)
	h.rec.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- h.m.Rotate() }()
	<-h.rec.stopEntered

	if err := h.m.Rotate(); !errors.Is(err, ErrRotationInFlight) {
		t.Fatalf("overlapping Rotate err = %v, want ErrRotationInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Rotate: %v", err)
	}
	if got := h.rec.opened(); got != 2 {
		t.Errorf("sessions = %d, want 2", got)
	}
}

func TestRotationFailureKeepsMonitoring(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	boom := errors.New("device unplugged")
	h.rec.setOpenErr(boom)
	if err := h.m.Rotate(); !errors.Is(err, boom) {
		t.Fatalf("Rotate err = %v, want %v", err, boom)
	}
	snap := h.m.Snapshot()
	if snap.State != Monitoring || snap.Recording {
		t.Errorf("after failed reopen: state=%v recording=%v", snap.State, snap.Recording)
	}
	if !errors.Is(snap.LastError, boom) || h.sink.errCount() != 1 {
		t.Error("failure not reported")
	}
	if snap.Segments != 1 {
		t.Errorf("finalized segment lost: Segments=%d", snap.Segments)
	}

	h.rec.setOpenErr(nil)
	if err := h.m.Rotate(); err != nil {
		t.Fatalf("retry Rotate: %v", err)
	}
	if snap := h.m.Snapshot(); !snap.Recording {
		t.Error("retry did not resume recording")
	}
	if h.rec.opened() != 2 {
		t.Errorf("sessions = %d, want 2", h.rec.opened())
	}
}

func TestRotationFinalizeErrorStillReopens(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	boom := errors.New("disk full")
	h.rec.mu.Lock()
	h.rec.stopErr = boom
	h.rec.mu.Unlock()

	if err := h.m.Rotate(); !errors.Is(err, boom) {
		t.Fatalf("Rotate err = %v, want %v", err, boom)
	}
	if h.rec.opened() != 2 || !h.m.Snapshot().Recording {
		t.Error("reopen not attempted after finalize error")
	}
}

func TestStartNotificationFailure(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("no notification daemon")
	h.notes.FailPosts(boom)

	if err := h.m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := h.m.Snapshot()
	if snap.State != Monitoring || !snap.Recording || !snap.MonitoringStatus {
		t.Errorf("notification failure aborted Start: %+v", snap)
	}
	if !errors.Is(snap.LastError, boom) {
		t.Errorf("LastError = %v, want %v", snap.LastError, boom)
	}
	if h.sink.errCount() != 1 {
		t.Errorf("sink got %d errors, want 1", h.sink.errCount())
	}
	if snap.NotifyID != 1 {
		t.Errorf("NotifyID = %d, want 1", snap.NotifyID)
	}
}

// blockFirstStop makes the first session's Stop wait until the returned
// func is called.
func (h *harness) blockFirstStop(t *testing.T) (release func()) {
	t.Helper()
	ch := make(chan struct{})
	h.rec.mu.Lock()
	h.rec.segs[0].block = ch
	h.rec.stopEntered = make(chan struct{}, 1)
	h.rec.mu.Unlock()
	return func() { close(ch) }
}

func TestRotationDoesNotBlockReaders(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	release := h.blockFirstStop(t)

	done := make(chan error, 1)
	go func() { done <- h.m.Rotate() }()
	<-h.rec.stopEntered

	read := make(chan bool, 1)
	go func() {
		h.m.Snapshot()
		read <- h.m.Back()
	}()
	select {
	case back := <-read:
		if back {
			t.Error("Back propagated during a rotation")
		}
	case <-time.After(time.Second):
		t.Fatal("Snapshot/Back blocked behind a rotation")
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if snap := h.m.Snapshot(); snap.Segments != 1 || !snap.Recording {
		t.Errorf("after rotation: %+v", snap)
	}
}

func TestStopDuringRotation(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	release := h.blockFirstStop(t)

	done := make(chan error, 1)
	go func() { done <- h.m.Rotate() }()
	<-h.rec.stopEntered

	if err := h.m.Stop(); err != nil {
		t.Fatalf("Stop during rotation: %v", err)
	}
	release()
	if err := <-done; err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	snap := h.m.Snapshot()
	if snap.State != StoppingPending || snap.Recording {
		t.Errorf("rotation resumed a stopped monitor: %+v", snap)
	}
	if snap.Segments != 1 || snap.AudioFile != "/segments/seg1.wav" {
		t.Errorf("segment finalized by the rotation lost: %+v", snap)
	}
	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	if len(h.rec.segs) != 2 || !h.rec.segs[1].stopped {
		t.Error("session opened after Stop was not discarded")
	}
}

func TestStopMonitoring(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	done := h.m.rotation.Done()

	if err := h.m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	snap := h.m.Snapshot()
	if !snap.MonitoringStop || !snap.MonitoringStatus || snap.State != StoppingPending {
		t.Errorf("immediately after Stop: %+v", snap)
	}
	if snap.Recording || !h.rec.segs[0].stopped {
		t.Error("session not finalized")
	}
	if h.notes.Cancels() != 1 || len(h.notes.Active()) != 0 {
		t.Error("notifications not cancelled")
	}
	if snap.AudioFile != "/segments/seg1.wav" {
		t.Errorf("AudioFile = %q", snap.AudioFile)
	}

	h.clock.Advance(1999 * time.Millisecond)
	if snap := h.m.Snapshot(); !snap.MonitoringStatus {
		t.Fatal("MonitoringStatus false before the cooldown elapsed")
	}
	h.clock.Advance(time.Millisecond)
	snap = h.m.Snapshot()
	if snap.MonitoringStatus || snap.MonitoringStop || snap.State != Idle {
		t.Errorf("after cooldown: %+v", snap)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rotation loop still running after Stop")
	}
	h.clock.Advance(2 * time.Minute)
	time.Sleep(5 * time.Millisecond)
	if h.rec.opened() != 1 {
		t.Errorf("rotation ran after Stop: %d sessions", h.rec.opened())
	}
}

func TestStopWhenIdle(t *testing.T) {
	h := newHarness(t)
	if err := h.m.Stop(); !errors.Is(err, ErrNotMonitoring) {
		t.Fatalf("Stop err = %v, want ErrNotMonitoring", err)
	}
}

func TestStartDuringCooldown(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.m.Stop()
	if err := h.m.Start(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("Start during cooldown err = %v, want ErrNotIdle", err)
	}
	h.clock.Advance(2 * time.Second)
	h.start(t)
	posts := h.notes.Posts()
	if len(posts) != 2 || posts[1].ID != 2 {
		t.Errorf("second session notification = %+v, want id 2", posts)
	}
}

func TestBackSwallowedWhileRecording(t *testing.T) {
	h := newHarness(t)
	if !h.m.Back() {
		t.Error("Back refused while idle")
	}
	h.start(t)
	if h.m.Back() {
		t.Error("Back allowed while recording")
	}
	h.m.Stop()
	if !h.m.Back() {
		t.Error("Back refused after Stop")
	}
}

func TestCloseTearsDown(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	if err := h.m.Close(); err != nil {
		t.Fatal(err)
	}
	if !h.rec.segs[0].stopped {
		t.Error("Close left the session open")
	}
	if h.notes.Cancels() != 1 {
		t.Error("Close did not cancel notifications")
	}
	if h.m.rotation.Active() {
		t.Error("Close left rotation scheduled")
	}
	if err := h.m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := h.m.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close err = %v, want ErrClosed", err)
	}
}

func TestCloseDuringCooldown(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.m.Stop()
	h.m.Close()
	if h.clock.Timers() != 0 {
		t.Error("cooldown timer survived Close")
	}
	if snap := h.m.Snapshot(); snap.State != Idle || snap.MonitoringStatus {
		t.Errorf("after Close: %+v", snap)
	}
}

func TestSinkReceivesSegments(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.m.Rotate()
	h.m.Stop()

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	want := []string{"/segments/seg1.wav", "/segments/seg2.wav"}
	if len(h.sink.saved) != len(want) {
		t.Fatalf("saved = %v, want %v", h.sink.saved, want)
	}
	for i := range want {
		if h.sink.saved[i] != want[i] {
			t.Errorf("saved[%d] = %s, want %s", i, h.sink.saved[i], want[i])
		}
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Monitoring.String() != "monitoring" || StoppingPending.String() != "stopping" {
		t.Error("unexpected State strings")
	}
}
