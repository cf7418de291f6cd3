package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"curie/encoder"
)

// Segment is one open capture session writing a single audio file.
type Segment interface {
	ID() string
	Start() error
	// Stop finalizes the file and returns its path.
	Stop() (string, error)
}

// Recorder opens capture sessions.
type Recorder interface {
	Open() (Segment, error)
}

type RecorderConfig struct {
	Dir        string
	Format     string // encoder.FormatWAV or encoder.FormatFLAC
	SampleRate uint32
	Channels   uint32
}

var ErrSegmentStopped = errors.New("segment already stopped")

// CaptureRecorder opens a fresh CaptureDevice per segment and streams its
// PCM into an encoder file under Dir.
type CaptureRecorder struct {
	ctx    Context
	device *DeviceInfo
	cfg    RecorderConfig
	now    func() time.Time

	level atomic.Uint64 // float64 bits of the latest RMS level
}

func NewRecorder(ctx Context, device *DeviceInfo, cfg RecorderConfig) *CaptureRecorder {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = encoder.SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = encoder.Channels
	}
	if cfg.Format == "" {
		cfg.Format = encoder.FormatWAV
	}
	return &CaptureRecorder{ctx: ctx, device: device, cfg: cfg, now: time.Now}
}

// Level returns the most recent input RMS level (0..1).
func (r *CaptureRecorder) Level() float64 {
	return math.Float64frombits(r.level.Load())
}

func (r *CaptureRecorder) DeviceName() string {
	if r.device != nil {
		return r.device.Name
	}
	return "system default"
}

func (r *CaptureRecorder) Open() (Segment, error) {
	if err := os.MkdirAll(r.cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating segment directory: %w", err)
	}

	capture, err := r.ctx.NewCapture(r.device, CaptureConfig{
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("opening capture: %w", err)
	}

	id := uuid.NewString()
	name := fmt.Sprintf("%s%s-%s.%s", SegmentPrefix, r.now().Format("20060102-150405"), id[:8], encoder.Ext(r.cfg.Format))
	path := filepath.Join(r.cfg.Dir, name)

	w, err := encoder.Create(path, r.cfg.Format, int(r.cfg.SampleRate), int(r.cfg.Channels))
	if err != nil {
		capture.Close()
		return nil, err
	}

	return &captureSegment{
		id:      id,
		path:    path,
		capture: capture,
		writer:  w,
		rec:     r,
	}, nil
}

type captureSegment struct {
	id      string
	path    string
	capture CaptureDevice
	writer  encoder.Writer
	rec     *CaptureRecorder

	mu       sync.Mutex
	stopped  bool
	writeErr error
}

func (s *captureSegment) ID() string { return s.id }

func (s *captureSegment) Start() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSegmentStopped
	}
	s.mu.Unlock()

	s.capture.SetCallback(func(data []byte, _ uint32) {
		if len(data) < 2 {
			return
		}
		s.rec.level.Store(math.Float64bits(RMS(data)))

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped || s.writeErr != nil {
			return
		}
		s.writeErr = s.writer.Write(Samples(data))
	})

	if err := s.capture.Start(); err != nil {
		s.capture.ClearCallback()
		return fmt.Errorf("starting capture: %w", err)
	}
	return nil
}

func (s *captureSegment) Stop() (string, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return s.path, ErrSegmentStopped
	}
	s.stopped = true
	s.mu.Unlock()

	s.capture.Stop()
	s.capture.ClearCallback()
	s.capture.Close()
	s.rec.level.Store(0)

	closeErr := s.writer.Close()

	s.mu.Lock()
	writeErr := s.writeErr
	s.mu.Unlock()

	if writeErr != nil {
		return s.path, fmt.Errorf("writing segment: %w", writeErr)
	}
	if closeErr != nil {
		return s.path, closeErr
	}
	return s.path, nil
}
