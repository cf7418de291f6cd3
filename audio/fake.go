package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"sync"
	"time"

	"curie/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext hands out captures that replay a fixed PCM buffer. In realtime
// mode the buffer is looped at the encoder sample rate; otherwise data only
// arrives through FakeCapture.Feed.
type FakeContext struct {
	pcm      []byte
	realtime bool

	mu       sync.Mutex
	devices  []DeviceInfo
	captures []*FakeCapture
	failNext error
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func NewFakeContextFromWAV(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return NewFakeContext(data, realtime), nil
}

// Tone generates PCM16 mono sine samples at the encoder sample rate.
func Tone(freq, amplitude float64, d time.Duration) []byte {
	n := int(d.Seconds() * encoder.SampleRate)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / encoder.SampleRate
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * amplitude)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func (f *FakeContext) SetDevices(devices []DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

// FailNext makes the next NewCapture call return err.
func (f *FakeContext) FailNext(err error) {
	f.mu.Lock()
	f.failNext = err
	f.mu.Unlock()
}

func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceInfo(nil), f.devices...), nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}
	name := "fake"
	if device != nil {
		name = device.Name
	}
	c := &FakeCapture{pcm: f.pcm, realtime: f.realtime, name: name}
	f.captures = append(f.captures, c)
	return c, nil
}

var errFakeClosed = errors.New("fake capture closed")

type FakeCapture struct {
	pcm      []byte
	realtime bool
	name     string

	mu       sync.Mutex
	cb       DataCallback
	started  bool
	closed   bool
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return f.name }

func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Feed delivers data to the callback if the capture is running.
func (f *FakeCapture) Feed(data []byte) {
	f.mu.Lock()
	cb := f.cb
	running := f.started
	f.mu.Unlock()
	if running && cb != nil {
		chunk := make([]byte, len(data))
		copy(chunk, data)
		cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	}
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errFakeClosed
	}
	if f.started {
		return nil
	}
	f.started = true
	if !f.realtime || len(f.pcm) == 0 {
		return nil
	}

	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stop, done := f.stopCh, f.feedDone
	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		pos := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			end := min(pos+chunkBytes, len(f.pcm))
			f.Feed(f.pcm[pos:end])
			pos = end
			if pos >= len(f.pcm) {
				pos = 0
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stop, done := f.stopCh, f.feedDone
	f.stopCh, f.feedDone = nil, nil
	f.started = false
	f.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
