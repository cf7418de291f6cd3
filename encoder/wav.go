package encoder

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavEncoder writes PCM16 samples into a RIFF/WAVE file. The header sizes are
// patched on Close.
type WavEncoder struct {
	f           *os.File
	enc         *wav.Encoder
	format      *audio.Format
	totalFrames uint64
	mu          sync.Mutex
}

func NewWav(f *os.File, sampleRate, channels int) *WavEncoder {
	return &WavEncoder{
		f:      f,
		enc:    wav.NewEncoder(f, sampleRate, BitsPerSample, channels, 1),
		format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
	}
}

func (e *WavEncoder) Write(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	buf := &audio.IntBuffer{
		Format:         e.format,
		Data:           make([]int, len(samples)),
		SourceBitDepth: BitsPerSample,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	e.totalFrames += uint64(len(samples) / e.format.NumChannels)
	return nil
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.totalFrames == 0 {
		// header is only emitted on the first write
		empty := &audio.IntBuffer{Format: e.format, SourceBitDepth: BitsPerSample}
		if err := e.enc.Write(empty); err != nil {
			e.f.Close()
			return fmt.Errorf("writing wav header: %w", err)
		}
	}
	if err := e.enc.Close(); err != nil {
		e.f.Close()
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return e.f.Close()
}

func (e *WavEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}
