package encoder

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FlacEncoder buffers samples into fixed BlockSize frames. The trailing
// partial block is flushed on Close.
type FlacEncoder struct {
	f           *os.File
	enc         *flac.Encoder
	sampleRate  int
	pending     []int16
	totalFrames uint64
	mu          sync.Mutex
}

func NewFlac(f *os.File, sampleRate, channels int) (*FlacEncoder, error) {
	if channels != 1 {
		return nil, fmt.Errorf("flac segments must be mono, got %d channels", channels)
	}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(channels),
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	return &FlacEncoder{
		f:          f,
		enc:        enc,
		sampleRate: sampleRate,
		pending:    make([]int16, 0, BlockSize),
	}, nil
}

func (e *FlacEncoder) Write(samples []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(samples) > 0 {
		n := min(BlockSize-len(e.pending), len(samples))
		e.pending = append(e.pending, samples[:n]...)
		samples = samples[n:]
		if len(e.pending) == BlockSize {
			if err := e.writeBlock(e.pending); err != nil {
				return err
			}
			e.pending = e.pending[:0]
		}
	}
	return nil
}

func (e *FlacEncoder) writeBlock(block []int16) error {
	samples32 := make([]int32, len(block))
	for i, s := range block {
		samples32[i] = int32(s)
	}

	subframe := &frame.Subframe{
		SubHeader: frame.SubHeader{
			Pred: frame.PredVerbatim,
		},
		Samples:  samples32,
		NSamples: len(block),
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    uint32(e.sampleRate),
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{subframe},
	}

	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *FlacEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) > 0 {
		if err := e.writeBlock(e.pending); err != nil {
			e.f.Close()
			return err
		}
		e.pending = e.pending[:0]
	}
	if err := e.enc.Close(); err != nil {
		e.f.Close()
		return fmt.Errorf("finalizing flac: %w", err)
	}
	// the flac encoder closes writers that implement io.Closer
	if err := e.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

func (e *FlacEncoder) TotalFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalFrames
}
