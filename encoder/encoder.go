package encoder

import (
	"fmt"
	"os"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
)

// Writer streams 16-bit PCM samples into a segment file.
type Writer interface {
	Write(samples []int16) error
	Close() error
	TotalFrames() uint64
}

// Ext returns the file extension (without dot) for a segment format.
func Ext(format string) string {
	switch format {
	case FormatFLAC:
		return "flac"
	default:
		return "wav"
	}
}

// ValidFormat reports whether format is a supported segment format.
func ValidFormat(format string) bool {
	return format == FormatWAV || format == FormatFLAC
}

// Create opens path and returns a writer for the given format.
func Create(path, format string, sampleRate, channels int) (Writer, error) {
	if !ValidFormat(format) {
		return nil, fmt.Errorf("unknown segment format %q", format)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating segment file: %w", err)
	}
	var w Writer
	switch format {
	case FormatFLAC:
		w, err = NewFlac(f, sampleRate, channels)
	default:
		w = NewWav(f, sampleRate, channels)
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}
