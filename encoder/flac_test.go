package encoder

import (
	"os"
	"path/filepath"
	"testing"
)

func tone(n int) []int16 {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16((i % 200) * 100)
	}
	return s
}

func TestFlacEncoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.flac")
	w, err := Create(path, FormatFLAC, SampleRate, Channels)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	samples := tone(BlockSize*2 + 123)
	// uneven chunks, like capture callbacks deliver them
	for i := 0; i < len(samples); i += 1000 {
		end := min(i+1000, len(samples))
		if err := w.Write(samples[i:end]); err != nil {
			t.Fatalf("Write at offset %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if w.TotalFrames() != uint64(len(samples)) {
		t.Errorf("TotalFrames = %d, want %d", w.TotalFrames(), len(samples))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.flac")
	w, err := Create(path, FormatFLAC, SampleRate, Channels)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if w.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", w.TotalFrames())
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacRejectsStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.flac")
	if _, err := Create(path, FormatFLAC, SampleRate, 2); err == nil {
		t.Fatal("expected error for stereo flac")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("failed create left a file behind: %v", err)
	}
}
