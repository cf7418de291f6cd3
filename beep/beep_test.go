package beep

import "testing"

func TestTickDecays(t *testing.T) {
	s := tick(1000, 0.1, 0.5, 40, 1)
	if len(s) != sampleRate/10 {
		t.Fatalf("len = %d, want %d", len(s), sampleRate/10)
	}
	peak := func(xs []int16) int16 {
		var m int16
		for _, x := range xs {
			if x < 0 {
				x = -x
			}
			if x > m {
				m = x
			}
		}
		return m
	}
	head, tailPeak := peak(s[:len(s)/4]), peak(s[3*len(s)/4:])
	if head <= tailPeak {
		t.Errorf("no decay: head peak %d, tail peak %d", head, tailPeak)
	}
}

func TestTickInterleaves(t *testing.T) {
	s := tick(440, 0.01, 0.5, 10, 2)
	for i := 0; i+1 < len(s); i += 2 {
		if s[i] != s[i+1] {
			t.Fatalf("channels differ at frame %d", i/2)
		}
	}
}

func TestDoubleBeepHasGap(t *testing.T) {
	b := tick(350, 0.08, 0.6, 30, 1)
	d := doubleBeep(350, 0.08, 0.05, 0.6, 30, 1)
	gap := int(sampleRate * 0.05)
	if len(d) != 2*len(b)+gap {
		t.Fatalf("len = %d, want %d", len(d), 2*len(b)+gap)
	}
	for _, x := range d[len(b) : len(b)+gap] {
		if x != 0 {
			t.Fatal("gap is not silent")
		}
	}
}

func TestCuesGenerated(t *testing.T) {
	for _, c := range []Cue{Start, Stop, Error} {
		if len(samples(c)) == 0 {
			t.Errorf("cue %d has no samples", c)
		}
	}
}
