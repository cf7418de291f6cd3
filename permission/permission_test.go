package permission

import (
	"context"
	"errors"
	"testing"
	"time"

	"curie/audio"
)

func TestAudioProbeGranted(t *testing.T) {
	fc := audio.NewFakeContext(audio.Tone(440, 0.3, time.Second), true)
	p := AudioProbe{Ctx: fc, Timeout: 2 * time.Second}

	st, err := p.Request(context.Background(), Microphone)
	if err != nil {
		t.Fatal(err)
	}
	if st != Granted {
		t.Fatalf("status = %v, want granted", st)
	}
	caps := fc.Captures()
	if len(caps) != 1 || !caps[0].Closed() {
		t.Error("probe capture not closed")
	}
}

func TestAudioProbeNoAudio(t *testing.T) {
	fc := audio.NewFakeContext(nil, false)
	p := AudioProbe{Ctx: fc, Timeout: 20 * time.Millisecond}

	st, err := p.Request(context.Background(), Microphone)
	if err != nil {
		t.Fatal(err)
	}
	if st != Denied {
		t.Fatalf("status = %v, want denied", st)
	}
}

func TestAudioProbeOpenError(t *testing.T) {
	fc := audio.NewFakeContext(nil, false)
	boom := errors.New("no such device")
	fc.FailNext(boom)

	st, err := AudioProbe{Ctx: fc}.Request(context.Background(), Microphone)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if st != Denied {
		t.Errorf("status = %v, want denied", st)
	}
}

func TestAudioProbeCancelled(t *testing.T) {
	fc := audio.NewFakeContext(nil, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := AudioProbe{Ctx: fc, Timeout: time.Minute}.Request(ctx, Microphone)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if st != Undetermined {
		t.Errorf("status = %v, want undetermined", st)
	}
}

func TestUnsupportedKind(t *testing.T) {
	_, err := Static(Granted).Request(context.Background(), "camera")
	if err != nil {
		t.Fatalf("Static should not reject kinds: %v", err)
	}
	_, err = AudioProbe{}.Request(context.Background(), "camera")
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("err = %v, want ErrUnsupportedKind", err)
	}
}

func TestStatusString(t *testing.T) {
	for st, want := range map[Status]string{Undetermined: "undetermined", Granted: "granted", Denied: "denied"} {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), want)
		}
	}
}
