// Package permission answers whether the app may record from the microphone.
// Desktops have no permission dialog, so the answer comes from actually
// opening the input device and seeing audio arrive.
package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"curie/audio"
)

type Kind string

const Microphone Kind = "microphone"

type Status int

const (
	Undetermined Status = iota
	Granted
	Denied
)

func (s Status) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "undetermined"
	}
}

var ErrUnsupportedKind = errors.New("unsupported permission kind")

type Requester interface {
	Request(ctx context.Context, kind Kind) (Status, error)
}

// AudioProbe grants the microphone when a capture on Device delivers its
// first buffer within Timeout.
type AudioProbe struct {
	Ctx     audio.Context
	Device  *audio.DeviceInfo
	Timeout time.Duration
}

const defaultProbeTimeout = 3 * time.Second

func (p AudioProbe) Request(ctx context.Context, kind Kind) (Status, error) {
	if kind != Microphone {
		return Undetermined, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	capture, err := p.Ctx.NewCapture(p.Device, audio.CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		return Denied, fmt.Errorf("opening capture: %w", err)
	}
	defer capture.Close()

	got := make(chan struct{}, 1)
	capture.SetCallback(func(data []byte, _ uint32) {
		if len(data) == 0 {
			return
		}
		select {
		case got <- struct{}{}:
		default:
		}
	})
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		return Denied, fmt.Errorf("starting capture: %w", err)
	}
	defer func() {
		capture.Stop()
		capture.ClearCallback()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-got:
		return Granted, nil
	case <-timer.C:
		return Denied, nil
	case <-ctx.Done():
		return Undetermined, ctx.Err()
	}
}

// Static always answers with Status.
type Static Status

func (s Static) Request(context.Context, Kind) (Status, error) {
	return Status(s), nil
}
