// Package beep plays the short audible cues for monitoring start, stop and
// failures.
package beep

import (
	"math"
	"sync"
	"sync/atomic"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

type Cue int

const (
	Start Cue = iota
	Stop
	Error
)

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Stop beep: medium pitch, slightly longer
	stopFreq   = 900
	stopVolume = 0.5
	stopDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	cues     map[Cue][]int16
	cuesOnce sync.Once
)

// tail keeps the stream open long enough for the server buffer to fill.
const tail = 0.2

func initCues() {
	cues = map[Cue][]int16{
		Start: tick(startFreq, tail, startVolume, startDecay, channels),
		Stop:  tick(stopFreq, tail, stopVolume, stopDecay, channels),
		Error: doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay, channels),
	}
}

func samples(c Cue) []int16 {
	cuesOnce.Do(initCues)
	return cues[c]
}

// tick is a decaying sine, interleaved across ch channels.
func tick(freq, duration, volume, decay float64, ch int) []int16 {
	n := int(sampleRate * duration)
	out := make([]int16, n*ch)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		for c := 0; c < ch; c++ {
			out[i*ch+c] = s
		}
	}
	return out
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64, ch int) []int16 {
	b := tick(freq, beepDur, volume, decay, ch)
	gap := make([]int16, int(sampleRate*gapDur)*ch)
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	out = append(out, b...)
	return out
}

// Play starts the cue in the background and returns immediately.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	s := samples(c)
	if len(s) == 0 {
		return
	}
	go play(s)
}
