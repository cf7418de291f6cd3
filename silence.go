package main

import "time"

const (
	levelInterval    = 100 * time.Millisecond
	silenceWarnEvery = 8 * time.Second
	silenceLevel     = 0.01 // RMS below this counts as a silent tick
	audioMinRatio    = 0.10
	audioClearRatio  = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no audio detected, microphone likely muted
	SilenceWarnClear              // audio resumed after warning
	SilenceRepeat                 // still silent, repeat cue every 8s
)

// silenceMonitor watches input levels sampled every levelInterval while
// monitoring and reports when the microphone has gone quiet.
type silenceMonitor struct {
	windowSz int

	ticks    int
	window   []bool
	warned   bool
	lastBeep int
}

func newSilenceMonitor() *silenceMonitor {
	windowSz := int(silenceWarnEvery / levelInterval)
	return &silenceMonitor{
		windowSz: windowSz,
		window:   make([]bool, windowSz),
	}
}

func (m *silenceMonitor) ratio() float64 {
	n := m.windowSz
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(level float64) SilenceEvent {
	m.window[m.ticks%m.windowSz] = level >= silenceLevel
	m.ticks++

	r := m.ratio()

	if m.ticks >= m.windowSz && r < audioMinRatio && !m.warned {
		m.warned = true
		m.lastBeep = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= audioClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	if m.warned && m.ticks-m.lastBeep >= m.windowSz {
		m.lastBeep = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}

// Reset forgets all history; called when monitoring starts or stops.
func (m *silenceMonitor) Reset() {
	m.ticks = 0
	m.warned = false
	m.lastBeep = 0
	for i := range m.window {
		m.window[i] = false
	}
}

func (m *silenceMonitor) Warned() bool { return m.warned }
