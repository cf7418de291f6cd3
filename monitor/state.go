package monitor

import "time"

type State int

const (
	Idle State = iota
	Monitoring
	// StoppingPending is the cooldown between a stop request and Idle.
	StoppingPending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Monitoring:
		return "monitoring"
	case StoppingPending:
		return "stopping"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the monitor's state.
type Snapshot struct {
	State State

	Loading                  bool
	HaveRecordingPermissions bool

	// MonitoringStatus is true from Start until the stop cooldown ends.
	MonitoringStatus bool
	// MonitoringStop is true only during the stop cooldown.
	MonitoringStop bool
	Recording      bool

	// AudioFile is the path of the most recently finalized segment.
	AudioFile string
	NotifyID  int
	Segments  int
	StartedAt time.Time
	LastError error
}

// Sink receives monitor events. Calls happen outside the monitor lock, on
// whichever goroutine caused the event.
type Sink interface {
	StateChanged(s Snapshot)
	SegmentSaved(index int, path string)
	Error(err error)
}

type nopSink struct{}

func (nopSink) StateChanged(Snapshot)    {}
func (nopSink) SegmentSaved(int, string) {}
func (nopSink) Error(error)              {}
