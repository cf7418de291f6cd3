package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog     zerolog.Logger
	diagFile    *os.File
	segmentFile *os.File
	logMu       sync.Mutex
	pid         int
	dir         string

	// ready gates every write; rotation and cooldown goroutines log
	// concurrently with Init and Close.
	ready atomic.Bool
)

const (
	diagName    = "diagnostics_log.txt"
	segmentName = "segments_log.txt"
	timeLayout  = "2006-01-02 15:04:05"
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: --logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: CURIE_LOG_PATH environment variable
	envPath := os.Getenv("CURIE_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens the diagnostics log and the segment ledger in Dir.
func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}
	pid = os.Getpid()

	var err error
	diagFile, err = openAppend(diagName)
	if err != nil {
		return err
	}
	segmentFile, err = openAppend(segmentName)
	if err != nil {
		diagFile.Close()
		diagFile = nil
		return err
	}

	diagLog = zerolog.New(zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: timeLayout,
		NoColor:    true,
	}).With().Timestamp().Int("pid", pid).Logger()
	ready.Store(true)
	return nil
}

func openAppend(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func Close() {
	ready.Store(false)
	logMu.Lock()
	defer logMu.Unlock()
	for _, f := range []**os.File{&diagFile, &segmentFile} {
		if *f != nil {
			(*f).Close()
			*f = nil
		}
	}
}

// event starts a diagnostics entry. Before Init it returns nil, which
// zerolog treats as a no-op.
func event(level zerolog.Level) *zerolog.Event {
	if !ready.Load() {
		return nil
	}
	return diagLog.WithLevel(level)
}

func Info(msg string)                   { event(zerolog.InfoLevel).Msg(msg) }
func Infof(format string, args ...any)  { event(zerolog.InfoLevel).Msgf(format, args...) }
func Warn(msg string)                   { event(zerolog.WarnLevel).Msg(msg) }
func Warnf(format string, args ...any)  { event(zerolog.WarnLevel).Msgf(format, args...) }
func Error(msg string)                  { event(zerolog.ErrorLevel).Msg(msg) }
func Errorf(format string, args ...any) { event(zerolog.ErrorLevel).Msgf(format, args...) }

func SessionStart(device, format string, headless bool) {
	event(zerolog.InfoLevel).
		Str("device", device).
		Str("format", format).
		Bool("headless", headless).
		Msg("session_start")
}

func SessionEnd(segments int) {
	event(zerolog.InfoLevel).Int("segments", segments).Msg("session_end")
}

func Permission(kind, status string) {
	event(zerolog.InfoLevel).Str("kind", kind).Str("status", status).Msg("permission")
}

func MonitoringStart(notifyID int, interval time.Duration) {
	event(zerolog.InfoLevel).
		Int("notify_id", notifyID).
		Dur("interval", interval).
		Msg("monitoring_start")
}

func MonitoringStop(segments int) {
	event(zerolog.InfoLevel).Int("segments", segments).Msg("monitoring_stop")
}

func RotationSkipped() {
	event(zerolog.WarnLevel).Msg("rotation_skipped")
}

// SegmentSaved records a finalized segment in the diagnostics log and
// appends it to the segment ledger.
func SegmentSaved(index int, path string) {
	if !ready.Load() {
		return
	}
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	event(zerolog.InfoLevel).
		Int("index", index).
		Str("path", path).
		Float64("size_kb", float64(size)/1024).
		Msg("segment_rotated")

	logMu.Lock()
	defer logMu.Unlock()
	if segmentFile == nil {
		return
	}
	fmt.Fprintf(segmentFile, "%s\t[%d]\t%d\t%s\n", time.Now().Format(timeLayout), pid, index, path)
}

func SegmentsPruned(removed []string) {
	if len(removed) == 0 {
		return
	}
	event(zerolog.InfoLevel).
		Int("count", len(removed)).
		Strs("paths", removed).
		Msg("segments_pruned")
}
