package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"curie/audio"
	"curie/clipboard"
	"curie/encoder"
	"curie/notify"
	"curie/permission"
)

type Options struct {
	Ctx      audio.Context
	Device   *audio.DeviceInfo // nil = system default
	Format   string
	Notifier notify.Notifier // nil skips the notification check

	// Interactive asks the user to confirm what only they can observe.
	Interactive bool
	In          io.Reader
	Out         io.Writer

	RecordFor time.Duration
}

type runner struct {
	opts   Options
	out    io.Writer
	reader *bufio.Reader
	step   int
	total  int
}

// Run executes the diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Interactive {
		resetTerminal()
		exitOnInterrupt(opts.Out)
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.RecordFor <= 0 {
		opts.RecordFor = 3 * time.Second
	}
	if opts.Format == "" {
		opts.Format = encoder.FormatWAV
	}

	r := &runner{opts: opts, out: opts.Out, reader: bufio.NewReader(opts.In), total: 5}

	fmt.Fprintln(r.out, "curie doctor - system diagnostics")
	fmt.Fprintln(r.out, "=================================")

	allPass := true
	if !r.checkDevices() {
		allPass = false
	}
	if allPass && !r.checkPermission() {
		allPass = false
	}
	if allPass && !r.checkSegment() {
		allPass = false
	}
	if !r.checkNotification() {
		allPass = false
	}
	if !r.checkClipboard() {
		allPass = false
	}

	fmt.Fprintln(r.out)
	if allPass {
		fmt.Fprintln(r.out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(r.out, "Some checks failed. See details above.")
	return 1
}

func (r *runner) header(title string) {
	r.step++
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "[%d/%d] %s\n", r.step, r.total, title)
}

func (r *runner) confirm(question string) bool {
	if !r.opts.Interactive {
		return true
	}
	fmt.Fprintf(r.out, "%s [y/n]: ", question)
	answer, _ := r.reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func (r *runner) checkDevices() bool {
	r.header("Capture devices")

	devices, err := r.opts.Ctx.Devices()
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: cannot list devices: %v\n", err)
		return false
	}
	for _, d := range devices {
		mark := " "
		if r.opts.Device != nil && r.opts.Device.ID == d.ID {
			mark = "*"
		}
		note := ""
		if audio.IsBluetooth(d.Name) {
			note = " (bluetooth: lower audio quality)"
		}
		fmt.Fprintf(r.out, "  %s %s%s\n", mark, d.Name, note)
	}
	name := "system default"
	if r.opts.Device != nil {
		name = r.opts.Device.Name
	}
	fmt.Fprintf(r.out, "  PASS: %d device(s), using %s\n", len(devices), name)
	return true
}

func (r *runner) checkPermission() bool {
	r.header("Microphone access")

	probe := permission.AudioProbe{Ctx: r.opts.Ctx, Device: r.opts.Device, Timeout: 3 * time.Second}
	st, err := probe.Request(context.Background(), permission.Microphone)
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: %v\n", err)
		return false
	}
	if st != permission.Granted {
		fmt.Fprintf(r.out, "  FAIL: microphone %s (no audio arrived; is the input muted or blocked?)\n", st)
		return false
	}
	fmt.Fprintln(r.out, "  PASS: microphone delivers audio")
	return true
}

func (r *runner) checkSegment() bool {
	r.header("Test segment")

	dir, err := os.MkdirTemp("", "curie-doctor-")
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: %v\n", err)
		return false
	}
	defer os.RemoveAll(dir)

	rec := audio.NewRecorder(r.opts.Ctx, r.opts.Device, audio.RecorderConfig{Dir: dir, Format: r.opts.Format})
	seg, err := rec.Open()
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: %v\n", err)
		return false
	}
	if err := seg.Start(); err != nil {
		seg.Stop()
		fmt.Fprintf(r.out, "  FAIL: %v\n", err)
		return false
	}

	fmt.Fprintf(r.out, "  Recording %s", r.opts.RecordFor)
	var peak float64
	deadline := time.Now().Add(r.opts.RecordFor)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		peak = max(peak, rec.Level())
	}
	fmt.Fprintln(r.out, " done")

	path, err := seg.Stop()
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: %v\n", err)
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: %v\n", err)
		return false
	}
	if info.Size() <= audio.WAVHeaderSize {
		fmt.Fprintln(r.out, "  FAIL: segment file is empty")
		return false
	}
	fmt.Fprintf(r.out, "  PASS: wrote %.1f KB %s segment, peak level %.3f\n", float64(info.Size())/1024, r.opts.Format, peak)
	return true
}

func (r *runner) checkNotification() bool {
	r.header("Notifications")

	if r.opts.Notifier == nil {
		fmt.Fprintln(r.out, "  SKIP: no notification service")
		return true
	}
	err := r.opts.Notifier.Post(notify.Notification{
		ID:         1,
		Title:      "curie doctor",
		Message:    "Notification check",
		Persistent: true,
	})
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: %v\n", err)
		return false
	}
	ok := r.confirm("Did a \"curie doctor\" notification appear?")
	if err := r.opts.Notifier.CancelAll(); err != nil {
		fmt.Fprintf(r.out, "  FAIL: could not withdraw notification: %v\n", err)
		return false
	}
	if !ok {
		fmt.Fprintln(r.out, "  FAIL: notification not confirmed")
		return false
	}
	fmt.Fprintln(r.out, "  PASS: notification posted and withdrawn")
	return true
}

func (r *runner) checkClipboard() bool {
	r.header("Clipboard")

	if !clipboard.Available() {
		fmt.Fprintln(r.out, "  SKIP: no clipboard utility (install xclip, xsel or wl-clipboard)")
		return true
	}
	const sentinel = "curie-doctor-test"
	if err := clipboard.Copy(sentinel); err != nil {
		fmt.Fprintf(r.out, "  FAIL: copy failed: %v\n", err)
		return false
	}
	got, err := clipboard.Read()
	if err != nil {
		fmt.Fprintf(r.out, "  FAIL: read failed: %v\n", err)
		return false
	}
	if got != sentinel {
		fmt.Fprintf(r.out, "  FAIL: clipboard returned %q, want %q\n", got, sentinel)
		return false
	}
	fmt.Fprintln(r.out, "  PASS: clipboard round trip")
	return true
}
