package audio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

var ErrDeviceNotFound = errors.New("capture device not found")

// FindDevice resolves a device by name. An empty name selects the system
// default and returns nil.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}

type pickerKey int

const (
	keyNone pickerKey = iota
	keyUp
	keyDown
	keyConfirm
	keyCancel
)

// decodeKey maps one raw-mode read to a picker action: arrows or j/k move,
// Enter confirms, Esc or Ctrl+C cancel.
func decodeKey(b []byte) pickerKey {
	switch {
	case len(b) == 1 && (b[0] == '\r' || b[0] == '\n'):
		return keyConfirm
	case len(b) == 1 && (b[0] == 3 || b[0] == 27):
		return keyCancel
	case len(b) == 1 && b[0] == 'k', len(b) == 3 && b[0] == 0x1b && b[2] == 'A':
		return keyUp
	case len(b) == 1 && b[0] == 'j', len(b) == 3 && b[0] == 0x1b && b[2] == 'B':
		return keyDown
	}
	return keyNone
}

func pickerLine(d DeviceInfo, selected bool) string {
	tag := ""
	if IsBluetooth(d.Name) {
		tag = " \x1b[33m[bluetooth: lower audio quality]\x1b[0m"
	}
	if selected {
		return fmt.Sprintf("  \x1b[1;32m> %s%s\x1b[0m\r\n", d.Name, tag)
	}
	return fmt.Sprintf("    %s%s\r\n", d.Name, tag)
}

// SelectDevice asks on the terminal which microphone to monitor. With a
// single device it returns that one without asking; a cancelled picker
// returns nil, nil.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no capture devices found")
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Microphone to monitor (up/down, Enter to confirm, Esc to cancel):\r\n\r\n")
		for i, d := range devices {
			fmt.Print(pickerLine(d, i == cursor))
		}
	}
	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch decodeKey(buf[:n]) {
		case keyConfirm:
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case keyCancel:
			fmt.Print("\r\n")
			return nil, nil
		case keyUp:
			cursor = max(cursor-1, 0)
		case keyDown:
			cursor = min(cursor+1, len(devices)-1)
		}
		fmt.Printf("\x1b[%dA", len(devices)+2)
		render()
	}
}
