package audio

import (
	"errors"
	"strings"
	"testing"
)

func TestFindDevice(t *testing.T) {
	ctx := NewFakeContext(nil, false)
	ctx.SetDevices([]DeviceInfo{{ID: "1", Name: "Built-in"}, {ID: "2", Name: "USB Mic"}})

	d, err := FindDevice(ctx, "USB Mic")
	if err != nil || d == nil || d.ID != "2" {
		t.Fatalf("FindDevice = %v, %v", d, err)
	}

	d, err = FindDevice(ctx, "")
	if err != nil || d != nil {
		t.Errorf("empty name should select the default, got %v, %v", d, err)
	}

	if _, err := FindDevice(ctx, "Missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestDecodeKey(t *testing.T) {
	tests := []struct {
		in   []byte
		want pickerKey
	}{
		{[]byte{'\r'}, keyConfirm},
		{[]byte{27}, keyCancel},
		{[]byte{3}, keyCancel},
		{[]byte{'k'}, keyUp},
		{[]byte{0x1b, '[', 'A'}, keyUp},
		{[]byte{'j'}, keyDown},
		{[]byte{0x1b, '[', 'B'}, keyDown},
		{[]byte{'x'}, keyNone},
		{[]byte{0x1b, '[', 'C'}, keyNone},
	}
	for _, tt := range tests {
		if got := decodeKey(tt.in); got != tt.want {
			t.Errorf("decodeKey(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPickerLineFlagsBluetooth(t *testing.T) {
	if line := pickerLine(DeviceInfo{Name: "AirPods Pro"}, false); !strings.Contains(line, "bluetooth") {
		t.Errorf("bluetooth device not flagged: %q", line)
	}
	if line := pickerLine(DeviceInfo{Name: "USB Mic"}, true); !strings.Contains(line, "> USB Mic") {
		t.Errorf("selected line = %q", line)
	}
}
