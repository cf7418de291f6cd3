//go:build !windows

package shutdown

import (
	"os"
	"syscall"
)

// Signals end a session: Ctrl+C from the terminal, SIGTERM from a service
// manager or logout.
var Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
