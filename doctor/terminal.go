package doctor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"curie/shutdown"
)

// resetTerminal undoes a raw mode a previous crashed run may have left.
func resetTerminal() {
	if runtime.GOOS == "windows" {
		return
	}
	exec.Command("stty", "sane").Run()
}

// exitOnInterrupt ends the process on Ctrl+C while a prompt waits for
// input, since the blocking read cannot be cancelled.
func exitOnInterrupt(out io.Writer) {
	ch := make(chan os.Signal, 1)
	shutdown.Notify(ch)
	go func() {
		<-ch
		fmt.Fprintln(out, "\nInterrupted")
		os.Exit(1)
	}()
}
