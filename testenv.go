package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"curie/log"
	"curie/monitor"
)

const scriptWaitTimeout = 10 * time.Second

// runScript drives the monitor from line commands so integration tests can
// run deterministically without a terminal:
//
//	START, STOP, ROTATE, BACK, QUIT, SLEEP <ms>, WAIT_SEGMENTS <n>, WAIT_IDLE
//
// Results go to stdout; a failed wait aborts the script.
func (a *app) runScript(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if cmd == "" || strings.HasPrefix(cmd, "#") {
			continue
		}
		name, arg, _ := strings.Cut(cmd, " ")

		switch name {
		case "START":
			report("start", a.mon.Start(ctx))
		case "STOP":
			report("stop", a.mon.Stop())
		case "ROTATE":
			report("rotate", a.mon.Rotate())
		case "BACK":
			if a.mon.Back() {
				fmt.Println("back: propagated")
			} else {
				fmt.Println("back: swallowed")
			}
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case "WAIT_SEGMENTS":
			n, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("WAIT_SEGMENTS: %w", err)
			}
			if err := a.waitFor(func(s monitor.Snapshot) bool { return s.Segments >= n }); err != nil {
				return fmt.Errorf("waiting for %d segments: %w", n, err)
			}
		case "WAIT_IDLE":
			if err := a.waitFor(func(s monitor.Snapshot) bool { return s.State == monitor.Idle }); err != nil {
				return fmt.Errorf("waiting for idle: %w", err)
			}
			fmt.Println("state: idle")
		case "QUIT":
			return nil
		default:
			log.Warnf("script: unknown command %q", cmd)
		}
	}
	return scanner.Err()
}

func report(action string, err error) {
	if err != nil {
		fmt.Printf("%s: %v\n", action, err)
		return
	}
	fmt.Printf("%s: ok\n", action)
}

func (a *app) waitFor(cond func(monitor.Snapshot) bool) error {
	deadline := time.Now().Add(scriptWaitTimeout)
	for !cond(a.mon.Snapshot()) {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s", scriptWaitTimeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}
