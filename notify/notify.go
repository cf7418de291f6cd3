// Package notify posts the ongoing "monitoring" notification and clears it
// again when monitoring stops.
package notify

import "errors"

type Notification struct {
	// ID identifies the notification. Posting the same ID again replaces
	// the existing bubble instead of stacking a new one.
	ID         int
	Title      string
	Message    string
	Persistent bool
}

type Notifier interface {
	Post(n Notification) error
	CancelAll() error
	Close() error
}

var ErrUnavailable = errors.New("notification service unavailable")
