//go:build !linux

package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// beeepNotifier shows a toast per post. Toasts cannot be withdrawn on
// these platforms, so CancelAll only forgets them.
type beeepNotifier struct{}

func New(appName string) (Notifier, error) {
	beeep.AppName = appName
	return beeepNotifier{}, nil
}

func (beeepNotifier) Post(n Notification) error {
	if err := beeep.Notify(n.Title, n.Message, ""); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (beeepNotifier) CancelAll() error { return nil }
func (beeepNotifier) Close() error     { return nil }
