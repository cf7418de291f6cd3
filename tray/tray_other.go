//go:build !linux

package tray

func Init()                      {}
func updateMonitoringIcon(bool)  {}
func updateWarningIcon(bool)     {}
func updateTooltip(string)       {}
func updateCopyLastTitle(string) {}
