package core

import (
	"context"
	"fmt"

	"github.com/jochenvg/go-udev"
)

/*
 * SDR front-end hotplug watcher: watches udev for SDR dongles coming
 * and going via the jochenvg/go-udev netlink monitor, so a front-end
 * that disconnects and reconnects mid-run (common with USB SDR
 * dongles) can be picked back up without a restart.
 */

// UDevSDRWatcher watches the udev "usb" subsystem for SDR front-end
// add/remove events and invokes a callback with the matching device
// node path.
type UDevSDRWatcher struct {
	u       *udev.Udev
	onAdd   func(devPath string)
	onRemove func(devPath string)
}

// NewUDevSDRWatcher returns a watcher; attach callbacks before
// calling Run.
func NewUDevSDRWatcher() *UDevSDRWatcher {
	return &UDevSDRWatcher{u: udev.Udev{}.NewUdev()}
}

// OnAdd registers the SDR-attached callback.
func (w *UDevSDRWatcher) OnAdd(cb func(devPath string)) { w.onAdd = cb }

// OnRemove registers the SDR-detached callback.
func (w *UDevSDRWatcher) OnRemove(cb func(devPath string)) { w.onRemove = cb }

// Run blocks, dispatching udev "usb" subsystem events to the
// registered callbacks until ctx is cancelled.
func (w *UDevSDRWatcher) Run(ctx context.Context) error {
	mon := w.u.NewMonitorFromNetlink("udev")
	if mon == nil {
		return fmt.Errorf("udev: failed to create netlink monitor")
	}
	if err := mon.FilterAddMatchSubsystem("usb"); err != nil {
		return fmt.Errorf("udev: filtering subsystem: %w", err)
	}

	ch, errCh, err := mon.DeviceChan(ctx)
	if err != nil {
		return fmt.Errorf("udev: starting device channel: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("udev: monitor error: %w", err)
			}
		case dev := <-ch:
			if dev == nil {
				continue
			}
			path := dev.Devnode()
			switch dev.Action() {
			case "add":
				if w.onAdd != nil && path != "" {
					w.onAdd(path)
				}
			case "remove":
				if w.onRemove != nil && path != "" {
					w.onRemove(path)
				}
			}
		}
	}
}
