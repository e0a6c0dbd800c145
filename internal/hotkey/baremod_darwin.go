//go:build darwin

package hotkey

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework Carbon
#include <ApplicationServices/ApplicationServices.h>

static CGEventFlags currentFlags() {
	return CGEventSourceFlagsState(kCGEventSourceStateHIDSystemState);
}
*/
import "C"

import (
	"fmt"
	"time"
)

// darwinBareModifier polls CGEventSourceFlagsState for a single
// modifier's bit, exactly the technique the teacher's
// internal/hotkeys/simple.go used for its hardcoded Ctrl+Shift chord —
// generalized here to any one of the modifier bits, since a bare
// modifier key (the laptop "fn" key most of all) has no ordinary
// key-code and cannot be observed through golang.design/x/hotkey.
type darwinBareModifier struct {
	mask   C.CGEventFlags
	events chan bool
	stopCh chan struct{}
}

func newBareModifierSource(name string) (bareModifierSource, error) {
	mask, ok := modifierMask(name)
	if !ok {
		return nil, fmt.Errorf("unsupported bare modifier %q", name)
	}
	d := &darwinBareModifier{
		mask:   mask,
		events: make(chan bool, 4),
		stopCh: make(chan struct{}),
	}
	go d.poll()
	return d, nil
}

func (d *darwinBareModifier) Events() <-chan bool { return d.events }

func (d *darwinBareModifier) Close() { close(d.stopCh) }

func (d *darwinBareModifier) poll() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	wasDown := false
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			flags := C.currentFlags()
			isDown := flags&d.mask != 0
			if isDown != wasDown {
				wasDown = isDown
				d.events <- isDown
			}
		}
	}
}

// modifierMask maps a bare-modifier name to its CGEventFlags bit. The
// "fn" function-row key is the case spec section 4.1 calls out by name.
func modifierMask(name string) (C.CGEventFlags, bool) {
	switch name {
	case "fn":
		return C.kCGEventFlagMaskSecondaryFn, true
	case "cmd":
		return C.kCGEventFlagMaskCommand, true
	case "ctrl":
		return C.kCGEventFlagMaskControl, true
	case "alt":
		return C.kCGEventFlagMaskAlternate, true
	case "shift":
		return C.kCGEventFlagMaskShift, true
	}
	return 0, false
}
