//go:build !darwin

package hotkey

import (
	"fmt"

	hook "github.com/robotn/gohook"
)

// hookBareModifier listens on the cross-platform low-level keyboard
// hook gohook installs and filters its events for one named modifier
// key. Unlike the
// darwin CGEventFlags poller, gohook surfaces raw key down/up events
// rather than a flags bitmask, so press/release is tracked directly
// instead of diffed against a previous flags snapshot.
type hookBareModifier struct {
	keycode uint16
	events  chan bool
	stopCh  chan struct{}
}

func newBareModifierSource(name string) (bareModifierSource, error) {
	code, ok := hook.Keycode[name]
	if !ok {
		return nil, fmt.Errorf("unsupported bare modifier %q", name)
	}
	h := &hookBareModifier{
		keycode: code,
		events:  make(chan bool, 4),
		stopCh:  make(chan struct{}),
	}
	go h.run()
	return h, nil
}

func (h *hookBareModifier) Events() <-chan bool { return h.events }

func (h *hookBareModifier) Close() {
	close(h.stopCh)
	hook.End()
}

func (h *hookBareModifier) run() {
	evChan := hook.Start()
	defer hook.End()
	for {
		select {
		case <-h.stopCh:
			return
		case ev := <-evChan:
			if ev.Keycode != h.keycode {
				continue
			}
			switch ev.Kind {
			case hook.KeyDown, hook.KeyHold:
				h.events <- true
			case hook.KeyUp:
				h.events <- false
			}
		}
	}
}
