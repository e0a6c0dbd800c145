// Package hotkey implements HotkeyMonitor (spec section 4.1): a pure
// edge-to-command translator for the user's configured global chord,
// supporting both toggle and push-to-talk input modes with debouncing
// and tap-vs-hold disambiguation. It holds no audio state.
//
// Generalized from the teacher's internal/hotkeys/{manager,simple}.go,
// which hardcoded a single Ctrl+Shift chord detected by CGO-polling
// CoreGraphics modifier flags. That bare-modifier technique is kept
// (see baremod_darwin.go) for the one case golang.design/x/hotkey cannot
// express — a chord that is itself only a modifier key, with no primary
// keycode (spec section 9's "do not try to shoehorn this into a
// standard hotkey library that only accepts {modifiers, keycode} pairs").
// Ordinary chords are registered through golang.design/x/hotkey instead
// of the teacher's single hardcoded combination.
package hotkey

import (
	"fmt"
	"strings"
	"sync"
	"time"

	xhotkey "golang.design/x/hotkey"

	"github.com/fluidvoice/fluidvoice/internal/apperror"
	"github.com/fluidvoice/fluidvoice/internal/logging"
)

// Command is the one vocabulary HotkeyMonitor speaks to SessionController.
type Command int

const (
	CmdStart Command = iota
	CmdStop
	CmdToggle
)

// Mode selects press/release interpretation, per spec section 4.1.
type Mode string

const (
	ModeToggle     Mode = "toggle"
	ModePushToTalk Mode = "push_to_talk"
)

const debounceWindow = 50 * time.Millisecond

// Monitor listens for a configured chord and emits Command values on
// Commands(). It is a pure translator: it never touches audio or session
// state directly.
type Monitor struct {
	log           *logging.Logger
	mode          Mode
	holdThreshold time.Duration
	commands      chan Command
	errors        chan error

	chord   string
	hk      *xhotkey.Hotkey
	bareMod bareModifierSource
	isBare  bool

	mu              sync.Mutex
	lastEvent       time.Time
	downAt          time.Time
	pressed         bool
	latched         bool
	suppressRelease bool
	stopCh          chan struct{}
}

// New creates a Monitor for chord (e.g. "ctrl+shift+space" or the bare
// modifier name "fn") in the given Mode with the given hold threshold.
func New(chord string, mode Mode, holdThreshold time.Duration) *Monitor {
	return &Monitor{
		log:           logging.New("hotkey"),
		mode:          mode,
		holdThreshold: holdThreshold,
		commands:      make(chan Command, 8),
		errors:        make(chan error, 1),
		chord:         chord,
		stopCh:        make(chan struct{}),
	}
}

// Commands returns the channel SessionController should read start/stop/
// toggle events from.
func (m *Monitor) Commands() <-chan Command { return m.commands }

// Errors returns the one-shot configuration-error channel, per spec
// section 4.1's "OS denies input-monitoring privilege" failure mode.
func (m *Monitor) Errors() <-chan error { return m.errors }

// Start registers the chord and begins listening. If the chord is a
// bare modifier (no primary key), it is dispatched to the platform-
// specific bare-modifier poller instead of golang.design/x/hotkey, which
// cannot represent a modifier-only chord.
func (m *Monitor) Start() error {
	mods, key, bare, err := parseChord(m.chord)
	if err != nil {
		return apperror.New(apperror.Internal, "hotkey.Start", err)
	}

	if bare {
		m.isBare = true
		src, err := newBareModifierSource(m.chord)
		if err != nil {
			m.errors <- apperror.New(apperror.PermissionDenied, "hotkey.Start", err)
			return err
		}
		m.bareMod = src
		go m.runBareModifier()
		return nil
	}

	hk := xhotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		m.errors <- apperror.New(apperror.PermissionDenied, "hotkey.Start", err)
		return fmt.Errorf("registering hotkey: %w", err)
	}
	m.hk = hk
	go m.runOrdinaryChord()
	return nil
}

// Stop unregisters the chord and halts the listener goroutine.
func (m *Monitor) Stop() {
	close(m.stopCh)
	if m.hk != nil {
		m.hk.Unregister()
	}
	if m.bareMod != nil {
		m.bareMod.Close()
	}
}

func (m *Monitor) runOrdinaryChord() {
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.hk.Keydown():
			m.onEdge(true)
		case <-m.hk.Keyup():
			m.onEdge(false)
		}
	}
}

func (m *Monitor) runBareModifier() {
	for {
		select {
		case <-m.stopCh:
			return
		case down, ok := <-m.bareMod.Events():
			if !ok {
				return
			}
			m.onEdge(down)
		}
	}
}

// onEdge is the debounced edge-to-command translator shared by both
// chord sources: it coalesces sub-50ms event pairs, drops a phantom
// key-up with no preceding key-down, and applies the tap-vs-hold
// distinction for push-to-talk mode, per spec section 4.1.
func (m *Monitor) onEdge(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastEvent) < debounceWindow {
		return
	}
	m.lastEvent = now

	if down {
		if m.pressed {
			return // duplicate key-down, ignore
		}
		m.pressed = true
		m.downAt = now

		if m.mode == ModePushToTalk {
			if m.latched {
				// Second tap of a tap-promoted-to-toggle recording:
				// this down edge is the one that ends it. Its matching
				// key-up is a release of that same physical press, not
				// a new tap, so it must not re-latch.
				m.latched = false
				m.suppressRelease = true
				m.commands <- CmdStop
				return
			}
			m.commands <- CmdStart
		}
		return
	}

	// key-up
	if !m.pressed {
		return // phantom key-up, no preceding key-down: silently dropped
	}
	m.pressed = false

	switch m.mode {
	case ModePushToTalk:
		if m.suppressRelease {
			m.suppressRelease = false
			return
		}
		held := now.Sub(m.downAt)
		if held < m.holdThreshold {
			// Tap: spec section 4.1 treats a release this quick as a
			// toggle rather than a stop — recording stays latched on
			// until the next tap's key-down.
			m.latched = true
			return
		}
		m.commands <- CmdStop
	case ModeToggle:
		m.commands <- CmdToggle
	}
}

// bareModifierSource abstracts the platform-specific modifier-flag
// poller; see baremod_darwin.go and baremod_other.go.
type bareModifierSource interface {
	Events() <-chan bool // true = pressed, false = released
	Close()
}

// parseChord interprets a user-facing chord string like "ctrl+shift+space"
// or a bare modifier name like "fn"/"right_cmd".
func parseChord(chord string) (mods []xhotkey.Modifier, key xhotkey.Key, bare bool, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(chord)), "+")
	if len(parts) == 1 && isBareModifierName(parts[0]) {
		return nil, 0, true, nil
	}

	for i, p := range parts {
		last := i == len(parts)-1
		if !last {
			mod, ok := parseModifier(p)
			if !ok {
				return nil, 0, false, fmt.Errorf("unknown modifier %q in chord %q", p, chord)
			}
			mods = append(mods, mod)
			continue
		}
		k, ok := parseKey(p)
		if !ok {
			return nil, 0, false, fmt.Errorf("unknown key %q in chord %q", p, chord)
		}
		key = k
	}
	return mods, key, false, nil
}

func isBareModifierName(s string) bool {
	switch s {
	case "fn", "cmd", "ctrl", "alt", "shift", "right_cmd", "right_ctrl", "right_alt", "right_shift":
		return true
	}
	return false
}

func parseModifier(s string) (xhotkey.Modifier, bool) {
	switch s {
	case "ctrl", "control":
		return xhotkey.ModCtrl, true
	case "shift":
		return xhotkey.ModShift, true
	case "alt", "option":
		return xhotkey.ModOption, true
	case "cmd", "super", "win":
		return xhotkey.Mod1, true
	}
	return 0, false
}

func parseKey(s string) (xhotkey.Key, bool) {
	if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
		return xhotkey.Key(xhotkey.KeyA + rune(s[0]) - 'a'), true
	}
	switch s {
	case "space":
		return xhotkey.KeySpace, true
	case "return", "enter":
		return xhotkey.KeyReturn, true
	case "escape", "esc":
		return xhotkey.KeyEscape, true
	}
	return 0, false
}
