package hotkey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestMonitor(mode Mode, holdThreshold time.Duration) *Monitor {
	m := New("fn", mode, holdThreshold)
	return m
}

func drain(t *testing.T, ch <-chan Command) Command {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("expected a command, got none")
		return 0
	}
}

func requireNoCommand(t *testing.T, ch <-chan Command) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("expected no command, got %v", c)
	case <-time.After(20 * time.Millisecond):
	}
}

// TestPushToTalk_HoldStopsOnRelease covers the ordinary case: a press
// held longer than holdThreshold starts on key-down and stops on
// key-up, per spec section 4.1.
func TestPushToTalk_HoldStopsOnRelease(t *testing.T) {
	m := newTestMonitor(ModePushToTalk, 200*time.Millisecond)

	m.onEdge(true)
	require.Equal(t, CmdStart, drain(t, m.Commands()))

	m.lastEvent = time.Time{} // bypass the 50ms debounce window for the test
	m.downAt = time.Now().Add(-300 * time.Millisecond)
	m.onEdge(false)
	require.Equal(t, CmdStop, drain(t, m.Commands()))
}

// TestPushToTalk_TapPromotesToToggle covers spec section 4.1's "a
// hold_threshold distinguishes a tap (treated as toggle) from a hold":
// a release faster than holdThreshold must not stop the recording, and
// the next key-down must stop it instead.
func TestPushToTalk_TapPromotesToToggle(t *testing.T) {
	m := newTestMonitor(ModePushToTalk, 200*time.Millisecond)

	m.onEdge(true)
	require.Equal(t, CmdStart, drain(t, m.Commands()))

	m.lastEvent = time.Time{}
	m.downAt = time.Now().Add(-10 * time.Millisecond) // well under the 200ms threshold
	m.onEdge(false)
	requireNoCommand(t, m.Commands()) // tap: no stop yet, recording stays latched
	require.True(t, m.latched)

	m.lastEvent = time.Time{}
	m.onEdge(true)
	require.Equal(t, CmdStop, drain(t, m.Commands()))
	require.False(t, m.latched)

	m.lastEvent = time.Time{}
	m.onEdge(false)
	requireNoCommand(t, m.Commands()) // the second tap's own release is suppressed
}

func TestToggle_EachReleaseToggles(t *testing.T) {
	m := newTestMonitor(ModeToggle, 200*time.Millisecond)

	m.onEdge(true)
	requireNoCommand(t, m.Commands()) // toggle mode only acts on release

	m.lastEvent = time.Time{}
	m.onEdge(false)
	require.Equal(t, CmdToggle, drain(t, m.Commands()))
}

func TestOnEdge_DebouncesSubThresholdEvents(t *testing.T) {
	m := newTestMonitor(ModePushToTalk, 200*time.Millisecond)

	m.onEdge(true)
	require.Equal(t, CmdStart, drain(t, m.Commands()))

	m.onEdge(false) // within the 50ms debounce window of the key-down above
	requireNoCommand(t, m.Commands())
	require.True(t, m.pressed, "debounced event must not change press state")
}

func TestOnEdge_DropsPhantomKeyUp(t *testing.T) {
	m := newTestMonitor(ModePushToTalk, 200*time.Millisecond)

	m.onEdge(false)
	requireNoCommand(t, m.Commands())
	require.False(t, m.pressed)
}
