// Package termstatus renders FluidVoice's session state and audio level
// to the terminal in place, using the raw ANSI cursor-control primitives
// the teacher's internal/terminal/control.go already implemented for its
// transcript-summary display. Kept byte-for-byte on the cursor/clear
// operations; stateGlyph and RenderSession are new, aimed at
// session.State/level display instead of a word-count/time-saved
// summary.
package termstatus

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fluidvoice/fluidvoice/internal/session"
)

// Control provides terminal control functionality.
type Control struct {
	isWindows bool
}

// NewControl creates a new terminal control instance.
func NewControl() *Control {
	return &Control{
		isWindows: runtime.GOOS == "windows",
	}
}

func (c *Control) MoveCursorUp(lines int) {
	if lines <= 0 {
		return
	}
	fmt.Printf("\033[%dA", lines)
}

func (c *Control) ClearLine() {
	fmt.Print("\033[2K\r")
}

// IsTerminal checks if output is going to a terminal.
func (c *Control) IsTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// UpdateInPlace updates a single status line in place, overwriting the
// previous render rather than scrolling the terminal.
func (c *Control) UpdateInPlace(line string, isFirstUpdate bool) {
	if !c.IsTerminal() {
		fmt.Println(line)
		return
	}
	if !isFirstUpdate {
		c.MoveCursorUp(1)
		c.ClearLine()
	}
	fmt.Println(line)
}

// stateGlyph gives each session.State a short terminal-friendly marker.
func stateGlyph(s session.State) string {
	switch s {
	case session.Idle:
		return "idle"
	case session.Recording:
		return "● recording"
	case session.Stopping:
		return "… stopping"
	case session.Transcribing:
		return "… transcribing"
	case session.Injecting:
		return "… typing"
	case session.Error:
		return "✕ error"
	default:
		return string(s)
	}
}

// RenderSession formats the current state/level as a single status line
// spec section 6.6's UI contract describes as also being driven to the
// menu-bar UI over internal/uiserver.
func RenderSession(state session.State, level float64) string {
	return fmt.Sprintf("fluidvoice: %-16s level=%.2f", stateGlyph(state), level)
}
