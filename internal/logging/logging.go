// Package logging provides the component-tagged logger used throughout
// FluidVoice, generalized from the teacher daemon's bracketed
// log.Printf prefixes ("[SESSION]", "[AUDIO]", "[WS]") into a small
// reusable type instead of repeating the prefix string at every call
// site.
package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger tags every line with a component name, e.g. "[capture]".
type Logger struct {
	component string
	std       *log.Logger
}

// New returns a Logger writing to stderr, tagged with component.
func New(component string) *Logger {
	return &Logger{
		component: component,
		std:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

// With returns a child logger with an additional component segment, e.g.
// base.With("vosk") on a logger tagged "dispatch" logs as
// "[dispatch.vosk]".
func (l *Logger) With(sub string) *Logger {
	return &Logger{component: l.component + "." + sub, std: l.std}
}

func (l *Logger) Infof(format string, args ...any) {
	l.std.Printf("[%s] %s", l.component, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.std.Printf("[%s] WARN %s", l.component, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.std.Printf("[%s] ERROR %s", l.component, fmt.Sprintf(format, args...))
}
