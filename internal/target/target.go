// Package target defines AppTarget, the one entity both SessionController
// (which captures it) and TextInjector (which consumes it) need to
// share, kept in its own package so neither of those two depend on each
// other (spec section 9's "no back-pointers" message-passing design).
package target

import "time"

// AppTarget is spec section 3's AppTarget entity: the foreground
// application captured at recording start, so that text still reaches
// the intended window even if the user switches focus during
// transcription.
type AppTarget struct {
	PID                  int
	BundleOrProcessName  string
	ActivationVerifiedAt time.Time
}
