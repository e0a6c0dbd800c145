//go:build !darwin

package inject

import "github.com/fluidvoice/fluidvoice/internal/target"

// noopActivator is a placeholder for platforms without a wired
// window-activation primitive yet; it reports every target as already
// frontmost so injection proceeds best-effort rather than always
// failing with activation_failed.
type noopActivator struct{}

func newActivator() activator { return noopActivator{} }

func (noopActivator) Activate(target.AppTarget) error   { return nil }
func (noopActivator) IsFrontmost(target.AppTarget) bool { return true }
