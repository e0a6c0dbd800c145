//go:build !darwin

package target

import "time"

// GenericCapturer has no wired foreground-window primitive on this
// platform yet (X11/Wayland each need their own query); it returns an
// AppTarget with no PID or app name so the injector still falls back to typing at
// whatever currently has focus rather than failing recording outright.
type GenericCapturer struct{}

func NewCapturer() *GenericCapturer { return &GenericCapturer{} }

func (GenericCapturer) Capture() (AppTarget, error) {
	return AppTarget{ActivationVerifiedAt: time.Now()}, nil
}
