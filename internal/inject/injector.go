// Package inject implements TextInjector (spec section 4.7): delivering
// a corrected transcript into the application that was frontmost when
// recording started.
//
// Grounded on the teacher's internal/clipboard/paste.go, generalized
// from a single macOS-only pbcopy/osascript two-liner into the full
// primary (synthesized unicode typing)/secondary (clipboard-sandwich
// paste) fallback chain spec section 4.7 describes.
package inject

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluidvoice/fluidvoice/internal/apperror"
	"github.com/fluidvoice/fluidvoice/internal/logging"
	"github.com/fluidvoice/fluidvoice/internal/target"
)

const (
	chunkSize            = 100
	interChunkSleep      = 10 * time.Millisecond
	clipboardRestoreWait = 150 * time.Millisecond
	activationPollEvery  = 50 * time.Millisecond
	activationPollTimes  = 10
)

// activator abstracts the OS-specific "bring this app to the front and
// tell me when it's actually frontmost" primitive.
type activator interface {
	Activate(tgt target.AppTarget) error
	IsFrontmost(tgt target.AppTarget) bool
}

// Injector is TextInjector. A single clipboard mutex serializes the
// secondary strategy across concurrent injections, per spec section 5:
// "a mutex prevents a second injection from clobbering the backup".
type Injector struct {
	log            *logging.Logger
	activator      activator
	clipboardMu    sync.Mutex
	typeStr        func(string) error
	pasteChord     func() error
	clipboardRead  func() (string, error)
	clipboardWrite func(string) error

	lastStrategy atomic.Value // string: "typed" or "pasted"
}

// New builds an Injector with the platform activator and the real
// robotgo/clipboard backends wired in.
func New() *Injector {
	return &Injector{
		log:            logging.New("inject"),
		activator:      newActivator(),
		typeStr:        typeUnicode,
		pasteChord:     pasteKeyChord,
		clipboardRead:  readClipboard,
		clipboardWrite: writeClipboard,
	}
}

// Inject delivers text into tgt, per spec section 4.7's primary/
// secondary strategy chain.
func (inj *Injector) Inject(text string, tgt target.AppTarget) error {
	if !inj.activateAndWait(tgt) {
		return apperror.New(apperror.ActivationFailed, "inject.Inject", fmt.Errorf("target did not become frontmost"))
	}

	if err := inj.typePrimary(text); err == nil {
		inj.lastStrategy.Store("typed")
		return nil
	} else {
		inj.log.Warnf("primary typing strategy failed, falling back to clipboard: %v", err)
	}

	if err := inj.pasteSecondary(text); err != nil {
		return err
	}
	inj.lastStrategy.Store("pasted")
	return nil
}

// LastStrategy reports which strategy ("typed" or "pasted") delivered
// the most recently successful Inject call, for productivity-metrics
// bookkeeping (internal/app's meteredInjector). Empty before the first
// successful call.
func (inj *Injector) LastStrategy() string {
	s, _ := inj.lastStrategy.Load().(string)
	return s
}

func (inj *Injector) activateAndWait(tgt target.AppTarget) bool {
	if err := inj.activator.Activate(tgt); err != nil {
		inj.log.Warnf("activation request failed: %v", err)
	}
	for i := 0; i < activationPollTimes; i++ {
		if inj.activator.IsFrontmost(tgt) {
			return true
		}
		time.Sleep(activationPollEvery)
	}
	return inj.activator.IsFrontmost(tgt)
}

// typePrimary implements "for each chunk of <=100 codepoints ... post it
// on the hardware event tap. Between chunks, sleep 10ms".
func (inj *Injector) typePrimary(text string) error {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if err := inj.typeStr(string(runes[start:end])); err != nil {
			return err
		}
		if end < len(runes) {
			time.Sleep(interChunkSleep)
		}
	}
	return nil
}

// pasteSecondary implements the clipboard-sandwich fallback: snapshot,
// write, paste, restore after 150ms.
func (inj *Injector) pasteSecondary(text string) error {
	inj.clipboardMu.Lock()
	defer inj.clipboardMu.Unlock()

	snapshot, err := inj.clipboardRead()
	haveSnapshot := err == nil
	if err != nil {
		inj.log.Warnf("clipboard snapshot failed, proceeding without restore: %v", err)
	}

	if err := inj.clipboardWrite(text); err != nil {
		return apperror.New(apperror.Internal, "inject.pasteSecondary", err)
	}
	if err := inj.pasteChord(); err != nil {
		return apperror.New(apperror.Internal, "inject.pasteSecondary", err)
	}

	time.Sleep(clipboardRestoreWait)
	if !haveSnapshot {
		return nil
	}
	if err := inj.clipboardWrite(snapshot); err != nil {
		inj.log.Warnf("clipboard restore failed: %v", err)
	}
	return nil
}
