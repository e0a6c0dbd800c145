package inject

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluidvoice/fluidvoice/internal/logging"
	"github.com/fluidvoice/fluidvoice/internal/target"
)

type fakeActivator struct {
	frontmost bool
}

func (f *fakeActivator) Activate(target.AppTarget) error   { return nil }
func (f *fakeActivator) IsFrontmost(target.AppTarget) bool { return f.frontmost }

func TestInject_PrimaryStrategySucceeds(t *testing.T) {
	var typed []string
	inj := &Injector{
		log:       logging.New("inject-test"),
		activator: &fakeActivator{frontmost: true},
		typeStr: func(s string) error {
			typed = append(typed, s)
			return nil
		},
	}

	require.NoError(t, inj.Inject("hello", target.AppTarget{}))
	assert.Equal(t, []string{"hello"}, typed)
}

func TestInject_ChunksLongTextAt100Codepoints(t *testing.T) {
	var typed []string
	inj := &Injector{
		log:       logging.New("inject-test"),
		activator: &fakeActivator{frontmost: true},
		typeStr: func(s string) error {
			typed = append(typed, s)
			return nil
		},
	}

	text := make([]rune, 250)
	for i := range text {
		text[i] = 'a'
	}
	require.NoError(t, inj.Inject(string(text), target.AppTarget{}))
	require.Len(t, typed, 3)
	assert.Len(t, typed[0], 100)
	assert.Len(t, typed[1], 100)
	assert.Len(t, typed[2], 50)
}

func TestInject_FallsBackToClipboardOnPrimaryFailure(t *testing.T) {
	var pasted bool
	var written string
	inj := &Injector{
		log:       logging.New("inject-test"),
		activator: &fakeActivator{frontmost: true},
		typeStr: func(s string) error {
			return errors.New("target refused synthetic key events")
		},
		pasteChord: func() error {
			pasted = true
			return nil
		},
		clipboardRead: func() (string, error) { return "previous clipboard", nil },
		clipboardWrite: func(s string) error {
			written = s
			return nil
		},
	}

	require.NoError(t, inj.Inject("fallback text", target.AppTarget{}))
	assert.True(t, pasted)
	assert.Equal(t, "previous clipboard", written) // last write is the restore
}

func TestInject_ActivationFailureAborts(t *testing.T) {
	inj := &Injector{
		log:       logging.New("inject-test"),
		activator: &fakeActivator{frontmost: false},
		typeStr:   func(s string) error { return nil },
	}

	err := inj.Inject("text", target.AppTarget{})
	require.Error(t, err)
}
