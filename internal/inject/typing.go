package inject

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"
)

// typeUnicode posts a synthetic unicode key event for s, the OS
// primitive spec section 4.7 calls out as letting "an application
// inject 'what was typed' without mapping through a keyboard layout".
// robotgo.TypeStr is go-vgo/robotgo's binding to that primitive.
func typeUnicode(s string) error {
	if s == "" {
		return nil
	}
	robotgo.TypeStr(s)
	return nil
}

// pasteKeyChord posts the platform paste chord, used by the secondary
// clipboard-sandwich strategy.
func pasteKeyChord() error {
	return robotgo.KeyTap("v", pasteModifier())
}

func readClipboard() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("inject: read clipboard: %w", err)
	}
	return text, nil
}

func writeClipboard(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("inject: write clipboard: %w", err)
	}
	return nil
}
