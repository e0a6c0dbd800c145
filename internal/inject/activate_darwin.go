//go:build darwin

package inject

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fluidvoice/fluidvoice/internal/target"
)

// darwinActivator drives application activation and frontmost detection
// through osascript/System Events, the same primitive the teacher's
// internal/clipboard/paste.go already used for its paste chord.
type darwinActivator struct{}

func newActivator() activator { return darwinActivator{} }

func (darwinActivator) Activate(tgt target.AppTarget) error {
	script := fmt.Sprintf(`tell application "System Events" to set frontmost of (first process whose unix id is %d) to true`, tgt.PID)
	cmd := exec.Command("osascript", "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("activate pid %d: %v: %s", tgt.PID, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (darwinActivator) IsFrontmost(tgt target.AppTarget) bool {
	script := fmt.Sprintf(`tell application "System Events" to get frontmost of (first process whose unix id is %d)`, tgt.PID)
	cmd := exec.Command("osascript", "-e", script)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return false
	}
	isFrontmost, _ := strconv.ParseBool(strings.TrimSpace(string(out)))
	return isFrontmost
}
