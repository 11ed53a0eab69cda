// Package hook runs a package's pre/post install/remove scripts, each a
// shell fragment embedded in the archive metadata and invoked via bash.
package hook

import (
	"fmt"
	"os/exec"
)

// Run executes script (empty is a no-op) as
// "/usr/bin/bash -c <script> <arg0> <arg1>", failing on a non-zero exit.
// Per bash -c's own argument convention, arg0 lands in the script's $0
// and arg1 in its $1. The combined stdout/stderr is included in the
// error so a failing hook is diagnosable without re-running it,
// mirroring the teacher's use of CombinedOutput for external-tool
// invocations.
func Run(script string, arg0, arg1 string) error {
	if len(script) == 0 {
		return nil
	}
	cmd := exec.Command("/usr/bin/bash", "-c", script, arg0, arg1)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("hook exited with error: %w\n%s", err, out)
	}
	return nil
}
