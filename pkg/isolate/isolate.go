// Package isolate runs a test body in a fresh OS process by re-executing
// the current test binary. Engine construction touches process-wide
// accelerator state, so each case needs a clean process — isolation here is
// a correctness requirement, not an optimization.
package isolate

import (
	"os"
	"os/exec"
	"testing"
)

const childEnv = "SPECVERIFY_ISOLATED_CHILD"

// IsChild reports whether the current process is a re-executed child.
func IsChild() bool {
	return os.Getenv(childEnv) == "1"
}

// Run executes body in a freshly spawned copy of the test binary, limited
// to the calling test. In the child process it runs body directly. The
// parent fails if the child exits non-zero.
func Run(t *testing.T, body func(t *testing.T)) {
	t.Helper()

	if IsChild() {
		body(t)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^"+t.Name()+"$", "-test.v")
	cmd.Env = append(os.Environ(), childEnv+"=1")

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("isolated process failed: %v\n%s", err, out)
	}
	t.Logf("isolated process output:\n%s", out)
}
