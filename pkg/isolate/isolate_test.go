package isolate

import (
	"os"
	"testing"
)

func TestRunExecutesBodyInFreshProcess(t *testing.T) {
	ran := false
	Run(t, func(t *testing.T) {
		ran = true
		if !IsChild() {
			t.Fatal("body must run in the re-executed child process")
		}
	})

	// In the parent, the body runs only inside the spawned process.
	if IsChild() && !ran {
		t.Fatal("child did not run the body")
	}
	if !IsChild() && ran {
		t.Fatal("parent must not run the body in-process")
	}
}

func TestIsChildReflectsEnvironment(t *testing.T) {
	if os.Getenv(childEnv) == "1" {
		if !IsChild() {
			t.Fatal("IsChild must be true in the child")
		}
		return
	}
	if IsChild() {
		t.Fatal("IsChild must be false without the marker")
	}
}
