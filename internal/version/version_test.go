package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldSHA, oldT := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldT })

	if got := String(); got != "dev (unknown, built unknown)" {
		t.Errorf("unexpected default: %q", got)
	}

	Version, GitSHA, BuildTime = "v0.3.0", "4f2a9c1d0e", "2026-05-01T09:00:00Z"
	if got, want := String(), "v0.3.0 (4f2a9c1, built 2026-05-01T09:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
