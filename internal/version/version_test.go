package version

import (
	"strings"
	"testing"
)

func TestString_ContainsAllThreeFields(t *testing.T) {
	orig := Version
	origSHA := GitSHA
	origTime := BuildTime
	defer func() { Version, GitSHA, BuildTime = orig, origSHA, origTime }()

	Version, GitSHA, BuildTime = "1.2.3", "abc123", "2026-07-31T00:00:00Z"

	got := String()
	for _, want := range []string{"1.2.3", "abc123", "2026-07-31T00:00:00Z"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, want it to contain %q", got, want)
		}
	}
}
