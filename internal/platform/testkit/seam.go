package testkit

import (
	"sync"
	"testing"
)

// seams guards package level vars that tests replace, like pg.newPool or store.sleep
var seams sync.Mutex

// Swap replaces *target for the rest of the test; the old value comes back in Cleanup
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	prev := *target
	*target = replacement
	t.Cleanup(func() { *target = prev })
}

// Serial holds the seam lock until the test ends
// call it before Swap in any test that may run next to another swapping test
func Serial(t *testing.T) {
	t.Helper()
	seams.Lock()
	t.Cleanup(seams.Unlock)
}
