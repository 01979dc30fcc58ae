//go:build linux

package sandbox

import (
	"fmt"

	landlock "github.com/landlock-lsm/go-landlock/landlock"
)

// Confine restricts filesystem access of the whole process to dirs using
// Landlock. On kernels without Landlock support this degrades to a no-op.
func Confine(dirs ...string) error {
	if err := landlock.V5.BestEffort().RestrictPaths(landlock.RWDirs(dirs...)); err != nil {
		return fmt.Errorf("applying landlock rules: %w", err)
	}
	return nil
}
