//go:build !linux

package sandbox

import "errors"

// Confine is only implemented on Linux.
func Confine(dirs ...string) error {
	return errors.New("landlock confinement is only available on linux")
}
