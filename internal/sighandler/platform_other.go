//go:build !unix

package sighandler

import (
	"errors"
	"os"
	"syscall"
)

type unsupportedPlatform struct{}

// SystemPlatform returns a platform that rejects every registration.
func SystemPlatform() Platform {
	return unsupportedPlatform{}
}

func (unsupportedPlatform) Sigaction(syscall.Signal, *Action, *Action) error {
	return errors.ErrUnsupported
}

func (unsupportedPlatform) SetAltStack(*AltStack) error {
	return nil
}

func (unsupportedPlatform) MinAltStackSize() int {
	return 0
}

func (unsupportedPlatform) Raise(syscall.Signal) error {
	return errors.ErrUnsupported
}

func (unsupportedPlatform) Exit(code int) {
	os.Exit(code)
}
