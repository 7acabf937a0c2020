//go:build !(cgo && amd64 && (linux || darwin || freebsd))

package jit

import "unsafe"

func invoke(uintptr, unsafe.Pointer) (uintptr, error) {
	return 0, ErrNativeUnavailable
}
