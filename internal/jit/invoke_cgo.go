//go:build cgo && amd64 && (linux || darwin || freebsd)

package jit

/*
#include <stdint.h>

typedef uintptr_t (*cinder_entry)(void *);

static uintptr_t cinder_invoke(uintptr_t entry, void *args) {
	return ((cinder_entry)entry)(args);
}
*/
import "C"

import "unsafe"

// invoke calls through C so the generated code runs on a system stack
// with the SysV calling convention.
func invoke(entry uintptr, args unsafe.Pointer) (uintptr, error) {
	return uintptr(C.cinder_invoke(C.uintptr_t(entry), args)), nil
}
