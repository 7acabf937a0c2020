//go:build linux || darwin || freebsd

package jit

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mapExecutable copies code into fresh pages that are writable while
// filling and executable afterwards, never both.
func mapExecutable(code []byte) ([]byte, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("no code to map")
	}
	pageSize := unix.Getpagesize()
	size := (len(code) + pageSize - 1) &^ (pageSize - 1)

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("mprotect: %w", err)
	}
	return mem, nil
}

func unmapExecutable(mem []byte) error {
	return unix.Munmap(mem)
}
