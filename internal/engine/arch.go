// Completion: 100% - Platform detection complete
package engine

import (
	"fmt"
	"runtime"
	"strings"
)

// Arch is a CPU architecture. Only x86-64 can run generated code; the
// others are named so that reports can say what the host is.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86_64
	ArchARM64
	ArchRiscv64
)

var archNames = [...]string{"unknown", "x86_64", "aarch64", "riscv64"}

var archAliases = map[string]Arch{
	"x86_64": ArchX86_64, "amd64": ArchX86_64, "x86-64": ArchX86_64,
	"aarch64": ArchARM64, "arm64": ArchARM64,
	"riscv64": ArchRiscv64, "rv64": ArchRiscv64,
}

func (a Arch) String() string {
	if a < 0 || int(a) >= len(archNames) {
		return archNames[ArchUnknown]
	}
	return archNames[a]
}

// ParseArch accepts GOARCH values and the usual aliases.
func ParseArch(s string) (Arch, error) {
	if a, ok := archAliases[strings.ToLower(s)]; ok {
		return a, nil
	}
	return ArchUnknown, fmt.Errorf("unsupported architecture: %s (supported: amd64, arm64, riscv64)", s)
}

// OS is an operating system, which decides the calling convention.
type OS int

const (
	OSUnknown OS = iota
	OSLinux
	OSDarwin
	OSFreeBSD
	OSWindows
)

var osNames = [...]string{"unknown", "linux", "darwin", "freebsd", "windows"}

var osAliases = map[string]OS{
	"linux":   OSLinux,
	"darwin":  OSDarwin,
	"macos":   OSDarwin,
	"freebsd": OSFreeBSD,
	"windows": OSWindows,
}

func (o OS) String() string {
	if o < 0 || int(o) >= len(osNames) {
		return osNames[OSUnknown]
	}
	return osNames[o]
}

// ParseOS accepts GOOS values and "macos".
func ParseOS(s string) (OS, error) {
	if o, ok := osAliases[strings.ToLower(s)]; ok {
		return o, nil
	}
	return OSUnknown, fmt.Errorf("unsupported OS: %s (supported: linux, darwin, freebsd, windows)", s)
}

// ABI is the C calling convention of a platform.
type ABI int

const (
	ABIUnknown ABI = iota
	// arguments in rdi, rsi, rdx; rbx, rbp and r12-r15 preserved
	ABISysV
	// arguments in rcx, rdx, r8; shadow space required
	ABIWin64
)

func (a ABI) String() string {
	switch a {
	case ABISysV:
		return "System V"
	case ABIWin64:
		return "Win64"
	}
	return "unknown"
}

// Platform is an architecture and an operating system.
type Platform struct {
	Arch Arch
	OS   OS
}

// Host returns the platform this binary was built for.
func Host() Platform {
	arch, _ := ParseArch(runtime.GOARCH)
	os, _ := ParseOS(runtime.GOOS)
	return Platform{Arch: arch, OS: os}
}

func (p Platform) String() string {
	return fmt.Sprintf("%s-%s", p.Arch, p.OS)
}

// ABI returns the calling convention native code on p follows.
func (p Platform) ABI() ABI {
	switch p.OS {
	case OSLinux, OSDarwin, OSFreeBSD:
		return ABISysV
	case OSWindows:
		return ABIWin64
	}
	return ABIUnknown
}

// CanRunNative reports whether generated code can execute directly: it is
// x86-64 and calls the host with the System V convention.
func (p Platform) CanRunNative() bool {
	return p.Arch == ArchX86_64 && p.ABI() == ABISysV
}
