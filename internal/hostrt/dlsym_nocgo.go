//go:build !cgo || !(linux || darwin || freebsd)

package hostrt

import "errors"

// ErrNoProcessSymbols is returned by ProcessSource in builds without cgo.
var ErrNoProcessSymbols = errors.New("process symbol lookup needs cgo on linux, darwin or freebsd")

// ProcessSource is unavailable in this build.
func ProcessSource() (Source, error) {
	return nil, ErrNoProcessSymbols
}
