//go:build !(linux || darwin || freebsd)

package jit

func mapExecutable([]byte) ([]byte, error) {
	return nil, ErrNativeUnavailable
}

func unmapExecutable([]byte) error {
	return nil
}
