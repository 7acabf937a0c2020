// Completion: 100% - Native loader complete
package jit

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/xyproto/cinder/internal/codegen"
	"github.com/xyproto/cinder/internal/engine"
)

// NativeFunction is linked code in executable memory. It takes a pointer
// to its argument array and returns a new reference, or 0 after an error
// the host has raised.
//
// The code embeds the addresses of the constants, names and namespaces it
// was loaded with. The caller keeps those objects alive until Close.
type NativeFunction struct {
	Name  string
	Entry uintptr
	Size  int

	mem []byte
}

// Load links a translation against the resolved host symbols and maps it
// executable.
func (c *Compiler) Load(tr *Translation, b codegen.Bindings) (*NativeFunction, error) {
	if host := engine.Host(); !host.CanRunNative() {
		return nil, fmt.Errorf("load %s on %s: %w", tr.Artifact.Name, host, ErrNativeUnavailable)
	}
	table, err := c.resolver.Table()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", tr.Artifact.Name, err)
	}
	code, err := tr.Artifact.Link(table, b)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", tr.Artifact.Name, err)
	}
	mem, err := mapExecutable(code)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", tr.Artifact.Name, err)
	}
	f := &NativeFunction{
		Name:  tr.Artifact.Name,
		Entry: uintptr(unsafe.Pointer(&mem[0])),
		Size:  len(code),
		mem:   mem,
	}
	c.log.Debugf("loaded %s at %#x, %d bytes", f.Name, f.Entry, f.Size)
	return f, nil
}

// Call runs the function on the calling thread.
func (f *NativeFunction) Call(args unsafe.Pointer) (uintptr, error) {
	if f.mem == nil {
		return 0, fmt.Errorf("call %s: %w", f.Name, errClosed)
	}
	return invoke(f.Entry, args)
}

var errClosed = errors.New("function is closed")

// Close unmaps the code. The function must not be running.
func (f *NativeFunction) Close() error {
	if f.mem == nil {
		return nil
	}
	err := unmapExecutable(f.mem)
	f.mem = nil
	f.Entry = 0
	return err
}
