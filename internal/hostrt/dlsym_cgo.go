//go:build cgo && (linux || darwin || freebsd)

package hostrt

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type processSource struct {
	handle unsafe.Pointer
}

// ProcessSource looks symbols up in the running process and every shared
// object it has loaded, which is where an embedding host exports them.
func ProcessSource() (Source, error) {
	handle := C.dlopen(nil, C.RTLD_NOW)
	if handle == nil {
		return nil, fmt.Errorf("dlopen(NULL): %s", C.GoString(C.dlerror()))
	}
	return processSource{handle: handle}, nil
}

func (p processSource) Lookup(name string) (uintptr, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	C.dlerror()
	addr := C.dlsym(p.handle, cname)
	if addr == nil {
		return 0, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return uintptr(addr), nil
}
