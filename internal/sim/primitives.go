// Completion: 100% - Host primitives complete
package sim

import (
	"fmt"

	"github.com/xyproto/cinder/internal/codeobj"
)

// Int-returning primitives leave junk in the upper half of rax, as a C
// function returning int may.
const junkHigh uint64 = 0x5a5a_5a5a << 32

func intResult(v int32) uint64 {
	return junkHigh | uint64(uint32(v))
}

func (h *Host) getAttr(obj, name uint64) (uint64, error) {
	o, err := h.lookup(obj)
	if err != nil {
		return 0, err
	}
	n, err := h.str(name)
	if err != nil {
		return 0, err
	}
	var attrs map[string]uint64
	switch o.kind {
	case codeobj.Object:
		attrs = o.attrs
	case kindModule:
		attrs = h.objects[o.dict].items
	}
	if a, ok := attrs[n]; ok {
		return h.newRef(a), nil
	}
	h.raise(fmt.Sprintf("AttributeError: %s has no attribute %q", o.describe(), n))
	return 0, nil
}

func (h *Host) setAttr(obj, name, value uint64) (int32, error) {
	o, err := h.lookup(obj)
	if err != nil {
		return 0, err
	}
	n, err := h.str(name)
	if err != nil {
		return 0, err
	}
	if _, err := h.lookup(value); err != nil {
		return 0, err
	}
	if o.kind != codeobj.Object {
		h.raise(fmt.Sprintf("AttributeError: cannot set %q on %s", n, o.describe()))
		return -1, nil
	}
	h.newRef(value)
	old, had := o.attrs[n]
	o.attrs[n] = value
	if had {
		if err := h.Decref(old); err != nil {
			return 0, err
		}
	}
	return 0, nil
}

func (h *Host) isTrue(obj uint64) (int32, error) {
	o, err := h.lookup(obj)
	if err != nil {
		return 0, err
	}
	t, ok := h.truth(o)
	if !ok {
		h.raise("ValueError: truth value of " + o.describe())
		return -1, nil
	}
	if t {
		return 1, nil
	}
	return 0, nil
}

func (h *Host) dict(addr uint64) (*object, error) {
	o, err := h.lookup(addr)
	if err != nil {
		return nil, err
	}
	if o.kind != kindDict {
		return nil, &FaultError{Addr: addr, Reason: "expected a dict, got " + o.describe()}
	}
	return o, nil
}

// loadGlobal returns a borrowed reference.
func (h *Host) loadGlobal(globals, builtins, name uint64) (uint64, error) {
	g, err := h.dict(globals)
	if err != nil {
		return 0, err
	}
	b, err := h.dict(builtins)
	if err != nil {
		return 0, err
	}
	n, err := h.str(name)
	if err != nil {
		return 0, err
	}
	if v, ok := g.items[n]; ok {
		return v, nil
	}
	if v, ok := b.items[n]; ok {
		return v, nil
	}
	return 0, nil
}

// nameError raises NameError for name unless an error is already pending.
func (h *Host) nameError(name uint64) error {
	n, err := h.str(name)
	if err != nil {
		return err
	}
	h.raise(fmt.Sprintf("NameError: name %q is not defined", n))
	return nil
}

func (h *Host) unboundLocal(index int32) {
	h.raise(fmt.Sprintf("UnboundLocalError: local variable %d referenced before assignment", index))
}

// call pops the callable and argc arguments below *ppStack, releasing each
// of them, and returns a new reference to the result.
func (h *Host) call(ppStack, argc, kwnames uint64) (uint64, error) {
	if kwnames != 0 {
		return 0, &FaultError{Addr: kwnames, Reason: "keyword names are not supported"}
	}
	sp, err := h.mem.read(ppStack)
	if err != nil {
		return 0, err
	}
	base := sp - wordSize*(argc+1)
	items := make([]uint64, argc+1)
	for i := range items {
		if items[i], err = h.mem.read(base + wordSize*uint64(i)); err != nil {
			return 0, err
		}
		if _, err := h.lookup(items[i]); err != nil {
			return 0, err
		}
	}

	var result uint64
	fn := h.objects[items[0]]
	if impl, ok := h.natives[fn.value.Str]; ok && fn.kind == codeobj.Native {
		result = impl(h, items[1:])
	} else if fn.kind == codeobj.Native {
		h.raise(fmt.Sprintf("NameError: no native function %q", fn.value.Str))
	} else {
		h.raise(fmt.Sprintf("TypeError: %s is not callable", fn.describe()))
	}

	for sp > base {
		sp -= wordSize
		v, err := h.mem.read(sp)
		if err != nil {
			return 0, err
		}
		if err := h.mem.write(ppStack, sp); err != nil {
			return 0, err
		}
		if err := h.Decref(v); err != nil {
			return 0, err
		}
	}
	return result, nil
}
