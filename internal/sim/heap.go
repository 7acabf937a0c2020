// Completion: 100% - Toy object heap complete
package sim

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/xyproto/cinder/internal/codeobj"
)

// Kinds the heap has beyond the codeobj constants.
const (
	kindDict   codeobj.Kind = "dict"
	kindModule codeobj.Kind = "module"
)

// Every object is two words: the refcount, then a serial number.
const objectSize = 2 * wordSize

// Refcount given to None, True and False, which are never freed.
const immortalRefcount = 1 << 40

type object struct {
	addr   uint64
	serial uint64
	kind   codeobj.Kind
	value  codeobj.Value // scalar payload for none, bool, int, str and function

	attrs map[string]uint64 // object: owned references
	items map[string]uint64 // dict: owned references
	dict  uint64            // module: owned reference to its dict

	brokenTruth bool // truth testing raises
	immortal    bool
}

func (o *object) describe() string {
	switch o.kind {
	case codeobj.Object:
		return fmt.Sprintf("object #%d", o.serial)
	case kindDict:
		return fmt.Sprintf("dict #%d", o.serial)
	case kindModule:
		return fmt.Sprintf("module #%d", o.serial)
	}
	return fmt.Sprintf("%s #%d", o.value, o.serial)
}

func (h *Host) alloc(kind codeobj.Kind, value codeobj.Value) *object {
	h.serial++
	o := &object{addr: h.nextObject, serial: h.serial, kind: kind, value: value}
	h.nextObject += objectSize
	h.mem.mapRegion(o.addr, objectSize, "heap")
	h.mem.words[o.addr] = 1
	h.mem.words[o.addr+wordSize] = o.serial
	h.objects[o.addr] = o
	return o
}

// New creates an object for v and returns a new reference to it. None and
// the booleans are the shared singletons.
func (h *Host) New(v codeobj.Value) uint64 {
	switch v.Kind {
	case codeobj.None:
		return h.newRef(h.none)
	case codeobj.Bool:
		if v.Bool {
			return h.newRef(h.trueObj)
		}
		return h.newRef(h.falseObj)
	case codeobj.Object:
		o := h.alloc(codeobj.Object, codeobj.Value{Kind: codeobj.Object})
		o.attrs = make(map[string]uint64, len(v.Attrs))
		for _, name := range slices.Sorted(maps.Keys(v.Attrs)) {
			o.attrs[name] = h.New(v.Attrs[name])
		}
		return o.addr
	}
	return h.alloc(v.Kind, v).addr
}

// NewDict creates a dict holding new objects for entries.
func (h *Host) NewDict(entries map[string]codeobj.Value) uint64 {
	o := h.alloc(kindDict, codeobj.Value{Kind: kindDict})
	o.items = make(map[string]uint64, len(entries))
	for _, name := range slices.Sorted(maps.Keys(entries)) {
		o.items[name] = h.New(entries[name])
	}
	return o.addr
}

// NewModule creates a module whose dict holds entries.
func (h *Host) NewModule(entries map[string]codeobj.Value) uint64 {
	o := h.alloc(kindModule, codeobj.Value{Kind: kindModule})
	o.dict = h.NewDict(entries)
	return o.addr
}

// ModuleDict returns a borrowed reference to a module's dict.
func (h *Host) ModuleDict(module uint64) (uint64, bool) {
	o, ok := h.objects[module]
	if !ok || o.kind != kindModule {
		return 0, false
	}
	return o.dict, true
}

// NewBroken creates an object whose truth test raises.
func (h *Host) NewBroken() uint64 {
	o := h.alloc(codeobj.Object, codeobj.Value{Kind: codeobj.Object})
	o.attrs = map[string]uint64{}
	o.brokenTruth = true
	return o.addr
}

func (h *Host) newRef(addr uint64) uint64 {
	h.mem.words[addr]++
	return addr
}

func (h *Host) lookup(addr uint64) (*object, error) {
	o, ok := h.objects[addr]
	if !ok {
		if what, freed := h.mem.freed[addr]; freed {
			return nil, &FaultError{Addr: addr, Reason: "use after free of " + what}
		}
		return nil, &FaultError{Addr: addr, Reason: "not an object"}
	}
	return o, nil
}

// Refcount reads an object's count from simulated memory.
func (h *Host) Refcount(addr uint64) int64 {
	return int64(h.mem.words[addr])
}

// Alive reports whether addr is a live object.
func (h *Host) Alive(addr uint64) bool {
	_, ok := h.objects[addr]
	return ok
}

// Incref takes a new reference on behalf of the caller.
func (h *Host) Incref(addr uint64) error {
	if _, err := h.lookup(addr); err != nil {
		return err
	}
	h.mem.words[addr]++
	return nil
}

// Decref releases a reference and frees the object when none are left.
func (h *Host) Decref(addr uint64) error {
	if _, err := h.lookup(addr); err != nil {
		return err
	}
	if h.mem.words[addr] == 0 {
		return &FaultError{Addr: addr, Write: true, Reason: "refcount underflow"}
	}
	h.mem.words[addr]--
	if h.mem.words[addr] == 0 {
		return h.dealloc(addr)
	}
	return nil
}

func (h *Host) dealloc(addr uint64) error {
	o, err := h.lookup(addr)
	if err != nil {
		return err
	}
	if o.immortal {
		return &FaultError{Addr: addr, Write: true, Reason: "dealloc of " + o.describe()}
	}
	if rc := h.mem.words[addr]; rc != 0 {
		return &FaultError{Addr: addr, Write: true, Reason: fmt.Sprintf("dealloc of %s with refcount %d", o.describe(), rc)}
	}
	h.log.Debugf("free %s", o.describe())
	delete(h.objects, addr)
	h.mem.unmapRegion(addr, o.describe())

	var children []uint64
	for _, name := range slices.Sorted(maps.Keys(o.attrs)) {
		children = append(children, o.attrs[name])
	}
	for _, name := range slices.Sorted(maps.Keys(o.items)) {
		children = append(children, o.items[name])
	}
	if o.dict != 0 {
		children = append(children, o.dict)
	}
	for _, c := range children {
		if err := h.Decref(c); err != nil {
			return err
		}
	}
	return nil
}

// Live counts the freeable objects still allocated.
func (h *Host) Live() int {
	n := 0
	for _, o := range h.objects {
		if !o.immortal {
			n++
		}
	}
	return n
}

// Snapshot records the refcount of every live object.
func (h *Host) Snapshot() map[uint64]int64 {
	counts := make(map[uint64]int64, len(h.objects))
	for addr := range h.objects {
		counts[addr] = h.Refcount(addr)
	}
	return counts
}

// Attr returns a borrowed reference to an attribute of an object.
func (h *Host) Attr(addr uint64, name string) (uint64, bool) {
	o, ok := h.objects[addr]
	if !ok || o.attrs == nil {
		return 0, false
	}
	a, ok := o.attrs[name]
	return a, ok
}

// Value converts a live object back to a codeobj.Value.
func (h *Host) Value(addr uint64) (codeobj.Value, bool) {
	o, ok := h.objects[addr]
	if !ok {
		return codeobj.Value{}, false
	}
	if o.kind != codeobj.Object {
		return o.value, true
	}
	v := codeobj.Value{Kind: codeobj.Object, Attrs: make(map[string]codeobj.Value, len(o.attrs))}
	for name, a := range o.attrs {
		v.Attrs[name], _ = h.Value(a)
	}
	return v, true
}

// Describe renders an object for reports.
func (h *Host) Describe(addr uint64) string {
	if addr == 0 {
		return "NULL"
	}
	o, ok := h.objects[addr]
	if !ok {
		return fmt.Sprintf("<dead %#x>", addr)
	}
	switch o.kind {
	case kindDict:
		return "{" + strings.Join(slices.Sorted(maps.Keys(o.items)), ", ") + "}"
	case kindModule:
		return "<module>"
	}
	v, _ := h.Value(addr)
	return v.String()
}

func (h *Host) str(addr uint64) (string, error) {
	o, err := h.lookup(addr)
	if err != nil {
		return "", err
	}
	if o.kind != codeobj.Str {
		return "", &FaultError{Addr: addr, Reason: "expected a str, got " + o.describe()}
	}
	return o.value.Str, nil
}

func (h *Host) truth(o *object) (bool, bool) {
	if o.brokenTruth {
		return false, false
	}
	switch o.kind {
	case codeobj.None:
		return false, true
	case codeobj.Bool:
		return o.value.Bool, true
	case codeobj.Int:
		return o.value.Int != 0, true
	case codeobj.Str:
		return o.value.Str != "", true
	case kindDict:
		return len(o.items) > 0, true
	}
	return true, true
}
