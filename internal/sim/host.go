// Completion: 100% - Simulated host runtime complete
package sim

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/xyproto/cinder/internal/codegen"
	"github.com/xyproto/cinder/internal/codeobj"
	"github.com/xyproto/cinder/internal/hostrt"
)

// Host primitives live at fake addresses; calling one runs the Go
// implementation.
const (
	primitiveBase   uint64 = 0x0010_0000
	primitiveStride uint64 = 0x40
)

// DefaultMaxSteps bounds a single Program.Call.
const DefaultMaxSteps = 1_000_000

// nativeFunc implements a callable object. args are borrowed.
type nativeFunc func(h *Host, args []uint64) uint64

// Host is a toy object runtime with a simulated address space. It provides
// every primitive generated code calls and the singletons it compares
// against.
type Host struct {
	mem     *memory
	objects map[uint64]*object
	serial  uint64

	nextObject  uint64
	nextCode    uint64
	stackMapped bool

	none, trueObj, falseObj uint64

	primitives map[uint64]hostrt.Symbol
	natives    map[string]nativeFunc

	exception string
	log       commonlog.Logger

	// MaxSteps bounds each call; 0 means DefaultMaxSteps.
	MaxSteps int
}

// NewHost creates an empty heap holding only None, True and False.
func NewHost() *Host {
	h := &Host{
		mem:        newMemory(),
		objects:    make(map[uint64]*object),
		nextObject: heapBase,
		nextCode:   codeBase,
		primitives: make(map[uint64]hostrt.Symbol),
		log:        commonlog.GetLogger("cinder.sim"),
	}
	h.none = h.immortal(codeobj.NoneValue())
	h.trueObj = h.immortal(codeobj.BoolValue(true))
	h.falseObj = h.immortal(codeobj.BoolValue(false))
	for i, s := range hostrt.Symbols() {
		if !s.IsData() {
			h.primitives[primitiveBase+uint64(i)*primitiveStride] = s
		}
	}
	h.natives = map[string]nativeFunc{
		"identity": nativeIdentity,
		"none":     func(h *Host, _ []uint64) uint64 { return h.newRef(h.none) },
		"count":    func(h *Host, args []uint64) uint64 { return h.New(codeobj.IntValue(int64(len(args)))) },
		"truth":    nativeTruth,
		"fail":     nativeFail,
	}
	return h
}

func (h *Host) immortal(v codeobj.Value) uint64 {
	o := h.alloc(v.Kind, v)
	o.immortal = true
	h.mem.words[o.addr] = immortalRefcount
	return o.addr
}

// None, True and False return the singletons without taking a reference.
func (h *Host) None() uint64  { return h.none }
func (h *Host) True() uint64  { return h.trueObj }
func (h *Host) False() uint64 { return h.falseObj }

// Address is where the host keeps s.
func (h *Host) Address(s hostrt.Symbol) uint64 {
	switch s {
	case hostrt.True:
		return h.trueObj
	case hostrt.False:
		return h.falseObj
	}
	return primitiveBase + uint64(s)*primitiveStride
}

// Source exposes the host's symbols under their default names.
func (h *Host) Source() hostrt.MapSource {
	src := hostrt.MapSource{}
	for _, s := range hostrt.Symbols() {
		src[s.DefaultName()] = uintptr(h.Address(s))
	}
	return src
}

// Table resolves every symbol against the host.
func (h *Host) Table() (*hostrt.Table, error) {
	return hostrt.NewResolver(h.Source(), nil).Table()
}

// Exception is the error raised by the last failing primitive, or "".
func (h *Host) Exception() string {
	return h.exception
}

// ClearException forgets the pending error.
func (h *Host) ClearException() {
	h.exception = ""
}

func (h *Host) raise(msg string) {
	h.log.Debugf("raise %s", msg)
	if h.exception == "" {
		h.exception = msg
	}
}

// Binding is the heap side of a code object: its constants, names and
// namespaces, kept alive until Release.
type Binding struct {
	codegen.Bindings
	host *Host
	refs []uint64
}

// Bind allocates the objects c refers to.
func (h *Host) Bind(c *codeobj.Code) *Binding {
	b := &Binding{host: h}
	for _, v := range c.Consts {
		addr := h.New(v)
		b.refs = append(b.refs, addr)
		b.Consts = append(b.Consts, uintptr(addr))
	}
	for _, name := range c.Names {
		addr := h.New(codeobj.StrValue(name))
		b.refs = append(b.refs, addr)
		b.Names = append(b.Names, uintptr(addr))
	}
	globals := h.NewDict(c.Globals)
	b.refs = append(b.refs, globals)
	b.Globals = uintptr(globals)

	if c.Function().Builtins.Kind == codegen.ModuleLike {
		module := h.NewModule(c.Builtins)
		b.refs = append(b.refs, module)
		dict, _ := h.ModuleDict(module)
		b.Builtins = uintptr(dict)
	} else {
		builtins := h.NewDict(c.Builtins)
		b.refs = append(b.refs, builtins)
		b.Builtins = uintptr(builtins)
	}
	return b
}

// Release drops the binding's references.
func (b *Binding) Release() error {
	for _, addr := range b.refs {
		if err := b.host.Decref(addr); err != nil {
			return err
		}
	}
	b.refs = nil
	return nil
}

// Load links an artifact against the host and maps its code.
func (h *Host) Load(a *codegen.Artifact, b codegen.Bindings) (*Program, error) {
	table, err := h.Table()
	if err != nil {
		return nil, err
	}
	code, err := a.Link(table, b)
	if err != nil {
		return nil, err
	}
	p := &Program{host: h, Name: a.Name, Code: code, base: h.nextCode}
	// keep programs a page apart
	h.nextCode += (uint64(len(code)) + 0xfff) &^ 0xfff
	h.log.Debugf("load %s at %#x, %d bytes", a.Name, p.base, len(code))
	return p, nil
}

func nativeIdentity(h *Host, args []uint64) uint64 {
	if len(args) != 1 {
		h.raise(fmt.Sprintf("TypeError: identity() takes 1 argument (%d given)", len(args)))
		return 0
	}
	return h.newRef(args[0])
}

func nativeTruth(h *Host, args []uint64) uint64 {
	if len(args) != 1 {
		h.raise(fmt.Sprintf("TypeError: truth() takes 1 argument (%d given)", len(args)))
		return 0
	}
	o, err := h.lookup(args[0])
	if err != nil {
		h.raise(err.Error())
		return 0
	}
	t, ok := h.truth(o)
	if !ok {
		h.raise("ValueError: truth value of " + o.describe())
		return 0
	}
	if t {
		return h.newRef(h.trueObj)
	}
	return h.newRef(h.falseObj)
}

func nativeFail(h *Host, _ []uint64) uint64 {
	h.raise("RuntimeError: fail() called")
	return 0
}
