package sim_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xyproto/cinder/internal/codegen"
	"github.com/xyproto/cinder/internal/codeobj"
	"github.com/xyproto/cinder/internal/hostrt"
	"github.com/xyproto/cinder/internal/sim"
	"github.com/xyproto/cinder/internal/x64"
)

// assemble builds a program by hand; relocations must be codegen targets.
func assemble(h *sim.Host, build func(o *x64.Out)) *sim.Program {
	o := x64.NewOut()
	build(o)
	code, relocs, err := o.Finish()
	Expect(err).NotTo(HaveOccurred())
	a := &codegen.Artifact{Name: "hand", Code: code}
	for _, r := range relocs {
		a.Relocations = append(a.Relocations, codegen.Relocation{Offset: r.Offset, Target: r.Target.(codegen.Target)})
	}
	p, err := h.Load(a, codegen.Bindings{})
	Expect(err).NotTo(HaveOccurred())
	return p
}

var _ = Describe("Machine", func() {
	var h *sim.Host

	BeforeEach(func() {
		h = sim.NewHost()
	})

	It("should return the first argument", func() {
		p := assemble(h, func(o *x64.Out) {
			o.MovMemToReg("rax", "rdi", 0)
			o.Ret()
		})
		x := h.New(codeobj.IntValue(100))
		Expect(p.Call(x)).To(Equal(x))
		Expect(p.Steps).To(Equal(2))
	})

	It("should reject a host call on a misaligned stack", func() {
		p := assemble(h, func(o *x64.Out) {
			o.MovMemToReg("rdi", "rdi", 0)
			o.MovRelocToReg("rax", codegen.Symbol(hostrt.IsTrue))
			o.CallRegister("rax")
			o.Ret()
		})
		_, err := p.Call(h.True())
		Expect(errors.Is(err, sim.ErrMisalignedCall)).To(BeTrue(), "got %v", err)
	})

	It("should leave junk above an int result", func() {
		p := assemble(h, func(o *x64.Out) {
			o.PushReg("rbx")
			o.MovMemToReg("rdi", "rdi", 0)
			o.MovRelocToReg("rax", codegen.Symbol(hostrt.IsTrue))
			o.CallRegister("rax")
			o.PopReg("rbx")
			o.Ret()
		})
		rax, err := p.Call(h.True())
		Expect(err).NotTo(HaveOccurred())
		Expect(rax & 0xffff_ffff).To(Equal(uint64(1)))
		Expect(rax >> 32).NotTo(BeZero())
	})

	It("should poison caller-saved registers after a host call", func() {
		p := assemble(h, func(o *x64.Out) {
			o.PushReg("rbx")
			o.MovMemToReg("rdi", "rdi", 0)
			o.MovRelocToReg("rax", codegen.Symbol(hostrt.IsTrue))
			o.CallRegister("rax")
			o.MovRegToReg("rax", "rdi")
			o.PopReg("rbx")
			o.Ret()
		})
		Expect(p.Call(h.None())).To(Equal(uint64(0xdead_dead_dead_dead)))
	})

	It("should raise UnboundLocalError for a variable index", func() {
		p := assemble(h, func(o *x64.Out) {
			o.PushReg("rbx")
			o.MovImmToReg("rdi", 3)
			o.MovRelocToReg("rax", codegen.Symbol(hostrt.UnboundLocal))
			o.CallRegister("rax")
			o.MovImmToReg("rax", 0)
			o.PopReg("rbx")
			o.Ret()
		})
		Expect(p.Call()).To(BeZero())
		Expect(h.Exception()).To(Equal("UnboundLocalError: local variable 3 referenced before assignment"))
	})

	It("should notice a clobbered callee-saved register", func() {
		p := assemble(h, func(o *x64.Out) {
			o.MovImmToReg("rbx", 1)
			o.Ret()
		})
		_, err := p.Call()
		Expect(errors.Is(err, sim.ErrCalleeSaved)).To(BeTrue(), "got %v", err)
	})

	It("should stop a runaway loop", func() {
		h.MaxSteps = 100
		p := assemble(h, func(o *x64.Out) {
			o.Label("spin")
			o.Jump("spin")
		})
		_, err := p.Call()
		Expect(errors.Is(err, sim.ErrStepLimit)).To(BeTrue(), "got %v", err)
	})

	It("should catch a use after free", func() {
		p := assemble(h, func(o *x64.Out) {
			o.MovMemToReg("rdi", "rdi", 0)
			o.AddImmToMem("rdi", 0, 1)
			o.Ret()
		})
		x := h.New(codeobj.IntValue(5))
		Expect(h.Decref(x)).To(Succeed())
		_, err := p.Call(x)
		var fault *sim.FaultError
		Expect(errors.As(err, &fault)).To(BeTrue(), "got %v", err)
		Expect(fault.Reason).To(ContainSubstring("use after free"))
	})

	It("should refuse to call an arbitrary address", func() {
		p := assemble(h, func(o *x64.Out) {
			o.PushReg("rbx")
			o.MovImmToReg("rax", 0x1234)
			o.CallRegister("rax")
			o.PopReg("rbx")
			o.Ret()
		})
		_, err := p.Call()
		Expect(err).To(MatchError(ContainSubstring("not a host primitive")))
	})
})

var _ = Describe("Heap", func() {
	var h *sim.Host

	BeforeEach(func() {
		h = sim.NewHost()
	})

	It("should free an object and its attributes", func() {
		obj := h.New(codeobj.ObjectValue(map[string]codeobj.Value{
			"bar": codeobj.StrValue("testing 123"),
			"ok":  codeobj.BoolValue(true),
		}))
		bar, ok := h.Attr(obj, "bar")
		Expect(ok).To(BeTrue())
		Expect(h.Live()).To(Equal(2))
		trueCount := h.Refcount(h.True())

		Expect(h.Decref(obj)).To(Succeed())
		Expect(h.Alive(obj)).To(BeFalse())
		Expect(h.Alive(bar)).To(BeFalse())
		Expect(h.Live()).To(BeZero())
		Expect(h.Refcount(h.True())).To(Equal(trueCount - 1))
	})

	It("should report a refcount underflow", func() {
		x := h.New(codeobj.IntValue(1))
		Expect(h.Decref(x)).To(Succeed())
		Expect(h.Decref(x)).To(MatchError(ContainSubstring("use after free")))
	})

	It("should bind a code object", func() {
		c := &codeobj.Code{
			Names:    []string{"echo"},
			Consts:   []codeobj.Value{codeobj.NoneValue(), codeobj.IntValue(3)},
			Builtins: map[string]codeobj.Value{"echo": codeobj.NativeValue("identity")},
		}
		b := h.Bind(c)
		Expect(b.Consts).To(HaveLen(2))
		Expect(b.Consts[0]).To(Equal(uintptr(h.None())))
		Expect(b.Names).To(HaveLen(1))
		Expect(h.Describe(uint64(b.Builtins))).To(Equal("{echo}"))
		Expect(h.Live()).To(BeNumerically(">", 0))
		Expect(b.Release()).To(Succeed())
		Expect(h.Live()).To(BeZero())
	})

	It("should resolve every symbol", func() {
		table, err := h.Table()
		Expect(err).NotTo(HaveOccurred())
		Expect(uint64(table.Address(hostrt.True))).To(Equal(h.True()))
		Expect(uint64(table.Address(hostrt.False))).To(Equal(h.False()))
		Expect(table.Address(hostrt.Dealloc)).NotTo(BeZero())
	})
})
