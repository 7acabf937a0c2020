// Completion: 100% - x86-64 interpreter complete
package sim

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/arch/x86/x86asm"

	"github.com/xyproto/cinder/internal/hostrt"
)

var (
	ErrStepLimit      = errors.New("step limit reached")
	ErrMisalignedCall = errors.New("call with rsp not 16-byte aligned")
	ErrUnsupported    = errors.New("unsupported instruction")
	ErrCalleeSaved    = errors.New("callee-saved register not restored")
)

// ExecError is a fault at one instruction of a simulated program.
type ExecError struct {
	Program string
	Offset  uint64
	Inst    string
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s+%#x: %s: %v", e.Program, e.Offset, e.Inst, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Values callee-saved registers hold on entry, to catch clobbering.
var calleeSaved = map[x86asm.Reg]uint64{
	x86asm.RBX: 0xb0b0_0000_0000_00b0,
	x86asm.RBP: 0xb0b0_0000_0000_00b1,
	x86asm.R12: 0xb0b0_0000_0000_00b2,
	x86asm.R13: 0xb0b0_0000_0000_00b3,
	x86asm.R14: 0xb0b0_0000_0000_00b4,
	x86asm.R15: 0xb0b0_0000_0000_00b5,
}

// Caller-saved registers are overwritten with this after every host call.
const poison uint64 = 0xdead_dead_dead_dead

var callerSaved = []x86asm.Reg{
	x86asm.RCX, x86asm.RDX, x86asm.RSI, x86asm.RDI,
	x86asm.R8, x86asm.R9, x86asm.R10, x86asm.R11,
}

// Program is generated code mapped into a Host.
type Program struct {
	host *Host
	Name string
	Code []byte
	base uint64

	decoded map[uint64]x86asm.Inst

	// Steps is the instruction count of the last call.
	Steps int
	// Trace, when set, receives every executed instruction.
	Trace io.Writer
}

type machine struct {
	prog *Program
	host *Host

	regs           [16]uint64
	zf, sf, of, cf bool
	rip            uint64
	done           bool
}

type execFunc func(m *machine, inst x86asm.Inst) error

var execs map[x86asm.Op]execFunc

func init() {
	execs = map[x86asm.Op]execFunc{
		x86asm.MOV:    (*machine).execMov,
		x86asm.MOVSXD: (*machine).execMovsxd,
		x86asm.LEA:    (*machine).execLea,
		x86asm.PUSH:   (*machine).execPush,
		x86asm.POP:    (*machine).execPop,
		x86asm.ADD:    (*machine).execArith,
		x86asm.SUB:    (*machine).execArith,
		x86asm.AND:    (*machine).execArith,
		x86asm.CMP:    (*machine).execArith,
		x86asm.JMP:    (*machine).execJump,
		x86asm.JE:     (*machine).execJump,
		x86asm.JNE:    (*machine).execJump,
		x86asm.JL:     (*machine).execJump,
		x86asm.JGE:    (*machine).execJump,
		x86asm.JG:     (*machine).execJump,
		x86asm.JLE:    (*machine).execJump,
		x86asm.JA:     (*machine).execJump,
		x86asm.JB:     (*machine).execJump,
		x86asm.CALL:   (*machine).execCall,
		x86asm.RET:    (*machine).execRet,
	}
}

// Call runs the program with rdi pointing at an array of args, which stay
// owned by the caller. It returns rax: a new reference, or 0 after an
// error the host raised.
func (p *Program) Call(args ...uint64) (uint64, error) {
	h := p.host
	if !h.stackMapped {
		h.mem.mapRegion(stackTop-stackSize, stackSize, "stack")
		h.stackMapped = true
	}
	h.mem.mapRegion(argsBase, max(wordSize*uint64(len(args)), wordSize), "args")
	defer h.mem.unmapRegion(argsBase, "argument array")
	for i, a := range args {
		h.mem.words[argsBase+wordSize*uint64(i)] = a
	}

	m := &machine{prog: p, host: h, rip: p.base}
	for r, v := range calleeSaved {
		m.set(r, v)
	}
	entrySP := stackTop - 64
	m.set(x86asm.RSP, entrySP-wordSize)
	h.mem.words[entrySP-wordSize] = exitAddress
	m.set(x86asm.RDI, argsBase)

	limit := h.MaxSteps
	if limit <= 0 {
		limit = DefaultMaxSteps
	}
	p.Steps = 0
	for !m.done {
		if p.Steps >= limit {
			return 0, &ExecError{Program: p.Name, Offset: m.rip - p.base, Inst: "-", Err: ErrStepLimit}
		}
		p.Steps++
		if err := m.step(); err != nil {
			return 0, err
		}
	}

	for r, v := range calleeSaved {
		if m.get(r) != v {
			return 0, fmt.Errorf("%s: %w: %s", p.Name, ErrCalleeSaved, r)
		}
	}
	if m.get(x86asm.RSP) != entrySP {
		return 0, fmt.Errorf("%s: %w: rsp off by %d", p.Name, ErrCalleeSaved, int64(m.get(x86asm.RSP)-entrySP))
	}
	return m.get(x86asm.RAX), nil
}

func (p *Program) decode(offset uint64) (x86asm.Inst, error) {
	if inst, ok := p.decoded[offset]; ok {
		return inst, nil
	}
	if offset >= uint64(len(p.Code)) {
		return x86asm.Inst{}, &FaultError{Addr: p.base + offset, Reason: "execute outside the code"}
	}
	inst, err := x86asm.Decode(p.Code[offset:], 64)
	if err != nil {
		return x86asm.Inst{}, err
	}
	if p.decoded == nil {
		p.decoded = make(map[uint64]x86asm.Inst)
	}
	p.decoded[offset] = inst
	return inst, nil
}

func (m *machine) step() error {
	offset := m.rip - m.prog.base
	inst, err := m.prog.decode(offset)
	if err != nil {
		return &ExecError{Program: m.prog.Name, Offset: offset, Inst: "?", Err: err}
	}
	if m.prog.Trace != nil {
		fmt.Fprintf(m.prog.Trace, "%6x  %s\n", offset, x86asm.IntelSyntax(inst, m.rip, nil))
	}
	exec, ok := execs[inst.Op]
	if !ok {
		err = ErrUnsupported
	} else {
		m.rip += uint64(inst.Len)
		err = exec(m, inst)
	}
	if err != nil {
		return &ExecError{Program: m.prog.Name, Offset: offset, Inst: x86asm.IntelSyntax(inst, m.prog.base+offset, nil), Err: err}
	}
	return nil
}

func regSlot(r x86asm.Reg) (int, bool, bool) {
	switch {
	case r >= x86asm.RAX && r <= x86asm.R15:
		return int(r - x86asm.RAX), true, true
	case r >= x86asm.EAX && r <= x86asm.R15L:
		return int(r - x86asm.EAX), false, true
	}
	return 0, false, false
}

func (m *machine) get(r x86asm.Reg) uint64 {
	i, wide, _ := regSlot(r)
	if !wide {
		return m.regs[i] & 0xffff_ffff
	}
	return m.regs[i]
}

// set writes a register; a 32-bit write clears the upper half.
func (m *machine) set(r x86asm.Reg, v uint64) {
	i, wide, _ := regSlot(r)
	if !wide {
		v &= 0xffff_ffff
	}
	m.regs[i] = v
}

func (m *machine) address(mem x86asm.Mem) (uint64, error) {
	if mem.Segment != 0 || mem.Base == x86asm.RIP {
		return 0, ErrUnsupported
	}
	var addr uint64
	if mem.Base != 0 {
		addr = m.get(mem.Base)
	}
	if mem.Index != 0 {
		addr += m.get(mem.Index) * uint64(mem.Scale)
	}
	return addr + uint64(mem.Disp), nil
}

func (m *machine) read(inst x86asm.Inst, arg x86asm.Arg) (uint64, error) {
	switch a := arg.(type) {
	case x86asm.Reg:
		if _, _, ok := regSlot(a); !ok {
			return 0, ErrUnsupported
		}
		return m.get(a), nil
	case x86asm.Imm:
		return uint64(int64(a)), nil
	case x86asm.Mem:
		if inst.MemBytes != 8 {
			return 0, ErrUnsupported
		}
		addr, err := m.address(a)
		if err != nil {
			return 0, err
		}
		return m.host.mem.read(addr)
	}
	return 0, ErrUnsupported
}

func (m *machine) write(inst x86asm.Inst, arg x86asm.Arg, v uint64) error {
	switch a := arg.(type) {
	case x86asm.Reg:
		if _, _, ok := regSlot(a); !ok {
			return ErrUnsupported
		}
		m.set(a, v)
		return nil
	case x86asm.Mem:
		if inst.MemBytes != 8 {
			return ErrUnsupported
		}
		addr, err := m.address(a)
		if err != nil {
			return err
		}
		return m.host.mem.write(addr, v)
	}
	return ErrUnsupported
}

func (m *machine) push(v uint64) error {
	sp := m.get(x86asm.RSP) - wordSize
	if err := m.host.mem.write(sp, v); err != nil {
		return err
	}
	m.set(x86asm.RSP, sp)
	return nil
}

func (m *machine) pop() (uint64, error) {
	sp := m.get(x86asm.RSP)
	v, err := m.host.mem.read(sp)
	if err != nil {
		return 0, err
	}
	m.set(x86asm.RSP, sp+wordSize)
	return v, nil
}

func (m *machine) execMov(inst x86asm.Inst) error {
	v, err := m.read(inst, inst.Args[1])
	if err != nil {
		return err
	}
	return m.write(inst, inst.Args[0], v)
}

func (m *machine) execMovsxd(inst x86asm.Inst) error {
	src, ok := inst.Args[1].(x86asm.Reg)
	if !ok {
		return ErrUnsupported
	}
	return m.write(inst, inst.Args[0], uint64(int64(int32(m.get(src)))))
}

func (m *machine) execLea(inst x86asm.Inst) error {
	mem, ok := inst.Args[1].(x86asm.Mem)
	if !ok {
		return ErrUnsupported
	}
	addr, err := m.address(mem)
	if err != nil {
		return err
	}
	return m.write(inst, inst.Args[0], addr)
}

func (m *machine) execPush(inst x86asm.Inst) error {
	v, err := m.read(inst, inst.Args[0])
	if err != nil {
		return err
	}
	return m.push(v)
}

func (m *machine) execPop(inst x86asm.Inst) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	return m.write(inst, inst.Args[0], v)
}

// execArith runs add, sub, and and cmp with 64-bit flag semantics.
func (m *machine) execArith(inst x86asm.Inst) error {
	a, err := m.read(inst, inst.Args[0])
	if err != nil {
		return err
	}
	b, err := m.read(inst, inst.Args[1])
	if err != nil {
		return err
	}
	var r uint64
	switch inst.Op {
	case x86asm.ADD:
		r = a + b
		m.cf = r < a
		m.of = (^(a ^ b)&(a^r))>>63 == 1
	case x86asm.SUB, x86asm.CMP:
		r = a - b
		m.cf = a < b
		m.of = ((a^b)&(a^r))>>63 == 1
	case x86asm.AND:
		r = a & b
		m.cf, m.of = false, false
	}
	m.zf = r == 0
	m.sf = int64(r) < 0
	if inst.Op == x86asm.CMP {
		return nil
	}
	return m.write(inst, inst.Args[0], r)
}

func (m *machine) taken(op x86asm.Op) bool {
	switch op {
	case x86asm.JE:
		return m.zf
	case x86asm.JNE:
		return !m.zf
	case x86asm.JL:
		return m.sf != m.of
	case x86asm.JGE:
		return m.sf == m.of
	case x86asm.JG:
		return !m.zf && m.sf == m.of
	case x86asm.JLE:
		return m.zf || m.sf != m.of
	case x86asm.JA:
		return !m.cf && !m.zf
	case x86asm.JB:
		return m.cf
	}
	return true
}

func (m *machine) execJump(inst x86asm.Inst) error {
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return ErrUnsupported
	}
	if m.taken(inst.Op) {
		m.rip += uint64(int64(rel))
	}
	return nil
}

// execCall runs a host primitive. Only calls through a register to a known
// primitive address are allowed.
func (m *machine) execCall(inst x86asm.Inst) error {
	target, err := m.read(inst, inst.Args[0])
	if err != nil {
		return err
	}
	s, ok := m.host.primitives[target]
	if !ok {
		return &FaultError{Addr: target, Reason: "call to something that is not a host primitive"}
	}
	if m.get(x86asm.RSP)%16 != 0 {
		return fmt.Errorf("%w: rsp=%#x calling %s", ErrMisalignedCall, m.get(x86asm.RSP), s)
	}
	result, err := m.primitive(s)
	if err != nil {
		return fmt.Errorf("%s: %w", s, err)
	}
	for _, r := range callerSaved {
		m.set(r, poison)
	}
	m.set(x86asm.RAX, result)
	return nil
}

func (m *machine) execRet(x86asm.Inst) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	if v != exitAddress {
		return &FaultError{Addr: v, Reason: "return to an unknown address"}
	}
	m.done = true
	return nil
}

func (m *machine) primitive(s hostrt.Symbol) (uint64, error) {
	h := m.host
	rdi, rsi, rdx := m.get(x86asm.RDI), m.get(x86asm.RSI), m.get(x86asm.RDX)
	h.log.Debugf("%s(%#x, %#x, %#x)", s, rdi, rsi, rdx)
	switch s {
	case hostrt.GetAttr:
		return h.getAttr(rdi, rsi)
	case hostrt.SetAttr:
		status, err := h.setAttr(rdi, rsi, rdx)
		return intResult(status), err
	case hostrt.IsTrue:
		status, err := h.isTrue(rdi)
		return intResult(status), err
	case hostrt.LoadGlobal:
		return h.loadGlobal(rdi, rsi, rdx)
	case hostrt.Call:
		return h.call(rdi, rsi, rdx)
	case hostrt.Dealloc:
		return poison, h.dealloc(rdi)
	case hostrt.NameError:
		return poison, h.nameError(rdi)
	case hostrt.UnboundLocal:
		h.unboundLocal(int32(rdi))
		return poison, nil
	}
	return 0, ErrUnsupported
}
