package codegen

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"golang.org/x/arch/x86/x86asm"

	"github.com/xyproto/cinder/internal/bytecode"
	"github.com/xyproto/cinder/internal/hostrt"
	"github.com/xyproto/cinder/internal/ir"
)

func cfg(t *testing.T, listing string) *ir.ControlFlowGraph {
	t.Helper()
	code, err := bytecode.ParseListing(listing)
	if err != nil {
		t.Fatalf("ParseListing failed: %v", err)
	}
	g, err := bytecode.DisassembleCFG(code)
	if err != nil {
		t.Fatalf("DisassembleCFG failed: %v", err)
	}
	return g
}

func function(args, locals, consts, names int) *Function {
	return &Function{
		Name:      "f",
		ArgCount:  args,
		NLocals:   locals,
		NumConsts: consts,
		NumNames:  names,
		Globals:   Namespace{Kind: Mapping},
		Builtins:  Namespace{Kind: ModuleLike},
	}
}

// decodeAll decodes the code linearly and fails on any undecodable byte
func decodeAll(t *testing.T, code []byte) []x86asm.Inst {
	t.Helper()
	var insts []x86asm.Inst
	for pc := 0; pc < len(code); {
		inst, err := x86asm.Decode(code[pc:], 64)
		if err != nil {
			t.Fatalf("decode at %#x: %v", pc, err)
		}
		insts = append(insts, inst)
		pc += inst.Len
	}
	return insts
}

const everything = `
    LOAD_GLOBAL 0
    LOAD_FAST 0
    LOAD_ATTR 1
    CALL_FUNCTION 1
    STORE_FAST 1
    LOAD_FAST 1
    LOAD_CONST 0
    COMPARE_OP 8
    UNARY_NOT
    POP_JUMP_IF_FALSE @other
    LOAD_FAST 0
    LOAD_FAST 1
    STORE_ATTR 1
    SETUP_LOOP @after
top:
    LOAD_FAST 1
    JUMP_IF_TRUE_OR_POP @exit
    LOAD_CONST 0
    POP_TOP
    JUMP_ABSOLUTE @top
exit:
    POP_BLOCK
after:
    LOAD_CONST 0
    RETURN_VALUE
other:
    LOAD_FAST 1
    RETURN_VALUE
`

// TestGenerateDecodes tests that every supported construct produces code
// that decodes cleanly and ends in a single ret
func TestGenerateDecodes(t *testing.T) {
	a, err := Generate(cfg(t, everything), function(1, 2, 1, 2))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	insts := decodeAll(t, a.Code)
	rets := 0
	for _, inst := range insts {
		if inst.Op == x86asm.RET {
			rets++
		}
	}
	if rets != 1 {
		t.Errorf("got %d ret instructions, want 1", rets)
	}
	if a.FrameSlots != 2 || a.BlockStackDepth != 1 {
		t.Errorf("frame %d slots, %d block slots", a.FrameSlots, a.BlockStackDepth)
	}

	seen := map[string]bool{}
	for _, r := range a.Relocations {
		seen[r.Target.String()] = true
		if got := binary.LittleEndian.Uint64(a.Code[r.Offset:]); got != 0xDEADBEEFDEADBEEF {
			t.Errorf("relocation %s at %d holds %#x", r.Target, r.Offset, got)
		}
	}
	for _, want := range []string{"globals", "builtins", "name[0]", "name[1]", "const[0]"} {
		if !seen[want] {
			t.Errorf("no relocation for %s", want)
		}
	}
	for _, s := range hostrt.Symbols() {
		if !seen[s.String()] {
			t.Errorf("no relocation for symbol %s", s)
		}
	}
}

// TestPrologue tests the saved registers and the frame size
func TestPrologue(t *testing.T) {
	a, err := Generate(cfg(t, "LOAD_FAST 0\nRETURN_VALUE\n"), function(1, 3, 0, 0))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	insts := decodeAll(t, a.Code)
	var pushed []string
	for _, inst := range insts[:4] {
		if inst.Op != x86asm.PUSH {
			t.Fatalf("prologue starts with %v", inst)
		}
		pushed = append(pushed, inst.Args[0].String())
	}
	if got := strings.Join(pushed, " "); got != "RBP R12 R13 RBX" {
		t.Errorf("pushed %s", got)
	}
	found := false
	for _, inst := range insts {
		if inst.Op == x86asm.SUB && inst.Args[0] == x86asm.RSP {
			if imm, ok := inst.Args[1].(x86asm.Imm); ok && imm == 24 {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("no sub rsp, 24 for three variable slots")
	}
}

// TestHostCallsAligned tests that every call is preceded by an and rsp, -16
func TestHostCallsAligned(t *testing.T) {
	a, err := Generate(cfg(t, everything), function(1, 2, 1, 2))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	insts := decodeAll(t, a.Code)
	calls := 0
	for i, inst := range insts {
		if inst.Op != x86asm.CALL {
			continue
		}
		calls++
		if i < 1 || insts[i-1].Op != x86asm.AND || insts[i-1].Args[0] != x86asm.RSP {
			t.Errorf("call at %d not preceded by an rsp alignment", i)
		}
		if i+1 >= len(insts) || insts[i+1].Op != x86asm.MOV || insts[i+1].Args[0] != x86asm.RSP || insts[i+1].Args[1] != x86asm.RBX {
			t.Errorf("call at %d not followed by mov rsp, rbx", i)
		}
	}
	if calls == 0 {
		t.Fatalf("no host calls")
	}
}

// TestValidation tests that unsupported functions are rejected before any
// code is emitted
func TestValidation(t *testing.T) {
	ret := "LOAD_CONST 0\nRETURN_VALUE\n"
	cases := []struct {
		name    string
		listing string
		fn      *Function
		want    string
	}{
		{"compare", "LOAD_CONST 0\nLOAD_CONST 0\nCOMPARE_OP 2\nRETURN_VALUE\n", function(0, 0, 1, 0), "comparison"},
		{"unknown compare", "LOAD_CONST 0\nLOAD_CONST 0\nCOMPARE_OP 42\nRETURN_VALUE\n", function(0, 0, 1, 0), "unknown comparison 42"},
		{"negative", "LOAD_CONST 0\nUNARY_NEGATIVE\nRETURN_VALUE\n", function(0, 0, 1, 0), "unary"},
		{"local range", "LOAD_FAST 2\nRETURN_VALUE\n", function(0, 2, 0, 0), "variable index"},
		{"const range", ret, function(0, 0, 0, 0), "constant index"},
		{"name range", "LOAD_GLOBAL 3\nRETURN_VALUE\n", function(0, 0, 0, 3), "name index"},
		{"args", ret, function(2, 1, 1, 0), "arguments"},
	}
	for _, c := range cases {
		_, err := Generate(cfg(t, c.listing), c.fn)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: got %v, want *ValidationError", c.name, err)
			continue
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: %q does not mention %q", c.name, err, c.want)
		}
	}

	fn := function(0, 0, 1, 0)
	fn.Globals.Kind = ModuleLike
	if _, err := Generate(cfg(t, ret), fn); err == nil {
		t.Errorf("module globals accepted")
	}
	fn = function(0, 0, 1, 0)
	fn.Builtins.Kind = Other
	if _, err := Generate(cfg(t, ret), fn); err == nil {
		t.Errorf("opaque builtins accepted")
	}
}

// TestLink tests patching and the errors for missing bindings
func TestLink(t *testing.T) {
	a, err := Generate(cfg(t, "LOAD_GLOBAL 0\nRETURN_VALUE\n"), function(0, 0, 0, 1))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	src := hostrt.MapSource{}
	for i, s := range hostrt.Symbols() {
		src[s.DefaultName()] = uintptr(0x10000 + 0x100*i)
	}
	table, err := hostrt.NewResolver(src, nil).Table()
	if err != nil {
		t.Fatalf("Table failed: %v", err)
	}

	b := Bindings{Names: []uintptr{0x5000}, Globals: 0x6000, Builtins: 0x7000}
	code, err := a.Link(table, b)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	for _, r := range a.Relocations {
		got := binary.LittleEndian.Uint64(code[r.Offset:])
		var want uint64
		switch r.Target.Kind {
		case NameTarget:
			want = 0x5000
		case GlobalsTarget:
			want = 0x6000
		case BuiltinsTarget:
			want = 0x7000
		case SymbolTarget:
			want = uint64(table.Address(r.Target.Symbol))
		}
		if got != want {
			t.Errorf("%s patched to %#x, want %#x", r.Target, got, want)
		}
	}
	if binary.LittleEndian.Uint64(a.Code[a.Relocations[0].Offset:]) != 0xDEADBEEFDEADBEEF {
		t.Errorf("Link modified the artifact")
	}

	var lerr *LinkError
	if _, err := a.Link(table, Bindings{Globals: 0x6000, Builtins: 0x7000}); !errors.As(err, &lerr) {
		t.Errorf("missing name: got %v", err)
	}
	if _, err := a.Link(table, Bindings{Names: []uintptr{0x5000}, Builtins: 0x7000}); !errors.As(err, &lerr) || lerr.Target.Kind != GlobalsTarget {
		t.Errorf("NULL globals: got %v", err)
	}
}

// TestDisassemble tests that the listing marks relocated immediates
func TestDisassemble(t *testing.T) {
	a, err := Generate(cfg(t, "LOAD_GLOBAL 0\nRETURN_VALUE\n"), function(0, 0, 0, 1))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	listing, err := a.Disassemble()
	if err != nil {
		t.Fatalf("Disassemble failed: %v", err)
	}
	for _, want := range []string{"; globals", "; builtins", "; name[0]", "; " + hostrt.LoadGlobal.String(), "ret"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing lacks %q:\n%s", want, listing)
		}
	}
}
