// Completion: 100% - Lowering to IR complete
package bytecode

import (
	"fmt"

	"github.com/xyproto/cinder/internal/ir"
)

// UnsupportedOpcodeError is returned for any opcode outside the translated
// subset.
type UnsupportedOpcodeError struct {
	Offset int
	Opcode Opcode
}

func (e *UnsupportedOpcodeError) Error() string {
	if !e.Opcode.Valid() {
		return fmt.Sprintf("offset %d: unknown opcode %d", e.Offset, uint8(e.Opcode))
	}
	return fmt.Sprintf("offset %d: unsupported opcode %s", e.Offset, e.Opcode)
}

// BadTargetError is returned when a branch lands inside a block or outside
// the code.
type BadTargetError struct {
	Offset int
	Opcode Opcode
	Target int
}

func (e *BadTargetError) Error() string {
	return fmt.Sprintf("offset %d: %s targets %d, which is not a block start", e.Offset, e.Opcode, e.Target)
}

type labelMap map[int]ir.Label

func (m labelMap) at(instr Instruction, target int) (ir.Label, error) {
	l, ok := m[target]
	if !ok {
		return 0, &BadTargetError{Offset: instr.Offset, Opcode: instr.Opcode, Target: target}
	}
	return l, nil
}

type decodeFunc func(instr Instruction, labels labelMap) (ir.Instruction, error)

func simple(build func(arg int) ir.Instruction) decodeFunc {
	return func(instr Instruction, _ labelMap) (ir.Instruction, error) {
		return build(instr.Argument), nil
	}
}

func unary(op ir.UnaryOp) decodeFunc {
	return simple(func(int) ir.Instruction { return ir.UnaryOperation{Op: op} })
}

// conditional builds the decoder for one of the four conditional jumps. The
// jump target is the argument, the other edge is the next instruction.
func conditional(pop, jumpWhenTrue bool) decodeFunc {
	return func(instr Instruction, labels labelMap) (ir.Instruction, error) {
		jump, err := labels.at(instr, instr.Argument)
		if err != nil {
			return nil, err
		}
		next, err := labels.at(instr, instr.Offset+InstructionSize)
		if err != nil {
			return nil, err
		}
		br := ir.ConditionalBranch{PopBeforeEval: pop, JumpWhenTrue: jumpWhenTrue}
		if jumpWhenTrue {
			br.TrueTarget, br.FalseTarget = jump, next
		} else {
			br.TrueTarget, br.FalseTarget = next, jump
		}
		return br, nil
	}
}

var decoders map[Opcode]decodeFunc

func init() {
	decoders = map[Opcode]decodeFunc{
		LOAD_FAST: simple(func(arg int) ir.Instruction {
			return ir.LoadRef{Index: arg, Pool: ir.Locals}
		}),
		LOAD_CONST: simple(func(arg int) ir.Instruction {
			return ir.LoadRef{Index: arg, Pool: ir.Constants}
		}),
		STORE_FAST:     simple(func(arg int) ir.Instruction { return ir.Store{Index: arg} }),
		LOAD_ATTR:      simple(func(arg int) ir.Instruction { return ir.LoadAttr{NameIndex: arg} }),
		STORE_ATTR:     simple(func(arg int) ir.Instruction { return ir.StoreAttr{NameIndex: arg} }),
		LOAD_GLOBAL:    simple(func(arg int) ir.Instruction { return ir.LoadGlobal{NameIndex: arg} }),
		UNARY_NOT:      unary(ir.Not),
		UNARY_POSITIVE: unary(ir.Positive),
		UNARY_NEGATIVE: unary(ir.Negative),
		UNARY_INVERT:   unary(ir.Invert),
		COMPARE_OP:     simple(func(arg int) ir.Instruction { return ir.Compare{Predicate: ir.Predicate(arg)} }),
		CALL_FUNCTION:  simple(func(arg int) ir.Instruction { return ir.Call{NumArgs: arg} }),
		POP_TOP:        simple(func(int) ir.Instruction { return ir.PopTop{} }),
		RETURN_VALUE:   simple(func(int) ir.Instruction { return ir.ReturnValue{} }),
		SETUP_LOOP:     simple(func(int) ir.Instruction { return ir.SetupLoop{} }),
		POP_BLOCK:      simple(func(int) ir.Instruction { return ir.PopBlock{} }),

		JUMP_ABSOLUTE: func(instr Instruction, labels labelMap) (ir.Instruction, error) {
			target, err := labels.at(instr, instr.Argument)
			if err != nil {
				return nil, err
			}
			return ir.Branch{Target: target}, nil
		},
		JUMP_FORWARD: func(instr Instruction, labels labelMap) (ir.Instruction, error) {
			target, err := labels.at(instr, instr.Offset+instr.Argument)
			if err != nil {
				return nil, err
			}
			return ir.Branch{Target: target}, nil
		},

		POP_JUMP_IF_FALSE:    conditional(true, false),
		POP_JUMP_IF_TRUE:     conditional(true, true),
		JUMP_IF_FALSE_OR_POP: conditional(false, false),
		JUMP_IF_TRUE_OR_POP:  conditional(false, true),
	}
}

// Supported reports whether op can be lowered to IR.
func Supported(op Opcode) bool {
	_, ok := decoders[op]
	return ok
}

// lower converts one decoded instruction. labels maps block start offsets to
// block labels.
func lower(instr Instruction, labels labelMap) (ir.Instruction, error) {
	decode, ok := decoders[instr.Opcode]
	if !ok {
		return nil, &UnsupportedOpcodeError{Offset: instr.Offset, Opcode: instr.Opcode}
	}
	return decode(instr, labels)
}

// Disassemble splits code into labeled basic blocks of IR. Every block start
// is labeled before any instruction is decoded, so forward branches resolve.
func Disassemble(code []byte) ([]*ir.BasicBlock, error) {
	if err := checkTargets(code); err != nil {
		return nil, err
	}
	boundaries := ComputeBlockBoundaries(code)
	labels := make(labelMap, len(boundaries))
	for i, interval := range boundaries {
		labels[interval.Start] = ir.Label(i)
	}

	blocks := make([]*ir.BasicBlock, 0, len(boundaries))
	for _, interval := range boundaries {
		b := &ir.BasicBlock{Label: labels[interval.Start], Start: interval.Start, End: interval.End}
		for instr := range Instructions(code, interval.Start, interval.End) {
			lowered, err := lower(instr, labels)
			if err != nil {
				return nil, err
			}
			b.Instructions = append(b.Instructions, lowered)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// checkTargets rejects branches that would split an instruction, land
// between an EXTENDED_ARG prefix and the instruction it extends, or leave the
// code, before the partitioner turns them into block starts.
func checkTargets(code []byte) error {
	for instr := range Instructions(code, 0, len(code)) {
		if !Supported(instr.Opcode) {
			continue
		}
		target := -1
		switch {
		case instr.Opcode.IsRelativeBranch():
			target = instr.Offset + instr.Argument
		case instr.Opcode.IsAbsoluteBranch():
			target = instr.Argument
		default:
			continue
		}
		if target < 0 || target >= len(code) || target%InstructionSize != 0 ||
			(target > 0 && Opcode(code[target-InstructionSize]) == EXTENDED_ARG) {
			return &BadTargetError{Offset: instr.Offset, Opcode: instr.Opcode, Target: target}
		}
	}
	return nil
}

// DisassembleCFG decodes code and builds its control-flow graph.
func DisassembleCFG(code []byte) (*ir.ControlFlowGraph, error) {
	blocks, err := Disassemble(code)
	if err != nil {
		return nil, fmt.Errorf("disassemble: %w", err)
	}
	g, err := ir.BuildCFG(blocks)
	if err != nil {
		return nil, fmt.Errorf("build cfg: %w", err)
	}
	return g, nil
}
