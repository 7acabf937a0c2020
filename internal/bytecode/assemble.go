// Completion: 100% - Encoder complete
package bytecode

import (
	"fmt"

	"github.com/xyproto/cinder/internal/ir"
)

// EncodeError reports an IR instruction with no bytecode form.
type EncodeError struct {
	Label ir.Label
	Instr ir.Instruction
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s: cannot encode %s", e.Label, e.Instr)
}

var unaryOpcodes = map[ir.UnaryOp]Opcode{
	ir.Not:      UNARY_NOT,
	ir.Positive: UNARY_POSITIVE,
	ir.Negative: UNARY_NEGATIVE,
	ir.Invert:   UNARY_INVERT,
}

// conditionalOpcode picks the jump for a (PopBeforeEval, JumpWhenTrue) pair.
func conditionalOpcode(br ir.ConditionalBranch) Opcode {
	switch {
	case br.PopBeforeEval && br.JumpWhenTrue:
		return POP_JUMP_IF_TRUE
	case br.PopBeforeEval:
		return POP_JUMP_IF_FALSE
	case br.JumpWhenTrue:
		return JUMP_IF_TRUE_OR_POP
	}
	return JUMP_IF_FALSE_OR_POP
}

// fallSuccessor is the block control reaches without a jump, if any.
func fallSuccessor(g *ir.ControlFlowGraph, b *ir.BasicBlock) (ir.Label, bool) {
	switch t := b.Terminator().(type) {
	case ir.ConditionalBranch:
		return t.FallTarget(), true
	case ir.Branch, ir.ReturnValue:
		return 0, false
	}
	if next := g.Next(b.Label); next != nil {
		return next.Label, true
	}
	return 0, false
}

// layoutOrder places blocks in CFG order, pulling the successors of a
// conditional branch right behind it: (false, true) when it jumps on true,
// (true, false) otherwise. A jump target that some other block falls into is
// left for that block to place.
func layoutOrder(g *ir.ControlFlowGraph) []*ir.BasicBlock {
	fallers := make(map[ir.Label]int)
	for _, b := range g.Blocks {
		if succ, ok := fallSuccessor(g, b); ok {
			fallers[succ]++
		}
	}

	placed := make(map[ir.Label]bool, g.Len())
	order := make([]*ir.BasicBlock, 0, g.Len())
	var place func(b *ir.BasicBlock)
	place = func(b *ir.BasicBlock) {
		if placed[b.Label] {
			return
		}
		placed[b.Label] = true
		order = append(order, b)
		if succ, ok := fallSuccessor(g, b); ok {
			if next, ok := g.Block(succ); ok {
				place(next)
			}
		}
		if br, ok := b.Terminator().(ir.ConditionalBranch); ok && fallers[br.JumpTarget()] == 0 {
			if next, ok := g.Block(br.JumpTarget()); ok {
				place(next)
			}
		}
	}
	for _, b := range g.Blocks {
		place(b)
	}
	return order
}

func loopExitLabel(footer ir.Label) string {
	return footer.String() + ".body"
}

// Assemble encodes a CFG back into bytecode. Branch arguments are patched
// once the block order is fixed; a fallthrough successor that is not laid
// out next gets an explicit JUMP_ABSOLUTE.
func Assemble(g *ir.ControlFlowGraph) ([]byte, error) {
	order := layoutOrder(g)
	setupFooter := make(map[setupSite]ir.Label, len(g.Loops))
	for _, l := range g.Loops {
		setupFooter[setupSite{l.Setup, l.SetupIndex}] = l.Footer
	}

	p := newProgram()
	for i, b := range order {
		if err := p.mark(b.Label.String()); err != nil {
			return nil, err
		}
		for j, instr := range b.Instructions {
			if err := encodeInstruction(p, b, j, setupFooter); err != nil {
				return nil, err
			}
			if _, ok := instr.(ir.PopBlock); ok && j == 0 && b.IsLoopFooter {
				if err := p.mark(loopExitLabel(b.Label)); err != nil {
					return nil, err
				}
			}
		}
		if succ, ok := fallSuccessor(g, b); ok {
			if i+1 >= len(order) || order[i+1].Label != succ {
				p.jump(JUMP_ABSOLUTE, operandAbsolute, succ.String())
			}
		}
	}
	code, err := p.link()
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	return code, nil
}

// setupSite locates one SetupLoop: its block and position in the block.
type setupSite struct {
	label ir.Label
	index int
}

func encodeInstruction(p *program, b *ir.BasicBlock, j int, setupFooter map[setupSite]ir.Label) error {
	instr := b.Instructions[j]
	switch in := instr.(type) {
	case ir.LoadRef:
		if in.Pool == ir.Constants {
			p.literal(LOAD_CONST, in.Index)
		} else {
			p.literal(LOAD_FAST, in.Index)
		}
	case ir.Store:
		p.literal(STORE_FAST, in.Index)
	case ir.LoadAttr:
		p.literal(LOAD_ATTR, in.NameIndex)
	case ir.StoreAttr:
		p.literal(STORE_ATTR, in.NameIndex)
	case ir.LoadGlobal:
		p.literal(LOAD_GLOBAL, in.NameIndex)
	case ir.UnaryOperation:
		op, ok := unaryOpcodes[in.Op]
		if !ok {
			return &EncodeError{Label: b.Label, Instr: instr}
		}
		p.op(op)
	case ir.Compare:
		p.literal(COMPARE_OP, int(in.Predicate))
	case ir.Call:
		p.literal(CALL_FUNCTION, in.NumArgs)
	case ir.PopTop:
		p.op(POP_TOP)
	case ir.Branch:
		p.jump(JUMP_ABSOLUTE, operandAbsolute, in.Target.String())
	case ir.ConditionalBranch:
		p.jump(conditionalOpcode(in), operandAbsolute, in.JumpTarget().String())
	case ir.ReturnValue:
		p.op(RETURN_VALUE)
	case ir.SetupLoop:
		footer, ok := setupFooter[setupSite{b.Label, j}]
		if !ok {
			return &EncodeError{Label: b.Label, Instr: instr}
		}
		p.jump(SETUP_LOOP, operandRelative, loopExitLabel(footer))
	case ir.PopBlock:
		p.op(POP_BLOCK)
	default:
		return &EncodeError{Label: b.Label, Instr: instr}
	}
	return nil
}
