// Completion: 100% - CFG construction and loop pairing complete
package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Loop pairs the SetupLoop that opens a loop with the header the loop
// starts in and the footer that closes it. SetupIndex is the position of the
// SetupLoop within the Setup block. The header is the block after Setup when
// the SetupLoop ends its block, and Setup itself otherwise.
type Loop struct {
	Setup      Label
	SetupIndex int
	Header     Label
	Footer     Label
	Depth      int
}

// CFGError reports a graph that cannot be built from the given blocks.
type CFGError struct {
	Label   Label
	Message string
}

func (e *CFGError) Error() string {
	return fmt.Sprintf("cfg: %s: %s", e.Label, e.Message)
}

// LoopError reports a loop construct without matching setup/teardown
// bracketing.
type LoopError struct {
	Label   Label
	Message string
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("unsupported loop construct at %s: %s", e.Label, e.Message)
}

// ControlFlowGraph holds the blocks of one function in canonical order,
// starting with the block at offset 0.
type ControlFlowGraph struct {
	Blocks []*BasicBlock
	Loops  []Loop

	index        map[Label]int
	maxLoopDepth int
}

// BuildCFG orders blocks by start offset, checks that every successor
// exists and derives the loop header and footer flags. The graph holds its
// own copies of the blocks; the input is not modified.
func BuildCFG(blocks []*BasicBlock) (*ControlFlowGraph, error) {
	ordered := make([]*BasicBlock, len(blocks))
	for i, b := range blocks {
		c := *b
		c.Instructions = append([]Instruction(nil), b.Instructions...)
		c.IsLoopHeader = false
		c.IsLoopFooter = false
		ordered[i] = &c
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	g := &ControlFlowGraph{
		Blocks: ordered,
		index:  make(map[Label]int, len(ordered)),
	}
	for i, b := range ordered {
		if _, dup := g.index[b.Label]; dup {
			return nil, &CFGError{Label: b.Label, Message: "duplicate label"}
		}
		g.index[b.Label] = i
	}

	for i, b := range ordered {
		for j, instr := range b.Instructions {
			if j != len(b.Instructions)-1 && KindOf(instr) != Fallthrough {
				return nil, &CFGError{Label: b.Label, Message: fmt.Sprintf("%s is not the last instruction", instr)}
			}
		}
		if b.TerminatorKind() == Fallthrough && i == len(ordered)-1 {
			return nil, &CFGError{Label: b.Label, Message: "control falls off the last block"}
		}
		for _, succ := range g.successors(i) {
			if _, ok := g.index[succ]; !ok {
				return nil, &CFGError{Label: b.Label, Message: fmt.Sprintf("branch to unknown label %s", succ)}
			}
		}
	}

	if err := g.pairLoops(); err != nil {
		return nil, err
	}
	return g, nil
}

// pairLoops marks headers and footers, walking the instructions in order. A
// SetupLoop opens a loop; a block starting with PopBlock closes the innermost
// open one. PopBlock anywhere else is not a bracketed loop exit.
func (g *ControlFlowGraph) pairLoops() error {
	type open struct {
		setup  Label
		index  int
		header Label
	}
	var stack []open
	for i, b := range g.Blocks {
		for j, instr := range b.Instructions {
			switch instr.(type) {
			case PopBlock:
				if j != 0 {
					return &LoopError{Label: b.Label, Message: "PopBlock must start its block"}
				}
				if len(stack) == 0 {
					return &LoopError{Label: b.Label, Message: "PopBlock without an open loop"}
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				b.IsLoopFooter = true
				g.Loops = append(g.Loops, Loop{
					Setup:      top.setup,
					SetupIndex: top.index,
					Header:     top.header,
					Footer:     b.Label,
					Depth:      len(stack) + 1,
				})
			case SetupLoop:
				header := b
				if j == len(b.Instructions)-1 {
					if i+1 >= len(g.Blocks) {
						return &LoopError{Label: b.Label, Message: "SetupLoop in the last block"}
					}
					header = g.Blocks[i+1]
				}
				header.IsLoopHeader = true
				stack = append(stack, open{setup: b.Label, index: j, header: header.Label})
				if len(stack) > g.maxLoopDepth {
					g.maxLoopDepth = len(stack)
				}
			}
		}
	}
	if len(stack) > 0 {
		return &LoopError{Label: stack[len(stack)-1].header, Message: "loop has no PopBlock"}
	}
	return nil
}

func (g *ControlFlowGraph) successors(i int) []Label {
	b := g.Blocks[i]
	switch t := b.Terminator().(type) {
	case Branch:
		return []Label{t.Target}
	case ConditionalBranch:
		return []Label{t.TrueTarget, t.FalseTarget}
	case ReturnValue:
		return nil
	}
	if i+1 < len(g.Blocks) {
		return []Label{g.Blocks[i+1].Label}
	}
	return nil
}

// Block returns the block labeled l.
func (g *ControlFlowGraph) Block(l Label) (*BasicBlock, bool) {
	i, ok := g.index[l]
	if !ok {
		return nil, false
	}
	return g.Blocks[i], true
}

// Successors returns the labels control can reach from l.
func (g *ControlFlowGraph) Successors(l Label) []Label {
	i, ok := g.index[l]
	if !ok {
		return nil
	}
	return g.successors(i)
}

// Next returns the block laid out after l, or nil.
func (g *ControlFlowGraph) Next(l Label) *BasicBlock {
	i, ok := g.index[l]
	if !ok || i+1 >= len(g.Blocks) {
		return nil
	}
	return g.Blocks[i+1]
}

// LoopByFooter returns the loop closed by footer.
func (g *ControlFlowGraph) LoopByFooter(footer Label) (Loop, bool) {
	for _, l := range g.Loops {
		if l.Footer == footer {
			return l, true
		}
	}
	return Loop{}, false
}

// MaxLoopDepth is the deepest loop nesting, which sizes the block stack.
func (g *ControlFlowGraph) MaxLoopDepth() int {
	return g.maxLoopDepth
}

// Len returns the number of blocks.
func (g *ControlFlowGraph) Len() int {
	return len(g.Blocks)
}

func (g *ControlFlowGraph) String() string {
	var sb strings.Builder
	for i, b := range g.Blocks {
		sb.WriteString(b.String())
		succ := g.successors(i)
		if len(succ) > 0 {
			names := make([]string, len(succ))
			for k, s := range succ {
				names[k] = s.String()
			}
			fmt.Fprintf(&sb, "    -> %s\n", strings.Join(names, ", "))
		}
	}
	for _, l := range g.Loops {
		fmt.Fprintf(&sb, "loop setup=%s header=%s footer=%s depth=%d\n", l.Setup, l.Header, l.Footer, l.Depth)
	}
	return sb.String()
}
