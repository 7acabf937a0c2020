// Completion: 100% - Basic blocks complete
package ir

import (
	"fmt"
	"strings"
)

// TerminatorKind classifies how control leaves a block.
type TerminatorKind int

const (
	// Fallthrough means the block has no terminator and continues into the
	// next block in order.
	Fallthrough TerminatorKind = iota
	BranchTerminator
	ConditionalTerminator
	ReturnTerminator
)

func (k TerminatorKind) String() string {
	switch k {
	case Fallthrough:
		return "fallthrough"
	case BranchTerminator:
		return "branch"
	case ConditionalTerminator:
		return "conditional"
	case ReturnTerminator:
		return "return"
	}
	return fmt.Sprintf("<terminator %d>", int(k))
}

// KindOf returns the terminator kind of instr when it is the last
// instruction of a block.
func KindOf(instr Instruction) TerminatorKind {
	switch instr.(type) {
	case Branch:
		return BranchTerminator
	case ConditionalBranch:
		return ConditionalTerminator
	case ReturnValue:
		return ReturnTerminator
	}
	return Fallthrough
}

// BasicBlock is a labeled run of IR instructions with one entry and one exit.
// Start and End are the byte offsets the block was decoded from; blocks built
// by hand may leave both at zero except for ordering.
type BasicBlock struct {
	Label        Label
	Start        int
	End          int
	Instructions []Instruction

	IsLoopHeader bool
	IsLoopFooter bool
}

// Terminator returns the last instruction, or nil for an empty block.
func (b *BasicBlock) Terminator() Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1]
}

// TerminatorKind classifies the block's exit.
func (b *BasicBlock) TerminatorKind() TerminatorKind {
	t := b.Terminator()
	if t == nil {
		return Fallthrough
	}
	return KindOf(t)
}

func (b *BasicBlock) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%d, %d)", b.Label, b.Start, b.End)
	if b.IsLoopHeader {
		sb.WriteString(" loop-header")
	}
	if b.IsLoopFooter {
		sb.WriteString(" loop-footer")
	}
	sb.WriteString(":\n")
	for _, instr := range b.Instructions {
		fmt.Fprintf(&sb, "    %s\n", instr)
	}
	return sb.String()
}
