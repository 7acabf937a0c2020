package ir

import (
	"errors"
	"strings"
	"testing"
)

func block(label Label, start int, instrs ...Instruction) *BasicBlock {
	return &BasicBlock{Label: label, Start: start, End: start + 2*len(instrs), Instructions: instrs}
}

// TestBuildCFGOrdersBlocks tests that blocks come out sorted by start offset
func TestBuildCFGOrdersBlocks(t *testing.T) {
	g, err := BuildCFG([]*BasicBlock{
		block(1, 4, LoadRef{Index: 1}, ReturnValue{}),
		block(0, 0, LoadRef{Index: 0}, ConditionalBranch{TrueTarget: 1, FalseTarget: 2}),
		block(2, 8, LoadRef{Index: 2}, ReturnValue{}),
	})
	if err != nil {
		t.Fatalf("BuildCFG failed: %v", err)
	}
	if g.Len() != 3 {
		t.Fatalf("got %d blocks, want 3", g.Len())
	}
	for i, want := range []Label{0, 1, 2} {
		if g.Blocks[i].Label != want {
			t.Errorf("block %d is %s, want %s", i, g.Blocks[i].Label, want)
		}
	}
	succ := g.Successors(0)
	if len(succ) != 2 || succ[0] != 1 || succ[1] != 2 {
		t.Errorf("successors of bb0 = %v, want [bb1 bb2]", succ)
	}
	if got := g.Successors(1); len(got) != 0 {
		t.Errorf("return block has successors %v", got)
	}
}

// TestTerminatorKinds tests classification of block exits
func TestTerminatorKinds(t *testing.T) {
	tests := []struct {
		instrs []Instruction
		want   TerminatorKind
	}{
		{[]Instruction{LoadRef{}, ReturnValue{}}, ReturnTerminator},
		{[]Instruction{Branch{Target: 3}}, BranchTerminator},
		{[]Instruction{LoadRef{}, ConditionalBranch{}}, ConditionalTerminator},
		{[]Instruction{LoadRef{}, PopTop{}}, Fallthrough},
		{nil, Fallthrough},
	}
	for _, tt := range tests {
		b := &BasicBlock{Instructions: tt.instrs}
		if got := b.TerminatorKind(); got != tt.want {
			t.Errorf("TerminatorKind(%v) = %s, want %s", tt.instrs, got, tt.want)
		}
	}
}

// TestBuildCFGFallthroughEdge tests that a block without terminator flows
// into the next block
func TestBuildCFGFallthroughEdge(t *testing.T) {
	g, err := BuildCFG([]*BasicBlock{
		block(0, 0, LoadRef{}, PopTop{}),
		block(1, 4, LoadRef{}, ReturnValue{}),
	})
	if err != nil {
		t.Fatalf("BuildCFG failed: %v", err)
	}
	if succ := g.Successors(0); len(succ) != 1 || succ[0] != 1 {
		t.Errorf("successors of bb0 = %v, want [bb1]", succ)
	}
	if g.Next(0).Label != 1 || g.Next(1) != nil {
		t.Errorf("Next does not follow block order")
	}
}

// TestBuildCFGErrors tests rejection of malformed block lists
func TestBuildCFGErrors(t *testing.T) {
	tests := []struct {
		name   string
		blocks []*BasicBlock
	}{
		{"dangling", []*BasicBlock{block(0, 0, Branch{Target: 7})}},
		{"falls off", []*BasicBlock{block(0, 0, LoadRef{})}},
		{"duplicate", []*BasicBlock{block(0, 0, ReturnValue{}), block(0, 2, ReturnValue{})}},
		{"mid-block branch", []*BasicBlock{block(0, 0, Branch{Target: 0}, ReturnValue{})}},
	}
	for _, tt := range tests {
		_, err := BuildCFG(tt.blocks)
		var cfgErr *CFGError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: got %v, want *CFGError", tt.name, err)
		}
	}
}

func whileLoop() []*BasicBlock {
	return []*BasicBlock{
		block(0, 0, SetupLoop{}),
		block(1, 2, LoadRef{}, ConditionalBranch{TrueTarget: 2, FalseTarget: 3, PopBeforeEval: true}),
		block(2, 6, Branch{Target: 1}),
		block(3, 8, PopBlock{}, LoadRef{}, ReturnValue{}),
	}
}

// TestLoopPairing tests header and footer detection for a single loop
func TestLoopPairing(t *testing.T) {
	g, err := BuildCFG(whileLoop())
	if err != nil {
		t.Fatalf("BuildCFG failed: %v", err)
	}
	if !g.Blocks[1].IsLoopHeader || !g.Blocks[3].IsLoopFooter {
		t.Fatalf("loop flags not set: %s", g)
	}
	if g.Blocks[0].IsLoopHeader || g.Blocks[2].IsLoopHeader || g.Blocks[2].IsLoopFooter {
		t.Errorf("unexpected loop flags: %s", g)
	}
	if len(g.Loops) != 1 {
		t.Fatalf("got %d loops, want 1", len(g.Loops))
	}
	want := Loop{Setup: 0, Header: 1, Footer: 3, Depth: 1}
	if g.Loops[0] != want {
		t.Errorf("loop = %+v, want %+v", g.Loops[0], want)
	}
	if g.MaxLoopDepth() != 1 {
		t.Errorf("MaxLoopDepth = %d, want 1", g.MaxLoopDepth())
	}
	if l, ok := g.LoopByFooter(3); !ok || l.Header != 1 {
		t.Errorf("LoopByFooter(bb3) = %+v, %t", l, ok)
	}
}

// TestNestedLoops tests that loops pair innermost first
func TestNestedLoops(t *testing.T) {
	g, err := BuildCFG([]*BasicBlock{
		block(0, 0, SetupLoop{}),
		block(1, 2, LoadRef{}, PopTop{}, SetupLoop{}),
		block(2, 8, LoadRef{}, ConditionalBranch{TrueTarget: 3, FalseTarget: 4, PopBeforeEval: true}),
		block(3, 12, Branch{Target: 2}),
		block(4, 14, PopBlock{}, LoadRef{}, ConditionalBranch{TrueTarget: 5, FalseTarget: 6, PopBeforeEval: true}),
		block(5, 20, Branch{Target: 1}),
		block(6, 22, PopBlock{}, LoadRef{}, ReturnValue{}),
	})
	if err != nil {
		t.Fatalf("BuildCFG failed: %v", err)
	}
	if g.MaxLoopDepth() != 2 {
		t.Errorf("MaxLoopDepth = %d, want 2", g.MaxLoopDepth())
	}
	if len(g.Loops) != 2 {
		t.Fatalf("got %d loops, want 2", len(g.Loops))
	}
	if g.Loops[0].Header != 2 || g.Loops[0].Footer != 4 || g.Loops[0].Depth != 2 {
		t.Errorf("inner loop = %+v", g.Loops[0])
	}
	if g.Loops[1].Header != 1 || g.Loops[1].Footer != 6 || g.Loops[1].Depth != 1 {
		t.Errorf("outer loop = %+v", g.Loops[1])
	}
}

// TestUnbracketedLoops tests that loops without matching markers are
// rejected as unsupported
func TestUnbracketedLoops(t *testing.T) {
	tests := []struct {
		name   string
		blocks []*BasicBlock
	}{
		{"footer without header", []*BasicBlock{block(0, 0, PopBlock{}, LoadRef{}, ReturnValue{})}},
		{"header without footer", []*BasicBlock{
			block(0, 0, SetupLoop{}),
			block(1, 2, LoadRef{}, ReturnValue{}),
		}},
		{"setup in the last block", []*BasicBlock{
			block(0, 0, LoadRef{}, PopTop{}, SetupLoop{}),
		}},
		{"pop block not first", []*BasicBlock{
			block(0, 0, SetupLoop{}),
			block(1, 2, LoadRef{}, PopBlock{}, ReturnValue{}),
		}},
	}
	for _, tt := range tests {
		_, err := BuildCFG(tt.blocks)
		var loopErr *LoopError
		if !errors.As(err, &loopErr) {
			t.Errorf("%s: got %v, want *LoopError", tt.name, err)
		}
	}
}

// TestSetupLoopMidBlock tests a loop without a back edge, where the body
// continues in the block that opens the loop
func TestSetupLoopMidBlock(t *testing.T) {
	g, err := BuildCFG([]*BasicBlock{
		block(0, 0, SetupLoop{}, LoadRef{}, ConditionalBranch{TrueTarget: 1, FalseTarget: 2, PopBeforeEval: true}),
		block(1, 6, LoadRef{}, ReturnValue{}),
		block(2, 10, PopBlock{}, LoadRef{}, ReturnValue{}),
	})
	if err != nil {
		t.Fatalf("BuildCFG failed: %v", err)
	}
	want := Loop{Setup: 0, SetupIndex: 0, Header: 0, Footer: 2, Depth: 1}
	if len(g.Loops) != 1 || g.Loops[0] != want {
		t.Fatalf("loops = %+v, want [%+v]", g.Loops, want)
	}
	if !g.Blocks[0].IsLoopHeader || g.Blocks[1].IsLoopHeader || !g.Blocks[2].IsLoopFooter {
		t.Errorf("unexpected loop flags: %s", g)
	}
	if g.MaxLoopDepth() != 1 {
		t.Errorf("MaxLoopDepth = %d, want 1", g.MaxLoopDepth())
	}
}

// TestTwoSetupsInOneBlock tests nesting when both loops open in one block
func TestTwoSetupsInOneBlock(t *testing.T) {
	g, err := BuildCFG([]*BasicBlock{
		block(0, 0, SetupLoop{}, SetupLoop{}, LoadRef{}, ConditionalBranch{TrueTarget: 1, FalseTarget: 2, PopBeforeEval: true}),
		block(1, 8, LoadRef{}, ReturnValue{}),
		block(2, 12, PopBlock{}),
		block(3, 14, PopBlock{}, LoadRef{}, ReturnValue{}),
	})
	if err != nil {
		t.Fatalf("BuildCFG failed: %v", err)
	}
	if g.MaxLoopDepth() != 2 || len(g.Loops) != 2 {
		t.Fatalf("depth %d with %d loops, want 2 and 2", g.MaxLoopDepth(), len(g.Loops))
	}
	if l := g.Loops[0]; l.SetupIndex != 1 || l.Footer != 2 || l.Depth != 2 {
		t.Errorf("inner loop = %+v", l)
	}
	if l := g.Loops[1]; l.SetupIndex != 0 || l.Footer != 3 || l.Depth != 1 {
		t.Errorf("outer loop = %+v", l)
	}
}

// TestBuildCFGLeavesInput tests that the graph owns its blocks
func TestBuildCFGLeavesInput(t *testing.T) {
	blocks := whileLoop()
	blocks[2].IsLoopFooter = true
	g, err := BuildCFG(blocks)
	if err != nil {
		t.Fatalf("BuildCFG failed: %v", err)
	}
	if blocks[1].IsLoopHeader || blocks[3].IsLoopFooter {
		t.Errorf("BuildCFG set flags on its input")
	}
	if !blocks[2].IsLoopFooter {
		t.Errorf("BuildCFG cleared a flag on its input")
	}
	if g.Blocks[2].IsLoopFooter {
		t.Errorf("stale footer flag copied into the graph")
	}
	if g.Blocks[1] == blocks[1] {
		t.Errorf("graph shares a block with its input")
	}
}

// TestCFGString tests the textual dump
func TestCFGString(t *testing.T) {
	g, err := BuildCFG(whileLoop())
	if err != nil {
		t.Fatalf("BuildCFG failed: %v", err)
	}
	s := g.String()
	for _, want := range []string{"bb1 [2, 6) loop-header:", "bb3 [8, 14) loop-footer:", "-> bb2, bb3", "loop setup=bb0 header=bb1 footer=bb3"} {
		if !strings.Contains(s, want) {
			t.Errorf("dump missing %q:\n%s", want, s)
		}
	}
}
