// Completion: 100% - Block partitioning complete
package bytecode

import "sort"

// Interval is a half-open byte range [Start, End) holding one basic block.
type Interval struct {
	Start int
	End   int
}

// ComputeBlockBoundaries splits code into basic blocks.
//
// An offset starts a new block if it is the target of a branch or if it
// follows a branch. A branch that is the last instruction of the buffer does
// not open an empty trailing block.
func ComputeBlockBoundaries(code []byte) []Interval {
	if len(code) == 0 {
		return []Interval{}
	}
	starts := map[int]bool{0: true}
	last := len(code)
	for instr := range Instructions(code, 0, last) {
		next := instr.Offset + InstructionSize
		if instr.Opcode.IsBranch() && next < last {
			starts[next] = true
		}
		if instr.Opcode.IsRelativeBranch() {
			starts[instr.Offset+instr.Argument] = true
		} else if instr.Opcode.IsAbsoluteBranch() {
			starts[instr.Argument] = true
		}
	}

	sorted := make([]int, 0, len(starts)+1)
	for start := range starts {
		sorted = append(sorted, start)
	}
	sort.Ints(sorted)
	sorted = append(sorted, len(code))

	boundaries := make([]Interval, 0, len(sorted)-1)
	for i := 0; i < len(sorted)-1; i++ {
		boundaries = append(boundaries, Interval{Start: sorted[i], End: sorted[i+1]})
	}
	return boundaries
}
