// Completion: 100% - Reader complete
package bytecode

import (
	"fmt"
	"iter"
)

// NoArgument is the Argument of an instruction whose opcode carries none.
const NoArgument = -1

// extendedArgMask keeps the EXTENDED_ARG accumulator at 24 bits.
const extendedArgMask = 0xFFFFFF

// Instruction is one decoded instruction. EXTENDED_ARG prefixes are folded
// into the Argument of the instruction they extend and never appear on
// their own.
type Instruction struct {
	Offset   int
	Opcode   Opcode
	Argument int
}

func (i Instruction) String() string {
	if i.Argument == NoArgument {
		return fmt.Sprintf("%4d %s", i.Offset, i.Opcode)
	}
	return fmt.Sprintf("%4d %s %d", i.Offset, i.Opcode, i.Argument)
}

// Reader walks [start, end) of a code buffer two bytes at a time.
type Reader struct {
	code        []byte
	start       int
	end         int
	offset      int
	extendedArg int
}

// NewReader returns a reader over code[start:end]. A negative end means
// len(code).
func NewReader(code []byte, start, end int) *Reader {
	if end < 0 || end > len(code) {
		end = len(code)
	}
	if start < 0 {
		start = 0
	}
	return &Reader{code: code, start: start, end: end, offset: start}
}

// Reset rewinds the reader to its start offset.
func (r *Reader) Reset() {
	r.offset = r.start
	r.extendedArg = 0
}

// Next decodes the next instruction. It returns false once the range is
// exhausted.
func (r *Reader) Next() (Instruction, bool) {
	for r.offset < r.end {
		offset := r.offset
		opcode := Opcode(r.code[offset])
		operand := 0
		if offset+1 < len(r.code) {
			operand = int(r.code[offset+1])
		}
		r.offset += InstructionSize

		arg := NoArgument
		if opcode.HasArgument() {
			arg = operand | r.extendedArg
			if opcode == EXTENDED_ARG {
				r.extendedArg = (arg << 8) & extendedArgMask
				continue
			}
			r.extendedArg = 0
		}
		return Instruction{Offset: offset, Opcode: opcode, Argument: arg}, true
	}
	return Instruction{}, false
}

// Instructions returns a restartable sequence over code[start:end]. Every
// range over the sequence decodes from start again.
func Instructions(code []byte, start, end int) iter.Seq[Instruction] {
	return func(yield func(Instruction) bool) {
		r := NewReader(code, start, end)
		for {
			instr, ok := r.Next()
			if !ok || !yield(instr) {
				return
			}
		}
	}
}

// Decode returns every instruction in code.
func Decode(code []byte) []Instruction {
	var out []Instruction
	for instr := range Instructions(code, 0, len(code)) {
		out = append(out, instr)
	}
	return out
}
