// Completion: 100% - Instruction implementation complete
package x64

import (
	"fmt"
	"os"
)

// Condition codes for jumps
type JumpCondition int

const (
	JumpEqual          JumpCondition = iota // JE/JZ - equal/zero
	JumpNotEqual                            // JNE/JNZ - not equal/not zero
	JumpGreater                             // JG/JNLE - greater (signed)
	JumpGreaterOrEqual                      // JGE/JNL - greater or equal (signed)
	JumpLess                                // JL/JNGE - less (signed)
	JumpLessOrEqual                         // JLE/JNG - less or equal (signed)
	JumpAbove                               // JA/JNBE - above (unsigned)
	JumpBelow                               // JB/JNAE - below (unsigned)
)

var jumpConditions = map[JumpCondition]struct {
	name   string
	opcode uint8
}{
	JumpEqual:          {"je", 0x84},
	JumpNotEqual:       {"jne", 0x85},
	JumpGreater:        {"jg", 0x8F},
	JumpGreaterOrEqual: {"jge", 0x8D},
	JumpLess:           {"jl", 0x8C},
	JumpLessOrEqual:    {"jle", 0x8E},
	JumpAbove:          {"ja", 0x87},
	JumpBelow:          {"jb", 0x82},
}

// JumpIf jumps to label when condition holds. Always uses the rel32 form so
// the size is known before the label is bound.
func (o *Out) JumpIf(condition JumpCondition, label string) {
	cc, ok := jumpConditions[condition]
	if !ok {
		o.fail("x64: unknown jump condition %d", condition)
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "%s %s:", cc.name, label)
	}

	o.Write(0x0F)
	o.Write(cc.opcode)
	o.writeRel32(label)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// Jump jumps to label unconditionally
func (o *Out) Jump(label string) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "jmp %s:", label)
	}

	o.Write(0xE9) // JMP rel32
	o.writeRel32(label)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
