// Completion: 100% - Disassembly listing complete
package x64

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Disassemble renders code as an Intel-syntax listing. Instructions that
// carry a relocation are annotated with its target.
func Disassemble(code []byte, relocs []Relocation) (string, error) {
	byOffset := make(map[int]Relocation, len(relocs))
	for _, r := range relocs {
		byOffset[r.Offset] = r
	}

	var sb strings.Builder
	for pc := 0; pc < len(code); {
		inst, err := x86asm.Decode(code[pc:], 64)
		if err != nil {
			return sb.String(), fmt.Errorf("x64: decode at %#x: %w", pc, err)
		}
		raw := fmt.Sprintf("% x", code[pc:pc+inst.Len])
		fmt.Fprintf(&sb, "%6x  %-30s %s", pc, raw, x86asm.IntelSyntax(inst, uint64(pc), nil))
		for off := pc; off < pc+inst.Len; off++ {
			if r, ok := byOffset[off]; ok {
				fmt.Fprintf(&sb, "  ; %s", r.Target)
			}
		}
		sb.WriteByte('\n')
		pc += inst.Len
	}
	return sb.String(), nil
}
