// Completion: 100% - Listing assembler complete
package bytecode

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xyproto/cinder/internal/engine"
)

// ListingError reports a problem on one line of a textual listing.
type ListingError struct {
	Line    int
	Message string
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func opcodeNameList() []string {
	names := make([]string, 0, len(opcodesByName))
	for name := range opcodesByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseListing assembles a textual listing such as
//
//	    LOAD_FAST 0
//	    POP_JUMP_IF_FALSE @else
//	    LOAD_CONST 1
//	    RETURN_VALUE
//	else:
//	    LOAD_CONST 2
//	    RETURN_VALUE
//
// Branch opcodes accept either a number or an @label operand. Labels are
// resolved by the same layout pass as Assemble, so EXTENDED_ARG prefixes are
// added where needed. Text after # is a comment.
func ParseListing(text string) ([]byte, error) {
	p := newProgram()
	type labelUse struct {
		name string
		line int
	}
	var uses []labelUse

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		for len(fields) > 0 && strings.HasSuffix(fields[0], ":") {
			name := strings.TrimSuffix(fields[0], ":")
			if name == "" {
				return nil, &ListingError{Line: lineNo, Message: "empty label"}
			}
			if err := p.mark(name); err != nil {
				return nil, &ListingError{Line: lineNo, Message: err.Error()}
			}
			fields = fields[1:]
		}
		if len(fields) == 0 {
			continue
		}
		if len(fields) > 2 {
			return nil, &ListingError{Line: lineNo, Message: fmt.Sprintf("unexpected %q", strings.Join(fields[2:], " "))}
		}

		name := strings.ToUpper(fields[0])
		op, ok := LookupOpcode(name)
		if !ok {
			return nil, &ListingError{Line: lineNo, Message: fmt.Sprintf("unknown opcode %s%s", fields[0], engine.DidYouMean(fields[0], opcodeNameList()))}
		}
		if op == EXTENDED_ARG {
			return nil, &ListingError{Line: lineNo, Message: "EXTENDED_ARG is added automatically"}
		}

		if !op.HasArgument() {
			if len(fields) == 2 {
				return nil, &ListingError{Line: lineNo, Message: fmt.Sprintf("%s takes no argument", op)}
			}
			p.emit(unit{op: op, line: lineNo})
			continue
		}
		if len(fields) < 2 {
			return nil, &ListingError{Line: lineNo, Message: fmt.Sprintf("%s needs an argument", op)}
		}

		operand := fields[1]
		if target, isLabel := strings.CutPrefix(operand, "@"); isLabel {
			kind := operandAbsolute
			switch {
			case op.IsRelativeBranch() || op == SETUP_LOOP:
				kind = operandRelative
			case !op.IsAbsoluteBranch():
				return nil, &ListingError{Line: lineNo, Message: fmt.Sprintf("%s does not take a label", op)}
			}
			p.emit(unit{op: op, kind: kind, target: target, line: lineNo})
			uses = append(uses, labelUse{name: target, line: lineNo})
			continue
		}
		arg, err := strconv.ParseInt(operand, 0, 64)
		if err != nil || arg < 0 {
			return nil, &ListingError{Line: lineNo, Message: fmt.Sprintf("bad argument %q", operand)}
		}
		p.emit(unit{op: op, kind: operandLiteral, arg: int(arg), line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, use := range uses {
		if _, ok := p.labels[use.name]; !ok {
			return nil, &ListingError{Line: use.line, Message: fmt.Sprintf("undefined label %s%s", use.name, engine.DidYouMean(use.name, p.labelNames()))}
		}
	}
	return p.link()
}

// FormatListing renders bytecode as a listing ParseListing accepts. Block
// starts get bbN labels and branch operands refer to them.
func FormatListing(code []byte) string {
	labels := make(map[int]string)
	for i, interval := range ComputeBlockBoundaries(code) {
		labels[interval.Start] = fmt.Sprintf("bb%d", i)
	}

	var sb strings.Builder
	for instr := range Instructions(code, 0, len(code)) {
		// The label goes on the first byte of the instruction, which is
		// the first EXTENDED_ARG prefix if there is one.
		start := instr.Offset
		for start-InstructionSize >= 0 && Opcode(code[start-InstructionSize]) == EXTENDED_ARG {
			if _, ok := labels[start]; ok {
				break
			}
			start -= InstructionSize
		}
		if name, ok := labels[start]; ok {
			fmt.Fprintf(&sb, "%s:\n", name)
		}

		target := -1
		switch {
		case instr.Opcode.IsRelativeBranch() || instr.Opcode == SETUP_LOOP:
			target = instr.Offset + instr.Argument
		case instr.Opcode.IsAbsoluteBranch():
			target = instr.Argument
		}
		name, isLabel := labels[target]
		switch {
		case instr.Argument == NoArgument:
			fmt.Fprintf(&sb, "    %s\n", instr.Opcode)
		case isLabel:
			fmt.Fprintf(&sb, "    %s @%s\n", instr.Opcode, name)
		default:
			fmt.Fprintf(&sb, "    %s %d\n", instr.Opcode, instr.Argument)
		}
	}
	return sb.String()
}
