// Completion: 100% - Layout engine complete
package bytecode

import (
	"fmt"
	"sort"
)

// operandKind says how a unit's argument is computed once offsets are known.
type operandKind int

const (
	operandNone operandKind = iota
	operandLiteral
	operandAbsolute // offset of the target label
	operandRelative // target label minus the instruction's own offset
)

// unit is one instruction before layout. Its final width depends on how many
// EXTENDED_ARG prefixes its argument needs.
type unit struct {
	op     Opcode
	kind   operandKind
	arg    int
	target string
	line   int
}

// program collects units and label positions for the layout pass shared by
// Assemble and ParseListing.
type program struct {
	units  []unit
	labels map[string]int
}

func newProgram() *program {
	return &program{labels: make(map[string]int)}
}

func (p *program) emit(u unit) {
	p.units = append(p.units, u)
}

func (p *program) op(op Opcode) {
	p.emit(unit{op: op})
}

func (p *program) literal(op Opcode, arg int) {
	p.emit(unit{op: op, kind: operandLiteral, arg: arg})
}

func (p *program) jump(op Opcode, kind operandKind, target string) {
	p.emit(unit{op: op, kind: kind, target: target})
}

// mark places label at the next unit. It fails if the label already exists.
func (p *program) mark(label string) error {
	if _, dup := p.labels[label]; dup {
		return fmt.Errorf("label %s defined twice", label)
	}
	p.labels[label] = len(p.units)
	return nil
}

// LayoutError reports an argument that cannot be encoded.
type LayoutError struct {
	Line    int
	Message string
}

func (e *LayoutError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// prefixCount returns how many EXTENDED_ARG units arg needs.
func prefixCount(arg int) (int, error) {
	switch {
	case arg < 0:
		return 0, fmt.Errorf("negative argument %d", arg)
	case arg <= 0xFF:
		return 0, nil
	case arg <= 0xFFFF:
		return 1, nil
	case arg <= extendedArgMask:
		return 2, nil
	}
	return 0, fmt.Errorf("argument %d does not fit in 24 bits", arg)
}

// link assigns offsets and arguments until no unit needs a wider encoding,
// then writes the bytes. Widths only grow, so the loop terminates; a unit
// that ends up wider than needed is padded with zero prefixes.
func (p *program) link() ([]byte, error) {
	for name, idx := range p.labels {
		if idx > len(p.units) {
			return nil, &LayoutError{Message: fmt.Sprintf("label %s is out of range", name)}
		}
	}

	prefixes := make([]int, len(p.units))
	offsets := make([]int, len(p.units)+1)
	args := make([]int, len(p.units))
	for {
		offset := 0
		for i := range p.units {
			offsets[i] = offset
			offset += (prefixes[i] + 1) * InstructionSize
		}
		offsets[len(p.units)] = offset

		grew := false
		for i, u := range p.units {
			arg, err := p.argument(u, i, offsets, prefixes)
			if err != nil {
				return nil, err
			}
			args[i] = arg
			if u.kind == operandNone {
				continue
			}
			need, err := prefixCount(arg)
			if err != nil {
				return nil, &LayoutError{Line: u.line, Message: fmt.Sprintf("%s: %v", u.op, err)}
			}
			if need > prefixes[i] {
				prefixes[i] = need
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	code := make([]byte, 0, offsets[len(p.units)])
	for i, u := range p.units {
		arg := args[i]
		for k := prefixes[i]; k > 0; k-- {
			code = append(code, byte(EXTENDED_ARG), byte(arg>>(8*k)))
		}
		operand := byte(0)
		if u.kind != operandNone {
			operand = byte(arg)
		}
		code = append(code, byte(u.op), operand)
	}
	return code, nil
}

func (p *program) argument(u unit, i int, offsets, prefixes []int) (int, error) {
	switch u.kind {
	case operandNone:
		return 0, nil
	case operandLiteral:
		return u.arg, nil
	}
	idx, ok := p.labels[u.target]
	if !ok {
		return 0, &LayoutError{Line: u.line, Message: fmt.Sprintf("undefined label %s", u.target)}
	}
	target := offsets[idx]
	if u.kind == operandAbsolute {
		return target, nil
	}
	own := offsets[i] + prefixes[i]*InstructionSize
	if target < own {
		return 0, &LayoutError{Line: u.line, Message: fmt.Sprintf("%s cannot jump backwards to %s", u.op, u.target)}
	}
	return target - own, nil
}

// labelNames lists the defined labels in a stable order.
func (p *program) labelNames() []string {
	names := make([]string, 0, len(p.labels))
	for name := range p.labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
