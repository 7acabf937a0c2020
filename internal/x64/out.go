// Completion: 100% - Emitter core complete
package x64

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// VerboseMode makes every emitter print its mnemonic and bytes to stderr.
var VerboseMode bool

// RelocPlaceholder fills the 8 bytes of an unresolved 64-bit immediate.
const RelocPlaceholder uint64 = 0xDEADBEEFDEADBEEF

// Relocation is a 64-bit immediate at Offset that must be patched with the
// address of Target before the code runs.
type Relocation struct {
	Offset int
	Target fmt.Stringer
}

type BufferWrapper struct {
	buf *bytes.Buffer
}

func (bw *BufferWrapper) Write(b byte) int {
	bw.buf.WriteByte(b)
	if VerboseMode {
		fmt.Fprintf(os.Stderr, " %x", b)
	}
	return 1
}

func (bw *BufferWrapper) WriteUnsigned(i uint) int {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(i))
	bw.buf.Write(b[:])
	if VerboseMode {
		fmt.Fprintf(os.Stderr, " %x %x %x %x", b[0], b[1], b[2], b[3])
	}
	return 4
}

func (bw *BufferWrapper) Write8u(v uint64) int {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	bw.buf.Write(b[:])
	if VerboseMode {
		fmt.Fprintf(os.Stderr, " %x", v)
	}
	return 8
}

// fixup is a rel32 field that waits for its label to be bound.
type fixup struct {
	position int // start of the rel32 field
	label    string
}

// Out emits x86-64 machine code into a buffer. Jumps target named labels and
// are patched by Finish; 64-bit immediates can be left as relocations.
type Out struct {
	buf    bytes.Buffer
	writer *BufferWrapper

	labels      map[string]int
	fixups      []fixup
	relocations []Relocation
	nextLabel   int
	err         error
}

// NewOut creates an empty emitter.
func NewOut() *Out {
	o := &Out{labels: make(map[string]int)}
	o.writer = &BufferWrapper{&o.buf}
	return o
}

func (o *Out) Write(b uint8) {
	o.writer.Write(b)
}

func (o *Out) WriteUnsigned(i uint) {
	o.writer.WriteUnsigned(i)
}

// Len is the number of bytes emitted so far.
func (o *Out) Len() int {
	return o.buf.Len()
}

// fail records the first emitter error; Finish reports it.
func (o *Out) fail(format string, args ...any) {
	if o.err == nil {
		o.err = fmt.Errorf(format, args...)
	}
}

func (o *Out) reg(name string) (Register, bool) {
	r, ok := GetRegister(name)
	if !ok {
		o.fail("x64: unknown register %q", name)
	}
	return r, ok
}

// NewLabel returns a fresh label name starting with prefix.
func (o *Out) NewLabel(prefix string) string {
	o.nextLabel++
	return fmt.Sprintf("%s.%d", prefix, o.nextLabel)
}

// Label binds name to the current offset.
func (o *Out) Label(name string) {
	if _, dup := o.labels[name]; dup {
		o.fail("x64: label %s bound twice", name)
		return
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "%s:\n", name)
	}
	o.labels[name] = o.Len()
}

// LabelOffset returns where name was bound.
func (o *Out) LabelOffset(name string) (int, bool) {
	off, ok := o.labels[name]
	return off, ok
}

// writeRel32 leaves a placeholder for a jump to label.
func (o *Out) writeRel32(label string) {
	o.fixups = append(o.fixups, fixup{position: o.Len(), label: label})
	o.WriteUnsigned(0)
}

// writeReloc emits an 8-byte placeholder and records a relocation for it.
func (o *Out) writeReloc(target fmt.Stringer) {
	o.relocations = append(o.relocations, Relocation{Offset: o.Len(), Target: target})
	o.writer.Write8u(RelocPlaceholder)
}

// Finish patches every jump and returns the code and its relocations.
func (o *Out) Finish() ([]byte, []Relocation, error) {
	if o.err != nil {
		return nil, nil, o.err
	}
	code := bytes.Clone(o.buf.Bytes())
	for _, f := range o.fixups {
		target, ok := o.labels[f.label]
		if !ok {
			return nil, nil, fmt.Errorf("x64: undefined label %s", f.label)
		}
		rel := target - (f.position + 4)
		binary.LittleEndian.PutUint32(code[f.position:], uint32(int32(rel)))
	}
	relocs := make([]Relocation, len(o.relocations))
	copy(relocs, o.relocations)
	return code, relocs, nil
}
