// Completion: 100% - Simulated memory complete
package sim

import (
	"fmt"
	"slices"
)

// Layout of the simulated address space.
const (
	codeBase  uint64 = 0x0040_0000
	heapBase  uint64 = 0x1000_0000
	argsBase  uint64 = 0x6000_0000
	stackTop  uint64 = 0x7fff_0000
	stackSize uint64 = 64 * 1024

	wordSize uint64 = 8

	// returned to by the outermost ret
	exitAddress uint64 = 0x0bad_0000_0000_e417
)

// FaultError is a memory access the simulated program should never make.
type FaultError struct {
	Addr   uint64
	Write  bool
	Reason string
}

func (e *FaultError) Error() string {
	access := "read"
	if e.Write {
		access = "write"
	}
	return fmt.Sprintf("%s of %#x: %s", access, e.Addr, e.Reason)
}

type region struct {
	start, end uint64 // [start, end)
	name       string
}

// memory is a sparse word-addressed store. Only 8-byte aligned accesses
// inside a mapped region are allowed.
type memory struct {
	words   map[uint64]uint64
	regions []region
	freed   map[uint64]string // start of a freed object -> description
}

func newMemory() *memory {
	return &memory{
		words: make(map[uint64]uint64),
		freed: make(map[uint64]string),
	}
}

func (m *memory) mapRegion(start, size uint64, name string) {
	m.regions = append(m.regions, region{start: start, end: start + size, name: name})
	delete(m.freed, start)
}

func (m *memory) unmapRegion(start uint64, description string) {
	i := slices.IndexFunc(m.regions, func(r region) bool { return r.start == start })
	if i < 0 {
		return
	}
	r := m.regions[i]
	m.regions = slices.Delete(m.regions, i, i+1)
	for a := r.start; a < r.end; a += wordSize {
		delete(m.words, a)
	}
	m.freed[start] = description
}

func (m *memory) check(addr uint64, write bool) error {
	if addr%wordSize != 0 {
		return &FaultError{Addr: addr, Write: write, Reason: "misaligned"}
	}
	for _, r := range m.regions {
		if addr >= r.start && addr < r.end {
			return nil
		}
	}
	for start, what := range m.freed {
		if addr >= start && addr < start+objectSize {
			return &FaultError{Addr: addr, Write: write, Reason: "use after free of " + what}
		}
	}
	return &FaultError{Addr: addr, Write: write, Reason: "unmapped"}
}

func (m *memory) read(addr uint64) (uint64, error) {
	if err := m.check(addr, false); err != nil {
		return 0, err
	}
	return m.words[addr], nil
}

func (m *memory) write(addr, value uint64) error {
	if err := m.check(addr, true); err != nil {
		return err
	}
	m.words[addr] = value
	return nil
}
