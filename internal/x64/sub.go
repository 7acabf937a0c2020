// Completion: 100% - Instruction implementation complete
package x64

// SubImmFromReg generates sub dst, imm
func (o *Out) SubImmFromReg(dst string, imm int32) {
	o.regImm(opSub, dst, imm)
}

// SubImmFromMem generates sub qword [base+disp], imm
func (o *Out) SubImmFromMem(base string, disp int, imm int32) {
	o.memImm(opSub, base, disp, imm)
}

// AndImmToReg generates and dst, imm. and rsp, -16 aligns the stack.
func (o *Out) AndImmToReg(dst string, imm int32) {
	o.regImm(opAnd, dst, imm)
}
