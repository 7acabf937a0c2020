// Completion: 100% - IR instruction set complete
package ir

import "fmt"

// Label names a basic block. Labels are dense, starting at bb0 for the block
// at offset 0.
type Label int

func (l Label) String() string {
	return fmt.Sprintf("bb%d", int(l))
}

// Instruction is one IR instruction. The set of implementations is closed.
type Instruction interface {
	fmt.Stringer
	isInstruction()
}

// Pool selects which table LoadRef reads from.
type Pool int

const (
	Locals Pool = iota
	Constants
)

func (p Pool) String() string {
	switch p {
	case Locals:
		return "locals"
	case Constants:
		return "consts"
	}
	return fmt.Sprintf("<pool %d>", int(p))
}

// UnaryOp is the operator of a UnaryOperation.
type UnaryOp int

const (
	Not UnaryOp = iota
	Positive
	Negative
	Invert
)

var unaryOpNames = [...]string{"not", "pos", "neg", "invert"}

func (op UnaryOp) String() string {
	if op >= 0 && int(op) < len(unaryOpNames) {
		return unaryOpNames[op]
	}
	return fmt.Sprintf("<unary %d>", int(op))
}

// Predicate is a COMPARE_OP operand. Values match the source format.
type Predicate int

const (
	Less Predicate = iota
	LessEqual
	Equal
	NotEqual
	Greater
	GreaterEqual
	In
	NotIn
	Is
	IsNot
)

var predicateNames = [...]string{"<", "<=", "==", "!=", ">", ">=", "in", "not in", "is", "is not"}

func (p Predicate) String() string {
	if p >= 0 && int(p) < len(predicateNames) {
		return predicateNames[p]
	}
	return fmt.Sprintf("<predicate %d>", int(p))
}

// Valid reports whether p is one of the ten comparison operators.
func (p Predicate) Valid() bool {
	return p >= 0 && int(p) < len(predicateNames)
}

// LoadRef pushes a new reference to a local (arguments included) or a
// constant.
type LoadRef struct {
	Index int
	Pool  Pool
}

// Store pops the top of stack into a local or argument slot.
type Store struct {
	Index int
}

// LoadAttr replaces the top of stack with one of its attributes.
type LoadAttr struct {
	NameIndex int
}

// StoreAttr pops an owner and a value and sets owner.name = value.
type StoreAttr struct {
	NameIndex int
}

// LoadGlobal pushes a name looked up in globals, then builtins.
type LoadGlobal struct {
	NameIndex int
}

type UnaryOperation struct {
	Op UnaryOp
}

type Compare struct {
	Predicate Predicate
}

// Call invokes the callable below NumArgs arguments.
type Call struct {
	NumArgs int
}

type PopTop struct{}

type Branch struct {
	Target Label
}

// ConditionalBranch tests the top of stack. PopBeforeEval means the value is
// consumed on both paths; otherwise it stays on the stack along the jump
// path. JumpWhenTrue selects which outcome is the jump.
type ConditionalBranch struct {
	TrueTarget    Label
	FalseTarget   Label
	PopBeforeEval bool
	JumpWhenTrue  bool
}

// JumpTarget is the label reached by the taken jump.
func (c ConditionalBranch) JumpTarget() Label {
	if c.JumpWhenTrue {
		return c.TrueTarget
	}
	return c.FalseTarget
}

// FallTarget is the label reached when the jump is not taken.
func (c ConditionalBranch) FallTarget() Label {
	if c.JumpWhenTrue {
		return c.FalseTarget
	}
	return c.TrueTarget
}

type ReturnValue struct{}

// SetupLoop opens a loop. It must be the last instruction of its block.
type SetupLoop struct{}

// PopBlock closes the innermost loop. It must be the first instruction of
// its block.
type PopBlock struct{}

func (LoadRef) isInstruction()           {}
func (Store) isInstruction()             {}
func (LoadAttr) isInstruction()          {}
func (StoreAttr) isInstruction()         {}
func (LoadGlobal) isInstruction()        {}
func (UnaryOperation) isInstruction()    {}
func (Compare) isInstruction()           {}
func (Call) isInstruction()              {}
func (PopTop) isInstruction()            {}
func (Branch) isInstruction()            {}
func (ConditionalBranch) isInstruction() {}
func (ReturnValue) isInstruction()       {}
func (SetupLoop) isInstruction()         {}
func (PopBlock) isInstruction()          {}

func (i LoadRef) String() string        { return fmt.Sprintf("LoadRef %s[%d]", i.Pool, i.Index) }
func (i Store) String() string          { return fmt.Sprintf("Store %d", i.Index) }
func (i LoadAttr) String() string       { return fmt.Sprintf("LoadAttr name[%d]", i.NameIndex) }
func (i StoreAttr) String() string      { return fmt.Sprintf("StoreAttr name[%d]", i.NameIndex) }
func (i LoadGlobal) String() string     { return fmt.Sprintf("LoadGlobal name[%d]", i.NameIndex) }
func (i UnaryOperation) String() string { return fmt.Sprintf("UnaryOperation %s", i.Op) }
func (i Compare) String() string        { return fmt.Sprintf("Compare %s", i.Predicate) }
func (i Call) String() string           { return fmt.Sprintf("Call %d", i.NumArgs) }
func (PopTop) String() string           { return "PopTop" }
func (i Branch) String() string         { return fmt.Sprintf("Branch %s", i.Target) }
func (ReturnValue) String() string      { return "ReturnValue" }
func (SetupLoop) String() string        { return "SetupLoop" }
func (PopBlock) String() string         { return "PopBlock" }

func (i ConditionalBranch) String() string {
	return fmt.Sprintf("ConditionalBranch true=%s false=%s pop=%t jumpWhenTrue=%t",
		i.TrueTarget, i.FalseTarget, i.PopBeforeEval, i.JumpWhenTrue)
}
