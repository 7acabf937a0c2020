// Completion: 100% - JIT facade complete
package jit

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/xyproto/cinder/internal/bytecode"
	"github.com/xyproto/cinder/internal/codegen"
	"github.com/xyproto/cinder/internal/codeobj"
	"github.com/xyproto/cinder/internal/hostrt"
	"github.com/xyproto/cinder/internal/ir"
)

var (
	// ErrUntranslatable is matched by every error that means the function
	// should run some other way.
	ErrUntranslatable = errors.New("untranslatable")

	// ErrNativeUnavailable is returned when this build cannot map or call
	// native code.
	ErrNativeUnavailable = errors.New("native code is not available in this build")
)

// UntranslatableError wraps the decode, CFG or validation error that
// stopped a translation.
type UntranslatableError struct {
	Function string
	Err      error
}

func (e *UntranslatableError) Error() string {
	return fmt.Sprintf("%s is untranslatable: %v", e.Function, e.Err)
}

func (e *UntranslatableError) Unwrap() error {
	return e.Err
}

func (e *UntranslatableError) Is(target error) bool {
	return target == ErrUntranslatable
}

// Translation is the result of compiling one function.
type Translation struct {
	CFG      *ir.ControlFlowGraph
	Artifact *codegen.Artifact
}

// Compiler runs the pipeline from bytecode to a loaded native function.
// Translation does not touch the resolver, so a compiler can translate
// for a host it cannot load into.
type Compiler struct {
	resolver *hostrt.Resolver
	log      commonlog.Logger
}

func NewCompiler(resolver *hostrt.Resolver) *Compiler {
	return &Compiler{
		resolver: resolver,
		log:      commonlog.GetLogger("cinder.jit"),
	}
}

// Compile translates raw bytecode described by fn. No artifact is returned
// together with an error.
func (c *Compiler) Compile(code []byte, fn codegen.Function) (*Translation, error) {
	g, err := bytecode.DisassembleCFG(code)
	if err != nil {
		return nil, c.untranslatable(fn.Name, err)
	}
	a, err := codegen.Generate(g, &fn)
	if err != nil {
		var invalid *codegen.ValidationError
		if errors.As(err, &invalid) {
			return nil, c.untranslatable(fn.Name, err)
		}
		return nil, err
	}
	c.log.Infof("translated %s: %d blocks, %d bytes, %d relocations", fn.Name, g.Len(), len(a.Code), len(a.Relocations))
	return &Translation{CFG: g, Artifact: a}, nil
}

// Translate compiles a code object, assembling its listing first if needed.
func (c *Compiler) Translate(code *codeobj.Code) (*Translation, error) {
	if err := code.Assemble(); err != nil {
		return nil, err
	}
	return c.Compile(code.Bytecode, code.Function())
}

func (c *Compiler) untranslatable(name string, err error) error {
	c.log.Debugf("cannot translate %s: %v", name, err)
	return &UntranslatableError{Function: name, Err: err}
}
