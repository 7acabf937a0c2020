// Completion: 100% - Code object files complete
package codeobj

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fxamacker/cbor/v2"

	"github.com/xyproto/cinder/internal/bytecode"
	"github.com/xyproto/cinder/internal/codegen"
)

// Code is a function's code object: the bytecode plus the tables and
// namespaces it refers to. Files carry either a Listing, which is assembled
// on load, or raw Bytecode.
type Code struct {
	Name     string   `toml:"name" cbor:"1,keyasint"`
	ArgCount int      `toml:"argcount" cbor:"2,keyasint"`
	NLocals  int      `toml:"nlocals" cbor:"3,keyasint"`
	Names    []string `toml:"names" cbor:"4,keyasint,omitempty"`
	Consts   []Value  `toml:"consts" cbor:"5,keyasint,omitempty"`

	Globals      map[string]Value `toml:"globals" cbor:"6,keyasint,omitempty"`
	Builtins     map[string]Value `toml:"builtins" cbor:"7,keyasint,omitempty"`
	GlobalsKind  string           `toml:"globals_kind" cbor:"8,keyasint,omitempty"`  // mapping (default) or other
	BuiltinsKind string           `toml:"builtins_kind" cbor:"9,keyasint,omitempty"` // module (default), mapping or other

	// Args are the arguments "cinder run" passes when none are given.
	Args []Value `toml:"args" cbor:"10,keyasint,omitempty"`

	Listing  string `toml:"listing" cbor:"-"`
	Bytecode []byte `toml:"-" cbor:"11,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codeobj: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a code object to canonical CBOR. A listing is assembled
// first, so the output always carries bytecode.
func Marshal(c *Code) ([]byte, error) {
	if err := c.Assemble(); err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(c)
}

// Unmarshal deserializes and checks a CBOR code object.
func Unmarshal(data []byte) (*Code, error) {
	var c Code
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("codeobj: unmarshal: %w", err)
	}
	if err := c.Check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ParseTOML reads a TOML code object and assembles its listing.
func ParseTOML(data []byte) (*Code, error) {
	var c Code
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("codeobj: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("codeobj: unknown key %s", undecoded[0])
	}
	if err := c.Assemble(); err != nil {
		return nil, err
	}
	if err := c.Check(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile reads a .toml or .cbor code object. The name defaults to the
// file's base name.
func LoadFile(path string) (*Code, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var c *Code
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		c, err = ParseTOML(data)
	case ".cbor":
		c, err = Unmarshal(data)
	default:
		return nil, fmt.Errorf("%s: expected a .toml or .cbor file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.Name == "" {
		c.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return c, nil
}

// Assemble turns the listing into bytecode unless bytecode is already present.
func (c *Code) Assemble() error {
	if c.Listing == "" || len(c.Bytecode) > 0 {
		return nil
	}
	code, err := bytecode.ParseListing(c.Listing)
	if err != nil {
		return fmt.Errorf("codeobj: listing: %w", err)
	}
	c.Bytecode = code
	return nil
}

// Check reports a code object that is inconsistent on its own terms.
// Whether the code can be compiled is decided later.
func (c *Code) Check() error {
	if c.ArgCount < 0 || c.NLocals < c.ArgCount {
		return fmt.Errorf("codeobj: %d arguments but %d variables", c.ArgCount, c.NLocals)
	}
	if len(c.Bytecode)%bytecode.InstructionSize != 0 {
		return fmt.Errorf("codeobj: bytecode length %d is odd", len(c.Bytecode))
	}
	if _, err := namespaceKind(c.GlobalsKind, codegen.Mapping); err != nil {
		return fmt.Errorf("codeobj: globals: %w", err)
	}
	if _, err := namespaceKind(c.BuiltinsKind, codegen.ModuleLike); err != nil {
		return fmt.Errorf("codeobj: builtins: %w", err)
	}
	for i, v := range c.Consts {
		if err := v.Check(); err != nil {
			return fmt.Errorf("codeobj: const %d: %w", i, err)
		}
	}
	for _, ns := range []map[string]Value{c.Globals, c.Builtins} {
		for name, v := range ns {
			if err := v.Check(); err != nil {
				return fmt.Errorf("codeobj: %s: %w", name, err)
			}
		}
	}
	for i, v := range c.Args {
		if err := v.Check(); err != nil {
			return fmt.Errorf("codeobj: argument %d: %w", i, err)
		}
	}
	return nil
}

func namespaceKind(s string, def codegen.NamespaceKind) (codegen.NamespaceKind, error) {
	switch s {
	case "":
		return def, nil
	case "mapping":
		return codegen.Mapping, nil
	case "module":
		return codegen.ModuleLike, nil
	case "other":
		return codegen.Other, nil
	}
	return codegen.Other, fmt.Errorf("unknown namespace kind %q", s)
}

// Function describes the code object to the code generator.
func (c *Code) Function() codegen.Function {
	globals, _ := namespaceKind(c.GlobalsKind, codegen.Mapping)
	builtins, _ := namespaceKind(c.BuiltinsKind, codegen.ModuleLike)
	return codegen.Function{
		Name:      c.Name,
		ArgCount:  c.ArgCount,
		NLocals:   c.NLocals,
		NumConsts: len(c.Consts),
		NumNames:  len(c.Names),
		Globals:   codegen.Namespace{Kind: globals},
		Builtins:  codegen.Namespace{Kind: builtins},
	}
}
