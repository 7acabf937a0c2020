// Completion: 100% - Constant values complete
package codeobj

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Kind tags a Value.
type Kind string

const (
	None   Kind = "none"
	Bool   Kind = "bool"
	Int    Kind = "int"
	Str    Kind = "str"
	Object Kind = "object"   // plain object with attributes
	Native Kind = "function" // host function, named by Str
)

// Value is a constant, a namespace entry or a call argument.
type Value struct {
	Kind  Kind             `toml:"kind" cbor:"1,keyasint"`
	Bool  bool             `toml:"bool,omitempty" cbor:"2,keyasint,omitempty"`
	Int   int64            `toml:"int,omitempty" cbor:"3,keyasint,omitempty"`
	Str   string           `toml:"str,omitempty" cbor:"4,keyasint,omitempty"`
	Attrs map[string]Value `toml:"attrs,omitempty" cbor:"5,keyasint,omitempty"`
}

func NoneValue() Value        { return Value{Kind: None} }
func BoolValue(b bool) Value  { return Value{Kind: Bool, Bool: b} }
func IntValue(i int64) Value  { return Value{Kind: Int, Int: i} }
func StrValue(s string) Value { return Value{Kind: Str, Str: s} }
func NativeValue(name string) Value {
	return Value{Kind: Native, Str: name}
}

// ObjectValue is an object holding attrs.
func ObjectValue(attrs map[string]Value) Value {
	return Value{Kind: Object, Attrs: attrs}
}

// Check reports a value whose kind is unknown or whose fields do not fit
// its kind.
func (v Value) Check() error {
	switch v.Kind {
	case None, Bool, Int, Str:
	case Native:
		if v.Str == "" {
			return fmt.Errorf("function value without a name")
		}
	case Object:
		for _, name := range slices.Sorted(maps.Keys(v.Attrs)) {
			if err := v.Attrs[name].Check(); err != nil {
				return fmt.Errorf("attribute %s: %w", name, err)
			}
		}
	case "":
		return fmt.Errorf("value without a kind")
	default:
		return fmt.Errorf("unknown value kind %q", v.Kind)
	}
	return nil
}

func (v Value) String() string {
	switch v.Kind {
	case None:
		return "None"
	case Bool:
		if v.Bool {
			return "True"
		}
		return "False"
	case Int:
		return strconv.FormatInt(v.Int, 10)
	case Str:
		return strconv.Quote(v.Str)
	case Native:
		return "<function " + v.Str + ">"
	case Object:
		var sb strings.Builder
		sb.WriteString("object(")
		for i, name := range slices.Sorted(maps.Keys(v.Attrs)) {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%s", name, v.Attrs[name])
		}
		sb.WriteString(")")
		return sb.String()
	}
	return fmt.Sprintf("<%s>", v.Kind)
}

// ParseValue reads a value from its command line spelling: None, True,
// False, an integer, "object", a function as fn:name, or anything else as a
// string.
func ParseValue(s string) Value {
	switch s {
	case "None":
		return NoneValue()
	case "True":
		return BoolValue(true)
	case "False":
		return BoolValue(false)
	case "object":
		return ObjectValue(nil)
	}
	if name, ok := strings.CutPrefix(s, "fn:"); ok && name != "" {
		return NativeValue(name)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i)
	}
	return StrValue(s)
}
