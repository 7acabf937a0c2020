// Completion: 100% - Opcode table complete
package bytecode

import "fmt"

// Opcode is a single byte of the source instruction stream.
type Opcode uint8

const (
	POP_TOP                      Opcode = 1
	ROT_TWO                      Opcode = 2
	ROT_THREE                    Opcode = 3
	DUP_TOP                      Opcode = 4
	DUP_TOP_TWO                  Opcode = 5
	NOP                          Opcode = 9
	UNARY_POSITIVE               Opcode = 10
	UNARY_NEGATIVE               Opcode = 11
	UNARY_NOT                    Opcode = 12
	UNARY_INVERT                 Opcode = 15
	BINARY_MATRIX_MULTIPLY       Opcode = 16
	INPLACE_MATRIX_MULTIPLY      Opcode = 17
	BINARY_POWER                 Opcode = 19
	BINARY_MULTIPLY              Opcode = 20
	BINARY_MODULO                Opcode = 22
	BINARY_ADD                   Opcode = 23
	BINARY_SUBTRACT              Opcode = 24
	BINARY_SUBSCR                Opcode = 25
	BINARY_FLOOR_DIVIDE          Opcode = 26
	BINARY_TRUE_DIVIDE           Opcode = 27
	INPLACE_FLOOR_DIVIDE         Opcode = 28
	INPLACE_TRUE_DIVIDE          Opcode = 29
	GET_AITER                    Opcode = 50
	GET_ANEXT                    Opcode = 51
	BEFORE_ASYNC_WITH            Opcode = 52
	INPLACE_ADD                  Opcode = 55
	INPLACE_SUBTRACT             Opcode = 56
	INPLACE_MULTIPLY             Opcode = 57
	INPLACE_MODULO               Opcode = 59
	STORE_SUBSCR                 Opcode = 60
	DELETE_SUBSCR                Opcode = 61
	BINARY_LSHIFT                Opcode = 62
	BINARY_RSHIFT                Opcode = 63
	BINARY_AND                   Opcode = 64
	BINARY_XOR                   Opcode = 65
	BINARY_OR                    Opcode = 66
	INPLACE_POWER                Opcode = 67
	GET_ITER                     Opcode = 68
	GET_YIELD_FROM_ITER          Opcode = 69
	PRINT_EXPR                   Opcode = 70
	LOAD_BUILD_CLASS             Opcode = 71
	YIELD_FROM                   Opcode = 72
	GET_AWAITABLE                Opcode = 73
	INPLACE_LSHIFT               Opcode = 75
	INPLACE_RSHIFT               Opcode = 76
	INPLACE_AND                  Opcode = 77
	INPLACE_XOR                  Opcode = 78
	INPLACE_OR                   Opcode = 79
	BREAK_LOOP                   Opcode = 80
	WITH_CLEANUP_START           Opcode = 81
	WITH_CLEANUP_FINISH          Opcode = 82
	RETURN_VALUE                 Opcode = 83
	IMPORT_STAR                  Opcode = 84
	SETUP_ANNOTATIONS            Opcode = 85
	YIELD_VALUE                  Opcode = 86
	POP_BLOCK                    Opcode = 87
	END_FINALLY                  Opcode = 88
	POP_EXCEPT                   Opcode = 89
	STORE_NAME                   Opcode = 90
	DELETE_NAME                  Opcode = 91
	UNPACK_SEQUENCE              Opcode = 92
	FOR_ITER                     Opcode = 93
	UNPACK_EX                    Opcode = 94
	STORE_ATTR                   Opcode = 95
	DELETE_ATTR                  Opcode = 96
	STORE_GLOBAL                 Opcode = 97
	DELETE_GLOBAL                Opcode = 98
	LOAD_CONST                   Opcode = 100
	LOAD_NAME                    Opcode = 101
	BUILD_TUPLE                  Opcode = 102
	BUILD_LIST                   Opcode = 103
	BUILD_SET                    Opcode = 104
	BUILD_MAP                    Opcode = 105
	LOAD_ATTR                    Opcode = 106
	COMPARE_OP                   Opcode = 107
	IMPORT_NAME                  Opcode = 108
	IMPORT_FROM                  Opcode = 109
	JUMP_FORWARD                 Opcode = 110
	JUMP_IF_FALSE_OR_POP         Opcode = 111
	JUMP_IF_TRUE_OR_POP          Opcode = 112
	JUMP_ABSOLUTE                Opcode = 113
	POP_JUMP_IF_FALSE            Opcode = 114
	POP_JUMP_IF_TRUE             Opcode = 115
	LOAD_GLOBAL                  Opcode = 116
	CONTINUE_LOOP                Opcode = 119
	SETUP_LOOP                   Opcode = 120
	SETUP_EXCEPT                 Opcode = 121
	SETUP_FINALLY                Opcode = 122
	LOAD_FAST                    Opcode = 124
	STORE_FAST                   Opcode = 125
	DELETE_FAST                  Opcode = 126
	STORE_ANNOTATION             Opcode = 127
	RAISE_VARARGS                Opcode = 130
	CALL_FUNCTION                Opcode = 131
	MAKE_FUNCTION                Opcode = 132
	BUILD_SLICE                  Opcode = 133
	LOAD_CLOSURE                 Opcode = 135
	LOAD_DEREF                   Opcode = 136
	STORE_DEREF                  Opcode = 137
	DELETE_DEREF                 Opcode = 138
	CALL_FUNCTION_KW             Opcode = 141
	CALL_FUNCTION_EX             Opcode = 142
	SETUP_WITH                   Opcode = 143
	EXTENDED_ARG                 Opcode = 144
	LIST_APPEND                  Opcode = 145
	SET_ADD                      Opcode = 146
	MAP_ADD                      Opcode = 147
	LOAD_CLASSDEREF              Opcode = 148
	BUILD_LIST_UNPACK            Opcode = 149
	BUILD_MAP_UNPACK             Opcode = 150
	BUILD_MAP_UNPACK_WITH_CALL   Opcode = 151
	BUILD_TUPLE_UNPACK           Opcode = 152
	BUILD_SET_UNPACK             Opcode = 153
	SETUP_ASYNC_WITH             Opcode = 154
	FORMAT_VALUE                 Opcode = 155
	BUILD_CONST_KEY_MAP          Opcode = 156
	BUILD_STRING                 Opcode = 157
	BUILD_TUPLE_UNPACK_WITH_CALL Opcode = 158
)

// HAVE_ARGUMENT is a pseudo-opcode: opcodes at or above it carry an operand.
const HAVE_ARGUMENT Opcode = 90

// InstructionSize is the width of one instruction unit in bytes.
const InstructionSize = 2

var opcodeNames = map[Opcode]string{
	POP_TOP:                      "POP_TOP",
	ROT_TWO:                      "ROT_TWO",
	ROT_THREE:                    "ROT_THREE",
	DUP_TOP:                      "DUP_TOP",
	DUP_TOP_TWO:                  "DUP_TOP_TWO",
	NOP:                          "NOP",
	UNARY_POSITIVE:               "UNARY_POSITIVE",
	UNARY_NEGATIVE:               "UNARY_NEGATIVE",
	UNARY_NOT:                    "UNARY_NOT",
	UNARY_INVERT:                 "UNARY_INVERT",
	BINARY_MATRIX_MULTIPLY:       "BINARY_MATRIX_MULTIPLY",
	INPLACE_MATRIX_MULTIPLY:      "INPLACE_MATRIX_MULTIPLY",
	BINARY_POWER:                 "BINARY_POWER",
	BINARY_MULTIPLY:              "BINARY_MULTIPLY",
	BINARY_MODULO:                "BINARY_MODULO",
	BINARY_ADD:                   "BINARY_ADD",
	BINARY_SUBTRACT:              "BINARY_SUBTRACT",
	BINARY_SUBSCR:                "BINARY_SUBSCR",
	BINARY_FLOOR_DIVIDE:          "BINARY_FLOOR_DIVIDE",
	BINARY_TRUE_DIVIDE:           "BINARY_TRUE_DIVIDE",
	INPLACE_FLOOR_DIVIDE:         "INPLACE_FLOOR_DIVIDE",
	INPLACE_TRUE_DIVIDE:          "INPLACE_TRUE_DIVIDE",
	GET_AITER:                    "GET_AITER",
	GET_ANEXT:                    "GET_ANEXT",
	BEFORE_ASYNC_WITH:            "BEFORE_ASYNC_WITH",
	INPLACE_ADD:                  "INPLACE_ADD",
	INPLACE_SUBTRACT:             "INPLACE_SUBTRACT",
	INPLACE_MULTIPLY:             "INPLACE_MULTIPLY",
	INPLACE_MODULO:               "INPLACE_MODULO",
	STORE_SUBSCR:                 "STORE_SUBSCR",
	DELETE_SUBSCR:                "DELETE_SUBSCR",
	BINARY_LSHIFT:                "BINARY_LSHIFT",
	BINARY_RSHIFT:                "BINARY_RSHIFT",
	BINARY_AND:                   "BINARY_AND",
	BINARY_XOR:                   "BINARY_XOR",
	BINARY_OR:                    "BINARY_OR",
	INPLACE_POWER:                "INPLACE_POWER",
	GET_ITER:                     "GET_ITER",
	GET_YIELD_FROM_ITER:          "GET_YIELD_FROM_ITER",
	PRINT_EXPR:                   "PRINT_EXPR",
	LOAD_BUILD_CLASS:             "LOAD_BUILD_CLASS",
	YIELD_FROM:                   "YIELD_FROM",
	GET_AWAITABLE:                "GET_AWAITABLE",
	INPLACE_LSHIFT:               "INPLACE_LSHIFT",
	INPLACE_RSHIFT:               "INPLACE_RSHIFT",
	INPLACE_AND:                  "INPLACE_AND",
	INPLACE_XOR:                  "INPLACE_XOR",
	INPLACE_OR:                   "INPLACE_OR",
	BREAK_LOOP:                   "BREAK_LOOP",
	WITH_CLEANUP_START:           "WITH_CLEANUP_START",
	WITH_CLEANUP_FINISH:          "WITH_CLEANUP_FINISH",
	RETURN_VALUE:                 "RETURN_VALUE",
	IMPORT_STAR:                  "IMPORT_STAR",
	SETUP_ANNOTATIONS:            "SETUP_ANNOTATIONS",
	YIELD_VALUE:                  "YIELD_VALUE",
	POP_BLOCK:                    "POP_BLOCK",
	END_FINALLY:                  "END_FINALLY",
	POP_EXCEPT:                   "POP_EXCEPT",
	STORE_NAME:                   "STORE_NAME",
	DELETE_NAME:                  "DELETE_NAME",
	UNPACK_SEQUENCE:              "UNPACK_SEQUENCE",
	FOR_ITER:                     "FOR_ITER",
	UNPACK_EX:                    "UNPACK_EX",
	STORE_ATTR:                   "STORE_ATTR",
	DELETE_ATTR:                  "DELETE_ATTR",
	STORE_GLOBAL:                 "STORE_GLOBAL",
	DELETE_GLOBAL:                "DELETE_GLOBAL",
	LOAD_CONST:                   "LOAD_CONST",
	LOAD_NAME:                    "LOAD_NAME",
	BUILD_TUPLE:                  "BUILD_TUPLE",
	BUILD_LIST:                   "BUILD_LIST",
	BUILD_SET:                    "BUILD_SET",
	BUILD_MAP:                    "BUILD_MAP",
	LOAD_ATTR:                    "LOAD_ATTR",
	COMPARE_OP:                   "COMPARE_OP",
	IMPORT_NAME:                  "IMPORT_NAME",
	IMPORT_FROM:                  "IMPORT_FROM",
	JUMP_FORWARD:                 "JUMP_FORWARD",
	JUMP_IF_FALSE_OR_POP:         "JUMP_IF_FALSE_OR_POP",
	JUMP_IF_TRUE_OR_POP:          "JUMP_IF_TRUE_OR_POP",
	JUMP_ABSOLUTE:                "JUMP_ABSOLUTE",
	POP_JUMP_IF_FALSE:            "POP_JUMP_IF_FALSE",
	POP_JUMP_IF_TRUE:             "POP_JUMP_IF_TRUE",
	LOAD_GLOBAL:                  "LOAD_GLOBAL",
	CONTINUE_LOOP:                "CONTINUE_LOOP",
	SETUP_LOOP:                   "SETUP_LOOP",
	SETUP_EXCEPT:                 "SETUP_EXCEPT",
	SETUP_FINALLY:                "SETUP_FINALLY",
	LOAD_FAST:                    "LOAD_FAST",
	STORE_FAST:                   "STORE_FAST",
	DELETE_FAST:                  "DELETE_FAST",
	STORE_ANNOTATION:             "STORE_ANNOTATION",
	RAISE_VARARGS:                "RAISE_VARARGS",
	CALL_FUNCTION:                "CALL_FUNCTION",
	MAKE_FUNCTION:                "MAKE_FUNCTION",
	BUILD_SLICE:                  "BUILD_SLICE",
	LOAD_CLOSURE:                 "LOAD_CLOSURE",
	LOAD_DEREF:                   "LOAD_DEREF",
	STORE_DEREF:                  "STORE_DEREF",
	DELETE_DEREF:                 "DELETE_DEREF",
	CALL_FUNCTION_KW:             "CALL_FUNCTION_KW",
	CALL_FUNCTION_EX:             "CALL_FUNCTION_EX",
	SETUP_WITH:                   "SETUP_WITH",
	EXTENDED_ARG:                 "EXTENDED_ARG",
	LIST_APPEND:                  "LIST_APPEND",
	SET_ADD:                      "SET_ADD",
	MAP_ADD:                      "MAP_ADD",
	LOAD_CLASSDEREF:              "LOAD_CLASSDEREF",
	BUILD_LIST_UNPACK:            "BUILD_LIST_UNPACK",
	BUILD_MAP_UNPACK:             "BUILD_MAP_UNPACK",
	BUILD_MAP_UNPACK_WITH_CALL:   "BUILD_MAP_UNPACK_WITH_CALL",
	BUILD_TUPLE_UNPACK:           "BUILD_TUPLE_UNPACK",
	BUILD_SET_UNPACK:             "BUILD_SET_UNPACK",
	SETUP_ASYNC_WITH:             "SETUP_ASYNC_WITH",
	FORMAT_VALUE:                 "FORMAT_VALUE",
	BUILD_CONST_KEY_MAP:          "BUILD_CONST_KEY_MAP",
	BUILD_STRING:                 "BUILD_STRING",
	BUILD_TUPLE_UNPACK_WITH_CALL: "BUILD_TUPLE_UNPACK_WITH_CALL",
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("<invalid opcode %d>", uint8(op))
}

// Valid reports whether op is a known opcode of the source format.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// HasArgument reports whether op carries an operand.
func (op Opcode) HasArgument() bool {
	return op >= HAVE_ARGUMENT
}

// LookupOpcode finds an opcode by its mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// Branch classification used by the block partitioner.
var (
	directBranchOpcodes = map[Opcode]bool{
		JUMP_ABSOLUTE: true,
		JUMP_FORWARD:  true,
		RETURN_VALUE:  true,
	}

	conditionalBranchOpcodes = map[Opcode]bool{
		FOR_ITER:             true,
		JUMP_IF_TRUE_OR_POP:  true,
		JUMP_IF_FALSE_OR_POP: true,
		POP_JUMP_IF_FALSE:    true,
		POP_JUMP_IF_TRUE:     true,
	}

	relativeBranchOpcodes = map[Opcode]bool{
		FOR_ITER:     true,
		JUMP_FORWARD: true,
	}

	absoluteBranchOpcodes = map[Opcode]bool{
		CONTINUE_LOOP:        true,
		JUMP_ABSOLUTE:        true,
		JUMP_IF_FALSE_OR_POP: true,
		JUMP_IF_TRUE_OR_POP:  true,
		POP_JUMP_IF_FALSE:    true,
		POP_JUMP_IF_TRUE:     true,
	}
)

// IsBranch reports whether op ends a basic block.
func (op Opcode) IsBranch() bool {
	return directBranchOpcodes[op] || conditionalBranchOpcodes[op]
}

// IsRelativeBranch reports whether op's target is offset-relative.
func (op Opcode) IsRelativeBranch() bool {
	return relativeBranchOpcodes[op]
}

// IsAbsoluteBranch reports whether op's argument is an absolute offset.
func (op Opcode) IsAbsoluteBranch() bool {
	return absoluteBranchOpcodes[op]
}
