package value

// Kind is the tag of a Value's discriminated union: nil,
// boolean, int, float, string, array, map, class instance, struct instance,
// native class instance, native struct instance, closure, function, process
// reference, error, native function or bound method (plus the internal
// KCell).
type Kind uint8

const (
	KNil Kind = iota
	KBool
	KInt
	KFloat
	KString
	KArray
	KMap
	KClassInstance
	KStructInstance
	KNativeClassInstance
	KNativeStructInstance
	KClosure
	KFunction
	KProcess
	KError
	KNativeFunc
	KBoundMethod

	// KCell never escapes to script code: it marks a local slot that holds
	// the shared box of a captured variable rather than the variable itself.
	// The dedicated cell opcodes (LOCALCELL, SETLOCALCELL, FREE, SETFREE) are
	// the only instructions that read or write through it.
	KCell
)

var kindNames = [...]string{
	KNil:                 "nil",
	KBool:                "bool",
	KInt:                 "int",
	KFloat:               "float",
	KString:              "string",
	KArray:               "array",
	KMap:                 "map",
	KClassInstance:       "class",
	KStructInstance:      "struct",
	KNativeClassInstance: "native_class",
	KNativeStructInstance: "native_struct",
	KClosure:             "closure",
	KFunction:            "function",
	KProcess:             "process",
	KError:               "error",
	KNativeFunc:          "native_function",
	KBoundMethod:         "bound_method",
	KCell:                "cell",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "illegal kind"
}
