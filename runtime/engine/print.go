package engine

import (
	"fmt"
	"io"
	"strings"

	"github.com/mna/divm/runtime/value"
)

// RegisterPrint installs a variadic `print` native writing its arguments
// space-separated to w, one line per call. The engine itself never writes
// anywhere; the caller decides where script output lands.
func RegisterPrint(it *Interpreter, w io.Writer) {
	it.RegisterNative("print", func(args []value.Value) ([]value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			if a.Kind == value.KString {
				parts[i] = a.AsString().String()
			} else {
				parts[i] = a.GoString()
			}
		}
		_, err := fmt.Fprintln(w, strings.Join(parts, " "))
		return nil, err
	}, -1)
}
