package value

import "github.com/mna/divm/runtime/private"

// PrivateNames is the fixed, compile-time-constant set of process-private
// identifiers. Any of these names referenced from inside a process body (or
// a function nested within one) resolve to a dedicated private-slot load or
// store instead of an ordinary local, cell or global access. The set and its
// order are part of the on-disk bytecode format: a ProcessDef's private slots
// are always indexed the same way regardless of which of these names a given
// script actually touches.
var PrivateNames = private.PrivateNames

// NumPrivates is the fixed number of private slots every process instance
// carries, one per name in PrivateNames.
const NumPrivates = private.NumPrivates

// PrivateIndex reports the fixed slot index of name and whether it is in
// fact one of the privileged private names.
func PrivateIndex(name string) (int, bool) { return private.PrivateIndex(name) }
