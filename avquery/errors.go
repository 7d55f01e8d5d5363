package avquery

import "fmt"

// ProgrammerError marks a violated API contract: calling executeAndCache on
// an executor that doesn't support it, registering a query value id twice,
// or any other misuse the caller should never trigger. These
// are fatal per the engine's error-handling design: they panic rather than
// returning an error value, the same way StreamingRelation.Iterator() panics
// in this engine's teacher lineage rather than threading a sentinel error
// through every caller for a condition that is always a bug.
type ProgrammerError struct {
	Op  string
	Msg string
}

func (e *ProgrammerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Fatalf panics with a ProgrammerError. Callers use it for invariant
// violations and unsupported-operation misuse documented in §7 of this
// engine's design as "programmer error" — never for recoverable conditions
// like a shape-unknown query term or a momentarily unavailable comparator,
// which degrade locally instead (see the compiler's interpreted fallback and
// the order service's suspension protocol).
func Fatalf(op, format string, args ...interface{}) {
	panic(&ProgrammerError{Op: op, Msg: fmt.Sprintf(format, args...)})
}
