// Package invariant holds the conservation checks of the simulation core.
//
// A failed check means money, goods, or shares were created or destroyed
// outside an explicit channel. Nothing downstream can be trusted after that,
// so Check panics instead of returning an error. Building with
// `-tags release` turns every check into a no-op.
package invariant

import "fmt"

// Violation is the panic value raised by a failed check.
type Violation struct {
	Message string
}

func (v Violation) Error() string {
	return "invariant violated: " + v.Message
}

// Check panics with a Violation when cond is false.
func Check(cond bool, format string, args ...any) {
	if !Enabled || cond {
		return
	}
	panic(Violation{Message: fmt.Sprintf(format, args...)})
}
