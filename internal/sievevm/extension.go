package sievevm

import (
	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sieveerr"
)

// Extension is the interpreter-side hook an extension registers under its
// canonical name (spec §4.2, "Entry": "for each, invoke the extension's
// interpreter-load hook, which may consume further operands to initialize
// its runtime slot"). InterpreterLoad runs once during the prelude, in
// the order the start block's own extensions list names the extension;
// Execute dispatches
// one extension-extended operation (sievecode.Op.Core == false) reached
// via (extension index, sub-code).
type Extension interface {
	Name() string
	// InterpreterLoad may read further operands from r to initialize a
	// runtime slot for this run, stored by the caller via SetExtState.
	// Extensions with no load-time state are free to no-op.
	InterpreterLoad(interp *Interpreter, r *sievecode.Reader) error
	// Execute dispatches sub-code within this extension's private opcode
	// space, operating on the same reader/interpreter as a core opcode
	// handler would.
	Execute(interp *Interpreter, subCode int, r *sievecode.Reader) sieveerr.Status
}

// NopExtension is embeddable by extensions that only contribute match
// types/comparators/action defs (resolved through sievematch.Registry /
// sieveresult.ActionDef) and own no VM opcodes of their own — e.g. the
// regex match type. Its Execute always reports BinCorrupt, since a
// well-formed binary never emits an opcode for an extension that declares
// none.
type NopExtension struct {
	ExtName string
}

func (e NopExtension) Name() string { return e.ExtName }

func (e NopExtension) InterpreterLoad(*Interpreter, *sievecode.Reader) error { return nil }

func (e NopExtension) Execute(interp *Interpreter, subCode int, _ *sievecode.Reader) sieveerr.Status {
	interp.reportCorrupt("extension %q has no opcodes (unexpected sub-code %d)", e.ExtName, subCode)
	return sieveerr.BinCorrupt
}
