package sieveresult

import (
	"github.com/funvibe/sievecore/internal/sieveerr"
)

// ProgramRunner is the collaborator contract the execute action hands an
// external program invocation to (spec supplement, grounded on
// original_source's sieve-extprograms plugin and its program-client event
// loop). A nil runner makes ExecuteAction a no-op, the same fallback
// OutboundSender/Notifier use.
type ProgramRunner interface {
	RunProgram(name string, args []string, stdin []byte) ([]byte, error)
}

type executeState struct{}

// ExecuteAction is the "execute" action definition: runs an external
// program with its configured arguments (the message is not passed to it),
// discarding its output — the original
// extension also supports capturing stdout back into the script's
// variable space, which has no home here since variable substitution is
// out of scope (no lexer/parser/evaluator in this engine).
type ExecuteAction struct{}

func (ExecuteAction) Name() string    { return "execute" }
func (ExecuteAction) Exclusive() bool { return false }

func (ExecuteAction) Equal(Context, Context) bool { return false }

func (ExecuteAction) Merge(a, _ Context) Context { return a }

func (ExecuteAction) Start(*Environment, Context) (SideState, sieveerr.Status) {
	return &executeState{}, sieveerr.OK
}

func (ExecuteAction) Execute(env *Environment, ctx Context, _ SideState) sieveerr.Status {
	if env.Programs == nil {
		return sieveerr.OK
	}
	program, _ := ctx["program"].(string)
	args := toStrings(ctx["args"])
	// The raw message body is a mail-store adapter concern (out of
	// scope here); the program receives only its configured arguments.
	if _, err := env.Programs.RunProgram(program, args, nil); err != nil {
		return sieveerr.Failure
	}
	return sieveerr.OK
}

func (ExecuteAction) Commit(*Environment, Context, SideState) sieveerr.Status { return sieveerr.OK }

func (ExecuteAction) Rollback(*Environment, Context, SideState) {}
