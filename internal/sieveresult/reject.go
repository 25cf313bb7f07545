package sieveresult

import (
	"github.com/funvibe/sievecore/internal/sieveerr"
)

// RejectAction is the "reject" action definition: exclusive, bounces the
// message back to its originator with a reason text via the
// OutboundSender collaborator. Two rejects are considered equal
// regardless of reason text (only one bounce is ever sent).
type RejectAction struct{}

func (RejectAction) Name() string    { return "reject" }
func (RejectAction) Exclusive() bool { return true }

func (RejectAction) Equal(Context, Context) bool { return true }

func (RejectAction) Merge(a, _ Context) Context { return a }

func (RejectAction) Start(*Environment, Context) (SideState, sieveerr.Status) {
	return nil, sieveerr.OK
}

func (RejectAction) Execute(env *Environment, ctx Context, _ SideState) sieveerr.Status {
	if env.Sender == nil {
		return sieveerr.OK
	}
	reason, _ := ctx["reason"].(string)
	if err := env.Sender.Reject(reason); err != nil {
		return sieveerr.Failure
	}
	return sieveerr.OK
}

func (RejectAction) Commit(env *Environment, ctx Context, _ SideState) sieveerr.Status {
	env.MessageSaved = true
	return sieveerr.OK
}

func (RejectAction) Rollback(*Environment, Context, SideState) {}
