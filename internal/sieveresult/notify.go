package sieveresult

import (
	"github.com/funvibe/sievecore/internal/sieveerr"
)

type notifyState struct{}

// NotifyAction is the "notify" action definition (ext-enotify, spec
// supplement — the original defines this alongside fileinto/redirect/
// reject but the distilled spec only named the latter three). Dedup is
// narrower than store/redirect/reject: only an exact (method, message)
// repeat collapses, so a script is still free to fire several distinct
// notify methods for one message.
type NotifyAction struct{}

func (NotifyAction) Name() string    { return "notify" }
func (NotifyAction) Exclusive() bool { return true }

func (NotifyAction) Equal(a, b Context) bool {
	am, _ := a["method"].(string)
	bm, _ := b["method"].(string)
	at, _ := a["message"].(string)
	bt, _ := b["message"].(string)
	return am == bm && at == bt
}

func (NotifyAction) Merge(a, _ Context) Context { return a }

func (NotifyAction) Start(*Environment, Context) (SideState, sieveerr.Status) {
	return &notifyState{}, sieveerr.OK
}

func (NotifyAction) Execute(env *Environment, ctx Context, _ SideState) sieveerr.Status {
	if env.Notifier == nil {
		return sieveerr.OK
	}
	method, _ := ctx["method"].(string)
	message, _ := ctx["message"].(string)
	if err := env.Notifier.Notify(method, message); err != nil {
		return sieveerr.Failure
	}
	return sieveerr.OK
}

func (NotifyAction) Commit(*Environment, Context, SideState) sieveerr.Status { return sieveerr.OK }

func (NotifyAction) Rollback(*Environment, Context, SideState) {}
