package sieveresult

import (
	"strings"

	"github.com/funvibe/sievecore/internal/sieveerr"
)

type redirectState struct{}

// RedirectAction is the "redirect" action definition: exclusive, two
// redirects to the same address collapse (spec §3: "two redirects to the
// same address collapse"). Delivery is handed to the Environment's
// OutboundSender; a nil Sender makes Execute a no-op so dump/test runs can
// still exercise dedup and commit bookkeeping.
type RedirectAction struct{}

func (RedirectAction) Name() string    { return "redirect" }
func (RedirectAction) Exclusive() bool { return true }

func (RedirectAction) Equal(a, b Context) bool {
	aa, _ := a["address"].(string)
	ba, _ := b["address"].(string)
	return strings.EqualFold(aa, ba)
}

func (RedirectAction) Merge(a, _ Context) Context {
	return Context{"address": a["address"]}
}

func (RedirectAction) Start(*Environment, Context) (SideState, sieveerr.Status) {
	return &redirectState{}, sieveerr.OK
}

func (RedirectAction) Execute(env *Environment, ctx Context, _ SideState) sieveerr.Status {
	if env.Sender == nil {
		return sieveerr.OK
	}
	address, _ := ctx["address"].(string)
	if err := env.Sender.Redirect(address); err != nil {
		return sieveerr.Failure
	}
	return sieveerr.OK
}

func (RedirectAction) Commit(env *Environment, ctx Context, state SideState) sieveerr.Status {
	env.MessageSaved = true
	return sieveerr.OK
}

func (RedirectAction) Rollback(*Environment, Context, SideState) {}
