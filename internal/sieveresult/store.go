package sieveresult

import (
	"strings"

	"github.com/funvibe/sievecore/internal/sieveerr"
)

type storeState struct {
	mailbox   string
	handle    MailboxHandle
	tx        Transaction
	redundant bool
}

// StoreAction is the "fileinto" action definition: exclusive, folder names
// compared case-insensitively (spec §4.4: "store-to-INBOX is considered
// equal to store-to-inbox"), with the redundant-store optimization (no new
// copy when the target mailbox is the message's origin mailbox).
type StoreAction struct{}

func (StoreAction) Name() string      { return "store" }
func (StoreAction) Exclusive() bool   { return true }

func (StoreAction) Equal(a, b Context) bool {
	am, _ := a["mailbox"].(string)
	bm, _ := b["mailbox"].(string)
	return strings.EqualFold(am, bm)
}

func (StoreAction) Merge(a, b Context) Context {
	out := Context{"mailbox": a["mailbox"]}
	out["flags"] = mergeStrings(toStrings(a["flags"]), toStrings(b["flags"]))
	out["keywords"] = mergeStrings(toStrings(a["keywords"]), toStrings(b["keywords"]))
	return out
}

func (StoreAction) Start(env *Environment, ctx Context) (SideState, sieveerr.Status) {
	mailbox, _ := ctx["mailbox"].(string)
	h, err := env.Store.OpenMailbox(mailbox)
	if err != nil {
		if err == ErrNoSuchMailbox {
			if !env.AutoCreate {
				return nil, sieveerr.Failure
			}
			if cerr := env.Store.CreateMailbox(mailbox); cerr != nil {
				return nil, sieveerr.Failure
			}
			if env.AutoSubscribe {
				_ = env.Store.Subscribe(mailbox)
			}
			h, err = env.Store.OpenMailbox(mailbox)
			if err != nil {
				return nil, sieveerr.Failure
			}
		} else {
			return nil, sieveerr.TempFailure
		}
	}
	return &storeState{mailbox: mailbox, handle: h}, sieveerr.OK
}

func (StoreAction) Execute(env *Environment, ctx Context, state SideState) sieveerr.Status {
	s := state.(*storeState)
	if env.Message != nil && strings.EqualFold(s.mailbox, env.Message.OriginMailbox) {
		// Redundant store: the message already sits in this mailbox, so
		// the copy is skipped. No mail-store call is made, so the
		// flags/keywords in ctx are not applied to the existing message.
		s.redundant = true
		return sieveerr.OK
	}
	tx, err := env.Store.BeginTransaction(s.handle)
	if err != nil {
		return sieveerr.Failure
	}
	s.tx = tx
	if err := env.Store.SaveMail(tx, env.Message, toStrings(ctx["flags"]), toStrings(ctx["keywords"])); err != nil {
		return sieveerr.Failure
	}
	return sieveerr.OK
}

func (StoreAction) Commit(env *Environment, ctx Context, state SideState) sieveerr.Status {
	s := state.(*storeState)
	if !s.redundant {
		if err := env.Store.Commit(s.tx); err != nil {
			return sieveerr.Failure
		}
	}
	env.MessageSaved = true
	return sieveerr.OK
}

func (StoreAction) Rollback(env *Environment, ctx Context, state SideState) {
	s, ok := state.(*storeState)
	if ok && s.tx != nil {
		_ = env.Store.Rollback(s.tx)
	}
}

// KeepAction is the implicit-keep action definition: identical behavior to
// StoreAction, named "keep" so Result can recognize it.
type KeepAction struct{ StoreAction }

func (KeepAction) Name() string { return "keep" }

// DiscardAction cancels the implicit keep when the script executes
// "discard". It performs no mail-store work; like every other core action
// opcode it is recorded via Result.Add, and being exclusive and distinct
// from "keep" it trips HasExclusiveOverride the same way fileinto/redirect/
// reject do, so EnsureImplicitKeep's existing override check is what
// actually suppresses the fallback save — no separate out-of-band flag.
type DiscardAction struct{}

func (DiscardAction) Name() string                { return "discard" }
func (DiscardAction) Exclusive() bool             { return true }
func (DiscardAction) Equal(Context, Context) bool { return true }
func (DiscardAction) Merge(a, _ Context) Context  { return a }
func (DiscardAction) Start(*Environment, Context) (SideState, sieveerr.Status) {
	return nil, sieveerr.OK
}
func (DiscardAction) Execute(*Environment, Context, SideState) sieveerr.Status { return sieveerr.OK }
func (DiscardAction) Commit(*Environment, Context, SideState) sieveerr.Status  { return sieveerr.OK }
func (DiscardAction) Rollback(*Environment, Context, SideState)                {}
