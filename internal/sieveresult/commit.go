package sieveresult

import "github.com/funvibe/sievecore/internal/sieveerr"

// Message is the subset of the message envelope the result pipeline cares
// about: its identity and the mailbox it currently sits in, needed to
// detect the "redundant store" case (spec §4.4).
type Message struct {
	ID            string
	OriginMailbox string
}

// MailboxHandle and Transaction are opaque values returned by the MailStore
// collaborator; the result pipeline never inspects them.
type MailboxHandle any
type Transaction any

// MailStore is the collaborator contract consumed by store-family actions
// (spec §6, "Mail-store adapter").
type MailStore interface {
	OpenMailbox(name string) (MailboxHandle, error)
	CreateMailbox(name string) error
	Subscribe(name string) error
	BeginTransaction(h MailboxHandle) (Transaction, error)
	SaveMail(tx Transaction, msg *Message, destFlags, destKeywords []string) error
	Commit(tx Transaction) error
	Rollback(tx Transaction) error
	LastError() (code string, text string)
}

// OutboundSender is the (spec-external, but named) collaborator used by
// redirect/reject actions to hand the message to an outbound delivery
// path. A nil Sender makes those actions a no-op that still participates
// in dedup/commit bookkeeping — useful for dump/test runs.
type OutboundSender interface {
	Redirect(address string) error
	Reject(reason string) error
}

// Notifier is the collaborator the notify action (ext-enotify) hands a
// method URI and rendered message to. A nil Notifier makes NotifyAction a
// no-op, the same fallback OutboundSender uses.
type Notifier interface {
	Notify(method, message string) error
}

// Environment carries everything the three-phase commit needs: the
// collaborators, the message being processed, and mutable status flags
// actions set as they commit (spec §4.4: "record a status flag on the
// execution environment (message_saved, tried_default_save)").
type Environment struct {
	Store      MailStore
	Sender     OutboundSender
	Notifier   Notifier
	Programs   ProgramRunner
	ErrorSink  sieveerr.ErrorSink
	Message    *Message
	DefaultBox string

	AutoCreate    bool
	AutoSubscribe bool

	MessageSaved     bool
	TriedDefaultSave bool
}

// ErrNoSuchMailbox is the sentinel a MailStore.OpenMailbox implementation
// returns for a missing folder, distinguishing "recoverable if auto-create
// is on" from a harder failure.
type noSuchMailboxError struct{}

func (noSuchMailboxError) Error() string { return "sieveresult: no such mailbox" }

var ErrNoSuchMailbox error = noSuchMailboxError{}

// Commit drives the three-phase commit over every action in insertion
// order (spec §4.4). On any failure between start and commit, Rollback is
// invoked for the failing action and the loop stops; actions already
// committed are left alone, matching "committed actions are not undone on
// later failures" (spec §7).
func (r *Result) Commit(env *Environment) sieveerr.Status {
	for _, act := range r.actions {
		state, status := act.Def.Start(env, act.Ctx)
		act.state = state
		if status == sieveerr.OK {
			status = act.Def.Execute(env, act.Ctx, state)
		}
		if status == sieveerr.OK {
			status = act.Def.Commit(env, act.Ctx, state)
		}
		if status != sieveerr.OK {
			act.Def.Rollback(env, act.Ctx, state)
			return status
		}
		act.committed = true
	}
	return sieveerr.OK
}

// ImplicitKeep tries the safety-net keep action if and only if env has not
// already saved the message (spec §4.4). Its own failure maps to
// KeepFailed, which is terminal (spec §7).
func (r *Result) ImplicitKeep(env *Environment, keepDef ActionDef) sieveerr.Status {
	if env.MessageSaved {
		return sieveerr.OK
	}
	env.TriedDefaultSave = true
	ctx := Context{"mailbox": env.DefaultBox}
	state, status := keepDef.Start(env, ctx)
	if status == sieveerr.OK {
		status = keepDef.Execute(env, ctx, state)
	}
	if status == sieveerr.OK {
		status = keepDef.Commit(env, ctx, state)
	}
	if status != sieveerr.OK {
		keepDef.Rollback(env, ctx, state)
		return sieveerr.KeepFailed
	}
	return sieveerr.OK
}
