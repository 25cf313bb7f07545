package sieveresult

import "github.com/google/uuid"

// Result is the append-ordered, deduplicated action list a script run
// produces (spec §3, "Result set"). RunID is a fresh correlation id
// generated for every Result; nothing in this package reads it (see the
// SPEC_FULL.md DOMAIN STACK entry on google/uuid).
type Result struct {
	RunID uuid.UUID

	actions        []*Action
	keepIdx        int
	keepSuppressed bool
}

// New returns an empty result with a fresh run id.
func New() *Result {
	return &Result{RunID: uuid.New(), keepIdx: -1}
}

// Actions returns every action in insertion order.
func (r *Result) Actions() []*Action {
	return append([]*Action(nil), r.actions...)
}

// Add inserts an action, applying the dedup rule from spec §4.4: "adding an
// action with a duplicate-check function consults every prior action of the
// same definition; the prior is kept and the new one dropped, unless the
// action defines its own merge semantics." Returns the action now
// representing ctx (either the newly-inserted one or the merged prior).
func (r *Result) Add(def ActionDef, ctx Context, line int, extIndex int32) *Action {
	if def.Exclusive() {
		for _, prior := range r.actions {
			if prior.Def.Name() != def.Name() {
				continue
			}
			if def.Equal(prior.Ctx, ctx) {
				prior.Ctx = def.Merge(prior.Ctx, ctx)
				return prior
			}
		}
	}
	act := &Action{Def: def, Ctx: ctx, Line: line, ExtIndex: extIndex}
	r.actions = append(r.actions, act)
	if def.Name() == "keep" {
		r.keepIdx = len(r.actions) - 1
	}
	return act
}

// AddSideEffect attaches se to act, folding its flags/keywords into act's
// context (spec §4.4: "side-effects added to an already-present action
// augment it").
func (r *Result) AddSideEffect(act *Action, se SideEffect) {
	act.SideEffects = append(act.SideEffects, se)
	if len(se.Flags) > 0 {
		act.Ctx["flags"] = mergeStrings(toStrings(act.Ctx["flags"]), se.Flags)
	}
	if len(se.Keywords) > 0 {
		act.Ctx["keywords"] = mergeStrings(toStrings(act.Ctx["keywords"]), se.Keywords)
	}
}

// SuppressKeep marks that the implicit keep is cancelled outright, for
// callers (e.g. multi-script chaining) that need to suppress it without
// going through a "discard" action. EnsureImplicitKeep and KeepSuppressed
// both still honor a DiscardAction added via Add even if this is never
// called directly.
func (r *Result) SuppressKeep() { r.keepSuppressed = true }

// KeepSuppressed reports whether the implicit keep has been cancelled,
// either directly via SuppressKeep or because the script executed
// "discard" (recorded as an exclusive DiscardAction, spec §4.4).
func (r *Result) KeepSuppressed() bool {
	if r.keepSuppressed {
		return true
	}
	for _, a := range r.actions {
		if a.Def.Name() == "discard" {
			return true
		}
	}
	return false
}

// HasExclusiveOverride reports whether any non-keep exclusive action is
// already present, which per spec §4.4 means the implicit keep should not
// be added at all.
func (r *Result) HasExclusiveOverride() bool {
	for _, a := range r.actions {
		if a.Def.Exclusive() && a.Def.Name() != "keep" {
			return true
		}
	}
	return false
}

// EnsureImplicitKeep inserts the keep action (defined by keepDef, targeting
// defaultBox) unless the script suppressed it or an exclusive action
// already overrides it (spec §4.4). It is idempotent: calling it twice
// does not insert a second keep.
func (r *Result) EnsureImplicitKeep(keepDef ActionDef, defaultBox string) {
	if r.keepSuppressed || r.keepIdx >= 0 || r.HasExclusiveOverride() {
		return
	}
	r.Add(keepDef, Context{"mailbox": defaultBox}, 0, -1)
}

// ClearKeepPointer resets which action is considered "the" keep action
// without removing it from the list, so a later script in a chain can
// decide the fallback afresh (spec §4.4, "Multi-script execution": "the
// keep action pointer may be cleared so only the final script decides the
// fallback").
func (r *Result) ClearKeepPointer() {
	r.keepIdx = -1
	r.keepSuppressed = false
}
