// Package sieveresult implements the L5 result pipeline: an
// insertion-ordered, deduplicated list of mail actions driven through a
// three-phase commit (start/execute/commit, with rollback) and an
// implicit-keep safety net (spec §4.4). Grounded on
// original_source/src/lib-sieve/sieve-actions.c's action-equality/merge and
// exec-status protocol, with the append-only-list-plus-equality-index shape
// borrowed from the teacher's PersistentMap copy-on-write idiom
// (internal/evaluator/persistent_map.go) adapted to preserve insertion
// order rather than structural sharing.
package sieveresult

import "github.com/funvibe/sievecore/internal/sieveerr"

// Context is an action's opaque parameters (e.g. {"mailbox": "Junk",
// "flags": []string{...}}), mutable so side effects can augment it in
// place (spec §4.4: "side-effects added to an already-present action
// augment it").
type Context map[string]any

// SideState is opaque, action-definition-private state threaded through
// Start -> Execute -> Commit/Rollback.
type SideState any

// ActionDef is an action definition: store, redirect, reject, or an
// extension-introduced one. Exclusive definitions dedup on Equal; Merge
// folds a newly-added duplicate into the one already present.
type ActionDef interface {
	Name() string
	// Exclusive reports whether no two Equal instances of this
	// definition may coexist in a Result (spec §3).
	Exclusive() bool
	Equal(a, b Context) bool
	Merge(a, b Context) Context

	Start(env *Environment, ctx Context) (SideState, sieveerr.Status)
	Execute(env *Environment, ctx Context, state SideState) sieveerr.Status
	Commit(env *Environment, ctx Context, state SideState) sieveerr.Status
	Rollback(env *Environment, ctx Context, state SideState)
}

// SideEffect augments an action's context (e.g. flags/keywords to stage).
// Side effects commute among themselves per action (spec §3) since they
// are folded into Context as an unordered merge, not a sequential
// transform.
type SideEffect struct {
	Name     string
	Flags    []string
	Keywords []string
}

// Action is one entry in a Result: the definition, its context, the side
// effects attached to it, and provenance (source line, owning extension).
type Action struct {
	Def         ActionDef
	Ctx         Context
	SideEffects []SideEffect
	Line        int
	ExtIndex    int32

	state     SideState
	committed bool
}

func mergeStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func toStrings(v any) []string {
	if v == nil {
		return nil
	}
	s, _ := v.([]string)
	return s
}
