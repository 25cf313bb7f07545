// Package sieveext is the per-engine wiring point for everything the core
// (sievevm/sievematch/sieveresult) treats as an extension or an external
// collaborator: the comparator/match-type/action-def registry an engine
// instance owns (Design Note 1, DESIGN.md: "re-architect as a per-engine
// registry object" rather than the original's process-wide globals), plus
// the host-supplied collaborator contracts named in spec §6 that don't
// already have a natural home in sievevm/sieveresult (script inclusion,
// duplicate suppression).
package sieveext

import (
	"github.com/funvibe/sievecore/internal/sievematch"
	"github.com/funvibe/sievecore/internal/sieveresult"
	"github.com/funvibe/sievecore/internal/sievevm"
)

// ScriptProvider resolves a logical include name to a compiled binary; the
// exact contract sievevm.BinaryLoader names from the interpreter side,
// aliased here under the name the engine-wiring layer uses for it.
type ScriptProvider = sievevm.BinaryLoader

// DuplicateTracker is the collaborator contract the duplicate-suppression
// test predicate consults to decide whether an id
// has already been seen during some host-defined retention window (spec
// §6, "an external key-value duplicate tracker"). internal/dupstore
// provides a SQLite-backed implementation.
type DuplicateTracker interface {
	// Seen reports whether id has been recorded before.
	Seen(id string) (bool, error)
	// Mark records id as seen.
	Mark(id string) error
}

// Registry bundles the three per-engine tables a compiled binary's
// extensions list is resolved against: match engine registrations
// (comparators/match types), action definitions fileinto/redirect/reject/
// notify/etc. resolve to, and the VM-level Extension hooks that own an
// opcode sub-space. One Registry is built per engine instance so isolated
// engines never share mutable state (Design Note 1).
type Registry struct {
	Match      *sievematch.Registry
	Actions    map[string]sieveresult.ActionDef
	Extensions map[string]sievevm.Extension
}

// NewRegistry returns a Registry pre-populated with the core comparators/
// match types (via sievematch.NewRegistry) and the core action
// definitions (store/keep/redirect/reject/discard). Extension wiring
// (regex, notify, programclient) is opt-in via the Wire* methods so a
// caller only pays for what it links.
func NewRegistry() *Registry {
	return &Registry{
		Match: sievematch.NewRegistry(),
		Actions: map[string]sieveresult.ActionDef{
			"store":    sieveresult.StoreAction{},
			"keep":     sieveresult.KeepAction{},
			"redirect": sieveresult.RedirectAction{},
			"reject":   sieveresult.RejectAction{},
			"discard":  sieveresult.DiscardAction{},
		},
		Extensions: map[string]sievevm.Extension{},
	}
}

// RegisterAction adds or overrides an action definition under its own
// Name().
func (r *Registry) RegisterAction(def sieveresult.ActionDef) {
	r.Actions[def.Name()] = def
}

// RegisterExtension adds or overrides a VM-level Extension under its own
// Name(), the table sievevm.NewInterpreter's prelude consults when a
// binary's manifest links an extension by name.
func (r *Registry) RegisterExtension(ext sievevm.Extension) {
	r.Extensions[ext.Name()] = ext
}

// WireRegex registers the "regex" match type (spec §4.3, "an
// extension-added one such as regex") into the match registry and adds a
// NopExtension entry so a binary that links "regex" resolves during
// prelude even though the extension contributes no opcodes of its own.
func (r *Registry) WireRegex() {
	r.Match.RegisterMatchType("regex", 0, sievematch.RegexMatchType{Capture: true})
	r.RegisterExtension(sievevm.NopExtension{ExtName: "regex"})
}

// WireNotify registers the notify extension (method-capability test plus
// the notify action) using resolver to answer method-capability lookups.
// A nil resolver makes every capability lookup fail closed, same as an
// unresolvable one (DESIGN.md Open Question 1).
func (r *Registry) WireNotify(resolver MethodCapabilityResolver) {
	r.RegisterExtension(NotifyExtension{Resolver: resolver})
	r.RegisterAction(sieveresult.NotifyAction{})
}

// WireProgramClient registers the execute action and its VM-side operand
// decoder, keeping client on the ProgramExtension. The commit-time program
// run goes through Environment.Programs, which this method does not set.
func (r *Registry) WireProgramClient(client *ProgramClient) {
	r.RegisterExtension(ProgramExtension{Client: client})
	r.RegisterAction(sieveresult.ExecuteAction{})
}

// WireDuplicate registers the "duplicate" test predicate against tracker.
// A nil tracker makes every duplicate test evaluate false, same fail-closed
// posture WireNotify applies to a nil capability resolver.
func (r *Registry) WireDuplicate(tracker DuplicateTracker) {
	r.RegisterExtension(DuplicateExtension{Tracker: tracker})
}
