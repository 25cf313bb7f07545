package sieveext

import (
	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sieveerr"
	"github.com/funvibe/sievecore/internal/sievematch"
	"github.com/funvibe/sievecore/internal/sieveresult"
	"github.com/funvibe/sievecore/internal/sievevm"
)

// Sub-codes within the notify extension's private opcode space.
const (
	notifySubTestCapability = 0
	notifySubAction         = 1
)

// MethodCapabilityResolver answers "does notification method uri support
// capability", returning the capability's value and whether it resolved
// at all. Grounded on original_source's tst-notify-method-capability.c,
// whose ext_enotify_runtime_get_method_capability call hard-codes its
// method-id argument to "0 /* FIXME */" — a provisional shortcut this
// port deliberately does not copy (DESIGN.md Open Question 1). A resolver
// that can't identify uri, or finds no such capability, returns ok=false;
// the test then evaluates false rather than matching against a
// default/zero method.
type MethodCapabilityResolver interface {
	MethodCapability(uri, capability string) (value string, ok bool)
}

// NotifyExtension implements the "notify" extension: the
// notify_method_capability test predicate and the notify action's VM-side
// opcode (operand decoding only — delivery is the Notifier collaborator's
// job, consulted at commit time via sieveresult.NotifyAction).
type NotifyExtension struct {
	Resolver MethodCapabilityResolver
}

func (NotifyExtension) Name() string { return "notify" }

func (NotifyExtension) InterpreterLoad(*sievevm.Interpreter, *sievecode.Reader) error { return nil }

func (e NotifyExtension) Execute(interp *sievevm.Interpreter, subCode int, r *sievecode.Reader) sieveerr.Status {
	switch subCode {
	case notifySubTestCapability:
		return e.execTestCapability(interp, r)
	case notifySubAction:
		return e.execAction(interp, r)
	default:
		interp.ReportCorrupt("notify: unknown sub-code %d", subCode)
		return sieveerr.BinCorrupt
	}
}

// execTestCapability decodes "uri, capability, key-list, comparator,
// match-type" and matches the resolved capability value against the key
// list, the same matching protocol runMatch's core counterpart applies to
// header/address values (spec §4.3).
func (e NotifyExtension) execTestCapability(interp *sievevm.Interpreter, r *sievecode.Reader) sieveerr.Status {
	uri, err := r.ReadString()
	if err != nil {
		interp.ReportCorrupt("notify: reading method-uri operand: %v", err)
		return sieveerr.BinCorrupt
	}
	capability, err := r.ReadString()
	if err != nil {
		interp.ReportCorrupt("notify: reading capability-name operand: %v", err)
		return sieveerr.BinCorrupt
	}
	keys, err := r.ReadStringList()
	if err != nil {
		interp.ReportCorrupt("notify: reading key list: %v", err)
		return sieveerr.BinCorrupt
	}
	cmpObj, err := r.ReadObject(sievecode.ClassComparator)
	if err != nil {
		interp.ReportCorrupt("notify: reading comparator operand: %v", err)
		return sieveerr.BinCorrupt
	}
	mtObj, err := r.ReadObject(sievecode.ClassMatchType)
	if err != nil {
		interp.ReportCorrupt("notify: reading match-type operand: %v", err)
		return sieveerr.BinCorrupt
	}

	if e.Resolver == nil {
		interp.SetTestResult(false)
		return sieveerr.OK
	}
	value, ok := e.Resolver.MethodCapability(uri, capability)
	if !ok {
		interp.SetTestResult(false)
		return sieveerr.OK
	}

	cmp, err := interp.Registry().Comparator(cmpObj, interp.Binary())
	if err != nil {
		interp.ReportCorrupt("notify: resolving comparator: %v", err)
		return sieveerr.BinCorrupt
	}
	mt, err := interp.Registry().MatchType(mtObj, interp.Binary())
	if err != nil {
		interp.ReportCorrupt("notify: resolving match type: %v", err)
		return sieveerr.BinCorrupt
	}
	ctx, err := sievematch.Begin(mt, cmp, keys)
	if err != nil {
		interp.ReportCorrupt("notify: starting match: %v", err)
		return sieveerr.BinCorrupt
	}
	found, err := ctx.MatchValue(value)
	if err != nil {
		interp.ReportCorrupt("notify: evaluating match: %v", err)
		return sieveerr.BinCorrupt
	}
	if _, err := ctx.End(); err != nil {
		interp.ReportCorrupt("notify: finishing match: %v", err)
		return sieveerr.BinCorrupt
	}
	interp.SetTestResult(found)
	return sieveerr.OK
}

// execAction decodes "method, message" and records a notify action
// through the shared result pipeline, same as the core action opcodes in
// sievevm/actions.go.
func (e NotifyExtension) execAction(interp *sievevm.Interpreter, r *sievecode.Reader) sieveerr.Status {
	method, err := r.ReadString()
	if err != nil {
		interp.ReportCorrupt("notify: reading method operand: %v", err)
		return sieveerr.BinCorrupt
	}
	message, err := r.ReadString()
	if err != nil {
		interp.ReportCorrupt("notify: reading message operand: %v", err)
		return sieveerr.BinCorrupt
	}
	if interp.Result() == nil {
		return sieveerr.OK
	}
	interp.Result().Add(sieveresult.NotifyAction{}, sieveresult.Context{"method": method, "message": message}, interp.Location().Line, -1)
	return sieveerr.OK
}
