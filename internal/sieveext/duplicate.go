package sieveext

import (
	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sieveerr"
	"github.com/funvibe/sievecore/internal/sievevm"
)

// duplicateSubTest is the duplicate extension's only sub-code: a single
// test predicate, the "duplicate" test named in spec §6's external-key
// value duplicate-tracker collaborator.
const duplicateSubTest = 0

// DuplicateExtension implements the "duplicate" test predicate: true if
// Tracker has already seen the operand's dedup key, false (and the key is
// then marked) otherwise. A nil Tracker makes every test evaluate false,
// the same "absent collaborator disables the feature" fallback the spec
// names explicitly ("both optional; if absent, deduplication across runs
// is disabled").
type DuplicateExtension struct {
	Tracker DuplicateTracker
}

func (DuplicateExtension) Name() string { return "duplicate" }

func (DuplicateExtension) InterpreterLoad(*sievevm.Interpreter, *sievecode.Reader) error { return nil }

func (e DuplicateExtension) Execute(interp *sievevm.Interpreter, subCode int, r *sievecode.Reader) sieveerr.Status {
	if subCode != duplicateSubTest {
		interp.ReportCorrupt("duplicate: unknown sub-code %d", subCode)
		return sieveerr.BinCorrupt
	}
	key, err := r.ReadString()
	if err != nil {
		interp.ReportCorrupt("duplicate: reading dedup-key operand: %v", err)
		return sieveerr.BinCorrupt
	}
	if e.Tracker == nil {
		interp.SetTestResult(false)
		return sieveerr.OK
	}
	seen, err := e.Tracker.Seen(key)
	if err != nil {
		interp.ReportRuntime(sieveerr.Error, "duplicate: checking key %q: %v", key, err)
		return sieveerr.Failure
	}
	if !seen {
		if err := e.Tracker.Mark(key); err != nil {
			interp.ReportRuntime(sieveerr.Error, "duplicate: marking key %q: %v", key, err)
			return sieveerr.Failure
		}
	}
	interp.SetTestResult(seen)
	return sieveerr.OK
}
