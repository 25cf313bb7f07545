package sievevm

import (
	"github.com/funvibe/sievecore/internal/sievebin"
	"github.com/funvibe/sievecore/internal/sieveerr"
	"github.com/funvibe/sievecore/internal/sieveresult"
)

// execLoopStart decodes the loop's end address (anchored the same way a
// jump is) and pushes a new core-owned loop frame (spec §4.2, "Loops").
func (i *Interpreter) execLoopStart() sieveerr.Status {
	end, status := i.readAddress()
	if status != sieveerr.OK {
		return status
	}
	_, status = i.LoopStart(end, "")
	return status
}

// execLoopNext decodes the loop's begin address and seeks back to it after
// verifying it matches the active loop frame.
func (i *Interpreter) execLoopNext() sieveerr.Status {
	begin, status := i.readAddress()
	if status != sieveerr.OK {
		return status
	}
	return i.LoopNext(begin)
}

// execLoopBreak breaks out of the innermost active loop (an explicit break
// command, as opposed to the break-out jump a compiler emits to leave a
// loop via an arbitrary branch).
func (i *Interpreter) execLoopBreak() sieveerr.Status {
	if len(i.loopStack) == 0 {
		i.reportCorrupt("loop-break with no active loop")
		return sieveerr.BinCorrupt
	}
	top := i.loopStack[len(i.loopStack)-1]
	return i.LoopBreak(top)
}

// execFileInto reads the target mailbox name and records a store action
// (spec §4.4); flags/keywords are folded in later by side-effect opcodes
// via Result.AddSideEffect.
func (i *Interpreter) execFileInto() sieveerr.Status {
	mailbox, err := i.r.ReadString()
	if err != nil {
		i.reportCorrupt("reading fileinto mailbox operand: %v", err)
		return sieveerr.BinCorrupt
	}
	if i.result == nil {
		return sieveerr.OK
	}
	i.result.Add(sieveresult.StoreAction{}, sieveresult.Context{"mailbox": mailbox}, i.Location().Line, -1)
	return sieveerr.OK
}

// execRedirect reads the target address and records a redirect action.
func (i *Interpreter) execRedirect() sieveerr.Status {
	address, err := i.r.ReadString()
	if err != nil {
		i.reportCorrupt("reading redirect address operand: %v", err)
		return sieveerr.BinCorrupt
	}
	if i.result == nil {
		return sieveerr.OK
	}
	i.result.Add(sieveresult.RedirectAction{}, sieveresult.Context{"address": address}, i.Location().Line, -1)
	return sieveerr.OK
}

// execReject reads the bounce reason text and records a reject action.
func (i *Interpreter) execReject() sieveerr.Status {
	reason, err := i.r.ReadString()
	if err != nil {
		i.reportCorrupt("reading reject reason operand: %v", err)
		return sieveerr.BinCorrupt
	}
	if i.result == nil {
		return sieveerr.OK
	}
	i.result.Add(sieveresult.RejectAction{}, sieveresult.Context{"reason": reason}, i.Location().Line, -1)
	return sieveerr.OK
}

// execKeep records an explicit keep action against the default mailbox,
// distinct from the implicit keep EnsureImplicitKeep adds at commit time
// when nothing else claimed the message.
func (i *Interpreter) execKeep() sieveerr.Status {
	if i.result == nil {
		return sieveerr.OK
	}
	defaultBox := ""
	if i.env != nil {
		defaultBox = i.env.DefaultBox
	}
	i.result.Add(sieveresult.KeepAction{}, sieveresult.Context{"mailbox": defaultBox}, i.Location().Line, -1)
	return sieveerr.OK
}

// execDiscard records a discard action (spec §4.4: "discard... suppresses
// the fallback save"), the same way every other core action opcode records
// its action via Result.Add; being exclusive and distinct from "keep", it
// trips Result.HasExclusiveOverride, which is what actually suppresses
// EnsureImplicitKeep.
func (i *Interpreter) execDiscard() sieveerr.Status {
	if i.result == nil {
		return sieveerr.OK
	}
	i.result.Add(sieveresult.DiscardAction{}, sieveresult.Context{}, i.Location().Line, -1)
	return sieveerr.OK
}

// execInclude reads the included script's logical name, loads it through
// the configured BinaryLoader, and runs it as a sub-interpreter sharing
// this run's result/environment/envelope, inheriting the current loop
// depth into the child's baseLoopDepth (spec, "Sub-interpretation").
func (i *Interpreter) execInclude() sieveerr.Status {
	name, err := i.r.ReadString()
	if err != nil {
		i.reportCorrupt("reading include script-name operand: %v", err)
		return sieveerr.BinCorrupt
	}
	if i.loader == nil {
		i.reportRuntime(sieveerr.Error, "include %q: no script loader configured", name)
		return sieveerr.Failure
	}
	childBin, err := i.loader.LoadScript(name)
	if err != nil {
		i.reportRuntime(sieveerr.Error, "include %q: %v", name, err)
		return sieveerr.Failure
	}
	child, err := NewInterpreter(childBin, sievebin.MainBlock, i, Options{
		Registry:   i.registry,
		Extensions: i.extensions,
		Loader:     i.loader,
		Result:     i.result,
		Env:        i.env,
		Envelope:   i.envelope,
		ErrorSink:  i.errSink,
		TraceSink:  i.traceSink,
	})
	if err != nil {
		i.reportRuntime(sieveerr.Error, "include %q: %v", name, err)
		return sieveerr.Failure
	}
	status := child.Run()
	child.Free()
	return status
}
