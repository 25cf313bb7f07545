package sievevm

import (
	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sieveerr"
)

// Run executes operations sequentially from the current PC until the
// active block ends, the script halts/stops, or an operation reports a
// non-OK status (spec §4.2, "Main loop"). Suspension points (interrupt
// checks) fall strictly between operations, never mid-instruction (spec
// §5).
func (i *Interpreter) Run() sieveerr.Status {
	for {
		if i.interrupted || i.stopRequested {
			return sieveerr.OK
		}
		if i.r.Pos() >= i.block.Size() {
			return sieveerr.OK
		}
		if len(i.loopStack) > 0 {
			top := i.loopStack[len(i.loopStack)-1]
			if i.r.Pos() >= top.end {
				i.reportCorrupt("program counter %d crossed active loop's end %d without an explicit loop exit", i.r.Pos(), top.end)
				return sieveerr.BinCorrupt
			}
		}
		op, err := i.r.ReadOp()
		if err != nil {
			i.reportCorrupt("decoding operation: %v", err)
			return sieveerr.BinCorrupt
		}
		if status := i.dispatch(toOpDecoded(op)); status != sieveerr.OK {
			return status
		}
	}
}

// Step executes exactly one operation and reports its status, for callers
// that want to inspect state between operations.
func (i *Interpreter) Step() (done bool, status sieveerr.Status) {
	if i.interrupted || i.stopRequested {
		return true, sieveerr.OK
	}
	if i.r.Pos() >= i.block.Size() {
		return true, sieveerr.OK
	}
	op, err := i.r.ReadOp()
	if err != nil {
		i.reportCorrupt("decoding operation: %v", err)
		return true, sieveerr.BinCorrupt
	}
	status = i.dispatch(toOpDecoded(op))
	return status != sieveerr.OK, status
}

func (i *Interpreter) dispatch(op opDecoded) sieveerr.Status {
	if !op.core {
		return i.dispatchExt(op)
	}
	switch op.code {
	case OpHalt:
		i.stopRequested = true
		return sieveerr.OK
	case OpJmp:
		return i.execJump(nil, false)
	case OpJmpTrue:
		cond := i.testResult
		return i.execJump(func() bool { return cond }, false)
	case OpJmpFalse:
		cond := i.testResult
		return i.execJump(func() bool { return !cond }, false)
	case OpJmpBreak:
		return i.execJump(nil, true)
	case OpTestHeader:
		return i.execTestHeader()
	case OpTestAddress:
		return i.execTestAddress()
	case OpTestSize:
		return i.execTestSize()
	case OpTestNot:
		i.testResult = !i.testResult
		return sieveerr.OK
	case OpTestTrue:
		i.testResult = true
		return sieveerr.OK
	case OpTestFalse:
		i.testResult = false
		return sieveerr.OK
	case OpLoopStart:
		return i.execLoopStart()
	case OpLoopNext:
		return i.execLoopNext()
	case OpLoopBreak:
		return i.execLoopBreak()
	case OpFileInto:
		return i.execFileInto()
	case OpRedirect:
		return i.execRedirect()
	case OpReject:
		return i.execReject()
	case OpKeep:
		return i.execKeep()
	case OpDiscard:
		return i.execDiscard()
	case OpStop:
		i.stopRequested = true
		return sieveerr.OK
	case OpInclude:
		return i.execInclude()
	default:
		i.reportCorrupt("unknown core opcode %d", op.code)
		return sieveerr.BinCorrupt
	}
}

// opDecoded is a small adapter over sievecode.Op so this package's
// dispatch code reads naturally (core/code/extIndex/subCode) without
// repeating the sievecode.Op field names at every call site.
type opDecoded struct {
	core     bool
	code     byte
	extIndex int
	subCode  int
}

func toOpDecoded(op sievecode.Op) opDecoded {
	return opDecoded{core: op.Core, code: op.Code, extIndex: op.ExtIndex, subCode: op.SubCode}
}

func (i *Interpreter) dispatchExt(op opDecoded) sieveerr.Status {
	name, ok := i.bin.ExtensionName(op.extIndex)
	if !ok {
		i.reportCorrupt("operation references unlinked extension index %d", op.extIndex)
		return sieveerr.BinCorrupt
	}
	ext, ok := i.extensions[name]
	if !ok {
		i.reportCorrupt("no host implementation registered for linked extension %q", name)
		return sieveerr.BinCorrupt
	}
	return ext.Execute(i, op.subCode, i.r)
}

// execJump implements spec §4.2 "Tests and jumps": the 32-bit signed
// offset is relative to the start of the jump instruction's offset field
// (the anchor), computed before the offset itself is consumed. cond, when
// non-nil, gates whether the jump is taken at all ("not jumping" still
// consumes the offset field, matching sieve_interpreter_program_jump).
// allowBreak permits the target to land at or beyond the active loop's
// end, popping every loop whose end is <= target.
func (i *Interpreter) execJump(cond func() bool, allowBreak bool) sieveerr.Status {
	anchor := i.r.Pos()
	off, err := i.r.ReadOffset()
	if err != nil {
		i.reportCorrupt("reading jump offset: %v", err)
		return sieveerr.BinCorrupt
	}
	target := int64(anchor) + int64(off)
	if target <= 0 || target > int64(i.block.Size()) {
		i.reportCorrupt("jump target %d out of range (1, %d]", target, i.block.Size())
		return sieveerr.BinCorrupt
	}
	limit := i.loopLimit
	if allowBreak {
		limit = 0
	}
	if limit != 0 && uint32(target) >= limit {
		i.reportCorrupt("jump offset crosses loop boundary (target %d, limit %d)", target, limit)
		return sieveerr.BinCorrupt
	}
	if cond != nil && !cond() {
		return sieveerr.OK
	}
	if allowBreak {
		if status := i.breakOut(uint32(target)); status != sieveerr.OK {
			return status
		}
	}
	i.r.Seek(uint32(target))
	return sieveerr.OK
}

// readAddress reads an offset using the same anchor convention as
// execJump but treats the result as an absolute block address rather
// than a conditional branch target — used by loop-start/loop-next, which
// address fixed points in the same block the same way a jump does.
func (i *Interpreter) readAddress() (uint32, sieveerr.Status) {
	anchor := i.r.Pos()
	off, err := i.r.ReadOffset()
	if err != nil {
		i.reportCorrupt("reading address offset: %v", err)
		return 0, sieveerr.BinCorrupt
	}
	target := int64(anchor) + int64(off)
	if target <= 0 || target > int64(i.block.Size()) {
		i.reportCorrupt("address %d out of range (1, %d]", target, i.block.Size())
		return 0, sieveerr.BinCorrupt
	}
	return uint32(target), sieveerr.OK
}
