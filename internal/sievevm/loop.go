package sievevm

import "github.com/funvibe/sievecore/internal/sieveerr"

// loopFrame is one entry on the loop stack (spec §3, "loop stack of loop
// frames (each: nesting level, begin address, end address, owning
// extension, opaque per-frame context)"), grounded on
// sieve_interpreter_loop's {level, begin, end, ext_def, pool, context}.
type loopFrame struct {
	level   int
	begin   uint32
	end     uint32
	ownerExt string // "" for a core-owned loop
	ctx     any     // private arena; released (set to nil) on pop
}

// LoopStart verifies end and pushes a new loop frame (spec §4.2,
// "Loops": "end ≤ block_size and end > pc", nesting cap check). owner
// names the extension introducing the loop, or "" for a core loop.
func (i *Interpreter) LoopStart(end uint32, owner string) (*loopFrame, sieveerr.Status) {
	pc := i.r.Pos()
	if end > i.block.Size() {
		i.reportCorrupt("loop end offset %d out of range (block size %d)", end, i.block.Size())
		return nil, sieveerr.BinCorrupt
	}
	if end <= pc {
		i.reportCorrupt("loop end offset %d does not exceed current pc %d", end, pc)
		return nil, sieveerr.BinCorrupt
	}
	if i.baseLoopDepth+len(i.loopStack) >= MaxLoopDepth {
		i.reportRuntime(sieveerr.Error, "loop nesting exceeds the limit (<= %d levels)", MaxLoopDepth)
		return nil, sieveerr.Failure
	}
	fr := &loopFrame{
		level:    len(i.loopStack),
		begin:    pc,
		end:      end,
		ownerExt: owner,
	}
	i.loopStack = append(i.loopStack, fr)
	i.loopLimit = end
	return fr, sieveerr.OK
}

// LoopNext seeks the PC back to begin after verifying it matches the top
// loop frame's recorded begin (spec §4.2, "Loops").
func (i *Interpreter) LoopNext(begin uint32) sieveerr.Status {
	if len(i.loopStack) == 0 {
		i.reportCorrupt("loop-next with no active loop")
		return sieveerr.BinCorrupt
	}
	top := i.loopStack[len(i.loopStack)-1]
	if top.begin != begin {
		i.reportCorrupt("loop begin offset %d does not match active loop's begin %d", begin, top.begin)
		return sieveerr.BinCorrupt
	}
	i.r.Seek(begin)
	return sieveerr.OK
}

// LoopBreak pops frame and every deeper frame, releases their private
// arenas, sets the loop limit to the now-top frame's end (zero if none),
// and jumps to frame.end (spec §4.2: "loop_break(frame) pops frame and
// all deeper frames, sets the loop byte limit to the now-top frame's end
// (or zero if none), and jumps to frame.end").
func (i *Interpreter) LoopBreak(frame *loopFrame) sieveerr.Status {
	idx := -1
	for k, fr := range i.loopStack {
		if fr == frame {
			idx = k
			break
		}
	}
	if idx < 0 {
		i.reportCorrupt("loop-break on a frame not on the active loop stack")
		return sieveerr.BinCorrupt
	}
	for k := len(i.loopStack) - 1; k >= idx; k-- {
		i.loopStack[k].ctx = nil
	}
	i.loopStack = i.loopStack[:idx]
	if len(i.loopStack) > 0 {
		i.loopLimit = i.loopStack[len(i.loopStack)-1].end
	} else {
		i.loopLimit = 0
	}
	i.r.Seek(frame.end)
	return sieveerr.OK
}

// breakOut pops every loop whose end is <= target, used by a jump
// carrying the "break-out" flag that is allowed to cross loop boundaries
// (spec §4.2, jump target requirements). Returns OK whether or not any
// loop actually needed popping.
func (i *Interpreter) breakOut(target uint32) sieveerr.Status {
	idx := len(i.loopStack)
	for idx > 0 && i.loopStack[idx-1].end <= target {
		idx--
	}
	if idx == len(i.loopStack) {
		return sieveerr.OK
	}
	frame := i.loopStack[idx]
	return i.LoopBreak(frame)
}

// LoopDepth reports how many loops are currently active in this
// interpreter alone (not counting inherited parent depth).
func (i *Interpreter) LoopDepth() int { return len(i.loopStack) }

// LoopGetLocal looks up the loop frame with the given end address and
// owner, searching only this interpreter's own loop stack, from the
// innermost outward (spec §4.2, "Loops may be inspected by any extension
// for local... lookup").
func (i *Interpreter) LoopGetLocal(end uint32, owner string) *loopFrame {
	for k := len(i.loopStack) - 1; k >= 0; k-- {
		if i.loopStack[k].end == end && i.loopStack[k].ownerExt == owner {
			return i.loopStack[k]
		}
	}
	return nil
}

// LoopGetGlobal walks up parent interpreters if a local lookup fails
// (spec §4.2, "...or global (walk up parent interpreters) lookup").
func (i *Interpreter) LoopGetGlobal(end uint32, owner string) *loopFrame {
	for p := i; p != nil; p = p.parent {
		if fr := p.LoopGetLocal(end, owner); fr != nil {
			return fr
		}
	}
	return nil
}

// LoopContext returns the opaque per-frame context previously set by
// SetLoopContext.
func (fr *loopFrame) LoopContext() any { return fr.ctx }

// SetLoopContext stores opaque per-frame context, released automatically
// when the frame is popped by LoopBreak.
func (fr *loopFrame) SetLoopContext(v any) { fr.ctx = v }
