// Package sievevm implements the L3 interpreter: the VM that executes
// operations sequentially over a sievebin.Block, owning the program
// counter, loop stack, test-result register, per-extension runtime slots
// and the jump/loop verification rules of spec §4.2. Grounded on
// internal/vm/vm.go + vm_exec.go (CallFrame/PC-over-chunk shape, sentinel
// error style), chronos-tachyon-go-peggy/peggyvm's execution.go
// (Step()-based big-switch dispatch and CHOICE/COMMIT frame push/pop for
// the loop-frame design) and
// original_source/src/lib-sieve/sieve-interpreter.c (the exact loop
// nesting, jump-anchor, and sub-interpretation semantics this package
// reproduces).
package sievevm

// Op is a core opcode, a single byte identified via sievecode.Op.Code when
// sievecode.Op.Core is true. Core opcodes cover unconditional control
// flow, the three baseline test predicates (header/address/size, all
// present in the baseline filtering language rather than behind an
// extension), the three core actions (store/redirect/reject), the
// keep/discard/stop commands, and cross-script invocation (include).
// Anything beyond this set is extension-introduced and reached through
// sievecode.ExtOpMarker + (extension index, sub-code).
const (
	OpHalt byte = iota
	OpJmp
	OpJmpTrue
	OpJmpFalse
	OpJmpBreak
	OpTestHeader
	OpTestAddress
	OpTestSize
	OpTestNot
	OpTestTrue
	OpTestFalse
	OpLoopStart
	OpLoopNext
	OpLoopBreak
	OpFileInto
	OpRedirect
	OpReject
	OpKeep
	OpDiscard
	OpStop
	OpInclude
)

// OpName returns a human-readable mnemonic for a core opcode, used by the
// textual disassembler (cmd/sievec dump).
func OpName(op byte) string {
	switch op {
	case OpHalt:
		return "halt"
	case OpJmp:
		return "jmp"
	case OpJmpTrue:
		return "jmp-true"
	case OpJmpFalse:
		return "jmp-false"
	case OpJmpBreak:
		return "jmp-break"
	case OpTestHeader:
		return "test-header"
	case OpTestAddress:
		return "test-address"
	case OpTestSize:
		return "test-size"
	case OpTestNot:
		return "test-not"
	case OpTestTrue:
		return "test-true"
	case OpTestFalse:
		return "test-false"
	case OpLoopStart:
		return "loop-start"
	case OpLoopNext:
		return "loop-next"
	case OpLoopBreak:
		return "loop-break"
	case OpFileInto:
		return "fileinto"
	case OpRedirect:
		return "redirect"
	case OpReject:
		return "reject"
	case OpKeep:
		return "keep"
	case OpDiscard:
		return "discard"
	case OpStop:
		return "stop"
	case OpInclude:
		return "include"
	default:
		return "unknown"
	}
}

// AddressPart core object codes (sievecode.ClassAddressPart).
const (
	AddressPartAll = iota
	AddressPartLocal
	AddressPartDomain
)

// SizeOver/SizeUnder are the two core "size" test comparisons.
const (
	SizeOver = iota
	SizeUnder
)

// MaxLoopDepth is the compile-time nesting cap on simultaneous loops
// (spec §4.2, "a global nesting cap (MAX_LOOP_DEPTH, a compile-time
// constant — normally 16)").
const MaxLoopDepth = 16
