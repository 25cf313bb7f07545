package sievevm

import (
	"fmt"

	"github.com/funvibe/sievecore/internal/sievebin"
	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sieveerr"
	"github.com/funvibe/sievecore/internal/sievematch"
	"github.com/funvibe/sievecore/internal/sieveresult"
)

// BinaryLoader resolves a logical script name to an already-compiled
// Binary, backing the core "include" opcode's cross-script invocation
// (spec §1, "a custom VM with... a content-addressed serialization of
// compiled scripts... and cross-script invocation"). Compiling the
// included script's source is the external generator's job; by the time
// the VM sees it, it is a binary like any other.
type BinaryLoader interface {
	LoadScript(name string) (*sievebin.Binary, error)
}

// debugEntry maps a code address to a source line, the decoded form of an
// optional debug block (spec §4.2, "a debug block id (optional metadata
// block mapping code address to script line)").
type debugEntry struct {
	Addr uint32
	Line int
}

// Options bundles every collaborator an Interpreter needs, grouped so
// NewInterpreter's signature stays stable across the library and every
// caller (including test helpers), resolving DESIGN.md Open Question (2).
type Options struct {
	Registry   *sievematch.Registry
	Extensions map[string]Extension
	Loader     BinaryLoader
	Result     *sieveresult.Result
	Env        *sieveresult.Environment
	Envelope   *Envelope
	ErrorSink  sieveerr.ErrorSink
	TraceSink  sieveerr.TraceSink
}

// Interpreter is the VM described in spec §3 ("Interpreter state") and
// §4.2. One Interpreter executes one block of one Binary; sub-interpreters
// (spec "Sub-interpretation") are created with parent set, inheriting the
// parent's current loop depth into baseLoopDepth so included scripts
// cannot bypass MaxLoopDepth.
type Interpreter struct {
	bin     *sievebin.Binary
	block   *sievebin.Block
	blockID sievebin.BlockID
	r       *sievecode.Reader
	parent  *Interpreter

	registry   *sievematch.Registry
	extensions map[string]Extension
	extState   map[string]any
	loader     BinaryLoader

	debugMap   []debugEntry
	sourceLine int

	testResult    bool
	loopStack     []*loopFrame
	loopLimit     uint32
	baseLoopDepth int
	resetVector   uint32

	result   *sieveresult.Result
	env      *sieveresult.Environment
	envelope *Envelope

	errSink   sieveerr.ErrorSink
	traceSink sieveerr.TraceSink

	interrupted   bool
	stopRequested bool
}

// NewInterpreter constructs an Interpreter over startBlock of bin, running
// the prelude described in spec §4.2 "Entry": an optional debug block,
// then the per-extension interpreter-load hooks, in the order the block's
// own extensions list names them.
func NewInterpreter(bin *sievebin.Binary, startBlock sievebin.BlockID, parent *Interpreter, opts Options) (*Interpreter, error) {
	block, ok := bin.Block(startBlock)
	if !ok {
		return nil, fmt.Errorf("sievevm: binary has no block %d", startBlock)
	}
	bin.Ref()

	i := &Interpreter{
		bin:        bin,
		block:      block,
		blockID:    startBlock,
		r:          sievecode.NewReader(block.Data),
		parent:     parent,
		registry:   opts.Registry,
		extensions: opts.Extensions,
		extState:   make(map[string]any),
		loader:     opts.Loader,
		result:     opts.Result,
		env:        opts.Env,
		envelope:   opts.Envelope,
		errSink:    opts.ErrorSink,
		traceSink:  opts.TraceSink,
	}
	if i.errSink == nil {
		i.errSink = sieveerr.DiscardErrorSink{}
	}
	if i.traceSink == nil {
		i.traceSink = sieveerr.NopTraceSink{}
	}
	if parent != nil {
		i.baseLoopDepth = parent.baseLoopDepth + len(parent.loopStack)
	}

	if err := i.runPrelude(); err != nil {
		bin.Unref()
		return nil, err
	}
	i.resetVector = i.r.Pos()
	return i, nil
}

func (i *Interpreter) runPrelude() error {
	hasDebug, err := i.r.ReadByte()
	if err != nil {
		return fmt.Errorf("sievevm: reading debug-block presence flag: %w", err)
	}
	if hasDebug != 0 {
		debugID, err := i.r.ReadInteger()
		if err != nil {
			return fmt.Errorf("sievevm: reading debug block id: %w", err)
		}
		blk, ok := i.bin.Block(sievebin.BlockID(debugID))
		if !ok {
			return fmt.Errorf("sievevm: debug block %d not found", debugID)
		}
		dm, err := decodeDebugMap(blk.Data)
		if err != nil {
			return fmt.Errorf("sievevm: decoding debug block: %w", err)
		}
		i.debugMap = dm
	}

	n, err := i.r.ReadInteger()
	if err != nil {
		return fmt.Errorf("sievevm: reading extensions-list count: %w", err)
	}
	for k := uint64(0); k < n; k++ {
		extIdx, err := i.r.ReadInteger()
		if err != nil {
			return fmt.Errorf("sievevm: reading extension index %d/%d: %w", k, n, err)
		}
		name, ok := i.bin.ExtensionName(int(extIdx))
		if !ok {
			return fmt.Errorf("sievevm: extensions list references unlinked extension index %d", extIdx)
		}
		ext, ok := i.extensions[name]
		if !ok {
			return fmt.Errorf("sievevm: no host implementation registered for linked extension %q", name)
		}
		if err := ext.InterpreterLoad(i, i.r); err != nil {
			return fmt.Errorf("sievevm: extension %q interpreter-load: %w", name, err)
		}
	}
	return nil
}

func decodeDebugMap(data []byte) ([]debugEntry, error) {
	r := sievecode.NewReader(data)
	n, err := r.ReadInteger()
	if err != nil {
		return nil, err
	}
	out := make([]debugEntry, 0, n)
	for k := uint64(0); k < n; k++ {
		addr, err := r.ReadInteger()
		if err != nil {
			return nil, err
		}
		line, err := r.ReadInteger()
		if err != nil {
			return nil, err
		}
		out = append(out, debugEntry{Addr: uint32(addr), Line: int(line)})
	}
	return out, nil
}

// EncodeDebugMap is the inverse of decodeDebugMap, used by sieveasm to
// build the optional debug block entries must be supplied in ascending
// address order.
func EncodeDebugMap(entries []struct {
	Addr uint32
	Line int
}) []byte {
	w := sievecode.NewWriter()
	w.EmitInteger(uint64(len(entries)))
	for _, e := range entries {
		w.EmitInteger(uint64(e.Addr))
		w.EmitInteger(uint64(e.Line))
	}
	return w.Bytes()
}

// sourceLineFor returns the script line registered for the nearest debug
// entry at or before addr, or 0 if no debug map was loaded.
func (i *Interpreter) sourceLineFor(addr uint32) int {
	line := 0
	for _, e := range i.debugMap {
		if e.Addr > addr {
			break
		}
		line = e.Line
	}
	return line
}

// PC returns the current program counter (byte offset into the active
// block).
func (i *Interpreter) PC() uint32 { return i.r.Pos() }

// Location builds a sieveerr.Location for the current PC, used by every
// error reported during dispatch.
func (i *Interpreter) Location() sieveerr.Location {
	pc := i.r.Pos()
	return sieveerr.Location{Block: uint32(i.blockID), PC: pc, Line: i.sourceLineFor(pc)}
}

func (i *Interpreter) reportCorrupt(format string, args ...any) {
	i.errSink.Report(sieveerr.Error, i.Location(), fmt.Sprintf(format, args...))
}

func (i *Interpreter) reportRuntime(severity sieveerr.Severity, format string, args ...any) {
	i.errSink.Report(severity, i.Location(), fmt.Sprintf(format, args...))
}

// Interrupt requests that Run stop at the next instruction boundary
// (spec §5, "suspension points are between operations only — never
// inside one").
func (i *Interpreter) Interrupt() { i.interrupted = true }

// Interrupted reports whether Interrupt has been called.
func (i *Interpreter) Interrupted() bool { return i.interrupted }

// StopRequested reports whether the script executed the "stop" command.
func (i *Interpreter) StopRequested() bool { return i.stopRequested }

// TestResult returns the current value of the test-result register.
func (i *Interpreter) TestResult() bool { return i.testResult }

// SetTestResult sets the test-result register, used by extension-defined
// test predicates (e.g. notify_method_capability) dispatched through
// Extension.Execute.
func (i *Interpreter) SetTestResult(v bool) { i.testResult = v }

// ReportCorrupt lets an extension opcode handler report a BinCorrupt
// condition through the same error sink core opcodes use.
func (i *Interpreter) ReportCorrupt(format string, args ...any) {
	i.reportCorrupt(format, args...)
}

// ReportRuntime lets an extension opcode handler report a runtime
// diagnostic through the same error sink core opcodes use.
func (i *Interpreter) ReportRuntime(severity sieveerr.Severity, format string, args ...any) {
	i.reportRuntime(severity, format, args...)
}

// Result returns the result object this interpreter is accumulating
// actions into.
func (i *Interpreter) Result() *sieveresult.Result { return i.result }

// Env returns the commit-time environment (collaborators + status flags).
func (i *Interpreter) Env() *sieveresult.Environment { return i.env }

// Envelope returns the message envelope this run is evaluating against.
func (i *Interpreter) Envelope() *Envelope { return i.envelope }

// Binary returns the binary this interpreter is executing, so extensions
// can resolve ext-indexed operands against it.
func (i *Interpreter) Binary() *sievebin.Binary { return i.bin }

// Registry returns the comparator/match-type registry in use.
func (i *Interpreter) Registry() *sievematch.Registry { return i.registry }

// Reader exposes the raw code-stream reader so extension opcode handlers
// can decode their own operands (the reader is shared with the core
// dispatch loop, which has already consumed the opcode byte itself).
func (i *Interpreter) Reader() *sievecode.Reader { return i.r }

// SetExtState stores per-extension runtime state, installed by an
// extension's InterpreterLoad hook and retrieved later via ExtState.
func (i *Interpreter) SetExtState(name string, v any) { i.extState[name] = v }

// ExtState retrieves per-extension runtime state previously stored by
// SetExtState.
func (i *Interpreter) ExtState(name string) (any, bool) {
	v, ok := i.extState[name]
	return v, ok
}

// Reset rewinds the program counter to the reset vector (the point just
// after the prelude) and clears the test-result register, mirroring
// sieve_interpreter_reset.
func (i *Interpreter) Reset() {
	i.r.Seek(i.resetVector)
	i.interrupted = false
	i.testResult = false
}

// Free releases this interpreter's resources: every loop frame is
// dropped and the binary's reference count is decremented (spec §3,
// "Lifecycle": "Interpreter frees all loop frames and per-extension state
// on destruction").
func (i *Interpreter) Free() {
	i.loopStack = nil
	i.extState = nil
	i.bin.Unref()
}
