// Package sieveerr provides the status codes and error types shared across
// the binary store, interpreter, match engine, and result pipeline. It
// replaces the mixed boolean/negative-int/global-handler error model of the
// original implementation with a single carried status plus an explicit
// error sink (see Design Note "Error propagation" in DESIGN.md).
package sieveerr

import "fmt"

// Status is the integer status code returned by interpreter operations and
// match/result pipeline calls.
type Status int

const (
	// OK means continue execution.
	OK Status = iota
	// Failure is a script runtime error; triggers implicit keep downstream.
	Failure
	// TempFailure means retry-later; reported up without implicit keep.
	TempFailure
	// BinCorrupt means the binary is malformed or cross-references invalid.
	// Never converted to implicit keep.
	BinCorrupt
	// KeepFailed means the safety-net implicit keep itself failed.
	KeepFailed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Failure:
		return "FAILURE"
	case TempFailure:
		return "TEMP_FAILURE"
	case BinCorrupt:
		return "BIN_CORRUPT"
	case KeepFailed:
		return "KEEP_FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Severity classifies messages sent to an ErrorSink.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
	Critical
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Location pinpoints an error within a binary: the block it occurred in, the
// byte offset (program counter) within that block, and the script source
// line if debug info was loaded.
type Location struct {
	Block uint32
	PC    uint32
	Line  int
}

func (l Location) String() string {
	if l.Line > 0 {
		return fmt.Sprintf("block %d, pc %d (line %d)", l.Block, l.PC, l.Line)
	}
	return fmt.Sprintf("block %d, pc %d", l.Block, l.PC)
}

// ErrorSink is the collaborator contract for compile/runtime diagnostics
// (spec §6, "Error sink").
type ErrorSink interface {
	Report(severity Severity, loc Location, message string)
}

// TraceFrame is a single structured execution trace record.
type TraceFrame struct {
	Location Location
	Op       string
	Detail   string
}

// TraceSink is the collaborator contract for structured execution traces
// (spec §6, "Trace sink"). Implementations may no-op when tracing is
// disabled.
type TraceSink interface {
	Trace(frame TraceFrame)
}

// NopTraceSink discards every frame.
type NopTraceSink struct{}

func (NopTraceSink) Trace(TraceFrame) {}

// DiscardErrorSink discards every report. Useful for tests that don't care
// about diagnostics.
type DiscardErrorSink struct{}

func (DiscardErrorSink) Report(Severity, Location, string) {}

// CorruptError reports a BinCorrupt condition: a short read, bad magic or
// version, invalid opcode, invalid operand class, cross-block jump, or loop
// bounds violation. It is never converted to implicit keep (spec §7).
type CorruptError struct {
	Reason string
	Loc    Location
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("binary corrupt at %s: %s", e.Loc, e.Reason)
}

// RuntimeError wraps an underlying collaborator failure (mailbox I/O, quota,
// missing folder, ...) together with the status it maps to and the location
// it occurred at, mirroring peggyvm's RuntimeError{Err, XP, DP, Op} pattern.
type RuntimeError struct {
	Status Status
	Loc    Location
	Err    error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %v", e.Status, e.Loc, e.Err)
	}
	return fmt.Sprintf("%s at %s", e.Status, e.Loc)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// NewCorrupt is a small constructor used throughout L1-L3 so every corrupt
// report carries a location without repeating struct literals.
func NewCorrupt(loc Location, format string, args ...any) *CorruptError {
	return &CorruptError{Reason: fmt.Sprintf(format, args...), Loc: loc}
}
