package sieveerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		OK:          "OK",
		Failure:     "FAILURE",
		TempFailure: "TEMP_FAILURE",
		BinCorrupt:  "BIN_CORRUPT",
		KeepFailed:  "KEEP_FAILED",
	}
	for status, want := range cases {
		require.Equal(t, want, status.String())
	}
	require.Equal(t, "Status(99)", Status(99).String())
}

func TestLocationStringIncludesLineOnlyWhenKnown(t *testing.T) {
	require.Equal(t, "block 1, pc 2", Location{Block: 1, PC: 2}.String())
	require.Equal(t, "block 1, pc 2 (line 7)", Location{Block: 1, PC: 2, Line: 7}.String())
}

func TestRuntimeErrorUnwrapsUnderlyingError(t *testing.T) {
	inner := errors.New("mailbox quota exceeded")
	re := &RuntimeError{Status: Failure, Loc: Location{Block: 1, PC: 10}, Err: inner}

	require.ErrorIs(t, re, inner)
	require.Contains(t, re.Error(), "FAILURE")
	require.Contains(t, re.Error(), "mailbox quota exceeded")
}

func TestCorruptErrorNeverCarriesAnUnwrappableCause(t *testing.T) {
	err := NewCorrupt(Location{Block: 1, PC: 4}, "opcode %d out of range", 255)

	require.Contains(t, err.Error(), "binary corrupt")
	require.Contains(t, err.Error(), "opcode 255 out of range")
	require.Nil(t, errors.Unwrap(err))
}

func TestDiscardSinksAreNoops(t *testing.T) {
	require.NotPanics(t, func() {
		DiscardErrorSink{}.Report(Critical, Location{}, "ignored")
		NopTraceSink{}.Trace(TraceFrame{Op: "test"})
	})
}
