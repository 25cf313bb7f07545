package sieveasm

import (
	"testing"

	"github.com/funvibe/sievecore/internal/sievebin"
	"github.com/funvibe/sievecore/internal/sieveerr"
	"github.com/funvibe/sievecore/internal/sievematch"
	"github.com/funvibe/sievecore/internal/sieveresult"
	"github.com/funvibe/sievecore/internal/sievevm"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, bin *sievebin.Binary) (*sievevm.Interpreter, sieveerr.Status) {
	t.Helper()
	opts := sievevm.Options{
		Registry:   sievematch.NewRegistry(),
		Extensions: map[string]sievevm.Extension{},
		Result:     sieveresult.New(),
		Env:        &sieveresult.Environment{DefaultBox: "INBOX"},
		ErrorSink:  sieveerr.DiscardErrorSink{},
	}
	interp, err := sievevm.NewInterpreter(bin, sievebin.MainBlock, nil, opts)
	require.NoError(t, err)
	return interp, interp.Run()
}

func TestAssemblerForwardJumpSkipsGuardedOp(t *testing.T) {
	a := NewAssembler()
	a.Op(sievevm.OpTestFalse)
	a.Op(sievevm.OpJmpFalse)
	a.Jump("skip")
	a.Op(sievevm.OpTestTrue)
	require.NoError(t, a.Label("skip"))
	a.Op(sievevm.OpDiscard)
	a.Op(sievevm.OpHalt)

	bin, err := a.Link()
	require.NoError(t, err)
	interp, status := run(t, bin)
	require.Equal(t, sieveerr.OK, status)
	require.True(t, interp.Result().KeepSuppressed())
	require.False(t, interp.TestResult(), "the guarded test-true must have been skipped")
}

func TestAssemblerBackwardJumpResolvesToEarlierAddress(t *testing.T) {
	a := NewAssembler()
	require.NoError(t, a.Label("begin"))
	a.Op(sievevm.OpTestFalse)
	a.Op(sievevm.OpJmpTrue) // never taken: testResult is false, so no backward-jump loop
	a.Jump("begin")
	a.Op(sievevm.OpKeep)
	a.Op(sievevm.OpHalt)

	bin, err := a.Link()
	require.NoError(t, err)
	interp, status := run(t, bin)
	require.Equal(t, sieveerr.OK, status)
	require.Len(t, interp.Result().Actions(), 1, "fallthrough past the untaken backward jump must reach the keep op exactly once")
}

func TestAssemblerUndefinedLabelFailsAtLink(t *testing.T) {
	a := NewAssembler()
	a.Op(sievevm.OpJmp)
	a.Jump("nowhere")
	a.Op(sievevm.OpHalt)

	_, err := a.Link()
	require.Error(t, err)
}

func TestAssemblerRedefinedLabelFails(t *testing.T) {
	a := NewAssembler()
	require.NoError(t, a.Label("l"))
	require.Error(t, a.Label("l"))
}

func TestAssemblerExtOpLinksExtensionInFirstUseOrder(t *testing.T) {
	a := NewAssembler()
	a.LinkExtension("regex")
	a.ExtOp("vnd.dovecot.execute", 0)
	a.Str("sendmail")
	a.StrList([]string{"-t"})
	a.Op(sievevm.OpHalt)

	bin, err := a.Link()
	require.NoError(t, err)
	require.Equal(t, []string{"regex", "vnd.dovecot.execute"}, bin.Extensions())
}

func TestAssemblerDebugLineMapRecorded(t *testing.T) {
	a := NewAssembler()
	a.SetLine(3)
	a.Op(sievevm.OpKeep)
	a.SetLine(4)
	a.Op(sievevm.OpHalt)

	bin, err := a.Link()
	require.NoError(t, err)
	_, ok := bin.Block(sievebin.BlockID(2))
	require.True(t, ok, "SetLine must produce a debug block")
	_, status := run(t, bin)
	require.Equal(t, sieveerr.OK, status)
}
