package sieveext

import (
	"testing"

	"github.com/funvibe/sievecore/internal/sievebin"
	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sieveerr"
	"github.com/funvibe/sievecore/internal/sieveresult"
	"github.com/funvibe/sievecore/internal/sievevm"
	"github.com/stretchr/testify/require"
)

// newTestBin wraps program bytes in the minimal block prelude (no debug
// block, no interpreter-load extensions) sievevm expects.
func newTestBin(program []byte) *sievebin.Binary {
	w := sievecode.NewWriter()
	w.EmitByte(0)
	w.EmitInteger(0)
	w.EmitData(program)
	b := sievebin.New()
	b.MainProgram().Data = w.Bytes()
	return b
}

func newTestInterpreter(t *testing.T, bin *sievebin.Binary, reg *Registry, env *sievevm.Envelope) *sievevm.Interpreter {
	t.Helper()
	opts := sievevm.Options{
		Registry:   reg.Match,
		Extensions: reg.Extensions,
		Result:     sieveresult.New(),
		Env:        &sieveresult.Environment{DefaultBox: "INBOX"},
		Envelope:   env,
		ErrorSink:  sieveerr.DiscardErrorSink{},
	}
	interp, err := sievevm.NewInterpreter(bin, sievebin.MainBlock, nil, opts)
	require.NoError(t, err)
	return interp
}

func TestWireRegexMatchesThroughCoreHeaderTest(t *testing.T) {
	reg := NewRegistry()
	reg.WireRegex()

	bin := sievebin.New()
	regexIdx := bin.LinkExtension("regex")

	w := sievecode.NewWriter()
	w.EmitCoreOp(sievevm.OpTestHeader)
	w.EmitStringList([]string{"subject"})
	w.EmitStringList([]string{"^urg.*$"})
	w.EmitObject(sievecode.Object{Class: sievecode.ClassComparator, Core: true, Code: 1})
	w.EmitObject(sievecode.Object{Class: sievecode.ClassMatchType, Core: false, ExtIndex: regexIdx, SubCode: 0})
	w.EmitCoreOp(sievevm.OpJmpFalse)
	off := w.EmitOffset()
	w.EmitCoreOp(sievevm.OpDiscard)
	require.NoError(t, w.ResolveOffset(off))
	w.EmitCoreOp(sievevm.OpHalt)
	prelude := sievecode.NewWriter()
	prelude.EmitByte(0)
	prelude.EmitInteger(0)
	prelude.EmitData(w.Bytes())
	bin.MainProgram().Data = prelude.Bytes()

	env := &sievevm.Envelope{Headers: map[string][]string{"subject": {"URGENT: read me"}}}
	interp := newTestInterpreter(t, bin, reg, env)
	status := interp.Run()
	require.Equal(t, sieveerr.OK, status)
	require.True(t, interp.Result().KeepSuppressed())
}

type stubResolver struct {
	values map[string]string
}

func (s stubResolver) MethodCapability(uri, capability string) (string, bool) {
	v, ok := s.values[uri+"|"+capability]
	return v, ok
}

func emitMatchOperands(w *sievecode.Writer, keys []string) {
	w.EmitStringList(keys)
	w.EmitObject(sievecode.Object{Class: sievecode.ClassComparator, Core: true, Code: 1})
	w.EmitObject(sievecode.Object{Class: sievecode.ClassMatchType, Core: true, Code: 0})
}

func TestNotifyMethodCapabilityFailsClosedWithoutResolver(t *testing.T) {
	reg := NewRegistry()
	reg.WireNotify(nil)
	bin := sievebin.New()
	notifyIdx := bin.LinkExtension("notify")

	w := sievecode.NewWriter()
	w.EmitExtOp(notifyIdx, notifySubTestCapability)
	w.EmitString("mailto")
	w.EmitString("online")
	emitMatchOperands(w, []string{"maybe"})
	w.EmitCoreOp(sievevm.OpJmpFalse)
	off := w.EmitOffset()
	w.EmitCoreOp(sievevm.OpDiscard)
	require.NoError(t, w.ResolveOffset(off))
	w.EmitCoreOp(sievevm.OpHalt)
	bin.MainProgram().Data = wrapPrelude(w.Bytes())

	interp := newTestInterpreter(t, bin, reg, &sievevm.Envelope{})
	status := interp.Run()
	require.Equal(t, sieveerr.OK, status)
	require.False(t, interp.Result().KeepSuppressed(), "unresolved capability must not match")
}

func TestNotifyMethodCapabilityMatchesResolvedValue(t *testing.T) {
	reg := NewRegistry()
	reg.WireNotify(stubResolver{values: map[string]string{"mailto|online": "maybe"}})
	bin := sievebin.New()
	notifyIdx := bin.LinkExtension("notify")

	w := sievecode.NewWriter()
	w.EmitExtOp(notifyIdx, notifySubTestCapability)
	w.EmitString("mailto")
	w.EmitString("online")
	emitMatchOperands(w, []string{"maybe"})
	w.EmitCoreOp(sievevm.OpJmpFalse)
	off := w.EmitOffset()
	w.EmitCoreOp(sievevm.OpDiscard)
	require.NoError(t, w.ResolveOffset(off))
	w.EmitCoreOp(sievevm.OpHalt)
	bin.MainProgram().Data = wrapPrelude(w.Bytes())

	interp := newTestInterpreter(t, bin, reg, &sievevm.Envelope{})
	status := interp.Run()
	require.Equal(t, sieveerr.OK, status)
	require.True(t, interp.Result().KeepSuppressed())
}

func TestNotifyActionRecordsThroughCommit(t *testing.T) {
	reg := NewRegistry()
	reg.WireNotify(nil)
	bin := sievebin.New()
	notifyIdx := bin.LinkExtension("notify")

	w := sievecode.NewWriter()
	w.EmitExtOp(notifyIdx, notifySubAction)
	w.EmitString("mailto:ops@example.com")
	w.EmitString("queue backed up")
	w.EmitCoreOp(sievevm.OpHalt)
	bin.MainProgram().Data = wrapPrelude(w.Bytes())

	interp := newTestInterpreter(t, bin, reg, &sievevm.Envelope{})
	status := interp.Run()
	require.Equal(t, sieveerr.OK, status)
	require.Len(t, interp.Result().Actions(), 1)
	require.Equal(t, "notify", interp.Result().Actions()[0].Def.Name())

	var notified []string
	env := &sieveresult.Environment{
		DefaultBox: "INBOX",
		Notifier:   notifierFunc(func(method, message string) error { notified = append(notified, method+":"+message); return nil }),
	}
	require.Equal(t, sieveerr.OK, interp.Result().Commit(env))
	require.Equal(t, []string{"mailto:ops@example.com:queue backed up"}, notified)
}

type notifierFunc func(method, message string) error

func (f notifierFunc) Notify(method, message string) error { return f(method, message) }

func wrapPrelude(program []byte) []byte {
	w := sievecode.NewWriter()
	w.EmitByte(0)
	w.EmitInteger(0)
	w.EmitData(program)
	return w.Bytes()
}

type memTracker struct{ seen map[string]bool }

func (m *memTracker) Seen(id string) (bool, error) { return m.seen[id], nil }
func (m *memTracker) Mark(id string) error {
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	m.seen[id] = true
	return nil
}

func TestDuplicateTestFailsClosedWithoutTracker(t *testing.T) {
	reg := NewRegistry()
	reg.WireDuplicate(nil)
	bin := sievebin.New()
	dupIdx := bin.LinkExtension("duplicate")

	w := sievecode.NewWriter()
	w.EmitExtOp(dupIdx, duplicateSubTest)
	w.EmitString("msg-1")
	w.EmitCoreOp(sievevm.OpJmpFalse)
	off := w.EmitOffset()
	w.EmitCoreOp(sievevm.OpDiscard)
	require.NoError(t, w.ResolveOffset(off))
	w.EmitCoreOp(sievevm.OpHalt)
	bin.MainProgram().Data = wrapPrelude(w.Bytes())

	interp := newTestInterpreter(t, bin, reg, &sievevm.Envelope{})
	status := interp.Run()
	require.Equal(t, sieveerr.OK, status)
	require.False(t, interp.Result().KeepSuppressed(), "no tracker means every check evaluates false")
}

func TestDuplicateTestMarksOnFirstSightThenMatchesOnSecond(t *testing.T) {
	reg := NewRegistry()
	tracker := &memTracker{}
	reg.WireDuplicate(tracker)
	bin := sievebin.New()
	dupIdx := bin.LinkExtension("duplicate")

	program := func() []byte {
		w := sievecode.NewWriter()
		w.EmitExtOp(dupIdx, duplicateSubTest)
		w.EmitString("msg-1")
		w.EmitCoreOp(sievevm.OpJmpFalse)
		off := w.EmitOffset()
		w.EmitCoreOp(sievevm.OpDiscard)
		require.NoError(t, w.ResolveOffset(off))
		w.EmitCoreOp(sievevm.OpHalt)
		return wrapPrelude(w.Bytes())
	}

	bin.MainProgram().Data = program()
	interp := newTestInterpreter(t, bin, reg, &sievevm.Envelope{})
	require.Equal(t, sieveerr.OK, interp.Run())
	require.False(t, interp.Result().KeepSuppressed(), "unseen id must not match")

	bin.MainProgram().Data = program()
	interp = newTestInterpreter(t, bin, reg, &sievevm.Envelope{})
	require.Equal(t, sieveerr.OK, interp.Run())
	require.True(t, interp.Result().KeepSuppressed(), "id marked by the first run must now match")
}
