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

func TestAssembleYAMLFileIntoOnHeaderMatch(t *testing.T) {
	src := []byte(`
program:
  - op: test-header
    headers: ["Subject"]
    keys: ["urgent"]
    comparator: {core: 1}
    matchtype: {core: 1}
  - op: jmp-false
    target: skip
  - op: fileinto
    mailbox: Urgent
  - op: stop
  - label: skip
  - op: keep
  - op: halt
`)
	bin, err := AssembleYAML(src)
	require.NoError(t, err)

	opts := sievevm.Options{
		Registry:   sievematch.NewRegistry(),
		Extensions: map[string]sievevm.Extension{},
		Result:     sieveresult.New(),
		Env:        &sieveresult.Environment{DefaultBox: "INBOX"},
		Envelope:   &sievevm.Envelope{Headers: map[string][]string{"Subject": {"urgent: please read"}}},
		ErrorSink:  sieveerr.DiscardErrorSink{},
	}
	interp, err := sievevm.NewInterpreter(bin, sievebin.MainBlock, nil, opts)
	require.NoError(t, err)
	status := interp.Run()
	require.Equal(t, sieveerr.OK, status)
	require.Len(t, interp.Result().Actions(), 1)
	require.Equal(t, "store", interp.Result().Actions()[0].Def.Name())
	require.Equal(t, "Urgent", interp.Result().Actions()[0].Ctx["mailbox"])
}

func TestAssembleYAMLNoMatchFallsThroughToKeep(t *testing.T) {
	src := []byte(`
program:
  - op: test-header
    headers: ["Subject"]
    keys: ["urgent"]
    comparator: {core: 1}
    matchtype: {core: 1}
  - op: jmp-false
    target: skip
  - op: fileinto
    mailbox: Urgent
  - op: stop
  - label: skip
  - op: keep
  - op: halt
`)
	bin, err := AssembleYAML(src)
	require.NoError(t, err)

	opts := sievevm.Options{
		Registry:   sievematch.NewRegistry(),
		Extensions: map[string]sievevm.Extension{},
		Result:     sieveresult.New(),
		Env:        &sieveresult.Environment{DefaultBox: "INBOX"},
		Envelope:   &sievevm.Envelope{Headers: map[string][]string{"Subject": {"weekly digest"}}},
		ErrorSink:  sieveerr.DiscardErrorSink{},
	}
	interp, err := sievevm.NewInterpreter(bin, sievebin.MainBlock, nil, opts)
	require.NoError(t, err)
	status := interp.Run()
	require.Equal(t, sieveerr.OK, status)
	require.Len(t, interp.Result().Actions(), 1)
	require.Equal(t, "keep", interp.Result().Actions()[0].Def.Name())
}

func TestAssembleYAMLTestSizeUsesByteComparisonCode(t *testing.T) {
	src := []byte(`
program:
  - op: test-size
    comparison: over
    limit: 1000000
  - op: jmp-false
    target: skip
  - op: discard
  - op: halt
  - label: skip
  - op: keep
  - op: halt
`)
	bin, err := AssembleYAML(src)
	require.NoError(t, err)

	opts := sievevm.Options{
		Registry:   sievematch.NewRegistry(),
		Extensions: map[string]sievevm.Extension{},
		Result:     sieveresult.New(),
		Env:        &sieveresult.Environment{DefaultBox: "INBOX"},
		Envelope:   &sievevm.Envelope{Size: 10},
		ErrorSink:  sieveerr.DiscardErrorSink{},
	}
	interp, err := sievevm.NewInterpreter(bin, sievebin.MainBlock, nil, opts)
	require.NoError(t, err)
	status := interp.Run()
	require.Equal(t, sieveerr.OK, status)
	require.Len(t, interp.Result().Actions(), 1)
	require.Equal(t, "keep", interp.Result().Actions()[0].Def.Name())
}

func TestAssembleYAMLUnknownOpFails(t *testing.T) {
	_, err := AssembleYAML([]byte(`
program:
  - op: not-a-real-op
`))
	require.Error(t, err)
}

func TestAssembleYAMLRequiresExtensionsAreLinked(t *testing.T) {
	src := []byte(`
require: ["regex"]
program:
  - op: halt
`)
	bin, err := AssembleYAML(src)
	require.NoError(t, err)
	require.Equal(t, []string{"regex"}, bin.Extensions())
}
