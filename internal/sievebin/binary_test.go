package sievebin

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeResolver struct{ known map[string]bool }

func (f fakeResolver) Known(name string) bool { return f.known[name] }

func buildSample() *Binary {
	b := New()
	extIdx := b.LinkExtension("fileinto")
	main := b.MainProgram()
	main.Data = []byte{0x01, 0x02, 0x03}
	extBlock := b.NewBlock(int32(extIdx))
	extBlock.Data = []byte("extension payload")
	return b
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.svbin")

	b := buildSample()
	require.NoError(t, b.Save(path))

	resolver := fakeResolver{known: map[string]bool{"fileinto": true}}
	loaded, err := Load(path, resolver)
	require.NoError(t, err)

	require.Equal(t, b.Extensions(), loaded.Extensions())
	require.Equal(t, b.MainProgram().Data, loaded.MainProgram().Data)

	origExt, ok := b.Block(BlockID(2))
	require.True(t, ok)
	loadedExt, ok := loaded.Block(BlockID(2))
	require.True(t, ok)
	require.Equal(t, origExt.Data, loadedExt.Data)
}

func TestLoadUnknownExtensionFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.svbin")
	b := buildSample()
	require.NoError(t, b.Save(path))

	_, err := Load(path, fakeResolver{known: map[string]bool{}})
	require.Error(t, err)
}

func TestEndianGuardDetectsByteSwappedMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.svbin")
	b := buildSample()
	require.NoError(t, b.Save(path))

	data := readFile(t, path)
	// Corrupt the magic field to its byte-swapped form.
	binary.BigEndian.PutUint32(data[0:4], MagicSwapped)

	_, err := Decode(data, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "incompatible")
}

func TestVersionMismatchFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.svbin")
	b := buildSample()
	require.NoError(t, b.Save(path))

	data := readFile(t, path)
	binary.BigEndian.PutUint16(data[6:8], VersionMinor+1)

	_, err := Decode(data, nil)
	require.Error(t, err)
}

func TestBlocksAreFourByteAligned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.svbin")
	b := New()
	b.MainProgram().Data = []byte{1} // odd-length body forces padding before the next block
	ext := b.NewBlock(-1)
	ext.Data = []byte{2, 3}
	require.NoError(t, b.Save(path))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, b.MainProgram().Data, loaded.MainProgram().Data)

	data := readFile(t, path)
	for i := 0; i < 3; i++ {
		off := headerSize + i*indexRecordSize + 8
		require.Zero(t, binary.BigEndian.Uint32(data[off:off+4])%4, "block %d offset must be 4-byte aligned", i)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
