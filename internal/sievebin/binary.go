// Package sievebin implements the L1 binary store: a versioned,
// block-addressed container for compiled scripts, with an endian guard and
// atomic save/load. The bit-exact layout is specified in SPEC_FULL.md §4.1
// and grounded on original_source/src/lib-sieve/sieve-binary.c (reserved
// block ids, extensions-manifest-as-block-0) and internal/vm/bundle.go (the
// teacher's own versioned-container shape, here made bit-exact rather than
// gob-encoded because the spec requires byte-swap detection on the magic,
// which a self-describing gob stream would hide).
package sievebin

import (
	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sieveerr"
)

// BlockID addresses a block within a binary. Ids 0 and 1 are reserved.
type BlockID uint32

const (
	// ExtensionsBlock holds the linked-extension-names manifest.
	ExtensionsBlock BlockID = 0
	// MainBlock holds the main program.
	MainBlock BlockID = 1
)

const (
	// Magic is the canary written at the start of every binary. The
	// header, index and block bodies are always written big-endian,
	// whatever the writer's host byte order; the host's native order is
	// not used.
	Magic uint32 = 0xdeadbeaf
	// MagicSwapped is Magic with its bytes reversed; Decode rejects a
	// file starting with it as an incompatible (byte-swapped) binary
	// instead of mis-parsing garbage.
	MagicSwapped uint32 = 0xefbeadde

	// VersionMajor/VersionMinor are matched exactly on load; per Design
	// Note (3) a minor-version difference is deliberately NOT treated as
	// compatible.
	VersionMajor uint16 = 1
	VersionMinor uint16 = 0
)

// Block is a contiguous byte buffer plus the extension that owns it ( -1
// for core-owned blocks, e.g. the main program).
type Block struct {
	ID       BlockID
	ExtIndex int32
	Data     []byte
}

// Size reports the block's payload length, i.e. the byte address the
// interpreter's PC must stay below while this block is active.
func (b *Block) Size() uint32 { return uint32(len(b.Data)) }

// ExtensionResolver lets Load verify that every extension named in a
// binary's manifest is known to the host before linking it in. A nil
// resolver skips the check (useful for tests building binaries in
// isolation).
type ExtensionResolver interface {
	Known(name string) bool
}

// Binary is the in-memory, reference-counted representation of a compiled
// script container.
type Binary struct {
	VersionMajor uint16
	VersionMinor uint16

	blocks      []*Block
	blocksByID  map[BlockID]*Block
	nextBlockID BlockID

	extensions []string       // binary-local index order
	extIndex   map[string]int // name -> binary-local index

	refcount int32
	path     string
}

// New creates an empty binary with the reserved extensions-manifest and
// main-program blocks already allocated, matching
// sieve_binary_create_new's reservation of block ids 0 and 1.
func New() *Binary {
	b := &Binary{
		VersionMajor: VersionMajor,
		VersionMinor: VersionMinor,
		blocksByID:   make(map[BlockID]*Block),
		extIndex:     make(map[string]int),
		refcount:     1,
	}
	manifest := &Block{ID: ExtensionsBlock, ExtIndex: -1}
	main := &Block{ID: MainBlock, ExtIndex: -1}
	b.blocks = append(b.blocks, manifest, main)
	b.blocksByID[ExtensionsBlock] = manifest
	b.blocksByID[MainBlock] = main
	b.nextBlockID = 2
	return b
}

// LinkExtension records name as linked (if not already) and returns its
// binary-local index — the order extensions were first linked into this
// binary, which is the only thing the bytecode ever references (spec
// §4.1, "Extension indexing").
func (b *Binary) LinkExtension(name string) int {
	if idx, ok := b.extIndex[name]; ok {
		return idx
	}
	idx := len(b.extensions)
	b.extensions = append(b.extensions, name)
	b.extIndex[name] = idx
	return idx
}

// Extensions returns the linked extension names in binary-local index
// order.
func (b *Binary) Extensions() []string {
	return append([]string(nil), b.extensions...)
}

// ExtensionIndex reports the binary-local index of name, if linked.
func (b *Binary) ExtensionIndex(name string) (int, bool) {
	idx, ok := b.extIndex[name]
	return idx, ok
}

// ExtensionName reverses ExtensionIndex.
func (b *Binary) ExtensionName(idx int) (string, bool) {
	if idx < 0 || idx >= len(b.extensions) {
		return "", false
	}
	return b.extensions[idx], true
}

// MainProgram returns the reserved main-program block.
func (b *Binary) MainProgram() *Block {
	return b.blocksByID[MainBlock]
}

// NewBlock allocates a fresh block owned by extIndex (-1 for core) and
// returns it. Extensions call this to create additional blocks beyond the
// two reserved ones (spec §3: "Extensions may create further blocks").
func (b *Binary) NewBlock(extIndex int32) *Block {
	id := b.nextBlockID
	b.nextBlockID++
	blk := &Block{ID: id, ExtIndex: extIndex}
	b.blocks = append(b.blocks, blk)
	b.blocksByID[id] = blk
	return blk
}

// Block looks up a block by id.
func (b *Binary) Block(id BlockID) (*Block, bool) {
	blk, ok := b.blocksByID[id]
	return blk, ok
}

// Blocks returns every block in id order.
func (b *Binary) Blocks() []*Block {
	return append([]*Block(nil), b.blocks...)
}

// Ref increments the reference count. Interpreters hold one reference for
// the duration of execution (spec §3, "Lifecycle").
func (b *Binary) Ref() { b.refcount++ }

// Unref decrements the reference count and returns the value after
// decrementing. Go's GC reclaims the memory regardless; Unref exists so
// deterministic release hooks (closing any OS resources a future extension
// attaches to the binary) have a well-defined trigger point, per the
// "Memory discipline" note in SPEC_FULL.md §5.
func (b *Binary) Unref() int32 {
	b.refcount--
	return b.refcount
}

// RefCount reports the current reference count.
func (b *Binary) RefCount() int32 { return b.refcount }

// Path reports the filesystem path this binary was loaded from or last
// saved to, or "" if it has never touched disk.
func (b *Binary) Path() string { return b.path }

// align4 rounds n up to the next multiple of 4.
func align4(n int) int {
	return (n + 3) &^ 3
}

// encodeManifest serializes the linked-extension-names list using the L2
// string-list primitive, matching sieve_binary_create_new's block-0
// convention ("{count, [name]*}", spec §4.1).
func (b *Binary) encodeManifest() []byte {
	w := sievecode.NewWriter()
	w.EmitStringList(b.extensions)
	return w.Bytes()
}

// decodeManifest is the inverse of encodeManifest, verifying every named
// extension against resolver (if non-nil) and linking it in binary-local
// order.
func (b *Binary) decodeManifest(data []byte, resolver ExtensionResolver) error {
	r := sievecode.NewReader(data)
	names, err := r.ReadStringList()
	if err != nil {
		return sieveerr.NewCorrupt(sieveerr.Location{Block: uint32(ExtensionsBlock)}, "malformed extensions manifest: %v", err)
	}
	for _, name := range names {
		if resolver != nil && !resolver.Known(name) {
			return sieveerr.NewCorrupt(sieveerr.Location{Block: uint32(ExtensionsBlock)}, "unknown extension %q referenced by binary", name)
		}
		b.LinkExtension(name)
	}
	return nil
}
