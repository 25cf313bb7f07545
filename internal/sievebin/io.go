package sievebin

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/funvibe/sievecore/internal/sieveerr"
)

const headerSize = 4 + 2 + 2 + 4 // magic, major, minor, block_count
const indexRecordSize = 4 + 4 + 4 + 4
const bodyHeaderSize = 4 + 4

// indexRecord mirrors the on-disk block-index entry: {id, size, offset,
// extension_index}, each 32-bit (spec §4.1).
type indexRecord struct {
	id       uint32
	size     uint32
	offset   uint32
	extIndex int32
}

// Save writes b to path using the protocol in spec §4.1: notify is a no-op
// at this layer (extensions finalize their own blocks before Save is
// called), write a placeholder header+index, emit block bodies recording
// their real offsets, then rewind and write the finalized index. The file
// is written to "<path>.tmp" and renamed over path so a crash mid-write
// never leaves a half-written binary in place.
func (b *Binary) Save(path string) error {
	b.blocksByID[ExtensionsBlock].Data = b.encodeManifest()

	var buf []byte
	// Header.
	hdr := make([]byte, headerSize)
	binary.BigEndian.PutUint32(hdr[0:4], Magic)
	binary.BigEndian.PutUint16(hdr[4:6], b.VersionMajor)
	binary.BigEndian.PutUint16(hdr[6:8], b.VersionMinor)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b.blocks)))
	buf = append(buf, hdr...)

	// Reserve the index.
	indexStart := len(buf)
	buf = append(buf, make([]byte, len(b.blocks)*indexRecordSize)...)

	records := make([]indexRecord, len(b.blocks))
	for i, blk := range b.blocks {
		for len(buf)%4 != 0 {
			buf = append(buf, 0)
		}
		offset := len(buf)
		bodyHdr := make([]byte, bodyHeaderSize)
		binary.BigEndian.PutUint32(bodyHdr[0:4], uint32(blk.ID))
		binary.BigEndian.PutUint32(bodyHdr[4:8], uint32(len(blk.Data)))
		buf = append(buf, bodyHdr...)
		buf = append(buf, blk.Data...)

		records[i] = indexRecord{
			id:       uint32(blk.ID),
			size:     uint32(len(blk.Data)),
			offset:   uint32(offset),
			extIndex: blk.ExtIndex,
		}
	}

	// Rewind and write the finalized index.
	for i, rec := range records {
		off := indexStart + i*indexRecordSize
		binary.BigEndian.PutUint32(buf[off:off+4], rec.id)
		binary.BigEndian.PutUint32(buf[off+4:off+8], rec.size)
		binary.BigEndian.PutUint32(buf[off+8:off+12], rec.offset)
		binary.BigEndian.PutUint32(buf[off+12:off+16], uint32(rec.extIndex))
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("sievebin: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("sievebin: rename %s to %s: %w", tmp, path, err)
	}
	b.path = path
	return nil
}

// Load opens path, verifies the header, resolves the extensions manifest
// against resolver, and maps in every remaining block.
func Load(path string, resolver ExtensionResolver) (*Binary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sievebin: read %s: %w", path, err)
	}
	b, err := Decode(data, resolver)
	if err != nil {
		return nil, err
	}
	b.path = path
	return b, nil
}

// Decode parses an in-memory binary image, applying the same verification
// Load does. It is split out from Load so tests can exercise corruption
// scenarios (e.g. a byte-swapped magic) without touching the filesystem.
func Decode(data []byte, resolver ExtensionResolver) (*Binary, error) {
	if len(data) < headerSize {
		return nil, sieveerr.NewCorrupt(sieveerr.Location{}, "file too short for header (%d bytes)", len(data))
	}
	magic := binary.BigEndian.Uint32(data[0:4])
	switch magic {
	case Magic:
		// native endianness, proceed
	case MagicSwapped:
		return nil, sieveerr.NewCorrupt(sieveerr.Location{}, "incompatible binary: magic byte-swapped (written on a host of the opposite endianness)")
	default:
		return nil, sieveerr.NewCorrupt(sieveerr.Location{}, "bad magic number 0x%08x", magic)
	}

	major := binary.BigEndian.Uint16(data[4:6])
	minor := binary.BigEndian.Uint16(data[6:8])
	if major != VersionMajor || minor != VersionMinor {
		// Per Design Note (3): minor-version differences are NOT treated
		// as compatible, even though the major version matches. This is
		// the spec-documented behavior, not an oversight.
		return nil, sieveerr.NewCorrupt(sieveerr.Location{}, "incompatible version %d.%d (expected %d.%d)", major, minor, VersionMajor, VersionMinor)
	}
	blockCount := binary.BigEndian.Uint32(data[8:12])

	indexStart := headerSize
	indexEnd := indexStart + int(blockCount)*indexRecordSize
	if indexEnd > len(data) {
		return nil, sieveerr.NewCorrupt(sieveerr.Location{}, "block index truncated")
	}

	records := make([]indexRecord, blockCount)
	for i := range records {
		off := indexStart + i*indexRecordSize
		records[i] = indexRecord{
			id:       binary.BigEndian.Uint32(data[off : off+4]),
			size:     binary.BigEndian.Uint32(data[off+4 : off+8]),
			offset:   binary.BigEndian.Uint32(data[off+8 : off+12]),
			extIndex: int32(binary.BigEndian.Uint32(data[off+12 : off+16])),
		}
	}

	b := &Binary{
		VersionMajor: major,
		VersionMinor: minor,
		blocksByID:   make(map[BlockID]*Block),
		extIndex:     make(map[string]int),
		refcount:     1,
	}

	var manifestData []byte
	for _, rec := range records {
		loc := sieveerr.Location{Block: rec.id}
		bodyStart := int(rec.offset)
		if bodyStart+bodyHeaderSize > len(data) {
			return nil, sieveerr.NewCorrupt(loc, "block body header truncated")
		}
		bodyID := binary.BigEndian.Uint32(data[bodyStart : bodyStart+4])
		bodySize := binary.BigEndian.Uint32(data[bodyStart+4 : bodyStart+8])
		if bodyID != rec.id {
			return nil, sieveerr.NewCorrupt(loc, "block body id %d does not match index entry %d", bodyID, rec.id)
		}
		if bodySize != rec.size {
			return nil, sieveerr.NewCorrupt(loc, "block body size %d does not match index entry %d", bodySize, rec.size)
		}
		payloadStart := bodyStart + bodyHeaderSize
		payloadEnd := payloadStart + int(bodySize)
		if payloadEnd > len(data) {
			return nil, sieveerr.NewCorrupt(loc, "block payload truncated (wants %d bytes)", bodySize)
		}
		payload := make([]byte, bodySize)
		copy(payload, data[payloadStart:payloadEnd])

		blk := &Block{ID: BlockID(rec.id), ExtIndex: rec.extIndex, Data: payload}
		b.blocks = append(b.blocks, blk)
		b.blocksByID[blk.ID] = blk
		if blk.ID >= b.nextBlockID {
			b.nextBlockID = blk.ID + 1
		}
		if blk.ID == ExtensionsBlock {
			manifestData = payload
		}
	}

	if manifestData == nil {
		return nil, sieveerr.NewCorrupt(sieveerr.Location{Block: uint32(ExtensionsBlock)}, "missing extensions manifest block")
	}
	if err := b.decodeManifest(manifestData, resolver); err != nil {
		return nil, err
	}
	if _, ok := b.blocksByID[MainBlock]; !ok {
		return nil, sieveerr.NewCorrupt(sieveerr.Location{Block: uint32(MainBlock)}, "missing main program block")
	}

	return b, nil
}

// DirExists is a tiny helper reporting whether the directory that would
// hold path exists (the kind of path-sanity check the teacher's CLI
// performs before compileToBundle writes output).
func DirExists(path string) bool {
	info, err := os.Stat(filepath.Dir(path))
	return err == nil && info.IsDir()
}
