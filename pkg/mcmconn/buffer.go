// Package mcmconn implements C7: the Connection Context exposed to
// user code, in its two variants (MemifConnection, ZeroCopyConnection)
// sharing one establish/shutdown/get_buffer/put_buffer contract
// (spec.md §4.7).
package mcmconn

import (
	"encoding/binary"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

// sysdata wire layout: i64 timestamp_ms, u32 seq, u32 payload_len,
// u32 metadata_len — matches mcmtype.BufferSysData and
// mcmlayout.Compute's 20-byte (aligned to 24) sysdata partition.
const (
	offTimestamp  = 0
	offSeq        = 8
	offPayloadLen = 12
	offMetaLen    = 16
)

// Buffer is the handle get_buffer hands back to user code: a window
// into one frame-sized working buffer, split into the sysdata,
// payload, and metadata regions C1 computed.
type Buffer struct {
	raw   []byte
	parts mcmtype.BufferPartitions

	payloadLen  uint32
	metadataLen uint32
}

func newBuffer(raw []byte, parts mcmtype.BufferPartitions) *Buffer {
	return &Buffer{raw: raw, parts: parts}
}

// Payload returns the live payload slice, bounded by the currently set
// payload length.
func (b *Buffer) Payload() []byte {
	start := b.parts.Payload.Offset
	return b.raw[start : start+uint64(b.payloadLen)]
}

// Metadata returns the live metadata slice, bounded by the currently
// set metadata length.
func (b *Buffer) Metadata() []byte {
	start := b.parts.Metadata.Offset
	return b.raw[start : start+uint64(b.metadataLen)]
}

// PayloadLen and MetadataLen report the lengths get_buffer/SetPayloadLen
// last established.
func (b *Buffer) PayloadLen() uint32  { return b.payloadLen }
func (b *Buffer) MetadataLen() uint32 { return b.metadataLen }

// SetPayloadLen bounds-checks n against the payload partition's
// capacity before accepting it, per spec.md §4.7.
func (b *Buffer) SetPayloadLen(n uint32) error {
	if uint64(n) > b.parts.Payload.Size {
		return mcmerr.New(mcmerr.BadBufLen, "mcmconn.SetPayloadLen", nil)
	}
	b.payloadLen = n
	return nil
}

// SetMetadataLen bounds-checks n against the metadata partition's
// capacity before accepting it.
func (b *Buffer) SetMetadataLen(n uint32) error {
	if uint64(n) > b.parts.Metadata.Size {
		return mcmerr.New(mcmerr.BadBufLen, "mcmconn.SetMetadataLen", nil)
	}
	b.metadataLen = n
	return nil
}

// readSysdata decodes the header and clamps payload_len/metadata_len
// to their partition capacities per spec.md §3 ("the endpoint clamps
// payload_len ≤ payload.size and metadata_len ≤ metadata.size before
// exposing them") — a malformed or stale header can never make a
// caller slice past the buffer's own backing array.
func (b *Buffer) readSysdata() mcmtype.BufferSysData {
	h := b.raw[:b.parts.Sysdata.Size]
	sd := mcmtype.BufferSysData{
		TimestampMs: int64(binary.LittleEndian.Uint64(h[offTimestamp:])),
		Seq:         binary.LittleEndian.Uint32(h[offSeq:]),
		PayloadLen:  binary.LittleEndian.Uint32(h[offPayloadLen:]),
		MetadataLen: binary.LittleEndian.Uint32(h[offMetaLen:]),
	}
	if uint64(sd.PayloadLen) > b.parts.Payload.Size {
		sd.PayloadLen = uint32(b.parts.Payload.Size)
	}
	if uint64(sd.MetadataLen) > b.parts.Metadata.Size {
		sd.MetadataLen = uint32(b.parts.Metadata.Size)
	}
	return sd
}

func (b *Buffer) writeSysdata(h mcmtype.BufferSysData) {
	dst := b.raw[:b.parts.Sysdata.Size]
	binary.LittleEndian.PutUint64(dst[offTimestamp:], uint64(h.TimestampMs))
	binary.LittleEndian.PutUint32(dst[offSeq:], h.Seq)
	binary.LittleEndian.PutUint32(dst[offPayloadLen:], h.PayloadLen)
	binary.LittleEndian.PutUint32(dst[offMetaLen:], h.MetadataLen)
}
