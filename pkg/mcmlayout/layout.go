// Package mcmlayout implements C1: computing the 8-byte-aligned
// {sysdata, payload, metadata} partition triple that is the wire
// format of every shared buffer (spec.md §3, §4.1).
package mcmlayout

import "github.com/open-mcm/mesh-dataplane/pkg/mcmtype"

const align = 8

// alignUp rounds n up to the next multiple of align.
func alignUp(n uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// sysDataWireSize is the little-endian packed size of BufferSysData:
// i64 timestamp_ms (8) + u32 seq (4) + u32 payload_len (4) +
// u32 metadata_len (4) = 20 bytes, aligned up to 24.
const sysDataWireSize = 8 + 4 + 4 + 4

// Compute derives BufferPartitions for a buffer carrying payloadSize
// bytes of payload and up to maxMetadataSize bytes of metadata. Each
// partition size is rounded up to 8 bytes; sysdata.offset is always 0
// so a receiver can locate the header without external metadata.
func Compute(payloadSize, maxMetadataSize uint64) mcmtype.BufferPartitions {
	sysSize := alignUp(sysDataWireSize)
	paySize := alignUp(payloadSize)
	metaSize := alignUp(maxMetadataSize)

	sys := mcmtype.Partition{Offset: 0, Size: sysSize}
	pay := mcmtype.Partition{Offset: sys.Offset + sys.Size, Size: paySize}
	meta := mcmtype.Partition{Offset: pay.Offset + pay.Size, Size: metaSize}

	return mcmtype.BufferPartitions{Sysdata: sys, Payload: pay, Metadata: meta}
}
