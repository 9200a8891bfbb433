// Package mcmtype holds the data model shared by every dataplane
// package: the enums and structs of spec.md §3, plus the `ancillary`
// payload and ST2110 transport=40 additions documented in
// SPEC_FULL.md §3.
package mcmtype

// ConnectionKind is the direction of a connection. Immutable for the
// lifetime of a connection.
type ConnectionKind int

const (
	Sender ConnectionKind = iota
	Receiver
)

func (k ConnectionKind) String() string {
	if k == Sender {
		return "sender"
	}
	return "receiver"
}

// ConnectionState tracks a Connection's position in its lifecycle.
type ConnectionState int

const (
	StateCreated ConnectionState = iota
	StateActive
	StateShutdown
)

func (s ConnectionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ST2110Transport is the SMPTE ST 2110 stream sub-standard. 40 is an
// addition beyond spec.md's {20,22,30}: original_source's
// mcm_payload_type enumerates PAYLOAD_TYPE_ST40_ANCILLARY as a
// first-class ST 2110 transport, which this module restores as a valid
// st2110 transport value. The supplemented `ancillary` payload kind
// (see PayloadKind below) is still accepted only on multipoint_group
// connections, not on st2110 ones.
type ST2110Transport int

const (
	ST2110_20 ST2110Transport = 20
	ST2110_22 ST2110Transport = 22
	ST2110_30 ST2110Transport = 30
	ST2110_40 ST2110Transport = 40
)

// ConnectionTypeKind discriminates the ConnectionType union.
type ConnectionTypeKind int

const (
	MultipointGroupKind ConnectionTypeKind = iota
	ST2110Kind
	RDMAKind
)

// MultipointGroup names a logical URN-rendezvous transport.
type MultipointGroup struct {
	URN string
}

// ST2110Params parametrizes an ST 2110 transport connection.
type ST2110Params struct {
	IPAddr               string
	Port                 uint16
	McastSIPAddr         string
	Transport            ST2110Transport
	Pacing               string
	PayloadType          uint8
	TransportPixelFormat string // optional; empty means unset
}

// RDMAParams parametrizes an RDMA transport connection.
type RDMAParams struct {
	ConnectionMode string
	MaxLatencyNS   uint64
}

// ConnectionType is exactly one of multipoint_group | st2110 | rdma.
type ConnectionType struct {
	Kind            ConnectionTypeKind
	MultipointGroup MultipointGroup
	ST2110          ST2110Params
	RDMA            RDMAParams
}

// PayloadKind discriminates the Payload union. Ancillary is a
// supplement beyond spec.md's {video, audio, blob} — see SPEC_FULL.md
// §3.
type PayloadKind int

const (
	VideoPayloadKind PayloadKind = iota
	AudioPayloadKind
	BlobPayloadKind
	AncillaryPayloadKind
)

// PixelFormat is the subset of the original mcm_dp.h video_pixel_format
// enum that spec.md §3 assigns a calculated-payload-size formula to.
type PixelFormat int

const (
	PixelFormatYUV422P10LE PixelFormat = iota
	PixelFormatV210
	PixelFormatYUV422RFC4175BE10
)

func ParsePixelFormat(s string) (PixelFormat, bool) {
	switch s {
	case "yuv422p10le":
		return PixelFormatYUV422P10LE, true
	case "v210":
		return PixelFormatV210, true
	case "yuv422rfc4175be10":
		return PixelFormatYUV422RFC4175BE10, true
	default:
		return 0, false
	}
}

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatYUV422P10LE:
		return "yuv422p10le"
	case PixelFormatV210:
		return "v210"
	case PixelFormatYUV422RFC4175BE10:
		return "yuv422rfc4175be10"
	default:
		return "unknown"
	}
}

// AudioFormat is the PCM sample encoding.
type AudioFormat int

const (
	AudioFormatPCMS8 AudioFormat = iota
	AudioFormatPCMS16BE
	AudioFormatPCMS24BE
)

func ParseAudioFormat(s string) (AudioFormat, bool) {
	switch s {
	case "pcm_s8":
		return AudioFormatPCMS8, true
	case "pcm_s16be":
		return AudioFormatPCMS16BE, true
	case "pcm_s24be":
		return AudioFormatPCMS24BE, true
	default:
		return 0, false
	}
}

func (f AudioFormat) String() string {
	switch f {
	case AudioFormatPCMS8:
		return "pcm_s8"
	case AudioFormatPCMS16BE:
		return "pcm_s16be"
	case AudioFormatPCMS24BE:
		return "pcm_s24be"
	default:
		return "unknown"
	}
}

// SampleSize returns the on-wire byte size of one PCM sample.
func (f AudioFormat) SampleSize() int {
	switch f {
	case AudioFormatPCMS8:
		return 1
	case AudioFormatPCMS16BE:
		return 2
	case AudioFormatPCMS24BE:
		return 3
	default:
		return 0
	}
}

// VideoPayload describes a video stream's format.
type VideoPayload struct {
	Width       uint32
	Height      uint32
	FPS         float64
	PixelFormat PixelFormat
}

// AudioPayload describes an audio stream's format.
type AudioPayload struct {
	Channels   uint32
	SampleRate uint32 // 44100 | 48000 | 96000
	Format     AudioFormat
	PacketTime string // opaque enumerated string, e.g. "1ms", "125us", "1.09ms"
}

// BlobPayload is an arbitrary fixed-size payload; MaxPayloadSize must
// be non-zero.
type BlobPayload struct {
	MaxPayloadSize uint32
}

// AncillaryPayload mirrors BlobPayload's shape: the original C system
// defines no frame-size formula for ancillary data either, so it is
// sized the same way blob is (SPEC_FULL.md §3 supplement).
type AncillaryPayload struct {
	MaxPayloadSize uint32
}

// Payload is exactly one of video | audio | blob | ancillary.
type Payload struct {
	Kind      PayloadKind
	Video     VideoPayload
	Audio     AudioPayload
	Blob      BlobPayload
	Ancillary AncillaryPayload
}

// Partition is a contiguous, 8-byte-aligned sub-region of a shared
// buffer.
type Partition struct {
	Offset uint64
	Size   uint64
}

// BufferPartitions is the ordered {sysdata, payload, metadata} triple
// making up one shared buffer's wire layout.
type BufferPartitions struct {
	Sysdata  Partition
	Payload  Partition
	Metadata Partition
}

// TotalSize is the sum of all three partition sizes.
func (p BufferPartitions) TotalSize() uint64 {
	return p.Sysdata.Size + p.Payload.Size + p.Metadata.Size
}

// BufferSysData is the header written into the sysdata partition of
// every buffer. On the wire it is little-endian packed:
// {i64 timestamp_ms, u32 seq, u32 payload_len, u32 metadata_len}.
type BufferSysData struct {
	TimestampMs int64
	Seq         uint32
	PayloadLen  uint32
	MetadataLen uint32
}

// Timeout sentinel values accepted by get_buffer/put_buffer, per
// spec.md §4.7 and §6: most positive values are a millisecond bound,
// these three are reserved.
const (
	TimeoutDefault  = -2 // substitute the client's configured default timeout
	TimeoutInfinite = -1 // block until an event arrives or the context cancels
	TimeoutZero     = 0  // poll once, non-blocking
)

// EngineKind selects the Connection Context variant (spec §4.7).
type EngineKind int

const (
	EngineMemif EngineKind = iota
	EngineZeroCopy
)

func ParseEngineKind(s string) EngineKind {
	if s == "zero-copy" {
		return EngineZeroCopy
	}
	return EngineMemif
}

// RDMAOptions parametrizes connections using options.rdma.
type RDMAOptions struct {
	Provider     string // "tcp" | "verbs"
	NumEndpoints int    // 1..=8
}

// Options carries the options{} block of a connection config.
type Options struct {
	Engine string // "" | "zero-copy"
	RDMA   RDMAOptions
}

// Config is the fully parsed, validated, and derived connection
// configuration produced by C5 (pkg/mcmconfig) and consumed by C7
// (pkg/mcmconn).
type Config struct {
	Name                  string
	Kind                  ConnectionKind
	Type                  ConnectionType
	Payload               Payload
	BufQueueCapacity      int
	MaxPayloadSize        uint32
	MaxMetadataSize       uint32
	TxConnCreationDelayMs int
	Options               Options
	CalculatedPayloadSize uint64
	BufParts              BufferPartitions
}

// ClientConfig is the parsed configuration for C8's ClientContext: the
// proxy endpoint to dial and the connection-count ceiling it enforces.
type ClientConfig struct {
	APIVersion          string
	DefaultTimeoutUs    int
	MaxConnNum          int
	ProxyIP             string
	ProxyPort           string
}
