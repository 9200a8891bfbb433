// Package st2110rtp builds diagnostic RTP/RTCP previews for an ST 2110
// connection's wire parameters. This module does not send or receive
// RTP traffic itself — the ST 2110 media engine is out of scope per
// spec.md §1 — but cmd/meshctl uses these previews to show an operator
// what the proxy's eventual RTP framing would look like for a given
// connection config, and mcmlayout's tests use them to cross-check
// BufferSysData's seq/timestamp fields against RTP's own semantics.
package st2110rtp

import (
	"github.com/pion/rtcp"
	"github.com/pion/rtp"

	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

// PreviewHeader renders the RTP header an ST2110Params connection would
// carry on the wire for the given sequence number and timestamp. seq
// and timestamp are truncated to RTP's 16-bit/32-bit wire widths,
// documenting that BufferSysData's wider seq counter does not map
// 1:1 onto RTP's sequence number space.
func PreviewHeader(p mcmtype.ST2110Params, seq uint32, timestampMs int64) *rtp.Header {
	return &rtp.Header{
		Version:        2,
		PayloadType:    p.PayloadType,
		SequenceNumber: uint16(seq),
		Timestamp:      uint32(timestampMs),
	}
}

// PreviewSenderReport renders an RTCP sender report an ST 2110 source
// would periodically emit for the given running counters, for
// diagnostic display only.
func PreviewSenderReport(ssrc uint32, packetCount, octetCount uint32, ntpTime, rtpTime uint32) *rtcp.SenderReport {
	return &rtcp.SenderReport{
		SSRC:        ssrc,
		NTPTime:     uint64(ntpTime) << 32,
		RTPTime:     rtpTime,
		PacketCount: packetCount,
		OctetCount:  octetCount,
	}
}

// MarshalPreview serializes an RTP header preview the way cmd/meshctl
// prints it: on the wire, not as a Go struct dump.
func MarshalPreview(h *rtp.Header) ([]byte, error) {
	return h.Marshal()
}
