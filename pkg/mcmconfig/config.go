// Package mcmconfig implements C5: parsing and validating the JSON
// connection and client configuration documents described in
// spec.md §4.5, producing the derived mcmtype.Config/ClientConfig
// values C7 and C8 consume. It uses gjson both for permissive field
// presence checks (mirroring nlohmann::json's `contains`) and for
// reading each known field's value; unknown keys are ignored.
package mcmconfig

import (
	"errors"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/open-mcm/mesh-dataplane/internal/mcmerr"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmlayout"
	"github.com/open-mcm/mesh-dataplane/pkg/mcmtype"
)

const (
	defaultBufQueueCapacity = 16
	defaultAPIVersion       = "v1"
	defaultTimeoutUs        = 1_000_000
	defaultMaxConnNum       = 32
	defaultProxyIP          = "127.0.0.1"
	defaultProxyPort        = "8002"
)

// ParseConnectionConfig parses and validates one connection's JSON
// document for the given direction, returning the fully derived
// mcmtype.Config (including calculated payload size and buffer
// partitions) or a *mcmerr.Error classifying the failure as
// CONN_CONFIG_INVAL or CONN_CONFIG_INCOMPAT.
func ParseConnectionConfig(raw []byte, kind mcmtype.ConnectionKind) (mcmtype.Config, error) {
	if !gjson.ValidBytes(raw) {
		return mcmtype.Config{}, invalErr("malformed JSON")
	}
	root := gjson.ParseBytes(raw)

	cfg := mcmtype.Config{
		Name:                  root.Get("name").String(),
		Kind:                  kind,
		BufQueueCapacity:      intOr(root.Get("bufferQueueCapacity"), defaultBufQueueCapacity),
		MaxPayloadSize:        uint32(root.Get("maxPayloadSize").Uint()),
		MaxMetadataSize:       uint32(root.Get("maxMetadataSize").Uint()),
		TxConnCreationDelayMs: intOr(root.Get("connCreationDelayMilliseconds"), 0),
	}

	connType, err := parseConnectionType(root.Get("connection"))
	if err != nil {
		return mcmtype.Config{}, err
	}
	cfg.Type = connType

	opts, err := parseOptions(root.Get("options"))
	if err != nil {
		return mcmtype.Config{}, err
	}
	cfg.Options = opts

	payload, err := parsePayload(root.Get("payload"))
	if err != nil {
		return mcmtype.Config{}, err
	}
	cfg.Payload = payload

	if payload.Kind == mcmtype.BlobPayloadKind || payload.Kind == mcmtype.AncillaryPayloadKind {
		if connType.Kind != mcmtype.MultipointGroupKind {
			return mcmtype.Config{}, incompatErr("blob/ancillary payload requires a multipoint_group connection")
		}
		if cfg.MaxPayloadSize == 0 {
			return mcmtype.Config{}, invalErr("blob/ancillary payload requires a non-zero maxPayloadSize")
		}
	}

	size, err := calculatedPayloadSize(payload, cfg.MaxPayloadSize)
	if err != nil {
		return mcmtype.Config{}, err
	}
	cfg.CalculatedPayloadSize = size
	cfg.BufParts = mcmlayout.Compute(size, uint64(cfg.MaxMetadataSize))

	return cfg, nil
}

func parseConnectionType(conn gjson.Result) (mcmtype.ConnectionType, error) {
	if !conn.Exists() {
		return mcmtype.ConnectionType{}, invalErr("connection config not specified")
	}

	seen := 0
	var ct mcmtype.ConnectionType

	if g := conn.Get("multipointGroup"); g.Exists() {
		seen++
		ct.Kind = mcmtype.MultipointGroupKind
		ct.MultipointGroup = mcmtype.MultipointGroup{URN: g.Get("urn").String()}
	}
	if s := conn.Get("st2110"); s.Exists() {
		seen++
		ct.Kind = mcmtype.ST2110Kind
		params, err := parseST2110(s)
		if err != nil {
			return mcmtype.ConnectionType{}, err
		}
		ct.ST2110 = params
	}
	if r := conn.Get("rdma"); r.Exists() {
		seen++
		ct.Kind = mcmtype.RDMAKind
		ct.RDMA = mcmtype.RDMAParams{
			ConnectionMode: stringOr(r.Get("connectionMode"), "RC"),
			MaxLatencyNS:   r.Get("maxLatencyNanoseconds").Uint(),
		}
	}

	switch seen {
	case 0:
		return mcmtype.ConnectionType{}, invalErr("connection config type not specified")
	case 1:
		return ct, nil
	default:
		return mcmtype.ConnectionType{}, invalErr("connection config specifies more than one connection type")
	}
}

func parseST2110(s gjson.Result) (mcmtype.ST2110Params, error) {
	p := mcmtype.ST2110Params{
		IPAddr:       s.Get("ipAddr").String(),
		Port:         uint16(s.Get("port").Uint()),
		McastSIPAddr: s.Get("multicastSourceIpAddr").String(),
		Pacing:       s.Get("pacing").String(),
		PayloadType:  uint8(intOr(s.Get("payloadType"), 112)),
	}

	switch stringOr(s.Get("transport"), "st2110-20") {
	case "st2110-20":
		p.Transport = mcmtype.ST2110_20
	case "st2110-22":
		p.Transport = mcmtype.ST2110_22
	case "st2110-30":
		p.Transport = mcmtype.ST2110_30
	case "st2110-40":
		p.Transport = mcmtype.ST2110_40
	default:
		return mcmtype.ST2110Params{}, invalErr("st2110: unrecognized transport")
	}

	if p.Transport == mcmtype.ST2110_20 {
		p.TransportPixelFormat = stringOr(s.Get("transportPixelFormat"), "yuv422p10rfc4175")
	}
	return p, nil
}

func parseOptions(o gjson.Result) (mcmtype.Options, error) {
	var opts mcmtype.Options
	if !o.Exists() {
		return opts, nil
	}
	opts.Engine = o.Get("engine").String()

	r := o.Get("rdma")
	if !r.Exists() {
		return opts, nil
	}

	provider := stringOr(r.Get("provider"), "tcp")
	if provider != "tcp" && provider != "verbs" {
		return mcmtype.Options{}, invalErr("rdma: unrecognized provider")
	}
	opts.RDMA.Provider = provider

	n := intOr(r.Get("num_endpoints"), 1)
	if n < 1 || n > 8 {
		return mcmtype.Options{}, invalErr("rdma: number of endpoints out of range (1..8)")
	}
	opts.RDMA.NumEndpoints = n

	return opts, nil
}

func parsePayload(p gjson.Result) (mcmtype.Payload, error) {
	if !p.Exists() {
		return mcmtype.Payload{Kind: mcmtype.BlobPayloadKind}, nil
	}

	seen := 0
	var payload mcmtype.Payload

	if v := p.Get("video"); v.Exists() {
		seen++
		video, err := parseVideo(v)
		if err != nil {
			return mcmtype.Payload{}, err
		}
		payload = mcmtype.Payload{Kind: mcmtype.VideoPayloadKind, Video: video}
	}
	if a := p.Get("audio"); a.Exists() {
		seen++
		audio, err := parseAudio(a)
		if err != nil {
			return mcmtype.Payload{}, err
		}
		payload = mcmtype.Payload{Kind: mcmtype.AudioPayloadKind, Audio: audio}
	}
	if p.Get("blob").Exists() {
		seen++
		payload = mcmtype.Payload{Kind: mcmtype.BlobPayloadKind}
	}
	if p.Get("ancillary").Exists() {
		seen++
		payload = mcmtype.Payload{Kind: mcmtype.AncillaryPayloadKind}
	}

	switch seen {
	case 0:
		return mcmtype.Payload{}, invalErr("payload config type not specified")
	case 1:
		return payload, nil
	default:
		return mcmtype.Payload{}, invalErr("payload config specifies more than one payload type")
	}
}

func parseVideo(v gjson.Result) (mcmtype.VideoPayload, error) {
	pf, ok := mcmtype.ParsePixelFormat(stringOr(v.Get("pixelFormat"), "yuv422p10le"))
	if !ok {
		return mcmtype.VideoPayload{}, invalErr("video: unrecognized pixel format")
	}
	return mcmtype.VideoPayload{
		Width:       uint32(intOr(v.Get("width"), 640)),
		Height:      uint32(intOr(v.Get("height"), 640)),
		FPS:         floatOr(v.Get("fps"), 60.0),
		PixelFormat: pf,
	}, nil
}

func parseAudio(a gjson.Result) (mcmtype.AudioPayload, error) {
	format, ok := mcmtype.ParseAudioFormat(stringOr(a.Get("format"), "pcm_s24be"))
	if !ok {
		return mcmtype.AudioPayload{}, invalErr("audio: unrecognized format")
	}

	sampleRate := intOr(a.Get("sampleRate"), 48000)
	switch sampleRate {
	case 44100, 48000, 96000:
	default:
		return mcmtype.AudioPayload{}, invalErr("audio: unsupported sample rate")
	}

	packetTime := stringOr(a.Get("packetTime"), "1ms")
	if !validAudioPacketTimes[packetTime] {
		return mcmtype.AudioPayload{}, invalErr("audio: unrecognized packet time")
	}

	if !audioCompatible(sampleRate, packetTime) {
		return mcmtype.AudioPayload{}, incompatErr("audio: sample rate incompatible with packet time")
	}

	return mcmtype.AudioPayload{
		Channels:   uint32(intOr(a.Get("channels"), 2)),
		SampleRate: uint32(sampleRate),
		Format:     format,
		PacketTime: packetTime,
	}, nil
}

var validAudioPacketTimes = map[string]bool{
	"1ms": true, "125us": true, "250us": true, "333us": true, "4ms": true,
	"80us": true, "1.09ms": true, "0.14ms": true, "0.09ms": true,
}

// audioPacketTimesBySampleRate mirrors mesh_conn.cc's compatibility
// switch: 48k/96k take the ms-family packet times, 44.1k takes the
// dedicated fractional-ms family.
var audioPacketTimesBySampleRate = map[int]map[string]bool{
	48000: {"1ms": true, "125us": true, "250us": true, "333us": true, "4ms": true, "80us": true},
	96000: {"1ms": true, "125us": true, "250us": true, "333us": true, "4ms": true, "80us": true},
	44100: {"1.09ms": true, "0.14ms": true, "0.09ms": true},
}

func audioCompatible(sampleRate int, packetTime string) bool {
	return audioPacketTimesBySampleRate[sampleRate][packetTime]
}

// audioSampleNums mirrors calc_audio_buf_size's sample-count-per-packet
// table, keyed by [sampleRate][packetTime].
var audioSampleNums = map[int]map[string]uint64{
	48000: {"1ms": 48, "125us": 6, "250us": 12, "333us": 16, "4ms": 192, "80us": 4},
	96000: {"1ms": 96, "125us": 12, "250us": 24, "333us": 32, "4ms": 384, "80us": 8},
	44100: {"1.09ms": 48, "0.14ms": 6, "0.09ms": 4},
}

func calculatedPayloadSize(p mcmtype.Payload, maxPayloadSize uint32) (uint64, error) {
	switch p.Kind {
	case mcmtype.VideoPayloadKind:
		return calcVideoSize(p.Video)
	case mcmtype.AudioPayloadKind:
		n := audioSampleNums[int(p.Audio.SampleRate)][p.Audio.PacketTime]
		return uint64(p.Audio.Format.SampleSize()) * n * uint64(p.Audio.Channels), nil
	case mcmtype.BlobPayloadKind, mcmtype.AncillaryPayloadKind:
		return uint64(maxPayloadSize), nil
	default:
		return 0, invalErr("payload config type not specified")
	}
}

func calcVideoSize(v mcmtype.VideoPayload) (uint64, error) {
	pixels := uint64(v.Width) * uint64(v.Height)
	switch v.PixelFormat {
	case mcmtype.PixelFormatYUV422P10LE:
		return pixels * 4, nil
	case mcmtype.PixelFormatV210:
		if pixels%3 != 0 {
			return 0, invalErr("v210 requires width*height to be a multiple of 3")
		}
		return pixels * 8 / 3, nil
	case mcmtype.PixelFormatYUV422RFC4175BE10:
		if pixels%2 != 0 {
			return 0, invalErr("yuv422rfc4175be10 requires width*height to be a multiple of 2")
		}
		return pixels * 5 / 2, nil
	default:
		return 0, invalErr("video: unrecognized pixel format")
	}
}

// ParseClientConfig parses the client's JSON configuration document
// (spec.md §4.8), falling back to the MCM_MEDIA_PROXY_IP/
// MCM_MEDIA_PROXY_PORT environment variables and then hard defaults
// when apiConnectionString omits Server/Port, exactly as
// mesh_client.cc's ClientConfig::parse_from_json does.
func ParseClientConfig(raw []byte) (mcmtype.ClientConfig, error) {
	if !gjson.ValidBytes(raw) {
		return mcmtype.ClientConfig{}, clientInvalErr("malformed JSON")
	}
	root := gjson.ParseBytes(raw)

	cfg := mcmtype.ClientConfig{
		APIVersion:       stringOr(root.Get("apiVersion"), defaultAPIVersion),
		DefaultTimeoutUs: intOr(root.Get("apiDefaultTimeoutMicroseconds"), defaultTimeoutUs),
		MaxConnNum:       intOr(root.Get("maxMediaConnections"), defaultMaxConnNum),
	}

	params := parseKeyValueString(root.Get("apiConnectionString").String())

	if ip, ok := params["Server"]; ok {
		cfg.ProxyIP = ip
	} else if env := os.Getenv("MCM_MEDIA_PROXY_IP"); env != "" {
		cfg.ProxyIP = env
	} else {
		cfg.ProxyIP = defaultProxyIP
	}

	if port, ok := params["Port"]; ok {
		cfg.ProxyPort = port
	} else if env := os.Getenv("MCM_MEDIA_PROXY_PORT"); env != "" {
		cfg.ProxyPort = env
	} else {
		cfg.ProxyPort = defaultProxyPort
	}

	return cfg, nil
}

// parseKeyValueString parses a ';'-separated "Key=Value;Key=Value"
// connection string, the same ad hoc format mesh_client.cc's
// KeyValueString::parse implements.
func parseKeyValueString(s string) map[string]string {
	out := map[string]string{}
	for _, tok := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(tok, "=")
		if ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}

func intOr(r gjson.Result, def int) int {
	if !r.Exists() {
		return def
	}
	return int(r.Int())
}

func floatOr(r gjson.Result, def float64) float64 {
	if !r.Exists() {
		return def
	}
	return r.Float()
}

func stringOr(r gjson.Result, def string) string {
	if !r.Exists() {
		return def
	}
	return r.String()
}

func invalErr(msg string) error {
	return mcmerr.New(mcmerr.ConnConfigInval, "mcmconfig.ParseConnectionConfig", jsonErr(msg))
}

func incompatErr(msg string) error {
	return mcmerr.New(mcmerr.ConnConfigIncompat, "mcmconfig.ParseConnectionConfig", jsonErr(msg))
}

func clientInvalErr(msg string) error {
	return mcmerr.New(mcmerr.ClientConfigInval, "mcmconfig.ParseClientConfig", jsonErr(msg))
}

func jsonErr(msg string) error {
	return errors.New(msg)
}
