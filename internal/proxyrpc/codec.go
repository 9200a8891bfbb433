// Package proxyrpc implements C6: the gRPC client C8's ClientContext
// uses to register with and drive the media-proxy control plane
// (spec.md §4.6). We cannot run protoc in this environment, so instead
// of fabricating protoc-gen-go/protoc-gen-go-grpc output (which would
// not satisfy the real proto.Message/ProtoReflect machinery) this
// package registers a JSON encoding.Codec with google.golang.org/grpc's
// real pluggable-codec extension point and hand-declares the
// grpc.ServiceDesc the generated code would otherwise produce — the
// same approach other_examples' acasas-go-rpcgen and
// l3dlp-sandbox-goridge take of layering a generic codec under a
// hand-written client/server pair. mediaproxy.proto in this directory
// documents the equivalent wire contract for a future protoc run.
package proxyrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content-subtype this package registers and
// every call in this package selects via grpc.CallContentSubtype.
const codecName = "mcmjson"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements encoding.Codec by delegating to encoding/json.
// grpc-go lowercases content-subtypes internally, so Name must already
// be lowercase.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }
