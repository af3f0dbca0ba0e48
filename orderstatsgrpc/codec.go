package orderstatsgrpc

import (
	"google.golang.org/grpc/encoding"
)

// ContentSubtype is the gRPC content subtype under which messages are JSON encoded.
const ContentSubtype = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return ContentSubtype
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
