package cache

import (
	"github.com/bytedance/sonic"
)

// Codec turns cached values into bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type sonicCodec struct{}

// JSON is the default codec, backed by sonic.
var JSON Codec = sonicCodec{}

func (sonicCodec) Marshal(v any) ([]byte, error) {
	return sonic.ConfigStd.Marshal(v)
}

func (sonicCodec) Unmarshal(data []byte, v any) error {
	return sonic.ConfigStd.Unmarshal(data, v)
}
