//go:build !linux

// Package serde wraps the JSON codec used on the shim wire.
package serde

import "github.com/ugorji/go/codec"

var jsonHandle = newHandle()

func newHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	h.ErrorIfNoField = true
	h.ErrorIfNoArrayExpand = true
	h.TypeInfos = codec.NewTypeInfos([]string{"json"})

	return h
}

// MarshalJson encodes v as JSON.
func MarshalJson[T any](v T) ([]byte, error) {
	out := make([]byte, 0, 256)
	err := codec.NewEncoderBytes(&out, jsonHandle).Encode(v)

	return out, err
}

// UnmarshalJson decodes data into marshalTo.
func UnmarshalJson[T any](data []byte, marshalTo T) error {
	return codec.NewDecoderBytes(data, jsonHandle).Decode(marshalTo)
}
