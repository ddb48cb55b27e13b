package serde

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Codec is a typed encoder/decoder pair
type Codec[T any] struct {
	// Name overrides the type name; empty means TypeName[T]().
	Name   string
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

// Register adds both halves of c to s and returns the name used
func Register[T any](s *Set, c Codec[T]) string {
	name := c.Name
	if name == "" {
		name = TypeName[T]()
	}
	s.RegisterEncoder(name, func(v any) ([]byte, error) {
		t, ok := v.(T)
		if !ok {
			return nil, errors.Newf("serde: %s encoder got %T", name, v)
		}
		return c.Encode(t)
	})
	s.RegisterDecoder(name, func(data []byte) (any, error) {
		return c.Decode(data)
	})
	return name
}

// StringCodec stores strings as raw UTF-8
func StringCodec() Codec[string] {
	return Codec[string]{
		Encode: func(s string) ([]byte, error) { return []byte(s), nil },
		Decode: func(b []byte) (string, error) { return string(b), nil },
	}
}

// BytesCodec stores byte slices unchanged
func BytesCodec() Codec[[]byte] {
	return Codec[[]byte]{
		Encode: func(b []byte) ([]byte, error) { return b, nil },
		Decode: func(b []byte) ([]byte, error) { return append([]byte(nil), b...), nil },
	}
}

// JSON stores T as JSON
func JSON[T any]() Codec[T] {
	return Codec[T]{
		Encode: func(v T) ([]byte, error) { return json.Marshal(v) },
		Decode: func(b []byte) (T, error) {
			var v T
			err := json.Unmarshal(b, &v)
			return v, err
		},
	}
}
