// Package serde dispatches serialization to caller supplied encoders and
// decoders keyed by a stable type name.
//
// The event store never inspects payloads. Callers register one encoder and
// one decoder per logical type, usually with the generic Register helper:
//
//	set := serde.NewSet()
//	serde.Register(set, serde.StringCodec())
//	serde.Register(set, serde.JSON[OrderPlaced]())
//
// Type names default to the fully qualified Go type name, for example
// "github.com/acme/orders.OrderPlaced" or "*math/big.Int".
package serde

import (
	"reflect"
	"sort"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNoSerializer is returned when a type has no registered encoder.
	ErrNoSerializer = errors.New("no serializer registered for type")
	// ErrNoDeserializer is returned when a type has no registered decoder.
	ErrNoDeserializer = errors.New("no deserializer registered for type")
	// ErrInvalidRecord is returned when a payload cannot be decoded at all.
	ErrInvalidRecord = errors.New("invalid record payload")
)

// EncodeFunc turns a value into bytes
type EncodeFunc func(v any) ([]byte, error)

// DecodeFunc turns bytes back into a value
type DecodeFunc func(data []byte) (any, error)

// Set holds the encoders and decoders of one store configuration
type Set struct {
	encoders map[string]EncodeFunc
	decoders map[string]DecodeFunc
}

// NewSet returns an empty set
func NewSet() *Set {
	return &Set{
		encoders: make(map[string]EncodeFunc),
		decoders: make(map[string]DecodeFunc),
	}
}

// RegisterEncoder registers the encoder for name, replacing any previous one
func (s *Set) RegisterEncoder(name string, fn EncodeFunc) {
	s.encoders[name] = fn
}

// RegisterDecoder registers the decoder for name, replacing any previous one
func (s *Set) RegisterDecoder(name string, fn DecodeFunc) {
	s.decoders[name] = fn
}

// Encoders returns the number of registered encoders
func (s *Set) Encoders() int {
	return len(s.encoders)
}

// Decoders returns the number of registered decoders
func (s *Set) Decoders() int {
	return len(s.decoders)
}

// HasEncoder reports whether name has an encoder
func (s *Set) HasEncoder(name string) bool {
	_, ok := s.encoders[name]
	return ok
}

// HasDecoder reports whether name has a decoder
func (s *Set) HasDecoder(name string) bool {
	_, ok := s.decoders[name]
	return ok
}

// Names returns every type name with an encoder or a decoder, sorted
func (s *Set) Names() []string {
	seen := make(map[string]struct{}, len(s.encoders)+len(s.decoders))
	for name := range s.encoders {
		seen[name] = struct{}{}
	}
	for name := range s.decoders {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unpaired returns names registered on only one side, sorted
func (s *Set) Unpaired() []string {
	var names []string
	for _, name := range s.Names() {
		if s.HasEncoder(name) != s.HasDecoder(name) {
			names = append(names, name)
		}
	}
	return names
}

// Clone returns a copy that is not affected by later registrations
func (s *Set) Clone() *Set {
	c := NewSet()
	for name, fn := range s.encoders {
		c.encoders[name] = fn
	}
	for name, fn := range s.decoders {
		c.decoders[name] = fn
	}
	return c
}

// Serialize encodes v with the encoder registered for name
func (s *Set) Serialize(v any, name string) ([]byte, error) {
	enc, ok := s.encoders[name]
	if !ok {
		return nil, errors.Wrapf(ErrNoSerializer, "%s", name)
	}
	data, err := enc(v)
	if err != nil {
		return nil, errors.Wrapf(err, "serialize %s", name)
	}
	return data, nil
}

// Deserialize decodes data with the decoder registered for name
func (s *Set) Deserialize(name string, data []byte) (any, error) {
	dec, ok := s.decoders[name]
	if !ok {
		return nil, errors.Wrapf(ErrNoDeserializer, "%s", name)
	}
	v, err := dec(data)
	if err != nil {
		return nil, errors.Wrapf(err, "deserialize %s", name)
	}
	return v, nil
}

// TypeNameOf returns the stable name of v's dynamic type
func TypeNameOf(v any) string {
	return typeName(reflect.TypeOf(v))
}

// TypeName returns the stable name of T
func TypeName[T any]() string {
	return typeName(reflect.TypeOf((*T)(nil)).Elem())
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer {
		return "*" + typeName(t.Elem())
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
