package serde

import (
	"math/big"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderPlaced struct {
	ID    string `json:"id"`
	Total int    `json:"total"`
}

func bigIntCodec() Codec[*big.Int] {
	return Codec[*big.Int]{
		Encode: func(v *big.Int) ([]byte, error) { return v.GobEncode() },
		Decode: func(b []byte) (*big.Int, error) {
			v := new(big.Int)
			return v, v.GobDecode(b)
		},
	}
}

func TestTypeNames(t *testing.T) {
	testCases := []struct {
		name string
		got  string
		want string
	}{
		{"builtin", TypeNameOf("x"), "string"},
		{"builtin generic", TypeName[string](), "string"},
		{"pointer", TypeNameOf(big.NewInt(1)), "*math/big.Int"},
		{"pointer generic", TypeName[*big.Int](), "*math/big.Int"},
		{"struct", TypeNameOf(orderPlaced{}), "github.com/itm/eventstore/pkg/serde.orderPlaced"},
		{"slice", TypeNameOf([]byte("x")), "[]uint8"},
		{"nil", TypeNameOf(nil), "<nil>"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	set := NewSet()
	strName := Register(set, StringCodec())
	bigName := Register(set, bigIntCodec())
	jsonName := Register(set, JSON[orderPlaced]())
	bytesName := Register(set, BytesCodec())

	testCases := []struct {
		name  string
		typ   string
		value any
	}{
		{"string", strName, "hello"},
		{"empty string", strName, ""},
		{"big int", bigName, big.NewInt(-123456789)},
		{"json struct", jsonName, orderPlaced{ID: "o-1", Total: 42}},
		{"bytes", bytesName, []byte{0, 1, 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.typ, TypeNameOf(tc.value))

			data, err := set.Serialize(tc.value, tc.typ)
			require.NoError(t, err)

			got, err := set.Deserialize(tc.typ, data)
			require.NoError(t, err)
			assert.Equal(t, tc.value, got)
		})
	}
}

func TestSerialize_NoSerializer(t *testing.T) {
	set := NewSet()
	Register(set, StringCodec())

	_, err := set.Serialize(42, TypeNameOf(42))
	assert.True(t, errors.Is(err, ErrNoSerializer))
	assert.Contains(t, err.Error(), "int")
}

func TestSerialize_WrongDynamicType(t *testing.T) {
	set := NewSet()
	name := Register(set, StringCodec())

	_, err := set.Serialize(42, name)
	assert.Error(t, err)
}

func TestDeserialize_NoDeserializer(t *testing.T) {
	set := NewSet()
	_, err := set.Deserialize("missing", []byte("x"))
	assert.True(t, errors.Is(err, ErrNoDeserializer))
}

func TestDeserialize_DecoderError(t *testing.T) {
	set := NewSet()
	name := Register(set, JSON[orderPlaced]())

	_, err := set.Deserialize(name, []byte("{not json"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), name)
}

func TestCustomName(t *testing.T) {
	set := NewSet()
	c := StringCodec()
	c.Name = "text"
	assert.Equal(t, "text", Register(set, c))
	assert.True(t, set.HasEncoder("text"))
	assert.False(t, set.HasEncoder("string"))
}

func TestUnpairedAndClone(t *testing.T) {
	set := NewSet()
	Register(set, StringCodec())
	set.RegisterEncoder("only-enc", func(any) ([]byte, error) { return nil, nil })
	set.RegisterDecoder("only-dec", func([]byte) (any, error) { return nil, nil })

	assert.Equal(t, 2, set.Encoders())
	assert.Equal(t, 2, set.Decoders())
	assert.Equal(t, []string{"only-dec", "only-enc", "string"}, set.Names())
	assert.Equal(t, []string{"only-dec", "only-enc"}, set.Unpaired())

	clone := set.Clone()
	Register(set, JSON[orderPlaced]())
	assert.Equal(t, 3, set.Encoders())
	assert.Equal(t, 2, clone.Encoders())
}
