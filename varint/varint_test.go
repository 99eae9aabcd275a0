package varint_test

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/bitcoinrelay/relaynode/varint"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type varIntTest struct {
	Name   string
	Value  uint64
	Bytes  []byte
	ExpErr error
}

var encodeVarIntTests = []varIntTest{
	{
		Name:  "zero",
		Value: 0x00,
		Bytes: []byte{0x00},
	},
	{
		Name:  "one byte high",
		Value: 0xfc,
		Bytes: []byte{0xfc},
	},
	{
		Name:  "two byte low",
		Value: 0xfd,
		Bytes: []byte{0xfd, 0xfd, 0x00},
	},
	{
		Name:  "two byte high",
		Value: 0xffff,
		Bytes: []byte{0xfd, 0xff, 0xff},
	},
	{
		Name:  "four byte low",
		Value: 0x10000,
		Bytes: []byte{0xfe, 0x00, 0x00, 0x01, 0x00},
	},
	{
		Name:  "four byte high",
		Value: 0xffffffff,
		Bytes: []byte{0xfe, 0xff, 0xff, 0xff, 0xff},
	},
	{
		Name:  "eight byte low",
		Value: 0x100000000,
		Bytes: []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00},
	},
	{
		Name:  "eight byte high",
		Value: math.MaxUint64,
		Bytes: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	},
}

// TestEncode asserts the canonical encoding along the boundaries of each
// width class.
func TestEncode(t *testing.T) {
	t.Parallel()

	for _, test := range encodeVarIntTests {
		t.Run(test.Name, func(t *testing.T) {
			require.Equal(t, test.Bytes, varint.Encode(test.Value))
			require.Equal(t, len(test.Bytes), varint.Size(test.Value))

			var (
				w   bytes.Buffer
				buf [8]byte
			)
			require.NoError(t, varint.Write(&w, test.Value, &buf))
			require.Equal(t, test.Bytes, w.Bytes())
		})
	}
}

var decodeVarIntTests = []varIntTest{
	{
		Name:  "zero",
		Value: 0x00,
		Bytes: []byte{0x00},
	},
	{
		Name:  "one byte high",
		Value: 0xfc,
		Bytes: []byte{0xfc},
	},
	{
		Name:  "two byte high",
		Value: 0xffff,
		Bytes: []byte{0xfd, 0xff, 0xff},
	},
	{
		Name:  "four byte low",
		Value: 0x10000,
		Bytes: []byte{0xfe, 0x00, 0x00, 0x01, 0x00},
	},
	{
		Name:  "eight byte high",
		Value: math.MaxUint64,
		Bytes: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	},
	{
		Name:  "two byte not canonical",
		Value: 1,
		Bytes: []byte{0xfd, 0x01, 0x00},
	},
	{
		Name:  "four byte not canonical",
		Value: 0xffff,
		Bytes: []byte{0xfe, 0xff, 0xff, 0x00, 0x00},
	},
	{
		Name:  "eight byte not canonical",
		Value: 0xfc,
		Bytes: []byte{0xff, 0xfc, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	},
	{
		Name:   "empty",
		Bytes:  []byte{},
		ExpErr: varint.ErrTruncatedInput,
	},
	{
		Name:   "two byte short read",
		Bytes:  []byte{0xfd, 0x00},
		ExpErr: varint.ErrTruncatedInput,
	},
	{
		Name:   "four byte short read",
		Bytes:  []byte{0xfe, 0xff, 0xff},
		ExpErr: varint.ErrTruncatedInput,
	},
	{
		Name:   "eight byte short read",
		Bytes:  []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		ExpErr: varint.ErrTruncatedInput,
	},
	{
		Name:   "eight byte no read",
		Bytes:  []byte{0xff},
		ExpErr: varint.ErrTruncatedInput,
	},
}

// TestDecode asserts the behavior of Decode and Read under various positive
// and negative cases, including acceptance of non-minimal encodings.
func TestDecode(t *testing.T) {
	t.Parallel()

	for _, test := range decodeVarIntTests {
		t.Run(test.Name, func(t *testing.T) {
			c := varint.NewCursor(test.Bytes)
			v, err := varint.Decode(c)
			if test.ExpErr != nil {
				require.ErrorIs(t, err, test.ExpErr)

				// A failed decode must not consume anything.
				require.Zero(t, c.Pos())
				require.Equal(t, len(test.Bytes), c.Remaining())
			} else {
				require.NoError(t, err)
				require.Equal(t, test.Value, v)
				require.Equal(t, len(test.Bytes), c.Pos())
			}

			var buf [8]byte
			v, err = varint.Read(bytes.NewReader(test.Bytes), &buf)
			if test.ExpErr != nil {
				require.ErrorIs(t, err, test.ExpErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.Value, v)
		})
	}
}

// TestReadEOFKinds checks that stream reads distinguish an empty stream from
// one that ends inside a multi-byte varint.
func TestReadEOFKinds(t *testing.T) {
	t.Parallel()

	var buf [8]byte
	_, err := varint.Read(bytes.NewReader(nil), &buf)
	require.ErrorIs(t, err, io.EOF)
	require.ErrorIs(t, err, varint.ErrTruncatedInput)

	_, err = varint.Read(bytes.NewReader([]byte{0xfe, 0x01}), &buf)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.ErrorIs(t, err, varint.ErrTruncatedInput)
}

// TestDecodeSequence decodes several values back to back from a single
// buffer and checks a truncated tail leaves the cursor after the last
// complete value.
func TestDecodeSequence(t *testing.T) {
	t.Parallel()

	values := []uint64{3, 0xfd, 0x12345678, 0x1122334455667788}

	var b []byte
	for _, v := range values {
		b = varint.Append(b, v)
	}
	b = append(b, 0xfe, 0x01, 0x02)

	c := varint.NewCursor(b)
	for _, want := range values {
		got, err := varint.Decode(c)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	pos := c.Pos()
	_, err := varint.Decode(c)
	require.ErrorIs(t, err, varint.ErrTruncatedInput)
	require.Equal(t, pos, c.Pos())
	require.Equal(t, 3, c.Remaining())
}

// TestIsCanonical checks the minimal width predicate.
func TestIsCanonical(t *testing.T) {
	t.Parallel()

	v, n, err := varint.DecodeBytes([]byte{0xfd, 0x01, 0x00})
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
	require.Equal(t, 3, n)
	require.False(t, varint.IsCanonical(v, n))

	v, n, err = varint.DecodeBytes([]byte{0xfd, 0xfd, 0x00})
	require.NoError(t, err)
	require.True(t, varint.IsCanonical(v, n))
}

// TestRoundTripProperty asserts decode(encode(v)) == v over the whole u64
// domain, that the chosen width is minimal, and that the bytes match btcd's
// wire encoding.
func TestRoundTripProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		// Bias draws toward each width class so the boundaries get
		// exercised as often as the wide range.
		v := rapid.OneOf(
			rapid.Uint64Range(0, 0xfc),
			rapid.Uint64Range(0xfd, 0xffff),
			rapid.Uint64Range(0x10000, 0xffffffff),
			rapid.Uint64Range(0x100000000, math.MaxUint64),
		).Draw(t, "value")

		enc := varint.Encode(v)

		var wantLen int
		switch {
		case v < 0xfd:
			wantLen = 1
		case v <= 0xffff:
			wantLen = 3
		case v <= 0xffffffff:
			wantLen = 5
		default:
			wantLen = 9
		}
		require.Len(t, enc, wantLen)
		require.True(t, varint.IsCanonical(v, len(enc)))

		var w bytes.Buffer
		require.NoError(t, wire.WriteVarInt(&w, 0, v))
		require.Equal(t, w.Bytes(), enc)

		got, n, err := varint.DecodeBytes(enc)
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, len(enc), n)
	})
}
