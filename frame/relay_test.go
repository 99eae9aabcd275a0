package frame_test

import (
	"testing"

	"github.com/bitcoinrelay/relaynode/frame"
	"github.com/bitcoinrelay/relaynode/varint"
	"github.com/stretchr/testify/require"
)

// TestRelayHeaderRoundTrip encodes and decodes a header of every type.
func TestRelayHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	types := []frame.RelayMsgType{
		frame.RelayVersion, frame.RelayBlock, frame.RelayTransaction,
		frame.RelayEndBlock, frame.RelayMaxVersion,
	}
	for _, msgType := range types {
		t.Run(msgType.String(), func(t *testing.T) {
			h, err := frame.NewRelayHeader(msgType, 1234)
			require.NoError(t, err)

			raw := h.Bytes()
			require.Equal(t, []byte{0xf2, 0xbe, 0xef, 0x42}, raw[0:4])

			decoded, err := frame.DecodeRelayHeader(raw[:])
			require.NoError(t, err)
			require.Equal(t, h, decoded)
		})
	}
}

// TestDecodeRelayHeaderErrors covers every rejection path.
func TestDecodeRelayHeaderErrors(t *testing.T) {
	t.Parallel()

	_, err := frame.DecodeRelayHeader([]byte{0xf2, 0xbe, 0xef})
	require.ErrorIs(t, err, varint.ErrTruncatedInput)

	badMagic := []byte{0xf9, 0xbe, 0xb4, 0xd9, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err = frame.DecodeRelayHeader(badMagic)
	require.ErrorIs(t, err, frame.ErrBadMagic)

	unknown := []byte{0xf2, 0xbe, 0xef, 0x42, 0, 0, 0, 5, 0, 0, 0, 0}
	_, err = frame.DecodeRelayHeader(unknown)
	var unknownErr *frame.UnknownMessage
	require.ErrorAs(t, err, &unknownErr)

	// 1,000,001 bytes is one past the block size bound.
	tooBig := []byte{0xf2, 0xbe, 0xef, 0x42, 0, 0, 0, 1, 0x00, 0x0f, 0x42, 0x41}
	_, err = frame.DecodeRelayHeader(tooBig)
	require.ErrorIs(t, err, frame.ErrPayloadTooLarge)

	_, err = frame.NewRelayHeader(frame.RelayBlock, frame.MaxBlockSize+1)
	require.ErrorIs(t, err, frame.ErrPayloadTooLarge)

	_, err = frame.NewRelayHeader(frame.RelayMsgType(9), 0)
	require.ErrorAs(t, err, &unknownErr)
}

// TestEncodeRelayVersion builds a VERSION message and checks its layout.
func TestEncodeRelayVersion(t *testing.T) {
	t.Parallel()

	msg, err := frame.EncodeRelayVersion(frame.RelayVersion, "prickly porcupine")
	require.NoError(t, err)
	require.Len(t, msg, frame.RelayHeaderSize+17)

	h, err := frame.DecodeRelayHeader(msg)
	require.NoError(t, err)
	require.Equal(t, frame.RelayVersion, h.Type)
	require.EqualValues(t, 17, h.Length)
	require.Equal(t, "prickly porcupine", string(msg[frame.RelayHeaderSize:]))

	_, err = frame.EncodeRelayVersion(frame.RelayBlock, "x")
	require.Error(t, err)
}

// TestSanitizeVersion strips control and non-ASCII bytes.
func TestSanitizeVersion(t *testing.T) {
	t.Parallel()

	require.Equal(t, "efficient eagle",
		frame.SanitizeVersion("efficient\x00 eagle\n"))
	require.Equal(t, "ab", frame.SanitizeVersion("a\xffb\x7f"))
	require.Equal(t, "<unknown>", frame.RelayMsgType(42).String())
}
