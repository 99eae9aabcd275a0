package frame

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/bitcoinrelay/relaynode/varint"
)

const (
	// RelayMagic opens every relay protocol message.
	RelayMagic uint32 = 0xF2BEEF42

	// RelayHeaderSize is the size of a relay header: magic, message type
	// and length, each a big-endian uint32.
	RelayHeaderSize = 12

	// MaxBlockSize bounds the length field of any relay message.
	MaxBlockSize = 1000000
)

// RelayMsgType identifies the kind of a relay protocol message.
type RelayMsgType uint32

// The relay message types, in wire order.
const (
	RelayVersion RelayMsgType = iota
	RelayBlock
	RelayTransaction
	RelayEndBlock
	RelayMaxVersion
)

// String returns the protocol name of the message type.
func (t RelayMsgType) String() string {
	switch t {
	case RelayVersion:
		return "VERSION"
	case RelayBlock:
		return "BLOCK"
	case RelayTransaction:
		return "TRANSACTION"
	case RelayEndBlock:
		return "END_BLOCK"
	case RelayMaxVersion:
		return "MAX_VERSION"
	default:
		return "<unknown>"
	}
}

// UnknownMessage is returned when a relay header names a message type this
// package does not know.
type UnknownMessage struct {
	msgType RelayMsgType
}

// Error returns a human readable string describing the error.
//
// This is part of the error interface.
func (u *UnknownMessage) Error() string {
	return fmt.Sprintf("unable to parse relay message of unknown type: %d",
		uint32(u.msgType))
}

// RelayHeader is the fixed prefix of a relay protocol message.
type RelayHeader struct {
	Type   RelayMsgType
	Length uint32
}

// NewRelayHeader returns a header for a message of the given type and length.
func NewRelayHeader(msgType RelayMsgType, length int) (*RelayHeader, error) {
	if msgType > RelayMaxVersion {
		return nil, &UnknownMessage{msgType: msgType}
	}

	if length < 0 || length > MaxBlockSize {
		return nil, fmt.Errorf("%w: relay message of %d bytes, max %d",
			ErrPayloadTooLarge, length, MaxBlockSize)
	}

	return &RelayHeader{Type: msgType, Length: uint32(length)}, nil
}

// Bytes returns the serialized relay header.
func (h *RelayHeader) Bytes() [RelayHeaderSize]byte {
	var b [RelayHeaderSize]byte
	binary.BigEndian.PutUint32(b[0:4], RelayMagic)
	binary.BigEndian.PutUint32(b[4:8], uint32(h.Type))
	binary.BigEndian.PutUint32(b[8:12], h.Length)

	return b
}

// DecodeRelayHeader parses and validates a relay header from the front of b.
// Fewer than RelayHeaderSize bytes yields varint.ErrTruncatedInput.
func DecodeRelayHeader(b []byte) (*RelayHeader, error) {
	raw, err := varint.NewCursor(b).Take(RelayHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("unable to read relay header: %w", err)
	}

	if magic := binary.BigEndian.Uint32(raw[0:4]); magic != RelayMagic {
		return nil, fmt.Errorf("%w: got %#08x, want %#08x",
			ErrBadMagic, magic, RelayMagic)
	}

	msgType := RelayMsgType(binary.BigEndian.Uint32(raw[4:8]))
	length := binary.BigEndian.Uint32(raw[8:12])

	if msgType > RelayMaxVersion {
		return nil, &UnknownMessage{msgType: msgType}
	}
	if length > MaxBlockSize {
		return nil, fmt.Errorf("%w: remote sent %v of %d bytes",
			ErrPayloadTooLarge, msgType, length)
	}

	return &RelayHeader{Type: msgType, Length: length}, nil
}

// EncodeRelayVersion returns a complete VERSION (or MAX_VERSION) message
// carrying the given version string.
func EncodeRelayVersion(msgType RelayMsgType, version string) ([]byte, error) {
	if msgType != RelayVersion && msgType != RelayMaxVersion {
		return nil, fmt.Errorf("%v does not carry a version string",
			msgType)
	}

	h, err := NewRelayHeader(msgType, len(version))
	if err != nil {
		return nil, err
	}

	hdr := h.Bytes()
	msg := make([]byte, 0, RelayHeaderSize+len(version))
	msg = append(msg, hdr[:]...)

	return append(msg, version...), nil
}

// SanitizeVersion drops every byte outside printable ASCII so that a remote
// version string is safe to log.
func SanitizeVersion(v string) string {
	return strings.Map(func(r rune) rune {
		if r < ' ' || r > '~' {
			return -1
		}

		return r
	}, v)
}
