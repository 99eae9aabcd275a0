// Package frame builds and parses the fixed header that prefixes every
// Bitcoin peer-to-peer message, and the compact header of the block relay
// protocol.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/bitcoinrelay/relaynode/dsha"
	"github.com/bitcoinrelay/relaynode/varint"
	"github.com/btcsuite/btcd/wire"
)

const (
	// HeaderSize is the number of bytes in a message header. Network
	// (magic) 4 bytes + command 12 bytes + payload length 4 bytes +
	// checksum 4 bytes.
	HeaderSize = 24

	// CommandSize is the fixed size of the command field. Shorter
	// commands are zero padded on the right.
	CommandSize = 12

	// MaxPayloadSize is the largest payload length the 4 byte length field
	// can describe.
	MaxPayloadSize = math.MaxUint32

	// DefaultNet is the network whose magic is used by Frame.
	DefaultNet = wire.MainNet
)

var (
	// ErrCommandTooLong is returned when a command name does not fit in
	// the command field.
	ErrCommandTooLong = errors.New("command too long")

	// ErrPayloadTooLarge is returned when a payload length can not be
	// represented by the length field.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrBadMagic is returned when a header carries a different network
	// magic than expected.
	ErrBadMagic = errors.New("unexpected network magic")

	// ErrLengthMismatch is returned when a payload's size differs from the
	// length recorded in its header.
	ErrLengthMismatch = errors.New("payload length mismatch")

	// ErrBadChecksum is returned when a payload does not hash to the
	// checksum recorded in its header.
	ErrBadChecksum = errors.New("payload checksum mismatch")
)

// Header is the fixed layout prefix of every message on the wire.
type Header struct {
	// Magic identifies the network the message belongs to.
	Magic wire.BitcoinNet

	// Command is the ASCII message name, NUL padded.
	Command [CommandSize]byte

	// Length is the payload size in bytes.
	Length uint32

	// Checksum is the first four bytes of the payload's double SHA-256.
	Checksum [dsha.ChecksumSize]byte
}

// New builds the header for payload on the given network. The payload is
// only read.
func New(net wire.BitcoinNet, command string,
	payload []byte) (*Header, error) {

	if len(command) > CommandSize {
		return nil, fmt.Errorf("%w: %q is %d bytes, max %d",
			ErrCommandTooLong, command, len(command), CommandSize)
	}

	if err := checkLength(uint64(len(payload))); err != nil {
		return nil, err
	}

	h := &Header{
		Magic:    net,
		Length:   uint32(len(payload)),
		Checksum: dsha.Checksum(payload),
	}
	copy(h.Command[:], command)

	return h, nil
}

// checkLength returns ErrPayloadTooLarge if n bytes can not be described by
// the length field.
func checkLength(n uint64) error {
	if n > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge,
			n, uint64(MaxPayloadSize))
	}

	return nil
}

// Frame builds the header for payload using the main network magic.
func Frame(command string, payload []byte) (*Header, error) {
	return New(DefaultNet, command, payload)
}

// CommandString returns the command name without its padding.
func (h *Header) CommandString() string {
	if i := bytes.IndexByte(h.Command[:], 0); i >= 0 {
		return string(h.Command[:i])
	}

	return string(h.Command[:])
}

// PutBytes serializes the header into the first HeaderSize bytes of dst.
func (h *Header) PutBytes(dst []byte) {
	_ = dst[HeaderSize-1]

	binary.LittleEndian.PutUint32(dst[0:4], uint32(h.Magic))
	copy(dst[4:16], h.Command[:])
	binary.LittleEndian.PutUint32(dst[16:20], h.Length)
	copy(dst[20:24], h.Checksum[:])
}

// Bytes returns the serialized header.
func (h *Header) Bytes() [HeaderSize]byte {
	var b [HeaderSize]byte
	h.PutBytes(b[:])

	return b
}

// Verify checks that payload belongs to this header on the given network.
func (h *Header) Verify(net wire.BitcoinNet, payload []byte) error {
	if h.Magic != net {
		return fmt.Errorf("%w: got %v, want %v", ErrBadMagic,
			h.Magic, net)
	}

	if uint64(len(payload)) != uint64(h.Length) {
		return fmt.Errorf("%w: header says %d bytes, got %d",
			ErrLengthMismatch, h.Length, len(payload))
	}

	if sum := dsha.Checksum(payload); sum != h.Checksum {
		return fmt.Errorf("%w: header has %x, payload hashes to %x",
			ErrBadChecksum, h.Checksum, sum)
	}

	return nil
}

// String returns a short description of the header for logging.
func (h *Header) String() string {
	return fmt.Sprintf("%v %q len=%d checksum=%x", h.Magic,
		h.CommandString(), h.Length, h.Checksum)
}

// Decode parses a header from the front of b. Fewer than HeaderSize bytes
// yields varint.ErrTruncatedInput. No field is validated; use Verify once the
// payload has been read.
func Decode(b []byte) (*Header, error) {
	raw, err := varint.NewCursor(b).Take(HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("unable to read header: %w", err)
	}

	var h Header
	h.Magic = wire.BitcoinNet(binary.LittleEndian.Uint32(raw[0:4]))
	copy(h.Command[:], raw[4:16])
	h.Length = binary.LittleEndian.Uint32(raw[16:20])
	copy(h.Checksum[:], raw[20:24])

	return &h, nil
}

// Prepare fills in the header at the front of buf for the payload that the
// caller has already placed at buf[HeaderSize:].
func Prepare(net wire.BitcoinNet, command string, buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("%w: buffer of %d bytes can not hold a "+
			"header", varint.ErrTruncatedInput, len(buf))
	}

	h, err := New(net, command, buf[HeaderSize:])
	if err != nil {
		return err
	}
	h.PutBytes(buf)

	return nil
}

// Encode returns header || payload for the given network and command.
func Encode(net wire.BitcoinNet, command string,
	payload []byte) ([]byte, error) {

	h, err := New(net, command, payload)
	if err != nil {
		return nil, err
	}

	msg := make([]byte, HeaderSize+len(payload))
	h.PutBytes(msg)
	copy(msg[HeaderSize:], payload)

	return msg, nil
}
