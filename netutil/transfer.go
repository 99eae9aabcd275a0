package netutil

import (
	"errors"
	"fmt"
	"io"

	"github.com/bitcoinrelay/relaynode/build"
	"github.com/bitcoinrelay/relaynode/frame"
	"github.com/btcsuite/btcd/wire"
)

// DefaultMaxPayload bounds the payload ReadMessage accepts when the caller
// passes no explicit limit. It matches btcd's wire.MaxMessagePayload.
const DefaultMaxPayload = wire.MaxMessagePayload

// ErrShortTransfer is returned when fewer bytes than requested could be read
// or written. The underlying cause is wrapped alongside it.
var ErrShortTransfer = errors.New("short transfer")

// ReadAll reads exactly len(buf) bytes from r. It returns the number of bytes
// read; anything short of len(buf) comes with an error matching
// ErrShortTransfer and the cause (io.EOF when nothing was read at all).
func ReadAll(r io.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	n, err := io.ReadFull(r, buf)
	if err != nil {
		return n, fmt.Errorf("%w: read %d of %d bytes: %w",
			ErrShortTransfer, n, len(buf), err)
	}

	return n, nil
}

// SendAll writes all of buf to w, retrying partial writes. It returns the
// number of bytes written; anything short of len(buf) comes with an error
// matching ErrShortTransfer.
func SendAll(w io.Writer, buf []byte) (int, error) {
	var total int
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n

		switch {
		case err != nil:
			return total, fmt.Errorf("%w: wrote %d of %d bytes: %w",
				ErrShortTransfer, total, len(buf), err)

		case n == 0:
			return total, fmt.Errorf("%w: wrote %d of %d bytes: %w",
				ErrShortTransfer, total, len(buf),
				io.ErrShortWrite)
		}
	}

	return total, nil
}

// WriteMessage frames payload under command for the given network and sends
// the header and payload to w.
func WriteMessage(w io.Writer, net wire.BitcoinNet, command string,
	payload []byte) error {

	msg, err := frame.Encode(net, command, payload)
	if err != nil {
		return err
	}

	log.Tracef("Sending message: %v", build.NewLogClosure(func() string {
		h, _ := frame.Decode(msg)
		return h.String()
	}))

	_, err = SendAll(w, msg)
	return err
}

// ReadMessage reads one framed message from r, rejecting headers for another
// network or with a payload larger than maxPayload before the payload is
// read. A maxPayload of zero selects DefaultMaxPayload. The payload is
// checked against the header's length and checksum.
func ReadMessage(r io.Reader, net wire.BitcoinNet,
	maxPayload uint32) (*frame.Header, []byte, error) {

	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}

	var raw [frame.HeaderSize]byte
	if _, err := ReadAll(r, raw[:]); err != nil {
		return nil, nil, err
	}

	h, err := frame.Decode(raw[:])
	if err != nil {
		return nil, nil, err
	}

	if h.Magic != net {
		return nil, nil, fmt.Errorf("%w: got %v, want %v",
			frame.ErrBadMagic, h.Magic, net)
	}

	if h.Length > maxPayload {
		return nil, nil, fmt.Errorf("%w: %q announces %d bytes, "+
			"max %d", frame.ErrPayloadTooLarge, h.CommandString(),
			h.Length, maxPayload)
	}

	payload := make([]byte, h.Length)
	if _, err := ReadAll(r, payload); err != nil {
		return nil, nil, err
	}

	if err := h.Verify(net, payload); err != nil {
		log.Debugf("Rejecting message %v: %v", h, err)
		log.Tracef("Rejected header: %v", build.SpewLogClosure(h))
		return nil, nil, err
	}

	log.Tracef("Received message: %v", build.SpewLogClosure(h))

	return h, payload, nil
}
