// Package dsha implements the double SHA-256 hash used for Bitcoin block and
// transaction identifiers and for message checksums.
package dsha

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// DigestSize is the size of a double SHA-256 digest in bytes.
	DigestSize = chainhash.HashSize

	// BlockHeaderSize is the serialized size of a Bitcoin block header.
	BlockHeaderSize = 80

	// ChecksumSize is the number of leading digest bytes used as a message
	// checksum.
	ChecksumSize = 4
)

// ErrShortBlock is returned when fewer than BlockHeaderSize bytes are
// available at the requested offset.
var ErrShortBlock = errors.New("block too short for header")

// Digest is the 32 byte output of the double hash. Its String method renders
// the bytes in reverse order, the conventional display form for block and
// transaction hashes.
type Digest = chainhash.Hash

// InvariantError is the panic value used when an internal invariant of the
// hashing code is broken. It can not be triggered by any input.
type InvariantError string

// Error returns a human readable description of the broken invariant.
func (e InvariantError) Error() string {
	return "dsha: invariant violated: " + string(e)
}

// ParseDigest parses a digest from its byte-reversed display form.
func ParseDigest(s string) (Digest, error) {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest %q: %w", s, err)
	}

	return *h, nil
}

// Sum returns SHA256(SHA256(input)). Any input length, zero included, is
// valid. Inputs of exactly two digests take the SumPair fast path.
func Sum(input []byte) Digest {
	if len(input) == 2*DigestSize {
		return sumPair(input[:DigestSize], input[DigestSize:])
	}

	return sumGeneral(input)
}

// SumPair returns Sum(a || b) without building an intermediate buffer. It is
// the combining step of a pairwise hash reduction such as a merkle tree.
func SumPair(a, b *Digest) Digest {
	return sumPair(a[:], b[:])
}

// Checksum returns the leading ChecksumSize bytes of Sum(payload).
func Checksum(payload []byte) [ChecksumSize]byte {
	var c [ChecksumSize]byte
	d := Sum(payload)
	copy(c[:], d[:ChecksumSize])

	return c
}

// BlockHash returns the double hash of the 80 byte block header found at
// offset within block.
func BlockHash(block []byte, offset int) (Digest, error) {
	if offset < 0 || len(block)-offset < BlockHeaderSize {
		return Digest{}, fmt.Errorf("%w: %d bytes at offset %d",
			ErrShortBlock, len(block)-offset, offset)
	}

	return Sum(block[offset : offset+BlockHeaderSize]), nil
}

// sumGeneral pads the input per FIPS 180-4 into a fresh buffer, compresses
// it and finishes with the second pass.
func sumGeneral(input []byte) Digest {
	n := len(input)
	pad := padCount(n)

	data := make([]byte, PaddedLen(n))
	copy(data, input)
	data[n] = 0x80
	binary.BigEndian.PutUint64(data[n+pad:], uint64(n)<<3)

	if len(data)%BlockSize != 0 {
		panic(InvariantError(fmt.Sprintf("padded length %d is not "+
			"a multiple of %d", len(data), BlockSize)))
	}

	h := iv
	compress(&h, data)

	return finish(&h)
}

// sumPair hashes two 32 byte halves laid out as a single 64 byte block
// followed by the constant padding block for a 512 bit message.
func sumPair(a, b []byte) Digest {
	var data [2 * BlockSize]byte
	copy(data[:DigestSize], a)
	copy(data[DigestSize:BlockSize], b)
	data[BlockSize] = 0x80
	binary.BigEndian.PutUint64(data[len(data)-lengthSize:], BlockSize<<3)

	h := iv
	compress(&h, data[:])

	return finish(&h)
}

// finish runs the second pass over the 32 byte intermediate state in h. The
// intermediate plus its padding fits in exactly one block.
func finish(h *[8]uint32) Digest {
	var block [BlockSize]byte
	putState(block[:DigestSize], h)
	block[DigestSize] = 0x80
	binary.BigEndian.PutUint64(block[BlockSize-lengthSize:], DigestSize<<3)

	state := iv
	compress(&state, block[:])

	var d Digest
	putState(d[:], &state)

	return d
}
