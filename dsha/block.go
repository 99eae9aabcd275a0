package dsha

import (
	"encoding/binary"
	"math/bits"
)

const (
	// BlockSize is the SHA-256 compression block size in bytes.
	BlockSize = 64

	// lengthSize is the width of the trailing big-endian bit length.
	lengthSize = 8
)

// iv is the SHA-256 initial hash state.
var iv = [8]uint32{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

var k = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5,
	0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3,
	0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc,
	0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7,
	0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13,
	0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3,
	0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5,
	0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208,
	0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

// compress runs the SHA-256 compression function over every full block in p,
// updating h in place. len(p) must be a multiple of BlockSize.
func compress(h *[8]uint32, p []byte) {
	var w [64]uint32

	for len(p) >= BlockSize {
		for i := 0; i < 16; i++ {
			w[i] = binary.BigEndian.Uint32(p[i*4:])
		}
		for i := 16; i < 64; i++ {
			v1 := w[i-2]
			t1 := bits.RotateLeft32(v1, -17) ^
				bits.RotateLeft32(v1, -19) ^ (v1 >> 10)
			v2 := w[i-15]
			t2 := bits.RotateLeft32(v2, -7) ^
				bits.RotateLeft32(v2, -18) ^ (v2 >> 3)
			w[i] = t1 + w[i-7] + t2 + w[i-16]
		}

		a, b, c, d := h[0], h[1], h[2], h[3]
		e, f, g, hh := h[4], h[5], h[6], h[7]

		for i := 0; i < 64; i++ {
			t1 := hh + (bits.RotateLeft32(e, -6) ^
				bits.RotateLeft32(e, -11) ^
				bits.RotateLeft32(e, -25)) +
				((e & f) ^ (^e & g)) + k[i] + w[i]
			t2 := (bits.RotateLeft32(a, -2) ^
				bits.RotateLeft32(a, -13) ^
				bits.RotateLeft32(a, -22)) +
				((a & b) ^ (a & c) ^ (b & c))

			hh = g
			g = f
			f = e
			e = d + t1
			d = c
			c = b
			b = a
			a = t1 + t2
		}

		h[0] += a
		h[1] += b
		h[2] += c
		h[3] += d
		h[4] += e
		h[5] += f
		h[6] += g
		h[7] += hh

		p = p[BlockSize:]
	}
}

// putState writes the hash state to dst, each word most significant byte
// first. dst must hold at least 32 bytes.
func putState(dst []byte, h *[8]uint32) {
	for i, v := range h {
		binary.BigEndian.PutUint32(dst[i*4:], v)
	}
}

// padCount returns the number of padding bytes, the 0x80 marker included,
// that must follow n bytes of message so that the message plus padding plus
// the length field fills a whole number of blocks.
func padCount(n int) int {
	return 1 + (119-n%BlockSize)%BlockSize
}

// PaddedLen returns the size of the buffer the general hashing path builds
// for an n byte input. It never exceeds n+72.
func PaddedLen(n int) int {
	return n + padCount(n) + lengthSize
}
