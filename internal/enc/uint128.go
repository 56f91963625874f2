// Package enc implements the fixed-width, byte-exact encodings the coin
// indexer's schema relies on: 128-bit unsigned values stored big-endian so
// that byte ordering matches numeric ordering, and the JSON-of-hex-strings
// encoding used for covenant and signature lists.
package enc

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/mel-project/melblkidx/pkg/helpers"
)

// ErrCorrupt is returned when a stored value cannot be decoded into its
// expected shape. Callers treat it as a corruption/programmer error, not a
// transient one.
var ErrCorrupt = errors.New("enc: corrupt encoding")

// Uint128 is an unsigned 128-bit integer, held as two 64-bit halves so that
// encoding to and from the wire's 16-byte big-endian form never needs a
// heap allocation.
type Uint128 struct {
	Hi, Lo uint64
}

// Uint128FromUint64 widens a uint64 into a Uint128.
func Uint128FromUint64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Bytes encodes v as 16 big-endian bytes.
func (v Uint128) Bytes() [16]byte {
	var out [16]byte
	binary.BigEndian.PutUint64(out[:8], v.Hi)
	binary.BigEndian.PutUint64(out[8:], v.Lo)
	return out
}

// Uint128FromBytes decodes 16 big-endian bytes into a Uint128. It returns
// ErrCorrupt if b is not exactly 16 bytes long.
func Uint128FromBytes(b []byte) (Uint128, error) {
	if len(b) != 16 {
		return Uint128{}, ErrCorrupt
	}
	return Uint128{
		Hi: binary.BigEndian.Uint64(b[:8]),
		Lo: binary.BigEndian.Uint64(b[8:]),
	}, nil
}

// Cmp returns -1, 0, or 1 as v is less than, equal to, or greater than w.
// Implemented via byte comparison so that it is provably consistent with
// the on-disk ordering used by range queries over encoded columns.
func (v Uint128) Cmp(w Uint128) int {
	vb, wb := v.Bytes(), w.Bytes()
	return helpers.CompareBytes(vb[:], wb[:])
}

// Add returns v+w, wrapping on 128-bit overflow (the domain never exercises
// this path, but wraparound rather than a panic keeps the type total).
func (v Uint128) Add(w Uint128) Uint128 {
	lo := v.Lo + w.Lo
	hi := v.Hi + w.Hi
	if lo < v.Lo {
		hi++
	}
	return Uint128{Hi: hi, Lo: lo}
}

// BigInt converts v to a *big.Int, for arithmetic that may go negative
// (balance deltas) or need more than 128 bits of headroom.
func (v Uint128) BigInt() *big.Int {
	b := v.Bytes()
	return new(big.Int).SetBytes(b[:])
}

// Uint128FromBigInt truncates a non-negative *big.Int to its low 128 bits.
func Uint128FromBigInt(i *big.Int) Uint128 {
	b := i.Bytes()
	if len(b) > 16 {
		b = b[len(b)-16:]
	}
	var padded [16]byte
	copy(padded[16-len(b):], b)
	v, _ := Uint128FromBytes(padded[:])
	return v
}
