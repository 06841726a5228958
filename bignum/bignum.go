// Copyright (C) 2024 The Primesieve Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package bignum is the sieve's big-integer collaborator. Package sieve
// accepts a *big.Int only in InitState, which hands it to this package
// to compute the 16-bit remainders, the mod-6 class and the low 64 bits
// the residue engine works with; the driver loop never touches *big.Int.
package bignum

import (
	"fmt"
	"math/big"

	"github.com/gosieve/primesieve/internal/ints"
)

// FromBigEndian parses Q from its big-endian byte representation, the
// wire format InitState's callers are expected to hold their candidate
// in (e.g. freshly generated key material).
func FromBigEndian(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// FromHex parses Q from a hex string, accepting an optional "0x" prefix.
// It returns an error if the string is not valid hex.
func FromHex(s string) (*big.Int, error) {
	if len(s) >= 2 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	q, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("bignum: %q is not valid hex", s)
	}
	return q, nil
}

// ModU16 returns Q mod p as a 16-bit value in [0, p). p need not be prime.
func ModU16(q *big.Int, p uint16) uint16 {
	var r big.Int
	r.Mod(q, big.NewInt(int64(p)))
	return uint16(r.Uint64())
}

// ModU16Many returns Q mod primes[i] for every i, in order. This is the
// "bignum_mod_u16" contract the sieve's external interface names: a
// single big-integer modulo per small prime, computed once at
// construction time and never again on the hot path.
func ModU16Many(q *big.Int, primes []uint16) []uint16 {
	out := make([]uint16, len(primes))
	for i, p := range primes {
		out[i] = ModU16(q, p)
	}
	return out
}

// Mod6 returns Q mod 6 as a small integer in [0, 6).
func Mod6(q *big.Int) uint8 {
	var r big.Int
	r.Mod(q, big.NewInt(6))
	return uint8(r.Uint64())
}

// LowU64 returns the low 64 bits of Q (Q mod 2^64), the truncating LSB
// mirror the sieve's State keeps; it is not maintained past a wraparound
// for candidates that exceed 2^64, per the sieve's documented Non-goal.
func LowU64(q *big.Int) uint64 {
	var mask big.Int
	mask.Lsh(big.NewInt(1), 64)
	mask.Sub(&mask, big.NewInt(1))
	var low big.Int
	low.And(q, &mask)
	return low.Uint64()
}

// IsOdd reports whether Q is odd.
func IsOdd(q *big.Int) bool {
	return q.Bit(0) == 1
}

// BitLen returns the number of bits in Q's absolute value.
func BitLen(q *big.Int) int {
	return q.BitLen()
}

// RandomOdd generates a cryptographically random odd candidate of
// exactly bits bits (the top bit is forced set so the value has the
// requested width, and the low bit is forced set so it is odd and
// therefore a legal InitState input). bits is clamped to [8, 1<<20]
// (sieve.MaxBits) to keep a misconfigured CLI flag from requesting an
// unreasonable allocation.
func RandomOdd(bits int) (*big.Int, error) {
	bits = ints.Clamp(bits, 8, 1<<20)
	nbytes := (bits + 7) / 8
	buf := make([]byte, nbytes)
	if err := ints.RandomFillSlice(buf); err != nil {
		return nil, fmt.Errorf("bignum: RandomOdd: %w", err)
	}
	q := new(big.Int).SetBytes(buf)
	q.SetBit(q, bits-1, 1)
	q.SetBit(q, 0, 1)
	return q, nil
}
