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

// Package ppt is the probable-prime test collaborator: it consumes the
// candidates package sieve rejects nothing further about and subjects
// them to a Fermat pre-check followed by a Miller-Rabin escalation. It
// is deliberately independent of package sieve, which never imports it
// and never calls it; sieve only emits candidates that survived small
// trial division, and it is ppt's job to decide whether one of them is
// actually (probably) prime.
package ppt

import (
	"errors"
	"math/big"

	"github.com/dchest/siphash"
)

// ErrTooSmall is returned for candidates below 3, where Fermat/MR give
// no useful signal.
var ErrTooSmall = errors.New("ppt: candidate too small for probable-prime testing")

var (
	one = big.NewInt(1)
	two = big.NewInt(2)
)

// Witnesses derives a deterministic schedule of rounds Fermat/MR bases
// for candidate q, seeded from seed. Runs against the same (q, seed)
// pair always test the same bases, which is what lets tests and audit
// logs reproduce a decision. seed is typically derived once per search
// session (see Seed) rather than per candidate, so an attacker who can
// predict the session id could in principle predict the witness
// schedule; this trades a small amount of adaptive-attack resistance
// for reproducibility.
func Witnesses(q *big.Int, seed uint64, rounds int) []*big.Int {
	qBytes := q.Bytes()
	out := make([]*big.Int, rounds)
	for i := 0; i < rounds; i++ {
		buf := make([]byte, len(qBytes)+8)
		copy(buf, qBytes)
		buf[len(qBytes)] = byte(i)
		buf[len(qBytes)+1] = byte(i >> 8)
		h := siphash.Hash(seed, uint64(i), buf)
		base := new(big.Int).SetUint64(h)
		base.Mod(base, new(big.Int).Sub(q, big.NewInt(3)))
		base.Add(base, two) // base in [2, q-2]
		out[i] = base
	}
	return out
}

// Seed derives a 64-bit SipHash-2-4 key pair reduction from a 16-byte
// session identifier (a github.com/google/uuid value's raw bytes),
// folding it down to the single uint64 Witnesses wants as its seed.
func Seed(sessionID [16]byte) uint64 {
	k0 := uint64(0)
	k1 := uint64(0)
	for i := 0; i < 8; i++ {
		k0 |= uint64(sessionID[i]) << (8 * i)
		k1 |= uint64(sessionID[i+8]) << (8 * i)
	}
	return siphash.Hash(k0, k1, sessionID[:])
}

// Fermat reports whether base^(q-1) == 1 (mod q), the cheap pre-check
// run before the more expensive Miller-Rabin escalation. A false result
// proves q composite; a true result is not a guarantee.
func Fermat(q, base *big.Int) bool {
	if q.Cmp(two) <= 0 {
		return q.Cmp(two) == 0
	}
	exp := new(big.Int).Sub(q, one)
	var r big.Int
	r.Exp(base, exp, q)
	return r.Cmp(one) == 0
}

// millerRabinRound reports whether base is a Miller-Rabin witness to
// q's compositeness, given q-1 = d * 2^s with d odd.
func millerRabinRound(q, d *big.Int, s int, base *big.Int) bool {
	x := new(big.Int).Exp(base, d, q)
	if x.Cmp(one) == 0 || x.Cmp(new(big.Int).Sub(q, one)) == 0 {
		return true
	}
	for i := 0; i < s-1; i++ {
		x.Mul(x, x)
		x.Mod(x, q)
		if x.Cmp(new(big.Int).Sub(q, one)) == 0 {
			return true
		}
	}
	return false
}

// IsProbablePrime runs a Fermat pre-check and, if it passes, a
// Miller-Rabin escalation against witnesses derived deterministically
// from seed, for rounds iterations. It returns false at the first
// witness that proves q composite, true if every witness passes.
//
// This is a diagnostic-grade primality test built around the candidates
// the sieve package emits; it is not a substitute for a vetted,
// constant-time primality test in a production key-generation pipeline.
func IsProbablePrime(q *big.Int, seed uint64, rounds int) (bool, error) {
	if q.Cmp(big.NewInt(3)) < 0 {
		return false, ErrTooSmall
	}
	if q.Bit(0) == 0 {
		return q.Cmp(two) == 0, nil
	}
	if q.Cmp(big.NewInt(3)) == 0 {
		// witness derivation reduces mod q-3, which is zero here
		return true, nil
	}

	fermatBase := new(big.Int).SetUint64(siphash.Hash(seed, 0, q.Bytes()))
	fermatBase.Mod(fermatBase, new(big.Int).Sub(q, big.NewInt(3)))
	fermatBase.Add(fermatBase, two)
	if !Fermat(q, fermatBase) {
		return false, nil
	}

	d := new(big.Int).Sub(q, one)
	s := 0
	for d.Bit(0) == 0 {
		d.Rsh(d, 1)
		s++
	}

	for _, base := range Witnesses(q, seed, rounds) {
		if !millerRabinRound(q, d, s, base) {
			return false, nil
		}
	}
	return true, nil
}
