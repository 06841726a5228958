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

// Package primes supplies the four parallel small-prime tables the
// residue sieve trial-divides against: primes[i], their modular inverses
// mod 2^16, the Granlund-Montgomery divisibility limits, and the m2r
// fold-back corrections. Tables are process-lifetime immutable once
// built and may be shared freely across concurrently-running searches.
package primes

import (
	"fmt"
	"math"
	"sync"

	"github.com/gosieve/primesieve/internal/ints"
	"github.com/gosieve/primesieve/lanes"
)

// Tier names the number of small primes a search trial-divides against.
type Tier int

const (
	// TierS trial-divides against the first 576 odd primes past 3.
	TierS Tier = 576
	// TierM trial-divides against the first 1856 odd primes past 3.
	TierM Tier = 1856
	// TierL trial-divides against the first 3456 odd primes past 3.
	TierL Tier = 3456
)

// NMax is the length of the compiled-in tables; every Tier is a prefix
// of this length. It is a multiple of 64 (the block width) by construction.
const NMax = int(TierL)

func init() {
	if NMax%lanes.Width != 0 {
		panic("primes: NMax must be a multiple of the lane width")
	}
	if NMax%64 != 0 {
		panic("primes: NMax must be a multiple of the 64-lane block width")
	}
	if !ints.IsAligned64(uint64(NMax*2), 64) {
		panic("primes: table byte length is not 64-byte aligned")
	}
}

// Tables holds the four parallel small-prime arrays, laid out as groups
// of lanes.Width (16) lanes so the block primitives in package blocks can
// consume them four groups (64 lanes) at a time.
type Tables struct {
	// Primes[i] holds lane group i: the (16i)-th..(16i+15)-th odd primes
	// past 3, counting from 0.
	Primes []lanes.Vec
	// Inv[i] holds primes[i]^-1 mod 2^16.
	Inv []lanes.Vec
	// Limit[i] holds floor((2^16-1) / primes[i]).
	Limit []lanes.Vec
	// M2R[i] holds 2^15 + (2^15 mod primes[i]). Adding it to a lane at or
	// above 2^15 always wraps mod 2^16, and the wrap plus the add subtract
	// exactly primes[i]*floor(2^15/primes[i]) from the lane: one masked
	// add reduces the lane below 2^15 without changing its residue.
	M2R []lanes.Vec
}

// N returns the number of primes carried by t.
func (t *Tables) N() int {
	return len(t.Primes) * lanes.Width
}

// Groups returns the lane-group count for tier, i.e. the number of
// lanes.Vec entries that make up its prefix of the tables.
func Groups(tier Tier) int {
	return int(tier) / lanes.Width
}

var (
	globalOnce   sync.Once
	globalTables Tables
	globalErr    error
)

// Build returns the process-wide singleton Tables, generating them on
// first use. Build is idempotent: repeated calls return the same backing
// arrays, which are safe to share across goroutines because they are
// never mutated after construction.
func Build() (*Tables, error) {
	globalOnce.Do(func() {
		globalTables, globalErr = Generate(NMax)
	})
	if globalErr != nil {
		return nil, globalErr
	}
	return &globalTables, nil
}

// Generate sieves the first n odd primes past 3 (so the smallest entry
// is 5, and neither 2 nor 3 is ever emitted) and derives the inv, limit,
// and m2r companion tables from each. n must be a positive multiple of
// lanes.Width.
func Generate(n int) (Tables, error) {
	if n <= 0 || n%lanes.Width != 0 {
		return Tables{}, fmt.Errorf("primes: Generate(%d): n must be a positive multiple of %d", n, lanes.Width)
	}
	raw, err := sieveOddPrimesPastThree(n)
	if err != nil {
		return Tables{}, fmt.Errorf("primes: Generate(%d): %w", n, err)
	}
	if len(raw) != n {
		return Tables{}, fmt.Errorf("primes: Generate(%d): sieve produced %d primes", n, len(raw))
	}

	groups := int(ints.ChunkCount(uint(n), uint(lanes.Width)))
	t := Tables{
		Primes: make([]lanes.Vec, groups),
		Inv:    make([]lanes.Vec, groups),
		Limit:  make([]lanes.Vec, groups),
		M2R:    make([]lanes.Vec, groups),
	}
	for i, p := range raw {
		if p == 2 || p == 3 {
			return Tables{}, fmt.Errorf("primes: Generate: refused to emit excluded prime %d", p)
		}
		g, lane := i/lanes.Width, i%lanes.Width
		t.Primes[g][lane] = p
		t.Inv[g][lane] = modInverseU16(p)
		t.Limit[g][lane] = uint16(0xFFFF / uint32(p))
		t.M2R[g][lane] = uint16(0x8000 + uint32(0x8000)%uint32(p))
	}
	return t, nil
}

// sieveOddPrimesPastThree returns the first n odd primes strictly
// greater than 3, i.e. 5, 7, 11, 13, ... It sieves of Eratosthenes over
// successively larger bounds (doubling from a rough prime-counting
// estimate) until it has collected at least n primes, using
// internal/ints' bitset helpers for the composite marks rather than
// one []bool per candidate.
func sieveOddPrimesPastThree(n int) ([]uint16, error) {
	bound := boundEstimate(n)
	for {
		primes := sieveUpTo(bound)
		if len(primes) >= n+2 { // +2 for the excluded 2 and 3
			out := make([]uint16, 0, n)
			for _, p := range primes {
				if p == 2 || p == 3 {
					continue
				}
				if p >= 0x8000 {
					// The fold-back correction needs p below 2^15 so
					// that m2r = 2^15 + (2^15 mod p) fits in 16 bits.
					return nil, fmt.Errorf("prime %d exceeds the 2^15 lane headroom", p)
				}
				out = append(out, uint16(p))
				if len(out) == n {
					return out, nil
				}
			}
		}
		bound *= 2
	}
}

// boundEstimate returns a starting upper bound for a sieve expected to
// contain at least n primes, using the classical n-th-prime asymptotic
// n*(ln n + ln ln n) with generous headroom; sieveOddPrimesPastThree
// doubles it and retries if it falls short, so accuracy only matters
// for how many retries are needed, not for correctness.
func boundEstimate(n int) int {
	if n < 6 {
		return 64
	}
	lnN := math.Log(float64(n))
	return int(float64(n)*(lnN+math.Log(lnN))) + 128
}

// sieveUpTo returns every prime in [2, bound] via a sieve of
// Eratosthenes backed by a word-oriented composite bitset.
func sieveUpTo(bound int) []uint64 {
	words := ints.ChunkCount(uint(bound+1), uint(64))
	composite := make([]uint64, words)
	for p := 2; p*p <= bound; p++ {
		if ints.TestBit(composite, uint(p)) {
			continue
		}
		for m := p * p; m <= bound; m += p {
			ints.SetBit(composite, uint(m))
		}
	}
	out := make([]uint64, 0, bound/10+8)
	for p := 2; p <= bound; p++ {
		if !ints.TestBit(composite, uint(p)) {
			out = append(out, uint64(p))
		}
	}
	return out
}

// modInverseU16 returns p^-1 mod 2^16 for odd p, via Newton-Raphson
// doubling (Hacker's Delight / Granlund): starting from 3 correct bits
// (p itself, since p*p == 1 mod 8 for odd p), each iteration doubles the
// number of correct low bits until all 16 are covered.
func modInverseU16(p uint16) uint16 {
	const mask = 0xFFFF
	a := uint32(p)
	x := a & mask
	for i := 0; i < 4; i++ {
		x = (x * (2 - (a*x)&mask)) & mask
	}
	return uint16(x)
}
