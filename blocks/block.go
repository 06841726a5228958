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

// Package blocks implements the 64-lane block primitives (four
// lanes.Width groups) that the search drivers call once per block of
// small primes: early-rejection zero tests, the scalar advance step, and
// the plain/twin/safe divisibility testers.
package blocks

import "github.com/gosieve/primesieve/lanes"

// Width is the number of 16-bit lanes processed by one block call.
const Width = 4 * lanes.Width

// Block is a 64-lane block, organized as four lanes.Width (16) groups so
// each group maps onto one SIMD register.
type Block [4]lanes.Vec

// InTier returns the number of 64-lane blocks that make up a prefix of n
// small primes. n is assumed to already be a multiple of Width.
func InTier(n int) int {
	return n / Width
}

// ZeroTest returns true iff every lane across all four groups is zero.
// It is the early-exit criterion used after the divisibility testers:
// OR the four groups pairwise down to one, then compare against zero.
func ZeroTest(v *Block) bool {
	var a, b lanes.Vec
	lanes.Or(&a, &v[0], &v[1])
	lanes.Or(&b, &v[2], &v[3])
	var or lanes.Vec
	lanes.Or(&or, &a, &b)
	return or == lanes.Vec{}
}

// AdvanceBlockScalar advances every lane of v by the scalar k, then folds
// back any lane that crossed 2^15 using the corresponding m2r lane.
func AdvanceBlockScalar(v *Block, k uint16, m2r *Block) {
	for g := range v {
		lanes.AddScalarInplace(&v[g], k)
		lanes.FoldM2RInplace(&v[g], &m2r[g])
	}
}

// AdvanceBlockVector advances every lane of v by the matching lane of k,
// then folds back. This is the building block for the FIPS186-style
// vector-increment mode; the mode itself is gated off (see package
// sieve), so this function exists only to keep the scratch layout ready
// for a future implementation and is exercised solely by tests.
func AdvanceBlockVector(v, k, m2r *Block) {
	for g := range v {
		lanes.AddVectorInplace(&v[g], &k[g])
		lanes.FoldM2RInplace(&v[g], &m2r[g])
	}
}

// NoFactorPlain tests one block of primes against Q. It returns true iff
// no prime in this block divides Q. tmp is scratch; it is left holding
// the last le-mask computed across the four groups.
func NoFactorPlain(tmp *Block, r, inv, limit *Block) bool {
	for g := range tmp {
		lanes.Mul(&tmp[g], &r[g], &inv[g])
		lanes.LeMaskInplace(&tmp[g], &limit[g])
	}
	return ZeroTest(tmp)
}

// NoFactorTwin tests one block of primes against both Q and Q+2. It
// returns true iff no prime in the block divides Q or Q+2. Divisibility
// of Q+2 is tested without reducing r+2 modulo p first: the Lemire/
// Granlund identity p|x <=> (x*inv mod 2^16) <= limit holds for any x in
// [0, 2^16), so substituting x = r+2 gives (r+2)*inv = 2*inv + u
// (since multiplication distributes over the mod-2^16 ring), computed
// here as shl1_add(inv, u). The two divisibility checks collapse into a
// single comparison via min(u, 2*inv+u) <= limit. tmp and tmp2 are the
// caller's scratch vectors; both are left holding candidate-dependent
// intermediates.
func NoFactorTwin(tmp, tmp2 *Block, r, inv, limit *Block) bool {
	for g := range tmp {
		lanes.Mul(&tmp[g], &r[g], &inv[g])           // u = r*inv
		lanes.Shl1Add(&tmp2[g], &inv[g], &tmp[g])    // 2*inv + u
		lanes.Min(&tmp[g], &tmp[g], &tmp2[g])
		lanes.LeMaskInplace(&tmp[g], &limit[g])
	}
	return ZeroTest(tmp)
}

// NoFactorSafe tests one block of primes against both Q and 2Q+1. Here
// x = 2r+1 substituted into the same identity gives 2*(r*inv) + inv =
// 2u + inv, computed as shl1_add(u, inv), the same shape as NoFactorTwin
// with the shl1_add operands swapped, targeting 2Q+1 instead of Q+2.
func NoFactorSafe(tmp, tmp2 *Block, r, inv, limit *Block) bool {
	for g := range tmp {
		lanes.Mul(&tmp[g], &r[g], &inv[g])           // u = r*inv
		lanes.Shl1Add(&tmp2[g], &tmp[g], &inv[g])    // 2u + inv
		lanes.Min(&tmp[g], &tmp[g], &tmp2[g])
		lanes.LeMaskInplace(&tmp[g], &limit[g])
	}
	return ZeroTest(tmp)
}

// FromLanes reshapes a flat slice of lanes.Width-wide groups (as stored
// by package primes) into 64-lane Blocks. len(groups) must be a multiple
// of 4.
func FromLanes(groups []lanes.Vec) []Block {
	n := len(groups) / 4
	out := make([]Block, n)
	for i := 0; i < n; i++ {
		copy(out[i][:], groups[4*i:4*i+4])
	}
	return out
}

// Zero wipes v. Scratch blocks carry products that depend on the
// candidate under test and must be cleared before the caller's stack
// frame is reused or returned.
func Zero(v *Block) {
	for g := range v {
		lanes.Zero(&v[g])
	}
}
