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

package blocks

import (
	"testing"

	"github.com/gosieve/primesieve/lanes"
)

// small odd primes used across these tests, kept well under 2^16 so
// brute-force comparison is cheap.
var testPrimes = [64]uint16{
	5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61,
	67, 71, 73, 79, 83, 89, 97, 101, 103, 107, 109, 113, 127, 131, 137, 139,
	149, 151, 157, 163, 167, 173, 179, 181, 191, 193, 197, 199, 211, 223, 227, 229,
	233, 239, 241, 251, 257, 263, 269, 271, 277, 281, 283, 293, 307, 311, 313, 317,
}

func modInverseU16(p uint16) uint16 {
	const mask = 0xFFFF
	a := uint32(p)
	x := a & mask
	for i := 0; i < 4; i++ {
		x = (x * (2 - (a*x)&mask)) & mask
	}
	return uint16(x)
}

func buildBlock() (block, inv, limit Block) {
	for g := 0; g < 4; g++ {
		for lane := 0; lane < lanes.Width; lane++ {
			p := testPrimes[g*lanes.Width+lane]
			block[g][lane] = p
			inv[g][lane] = modInverseU16(p)
			limit[g][lane] = uint16(0xFFFF / p)
		}
	}
	return
}

func TestNoFactorPlain(t *testing.T) {
	primesBlk, inv, limit := buildBlock()
	for _, q := range []uint16{1, 2, 9999} {
		var r Block
		for g := range r {
			for lane := range r[g] {
				r[g][lane] = q % primesBlk[g][lane]
			}
		}
		var tmp Block
		got := NoFactorPlain(&tmp, &r, &inv, &limit)
		want := true
		for g := range primesBlk {
			for lane := range primesBlk[g] {
				if q%primesBlk[g][lane] == 0 {
					want = false
				}
			}
		}
		if got != want {
			t.Fatalf("NoFactorPlain(Q=%d) = %v, want %v", q, got, want)
		}
	}
}

func TestNoFactorTwinMatchesBruteForce(t *testing.T) {
	primesBlk, inv, limit := buildBlock()
	for q := uint16(5); q < 2000; q += 6 {
		var r Block
		for g := range r {
			for lane := range r[g] {
				r[g][lane] = q % primesBlk[g][lane]
			}
		}
		var tmp, tmp2 Block
		got := NoFactorTwin(&tmp, &tmp2, &r, &inv, &limit)
		want := true
		for g := range primesBlk {
			for lane := range primesBlk[g] {
				p := primesBlk[g][lane]
				if q%p == 0 || (q+2)%p == 0 {
					want = false
				}
			}
		}
		if got != want {
			t.Fatalf("NoFactorTwin(Q=%d) = %v, want %v", q, got, want)
		}
	}
}

func TestNoFactorSafeMatchesBruteForce(t *testing.T) {
	primesBlk, inv, limit := buildBlock()
	for q := uint16(5); q < 2000; q += 6 {
		var r Block
		for g := range r {
			for lane := range r[g] {
				r[g][lane] = q % primesBlk[g][lane]
			}
		}
		var tmp, tmp2 Block
		got := NoFactorSafe(&tmp, &tmp2, &r, &inv, &limit)
		want := true
		for g := range primesBlk {
			for lane := range primesBlk[g] {
				p := primesBlk[g][lane]
				twoQPlus1 := (2*uint32(q) + 1) % uint32(p)
				if q%p == 0 || twoQPlus1 == 0 {
					want = false
				}
			}
		}
		if got != want {
			t.Fatalf("NoFactorSafe(Q=%d) = %v, want %v", q, got, want)
		}
	}
}

func TestAdvanceBlockScalarPreservesResidues(t *testing.T) {
	primesBlk, _, _ := buildBlock()
	var r, m2r Block
	for g := range m2r {
		for lane := range m2r[g] {
			p := uint32(primesBlk[g][lane])
			m2r[g][lane] = uint16(0x8000 + 0x8000%p)
		}
	}
	q := uint64(1)
	for g := range r {
		for lane := range r[g] {
			r[g][lane] = uint16(q % uint64(primesBlk[g][lane]))
		}
	}
	// enough +6 steps to push every lane through several fold-backs
	for step := 0; step < 20000; step++ {
		AdvanceBlockScalar(&r, 6, &m2r)
		q += 6
		for g := range r {
			for lane := range r[g] {
				p := uint64(primesBlk[g][lane])
				if uint64(r[g][lane])%p != q%p {
					t.Fatalf("step %d group %d lane %d: r=%d not congruent to q mod %d", step, g, lane, r[g][lane], p)
				}
				if r[g][lane] >= 0x8000 {
					t.Fatalf("step %d group %d lane %d: r=%d at or above 2^15", step, g, lane, r[g][lane])
				}
			}
		}
	}
}

func TestAdvanceBlockScalarLargeSkip(t *testing.T) {
	primesBlk, _, _ := buildBlock()
	var r, m2r Block
	for g := range m2r {
		for lane := range m2r[g] {
			p := uint32(primesBlk[g][lane])
			m2r[g][lane] = uint16(0x8000 + 0x8000%p)
		}
	}
	q := uint64(5)
	for g := range r {
		for lane := range r[g] {
			r[g][lane] = uint16(q % uint64(primesBlk[g][lane]))
		}
	}
	// accumulated fast-skip distances arrive as one large add
	for _, k := range []uint16{6, 16386, 6, 12288, 16386, 6} {
		AdvanceBlockScalar(&r, k, &m2r)
		q += uint64(k)
		for g := range r {
			for lane := range r[g] {
				p := uint64(primesBlk[g][lane])
				if uint64(r[g][lane])%p != q%p {
					t.Fatalf("skip %d group %d lane %d: r=%d not congruent to q mod %d", k, g, lane, r[g][lane], p)
				}
				if r[g][lane] >= 0x8000 {
					t.Fatalf("skip %d group %d lane %d: r=%d at or above 2^15", k, g, lane, r[g][lane])
				}
			}
		}
	}
}

func TestAdvanceBlockVectorPreservesResidues(t *testing.T) {
	primesBlk, _, _ := buildBlock()
	var r, k, m2r Block
	for g := range m2r {
		for lane := range m2r[g] {
			p := uint32(primesBlk[g][lane])
			m2r[g][lane] = uint16(0x8000 + 0x8000%p)
			k[g][lane] = uint16(7 * (g + 1))
		}
	}
	qs := [4]uint64{5, 5, 5, 5}
	for g := range r {
		for lane := range r[g] {
			r[g][lane] = uint16(qs[g] % uint64(primesBlk[g][lane]))
		}
	}
	for step := 0; step < 10000; step++ {
		AdvanceBlockVector(&r, &k, &m2r)
		for g := range r {
			qs[g] += uint64(k[g][0])
			for lane := range r[g] {
				p := uint64(primesBlk[g][lane])
				if uint64(r[g][lane])%p != qs[g]%p {
					t.Fatalf("step %d group %d lane %d: r=%d not congruent to q mod %d", step, g, lane, r[g][lane], p)
				}
				if r[g][lane] >= 0x8000 {
					t.Fatalf("step %d group %d lane %d: r=%d at or above 2^15", step, g, lane, r[g][lane])
				}
			}
		}
	}
}

func TestZeroTest(t *testing.T) {
	var b Block
	if !ZeroTest(&b) {
		t.Fatalf("ZeroTest on zero block: want true")
	}
	b[2][5] = 1
	if ZeroTest(&b) {
		t.Fatalf("ZeroTest on nonzero block: want false")
	}
}

func TestInTier(t *testing.T) {
	if InTier(576) != 9 {
		t.Fatalf("InTier(576) = %d, want 9", InTier(576))
	}
	if InTier(3456) != 54 {
		t.Fatalf("InTier(3456) = %d, want 54", InTier(3456))
	}
}
