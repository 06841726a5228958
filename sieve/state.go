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

// Package sieve is the SIMD-friendly trial-division residue engine: it
// advances a table of remainders in lock-step as a candidate Q is
// incremented, and rejects candidates divisible by any of a fixed list
// of small primes. The costly probable-prime test that would follow a
// surviving candidate lives outside this package; see package ppt.
package sieve

import (
	"fmt"
	"sync"

	"github.com/gosieve/primesieve/bignum"
	"github.com/gosieve/primesieve/blocks"
	"github.com/gosieve/primesieve/lanes"
	"github.com/gosieve/primesieve/primes"

	bigmath "math/big"
)

// MaxBits bounds the size of Q that InitState will accept. It is well
// past any real key size; it exists only to keep a hostile or corrupt
// input from causing an unbounded-size big.Int allocation.
const MaxBits = 1 << 20

// maxSkipAccumulation (2^14) bounds the skip the twin/safe drivers'
// inner fast-skip loop may accumulate while it advances (and folds) the
// first block alone. The accumulated skip is then added to the remaining
// blocks in one step, so the bound keeps that single add, from lanes
// below 2^15, inside the uint16 range a fold can bring back under 2^15.
const maxSkipAccumulation = 1 << 14

// sixState names which half of the 6k+1 / 6k+5 residue cycle the Plain
// driver is currently positioned at.
type sixState uint8

const (
	at6k1 sixState = iota
	at6k5
)

// tierView is the shared, read-only per-tier reshaping of the process
// singleton Tables into 64-lane Blocks. It is built once per tier and
// reused by every State that selects that tier: inv/limit/m2r never
// change after construction, so States only need their own copy of the
// mutable residue vector r (and, for diagnostics, primes).
type tierView struct {
	primes []blocks.Block
	inv    []blocks.Block
	limit  []blocks.Block
	m2r    []blocks.Block
}

var (
	tierViewOnce  sync.Once
	tierViews     map[int]*tierView
	tierViewBuild error
)

func getTierView(n int) (*tierView, error) {
	tierViewOnce.Do(func() {
		tb, err := primes.Build()
		if err != nil {
			tierViewBuild = err
			return
		}
		tierViews = make(map[int]*tierView)
		for _, tier := range []int{int(primes.TierS), int(primes.TierM), int(primes.TierL)} {
			groups := primes.Groups(primes.Tier(tier))
			tierViews[tier] = &tierView{
				primes: blocks.FromLanes(tb.Primes[:groups]),
				inv:    blocks.FromLanes(tb.Inv[:groups]),
				limit:  blocks.FromLanes(tb.Limit[:groups]),
				m2r:    blocks.FromLanes(tb.M2R[:groups]),
			}
		}
	})
	if tierViewBuild != nil {
		return nil, tierViewBuild
	}
	tv, ok := tierViews[n]
	if !ok {
		return nil, fmt.Errorf("sieve: no tier view for %d primes", n)
	}
	return tv, nil
}

// State is the mutable residue engine: the current remainder against
// every small prime in the active tier, an LSB mirror of the candidate,
// and the bookkeeping a resumable search needs. It is owned by the
// caller and passed by pointer to Next/Drive; it performs no allocation
// once constructed.
type State struct {
	mode Mode
	tv   *tierView

	r []blocks.Block // mutable: r[i] congruent to Q mod primes[i], < 2^15 post fold-back

	lsb    uint64
	offset uint64
	mod6   uint8
	six    sixState

	// qHex is a diagnostic mirror of Q's hex text; the authoritative
	// big integer lives with the caller, not here.
	qHex string

	scratch AdvanceBlock
}

// AdvanceBlock is the scratch pair of 64-lane vectors used by the
// divisibility testers. Callers never construct one directly;
// State owns a single instance and Reset clears it between searches
// because it carries products of candidate-dependent residues.
type AdvanceBlock struct {
	Tmp, Tmp2 blocks.Block
}

// Reset zeroes b. Call it when abandoning a search whose scratch state
// should not be left lying around.
func (b *AdvanceBlock) Reset() {
	blocks.Zero(&b.Tmp)
	blocks.Zero(&b.Tmp2)
}

// plainAdvanceTable maps mod6 to the advance distance that lands the
// Plain driver on its first valid 6k+1/6k+5 state. mod6=5 is itself a
// valid start and is not skipped.
var plainAdvanceTable = [6]uint16{1, 0, 3, 2, 1, 0}

// InitState constructs a residue State for candidate q under mode. It
// computes Q mod primes[i] for every small prime in the active tier via
// the bignum collaborator, validates q is odd, and positions the state
// at the first candidate legal for the selected prime type.
func InitState(q *bigmath.Int, mode Mode) (*State, error) {
	if !mode.valid() {
		return nil, ErrUnsupportedMode
	}
	if mode.primeType() == Fips186 {
		return nil, ErrUnsupportedMode
	}
	if q == nil || q.Sign() <= 0 {
		return nil, ErrInvalidInput
	}
	if !bignum.IsOdd(q) {
		return nil, ErrInvalidInput
	}
	if bignum.BitLen(q) > MaxBits {
		return nil, ErrInvalidInput
	}

	n, _ := mode.tierSize()
	tv, err := getTierView(n)
	if err != nil {
		return nil, fmt.Errorf("sieve: building tier view: %w", err)
	}

	flatPrimes := make([]uint16, 0, n)
	for _, blk := range tv.primes {
		for _, g := range blk {
			flatPrimes = append(flatPrimes, g[:]...)
		}
	}
	residues := bignum.ModU16Many(q, flatPrimes)

	r := make([]blocks.Block, len(tv.primes))
	idx := 0
	for i := range r {
		for g := 0; g < 4; g++ {
			for lane := 0; lane < lanes.Width; lane++ {
				r[i][g][lane] = residues[idx]
				idx++
			}
		}
	}

	s := &State{
		mode: mode,
		tv:   tv,
		r:    r,
		lsb:  bignum.LowU64(q),
		mod6: bignum.Mod6(q),
		qHex: fmt.Sprintf("%x", q),
	}

	switch mode.primeType() {
	case Plain:
		delta := plainAdvanceTable[s.mod6]
		s.advanceScalar(delta)
		if s.mod6 == 1 {
			s.six = at6k1
		} else {
			s.six = at6k5
		}
	case Twin, Safe:
		delta := uint16((11 - int(s.mod6)) % 6)
		s.advanceScalar(delta)
	}

	return s, nil
}

// Mode returns the state's mode word.
func (s *State) Mode() Mode { return s.mode }

// LSB returns the low 64 bits of the candidate the state is currently
// positioned at (not yet tested).
func (s *State) LSB() uint64 { return s.lsb }

// Offset returns the cumulative scalar advance since construction.
func (s *State) Offset() uint64 { return s.offset }

// Mod6 returns Q mod 6 for the current candidate.
func (s *State) Mod6() uint8 { return s.mod6 }

// QHex returns the diagnostic hex mirror captured at construction time.
func (s *State) QHex() string { return s.qHex }

// advanceScalar advances every residue block (and the lsb/offset/mod6
// bookkeeping) by k.
func (s *State) advanceScalar(k uint16) {
	s.advanceScalarFrom(k, 0)
}

// advanceScalarFrom advances residue blocks [startBlock:] and the
// lsb/offset/mod6 bookkeeping by k, leaving blocks before startBlock
// untouched. It is used by the twin/safe drivers, whose fast-skip loop
// advances block 0 directly while it searches, then applies the same
// skip to the remaining blocks in one step.
func (s *State) advanceScalarFrom(k uint16, startBlock int) {
	for i := startBlock; i < len(s.r); i++ {
		blocks.AdvanceBlockScalar(&s.r[i], k, &s.tv.m2r[i])
	}
	s.offset += uint64(k)
	s.lsb += uint64(k)
	s.mod6 = uint8((int(s.mod6) + int(k)) % 6)
}

// CheckInvariants verifies that every residue lane sits below the 2^15
// fold-back boundary, the operating range the advance operators maintain
// (lanes are congruent to Q modulo their prime but not tightly reduced;
// the divisibility testers only need the congruence and the headroom).
// It is a diagnostic the caller may run in tests; the hot driver loop
// never calls it.
func (s *State) CheckInvariants() error {
	for i := range s.r {
		for g := 0; g < 4; g++ {
			for lane := 0; lane < lanes.Width; lane++ {
				r := s.r[i][g][lane]
				if r >= 0x8000 {
					p := s.tv.primes[i][g][lane]
					errorf("sieve: invariant violated: r=%d >= 2^15 at block %d group %d lane %d (p=%d)", r, i, g, lane, p)
					return ErrInternalInvariant
				}
			}
		}
	}
	return nil
}
