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

package sieve

import (
	"context"

	"github.com/gosieve/primesieve/blocks"
)

// Next advances the state to the next surviving candidate and returns
// its LSB. Next is the primary driver: it returns one survivor per
// call, leaving the state
// positioned just past the candidate it returned so a resumed call with
// the same state continues the scan with no duplicated or skipped
// candidates. Drive is a thin wrapper that loops Next into a caller
// buffer.
func (s *State) Next(ctx context.Context) (uint64, error) {
	// the scratch blocks hold products derived from candidate residues;
	// wipe them on every exit path
	defer s.scratch.Reset()
	switch s.mode.primeType() {
	case Plain:
		return s.nextPlain(ctx)
	case Twin:
		return s.nextTwin(ctx)
	case Safe:
		return s.nextSafe(ctx)
	default:
		return 0, ErrUnsupportedMode
	}
}

// nextPlain implements the Plain driver: at AT_6K1, test, advance by 4,
// move to AT_6K5; at AT_6K5, test, advance by 2, move to AT_6K1.
func (s *State) nextPlain(ctx context.Context) (uint64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		ok := noFactorAllPlain(s.r, s.tv.inv, s.tv.limit, &s.scratch)
		lsb := s.lsb
		if s.six == at6k1 {
			s.advanceScalar(4)
			s.six = at6k5
		} else {
			s.advanceScalar(2)
			s.six = at6k1
		}
		if ok {
			return lsb, nil
		}
	}
}

// nextTwin implements the Twin driver: a fast
// inner skip loop advances only block 0 by 6 while it alone finds a
// factor, accumulating a skip counter capped at maxSkipAccumulation; the
// skip is then applied to the remaining blocks and the lsb/offset/mod6
// bookkeeping in one step. If the skip counter overflowed, this
// iteration is abandoned without testing the remaining blocks. Otherwise
// the remaining blocks are tested and, on success, the current lsb is
// returned; either way the state then advances by 6 to the next 6k+5
// candidate.
func (s *State) nextTwin(ctx context.Context) (uint64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		skip, overflowed := s.fastSkip(func(blk *blocks.Block, inv, limit *blocks.Block) bool {
			return blocks.NoFactorTwin(&s.scratch.Tmp, &s.scratch.Tmp2, blk, inv, limit)
		})
		if skip > 0 {
			s.advanceScalarFrom(skip, 1)
		}
		if overflowed {
			continue
		}
		survive := noFactorRemaining(s.r, s.tv.inv, s.tv.limit, func(blk, inv, limit *blocks.Block) bool {
			return blocks.NoFactorTwin(&s.scratch.Tmp, &s.scratch.Tmp2, blk, inv, limit)
		})
		lsb := s.lsb
		s.advanceScalar(6)
		if survive {
			return lsb, nil
		}
	}
}

// nextSafe implements the Safe driver. Its structure is identical to
// nextTwin but every test is NoFactorSafe instead of NoFactorTwin, so it
// additionally rejects candidates where 2Q+1 has a small factor.
func (s *State) nextSafe(ctx context.Context) (uint64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		skip, overflowed := s.fastSkip(func(blk *blocks.Block, inv, limit *blocks.Block) bool {
			return blocks.NoFactorSafe(&s.scratch.Tmp, &s.scratch.Tmp2, blk, inv, limit)
		})
		if skip > 0 {
			s.advanceScalarFrom(skip, 1)
		}
		if overflowed {
			continue
		}
		survive := noFactorRemaining(s.r, s.tv.inv, s.tv.limit, func(blk, inv, limit *blocks.Block) bool {
			return blocks.NoFactorSafe(&s.scratch.Tmp, &s.scratch.Tmp2, blk, inv, limit)
		})
		lsb := s.lsb
		s.advanceScalar(6)
		if survive {
			return lsb, nil
		}
	}
}

// fastSkip repeatedly tests block 0 with test and, while it reports a
// factor, advances block 0 alone by 6 and accumulates skip, stopping
// either when test reports no factor or when skip reaches
// maxSkipAccumulation.
func (s *State) fastSkip(test func(blk, inv, limit *blocks.Block) bool) (skip uint16, overflowed bool) {
	for {
		if test(&s.r[0], &s.tv.inv[0], &s.tv.limit[0]) {
			return skip, false
		}
		blocks.AdvanceBlockScalar(&s.r[0], 6, &s.tv.m2r[0])
		skip += 6
		if skip >= maxSkipAccumulation {
			return skip, true
		}
	}
}

// noFactorAllPlain tests every block with NoFactorPlain, short-circuiting
// at the first block that contains a factor. Block 0 is tested first
// because it alone rejects the large majority of composite candidates.
func noFactorAllPlain(r, inv, limit []blocks.Block, scratch *AdvanceBlock) bool {
	for i := range r {
		if !blocks.NoFactorPlain(&scratch.Tmp, &r[i], &inv[i], &limit[i]) {
			return false
		}
	}
	return true
}

// noFactorRemaining tests blocks [1:] with test, short-circuiting on the
// first block that contains a factor. Block 0 has already been tested
// (and advanced past, if needed) by fastSkip before this is called.
func noFactorRemaining(r, inv, limit []blocks.Block, test func(blk, inv, limit *blocks.Block) bool) bool {
	for i := 1; i < len(r); i++ {
		if !test(&r[i], &inv[i], &limit[i]) {
			return false
		}
	}
	return true
}
