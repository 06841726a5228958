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

import "context"

// Drive runs the driver selected by state.Mode() until out is full (or
// count candidates have been written, whichever is smaller) and returns
// the last LSB written, or 0 if out is empty. It is a thin wrapper
// around Next: a full buffer is normal termination, not an error.
// State is left positioned just past the last
// tested candidate, so calling Drive again with a fresh buffer resumes
// the scan with no duplicated or skipped candidates.
func Drive(ctx context.Context, s *State, out []uint64, count int) (uint64, error) {
	if count > len(out) {
		count = len(out)
	}
	var last uint64
	for written := 0; written < count; written++ {
		lsb, err := s.Next(ctx)
		if err != nil {
			return last, err
		}
		out[written] = lsb
		last = lsb
	}
	return last, nil
}
