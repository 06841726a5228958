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

import "errors"

// ErrInvalidInput is returned by InitState when Q is even, zero, negative,
// or wider than MaxBits.
var ErrInvalidInput = errors.New("sieve: invalid input")

// ErrUnsupportedMode is returned when a mode names a disabled tier or
// prime-type combination, including the reserved Fips186 prime type.
var ErrUnsupportedMode = errors.New("sieve: unsupported mode")

// ErrInternalInvariant indicates a defensive invariant failed: a
// programming mistake, never expected from well-formed input.
var ErrInternalInvariant = errors.New("sieve: internal invariant violated")

// Errorf is a global diagnostic hook that State uses to report
// InternalInvariant failures before returning ErrInternalInvariant. It is
// nil (silent) by default; callers may set it during init() to route
// diagnostics into their own logger.
var Errorf func(f string, args ...any)

func errorf(f string, args ...any) {
	if Errorf != nil {
		Errorf(f, args...)
	}
}
