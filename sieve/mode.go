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

import "github.com/gosieve/primesieve/primes"

// Mode packs a prime-type bit and a table-tier bit into one word, as
// described by the sieve's external interface: prime_type in the low
// byte, table_tier in the next byte up.
type Mode uint32

const (
	// Plain tests candidate Q alone (6k+1 / 6k+5 form).
	Plain Mode = 0x0001
	// Twin additionally tests Q+2.
	Twin Mode = 0x0002
	// Safe additionally tests 2Q+1.
	Safe Mode = 0x0004
	// Fips186 names the vector-increment (multi-limb stride) mode. The
	// bit is accepted by NewMode but InitState rejects it with
	// ErrUnsupportedMode; its semantics are reserved until a real
	// implementation lands.
	Fips186 Mode = 0x0008

	primeTypeMask Mode = 0x00FF

	// TierS selects the first 576 small primes.
	TierS Mode = 0x0100
	// TierM selects the first 1856 small primes.
	TierM Mode = 0x0200
	// TierL selects the first 3456 small primes.
	TierL Mode = 0x0300

	tierMask Mode = 0xFF00
)

// NewMode combines a prime-type bit and a tier bit into a single Mode.
func NewMode(primeType, tier Mode) Mode {
	return primeType | tier
}

func (m Mode) primeType() Mode {
	return m & primeTypeMask
}

func (m Mode) tierBits() Mode {
	return m & tierMask
}

// tierSize returns the number of small primes named by m's tier bits, and
// whether those bits name a supported tier at all.
func (m Mode) tierSize() (int, bool) {
	switch m.tierBits() {
	case TierS:
		return int(primes.TierS), true
	case TierM:
		return int(primes.TierM), true
	case TierL:
		return int(primes.TierL), true
	default:
		return 0, false
	}
}

// valid reports whether m names exactly one known prime type and exactly
// one known tier. Multiple prime-type bits, a tier byte other than
// TierS, TierM or TierL, or bits outside those two bytes are all invalid.
func (m Mode) valid() bool {
	if m&^(primeTypeMask|tierMask) != 0 {
		return false
	}
	switch m.primeType() {
	case Plain, Twin, Safe, Fips186:
	default:
		return false
	}
	_, ok := m.tierSize()
	return ok
}
