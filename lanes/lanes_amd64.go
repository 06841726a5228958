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

package lanes

// On amd64 the Width-16 loops in this package are expected to autovectorize
// onto a single YMM (AVX2) or ZMM (AVX-512BW) register: sixteen 16-bit lanes
// fit in one 256-bit register exactly, so no manual intrinsic lowering is
// provided here on purpose, see the package doc comment.
