// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

package vm

// transferredByteCycles is the deterministic cost of moving n bytes across
// the syscall boundary: ceil(n/64).
func transferredByteCycles(n uint64) uint64 {
	return (n + 63) / 64
}

// packBounds combines an offset and a length into the single 64-bit register
// value the syscall ABI passes as "bounds" (offset<<32 | length).
func packBounds(offset, length uint32) uint64 {
	return uint64(offset)<<32 | uint64(length)
}

// unpackBounds splits a bounds register value back into offset and length.
func unpackBounds(bounds uint64) (offset, length uint64) {
	return bounds >> 32, bounds & 0xffffffff
}

// cycleMeter accumulates the total cycles spent by every VM in a scheduler
// and enforces the per-transaction budget. add must be called before the
// VM is allowed to observe the effect of the charged operation, so running
// out of budget is always a deterministic, synchronous failure.
type cycleMeter struct {
	used uint64
	max  uint64
}

func newCycleMeter(max uint64) *cycleMeter {
	return &cycleMeter{max: max}
}

// add charges n cycles against the shared budget. It returns false if doing
// so would exceed max; the caller must treat that as ExceededMaximumCycles
// and abort the whole verification.
func (m *cycleMeter) add(n uint64) bool {
	total := m.used + n
	if total < m.used || total > m.max {
		return false
	}
	m.used = total
	return true
}

func (m *cycleMeter) remaining() uint64 {
	if m.used >= m.max {
		return 0
	}
	return m.max - m.used
}
