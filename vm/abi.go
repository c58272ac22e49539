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

// Syscall numbers, read from register A7 on ecall.
const (
	LoadTxHash        uint64 = 2046
	LoadTransaction   uint64 = 2051
	LoadScriptSyscall uint64 = 2052
	LoadCell          uint64 = 2053
	LoadInput         uint64 = 2054
	LoadHeader        uint64 = 2055
	LoadWitness       uint64 = 2056
	LoadCellData      uint64 = 2057
	Debug             uint64 = 2177
	Exec              uint64 = 2043
	Spawn             uint64 = 2077
	Wait              uint64 = 2079
	ProcessID         uint64 = 2080
	Pipe              uint64 = 2081
	Read              uint64 = 2082
	Write             uint64 = 2083
	InheritedFd       uint64 = 2084
	Close             uint64 = 2085
)

// Status codes written into A0 on syscall return.
const (
	Success         uint8 = 0
	IndexOutOfBound uint8 = 1
	ItemMissing     uint8 = 2
	SliceOutOfBound uint8 = 3
	WrongFormat     uint8 = 4
	InvalidPipe     uint8 = 5
	OtherEndClosed  uint8 = 6
	WaitFailure     uint8 = 7
)

// Protocol parameters (consensus-pinned constants).
const (
	// SpawnExtraCyclesBase is the fixed surcharge charged on every successful spawn.
	SpawnExtraCyclesBase uint64 = 100_000

	// MaxArgvLength bounds the total bytes (including 8 bytes per pointer slot)
	// an exec/spawn argv may occupy.
	MaxArgvLength uint64 = 1 * 1024 * 1024

	// MaxVmsSpawned bounds the number of VMs a single scheduler may create
	// beyond the root VM. Pinned by consensus; see SPEC_FULL.md Open Questions.
	MaxVmsSpawned = 16

	// RiscvMaxMemory is the addressable memory size of a VM instance.
	RiscvMaxMemory uint64 = 4 * 1024 * 1024

	// DefaultStackSize is the size of the stack region carved out of the top
	// of memory when loading a new program image.
	DefaultStackSize uint64 = 64 * 1024
)

// Source identifies whether an index is relative to the whole transaction or
// to the current script group.
type Source uint8

const (
	SourceTransaction Source = iota
	SourceGroup
)

// SourceEntry identifies which collection within a Source an index addresses.
type SourceEntry uint8

const (
	EntryInput SourceEntry = iota
	EntryOutput
	EntryCellDep
	EntryHeaderDep
)

// Place identifies whether Exec/Spawn should resolve an image from cell data
// or from a witness.
type Place uint8

const (
	PlaceCellData Place = iota
	PlaceWitness
)
