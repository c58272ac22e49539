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

// sysExec implements EXEC (spec.md §4.4): in-place program replacement.
// Every step is observable through A0 or a fatal fault, and exec never
// returns to the calling program on success. It is synchronous (no
// scheduler mediation): the current VM's own machine is reset and reloaded
// in place.
func sysExec(c *vmContext) bool {
	index := uint32(c.machine.Register(RegA0))
	sourceRaw := c.machine.Register(RegA1)
	placeRaw := c.machine.Register(RegA2)
	bounds := c.machine.Register(RegA3)
	argc := c.machine.Register(RegA4)
	argvAddr := c.machine.Register(RegA5)

	source, entry, ok := decodeSource(sourceRaw)
	place := Place(placeRaw)
	if !ok || place > PlaceWitness {
		c.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		return false
	}
	id, ok := dataPieceFromABI(source, entry, place, index)
	if !ok {
		c.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		return false
	}
	offset, length := unpackBounds(bounds)

	image, _, err := c.tv.Load(id, offset, length)
	if err == ErrDataIndexOutOfBound {
		c.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		return false
	}
	if err == ErrDataSliceOutOfBound {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}

	argv, ok := readArgv(c.machine, argvAddr, argc)
	if !ok {
		c.fault = errVMInternal("argv too long")
		return true
	}

	cycles := c.machine.Cycles()
	maxCycles := c.machine.MaxCycles()
	c.machine.Reset(maxCycles)
	c.machine.SetCycles(cycles)

	size, err := c.machine.LoadELF(image)
	if err != nil {
		c.machine.SetRegister(RegA0, uint64(WrongFormat))
		return false
	}
	if !c.charge(transferredByteCycles(size)) {
		return true
	}

	stackBase := RiscvMaxMemory - DefaultStackSize
	written, err := c.machine.InitializeStack(argv, stackBase, DefaultStackSize)
	if err != nil {
		c.machine.SetRegister(RegA0, uint64(WrongFormat))
		return false
	}
	if !c.charge(transferredByteCycles(written)) {
		return true
	}
	return false
}
