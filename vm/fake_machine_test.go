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

import "errors"

// fakeMemory is a flat byte space big enough for the message-handler tests
// in this package, which never run a real instruction stream.
type fakeMemory struct {
	bytes []byte
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{bytes: make([]byte, 64*1024)}
}

func (m *fakeMemory) Load64(addr uint64) (uint64, error) {
	if addr+8 > uint64(len(m.bytes)) {
		return 0, errors.New("fakeMemory: out of range")
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(m.bytes[addr+uint64(i)]) << (8 * i)
	}
	return v, nil
}

func (m *fakeMemory) Store64(addr uint64, v uint64) error {
	if addr+8 > uint64(len(m.bytes)) {
		return errors.New("fakeMemory: out of range")
	}
	for i := 0; i < 8; i++ {
		m.bytes[addr+uint64(i)] = byte(v >> (8 * i))
	}
	return nil
}

func (m *fakeMemory) LoadBytes(addr, length uint64) ([]byte, error) {
	if addr+length > uint64(len(m.bytes)) {
		return nil, errors.New("fakeMemory: out of range")
	}
	out := make([]byte, length)
	copy(out, m.bytes[addr:addr+length])
	return out, nil
}

func (m *fakeMemory) StoreBytes(addr uint64, data []byte) error {
	if addr+uint64(len(data)) > uint64(len(m.bytes)) {
		return errors.New("fakeMemory: out of range")
	}
	copy(m.bytes[addr:addr+uint64(len(data))], data)
	return nil
}

func (m *fakeMemory) LoadCString(addr uint64) ([]byte, error) {
	for i := addr; i < uint64(len(m.bytes)); i++ {
		if m.bytes[i] == 0 {
			return append([]byte{}, m.bytes[addr:i]...), nil
		}
	}
	return nil, errors.New("fakeMemory: unterminated string")
}

// fakeMachine is a minimal Machine used to drive message handlers directly
// without a real instruction stream; Run is never invoked in these tests.
type fakeMachine struct {
	regs      [18]uint64
	mem       *fakeMemory
	cycles    uint64
	maxCycles uint64
}

func newFakeMachine(maxCycles uint64) Machine {
	return &fakeMachine{mem: newFakeMemory(), maxCycles: maxCycles}
}

func (m *fakeMachine) Register(i int) uint64 {
	if i < 0 || i >= len(m.regs) {
		return 0
	}
	return m.regs[i]
}

func (m *fakeMachine) SetRegister(i int, v uint64) {
	if i < 0 || i >= len(m.regs) {
		return
	}
	m.regs[i] = v
}

func (m *fakeMachine) Memory() Memory { return m.mem }

func (m *fakeMachine) Cycles() uint64     { return m.cycles }
func (m *fakeMachine) SetCycles(c uint64) { m.cycles = c }
func (m *fakeMachine) MaxCycles() uint64  { return m.maxCycles }

func (m *fakeMachine) AddCyclesNoChecking(n uint64) error {
	total := m.cycles + n
	if total < m.cycles || total > m.maxCycles {
		return errors.New("fakeMachine: cycle overflow")
	}
	m.cycles = total
	return nil
}

func (m *fakeMachine) Reset(maxCycles uint64) {
	m.regs = [18]uint64{}
	m.mem = newFakeMemory()
	m.maxCycles = maxCycles
}

func (m *fakeMachine) LoadELF(image []byte) (uint64, error) {
	return uint64(len(image)), nil
}

func (m *fakeMachine) InitializeStack(argv [][]byte, spBase, stackSize uint64) (uint64, error) {
	m.regs[RegSP] = spBase + stackSize
	return 0, nil
}

func (m *fakeMachine) Run(ecall EcallHandler) StepResult {
	return StepResult{Kind: StepExit, ExitCode: 0}
}

// Snapshot/Restore use a trivial fixed-width encoding (not RLP): this fake
// only needs to round-trip within a single test process, never across a
// wire boundary.
func (m *fakeMachine) Snapshot() ([]byte, error) {
	out := make([]byte, 0, 8*len(m.regs)+16+len(m.mem.bytes))
	putU64 := func(v uint64) {
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
		out = append(out, b[:]...)
	}
	for _, r := range m.regs {
		putU64(r)
	}
	putU64(m.cycles)
	putU64(m.maxCycles)
	out = append(out, m.mem.bytes...)
	return out, nil
}

func (m *fakeMachine) Restore(data []byte) error {
	getU64 := func(off int) uint64 {
		var v uint64
		for i := 0; i < 8; i++ {
			v |= uint64(data[off+i]) << (8 * i)
		}
		return v
	}
	off := 0
	for i := range m.regs {
		m.regs[i] = getU64(off)
		off += 8
	}
	m.cycles = getU64(off)
	off += 8
	m.maxCycles = getU64(off)
	off += 8
	m.mem = &fakeMemory{bytes: append([]byte{}, data[off:]...)}
	return nil
}
