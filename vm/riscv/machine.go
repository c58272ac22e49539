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

package riscv

import (
	"encoding/binary"
	"errors"

	"github.com/probeum/ckbvm/rlp"
	"github.com/probeum/ckbvm/vm"
)

// ErrMemoryFault is returned for any out-of-range memory access.
var ErrMemoryFault = errors.New("riscv: memory fault")

// ErrBadOpcode is returned by Run when the fetched byte is not a known
// instruction, surfacing as a fatal VM fault.
var ErrBadOpcode = errors.New("riscv: bad opcode")

const maxCStringLen = 1 << 20

// memory is a flat byte-addressable space. Code is held separately from
// data (a Harvard-style split), since this bytecode has no use for
// self-modifying code and it keeps bounds-checking simple.
type memory struct {
	bytes []byte
}

func newMemory(size uint64) *memory {
	return &memory{bytes: make([]byte, size)}
}

func (m *memory) bounds(addr, length uint64) bool {
	if length == 0 {
		return addr <= uint64(len(m.bytes))
	}
	end := addr + length
	return end >= addr && end <= uint64(len(m.bytes))
}

func (m *memory) Load64(addr uint64) (uint64, error) {
	if !m.bounds(addr, 8) {
		return 0, ErrMemoryFault
	}
	return binary.BigEndian.Uint64(m.bytes[addr : addr+8]), nil
}

func (m *memory) Store64(addr uint64, v uint64) error {
	if !m.bounds(addr, 8) {
		return ErrMemoryFault
	}
	binary.BigEndian.PutUint64(m.bytes[addr:addr+8], v)
	return nil
}

func (m *memory) LoadBytes(addr, length uint64) ([]byte, error) {
	if !m.bounds(addr, length) {
		return nil, ErrMemoryFault
	}
	out := make([]byte, length)
	copy(out, m.bytes[addr:addr+length])
	return out, nil
}

func (m *memory) StoreBytes(addr uint64, data []byte) error {
	if !m.bounds(addr, uint64(len(data))) {
		return ErrMemoryFault
	}
	copy(m.bytes[addr:addr+uint64(len(data))], data)
	return nil
}

func (m *memory) LoadCString(addr uint64) ([]byte, error) {
	if addr > uint64(len(m.bytes)) {
		return nil, ErrMemoryFault
	}
	limit := uint64(len(m.bytes))
	if addr+maxCStringLen < limit {
		limit = addr + maxCStringLen
	}
	for i := addr; i < limit; i++ {
		if m.bytes[i] == 0 {
			return append([]byte{}, m.bytes[addr:i]...), nil
		}
	}
	return nil, ErrMemoryFault
}

// Machine is a deterministic, fixed-width-bytecode implementation of
// vm.Machine. It is the concrete instruction-set library spec.md assumes
// sits behind the scheduler; nothing in package vm imports this package.
type Machine struct {
	regs [32]uint64
	pc   uint32
	code []byte

	mem *memory

	cycles    uint64
	maxCycles uint64
}

// New builds a Machine with a fresh, zeroed address space sized to
// vm.RiscvMaxMemory and no program loaded.
func New(maxCycles uint64) *Machine {
	return &Machine{mem: newMemory(vm.RiscvMaxMemory), maxCycles: maxCycles}
}

func (m *Machine) Register(i int) uint64 {
	if i < 0 || i >= len(m.regs) {
		return 0
	}
	return m.regs[i]
}

func (m *Machine) SetRegister(i int, v uint64) {
	if i <= 0 || i >= len(m.regs) {
		return // x0 is hardwired to zero
	}
	m.regs[i] = v
}

func (m *Machine) Memory() vm.Memory { return m.mem }

func (m *Machine) Cycles() uint64     { return m.cycles }
func (m *Machine) SetCycles(c uint64) { m.cycles = c }
func (m *Machine) MaxCycles() uint64  { return m.maxCycles }

func (m *Machine) AddCyclesNoChecking(n uint64) error {
	total := m.cycles + n
	if total < m.cycles || total > m.maxCycles {
		return errors.New("riscv: cycle counter overflow")
	}
	m.cycles = total
	return nil
}

// Reset zeroes registers, the program counter, and the address space, and
// sets max cycles to the given value. The caller (sysExec) is responsible for restoring
// the cycle counter with SetCycles immediately afterward, matching spec.md
// §4.4's "exec preserves cycles consumed, not the budget" rule.
func (m *Machine) Reset(maxCycles uint64) {
	m.regs = [32]uint64{}
	m.pc = 0
	m.code = nil
	m.mem = newMemory(vm.RiscvMaxMemory)
	m.maxCycles = maxCycles
}

func (m *Machine) LoadELF(image []byte) (uint64, error) {
	prog, err := decodeImage(image)
	if err != nil {
		return 0, err
	}
	m.code = prog.Code
	m.pc = prog.Entry
	return uint64(len(prog.Code)), nil
}

// InitializeStack lays out argv as NUL-terminated strings followed by a
// NULL-terminated pointer array, growing down from spBase+stackSize, and
// leaves A0/A1 holding argc/argv the way a _start trampoline would -- a
// convenience this package controls entirely since it also owns the
// instruction set test programs are written against.
func (m *Machine) InitializeStack(argv [][]byte, spBase, stackSize uint64) (uint64, error) {
	top := spBase + stackSize
	if top > uint64(len(m.mem.bytes)) {
		return 0, ErrMemoryFault
	}
	addrs := make([]uint64, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		n := uint64(len(argv[i])) + 1
		if top < spBase+n {
			return 0, ErrMemoryFault
		}
		top -= n
		if err := m.mem.StoreBytes(top, argv[i]); err != nil {
			return 0, err
		}
		if err := m.mem.StoreBytes(top+uint64(len(argv[i])), []byte{0}); err != nil {
			return 0, err
		}
		addrs[i] = top
	}
	top &^= 7 // 8-byte align

	arrSize := uint64(len(addrs)+1) * 8
	if top < spBase+arrSize {
		return 0, ErrMemoryFault
	}
	top -= arrSize
	argvBase := top
	for i, a := range addrs {
		if err := m.mem.Store64(argvBase+uint64(i)*8, a); err != nil {
			return 0, err
		}
	}
	if err := m.mem.Store64(argvBase+uint64(len(addrs))*8, 0); err != nil {
		return 0, err
	}

	m.regs[vm.RegSP] = argvBase
	m.regs[vm.RegA0] = uint64(len(argv))
	m.regs[vm.RegA1] = argvBase
	return spBase + stackSize - argvBase, nil
}

// Run fetches and executes instructions, charging one cycle each, until the
// program exits, faults, or an ecall requests suspension.
func (m *Machine) Run(ecall vm.EcallHandler) vm.StepResult {
	for {
		if uint64(m.pc) >= uint64(len(m.code)) {
			return vm.StepResult{Kind: vm.StepFault, Err: ErrMemoryFault}
		}
		op := m.code[m.pc]
		n := instrLen(op)
		if n == 0 || uint64(m.pc)+uint64(n) > uint64(len(m.code)) {
			return vm.StepResult{Kind: vm.StepFault, Err: ErrBadOpcode}
		}
		if err := m.AddCyclesNoChecking(1); err != nil {
			return vm.StepResult{Kind: vm.StepFault, Err: err}
		}
		instr := m.code[m.pc : m.pc+uint32(n)]
		next := m.pc + uint32(n)

		switch op {
		case OpNop:
		case OpLoadImm:
			m.SetRegister(int(instr[1]), binary.BigEndian.Uint64(instr[2:10]))
		case OpMov:
			m.SetRegister(int(instr[1]), m.Register(int(instr[2])))
		case OpAdd:
			m.SetRegister(int(instr[1]), m.Register(int(instr[2]))+m.Register(int(instr[3])))
		case OpSub:
			m.SetRegister(int(instr[1]), m.Register(int(instr[2]))-m.Register(int(instr[3])))
		case OpAddImm:
			m.SetRegister(int(instr[1]), m.Register(int(instr[2]))+binary.BigEndian.Uint64(instr[3:11]))
		case OpLoad64:
			v, err := m.mem.Load64(m.Register(int(instr[2])))
			if err != nil {
				return vm.StepResult{Kind: vm.StepFault, Err: err}
			}
			m.SetRegister(int(instr[1]), v)
		case OpStore64:
			if err := m.mem.Store64(m.Register(int(instr[1])), m.Register(int(instr[2]))); err != nil {
				return vm.StepResult{Kind: vm.StepFault, Err: err}
			}
		case OpLoadByte:
			b, err := m.mem.LoadBytes(m.Register(int(instr[2])), 1)
			if err != nil {
				return vm.StepResult{Kind: vm.StepFault, Err: err}
			}
			m.SetRegister(int(instr[1]), uint64(b[0]))
		case OpStoreByte:
			if err := m.mem.StoreBytes(m.Register(int(instr[1])), []byte{byte(m.Register(int(instr[2])))}); err != nil {
				return vm.StepResult{Kind: vm.StepFault, Err: err}
			}
		case OpJmp:
			next = binary.BigEndian.Uint32(instr[1:5])
		case OpJz:
			if m.Register(int(instr[1])) == 0 {
				next = binary.BigEndian.Uint32(instr[2:6])
			}
		case OpJnz:
			if m.Register(int(instr[1])) != 0 {
				next = binary.BigEndian.Uint32(instr[2:6])
			}
		case OpEcall:
			m.pc = next
			if ecall(m) {
				return vm.StepResult{Kind: vm.StepYield}
			}
			continue
		case OpExit:
			return vm.StepResult{Kind: vm.StepExit, ExitCode: int8(m.Register(int(instr[1])))}
		case OpHalt:
			return vm.StepResult{Kind: vm.StepFault, Err: errors.New("riscv: halt")}
		default:
			return vm.StepResult{Kind: vm.StepFault, Err: ErrBadOpcode}
		}
		m.pc = next
	}
}

// Snapshot captures every register, the program counter, the cycle
// counters, the loaded code, and the full data address space.
func (m *Machine) Snapshot() ([]byte, error) {
	regItems := make([][]byte, len(m.regs))
	for i, r := range m.regs {
		regItems[i] = rlp.EncodeUint64(r)
	}
	return rlp.EncodeList(
		rlp.EncodeList(regItems...),
		rlp.EncodeUint64(uint64(m.pc)),
		rlp.EncodeUint64(m.cycles),
		rlp.EncodeUint64(m.maxCycles),
		rlp.EncodeBytes(m.code),
		rlp.EncodeBytes(m.mem.bytes),
	), nil
}

// Restore replaces this Machine's entire state with a previously captured
// Snapshot. The receiver's own address-space allocation is discarded.
func (m *Machine) Restore(data []byte) error {
	item, rest, err := rlp.Decode(data)
	if err != nil || len(rest) != 0 || len(item.List) != 6 {
		return errors.New("riscv: malformed snapshot")
	}
	f := item.List
	if len(f[0].List) != len(m.regs) {
		return errors.New("riscv: malformed register file")
	}
	for i, r := range f[0].List {
		v, err := r.Uint64()
		if err != nil {
			return err
		}
		m.regs[i] = v
	}
	pc, err := f[1].Uint64()
	if err != nil {
		return err
	}
	cycles, err := f[2].Uint64()
	if err != nil {
		return err
	}
	maxCycles, err := f[3].Uint64()
	if err != nil {
		return err
	}
	m.pc = uint32(pc)
	m.cycles = cycles
	m.maxCycles = maxCycles
	m.code = append([]byte{}, f[4].Bytes...)
	m.mem = &memory{bytes: append([]byte{}, f[5].Bytes...)}
	return nil
}
