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

// This file defines the boundary spec.md treats as an external dependency:
// a RISC-V-compatible machine exposing load_elf, run_until_suspend, register
// and memory access and a cycle counter. Nothing in this package depends on
// a specific instruction-set implementation; vm/riscv provides a concrete,
// deterministic one used by the scheduler's own tests and by cmd/ckbvmd.
package vm

// Register indices, matching the RISC-V calling convention used by the
// syscall ABI in spec.md §6 (A0..A7 = x10..x17).
const (
	RegZero = 0
	RegSP   = 2
	RegA0   = 10
	RegA1   = 11
	RegA2   = 12
	RegA3   = 13
	RegA4   = 14
	RegA5   = 15
	RegA7   = 17
)

// StepKind tags the outcome of running a machine until it must suspend.
// This replaces the interpreter's historical "yield-as-error" sentinel
// string with an explicit, inspectable result (SPEC_FULL.md REDESIGN FLAGS).
type StepKind uint8

const (
	StepYield StepKind = iota
	StepExit
	StepFault
)

// StepResult is returned by Machine.Run.
type StepResult struct {
	Kind     StepKind
	ExitCode int8
	Err      error
}

// Memory is the flat addressable byte space of one Machine.
type Memory interface {
	Load64(addr uint64) (uint64, error)
	Store64(addr uint64, v uint64) error
	LoadBytes(addr, length uint64) ([]byte, error)
	StoreBytes(addr uint64, data []byte) error
	// LoadCString reads bytes from addr until (and excluding) a NUL terminator.
	LoadCString(addr uint64) ([]byte, error)
}

// EcallHandler is invoked whenever the machine executes an ecall instruction.
// It returns true if the syscall requires the machine to suspend (a
// scheduler-mediated syscall yielded); the handler itself is responsible for
// writing any return registers for synchronous syscalls.
type EcallHandler func(m Machine) (suspend bool)

// Machine is the assumed-external RISC-V machine contract: register file,
// memory, a monotonic cycle counter, ELF loading and stack initialization,
// and a run loop that executes until exit, fault, or syscall-requested
// suspension.
type Machine interface {
	Register(i int) uint64
	SetRegister(i int, v uint64)
	Memory() Memory

	Cycles() uint64
	SetCycles(c uint64)
	MaxCycles() uint64

	// AddCyclesNoChecking charges n cycles to this machine's own counter
	// without consulting the scheduler-wide budget (the scheduler checks
	// that separately via cycleMeter, per spec.md §4.2: charges apply
	// before the VM observes any result).
	AddCyclesNoChecking(n uint64) error

	// Reset zeroes registers and remapped memory and installs maxCycles as
	// the machine's cycle limit; the cycle counter is left for the caller
	// to restore with SetCycles.
	Reset(maxCycles uint64)

	// LoadELF parses image as a program and installs it as the machine's
	// current code, returning the number of bytes loaded.
	LoadELF(image []byte) (uint64, error)

	// InitializeStack writes argv (NUL-terminated C strings plus an argv
	// pointer array) into the stack region [spBase, spBase+stackSize) and
	// points the stack register at the result, returning bytes written.
	InitializeStack(argv [][]byte, spBase, stackSize uint64) (uint64, error)

	// Run executes instructions until the program exits, faults, or an
	// ecall handler requests suspension.
	Run(ecall EcallHandler) StepResult

	// Snapshot captures enough state (registers, memory, cycle counter,
	// loaded program) to resume execution later from an equivalent Machine
	// built by the same MachineFactory. Restore is its inverse.
	Snapshot() ([]byte, error)
	Restore(data []byte) error
}
