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

// Package vm_test exercises the scheduler's Run loop end to end against the
// real riscv interpreter, avoiding the import cycle an internal vm package
// test would hit when importing vm/riscv.
package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probeum/ckbvm/vm"
	"github.com/probeum/ckbvm/vm/riscv"
)

func newMach(maxCycles uint64) vm.Machine { return riscv.New(maxCycles) }

func emptyTxView(group vm.ScriptGroup) *vm.TxView {
	return vm.NewTxView([32]byte{}, nil, nil, nil, nil, nil, group)
}

func TestVerifyExitZeroCompletes(t *testing.T) {
	img := riscv.Program{Code: riscv.Asm(riscv.LoadImm(1, 7), riscv.Exit(0))}.Encode()
	tv := emptyTxView(vm.ScriptGroup{Script: img})
	result := vm.Verify(tv, 1_000_000, newMach, img, false, nil)
	require.Equal(t, vm.ResultCompleted, result.Kind)
}

func TestVerifyNonZeroExitFails(t *testing.T) {
	img := riscv.Program{Code: riscv.Asm(riscv.LoadImm(9, 3), riscv.Exit(9))}.Encode()
	tv := emptyTxView(vm.ScriptGroup{Script: img})
	result := vm.Verify(tv, 1_000_000, newMach, img, false, nil)
	require.Equal(t, vm.ResultFailed, result.Kind)
	require.NotNil(t, result.Err)
}

func TestVerifyLoadTxHashSyscall(t *testing.T) {
	hash := [32]byte{1, 2, 3, 4}
	img := riscv.Program{Code: riscv.Asm(
		riscv.LoadImm(10, 0x1000), // a0: dest buffer
		riscv.LoadImm(11, 0x2000), // a1: &capacity
		riscv.LoadImm(9, 64),
		riscv.Store64(11, 9), // capacity = 64
		riscv.LoadImm(12, 0), // a2: offset
		riscv.LoadImm(17, vm.LoadTxHash),
		riscv.Ecall(),
		riscv.Exit(10), // a0 now holds status code (Success == 0)
	)}.Encode()
	tv := vm.NewTxView(hash, nil, nil, nil, nil, nil, vm.ScriptGroup{Script: img})
	result := vm.Verify(tv, 1_000_000, newMach, img, false, nil)
	require.Equal(t, vm.ResultCompleted, result.Kind)
}

func TestVerifyDebugSyscall(t *testing.T) {
	img := riscv.Program{Code: riscv.Asm(
		riscv.LoadImm(10, 0x100),
		riscv.LoadImm(9, 'h'),
		riscv.StoreByte(10, 9),
		riscv.LoadImm(8, 0x101),
		riscv.LoadImm(9, 0),
		riscv.StoreByte(8, 9),
		riscv.LoadImm(10, 0x100),
		riscv.LoadImm(17, vm.Debug),
		riscv.Ecall(),
		riscv.Exit(0),
	)}.Encode()
	tv := emptyTxView(vm.ScriptGroup{Script: img})
	result := vm.Verify(tv, 1_000_000, newMach, img, false, nil)
	require.Equal(t, vm.ResultCompleted, result.Kind)
}

func TestVerifyOutOfCyclesFails(t *testing.T) {
	img := riscv.Program{Code: riscv.Asm(riscv.Nop(), riscv.Nop(), riscv.Nop(), riscv.Exit(0))}.Encode()
	tv := emptyTxView(vm.ScriptGroup{Script: img})
	result := vm.Verify(tv, 1, newMach, img, false, nil)
	require.Equal(t, vm.ResultFailed, result.Kind)
}

func TestVerifyStrictModeRejectsSpawn(t *testing.T) {
	img := riscv.Program{Code: riscv.Asm(
		riscv.LoadImm(10, 0), // a0: index
		riscv.LoadImm(11, 0), // a1: source (transaction/input)
		riscv.LoadImm(12, 0), // a2: place (cell data)
		riscv.LoadImm(13, 0), // a3: bounds
		riscv.LoadImm(14, 0), // a4: spgs addr (reads zeroed memory: argc 0, no argv, no pipes)
		riscv.LoadImm(17, vm.Spawn),
		riscv.Ecall(),
		riscv.Exit(10),
	)}.Encode()
	tv := vm.NewTxView([32]byte{}, nil, [][]byte{{0x01}}, nil, nil, nil, vm.ScriptGroup{Script: img})
	result := vm.Verify(tv, 1_000_000, newMach, img, true, nil)
	require.Equal(t, vm.ResultFailed, result.Kind)
}

func TestVerifySuspendAndResume(t *testing.T) {
	img := riscv.Program{Code: riscv.Asm(
		riscv.LoadImm(1, 1),
		riscv.Ecall(), // A7 is 0: unknown syscall, ignored without a suspend
		riscv.Exit(0),
	)}.Encode()
	tv := emptyTxView(vm.ScriptGroup{Script: img})

	commands := make(chan vm.Command, 1)
	commands <- vm.CmdSuspend
	result := vm.Verify(tv, 1_000_000, newMach, img, false, commands)
	require.Equal(t, vm.ResultSuspended, result.Kind)
	require.NotEmpty(t, result.State)

	resumed, scErr := vm.Resume(result.State, tv, newMach)
	require.Nil(t, scErr)
	final := resumed.Run(nil)
	require.Equal(t, vm.ResultCompleted, final.Kind)
}
