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

// VmId uniquely identifies a VM within a scheduler for its entire lifetime.
// Ids are assigned monotonically and never reused. 0 is reserved for the
// root VM.
type VmId uint64

// ROOTVmId is the id of the VM running the script group's top-level program.
const ROOTVmId VmId = 0

// WaitReason names why a VM is parked in WaitFor state.
type WaitReason struct {
	kind  waitKind
	pipe  PipeId
	child VmId
}

type waitKind uint8

const (
	waitNone waitKind = iota
	waitForRead
	waitForWrite
	waitForChild
	waitForSpawn
)

func waitForReadReason(p PipeId) WaitReason  { return WaitReason{kind: waitForRead, pipe: p} }
func waitForWriteReason(p PipeId) WaitReason { return WaitReason{kind: waitForWrite, pipe: p} }
func waitForChildReason(c VmId) WaitReason   { return WaitReason{kind: waitForChild, child: c} }
func waitForSpawnReason() WaitReason         { return WaitReason{kind: waitForSpawn} }

// VmStateTag is the coarse state a vmEntry can be in.
type VmStateTag uint8

const (
	StateRunnable VmStateTag = iota
	StateWaiting
	StateTerminated
)

// vmEntry is the scheduler's bookkeeping record for one VM: identity,
// relations, and syscall-wait state. The machine itself is addressed
// through the Machine interface and never stored by pointer elsewhere,
// per SPEC_FULL.md's "cyclic parent/child references become id-valued
// lookups" redesign note.
type vmEntry struct {
	id     VmId
	parent VmId
	hasParent bool

	machine Machine

	state    VmStateTag
	wait     WaitReason
	exitCode int8

	children []VmId
	pipes    []PipeId // pipe ends this VM currently owns

	// inheritedPipes records the pipe ends this VM was handed at spawn time,
	// for INHERITED_FD; it is never mutated after creation even though some
	// of its entries may later be closed (ownsPipe filters those out).
	inheritedPipes []PipeId

	// waitingParent is set once some other VM has issued Wait(this) and is
	// parked until this VM terminates.
	waitingParent *VmId

	// waitExitAddr remembers the exit-code output address from the Wait
	// message that parked this VM, so waking it later can complete the
	// syscall's store_data-style write.
	waitExitAddr uint64

	programCycles uint64 // cycles consumed while this VM ran
}

func newVMEntry(id VmId, parent VmId, hasParent bool, m Machine, pipes []PipeId) *vmEntry {
	return &vmEntry{
		id: id, parent: parent, hasParent: hasParent,
		machine: m, state: StateRunnable, pipes: pipes,
	}
}

func (e *vmEntry) ownsPipe(p PipeId) bool {
	for _, have := range e.pipes {
		if have == p {
			return true
		}
	}
	return false
}

func (e *vmEntry) removePipe(p PipeId) {
	for i, have := range e.pipes {
		if have == p {
			e.pipes = append(e.pipes[:i], e.pipes[i+1:]...)
			return
		}
	}
}
