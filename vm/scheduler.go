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

import (
	"sync"

	mapset "github.com/deckarep/golang-set"
	"github.com/google/uuid"

	"github.com/probeum/ckbvm/log"
	"github.com/probeum/ckbvm/metrics"
)

var (
	stepMeter      = metrics.NewRegisteredMeter("vm/scheduler/steps", nil)
	vmExitedMeter  = metrics.NewRegisteredMeter("vm/scheduler/vm_exited", nil)
	vmFailedMeter  = metrics.NewRegisteredMeter("vm/scheduler/failed", nil)
	cyclesConsumed = metrics.NewRegisteredCounter("vm/scheduler/cycles_consumed", nil)
)

// Command is sent on the external command channel between outer-loop
// iterations; it is the only way a long verification gets paused.
type Command uint8

const (
	CmdResume Command = iota
	CmdSuspend
)

// ResultKind tags a VerifyResult.
type ResultKind uint8

const (
	ResultCompleted ResultKind = iota
	ResultSuspended
	ResultFailed
)

// VerifyResult is the outcome of Scheduler.Run.
type VerifyResult struct {
	Kind   ResultKind
	Cycles uint64
	State  []byte       // opaque snapshot, set when Kind == ResultSuspended
	Err    *ScriptError // set when Kind == ResultFailed
}

// MachineFactory builds a fresh Machine for the root VM or a spawned child.
type MachineFactory func(maxCycles uint64) Machine

// Scheduler owns every VM and pipe created during one transaction's script
// verification and drives the cooperative state machine described in
// spec.md §4.5: Runnable -> Running -> Suspended(Reason) -> Runnable | Terminated.
type Scheduler struct {
	tv      *TxView
	meter   *cycleMeter
	newMach MachineFactory

	vms    map[VmId]*vmEntry
	nextID uint64

	pipes *pipeTable

	ready []VmId

	// strict enforces the v1-compatible subset: spawn and pipe requests are
	// rejected rather than serviced; exec is not affected. SPEC_FULL.md
	// REDESIGN FLAGS.
	strict bool

	// waiters bookkeeps which pipes currently have a parked reader or
	// writer, used to enforce "at most one waiter per endpoint"
	// (spec.md §9 Open Questions).
	waiters mapset.Set

	// runID has no consensus meaning and is never persisted in a snapshot:
	// it only tags every log line this scheduler process produces, so an
	// operator can correlate one run's output, matching the teacher's use
	// of a UUID to correlate per-peer/per-node log output. A resumed
	// scheduler mints its own, independent of the one that suspended.
	runID uuid.UUID

	log log.Logger
}

func newRunID() uuid.UUID { return uuid.New() }

// NewScheduler creates a scheduler with the root VM registered (but not yet
// run) at ROOTVmId, having loaded rootImage as its initial program image
// with an empty argument list.
func NewScheduler(tv *TxView, maxCycles uint64, newMach MachineFactory, rootImage []byte) (*Scheduler, *ScriptError) {
	s := &Scheduler{
		tv:      tv,
		meter:   newCycleMeter(maxCycles),
		newMach: newMach,
		vms:     make(map[VmId]*vmEntry),
		pipes:   newPipeTable(),
		nextID:  1,
		waiters: mapset.NewSet(),
		runID:   newRunID(),
	}
	s.log = log.New("component", "scheduler", "run", s.runID)
	root := s.newMach(maxCycles)
	size, err := root.LoadELF(rootImage)
	if err != nil {
		return nil, errVMInternal("failed to load root program image")
	}
	if !s.meter.add(transferredByteCycles(size)) {
		return nil, errExceededMaximumCycles(maxCycles)
	}
	if _, err := root.InitializeStack(nil, RiscvMaxMemory-DefaultStackSize, DefaultStackSize); err != nil {
		return nil, errVMInternal("failed to initialize root stack")
	}
	entry := newVMEntry(ROOTVmId, 0, false, root, nil)
	s.vms[ROOTVmId] = entry
	s.ready = []VmId{ROOTVmId}
	return s, nil
}

// Strict switches the scheduler into the v1-compatible subset: Spawn, Fd,
// Read, Write, Close and InheritedFd requests are not serviced; the calling
// VM gets INDEX_OUT_OF_BOUND in A0 and stays runnable. Exec is synchronous
// and is not rejected in strict mode.
func (s *Scheduler) Strict(strict bool) { s.strict = strict }

func (s *Scheduler) enqueue(id VmId) {
	for _, v := range s.ready {
		if v == id {
			return
		}
	}
	s.ready = append(s.ready, id)
}

func (s *Scheduler) popReady() (VmId, bool) {
	if len(s.ready) == 0 {
		return 0, false
	}
	id := s.ready[0]
	s.ready = s.ready[1:]
	return id, true
}

// Run drives the cooperative scheduler to completion, suspension, or
// failure. commands may be nil, in which case the scheduler never suspends
// on external request.
func (s *Scheduler) Run(commands <-chan Command) VerifyResult {
	for {
		if commands != nil {
			select {
			case cmd := <-commands:
				if cmd == CmdSuspend {
					state, err := s.snapshot()
					if err != nil {
						return s.failed(errUnexpected(err.Error()))
					}
					return VerifyResult{Kind: ResultSuspended, State: state}
				}
			default:
			}
		}

		id, ok := s.popReady()
		if !ok {
			return s.failed(errUnexpected("no runnable VM and root has not terminated"))
		}
		entry, ok := s.vms[id]
		if !ok || entry.state != StateRunnable {
			continue
		}

		var msgBox []Message
		var mu sync.Mutex
		ctx := &vmContext{id: id, machine: entry.machine, tv: s.txViewFor(entry), meter: s.meter, msgMu: &mu, msgBox: &msgBox}

		usedBefore := s.meter.used
		result := entry.machine.Run(func(Machine) bool { return dispatch(ctx) })
		stepMeter.Mark(1)
		delta := entry.machine.Cycles() - entry.programCycles
		cyclesConsumed.Inc(int64(delta))
		entry.programCycles = entry.machine.Cycles()
		// Syscall charges already reached the meter through vmContext.charge;
		// the rest of this step's machine cycles are instruction cycles.
		if !s.meter.add(delta - (s.meter.used - usedBefore)) {
			return s.failed(errExceededMaximumCycles(s.meter.max))
		}

		switch result.Kind {
		case StepExit:
			s.log.Debug("vm exited", "vm", id, "code", result.ExitCode)
			vmExitedMeter.Mark(1)
			if scriptErr := s.terminate(entry, result.ExitCode); scriptErr != nil {
				return s.failed(scriptErr)
			}
			if id == ROOTVmId {
				if result.ExitCode != 0 {
					return s.failed(errValidationFailure(result.ExitCode))
				}
				return VerifyResult{Kind: ResultCompleted, Cycles: s.meter.used}
			}
		case StepFault:
			return s.failed(errVMInternal(result.Err.Error()))
		case StepYield:
			if ctx.fault != nil {
				return s.failed(ctx.fault.(*ScriptError))
			}
			for _, m := range msgBox {
				if err := s.handle(m); err != nil {
					return s.failed(err)
				}
			}
			if entry.state == StateRunnable {
				s.enqueue(id)
			}
		}
	}
}

func (s *Scheduler) failed(err *ScriptError) VerifyResult {
	s.log.Warn("verification failed", "kind", err.Kind, "msg", err.Error())
	vmFailedMeter.Mark(1)
	return VerifyResult{Kind: ResultFailed, Err: err}
}

// txViewFor returns the TxView the given VM's syscalls should resolve
// against. Every VM in a scheduler shares the same transaction view; only
// the script bytes returned by LOAD_SCRIPT are always the owning script
// group's, which TxView.Group already fixes for the whole run.
func (s *Scheduler) txViewFor(e *vmEntry) *TxView { return s.tv }

// terminate marks entry as terminated, closes every pipe end it still owns
// (waking the peer as if by ClosePipe), and wakes a parent parked in Wait.
// It returns a non-nil error only for internal invariant violations.
func (s *Scheduler) terminate(entry *vmEntry, exitCode int8) *ScriptError {
	entry.state = StateTerminated
	entry.exitCode = exitCode
	for _, p := range append([]PipeId{}, entry.pipes...) {
		s.closePipeEnd(p)
	}
	entry.pipes = nil
	if entry.waitingParent != nil {
		parentID := *entry.waitingParent
		parent, ok := s.vms[parentID]
		if ok && parent.state == StateWaiting && parent.wait.kind == waitForChild && parent.wait.child == entry.id {
			s.wakeWaitForChild(parent, entry)
		}
	}
	return nil
}

func (s *Scheduler) wakeWaitForChild(parent *vmEntry, child *vmEntry) {
	if err := parent.machine.Memory().Store64(s.pendingWaitAddr(parent), uint64(uint8(child.exitCode))); err != nil {
		return
	}
	parent.machine.SetRegister(RegA0, uint64(Success))
	parent.state = StateRunnable
	delete(s.vms, child.id)
	s.enqueue(parent.id)
}

// pendingWaitAddr recovers the exit-code output address remembered from the
// Wait message that parked this VM.
func (s *Scheduler) pendingWaitAddr(e *vmEntry) uint64 { return e.waitExitAddr }
