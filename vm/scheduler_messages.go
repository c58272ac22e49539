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

// handle services one Message against scheduler-wide state, implementing
// the per-kind semantics of spec.md §4.5. It returns a non-nil error only
// for conditions that must abort the entire verification (budget exceeded,
// internal invariant violation); every script-visible outcome is written
// directly into the calling VM's A0 register instead.
func (s *Scheduler) handle(m Message) *ScriptError {
	if s.strict {
		switch m.Kind {
		case MsgSpawn, MsgPipeRead, MsgPipeWrite, MsgClosePipe, MsgInheritedFd, MsgFd:
			return s.rejectStrict(m)
		}
	}
	switch m.Kind {
	case MsgSpawn:
		return s.handleSpawn(m.VM, m.Spawn)
	case MsgFd:
		return s.handleFd(m.VM, m.Fd)
	case MsgPipeRead:
		return s.handlePipeRead(m.VM, m.PipeIO)
	case MsgPipeWrite:
		return s.handlePipeWrite(m.VM, m.PipeIO)
	case MsgClosePipe:
		return s.handleClosePipe(m.VM, m.ClosePipe)
	case MsgInheritedFd:
		return s.handleInheritedFd(m.VM, m.InheritedFd)
	case MsgWait:
		return s.handleWait(m.VM, m.Wait)
	default:
		return errUnexpected("unknown message kind")
	}
}

func (s *Scheduler) rejectStrict(m Message) *ScriptError {
	entry := s.vms[m.VM]
	entry.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
	entry.state = StateRunnable
	return nil
}

func (s *Scheduler) handleSpawn(parentID VmId, args SpawnArgs) *ScriptError {
	parent := s.vms[parentID]

	if s.nextID-1 >= MaxVmsSpawned {
		parent.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		parent.state = StateRunnable
		return nil
	}

	image, _, err := s.tv.Load(args.DataPieceID, args.Offset, args.Length)
	if err == ErrDataIndexOutOfBound {
		parent.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		parent.state = StateRunnable
		return nil
	}
	if err == ErrDataSliceOutOfBound {
		parent.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		parent.state = StateRunnable
		return nil
	}

	childID := VmId(s.nextID)
	s.nextID++

	child := s.newMach(s.meter.max)
	if _, err := child.LoadELF(image); err != nil {
		return errVMInternal("spawned image failed to load: " + err.Error())
	}
	if _, err := child.InitializeStack(args.Argv, RiscvMaxMemory-DefaultStackSize, DefaultStackSize); err != nil {
		return errVMInternal("spawned stack failed to initialize: " + err.Error())
	}

	childEntry := newVMEntry(childID, parentID, true, child, append([]PipeId{}, args.Pipes...))
	childEntry.inheritedPipes = append([]PipeId{}, args.Pipes...)
	s.vms[childID] = childEntry
	parent.children = append(parent.children, childID)

	for _, p := range args.Pipes {
		pp, ok := s.pipes.get(p)
		if !ok {
			continue
		}
		if p.isRead() {
			pp.reader = &childID
		} else {
			pp.writer = &childID
		}
		parent.removePipe(p)
	}

	if err := parent.machine.Memory().Store64(args.ProcessIDAddr, uint64(childID)); err != nil {
		return errUnexpected("failed to write spawned process id: " + err.Error())
	}
	parent.machine.SetRegister(RegA0, uint64(Success))
	parent.state = StateRunnable
	s.enqueue(childID)
	s.log.Debug("spawned vm", "parent", parentID, "child", childID)
	return nil
}

func (s *Scheduler) handleFd(vmID VmId, args FdArgs) *ScriptError {
	entry := s.vms[vmID]
	r, w := s.pipes.allocate()
	if pp, ok := s.pipes.get(r); ok {
		owner := vmID
		pp.reader = &owner
		pp.writer = &owner
	}
	entry.pipes = append(entry.pipes, r, w)

	if err := entry.machine.Memory().Store64(args.Fd1Addr, uint64(r)); err != nil {
		return errUnexpected("failed to write pipe fd1: " + err.Error())
	}
	if err := entry.machine.Memory().Store64(args.Fd2Addr, uint64(w)); err != nil {
		return errUnexpected("failed to write pipe fd2: " + err.Error())
	}
	entry.machine.SetRegister(RegA0, uint64(Success))
	entry.state = StateRunnable
	return nil
}

func (s *Scheduler) handlePipeRead(vmID VmId, args PipeIoArgs) *ScriptError {
	entry := s.vms[vmID]
	p, ok := s.pipes.get(args.Pipe)
	if !ok || !entry.ownsPipe(args.Pipe) {
		entry.machine.SetRegister(RegA0, uint64(InvalidPipe))
		entry.state = StateRunnable
		return nil
	}
	if s.waiters.Contains(args.Pipe) {
		entry.machine.SetRegister(RegA0, uint64(InvalidPipe))
		entry.state = StateRunnable
		return nil
	}
	if p.waitingWriter != nil {
		return s.transferPipeData(entry, p, args, p.waitingWriter, true)
	}
	if p.writer == nil {
		if err := entry.machine.Memory().Store64(args.LengthAddr, 0); err != nil {
			return errUnexpected(err.Error())
		}
		entry.machine.SetRegister(RegA0, uint64(Success))
		entry.state = StateRunnable
		return nil
	}
	entry.state = StateWaiting
	entry.wait = waitForReadReason(args.Pipe)
	p.waitingReader = &pendingIO{vm: vmID, length: args.Length, bufferAddr: args.BufferAddr, lengthAddr: args.LengthAddr}
	s.waiters.Add(args.Pipe)
	return nil
}

func (s *Scheduler) handlePipeWrite(vmID VmId, args PipeIoArgs) *ScriptError {
	entry := s.vms[vmID]
	p, ok := s.pipes.get(args.Pipe)
	if !ok || !entry.ownsPipe(args.Pipe) {
		entry.machine.SetRegister(RegA0, uint64(InvalidPipe))
		entry.state = StateRunnable
		return nil
	}
	if s.waiters.Contains(args.Pipe) {
		entry.machine.SetRegister(RegA0, uint64(InvalidPipe))
		entry.state = StateRunnable
		return nil
	}
	if p.waitingReader != nil {
		return s.transferPipeData(entry, p, args, p.waitingReader, false)
	}
	if p.reader == nil {
		entry.machine.SetRegister(RegA0, uint64(OtherEndClosed))
		entry.state = StateRunnable
		return nil
	}
	entry.state = StateWaiting
	entry.wait = waitForWriteReason(args.Pipe)
	p.waitingWriter = &pendingIO{vm: vmID, length: args.Length, bufferAddr: args.BufferAddr, lengthAddr: args.LengthAddr}
	s.waiters.Add(args.Pipe)
	return nil
}

// transferPipeData moves min(reader, writer) bytes directly from the
// writer's memory to the reader's, matching spec.md §4.5: the pipe itself
// never buffers data. isReaderCaller distinguishes which side just issued
// the syscall that found a matching counterpart already parked.
func (s *Scheduler) transferPipeData(caller *vmEntry, p *pipe, args PipeIoArgs, peer *pendingIO, isReaderCaller bool) *ScriptError {
	var reader, writer *vmEntry
	var readerArgs, writerArgs PipeIoArgs
	if isReaderCaller {
		reader = caller
		readerArgs = args
		writer = s.vms[peer.vm]
		writerArgs = PipeIoArgs{Length: peer.length, BufferAddr: peer.bufferAddr, LengthAddr: peer.lengthAddr}
	} else {
		writer = caller
		writerArgs = args
		reader = s.vms[peer.vm]
		readerArgs = PipeIoArgs{Length: peer.length, BufferAddr: peer.bufferAddr, LengthAddr: peer.lengthAddr}
	}
	n := readerArgs.Length
	if writerArgs.Length < n {
		n = writerArgs.Length
	}
	data, err := writer.machine.Memory().LoadBytes(writerArgs.BufferAddr, n)
	if err != nil {
		return errUnexpected("pipe transfer source read failed: " + err.Error())
	}
	if err := reader.machine.Memory().StoreBytes(readerArgs.BufferAddr, data); err != nil {
		return errUnexpected("pipe transfer destination write failed: " + err.Error())
	}
	if err := reader.machine.Memory().Store64(readerArgs.LengthAddr, n); err != nil {
		return errUnexpected(err.Error())
	}
	if err := writer.machine.Memory().Store64(writerArgs.LengthAddr, n); err != nil {
		return errUnexpected(err.Error())
	}
	reader.machine.SetRegister(RegA0, uint64(Success))
	writer.machine.SetRegister(RegA0, uint64(Success))
	reader.state = StateRunnable
	writer.state = StateRunnable
	p.waitingReader = nil
	p.waitingWriter = nil
	// The peer parked earlier under its own endpoint id, the complement of
	// the one the caller just used.
	s.waiters.Remove(args.Pipe.peer())
	if isReaderCaller {
		s.enqueue(writer.id)
	} else {
		s.enqueue(reader.id)
	}
	return nil
}

func (s *Scheduler) handleClosePipe(vmID VmId, id PipeId) *ScriptError {
	entry := s.vms[vmID]
	entry.removePipe(id)
	s.closePipeEnd(id)
	entry.machine.SetRegister(RegA0, uint64(Success))
	entry.state = StateRunnable
	return nil
}

// closePipeEnd drops one endpoint's ownership and, if the peer was parked
// waiting on it, wakes the peer with the documented orphan semantics:
// a blocked reader sees EOF (length 0, SUCCESS); a blocked writer sees
// OTHER_END_CLOSED.
func (s *Scheduler) closePipeEnd(id PipeId) {
	p := s.pipes.closeEnd(id)
	if p == nil {
		return
	}
	if id.isRead() {
		if p.waitingWriter != nil {
			w := s.vms[p.waitingWriter.vm]
			w.machine.SetRegister(RegA0, uint64(OtherEndClosed))
			w.state = StateRunnable
			s.waiters.Remove(id.peer())
			p.waitingWriter = nil
			s.enqueue(w.id)
		}
	} else {
		if p.waitingReader != nil {
			r := s.vms[p.waitingReader.vm]
			_ = r.machine.Memory().Store64(p.waitingReader.lengthAddr, 0)
			r.machine.SetRegister(RegA0, uint64(Success))
			r.state = StateRunnable
			s.waiters.Remove(id.peer())
			p.waitingReader = nil
			s.enqueue(r.id)
		}
	}
}

func (s *Scheduler) handleInheritedFd(vmID VmId, args PipeIoArgs) *ScriptError {
	entry := s.vms[vmID]
	var ids []PipeId
	for _, p := range entry.inheritedPipes {
		if entry.ownsPipe(p) {
			ids = append(ids, p)
		}
	}
	data := make([]byte, 8*len(ids))
	for i, id := range ids {
		v := uint64(id)
		for b := 0; b < 8; b++ {
			data[i*8+b] = byte(v >> (8 * b))
		}
	}
	if _, err := storeData(entry.machine, args.BufferAddr, args.LengthAddr, data, 0); err != nil {
		return errUnexpected(err.Error())
	}
	entry.machine.SetRegister(RegA0, uint64(Success))
	entry.state = StateRunnable
	return nil
}

func (s *Scheduler) handleWait(vmID VmId, args WaitArgs) *ScriptError {
	entry := s.vms[vmID]
	child, ok := s.vms[args.Child]
	if !ok || !child.hasParent || child.parent != vmID {
		entry.machine.SetRegister(RegA0, uint64(WaitFailure))
		entry.state = StateRunnable
		return nil
	}
	if child.state == StateTerminated {
		if err := entry.machine.Memory().Store64(args.ExitCodeAddr, uint64(uint8(child.exitCode))); err != nil {
			return errUnexpected(err.Error())
		}
		entry.machine.SetRegister(RegA0, uint64(Success))
		entry.state = StateRunnable
		delete(s.vms, child.id)
		return nil
	}
	entry.state = StateWaiting
	entry.wait = waitForChildReason(child.id)
	entry.waitExitAddr = args.ExitCodeAddr
	id := vmID
	child.waitingParent = &id
	return nil
}
