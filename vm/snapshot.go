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
	"errors"
	"sort"

	mapset "github.com/deckarep/golang-set"

	"github.com/probeum/ckbvm/log"
	"github.com/probeum/ckbvm/rlp"
)

// snapshotMagic and snapshotVersion tag every encoded Scheduler state so a
// resume attempt against an incompatible build fails loudly instead of
// silently reading garbage.
var snapshotMagic = [4]byte{'c', 'k', 'v', 'm'}

const snapshotVersion = 1

var errSnapshotMagic = errors.New("snapshot: bad magic or version")

// u64 reads a decoded RLP item as an unsigned integer. Every integer field
// in this format is produced by EncodeUint64, so a decode error here can
// only mean a corrupt or foreign blob; callers that have already validated
// the magic/version header treat that as equivalent to a zero value and let
// downstream shape checks (field counts, machine Restore) catch it.
func u64(it rlp.Item) uint64 {
	v, _ := it.Uint64()
	return v
}

// snapshot serializes every VM, pipe, and the cycle budget into a single
// opaque blob CmdSuspend callers can hold onto and later feed to Resume.
func (s *Scheduler) snapshot() ([]byte, error) {
	vmIDs := make([]VmId, 0, len(s.vms))
	for id := range s.vms {
		vmIDs = append(vmIDs, id)
	}
	sort.Slice(vmIDs, func(i, j int) bool { return vmIDs[i] < vmIDs[j] })

	vmsItems := make([][]byte, 0, len(vmIDs))
	for _, id := range vmIDs {
		item, err := s.encodeVMEntry(id, s.vms[id])
		if err != nil {
			return nil, err
		}
		vmsItems = append(vmsItems, item)
	}

	pipeIDs := make([]PipeId, 0, len(s.pipes.pipes))
	for id := range s.pipes.pipes {
		if id.isRead() {
			pipeIDs = append(pipeIDs, id)
		}
	}
	sort.Slice(pipeIDs, func(i, j int) bool { return pipeIDs[i] < pipeIDs[j] })

	pipesItems := make([][]byte, 0, len(pipeIDs))
	for _, id := range pipeIDs {
		pipesItems = append(pipesItems, encodePipe(id, s.pipes.pipes[id]))
	}

	readyItems := make([][]byte, 0, len(s.ready))
	for _, id := range s.ready {
		readyItems = append(readyItems, rlp.EncodeUint64(uint64(id)))
	}

	body := rlp.EncodeList(
		rlp.EncodeUint64(s.nextID),
		rlp.EncodeUint64(s.meter.used),
		rlp.EncodeUint64(s.meter.max),
		rlp.EncodeUint64(s.pipes.nextID),
		rlp.EncodeList(pipesItems...),
		rlp.EncodeList(readyItems...),
		rlp.EncodeList(vmsItems...),
	)

	out := make([]byte, 0, 5+len(body))
	out = append(out, snapshotMagic[:]...)
	out = append(out, snapshotVersion)
	out = append(out, body...)
	return out, nil
}

// Resume rebuilds a Scheduler from a blob produced by snapshot, using
// newMach to reconstruct every Machine (each built fresh, then restored
// from its own captured state) and tv as the (possibly rebound) transaction
// view to resolve further syscalls against. The resumed scheduler gets its
// own fresh runID: that field is log-correlation only and never part of the
// persisted, consensus-relevant snapshot body.
func Resume(data []byte, tv *TxView, newMach MachineFactory) (*Scheduler, *ScriptError) {
	if len(data) < 5 || [4]byte{data[0], data[1], data[2], data[3]} != snapshotMagic || data[4] != snapshotVersion {
		return nil, errUnexpected(errSnapshotMagic.Error())
	}
	item, rest, err := rlp.Decode(data[5:])
	if err != nil || len(rest) != 0 || len(item.List) != 7 {
		return nil, errUnexpected("snapshot: malformed body")
	}

	s := &Scheduler{
		tv:      tv,
		newMach: newMach,
		vms:     make(map[VmId]*vmEntry),
		pipes:   newPipeTable(),
		runID:   newRunID(),
	}
	s.nextID = u64(item.List[0])
	s.meter = &cycleMeter{used: u64(item.List[1]), max: u64(item.List[2])}
	s.pipes.nextID = u64(item.List[3])
	s.waiters = mapset.NewSet()
	s.log = log.New("component", "scheduler", "run", s.runID)

	for _, pi := range item.List[4].List {
		id, p, err := decodePipe(pi)
		if err != nil {
			return nil, errUnexpected(err.Error())
		}
		s.pipes.pipes[id] = p
		s.pipes.pipes[id.peer()] = p
		if p.waitingReader != nil {
			s.waiters.Add(id)
		}
		if p.waitingWriter != nil {
			s.waiters.Add(id.peer())
		}
	}

	for _, ri := range item.List[5].List {
		s.ready = append(s.ready, VmId(u64(ri)))
	}

	for _, vi := range item.List[6].List {
		id, e, err := s.decodeVMEntry(vi)
		if err != nil {
			return nil, errUnexpected(err.Error())
		}
		s.vms[id] = e
	}
	return s, nil
}

func (s *Scheduler) encodeVMEntry(id VmId, e *vmEntry) ([]byte, error) {
	machState, err := e.machine.Snapshot()
	if err != nil {
		return nil, errUnexpected("machine snapshot failed: " + err.Error())
	}
	childItems := make([][]byte, len(e.children))
	for i, c := range e.children {
		childItems[i] = rlp.EncodeUint64(uint64(c))
	}
	pipeItems := make([][]byte, len(e.pipes))
	for i, p := range e.pipes {
		pipeItems[i] = rlp.EncodeUint64(uint64(p))
	}
	inheritedItems := make([][]byte, len(e.inheritedPipes))
	for i, p := range e.inheritedPipes {
		inheritedItems[i] = rlp.EncodeUint64(uint64(p))
	}
	var waitingParent, hasWaitingParent uint64
	if e.waitingParent != nil {
		waitingParent, hasWaitingParent = uint64(*e.waitingParent), 1
	}
	var hasParent uint64
	if e.hasParent {
		hasParent = 1
	}
	return rlp.EncodeList(
		rlp.EncodeUint64(uint64(id)),
		rlp.EncodeUint64(uint64(e.parent)),
		rlp.EncodeUint64(hasParent),
		rlp.EncodeUint64(uint64(e.state)),
		rlp.EncodeUint64(uint64(e.wait.kind)),
		rlp.EncodeUint64(uint64(e.wait.pipe)),
		rlp.EncodeUint64(uint64(e.wait.child)),
		rlp.EncodeUint64(uint64(uint8(e.exitCode))),
		rlp.EncodeList(childItems...),
		rlp.EncodeList(pipeItems...),
		rlp.EncodeList(inheritedItems...),
		rlp.EncodeUint64(hasWaitingParent),
		rlp.EncodeUint64(waitingParent),
		rlp.EncodeUint64(e.waitExitAddr),
		rlp.EncodeUint64(e.programCycles),
		rlp.EncodeBytes(machState),
	), nil
}

func (s *Scheduler) decodeVMEntry(item rlp.Item) (VmId, *vmEntry, error) {
	if len(item.List) != 16 {
		return 0, nil, errors.New("vm entry: wrong field count")
	}
	f := item.List
	id := VmId(u64(f[0]))
	e := &vmEntry{
		id:        id,
		parent:    VmId(u64(f[1])),
		hasParent: u64(f[2]) != 0,
		state:     VmStateTag(u64(f[3])),
		wait: WaitReason{
			kind:  waitKind(u64(f[4])),
			pipe:  PipeId(u64(f[5])),
			child: VmId(u64(f[6])),
		},
		exitCode:      int8(u64(f[7])),
		programCycles: u64(f[14]),
	}
	for _, c := range f[8].List {
		e.children = append(e.children, VmId(u64(c)))
	}
	for _, p := range f[9].List {
		e.pipes = append(e.pipes, PipeId(u64(p)))
	}
	for _, p := range f[10].List {
		e.inheritedPipes = append(e.inheritedPipes, PipeId(u64(p)))
	}
	if u64(f[11]) != 0 {
		wp := VmId(u64(f[12]))
		e.waitingParent = &wp
	}
	e.waitExitAddr = u64(f[13])

	m := s.newMach(s.meter.max)
	if err := m.Restore(f[15].Bytes); err != nil {
		return 0, nil, errors.New("machine restore failed: " + err.Error())
	}
	e.machine = m
	return id, e, nil
}

func encodePipe(id PipeId, p *pipe) []byte {
	var hasReader, hasWriter, reader, writer uint64
	if p.reader != nil {
		hasReader, reader = 1, uint64(*p.reader)
	}
	if p.writer != nil {
		hasWriter, writer = 1, uint64(*p.writer)
	}
	return rlp.EncodeList(
		rlp.EncodeUint64(uint64(id)),
		rlp.EncodeUint64(hasReader),
		rlp.EncodeUint64(reader),
		rlp.EncodeUint64(hasWriter),
		rlp.EncodeUint64(writer),
		encodePendingIO(p.waitingReader),
		encodePendingIO(p.waitingWriter),
	)
}

func decodePipe(item rlp.Item) (PipeId, *pipe, error) {
	if len(item.List) != 7 {
		return 0, nil, errors.New("pipe: wrong field count")
	}
	f := item.List
	id := PipeId(u64(f[0]))
	p := &pipe{}
	if u64(f[1]) != 0 {
		v := VmId(u64(f[2]))
		p.reader = &v
	}
	if u64(f[3]) != 0 {
		v := VmId(u64(f[4]))
		p.writer = &v
	}
	p.waitingReader = decodePendingIO(f[5])
	p.waitingWriter = decodePendingIO(f[6])
	return id, p, nil
}

func encodePendingIO(io *pendingIO) []byte {
	if io == nil {
		return rlp.EncodeList()
	}
	return rlp.EncodeList(
		rlp.EncodeUint64(1),
		rlp.EncodeUint64(uint64(io.vm)),
		rlp.EncodeUint64(io.length),
		rlp.EncodeUint64(io.bufferAddr),
		rlp.EncodeUint64(io.lengthAddr),
	)
}

func decodePendingIO(item rlp.Item) *pendingIO {
	if len(item.List) == 0 {
		return nil
	}
	f := item.List
	return &pendingIO{
		vm:         VmId(u64(f[1])),
		length:     u64(f[2]),
		bufferAddr: u64(f[3]),
		lengthAddr: u64(f[4]),
	}
}
