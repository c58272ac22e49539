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
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSnapshotResumeRoundTripParkedPipe covers the case that matters most for
// correctness: a reader parked on a pipe, with the owning VM's register and
// memory state preserved across the blob.
func TestSnapshotResumeRoundTripParkedPipe(t *testing.T) {
	s := newTestScheduler(t, 1_000_000)
	root := s.vms[ROOTVmId]
	require.Nil(t, s.handleFd(ROOTVmId, FdArgs{Fd1Addr: 0x100, Fd2Addr: 0x108}))
	r, _ := loadC64(root.machine, 0x100)
	w, _ := loadC64(root.machine, 0x108)

	childID := VmId(1)
	child := newVMEntry(childID, ROOTVmId, true, newFakeMachine(1_000_000), []PipeId{PipeId(r)})
	s.vms[childID] = child
	root.removePipe(PipeId(r))
	if pp, ok := s.pipes.get(PipeId(r)); ok {
		cid := childID
		pp.reader = &cid
	}

	// Child parks waiting to read; nothing has written yet.
	require.NoError(t, child.machine.Memory().Store64(0x310, 5))
	require.Nil(t, s.handlePipeRead(childID, PipeIoArgs{Pipe: PipeId(r), Length: 5, BufferAddr: 0x300, LengthAddr: 0x310}))
	require.Equal(t, StateWaiting, child.state)

	root.machine.SetRegister(11, 0xCAFE)
	require.NoError(t, root.machine.Memory().StoreBytes(0x900, []byte("marker")))

	data, err := s.snapshot()
	require.NoError(t, err)

	tv := NewTxView([32]byte{}, nil, nil, nil, nil, nil, ScriptGroup{Script: []byte{0x01}})
	resumed, scErr := Resume(data, tv, newFakeMachine)
	require.Nil(t, scErr)

	require.Equal(t, s.nextID, resumed.nextID)
	require.Equal(t, s.meter.used, resumed.meter.used)
	require.Equal(t, s.meter.max, resumed.meter.max)
	require.ElementsMatch(t, s.ready, resumed.ready)
	require.Len(t, resumed.vms, 2)

	rRoot := resumed.vms[ROOTVmId]
	require.Equal(t, uint64(0xCAFE), rRoot.machine.Register(11))
	got, err := rRoot.machine.Memory().LoadBytes(0x900, 6)
	require.NoError(t, err)
	require.Equal(t, "marker", string(got))

	rChild := resumed.vms[childID]
	require.Equal(t, StateWaiting, rChild.state)
	require.Equal(t, waitForRead, rChild.wait.kind)
	require.Equal(t, PipeId(r), rChild.wait.pipe)
	require.True(t, rChild.hasParent)
	require.Equal(t, ROOTVmId, rChild.parent)
	require.Contains(t, rChild.inheritedPipes, PipeId(r))

	pp, ok := resumed.pipes.get(PipeId(r))
	require.True(t, ok)
	require.NotNil(t, pp.waitingReader)
	require.Equal(t, childID, pp.waitingReader.vm)
	require.Equal(t, uint64(0x300), pp.waitingReader.bufferAddr)
	require.True(t, resumed.waiters.Contains(PipeId(r)))

	// Writing into the resumed scheduler should still wake the restored
	// waiting reader and deliver bytes.
	writer := resumed.vms[ROOTVmId]
	require.NoError(t, writer.machine.Memory().StoreBytes(0x200, []byte("hello")))
	require.NoError(t, writer.machine.Memory().Store64(0x210, 5))
	scErr = resumed.handlePipeWrite(ROOTVmId, PipeIoArgs{Pipe: PipeId(w), Length: 5, BufferAddr: 0x200, LengthAddr: 0x210})
	require.Nil(t, scErr)
	require.Equal(t, StateRunnable, rChild.state)
	got, err = rChild.machine.Memory().LoadBytes(0x300, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

// TestSnapshotResumeRoundTripSpawnedChild covers parent/child bookkeeping and
// the nextID counter, without any pending pipe I/O in flight.
func TestSnapshotResumeRoundTripSpawnedChild(t *testing.T) {
	tv := NewTxView([32]byte{}, nil, [][]byte{{0xAB, 0xCD}}, nil, nil, nil, ScriptGroup{Script: []byte{0x01}})
	s, err := NewScheduler(tv, 10_000_000, newFakeMachine, []byte{0x01})
	require.Nil(t, err)
	root := s.vms[ROOTVmId]

	scErr := s.handleSpawn(ROOTVmId, SpawnArgs{
		DataPieceID:   DataPieceId{Kind: KindInput, Index: 0},
		ProcessIDAddr: 0x500,
	})
	require.Nil(t, scErr)
	childIDRaw, err := root.machine.Memory().Load64(0x500)
	require.NoError(t, err)
	childID := VmId(childIDRaw)

	data, err := s.snapshot()
	require.NoError(t, err)

	tv2 := NewTxView([32]byte{}, nil, [][]byte{{0xAB, 0xCD}}, nil, nil, nil, ScriptGroup{Script: []byte{0x01}})
	resumed, scErr := Resume(data, tv2, newFakeMachine)
	require.Nil(t, scErr)

	require.Equal(t, s.nextID, resumed.nextID)
	require.Len(t, resumed.vms, 2)

	rRoot, ok := resumed.vms[ROOTVmId]
	require.True(t, ok)
	require.Contains(t, rRoot.children, childID)

	rChild, ok := resumed.vms[childID]
	require.True(t, ok)
	require.Equal(t, StateRunnable, rChild.state)
	require.True(t, rChild.hasParent)
	require.Equal(t, ROOTVmId, rChild.parent)
	require.Contains(t, resumed.ready, childID)
}

// buildSpawnedSnapshot runs the exact same sequence of scheduler calls and
// returns the resulting snapshot bytes, used by
// TestSnapshotDeterministicAcrossRuns to compare two independent runs.
func buildSpawnedSnapshot(t *testing.T) []byte {
	t.Helper()
	tv := NewTxView([32]byte{}, nil, [][]byte{{0xAB, 0xCD}}, nil, nil, nil, ScriptGroup{Script: []byte{0x01}})
	s, err := NewScheduler(tv, 10_000_000, newFakeMachine, []byte{0x01})
	require.Nil(t, err)

	scErr := s.handleSpawn(ROOTVmId, SpawnArgs{
		DataPieceID:   DataPieceId{Kind: KindInput, Index: 0},
		ProcessIDAddr: 0x500,
	})
	require.Nil(t, scErr)

	require.Nil(t, s.handleFd(ROOTVmId, FdArgs{Fd1Addr: 0x600, Fd2Addr: 0x608}))

	data, err := s.snapshot()
	require.NoError(t, err)
	return data
}

// TestSnapshotDeterministicAcrossRuns is the direct regression test for
// spec.md §5/§8's "identical inputs, identical snapshots" property: two
// schedulers built from scratch via the same call sequence must serialize to
// byte-identical blobs, independent of Go's unspecified map iteration order
// and of any run-scoped identifier that must never leak into the wire format.
func TestSnapshotDeterministicAcrossRuns(t *testing.T) {
	a := buildSpawnedSnapshot(t)
	b := buildSpawnedSnapshot(t)
	require.Equal(t, a, b)
}
