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

// PipeId identifies one end of a unidirectional byte pipe. The low bit
// distinguishes the read end (even) from the write end (odd); peer() flips it.
type PipeId uint64

func (p PipeId) isRead() bool  { return p&1 == 0 }
func (p PipeId) peer() PipeId  { return p ^ 1 }

// pendingIO describes a syscall-blocked VM waiting on one end of a pipe.
type pendingIO struct {
	vm         VmId
	length     uint64
	bufferAddr uint64
	lengthAddr uint64
}

// pipe is a unidirectional channel between (at most) one reader VM and one
// writer VM. Buffering is unbounded in principle but zero in practice: the
// scheduler matches a waiting reader directly against a waiting writer and
// never actually holds bytes in the pipe itself.
type pipe struct {
	reader *VmId
	writer *VmId

	waitingReader *pendingIO
	waitingWriter *pendingIO
}

// pipeTable owns every pipe pair created in one scheduler run, keyed by
// either end's PipeId for O(1) lookup from a syscall argument.
type pipeTable struct {
	nextID uint64 // next even id to allocate, pairs are (id, id+1)
	pipes  map[PipeId]*pipe
}

func newPipeTable() *pipeTable {
	return &pipeTable{pipes: make(map[PipeId]*pipe)}
}

// allocate creates a fresh (read, write) pair and returns both ids.
func (t *pipeTable) allocate() (r, w PipeId) {
	r = PipeId(t.nextID)
	w = r.peer()
	t.nextID += 2
	p := &pipe{}
	t.pipes[r] = p
	t.pipes[w] = p
	return r, w
}

func (t *pipeTable) get(id PipeId) (*pipe, bool) {
	p, ok := t.pipes[id]
	return p, ok
}

// closeEnd drops the given end's ownership. If both ends are now ownerless,
// the pipe is removed from the table. Returns the pipe (for waking waiters),
// or nil when id names no pipe in the table.
func (t *pipeTable) closeEnd(id PipeId) *pipe {
	p, ok := t.pipes[id]
	if !ok {
		return nil
	}
	if id.isRead() {
		p.reader = nil
	} else {
		p.writer = nil
	}
	if p.reader == nil && p.writer == nil {
		delete(t.pipes, id)
		delete(t.pipes, id.peer())
	}
	return p
}
