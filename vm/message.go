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

// MessageKind tags a Message. A tagged struct (rather than a set of
// per-handler heap objects behind an interface) is used throughout this
// package, per SPEC_FULL.md's polymorphic-dispatch redesign note.
type MessageKind uint8

const (
	MsgSpawn MessageKind = iota
	MsgPipeRead
	MsgPipeWrite
	MsgClosePipe
	MsgWait
	MsgInheritedFd
	MsgFd
)

// SpawnArgs is the payload of a Spawn message.
type SpawnArgs struct {
	DataPieceID    DataPieceId
	Offset, Length uint64
	Argv           [][]byte
	Pipes          []PipeId
	ProcessIDAddr  uint64
}

// PipeIoArgs is the payload of a PipeRead/PipeWrite/InheritedFd message.
type PipeIoArgs struct {
	Pipe       PipeId
	Length     uint64
	BufferAddr uint64
	LengthAddr uint64
}

// WaitArgs is the payload of a Wait message.
type WaitArgs struct {
	Child        VmId
	ExitCodeAddr uint64
}

// FdArgs is the payload of a Fd message: both output addresses are derived
// from one base pointer, matching fd.rs's fd1_addr / fd1_addr+8 addressing.
type FdArgs struct {
	Fd1Addr uint64
	Fd2Addr uint64
}

// Message is a request emitted by a VM that requires scheduler servicing.
// Exactly one of the Args fields is populated, selected by Kind.
type Message struct {
	Kind MessageKind
	VM   VmId

	Spawn      SpawnArgs
	PipeIO     PipeIoArgs
	ClosePipe  PipeId
	Wait       WaitArgs
	InheritedFd PipeIoArgs
	Fd         FdArgs
}
