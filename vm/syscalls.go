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

	"github.com/probeum/ckbvm/log"
)

// vmContext is everything a syscall handler needs: identity of the calling
// VM, its machine, its data view, and the shared message box it may need to
// push a scheduler-mediated request into. Only the currently running VM
// ever writes msgBox between scheduler drains (spec.md §5), so the mutex
// here exists purely to satisfy the EcallHandler signature, never to
// arbitrate real contention.
type vmContext struct {
	id      VmId
	machine Machine
	tv      *TxView
	meter   *cycleMeter

	msgMu  *sync.Mutex
	msgBox *[]Message

	// fault is set by a handler that must abort the VM rather than return
	// a script-visible status code (e.g. ARGV_TOO_LONG). The scheduler
	// checks it immediately after every Yield, before servicing any queued
	// message.
	fault error
}

func (c *vmContext) push(m Message) {
	c.msgMu.Lock()
	defer c.msgMu.Unlock()
	*c.msgBox = append(*c.msgBox, m)
}

// charge applies n cycles to both the machine's own counter and the
// scheduler-wide budget before any result becomes visible to the program,
// per spec.md §4.2. ok is false when doing so would exceed max_cycles; in
// that case charge also sets c.fault so the caller can force a suspend and
// let the scheduler abort verification with ExceededMaximumCycles, since a
// budget overrun is never a script-visible status code.
func (c *vmContext) charge(n uint64) (ok bool) {
	if err := c.machine.AddCyclesNoChecking(n); err != nil {
		c.fault = errVMInternal(err.Error())
		return false
	}
	if !c.meter.add(n) {
		c.fault = errExceededMaximumCycles(c.meter.max)
		return false
	}
	return true
}

// storeData implements the uniform bounds-passing convention used by every
// synchronous load syscall: A1 points to a cell holding the caller's buffer
// capacity on entry; on exit that cell holds the full available length
// (from offset to the end of data), and at most capacity bytes are copied
// to the buffer at A0. An offset at or past the end of data is not an
// error (nothing is copied and the stored length is 0); err is non-nil
// only when a memory access fails.
func storeData(m Machine, bufAddr, lenAddr uint64, data []byte, offset uint64) (wrote uint64, err error) {
	capacity, err := m.Memory().Load64(lenAddr)
	if err != nil {
		return 0, err
	}
	var needed uint64
	if offset < uint64(len(data)) {
		needed = uint64(len(data)) - offset
	}
	toWrite := needed
	if toWrite > capacity {
		toWrite = capacity
	}
	if toWrite > 0 {
		if err := m.Memory().StoreBytes(bufAddr, data[offset:offset+toWrite]); err != nil {
			return 0, err
		}
	}
	if err := m.Memory().Store64(lenAddr, needed); err != nil {
		return 0, err
	}
	return toWrite, nil
}

func loadC64(m Machine, addr uint64) (uint64, error) {
	return m.Memory().Load64(addr)
}

// dispatch routes one ecall to the appropriate synchronous or
// scheduler-mediated handler. It returns true when the machine must
// suspend (a Message was queued and the scheduler must service it before
// this VM can continue).
func dispatch(c *vmContext) (suspend bool) {
	num := c.machine.Register(RegA7)
	switch num {
	case LoadTxHash:
		return sysLoadTxHash(c)
	case LoadTransaction:
		return sysLoadTransaction(c)
	case LoadScriptSyscall:
		return sysLoadScript(c)
	case LoadCell, LoadInput, LoadHeader, LoadWitness, LoadCellData:
		return sysLoadIndexed(c, num)
	case Debug:
		return sysDebug(c)
	case Exec:
		return sysExec(c)
	case Spawn:
		return sysSpawn(c)
	case ProcessID:
		c.machine.SetRegister(RegA0, uint64(c.id))
		return false
	case Pipe:
		return sysFd(c)
	case Read:
		return sysRead(c)
	case Write:
		return sysWrite(c)
	case InheritedFd:
		return sysInheritedFd(c)
	case Close:
		return sysClose(c)
	case Wait:
		return sysWait(c)
	default:
		log.Debug("unknown syscall ignored", "vm", c.id, "number", num)
		return false
	}
}

func sysLoadTxHash(c *vmContext) bool {
	offset := c.machine.Register(RegA2)
	n, err := storeData(c.machine, c.machine.Register(RegA0), c.machine.Register(RegA1), c.tv.Hash[:], offset)
	return finishSync(c, n, err)
}

func sysLoadTransaction(c *vmContext) bool {
	offset := c.machine.Register(RegA2)
	n, err := storeData(c.machine, c.machine.Register(RegA0), c.machine.Register(RegA1), c.tv.Raw, offset)
	return finishSync(c, n, err)
}

func sysLoadScript(c *vmContext) bool {
	offset := c.machine.Register(RegA2)
	n, err := storeData(c.machine, c.machine.Register(RegA0), c.machine.Register(RegA1), c.tv.Group.Script, offset)
	return finishSync(c, n, err)
}

// sysLoadIndexed backs LOAD_CELL/LOAD_INPUT/LOAD_HEADER/LOAD_WITNESS/LOAD_CELL_DATA:
// each resolves (index, source) against the data source and streams the
// result through the same store_data convention.
func sysLoadIndexed(c *vmContext, num uint64) bool {
	index := uint32(c.machine.Register(RegA3))
	sourceRaw := c.machine.Register(RegA4)
	offset := c.machine.Register(RegA2)

	source, entry, ok := decodeSource(sourceRaw)
	if !ok {
		c.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		return false
	}
	place := PlaceCellData
	if num == LoadWitness {
		place = PlaceWitness
	}
	id, ok := dataPieceFromABI(source, entry, place, index)
	if !ok {
		c.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		return false
	}
	data, _, err := c.tv.Load(id, 0, 0)
	if err == ErrDataIndexOutOfBound {
		c.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		return false
	}
	if err == ErrDataSliceOutOfBound {
		data = nil
	}
	n, werr := storeData(c.machine, c.machine.Register(RegA0), c.machine.Register(RegA1), data, offset)
	return finishSync(c, n, werr)
}

func decodeSource(raw uint64) (Source, SourceEntry, bool) {
	source := Source(raw >> 8)
	entry := SourceEntry(raw & 0xff)
	if source > SourceGroup || entry > EntryHeaderDep {
		return 0, 0, false
	}
	return source, entry, true
}

func sysDebug(c *vmContext) bool {
	addr := c.machine.Register(RegA0)
	msg, err := c.machine.Memory().LoadCString(addr)
	if err != nil {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}
	if !c.charge(transferredByteCycles(uint64(len(msg)))) {
		return true
	}
	log.Debug("script debug", "vm", c.id, "msg", string(msg))
	c.machine.SetRegister(RegA0, uint64(Success))
	return false
}

func finishSync(c *vmContext, n uint64, err error) bool {
	if err != nil {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}
	if !c.charge(transferredByteCycles(n)) {
		return true
	}
	c.machine.SetRegister(RegA0, uint64(Success))
	return false
}

func sysFd(c *vmContext) bool {
	fd1Addr := c.machine.Register(RegA0)
	c.push(Message{Kind: MsgFd, VM: c.id, Fd: FdArgs{Fd1Addr: fd1Addr, Fd2Addr: fd1Addr + 8}})
	return true
}

func sysRead(c *vmContext) bool {
	pipe := PipeId(c.machine.Register(RegA0))
	bufferAddr := c.machine.Register(RegA1)
	lengthAddr := c.machine.Register(RegA2)
	length, err := loadC64(c.machine, lengthAddr)
	if err != nil {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}
	if !pipe.isRead() {
		c.machine.SetRegister(RegA0, uint64(InvalidPipe))
		return false
	}
	if !c.charge(transferredByteCycles(length)) {
		return true
	}
	c.push(Message{Kind: MsgPipeRead, VM: c.id, PipeIO: PipeIoArgs{Pipe: pipe, Length: length, BufferAddr: bufferAddr, LengthAddr: lengthAddr}})
	return true
}

func sysWrite(c *vmContext) bool {
	pipe := PipeId(c.machine.Register(RegA0))
	bufferAddr := c.machine.Register(RegA1)
	lengthAddr := c.machine.Register(RegA2)
	length, err := loadC64(c.machine, lengthAddr)
	if err != nil {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}
	if pipe.isRead() {
		c.machine.SetRegister(RegA0, uint64(InvalidPipe))
		return false
	}
	if !c.charge(transferredByteCycles(length)) {
		return true
	}
	c.push(Message{Kind: MsgPipeWrite, VM: c.id, PipeIO: PipeIoArgs{Pipe: pipe, Length: length, BufferAddr: bufferAddr, LengthAddr: lengthAddr}})
	return true
}

func sysClose(c *vmContext) bool {
	pipe := PipeId(c.machine.Register(RegA0))
	c.push(Message{Kind: MsgClosePipe, VM: c.id, ClosePipe: pipe})
	return true
}

func sysInheritedFd(c *vmContext) bool {
	bufferAddr := c.machine.Register(RegA0)
	lengthAddr := c.machine.Register(RegA1)
	c.push(Message{Kind: MsgInheritedFd, VM: c.id, InheritedFd: PipeIoArgs{BufferAddr: bufferAddr, LengthAddr: lengthAddr}})
	return true
}

func sysWait(c *vmContext) bool {
	child := VmId(c.machine.Register(RegA0))
	exitCodeAddr := c.machine.Register(RegA1)
	c.push(Message{Kind: MsgWait, VM: c.id, Wait: WaitArgs{Child: child, ExitCodeAddr: exitCodeAddr}})
	return true
}

func sysSpawn(c *vmContext) bool {
	index := uint32(c.machine.Register(RegA0))
	sourceRaw := c.machine.Register(RegA1)
	placeRaw := c.machine.Register(RegA2)
	bounds := c.machine.Register(RegA3)
	spgsAddr := c.machine.Register(RegA4)

	source, entry, ok := decodeSource(sourceRaw)
	place := Place(placeRaw)
	if !ok || place > PlaceWitness {
		c.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		return false
	}
	id, ok := dataPieceFromABI(source, entry, place, index)
	if !ok {
		c.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		return false
	}
	offset, length := unpackBounds(bounds)

	argc, err := loadC64(c.machine, spgsAddr)
	if err != nil {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}
	argvAddr, err := loadC64(c.machine, spgsAddr+8)
	if err != nil {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}
	processIDAddr, err := loadC64(c.machine, spgsAddr+16)
	if err != nil {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}
	pipesAddr, err := loadC64(c.machine, spgsAddr+24)
	if err != nil {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}

	argv, ok := readArgv(c.machine, argvAddr, argc)
	if !ok {
		c.fault = errVMInternal("argv too long")
		return true
	}

	var pipes []PipeId
	if pipesAddr != 0 {
		addr := pipesAddr
		for {
			v, err := loadC64(c.machine, addr)
			if err != nil || v == 0 {
				break
			}
			pipes = append(pipes, PipeId(v))
			addr += 8
		}
	}

	_, full, err := c.tv.Load(id, 0, 0)
	if err == ErrDataIndexOutOfBound {
		c.machine.SetRegister(RegA0, uint64(IndexOutOfBound))
		return false
	}
	if offset >= full {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}
	if length > 0 && offset+length > full {
		c.machine.SetRegister(RegA0, uint64(SliceOutOfBound))
		return false
	}

	if !c.charge(SpawnExtraCyclesBase) || !c.charge(transferredByteCycles(full)) {
		return true
	}

	c.push(Message{Kind: MsgSpawn, VM: c.id, Spawn: SpawnArgs{
		DataPieceID: id, Offset: offset, Length: length,
		Argv: argv, Pipes: pipes, ProcessIDAddr: processIDAddr,
	}})
	return true
}

// readArgv reads argc NUL-terminated C strings pointed to by the argv
// pointer array at addr, enforcing MAX_ARGV_LENGTH (8 bytes per pointer
// slot plus the string bytes). ok is false when the caller should fault
// the VM with ARGV_TOO_LONG.
func readArgv(m Machine, addr uint64, argc uint64) (argv [][]byte, ok bool) {
	var total uint64
	for i := uint64(0); i < argc; i++ {
		target, err := loadC64(m, addr)
		if err != nil {
			return nil, false
		}
		s, err := m.Memory().LoadCString(target)
		if err != nil {
			return nil, false
		}
		total += 8 + uint64(len(s))
		if total > MaxArgvLength {
			return nil, false
		}
		argv = append(argv, s)
		addr += 8
	}
	return argv, true
}
