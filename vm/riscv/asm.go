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

package riscv

import "encoding/binary"

// Opcodes for the fixed-width bytecode this package interprets. Each one
// is chosen to mirror a RISC-V primitive closely enough to read as an
// instruction set rather than an ad-hoc format: register-register ALU,
// a load/store pair, branches, ecall, and an explicit exit.
const (
	OpNop       = 0x00
	OpLoadImm   = 0x01 // rd, imm64
	OpMov       = 0x02 // rd, rs
	OpAdd       = 0x03 // rd, rs1, rs2
	OpSub       = 0x04 // rd, rs1, rs2
	OpAddImm    = 0x05 // rd, rs, imm64
	OpLoad64    = 0x06 // rd, raddr
	OpStore64   = 0x07 // raddr, rv
	OpLoadByte  = 0x08 // rd, raddr
	OpStoreByte = 0x09 // raddr, rv
	OpJmp       = 0x0A // addr32
	OpJz        = 0x0B // rcond, addr32
	OpJnz       = 0x0C // rcond, addr32
	OpEcall     = 0x0D
	OpExit      = 0x0E // rs
	OpHalt      = 0x0F
)

// instrLen returns the fixed encoded length of an instruction beginning
// with this opcode, or 0 if the opcode is unknown.
func instrLen(op byte) int {
	switch op {
	case OpNop, OpEcall, OpHalt:
		return 1
	case OpExit:
		return 2
	case OpMov, OpLoad64, OpStore64, OpLoadByte, OpStoreByte:
		return 3
	case OpAdd, OpSub:
		return 4
	case OpJmp:
		return 5
	case OpJz, OpJnz:
		return 6
	case OpLoadImm:
		return 10
	case OpAddImm:
		return 11
	default:
		return 0
	}
}

func be32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func be64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// The following builders assemble one instruction's bytes each, meant to be
// concatenated into a Program.Code by callers authoring test programs.

func Nop() []byte { return []byte{OpNop} }

func LoadImm(rd uint8, imm uint64) []byte {
	return append([]byte{OpLoadImm, rd}, be64(imm)...)
}

func Mov(rd, rs uint8) []byte { return []byte{OpMov, rd, rs} }

func Add(rd, rs1, rs2 uint8) []byte { return []byte{OpAdd, rd, rs1, rs2} }

func Sub(rd, rs1, rs2 uint8) []byte { return []byte{OpSub, rd, rs1, rs2} }

func AddImm(rd, rs uint8, imm uint64) []byte {
	return append([]byte{OpAddImm, rd, rs}, be64(imm)...)
}

func Load64(rd, raddr uint8) []byte { return []byte{OpLoad64, rd, raddr} }

func Store64(raddr, rv uint8) []byte { return []byte{OpStore64, raddr, rv} }

func LoadByte(rd, raddr uint8) []byte { return []byte{OpLoadByte, rd, raddr} }

func StoreByte(raddr, rv uint8) []byte { return []byte{OpStoreByte, raddr, rv} }

func Jmp(addr uint32) []byte { return append([]byte{OpJmp}, be32(addr)...) }

func Jz(rcond uint8, addr uint32) []byte {
	return append([]byte{OpJz, rcond}, be32(addr)...)
}

func Jnz(rcond uint8, addr uint32) []byte {
	return append([]byte{OpJnz, rcond}, be32(addr)...)
}

func Ecall() []byte { return []byte{OpEcall} }

func Exit(rs uint8) []byte { return []byte{OpExit, rs} }

func Halt() []byte { return []byte{OpHalt} }

// Asm concatenates instruction byte slices into one code buffer, so a test
// program reads as a flat instruction listing.
func Asm(instrs ...[]byte) []byte {
	var out []byte
	for _, i := range instrs {
		out = append(out, i...)
	}
	return out
}
