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

// Package riscv is a concrete, deterministic implementation of vm.Machine.
// It does not decode real RISC-V ELF binaries or instruction encodings;
// spec.md treats the instruction set itself as an external dependency, so
// this package stands in for it with a small fixed-width bytecode sufficient
// to author and run the scheduler's own test programs. Every opcode maps
// onto a RISC-V equivalent closely enough (register-to-register ALU ops, a
// load/store pair, branches, ecall, exit) that a reader familiar with the
// real ISA will recognize the shape.
package riscv

import (
	"encoding/binary"
	"errors"
)

var imageMagic = [4]byte{'C', 'K', 'V', 'M'}

const imageVersion = 1

// ErrBadImage is returned by LoadELF when the input does not begin with the
// expected magic/version header, surfacing as WRONG_FORMAT to the script.
var ErrBadImage = errors.New("riscv: bad image magic or version")

// Program is the in-memory form of one encoded image: entry point plus the
// raw bytecode. Encode serializes it to the wire format LoadELF consumes.
type Program struct {
	Entry uint32
	Code  []byte
}

// Encode serializes p into the image format this package's LoadELF accepts.
func (p Program) Encode() []byte {
	out := make([]byte, 0, 9+len(p.Code))
	out = append(out, imageMagic[:]...)
	out = append(out, imageVersion)
	var entryBuf, lenBuf [4]byte
	binary.BigEndian.PutUint32(entryBuf[:], p.Entry)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p.Code)))
	out = append(out, entryBuf[:]...)
	out = append(out, lenBuf[:]...)
	out = append(out, p.Code...)
	return out
}

func decodeImage(image []byte) (Program, error) {
	if len(image) < 9 || [4]byte{image[0], image[1], image[2], image[3]} != imageMagic || image[4] != imageVersion {
		return Program{}, ErrBadImage
	}
	entry := binary.BigEndian.Uint32(image[5:9])
	if len(image) < 13 {
		return Program{}, ErrBadImage
	}
	codeLen := binary.BigEndian.Uint32(image[9:13])
	if uint32(len(image)-13) < codeLen {
		return Program{}, ErrBadImage
	}
	code := image[13 : 13+codeLen]
	return Program{Entry: entry, Code: code}, nil
}
