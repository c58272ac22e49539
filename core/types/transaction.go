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

// Package types contains the cell-model transaction structures the scheduler
// verifies scripts against: a transaction spends OutPoints into new Cells,
// each cell guarded by a lock Script and optionally a type Script.
package types

import (
	"crypto/sha256"

	"github.com/probeum/ckbvm/common"
	"github.com/probeum/ckbvm/rlp"
)

// OutPoint addresses one cell produced by a previous transaction.
type OutPoint struct {
	TxHash common.Hash
	Index  uint32
}

// CellInput references the cell an input consumes, plus the number of
// block/epoch periods it must wait since that cell matured.
type CellInput struct {
	PreviousOutput OutPoint
	Since          uint64
}

// Script is executable code plus the arguments it runs with. HashType
// selects how CodeHash is interpreted when the chain resolves which cell's
// data backs the program (data hash vs. type-script hash); that resolution
// itself is outside this package's scope.
type Script struct {
	CodeHash common.Hash
	HashType byte
	Args     []byte
}

// CellOutput is a transaction output: a capacity, a mandatory lock script,
// and an optional type script.
type CellOutput struct {
	Capacity uint64
	Lock     Script
	Type     *Script
}

// Transaction is the cell-model transaction shape: header deps for
// timestamp/epoch context, cell deps providing extra code/data cells,
// inputs consumed, and new outputs produced. Witnesses align positionally
// with Inputs (plus any trailing entries belonging to no input).
type Transaction struct {
	Version     uint32
	HeaderDeps  []common.Hash
	CellDeps    []OutPoint
	Inputs      []CellInput
	Outputs     []CellOutput
	OutputsData [][]byte
	Witnesses   [][]byte
}

func (o OutPoint) encode() []byte {
	return rlp.EncodeList(rlp.EncodeBytes(o.TxHash.Bytes()), rlp.EncodeUint64(uint64(o.Index)))
}

func (i CellInput) encode() []byte {
	return rlp.EncodeList(i.PreviousOutput.encode(), rlp.EncodeUint64(i.Since))
}

func (s Script) encode() []byte {
	return rlp.EncodeList(
		rlp.EncodeBytes(s.CodeHash.Bytes()),
		rlp.EncodeBytes([]byte{s.HashType}),
		rlp.EncodeBytes(s.Args),
	)
}

func (o CellOutput) encode() []byte {
	typeScript := rlp.EncodeList()
	if o.Type != nil {
		typeScript = o.Type.encode()
	}
	return rlp.EncodeList(rlp.EncodeUint64(o.Capacity), o.Lock.encode(), typeScript)
}

// Serialize produces the canonical byte encoding LOAD_TRANSACTION returns and
// Hash hashes, in the same RLP-list-of-fields shape the teacher's now-removed
// account-model transaction types used for their own envelope encoding.
func (tx *Transaction) Serialize() []byte {
	cellDeps := make([][]byte, len(tx.CellDeps))
	for i, d := range tx.CellDeps {
		cellDeps[i] = d.encode()
	}
	headerDeps := make([][]byte, len(tx.HeaderDeps))
	for i, h := range tx.HeaderDeps {
		headerDeps[i] = rlp.EncodeBytes(h.Bytes())
	}
	inputs := make([][]byte, len(tx.Inputs))
	for i, in := range tx.Inputs {
		inputs[i] = in.encode()
	}
	outputs := make([][]byte, len(tx.Outputs))
	for i, out := range tx.Outputs {
		outputs[i] = out.encode()
	}
	outputsData := make([][]byte, len(tx.OutputsData))
	for i, d := range tx.OutputsData {
		outputsData[i] = rlp.EncodeBytes(d)
	}
	witnesses := make([][]byte, len(tx.Witnesses))
	for i, w := range tx.Witnesses {
		witnesses[i] = rlp.EncodeBytes(w)
	}
	return rlp.EncodeList(
		rlp.EncodeUint64(uint64(tx.Version)),
		rlp.EncodeList(headerDeps...),
		rlp.EncodeList(cellDeps...),
		rlp.EncodeList(inputs...),
		rlp.EncodeList(outputs...),
		rlp.EncodeList(outputsData...),
		rlp.EncodeList(witnesses...),
	)
}

// Hash returns the sha256 of the transaction's serialized form. Witnesses
// are covered like every other field: this package does not separate a
// signature-excluded "signing hash" from a full transaction hash.
func (tx *Transaction) Hash() common.Hash {
	sum := sha256.Sum256(tx.Serialize())
	return common.Hash(sum)
}
