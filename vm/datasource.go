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

	lru "github.com/hashicorp/golang-lru"
)

// ErrDataIndexOutOfBound is returned by DataSource.Load when the addressed
// collection does not have a row at the requested index.
var ErrDataIndexOutOfBound = errors.New("data piece index out of bound")

// ErrDataSliceOutOfBound is returned by DataSource.Load when offset/length
// addresses bytes past the end of the resolved row.
var ErrDataSliceOutOfBound = errors.New("data piece slice out of bound")

// DataPieceKind tags which transaction collection a DataPieceId addresses.
type DataPieceKind uint8

const (
	KindInput DataPieceKind = iota
	KindOutput
	KindCellDep
	KindGroupInput
	KindGroupOutput
	KindWitness
	KindWitnessGroupInput
	KindWitnessGroupOutput
	KindScript
)

func (k DataPieceKind) String() string {
	names := [...]string{
		"Input", "Output", "CellDep", "GroupInput", "GroupOutput",
		"Witness", "WitnessGroupInput", "WitnessGroupOutput", "Script",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// DataPieceId addresses a byte-range source within the transaction view:
// cell data, a witness, or the current script group's script bytes.
type DataPieceId struct {
	Kind  DataPieceKind
	Index uint32
}

// dataPieceFromABI reconstructs a DataPieceId from the (source, sourceEntry,
// place, index) tuple the Spawn/Exec syscalls decode from registers, mapping
// it onto the 8-variant tagged DataPieceId spec.md §3 specifies.
func dataPieceFromABI(source Source, entry SourceEntry, place Place, index uint32) (DataPieceId, bool) {
	if place == PlaceWitness {
		switch {
		case source == SourceTransaction && entry == EntryInput:
			return DataPieceId{Kind: KindWitness, Index: index}, true
		case source == SourceTransaction && entry == EntryOutput:
			return DataPieceId{Kind: KindWitness, Index: index}, true
		case source == SourceGroup && entry == EntryInput:
			return DataPieceId{Kind: KindWitnessGroupInput, Index: index}, true
		case source == SourceGroup && entry == EntryOutput:
			return DataPieceId{Kind: KindWitnessGroupOutput, Index: index}, true
		default:
			return DataPieceId{}, false
		}
	}
	switch {
	case source == SourceTransaction && entry == EntryInput:
		return DataPieceId{Kind: KindInput, Index: index}, true
	case source == SourceTransaction && entry == EntryOutput:
		return DataPieceId{Kind: KindOutput, Index: index}, true
	case source == SourceTransaction && entry == EntryCellDep:
		return DataPieceId{Kind: KindCellDep, Index: index}, true
	case source == SourceGroup && entry == EntryInput:
		return DataPieceId{Kind: KindGroupInput, Index: index}, true
	case source == SourceGroup && entry == EntryOutput:
		return DataPieceId{Kind: KindGroupOutput, Index: index}, true
	default:
		return DataPieceId{}, false
	}
}

// DataSource loads byte ranges by data-piece identifier. length == 0 means
// "to the end of the row". Ranges are inclusive-exclusive: [offset, offset+length).
type DataSource interface {
	Load(id DataPieceId, offset, length uint64) (data []byte, fullLength uint64, err error)
}

// ScriptGroup groups the inputs/outputs sharing one lock or type script; one
// program execution runs per group.
type ScriptGroup struct {
	Script        []byte
	GroupKind     GroupKind
	InputIndices  []uint32 // indices into the transaction's inputs
	OutputIndices []uint32 // indices into the transaction's outputs
}

// GroupKind distinguishes a lock-script group from a type-script group.
type GroupKind uint8

const (
	GroupLock GroupKind = iota
	GroupTypeScript
)

// TxView is the resolved-transaction view the scheduler consumes: spec.md's
// TxData. It is also the concrete DataSource: cells and witnesses resolve
// directly against its slices.
type TxView struct {
	Hash [32]byte
	Raw  []byte // serialized transaction, returned by LOAD_TRANSACTION

	Inputs    [][]byte // resolved input cell data
	Outputs   [][]byte // resolved output cell data
	CellDeps  [][]byte // resolved cell-dep cell data
	Witnesses [][]byte

	Group ScriptGroup

	cache *lru.Cache // DataPieceId -> []byte, avoids re-slicing on repeat loads
}

// NewTxView constructs a TxView with a bounded resolution cache, matching
// the teacher's use of hashicorp/golang-lru for hot interpreter lookups.
func NewTxView(hash [32]byte, raw []byte, inputs, outputs, cellDeps, witnesses [][]byte, group ScriptGroup) *TxView {
	cache, _ := lru.New(256)
	return &TxView{
		Hash: hash, Raw: raw,
		Inputs: inputs, Outputs: outputs, CellDeps: cellDeps, Witnesses: witnesses,
		Group: group, cache: cache,
	}
}

func (tv *TxView) resolveFull(id DataPieceId) ([]byte, error) {
	if tv.cache != nil {
		if v, ok := tv.cache.Get(id); ok {
			return v.([]byte), nil
		}
	}
	var row []byte
	switch id.Kind {
	case KindInput:
		if int(id.Index) >= len(tv.Inputs) {
			return nil, ErrDataIndexOutOfBound
		}
		row = tv.Inputs[id.Index]
	case KindOutput:
		if int(id.Index) >= len(tv.Outputs) {
			return nil, ErrDataIndexOutOfBound
		}
		row = tv.Outputs[id.Index]
	case KindCellDep:
		if int(id.Index) >= len(tv.CellDeps) {
			return nil, ErrDataIndexOutOfBound
		}
		row = tv.CellDeps[id.Index]
	case KindGroupInput:
		if int(id.Index) >= len(tv.Group.InputIndices) {
			return nil, ErrDataIndexOutOfBound
		}
		actual := tv.Group.InputIndices[id.Index]
		if int(actual) >= len(tv.Inputs) {
			return nil, ErrDataIndexOutOfBound
		}
		row = tv.Inputs[actual]
	case KindGroupOutput:
		if int(id.Index) >= len(tv.Group.OutputIndices) {
			return nil, ErrDataIndexOutOfBound
		}
		actual := tv.Group.OutputIndices[id.Index]
		if int(actual) >= len(tv.Outputs) {
			return nil, ErrDataIndexOutOfBound
		}
		row = tv.Outputs[actual]
	case KindWitness:
		if int(id.Index) >= len(tv.Witnesses) {
			return nil, ErrDataIndexOutOfBound
		}
		row = tv.Witnesses[id.Index]
	case KindWitnessGroupInput:
		if int(id.Index) >= len(tv.Group.InputIndices) {
			return nil, ErrDataIndexOutOfBound
		}
		actual := tv.Group.InputIndices[id.Index]
		if int(actual) >= len(tv.Witnesses) {
			return nil, ErrDataIndexOutOfBound
		}
		row = tv.Witnesses[actual]
	case KindWitnessGroupOutput:
		if int(id.Index) >= len(tv.Group.OutputIndices) {
			return nil, ErrDataIndexOutOfBound
		}
		actual := tv.Group.OutputIndices[id.Index]
		if int(actual) >= len(tv.Witnesses) {
			return nil, ErrDataIndexOutOfBound
		}
		row = tv.Witnesses[actual]
	case KindScript:
		row = tv.Group.Script
	default:
		return nil, ErrDataIndexOutOfBound
	}
	if tv.cache != nil {
		tv.cache.Add(id, row)
	}
	return row, nil
}

// Load implements DataSource.
func (tv *TxView) Load(id DataPieceId, offset, length uint64) ([]byte, uint64, error) {
	row, err := tv.resolveFull(id)
	if err != nil {
		return nil, 0, err
	}
	full := uint64(len(row))
	if offset >= full {
		return nil, full, ErrDataSliceOutOfBound
	}
	end := full
	if length != 0 {
		end = offset + length
		if end > full {
			return nil, full, ErrDataSliceOutOfBound
		}
	}
	return row[offset:end], full, nil
}
