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

package types

import (
	"bytes"
	"crypto/sha256"
	"errors"

	"github.com/probeum/ckbvm/common"
	"github.com/probeum/ckbvm/rlp"
	"github.com/probeum/ckbvm/vm"
)

// decodeScript is encode's inverse, used to recover the Script struct from
// the serialized bytes a vm.ScriptGroup carries.
func decodeScript(data []byte) (Script, error) {
	item, _, err := rlp.Decode(data)
	if err != nil || len(item.List) != 3 {
		return Script{}, errors.New("types: malformed script")
	}
	hashType := byte(0)
	if len(item.List[1].Bytes) == 1 {
		hashType = item.List[1].Bytes[0]
	}
	return Script{
		CodeHash: common.BytesToHash(item.List[0].Bytes),
		HashType: hashType,
		Args:     append([]byte{}, item.List[2].Bytes...),
	}, nil
}

// Hash-type tags for Script.CodeHash, mirroring the two ways a chain can
// bind a script to code: an exact match on the code cell's data hash, or a
// match on a type script's hash (letting code live behind an upgradable
// type id instead of a fixed content hash).
const (
	HashTypeData byte = 0
	HashTypeType byte = 1
)

// ErrCodeNotFound is returned when no resolved cell dep's data or type
// script matches a Script's CodeHash/HashType pair.
var ErrCodeNotFound = errors.New("types: code cell not found among cell deps")

// ErrEmptyScriptGroup is returned when a transaction resolves to zero
// script groups, which would leave nothing for Verify to run.
var ErrEmptyScriptGroup = errors.New("types: transaction has no script groups")

// Hash returns the sha256 of the script's serialized form, used to match
// HashTypeType code references.
func (s Script) Hash() common.Hash {
	return common.BytesToHash(hashBytes(s.encode()))
}

func hashBytes(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// ResolvedTransaction pairs a Transaction with the cells its inputs consume
// and its cell deps reference, which the transaction itself only names by
// OutPoint. Resolving those references against the chain's live cell set
// is outside this package's scope; callers hand in the already-resolved
// cells in input/cell-dep order.
type ResolvedTransaction struct {
	Tx *Transaction

	InputCells []CellOutput
	InputData  [][]byte

	CellDepCells []CellOutput
	CellDepData  [][]byte
}

// ResolveCode finds the code bytes a script's CodeHash/HashType refers to
// among the transaction's resolved cell deps.
func (rtx *ResolvedTransaction) ResolveCode(script Script) ([]byte, error) {
	switch script.HashType {
	case HashTypeData:
		for i, data := range rtx.CellDepData {
			if bytes.Equal(hashBytes(data), script.CodeHash.Bytes()) {
				return rtx.CellDepData[i], nil
			}
		}
	case HashTypeType:
		for i, cell := range rtx.CellDepCells {
			if cell.Type != nil && cell.Type.Hash() == script.CodeHash {
				return rtx.CellDepData[i], nil
			}
		}
	}
	return nil, ErrCodeNotFound
}

// group accumulates one script's membership while scanning inputs/outputs.
type group struct {
	script        Script
	kind          vm.GroupKind
	inputIndices  []uint32
	outputIndices []uint32
}

func scriptKey(s Script) string { return string(s.encode()) }

// ScriptGroups partitions a resolved transaction's inputs and outputs into
// the lock-script and type-script groups each program execution runs
// against: one group per distinct lock script among the inputs, plus one
// group per distinct type script among inputs and outputs combined.
func (rtx *ResolvedTransaction) ScriptGroups() []vm.ScriptGroup {
	order := []string{}
	groups := map[string]*group{}

	add := func(key string, s Script, kind vm.GroupKind, isInput bool, idx uint32) {
		g, ok := groups[key]
		if !ok {
			g = &group{script: s, kind: kind}
			groups[key] = g
			order = append(order, key)
		}
		if isInput {
			g.inputIndices = append(g.inputIndices, idx)
		} else {
			g.outputIndices = append(g.outputIndices, idx)
		}
	}

	for i, cell := range rtx.InputCells {
		add("lock:"+scriptKey(cell.Lock), cell.Lock, vm.GroupLock, true, uint32(i))
		if cell.Type != nil {
			add("type:"+scriptKey(*cell.Type), *cell.Type, vm.GroupTypeScript, true, uint32(i))
		}
	}
	for i, cell := range rtx.Tx.Outputs {
		if cell.Type != nil {
			add("type:"+scriptKey(*cell.Type), *cell.Type, vm.GroupTypeScript, false, uint32(i))
		}
	}

	out := make([]vm.ScriptGroup, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, vm.ScriptGroup{
			Script:        g.script.encode(),
			GroupKind:     g.kind,
			InputIndices:  g.inputIndices,
			OutputIndices: g.outputIndices,
		})
	}
	return out
}

// BuildTxView constructs the TxView and resolves the program image for one
// script group: LOAD_* data sources bound to every input/output/cell-dep/
// witness, plus the code cell ResolveCode finds for the group's script.
func (rtx *ResolvedTransaction) BuildTxView(g vm.ScriptGroup) (*vm.TxView, []byte, error) {
	script, err := decodeScript(g.Script)
	if err != nil {
		return nil, nil, err
	}
	image, err := rtx.ResolveCode(script)
	if err != nil {
		return nil, nil, err
	}

	hash := rtx.Tx.Hash()
	tv := vm.NewTxView(hash, rtx.Tx.Serialize(), rtx.InputData, rtx.Tx.OutputsData, rtx.CellDepData, rtx.Tx.Witnesses, g)
	return tv, image, nil
}
