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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/probeum/ckbvm/common"
	"github.com/probeum/ckbvm/vm"
)

func TestDecodeScriptRoundTrip(t *testing.T) {
	s := Script{CodeHash: common.BytesToHash([]byte("code")), HashType: HashTypeData, Args: []byte("hello")}
	decoded, err := decodeScript(s.encode())
	require.NoError(t, err)
	require.Equal(t, s.CodeHash, decoded.CodeHash)
	require.Equal(t, s.HashType, decoded.HashType)
	require.Equal(t, s.Args, decoded.Args)
}

func TestDecodeScriptRejectsMalformed(t *testing.T) {
	_, err := decodeScript([]byte{0xFF, 0xFF})
	require.Error(t, err)
}

func TestResolveCodeByDataHash(t *testing.T) {
	codeBytes := []byte("program-bytes")
	rtx := &ResolvedTransaction{
		CellDepData: [][]byte{codeBytes},
	}
	s := Script{CodeHash: common.BytesToHash(hashBytes(codeBytes)), HashType: HashTypeData}
	got, err := rtx.ResolveCode(s)
	require.NoError(t, err)
	require.Equal(t, codeBytes, got)
}

func TestResolveCodeByTypeHash(t *testing.T) {
	typeScript := Script{CodeHash: common.BytesToHash([]byte("type-id")), HashType: HashTypeType}
	codeBytes := []byte("type-backed-code")
	rtx := &ResolvedTransaction{
		CellDepCells: []CellOutput{{Capacity: 1, Type: &typeScript}},
		CellDepData:  [][]byte{codeBytes},
	}
	s := Script{CodeHash: typeScript.Hash(), HashType: HashTypeType}
	got, err := rtx.ResolveCode(s)
	require.NoError(t, err)
	require.Equal(t, codeBytes, got)
}

func TestResolveCodeNotFound(t *testing.T) {
	rtx := &ResolvedTransaction{CellDepData: [][]byte{[]byte("other")}}
	s := Script{CodeHash: common.BytesToHash([]byte("missing")), HashType: HashTypeData}
	_, err := rtx.ResolveCode(s)
	require.ErrorIs(t, err, ErrCodeNotFound)
}

func TestScriptGroupsPartitionsByLockAndType(t *testing.T) {
	lockA := Script{CodeHash: common.BytesToHash([]byte("lockA")), Args: []byte{1}}
	lockB := Script{CodeHash: common.BytesToHash([]byte("lockB")), Args: []byte{2}}
	typeA := Script{CodeHash: common.BytesToHash([]byte("typeA")), HashType: HashTypeType}

	tx := &Transaction{
		Outputs: []CellOutput{
			{Capacity: 1, Lock: lockA, Type: &typeA},
		},
	}
	rtx := &ResolvedTransaction{
		Tx: tx,
		InputCells: []CellOutput{
			{Capacity: 1, Lock: lockA},
			{Capacity: 1, Lock: lockA}, // same lock as input 0: one group, two members
			{Capacity: 1, Lock: lockB, Type: &typeA},
		},
	}

	groups := rtx.ScriptGroups()

	var lockGroups, typeGroups int
	for _, g := range groups {
		switch g.GroupKind {
		case vm.GroupLock:
			lockGroups++
		case vm.GroupTypeScript:
			typeGroups++
		}
	}
	require.Equal(t, 2, lockGroups) // lockA (shared by inputs 0,1), lockB
	require.Equal(t, 1, typeGroups) // typeA shared by input 2 and output 0

	for _, g := range groups {
		if g.GroupKind == vm.GroupLock {
			decoded, err := decodeScript(g.Script)
			require.NoError(t, err)
			if decoded.CodeHash == lockA.CodeHash {
				require.ElementsMatch(t, []uint32{0, 1}, g.InputIndices)
			}
		}
		if g.GroupKind == vm.GroupTypeScript {
			require.ElementsMatch(t, []uint32{2}, g.InputIndices)
			require.ElementsMatch(t, []uint32{0}, g.OutputIndices)
		}
	}
}

func TestBuildTxViewResolvesImageAndHash(t *testing.T) {
	codeBytes := []byte("image-bytes")
	lock := Script{CodeHash: common.BytesToHash(hashBytes(codeBytes)), HashType: HashTypeData, Args: []byte{9}}
	tx := &Transaction{
		Inputs:  []CellInput{{PreviousOutput: OutPoint{TxHash: common.BytesToHash([]byte("x")), Index: 0}}},
		Outputs: []CellOutput{{Capacity: 1, Lock: lock}},
	}
	rtx := &ResolvedTransaction{
		Tx:          tx,
		InputCells:  []CellOutput{{Capacity: 1, Lock: lock}},
		InputData:   [][]byte{{0x01}},
		CellDepData: [][]byte{codeBytes},
	}
	groups := rtx.ScriptGroups()
	require.Len(t, groups, 1)

	tv, image, err := rtx.BuildTxView(groups[0])
	require.NoError(t, err)
	require.Equal(t, codeBytes, image)
	require.Equal(t, tx.Hash(), tv.Hash)
}
