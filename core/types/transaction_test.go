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
)

func sampleTx() *Transaction {
	return &Transaction{
		Version:    1,
		HeaderDeps: []common.Hash{common.BytesToHash([]byte("header"))},
		CellDeps: []OutPoint{
			{TxHash: common.BytesToHash([]byte("dep-tx")), Index: 0},
		},
		Inputs: []CellInput{
			{PreviousOutput: OutPoint{TxHash: common.BytesToHash([]byte("in-tx")), Index: 1}, Since: 0},
		},
		Outputs: []CellOutput{
			{
				Capacity: 1000,
				Lock:     Script{CodeHash: common.BytesToHash([]byte("lock")), HashType: HashTypeData, Args: []byte{1, 2}},
			},
		},
		OutputsData: [][]byte{{0xAA}},
		Witnesses:   [][]byte{{0xBB, 0xCC}},
	}
}

func TestTransactionHashDeterministic(t *testing.T) {
	tx1 := sampleTx()
	tx2 := sampleTx()
	require.Equal(t, tx1.Hash(), tx2.Hash())
	require.Equal(t, tx1.Serialize(), tx2.Serialize())
}

func TestTransactionHashChangesWithContent(t *testing.T) {
	tx1 := sampleTx()
	tx2 := sampleTx()
	tx2.Outputs[0].Capacity = 999
	require.NotEqual(t, tx1.Hash(), tx2.Hash())
}

func TestTransactionHashCoversWitnesses(t *testing.T) {
	tx1 := sampleTx()
	tx2 := sampleTx()
	tx2.Witnesses = [][]byte{{0xDD}}
	require.NotEqual(t, tx1.Hash(), tx2.Hash())
}

func TestCellOutputEncodeNilVsPresentType(t *testing.T) {
	withoutType := CellOutput{Capacity: 10, Lock: Script{Args: []byte{1}}}
	withType := withoutType
	ts := Script{CodeHash: common.BytesToHash([]byte("t")), Args: []byte{2}}
	withType.Type = &ts
	require.NotEqual(t, withoutType.encode(), withType.encode())
}

func TestScriptHashStable(t *testing.T) {
	s := Script{CodeHash: common.BytesToHash([]byte("code")), HashType: HashTypeType, Args: []byte("args")}
	require.Equal(t, s.Hash(), s.Hash())

	other := s
	other.Args = []byte("different")
	require.NotEqual(t, s.Hash(), other.Hash())
}
