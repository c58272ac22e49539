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

// Package consensus marks the boundary to the header-chain verifier a host
// chain would plug in. Script verification never needs to check a block's
// proof-of-work/stake, difficulty, or timestamp; it only needs to know that
// header deps it was handed were already accepted. HeaderVerifier exists so
// vm.TxView construction can depend on that guarantee through an interface
// rather than importing a concrete consensus engine.
package consensus

import "github.com/probeum/ckbvm/common"

// HeaderVerifier reports whether a header hash named in a transaction's
// header deps has been accepted by the chain. Everything about how that
// decision is reached (PoW, PoS, BFT) is out of scope here.
type HeaderVerifier interface {
	IsHeaderAccepted(hash common.Hash) bool
}

// AcceptAllVerifier is a HeaderVerifier that accepts every hash, suitable
// for running the scheduler in isolation (tests, the ckbvmd CLI fixture
// runner) where no real header chain is wired up.
type AcceptAllVerifier struct{}

func (AcceptAllVerifier) IsHeaderAccepted(common.Hash) bool { return true }
