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

import "github.com/probeum/ckbvm/log"

// Verify runs one script group's program to completion against tv, charging
// at most maxCycles across every VM it spawns. commands lets a caller pause
// a long-running verification (nil for "never pause"). newMach supplies a
// fresh Machine for the root VM and every spawned child; strict selects the
// v1-compatible subset that rejects Spawn/Fd/Read/Write/Close/InheritedFd
// with INDEX_OUT_OF_BOUND (Exec is not rejected).
func Verify(tv *TxView, maxCycles uint64, newMach MachineFactory, rootImage []byte, strict bool, commands <-chan Command) VerifyResult {
	s, err := NewScheduler(tv, maxCycles, newMach, rootImage)
	if err != nil {
		log.Warn("verification setup failed", "group", tv.Group.GroupKind, "err", err)
		return VerifyResult{Kind: ResultFailed, Err: err}
	}
	s.Strict(strict)
	return s.Run(commands)
}
