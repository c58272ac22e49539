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

import "fmt"

// ScriptErrorKind classifies a fatal verification failure. Script-visible
// syscall failures (status codes written to A0) are never represented here;
// they never leave the syscall boundary.
type ScriptErrorKind uint8

const (
	// ValidationFailure means the root VM exited with a nonzero code.
	ValidationFailure ScriptErrorKind = iota
	// VMInternalError means a VM faulted: bad opcode, memory fault, argv
	// too long, or any other condition the program cannot recover from.
	VMInternalError
	// ExceededMaximumCycles means total cycle usage across all VMs would
	// have exceeded the transaction's budget.
	ExceededMaximumCycles
	// Unexpected means an internal invariant was violated: snapshot
	// corruption, a scheduler bug. Verification aborts immediately.
	Unexpected
)

func (k ScriptErrorKind) String() string {
	switch k {
	case ValidationFailure:
		return "ValidationFailure"
	case VMInternalError:
		return "VMInternalError"
	case ExceededMaximumCycles:
		return "ExceededMaximumCycles"
	case Unexpected:
		return "Unexpected"
	default:
		return "Unknown"
	}
}

// ScriptError is returned by Scheduler.Run whenever verification cannot
// produce a Completed or Suspended result.
type ScriptError struct {
	Kind ScriptErrorKind
	Code int8   // exit code, set when Kind == ValidationFailure
	Max  uint64 // budget, set when Kind == ExceededMaximumCycles
	Msg  string
}

func (e *ScriptError) Error() string {
	switch e.Kind {
	case ValidationFailure:
		return fmt.Sprintf("validation failure: exit code %d", e.Code)
	case ExceededMaximumCycles:
		return fmt.Sprintf("exceeded maximum cycles: %d", e.Max)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func errValidationFailure(code int8) *ScriptError {
	return &ScriptError{Kind: ValidationFailure, Code: code}
}

func errExceededMaximumCycles(max uint64) *ScriptError {
	return &ScriptError{Kind: ExceededMaximumCycles, Max: max}
}

func errVMInternal(msg string) *ScriptError {
	return &ScriptError{Kind: VMInternalError, Msg: msg}
}

func errUnexpected(msg string) *ScriptError {
	return &ScriptError{Kind: Unexpected, Msg: msg}
}
