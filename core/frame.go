// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package core

import (
	libcommon "github.com/erigontech/erigon-lib/common"
	"github.com/holiman/uint256"
)

// InstructionResult classifies how the top frame of execution ended. The
// base EVM interpreter produces one of these; the handler never inspects
// what happened inside the frame beyond this classification
// (return_ok!/return_revert! in original_source).
type InstructionResult uint8

const (
	InstructionStop InstructionResult = iota
	InstructionReturn
	InstructionRevert
	InstructionOutOfGas
	InstructionHalt
)

// IsOk reports membership in the Ok-family (Stop, Return, ...).
func (r InstructionResult) IsOk() bool {
	return r == InstructionStop || r == InstructionReturn
}

// IsRevert reports membership in the Revert-family.
func (r InstructionResult) IsRevert() bool { return r == InstructionRevert }

// IsHalt reports membership in the Halt-family (everything else: out of
// gas, invalid opcode, stack errors, ...).
func (r InstructionResult) IsHalt() bool {
	return !r.IsOk() && !r.IsRevert()
}

// FrameResult is the interpreter's return value for the top-level call or
// create frame: the base EVM's output, which the handler post-processes
// but never looks inside.
type FrameResult struct {
	Result     InstructionResult
	Output     []byte
	Gas        Gas
}

// HaltReason distinguishes why a Halt-class ExecutionResult occurred.
type HaltReason uint8

const (
	HaltReasonOther HaltReason = iota
	HaltReasonFailedDeposit
)

// ExecutionResult is the pipeline's final verdict for the transaction,
// returned to the driver alongside the resulting state changes
// (spec.md's ResultAndState).
type ExecutionResult struct {
	Success    bool
	Reverted   bool
	Halted     bool
	HaltReason HaltReason

	GasUsed     uint64
	GasRefunded uint64
	Output      []byte

	// Err carries the underlying execution error for Revert/Halt results;
	// nil on success.
	Err error
}

// StateChange is one account's post-transaction state, as assembled by
// End() for a synthesized failed-deposit outcome.
type StateChange struct {
	Address libcommon.Address
	Balance *uint256.Int
	Nonce   uint64
	Touched bool
}

// ResultAndState bundles the execution verdict with the state changes the
// pipeline produced outside of the normal journal flow (spec.md's
// ResultAndState). For a deposit that failed mid-pipeline, State holds a
// single entry: the rebuilt caller account (see End).
type ResultAndState struct {
	Result ExecutionResult
	State  []StateChange
}
