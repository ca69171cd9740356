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

// Package core implements the Optimism transaction-lifecycle handler: the
// validation, pre-execution, post-execution and bookkeeping slots a driving
// EVM loop calls around the actual instruction interpreter, which remains an
// external collaborator this package never constructs.
package core

import (
	"github.com/holiman/uint256"

	"github.com/optimism-go/txhandler/core/types"
	"github.com/optimism-go/txhandler/params"
)

// Context bundles the per-transaction collaborators every slot needs:
// the environment, the journaled state, the raw database, and the fork
// gate. Handler methods read but never replace these.
type Context struct {
	Env   *Env
	State IntraBlockState
	DB    Database
	Rules params.Rules

	// L1Block is populated lazily by ValidateTxAgainstState on the first
	// non-deposit transaction and cleared by Clear (spec.md §3).
	L1Block *L1BlockInfoCache
}

// Handler holds the eleven reassignable slot functions a chain's execution
// personality fills in, the Go analogue of original_source's EvmHandler:
// each field is a pluggable stage a driving loop invokes in order, the way
// eth/stagedsync's []*Stage assigns a Forward/Unwind/Prune closure per
// stage instead of hard-coding the stage body inline.
type Handler struct {
	// ValidateEnv checks the Env for internal consistency before any state
	// is touched (spec.md §4.1).
	ValidateEnv func(ctx *Context) error

	// ValidateTxAgainstState checks the transaction against the sender's
	// current account state: nonce, EIP-3607, balance (spec.md §4.2).
	ValidateTxAgainstState func(ctx *Context) error

	// LoadPrecompiles selects the active precompile set for this block's
	// fork rules (spec.md §4.3).
	LoadPrecompiles func(ctx *Context) *PrecompileRegistry

	// DeductCaller subtracts the up-front gas cost (and L1 cost, and
	// operator fee) from the caller's balance (spec.md §4.4).
	DeductCaller func(ctx *Context, gas *Gas) error

	// LastFrameReturn reconciles the top frame's outcome with the Gas
	// tracker: erasing unspent gas and folding in the frame's own refund
	// (spec.md §4.5).
	LastFrameReturn func(ctx *Context, frame *FrameResult)

	// Refund applies EIP-7702 and EIP-3529 refund-capping rules to the Gas
	// tracker (spec.md §4.6).
	Refund func(ctx *Context, gas *Gas, frameResult InstructionResult)

	// ReimburseCaller credits the caller with their unused gas and, for a
	// non-deposit, the operator fee refund on that unused gas; the L1 cost
	// is not refunded (spec.md §4.7).
	ReimburseCaller func(ctx *Context, gas *Gas) error

	// RewardBeneficiary credits the block's fee vaults: the coinbase tip,
	// and on Optimism the L1 fee vault, the base fee vault and (Isthmus+)
	// the operator fee vault (spec.md §4.8).
	RewardBeneficiary func(ctx *Context, gas *Gas) error

	// Output assembles the final ExecutionResult from the frame outcome
	// and the settled Gas tracker (spec.md §4.9).
	Output func(ctx *Context, frame *FrameResult, gas *Gas) ExecutionResult

	// End is the last-chance hook: on a deposit that failed with an
	// invalid-transaction error anywhere in the pipeline, it rebuilds the
	// caller from raw DB state, credits the
	// mint unconditionally and reports a synthesized Halt instead of
	// propagating the error (spec.md §4.10).
	End func(ctx *Context, result ExecutionResult, err error) (ExecutionResult, []StateChange)

	// Clear resets any handler-owned per-transaction cache, in particular
	// the lazily-fetched L1BlockInfo (spec.md §4.11).
	Clear func(ctx *Context)
}

// L1BlockInfoCache is the lazily-populated, once-per-transaction cache of
// L1 fee parameters Context.L1Block holds.
type L1BlockInfoCache struct {
	info *types.L1BlockInfo
}

// Get returns the cached info, or nil if TryFetch was never called (or
// Clear reset it since).
func (c *L1BlockInfoCache) Get() *types.L1BlockInfo {
	if c == nil {
		return nil
	}
	return c.info
}

// TryFetch populates the cache on first use and returns the cached value on
// every call after, matching the "fetch once per tx" contract spec.md §3
// describes for L1BlockInfo.
func (c *L1BlockInfoCache) TryFetch(db types.StateGetter, rules params.Rules) (*types.L1BlockInfo, error) {
	if c.info != nil {
		return c.info, nil
	}
	info, err := types.TryFetchL1BlockInfo(db, rules)
	if err != nil {
		return nil, err
	}
	c.info = info
	return c.info, nil
}

// Reset drops the cached value; called from Clear.
func (c *L1BlockInfoCache) Reset() { c.info = nil }

// MintAmount returns zero instead of nil for an Env that carries no mint,
// so callers can add it to a balance unconditionally.
func MintAmount(env *Env) *uint256.Int {
	if env.Tx.Optimism.Mint == nil {
		return new(uint256.Int)
	}
	return env.Tx.Optimism.Mint
}
