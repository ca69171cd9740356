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
	"github.com/holiman/uint256"
)

// The functions in this file are the base-chain-spec slot bodies: what a
// plain (non-Optimism) EVM does at each stage, generalized out of
// core/state_transition.go's buyGas/refundGas/coinbase-tip block the way
// original_source's mainnet module is the fallback every L2 handler wraps.
// core/optimism_handler.go calls into these directly for the pieces
// Optimism leaves unchanged, and layers its own behavior around the rest.

// min256 mirrors go-ethereum/erigon's common/math.Min256 helper; no
// ecosystem library exports a three-line uint256 min, so it is
// reimplemented locally rather than pulled in as a dependency.
func min256(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

// deductCallerInner subtracts the up-front gas cost (gasLimit * gasPrice)
// from the caller's balance. It is the base-chain-spec body DeductCaller
// calls after crediting a deposit's mint and before deducting the L1 cost
// and operator fee of a non-deposit.
func deductCallerInner(ctx *Context, gasCost *uint256.Int) error {
	caller := ctx.Env.Tx.Caller
	balance := ctx.State.GetBalance(caller)
	if !ctx.Env.Cfg.BalanceCheckDisabled && balance.Cmp(gasCost) < 0 {
		return invalidTx(&LackOfFundForMaxFeeError{Fee: gasCost, Balance: balance})
	}
	ctx.State.SubBalance(caller, gasCost)
	return nil
}

// reimburseCallerBase credits the caller with unused plus refunded gas at
// the tx's own gas price, the base-chain-spec portion of ReimburseCaller.
func reimburseCallerBase(ctx *Context, gas *Gas) *uint256.Int {
	remaining := new(uint256.Int).SetUint64(gas.Remaining() + gas.Refunded())
	reimbursement := new(uint256.Int).Mul(remaining, ctx.Env.Tx.GasPrice)
	ctx.State.AddBalance(ctx.Env.Tx.Caller, reimbursement)
	return reimbursement
}

// rewardBeneficiaryBase credits the block's coinbase with the effective tip
// on `used = spent - refunded`, the base-chain-spec portion of
// RewardBeneficiary.
func rewardBeneficiaryBase(ctx *Context, gas *Gas) {
	used := new(uint256.Int).SetUint64(gas.Spent() - gas.Refunded())
	tipPerGas := ctx.Env.Tx.GasTip
	if ctx.Env.Block.BaseFee != nil {
		effective := new(uint256.Int).Sub(ctx.Env.Tx.GasFeeCap, ctx.Env.Block.BaseFee)
		tipPerGas = min256(ctx.Env.Tx.GasTip, effective)
	}
	tip := new(uint256.Int).Mul(used, tipPerGas)
	ctx.State.AddBalance(ctx.Env.Block.Coinbase, tip)
	ctx.State.MarkTouch(ctx.Env.Block.Coinbase)
}

// outputBase assembles the base-chain-spec ExecutionResult from a frame's
// outcome and the settled Gas tracker.
func outputBase(frame *FrameResult, gas *Gas) ExecutionResult {
	res := ExecutionResult{
		GasUsed:     gas.Spent(),
		GasRefunded: gas.Refunded(),
		Output:      frame.Output,
	}
	switch {
	case frame.Result.IsOk():
		res.Success = true
	case frame.Result.IsRevert():
		res.Reverted = true
	default:
		res.Halted = true
		res.HaltReason = HaltReasonOther
	}
	return res
}

// clearBase is a no-op: the base chain spec carries no per-transaction
// handler state to reset.
func clearBase(_ *Context) {}
