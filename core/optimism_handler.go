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
	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/holiman/uint256"
)

// The three fee vaults an Optimism block ultimately pays into
// (spec.md §3 "fee vaults"), matching the superchain-registry predeploy
// addresses.
var (
	BaseFeeRecipient     = libcommon.HexToAddress("0x4200000000000000000000000000000000000019")
	L1FeeRecipient       = libcommon.HexToAddress("0x420000000000000000000000000000000000001a")
	OperatorFeeRecipient = libcommon.HexToAddress("0x420000000000000000000000000000000000001b")
)

// emptyCodeHash is keccak256(""), the code hash of every account that owns
// no bytecode.
var emptyCodeHash = libcommon.HexToHash("0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")

// NewOptimismHandler builds the Handler whose eleven slots implement
// spec.md §4.1-§4.11, wrapping the base-chain-spec bodies in
// mainnet_handler.go wherever Optimism only adds to, rather than replaces,
// the base behavior.
func NewOptimismHandler() *Handler {
	return &Handler{
		ValidateEnv:            optimismValidateEnv,
		ValidateTxAgainstState: optimismValidateTxAgainstState,
		LoadPrecompiles:        func(ctx *Context) *PrecompileRegistry { return LoadPrecompiles(ctx.Rules) },
		DeductCaller:           optimismDeductCaller,
		LastFrameReturn:        optimismLastFrameReturn,
		Refund:                 optimismRefund,
		ReimburseCaller:        optimismReimburseCaller,
		RewardBeneficiary:      optimismRewardBeneficiary,
		Output:                 optimismOutput,
		End:                    optimismEnd,
		Clear:                  optimismClear,
	}
}

// optimismValidateEnv checks the Env for internal consistency before any
// state is touched (spec.md §4.1): a non-deposit transaction must carry a
// fee cap at least as large as its tip, and blob parameters must agree
// with the block's excess blob gas being set.
func optimismValidateEnv(ctx *Context) error {
	tx := &ctx.Env.Tx
	if tx.Optimism.IsDeposit() {
		return nil
	}
	if tx.GasFeeCap.Cmp(tx.GasTip) < 0 {
		return invalidTx(ErrFeeCapLessThanTip)
	}
	if tx.BlobGasLimit > 0 && ctx.Env.Block.ExcessBlobGas == nil {
		return invalidTx(ErrMissingEnvelope)
	}
	return nil
}

// optimismValidateTxAgainstState checks the transaction against the
// sender's current account state (spec.md §4.2). Deposit transactions skip
// the nonce, EIP-3607 and balance checks entirely: the mint and the
// protocol's own L1 inclusion guarantee replace them.
func optimismValidateTxAgainstState(ctx *Context) error {
	tx := &ctx.Env.Tx
	if tx.Optimism.IsDeposit() {
		if tx.Optimism.IsSystemTransaction && ctx.Rules.IsOptimismRegolith {
			return invalidTx(ErrDepositSystemTxRegolith)
		}
		return nil
	}

	caller := tx.Caller
	if !ctx.Env.Cfg.EIP3607Disabled && ctx.State.Exist(caller) {
		if codeHash := ctx.State.GetCodeHash(caller); codeHash != emptyCodeHash {
			if _, isDelegated := ctx.State.GetDelegatedDesignation(caller); !isDelegated {
				return invalidTx(ErrSenderNoEOA)
			}
		}
	}

	if tx.Nonce != nil {
		stateNonce := ctx.State.GetNonce(caller)
		if *tx.Nonce != stateNonce {
			return invalidTx(&NonceError{Msg: "nonce mismatch", Tx: *tx.Nonce, State: stateNonce})
		}
	}

	if _, err := ctx.L1Block.TryFetch(ctx.DB, ctx.Rules); err != nil {
		return err
	}

	if ctx.Env.Cfg.BalanceCheckDisabled {
		return nil
	}
	required, overflow := checkedTxCost(ctx)
	if overflow {
		return invalidTx(ErrOverflowPayment)
	}
	balance := ctx.State.GetBalance(caller)
	if balance.Cmp(required) < 0 {
		return invalidTx(&LackOfFundForMaxFeeError{Fee: required, Balance: balance})
	}
	return nil
}

// checkedTxCost computes gasLimit*gasFeeCap + value + L1 cost + operator
// fee (+ the blob fee, if any) using checked (overflow-detecting)
// arithmetic, the validation-phase counterpart to optimismDeductCaller's
// saturating subtraction of the L1 cost and operator fee.
func checkedTxCost(ctx *Context) (total *uint256.Int, overflow bool) {
	tx := &ctx.Env.Tx
	gasLimit := new(uint256.Int).SetUint64(tx.GasLimit)

	total = new(uint256.Int)
	if _, of := total.MulOverflow(gasLimit, tx.GasFeeCap); of {
		return nil, true
	}
	if _, of := total.AddOverflow(total, tx.Value); of {
		return nil, true
	}
	l1Cost := ctx.L1Block.Get().CalculateTxL1Cost(tx.Optimism.EnvelopedTx, ctx.Rules)
	if _, of := total.AddOverflow(total, l1Cost); of {
		return nil, true
	}
	opFee := ctx.L1Block.Get().OperatorFeeCharge(gasLimit, ctx.Rules)
	if _, of := total.AddOverflow(total, opFee); of {
		return nil, true
	}
	if blobFee := ctx.Env.maxDataFee(); blobFee != nil {
		if _, of := total.AddOverflow(total, blobFee); of {
			return nil, true
		}
	}
	return total, false
}

// optimismDeductCaller subtracts the up-front cost from the caller's
// balance (spec.md §4.4). A deposit's mint is credited unconditionally
// first; a pre-Regolith system transaction is charged nothing further. A
// non-deposit first has its gas cost deducted through deductCallerInner,
// then the L1 data cost plus the operator fee deducted with saturating
// arithmetic.
func optimismDeductCaller(ctx *Context, gas *Gas) error {
	tx := &ctx.Env.Tx
	caller := tx.Caller

	if tx.Optimism.IsDeposit() {
		ctx.State.AddBalance(caller, MintAmount(ctx.Env))
		if tx.Optimism.IsSystemTransaction && !ctx.Rules.IsOptimismRegolith {
			return nil
		}
		gasCost := new(uint256.Int).Mul(new(uint256.Int).SetUint64(tx.GasLimit), tx.GasPrice)
		return deductCallerInner(ctx, gasCost)
	}

	gasCost := new(uint256.Int).Mul(new(uint256.Int).SetUint64(tx.GasLimit), tx.GasPrice)
	if err := deductCallerInner(ctx, gasCost); err != nil {
		return err
	}
	l1Cost := ctx.L1Block.Get().CalculateTxL1Cost(tx.Optimism.EnvelopedTx, ctx.Rules)
	opFee := ctx.L1Block.Get().OperatorFeeCharge(new(uint256.Int).SetUint64(tx.GasLimit), ctx.Rules)

	fees := new(uint256.Int).Add(l1Cost, opFee)
	if balance := ctx.State.GetBalance(caller); balance.Cmp(fees) < 0 {
		fees = balance
	}
	ctx.State.SubBalance(caller, fees)
	log.Debug("deducted caller", "caller", caller, "gasCost", gasCost, "l1Cost", l1Cost, "operatorFee", opFee)
	return nil
}

// optimismLastFrameReturn reconciles the top frame's outcome against the
// fork x tx-kind x outcome table (spec.md §4.5). A deposit transaction
// reports gas usage uniquely from a regular one because it is pre-paid on
// L1, so the frame's Gas is first reset to fully spent (NewSpentGas) and
// then selectively re-credited:
//
//   - Ok, and (not a deposit, or Regolith is active): gas and refund are
//     reported as normal.
//   - Ok, pre-Regolith system deposit: reports zero gas used.
//   - Ok, pre-Regolith non-system deposit: reports the full gas limit used,
//     no refund (the reset alone already leaves this in place).
//   - Revert, and (not a deposit, or Regolith is active): unspent gas is
//     refunded, no EIP-3529 refund.
//   - Revert, pre-Regolith deposit: reports the full gas limit used.
//   - Halt: reports the full gas limit used, regardless of fork or kind.
func optimismLastFrameReturn(ctx *Context, frame *FrameResult) {
	tx := &ctx.Env.Tx
	isDeposit := tx.Optimism.IsDeposit()
	isSystemTx := tx.Optimism.IsSystemTransaction
	isRegolith := ctx.Rules.IsOptimismRegolith

	remaining := frame.Gas.Remaining()
	refunded := frame.Gas.Refunded()
	frame.Gas = NewSpentGas(tx.GasLimit)

	switch {
	case frame.Result.IsOk():
		switch {
		case !isDeposit || isRegolith:
			frame.Gas.EraseCost(remaining)
			frame.Gas.RecordRefund(int64(refunded))
		case isSystemTx:
			frame.Gas.EraseCost(tx.GasLimit)
		}
	case frame.Result.IsRevert():
		if !isDeposit || isRegolith {
			frame.Gas.EraseCost(remaining)
		}
	}
}

// optimismRefund records the EIP-7702 authorization refund and applies the
// EIP-3529 refund cap (spec.md §4.6). The EIP-7702 refund is recorded for
// every frame outcome and transaction kind. The cap is applied only to an
// Ok frame, and not when refunds are disabled by cfg or the transaction is
// a pre-Regolith deposit; in those cases the refund counter is left as it
// stands. For a revert, a halt and a pre-Regolith deposit, LastFrameReturn
// has already dropped the frame's own refund.
func optimismRefund(ctx *Context, gas *Gas, frameResult InstructionResult) {
	if ctx.Env.Tx.AuthorizationCount > 0 {
		gas.RecordRefund(eip7702RefundFor(ctx.Env.Tx.AuthorizationCount))
	}
	if !frameResult.IsOk() {
		return
	}

	isDeposit := ctx.Env.Tx.Optimism.IsDeposit()
	refundDisabled := ctx.Env.Cfg.GasRefundDisabled || (isDeposit && !ctx.Rules.IsOptimismRegolith)
	if refundDisabled {
		return
	}
	gas.SetFinalRefund(ctx.Rules.IsLondon)
}

// optimismReimburseCaller credits the caller with their unused gas at the
// tx's own gas price, plus the proportional operator fee refund on unused
// gas for a non-deposit transaction (spec.md §4.7).
func optimismReimburseCaller(ctx *Context, gas *Gas) error {
	reimburseCallerBase(ctx, gas)
	if ctx.Env.Tx.Optimism.IsDeposit() {
		return nil
	}
	refund := ctx.L1Block.Get().OperatorFeeRefund(gas.Remaining(), ctx.Rules)
	ctx.State.AddBalance(ctx.Env.Tx.Caller, refund)
	return nil
}

// optimismRewardBeneficiary credits the coinbase tip, and for a
// non-deposit transaction the L1 fee vault, the base fee vault, and
// (Isthmus+) the operator fee vault (spec.md §4.8). All three vaults are
// loaded, marked touched, then credited in that order — the ordering is
// identical across all three, not asymmetric. The base-fee and
// operator-fee credits are both computed over `used = spent - refunded`,
// matching the coinbase tip in rewardBeneficiaryBase.
func optimismRewardBeneficiary(ctx *Context, gas *Gas) error {
	rewardBeneficiaryBase(ctx, gas)
	if ctx.Env.Tx.Optimism.IsDeposit() {
		return nil
	}

	used := new(uint256.Int).SetUint64(gas.Spent() - gas.Refunded())

	l1Cost := ctx.L1Block.Get().CalculateTxL1Cost(ctx.Env.Tx.Optimism.EnvelopedTx, ctx.Rules)
	ctx.State.MarkTouch(L1FeeRecipient)
	ctx.State.AddBalance(L1FeeRecipient, l1Cost)

	baseFeeCredit := new(uint256.Int).Mul(ctx.Env.Block.BaseFee, used)
	ctx.State.MarkTouch(BaseFeeRecipient)
	ctx.State.AddBalance(BaseFeeRecipient, baseFeeCredit)

	if ctx.Rules.IsOptimismIsthmus {
		opFee := ctx.L1Block.Get().OperatorFeeCharge(used, ctx.Rules)
		ctx.State.MarkTouch(OperatorFeeRecipient)
		ctx.State.AddBalance(OperatorFeeRecipient, opFee)
	}
	return nil
}

// optimismOutput assembles the final ExecutionResult; Optimism adds
// nothing beyond the base-chain-spec assembly (spec.md §4.9).
func optimismOutput(_ *Context, frame *FrameResult, gas *Gas) ExecutionResult {
	return outputBase(frame, gas)
}

// optimismEnd is the last-chance hook (spec.md §4.10). A non-deposit's
// error, and any error outside the invalid-transaction class, propagates
// unchanged. A deposit that failed with an invalid-transaction error
// anywhere in the pipeline instead has its caller account rebuilt straight
// from the raw
// database (bypassing the journal's rollback), its nonce bumped, its mint
// credited unconditionally, and is reported as a synthesized
// FailedDeposit halt rather than an error.
func optimismEnd(ctx *Context, result ExecutionResult, err error) (ExecutionResult, []StateChange) {
	if err == nil {
		return result, nil
	}
	if !ctx.Env.Tx.Optimism.IsDeposit() || !IsTransactionError(err) {
		result.Err = err
		return result, nil
	}

	caller := ctx.Env.Tx.Caller
	acct, dbErr := ctx.DB.Basic(caller)
	if dbErr != nil {
		acct = &Account{Balance: new(uint256.Int)}
	}
	if acct == nil {
		acct = &Account{Balance: new(uint256.Int)}
	}

	newBalance := new(uint256.Int).Add(acct.Balance, MintAmount(ctx.Env))
	newNonce := acct.Nonce + 1

	log.Warn("deposit transaction failed, synthesizing FailedDeposit halt", "caller", caller, "err", err)

	return ExecutionResult{
			Halted:     true,
			HaltReason: HaltReasonFailedDeposit,
			Err:        err,
		}, []StateChange{{
			Address: caller,
			Balance: newBalance,
			Nonce:   newNonce,
			Touched: true,
		}}
}

// optimismClear resets the handler's lazily-populated per-transaction
// state: the L1BlockInfo cache (spec.md §4.11).
func optimismClear(ctx *Context) {
	clearBase(ctx)
	ctx.L1Block.Reset()
}
