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
	"testing"

	libcommon "github.com/erigontech/erigon-lib/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/optimism-go/txhandler/core/types"
	"github.com/optimism-go/txhandler/params"
)

var testCaller = libcommon.HexToAddress("0x00000000000000000000000000000000000bad")

func newTestContext(t *testing.T, rules params.Rules) (*Context, *memState) {
	t.Helper()
	state := newMemState()
	ctx := &Context{
		Env: &Env{
			Cfg: CfgEnv{ChainID: 10},
			Block: BlockEnv{
				Number:   1,
				Time:     1,
				BaseFee:  uint256.NewInt(1),
				Coinbase: libcommon.HexToAddress("0xc0ffee0000000000000000000000000000c0ff"),
			},
			Tx: TxEnv{
				Caller:    testCaller,
				GasLimit:  21000,
				GasPrice:  uint256.NewInt(1),
				GasFeeCap: uint256.NewInt(2),
				GasTip:    uint256.NewInt(1),
				Value:     new(uint256.Int),
			},
		},
		State:   state,
		DB:      state,
		Rules:   rules,
		L1Block: &L1BlockInfoCache{},
	}
	return ctx, state
}

func setL1BlockSlots(state *memState, l1BaseFee, overhead, scalar uint64) {
	state.setStorage(types.L1BlockAddr, types.L1BaseFeeSlot, uint256.NewInt(l1BaseFee))
	state.setStorage(types.L1BlockAddr, types.OverheadSlot, uint256.NewInt(overhead))
	state.setStorage(types.L1BlockAddr, types.ScalarSlot, uint256.NewInt(scalar))
}

func bedrockRules() params.Rules {
	return params.Rules{IsLondon: true, IsOptimismBedrock: true}
}

func regolithRules() params.Rules {
	r := bedrockRules()
	r.IsOptimismRegolith = true
	return r
}

func isthmusRules() params.Rules {
	r := regolithRules()
	r.IsOptimismCanyon = true
	r.IsOptimismEcotone = true
	r.IsOptimismFjord = true
	r.IsOptimismGranite = true
	r.IsOptimismIsthmus = true
	return r
}

func TestOptimismRefund_NoRefundOnRevert(t *testing.T) {
	ctx, _ := newTestContext(t, regolithRules())
	gas := NewGas(100_000)
	gas.remaining = 50_000
	gas.refunded = 10_000

	optimismRefund(ctx, &gas, InstructionRevert)

	require.Equal(t, uint64(10_000), gas.Refunded(), "a reverted frame owes no additional refund")
}

func TestOptimismLastFrameReturn_NonDepositOkRestoresRemainingAndRefund(t *testing.T) {
	ctx, _ := newTestContext(t, regolithRules())
	ctx.Env.Tx.GasLimit = 100_000
	frame := &FrameResult{Result: InstructionReturn, Gas: NewGas(100_000)}
	frame.Gas.remaining = 30_000
	frame.Gas.refunded = 5_000

	optimismLastFrameReturn(ctx, frame)

	require.Equal(t, uint64(30_000), frame.Gas.remaining, "a non-deposit reports its actual unspent gas")
	require.Equal(t, uint64(5_000), frame.Gas.refunded)
}

func TestOptimismLastFrameReturn_NonDepositRevertRestoresRemainingDropsRefund(t *testing.T) {
	ctx, _ := newTestContext(t, regolithRules())
	ctx.Env.Tx.GasLimit = 100_000
	frame := &FrameResult{Result: InstructionRevert, Gas: NewGas(100_000)}
	frame.Gas.remaining = 30_000
	frame.Gas.refunded = 5_000

	optimismLastFrameReturn(ctx, frame)

	require.Equal(t, uint64(30_000), frame.Gas.remaining)
	require.Equal(t, uint64(0), frame.Gas.refunded, "a revert never re-records a pre-existing refund")
}

func TestOptimismLastFrameReturn_PreRegolithSystemDepositReportsZeroUsed(t *testing.T) {
	ctx, _ := newTestContext(t, bedrockRules())
	ctx.Env.Tx.GasLimit = 100_000
	sourceHash := libcommon.HexToHash("0x10")
	ctx.Env.Tx.Optimism.SourceHash = &sourceHash
	ctx.Env.Tx.Optimism.IsSystemTransaction = true
	frame := &FrameResult{Result: InstructionStop, Gas: NewGas(100_000)}
	frame.Gas.remaining = 30_000

	optimismLastFrameReturn(ctx, frame)

	require.Equal(t, uint64(100_000), frame.Gas.remaining, "a pre-Regolith system deposit reports 0 gas used")
	require.Equal(t, uint64(0), frame.Gas.Spent())
}

func TestOptimismLastFrameReturn_PreRegolithNonSystemDepositReportsFullLimitUsed(t *testing.T) {
	ctx, _ := newTestContext(t, bedrockRules())
	ctx.Env.Tx.GasLimit = 100_000
	sourceHash := libcommon.HexToHash("0x11")
	ctx.Env.Tx.Optimism.SourceHash = &sourceHash
	frame := &FrameResult{Result: InstructionStop, Gas: NewGas(100_000)}
	frame.Gas.remaining = 30_000

	optimismLastFrameReturn(ctx, frame)

	require.Equal(t, uint64(0), frame.Gas.remaining, "a pre-Regolith non-system deposit reports the full gas limit used")
	require.Equal(t, uint64(100_000), frame.Gas.Spent())
}

func TestOptimismLastFrameReturn_RegolithDepositReportsActualUsage(t *testing.T) {
	ctx, _ := newTestContext(t, regolithRules())
	ctx.Env.Tx.GasLimit = 100_000
	sourceHash := libcommon.HexToHash("0x12")
	ctx.Env.Tx.Optimism.SourceHash = &sourceHash
	frame := &FrameResult{Result: InstructionStop, Gas: NewGas(100_000)}
	frame.Gas.remaining = 30_000
	frame.Gas.refunded = 1_000

	optimismLastFrameReturn(ctx, frame)

	require.Equal(t, uint64(30_000), frame.Gas.remaining, "Regolith reports a deposit's actual gas usage")
	require.Equal(t, uint64(1_000), frame.Gas.refunded)
}

func TestOptimismLastFrameReturn_HaltReportsFullLimitUsedRegardlessOfKind(t *testing.T) {
	ctx, _ := newTestContext(t, regolithRules())
	ctx.Env.Tx.GasLimit = 100_000
	frame := &FrameResult{Result: InstructionOutOfGas, Gas: NewGas(100_000)}
	frame.Gas.remaining = 30_000

	optimismLastFrameReturn(ctx, frame)

	require.Equal(t, uint64(0), frame.Gas.remaining)
	require.Equal(t, uint64(100_000), frame.Gas.Spent())
}

func TestOptimismRefund_PreRegolithDepositSkipsRefundCap(t *testing.T) {
	ctx, _ := newTestContext(t, bedrockRules())
	sourceHash := libcommon.HexToHash("0x13")
	ctx.Env.Tx.Optimism.SourceHash = &sourceHash
	gas := NewGas(100_000)
	gas.remaining = 0
	gas.refunded = 100_000

	optimismRefund(ctx, &gas, InstructionStop)

	require.Equal(t, uint64(100_000), gas.Refunded(), "a pre-Regolith deposit skips refund finalization, so the cap is not applied")
}

func TestOptimismRefund_CapsAtSpentOverFive(t *testing.T) {
	ctx, _ := newTestContext(t, regolithRules())
	gas := NewGas(100_000)
	gas.remaining = 0
	gas.refunded = 100_000

	optimismRefund(ctx, &gas, InstructionStop)

	require.Equal(t, uint64(20_000), gas.Refunded(), "post-London refund caps at spent/5")
}

func TestOptimismDeductCaller_SystemDepositPreRegolithIsFree(t *testing.T) {
	ctx, state := newTestContext(t, bedrockRules())
	ctx.Env.Tx.Optimism.IsSystemTransaction = true
	sourceHash := libcommon.HexToHash("0x01")
	ctx.Env.Tx.Optimism.SourceHash = &sourceHash
	ctx.Env.Tx.GasPrice = new(uint256.Int)

	gas := NewGas(ctx.Env.Tx.GasLimit)
	err := optimismDeductCaller(ctx, &gas)
	require.NoError(t, err)
	require.True(t, state.GetBalance(testCaller).IsZero(), "a pre-Regolith system deposit charges no gas")
}

func TestOptimismDeductCaller_CreditsMint(t *testing.T) {
	ctx, state := newTestContext(t, regolithRules())
	sourceHash := libcommon.HexToHash("0x02")
	ctx.Env.Tx.Optimism.SourceHash = &sourceHash
	ctx.Env.Tx.Optimism.Mint = uint256.NewInt(1_000_000)
	ctx.Env.Tx.GasPrice = new(uint256.Int)

	gas := NewGas(ctx.Env.Tx.GasLimit)
	err := optimismDeductCaller(ctx, &gas)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1_000_000), state.GetBalance(testCaller))
}

func TestOptimismDeductCaller_NonDepositPaysL1Cost(t *testing.T) {
	ctx, state := newTestContext(t, bedrockRules())
	setL1BlockSlots(state, 1000, 0, 1_000_000)
	state.SetBalance(testCaller, uint256.NewInt(10_000_000))
	ctx.Env.Tx.Optimism.EnvelopedTx = []byte{0, 0, 1, 1, 1}

	_, err := ctx.L1Block.TryFetch(ctx.DB, ctx.Rules)
	require.NoError(t, err)

	gas := NewGas(ctx.Env.Tx.GasLimit)
	err = optimismDeductCaller(ctx, &gas)
	require.NoError(t, err)
	require.True(t, state.GetBalance(testCaller).Cmp(uint256.NewInt(10_000_000)) < 0, "a non-deposit pays both gas and L1 cost")
}

func TestOptimismDeductCaller_DepositPaysNoL1Cost(t *testing.T) {
	ctx, state := newTestContext(t, bedrockRules())
	setL1BlockSlots(state, 1000, 0, 1_000_000)
	sourceHash := libcommon.HexToHash("0x03")
	ctx.Env.Tx.Optimism.SourceHash = &sourceHash
	ctx.Env.Tx.Optimism.Mint = new(uint256.Int)
	ctx.Env.Tx.GasPrice = new(uint256.Int)

	gas := NewGas(ctx.Env.Tx.GasLimit)
	err := optimismDeductCaller(ctx, &gas)
	require.NoError(t, err)
	require.True(t, state.GetBalance(testCaller).IsZero(), "a deposit never pays an L1 data cost")
}

func TestOptimismDeductCaller_InsufficientFunds(t *testing.T) {
	ctx, state := newTestContext(t, bedrockRules())
	setL1BlockSlots(state, 1000, 0, 1_000_000)
	state.SetBalance(testCaller, uint256.NewInt(1))
	ctx.Env.Tx.Optimism.EnvelopedTx = []byte{1, 1, 1, 1}

	_, err := ctx.L1Block.TryFetch(ctx.DB, ctx.Rules)
	require.NoError(t, err)

	gas := NewGas(ctx.Env.Tx.GasLimit)
	err = optimismDeductCaller(ctx, &gas)
	require.Error(t, err)
	require.True(t, IsTransactionError(err))
}

func TestOptimismRewardBeneficiary_OperatorFeeVaultIsthmus(t *testing.T) {
	ctx, state := newTestContext(t, isthmusRules())
	setL1BlockSlots(state, 1000, 0, 1_000_000)
	state.setStorage(types.L1BlockAddr, types.OperatorFeeScalarSlot, uint256.NewInt(5_000))
	state.setStorage(types.L1BlockAddr, types.OperatorFeeConstantSlot, uint256.NewInt(7))

	_, err := ctx.L1Block.TryFetch(ctx.DB, ctx.Rules)
	require.NoError(t, err)

	gas := NewGas(ctx.Env.Tx.GasLimit)
	gas.remaining = 1000

	err = optimismRewardBeneficiary(ctx, &gas)
	require.NoError(t, err)
	require.False(t, state.GetBalance(OperatorFeeRecipient).IsZero())
	require.True(t, state.touched[OperatorFeeRecipient])
}

func TestOptimismRewardBeneficiary_CreditsAllThreeVaultsOnUsedGas(t *testing.T) {
	ctx, state := newTestContext(t, isthmusRules())
	setL1BlockSlots(state, 1000, 0, 1_000_000)
	state.setStorage(types.L1BlockAddr, types.BaseFeeScalarSlot, uint256.NewInt(1_000_000))
	state.setStorage(types.L1BlockAddr, types.OperatorFeeScalarSlot, uint256.NewInt(5_000))
	state.setStorage(types.L1BlockAddr, types.OperatorFeeConstantSlot, uint256.NewInt(7))
	ctx.Env.Tx.Optimism.EnvelopedTx = []byte{0, 0, 1, 1, 1}

	_, err := ctx.L1Block.TryFetch(ctx.DB, ctx.Rules)
	require.NoError(t, err)

	gas := NewGas(100_000)
	gas.remaining = 20_000
	gas.refunded = 10_000 // used = spent - refunded = 80_000 - 10_000 = 70_000

	err = optimismRewardBeneficiary(ctx, &gas)
	require.NoError(t, err)

	require.False(t, state.GetBalance(L1FeeRecipient).IsZero())
	require.True(t, state.touched[L1FeeRecipient])

	require.Equal(t, uint256.NewInt(70_000), state.GetBalance(BaseFeeRecipient), "base fee vault is credited basefee * used")
	require.True(t, state.touched[BaseFeeRecipient])

	wantOpFee := uint256.NewInt(5_000*70_000/1_000_000 + 7)
	require.Equal(t, wantOpFee, state.GetBalance(OperatorFeeRecipient), "operator fee vault is charged over used, not the gas limit")
	require.True(t, state.touched[OperatorFeeRecipient])
}

func TestOptimismValidateTxAgainstState_SystemTxRejectedPostRegolith(t *testing.T) {
	ctx, _ := newTestContext(t, regolithRules())
	sourceHash := libcommon.HexToHash("0x04")
	ctx.Env.Tx.Optimism.SourceHash = &sourceHash
	ctx.Env.Tx.Optimism.IsSystemTransaction = true

	err := optimismValidateTxAgainstState(ctx)
	require.ErrorIs(t, err, ErrDepositSystemTxRegolith)
}

func TestOptimismValidateTxAgainstState_DepositSkipsNonceAndBalance(t *testing.T) {
	ctx, state := newTestContext(t, regolithRules())
	sourceHash := libcommon.HexToHash("0x05")
	ctx.Env.Tx.Optimism.SourceHash = &sourceHash
	nonce := uint64(99)
	ctx.Env.Tx.Nonce = &nonce
	state.SetBalance(testCaller, new(uint256.Int))

	err := optimismValidateTxAgainstState(ctx)
	require.NoError(t, err, "a deposit is validated without a nonce or balance check")
}

func TestOptimismEnd_FailedDepositCreditsMintAndBumpsNonce(t *testing.T) {
	ctx, state := newTestContext(t, regolithRules())
	sourceHash := libcommon.HexToHash("0x06")
	ctx.Env.Tx.Optimism.SourceHash = &sourceHash
	ctx.Env.Tx.Optimism.Mint = uint256.NewInt(500)
	state.SetBalance(testCaller, uint256.NewInt(100))
	state.SetNonce(testCaller, 4)

	result, changes := optimismEnd(ctx, ExecutionResult{}, invalidTx(ErrInsufficientFunds))

	require.True(t, result.Halted)
	require.Equal(t, HaltReasonFailedDeposit, result.HaltReason)
	require.Len(t, changes, 1)
	require.Equal(t, testCaller, changes[0].Address)
	require.Equal(t, uint256.NewInt(600), changes[0].Balance)
	require.Equal(t, uint64(5), changes[0].Nonce)
}

func TestOptimismEnd_NonDepositPropagatesError(t *testing.T) {
	ctx, _ := newTestContext(t, regolithRules())

	result, changes := optimismEnd(ctx, ExecutionResult{}, ErrInsufficientFunds)

	require.Nil(t, changes)
	require.ErrorIs(t, result.Err, ErrInsufficientFunds)
}

func TestOptimismClear_ResetsL1BlockCache(t *testing.T) {
	ctx, state := newTestContext(t, bedrockRules())
	setL1BlockSlots(state, 1, 0, 1)
	_, err := ctx.L1Block.TryFetch(ctx.DB, ctx.Rules)
	require.NoError(t, err)
	require.NotNil(t, ctx.L1Block.Get())

	optimismClear(ctx)

	require.Nil(t, ctx.L1Block.Get())
}
