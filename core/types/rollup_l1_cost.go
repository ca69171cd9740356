// Copyright 2022 The go-ethereum Authors
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

package types

import (
	"math/big"

	libcommon "github.com/erigontech/erigon-lib/common"
	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/holiman/uint256"

	"github.com/optimism-go/txhandler/params"
)

// RollupMessage is the subset of a transaction the L1 cost / operator fee
// formulas need.
type RollupMessage interface {
	RollupDataGas() uint64
	IsDepositTx() bool
}

// StateGetter is the predeploy-storage read path L1BlockInfo uses. It is
// deliberately narrower than core.Database: L1BlockInfo only ever reads
// storage slots on one fixed system address and never mutates anything.
type StateGetter interface {
	GetState(addr libcommon.Address, slot libcommon.Hash) (libcommon.Hash, error)
}

var (
	L1BaseFeeSlot   = libcommon.BigToHash(big.NewInt(1))
	OverheadSlot    = libcommon.BigToHash(big.NewInt(5))
	ScalarSlot      = libcommon.BigToHash(big.NewInt(6))
	BlobBaseFeeSlot = libcommon.BigToHash(big.NewInt(7))

	BaseFeeScalarSlot     = libcommon.BigToHash(big.NewInt(3))
	BlobBaseFeeScalarSlot = libcommon.BigToHash(big.NewInt(8))

	OperatorFeeScalarSlot   = libcommon.BigToHash(big.NewInt(9))
	OperatorFeeConstantSlot = libcommon.BigToHash(big.NewInt(10))
)

// L1BlockAddr is the L1Block predeploy.
var L1BlockAddr = libcommon.HexToAddress("0x4200000000000000000000000000000000000015")

const feeScalarDecimals = 1_000_000

// L1CostFunc is the original per-block-cached cost function shape: it reads
// the legacy (pre-Ecotone) predeploy layout once per block number and
// reuses the cached values for every deposit-excluded transaction in it.
type L1CostFunc func(blockNum uint64, msg RollupMessage, extra uint64) *uint256.Int

func readSlot(db StateGetter, addr libcommon.Address, slot libcommon.Hash) (*uint256.Int, error) {
	v, err := db.GetState(addr, slot)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(v[:]), nil
}

// NewL1CostFunc returns a function used for calculating the legacy
// (pre-Ecotone) L1 fee cost, caching the predeploy reads per block number
// since they don't change within a block. Returns nil if there is no cost
// to charge (deposits, or a fake RPC view-call message with zero rollup
// data gas).
func NewL1CostFunc(cfg *params.Config, statedb StateGetter) L1CostFunc {
	cacheBlockNum := ^uint64(0)
	var l1BaseFee, overhead, scalar *uint256.Int
	return func(blockNum uint64, msg RollupMessage, extra uint64) *uint256.Int {
		rollupDataGas := msg.RollupDataGas()
		if msg.IsDepositTx() || rollupDataGas == 0 {
			return nil
		}
		if blockNum != cacheBlockNum {
			var err error
			l1BaseFee, err = readSlot(statedb, L1BlockAddr, L1BaseFeeSlot)
			if err != nil {
				log.Warn("failed to read L1 base fee slot", "err", err)
				return nil
			}
			overhead, err = readSlot(statedb, L1BlockAddr, OverheadSlot)
			if err != nil {
				log.Warn("failed to read L1 overhead slot", "err", err)
				return nil
			}
			scalar, err = readSlot(statedb, L1BlockAddr, ScalarSlot)
			if err != nil {
				log.Warn("failed to read L1 scalar slot", "err", err)
				return nil
			}
			cacheBlockNum = blockNum
		}
		return L1Cost(rollupDataGas+extra, l1BaseFee, overhead, scalar)
	}
}

// L1Cost is the Bedrock-era formula: (rollupDataGas + overhead) *
// l1BaseFee * scalar / 1e6.
func L1Cost(rollupDataGas uint64, l1BaseFee, overhead, scalar *uint256.Int) *uint256.Int {
	l1GasUsed := new(uint256.Int).SetUint64(rollupDataGas)
	l1GasUsed = l1GasUsed.Add(l1GasUsed, overhead)
	l1Cost := l1GasUsed.Mul(l1GasUsed, l1BaseFee)
	l1Cost = l1Cost.Mul(l1Cost, scalar)
	return l1Cost.Div(l1Cost, uint256.NewInt(feeScalarDecimals))
}

// RollupCostData counts the zero and non-zero bytes of the enveloped
// transaction, the input CalculateTxL1Cost's per-fork formulas start from.
type RollupCostData struct {
	Zeroes, Ones uint64
}

// NewRollupCostData scans the enveloped transaction once and tallies its
// zero and non-zero bytes.
func NewRollupCostData(enveloped []byte) (out RollupCostData) {
	for _, b := range enveloped {
		if b == 0 {
			out.Zeroes++
		} else {
			out.Ones++
		}
	}
	return out
}

// L1BlockInfo is the per-transaction cache of L1 fee parameters (spec.md
// §3). It is populated lazily on the first non-deposit
// ValidateTxAgainstState call and discarded at Clear; see
// core/optimism_handler.go.
type L1BlockInfo struct {
	L1BaseFee           *uint256.Int
	L1FeeOverhead       *uint256.Int // pre-Ecotone only
	L1BaseFeeScalar     *uint256.Int
	L1BlobBaseFee       *uint256.Int // Ecotone+
	L1BlobBaseFeeScalar *uint256.Int // Ecotone+

	OperatorFeeScalar   *uint256.Int // Isthmus+
	OperatorFeeConstant *uint256.Int // Isthmus+
}

// TryFetchL1BlockInfo reads the L1Block predeploy's storage slots that are
// live under the given fork rules. Bedrock reads the legacy
// (base-fee/overhead/scalar) layout; Ecotone replaces the overhead with a
// blob base fee and splits the scalar in two; Isthmus additionally reads
// the operator fee parameters.
func TryFetchL1BlockInfo(db StateGetter, rules params.Rules) (*L1BlockInfo, error) {
	l1BaseFee, err := readSlot(db, L1BlockAddr, L1BaseFeeSlot)
	if err != nil {
		return nil, err
	}
	info := &L1BlockInfo{L1BaseFee: l1BaseFee}

	if rules.IsOptimismEcotone {
		baseFeeScalar, err := readSlot(db, L1BlockAddr, BaseFeeScalarSlot)
		if err != nil {
			return nil, err
		}
		blobBaseFeeScalar, err := readSlot(db, L1BlockAddr, BlobBaseFeeScalarSlot)
		if err != nil {
			return nil, err
		}
		blobBaseFee, err := readSlot(db, L1BlockAddr, BlobBaseFeeSlot)
		if err != nil {
			return nil, err
		}
		info.L1BaseFeeScalar = baseFeeScalar
		info.L1BlobBaseFeeScalar = blobBaseFeeScalar
		info.L1BlobBaseFee = blobBaseFee
	} else {
		overhead, err := readSlot(db, L1BlockAddr, OverheadSlot)
		if err != nil {
			return nil, err
		}
		scalar, err := readSlot(db, L1BlockAddr, ScalarSlot)
		if err != nil {
			return nil, err
		}
		info.L1FeeOverhead = overhead
		info.L1BaseFeeScalar = scalar
	}

	if rules.IsOptimismIsthmus {
		opScalar, err := readSlot(db, L1BlockAddr, OperatorFeeScalarSlot)
		if err != nil {
			return nil, err
		}
		opConstant, err := readSlot(db, L1BlockAddr, OperatorFeeConstantSlot)
		if err != nil {
			return nil, err
		}
		info.OperatorFeeScalar = opScalar
		info.OperatorFeeConstant = opConstant
	}

	log.Debug("fetched L1 block info", "l1BaseFee", info.L1BaseFee, "ecotone", rules.IsOptimismEcotone, "isthmus", rules.IsOptimismIsthmus)
	return info, nil
}

// bedrockL1Cost dispatches into the teacher's own L1Cost formula, with
// Regolith dropping the +68-byte padding the pre-Regolith gas count used to
// approximate a legacy RLP signature's size.
func (info *L1BlockInfo) bedrockL1Cost(data RollupCostData, regolith bool) *uint256.Int {
	ones := data.Ones
	if !regolith {
		ones += 68
	}
	rollupDataGas := data.Zeroes*4 + ones*16
	return L1Cost(rollupDataGas, info.L1BaseFee, info.L1FeeOverhead, info.L1BaseFeeScalar)
}

// ecotoneL1Cost is the post-Ecotone formula: rollupGasUsed (4 gas per zero
// byte, 16 per non-zero byte, no overhead term) priced against a weighted blend of the L1 base fee and
// the blob base fee: (baseFeeScalar*l1BaseFee*16 +
// blobBaseFeeScalar*l1BlobBaseFee) * rollupGasUsed / (16 * 1e6).
func (info *L1BlockInfo) ecotoneL1Cost(data RollupCostData) *uint256.Int {
	rollupGasUsed := new(uint256.Int).SetUint64(data.Zeroes*4 + data.Ones*16)

	scaledBaseFee := new(uint256.Int).Mul(info.L1BaseFeeScalar, info.L1BaseFee)
	scaledBaseFee.Mul(scaledBaseFee, uint256.NewInt(16))

	scaledBlobBaseFee := new(uint256.Int).Mul(info.L1BlobBaseFeeScalar, info.L1BlobBaseFee)

	weighted := new(uint256.Int).Add(scaledBaseFee, scaledBlobBaseFee)
	cost := weighted.Mul(weighted, rollupGasUsed)
	return cost.Div(cost, new(uint256.Int).Mul(uint256.NewInt(16), uint256.NewInt(feeScalarDecimals)))
}

// fastlzEstimatedSize approximates the FastLZ-compressed size Fjord prices
// against. The real algorithm is an external compression routine that none
// of the retrieved examples implement in Go (see DESIGN.md); this estimate
// is the raw length of the transaction, zero and non-zero bytes counted
// alike, floored at the minimum transaction size Fjord defines.
func fastlzEstimatedSize(data RollupCostData) uint64 {
	const minTransactionSize = 100
	estimate := data.Zeroes + data.Ones
	if estimate < minTransactionSize {
		return minTransactionSize
	}
	return estimate
}

// fjordL1Cost reuses the Ecotone fee-blend formula over the FastLZ size
// estimate instead of Ecotone's weighted zero/non-zero gas count.
func (info *L1BlockInfo) fjordL1Cost(data RollupCostData) *uint256.Int {
	size := fastlzEstimatedSize(data)

	scaledBaseFee := new(uint256.Int).Mul(info.L1BaseFeeScalar, info.L1BaseFee)
	scaledBaseFee.Mul(scaledBaseFee, uint256.NewInt(16))

	scaledBlobBaseFee := new(uint256.Int).Mul(info.L1BlobBaseFeeScalar, info.L1BlobBaseFee)

	weighted := new(uint256.Int).Add(scaledBaseFee, scaledBlobBaseFee)
	cost := weighted.Mul(weighted, new(uint256.Int).SetUint64(size))
	return cost.Div(cost, new(uint256.Int).Mul(uint256.NewInt(16), uint256.NewInt(feeScalarDecimals)))
}

// CalculateTxL1Cost computes the L1 data-availability cost for a
// non-deposit transaction's enveloped bytes, dispatching on the highest
// enabled fork (spec.md §4.2 step 6).
func (info *L1BlockInfo) CalculateTxL1Cost(enveloped []byte, rules params.Rules) *uint256.Int {
	if len(enveloped) == 0 {
		return new(uint256.Int)
	}
	data := NewRollupCostData(enveloped)
	switch {
	case rules.IsOptimismFjord:
		return info.fjordL1Cost(data)
	case rules.IsOptimismEcotone:
		return info.ecotoneL1Cost(data)
	default:
		return info.bedrockL1Cost(data, rules.IsOptimismRegolith)
	}
}

// OperatorFeeCharge is the up-front operator fee (Isthmus+, spec.md
// glossary): scalar*gasLimit/1e6 + constant. Zero before Isthmus.
func (info *L1BlockInfo) OperatorFeeCharge(gasLimit *uint256.Int, rules params.Rules) *uint256.Int {
	if !rules.IsOptimismIsthmus || info.OperatorFeeScalar == nil {
		return new(uint256.Int)
	}
	charge := new(uint256.Int).Mul(info.OperatorFeeScalar, gasLimit)
	charge.Div(charge, uint256.NewInt(feeScalarDecimals))
	return charge.Add(charge, info.OperatorFeeConstant)
}

// OperatorFeeRefund is the portion of the prepaid operator fee
// corresponding to unused gas: the proportional (scalar) term computed
// over the remaining gas, with no part of the flat constant returned.
func (info *L1BlockInfo) OperatorFeeRefund(gasRemaining uint64, rules params.Rules) *uint256.Int {
	if !rules.IsOptimismIsthmus || info.OperatorFeeScalar == nil {
		return new(uint256.Int)
	}
	refund := new(uint256.Int).Mul(info.OperatorFeeScalar, new(uint256.Int).SetUint64(gasRemaining))
	return refund.Div(refund, uint256.NewInt(feeScalarDecimals))
}
