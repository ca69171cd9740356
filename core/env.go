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
	"github.com/erigontech/erigon-lib/common/fixedgas"
	"github.com/holiman/uint256"

	"github.com/optimism-go/txhandler/params"
)

// CfgEnv carries the chain-wide toggles that change how strictly the
// handler validates a transaction. These mirror revm's Cfg flags and are
// used almost exclusively by test harnesses (trace_call-style bailouts,
// fuzzing) rather than production nodes.
type CfgEnv struct {
	ChainID uint64

	BalanceCheckDisabled bool
	GasRefundDisabled    bool
	EIP3607Disabled      bool
}

// BlockEnv is the immutable per-block context every transaction in the
// block shares.
type BlockEnv struct {
	Number        uint64
	Time          uint64
	BaseFee       *uint256.Int
	Coinbase      libcommon.Address
	ExcessBlobGas *uint64
}

// OptimismTxEnv is the Optimism-only sub-record layered onto every
// transaction, exactly the fields spec.md §3 names.
type OptimismTxEnv struct {
	// SourceHash being non-nil marks the transaction as a deposit.
	SourceHash *libcommon.Hash
	// Mint is wei to credit the caller before any fee deduction.
	Mint *uint256.Int
	// IsSystemTransaction marks a pre-Regolith system deposit.
	IsSystemTransaction bool
	// EnvelopedTx is the raw serialized transaction, used only for the L1
	// data-cost calculation. The handler never parses it.
	EnvelopedTx []byte
}

// IsDeposit reports whether this transaction is an L1-originated deposit.
func (o *OptimismTxEnv) IsDeposit() bool { return o != nil && o.SourceHash != nil }

// TxEnv is the transaction's own fields.
type TxEnv struct {
	Caller   libcommon.Address
	To       *libcommon.Address
	GasLimit uint64
	GasPrice *uint256.Int
	GasFeeCap *uint256.Int
	GasTip    *uint256.Int
	Value     *uint256.Int
	Nonce     *uint64
	Data      []byte

	AuthorizationCount uint64 // EIP-7702 authorizations carried by this tx

	BlobGasLimit     uint64
	MaxFeePerBlobGas *uint256.Int

	Optimism OptimismTxEnv
}

// Env is the immutable-per-transaction context handed to every handler
// slot (spec.md §3 "Env").
type Env struct {
	Cfg   CfgEnv
	Block BlockEnv
	Tx    TxEnv
}

// maxDataFee returns the EIP-4844 blob fee ceiling for this transaction, or
// nil if it carries no blob gas.
func (e *Env) maxDataFee() *uint256.Int {
	if e.Tx.BlobGasLimit == 0 || e.Tx.MaxFeePerBlobGas == nil {
		return nil
	}
	return new(uint256.Int).Mul(e.Tx.MaxFeePerBlobGas, new(uint256.Int).SetUint64(e.Tx.BlobGasLimit))
}

// eip7702RefundFor returns the EIP-7702 refund owed for authorizations that
// targeted an already-existing account, grounded on
// core/state_transition.go's `fixedgas.PerEmptyAccountCost -
// fixedgas.PerAuthBaseCost` accounting (teacher: bobanetwork-erigon).
func eip7702RefundFor(existingAuthorities uint64) int64 {
	perAuth := int64(fixedgas.PerEmptyAccountCost) - int64(fixedgas.PerAuthBaseCost)
	return perAuth * int64(existingAuthorities)
}
