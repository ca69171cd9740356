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
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Sentinel invalid-transaction errors, in the same bare-var style
// core/state_transition.go declares ErrInsufficientFunds and friends.
var (
	ErrNonceTooHigh            = errors.New("nonce too high")
	ErrNonceTooLow             = errors.New("nonce too low")
	ErrSenderNoEOA             = errors.New("sender not an eoa")
	ErrInsufficientFunds       = errors.New("insufficient funds for gas * price + value")
	ErrOverflowPayment         = errors.New("overflow in transaction payment calculation")
	ErrDepositSystemTxRegolith = errors.New("deposit system transactions post-Regolith are not supported")
	ErrHaltedDepositRegolith   = errors.New("halted deposit transaction post-Regolith")
	ErrFeeCapLessThanTip       = errors.New("max fee per gas less than max priority fee per gas")

	// ErrMissingL1BlockInfo and ErrMissingEnvelope are internal-invariant
	// errors: they indicate the pipeline was driven out of order, not that
	// the user supplied a bad transaction. Kept as distinct sentinels (not
	// folded into the InvalidTransaction family) so callers can tell a
	// programmer error apart from a rejected transaction.
	ErrMissingL1BlockInfo = errors.New("[OPTIMISM] L1BlockInfo not loaded")
	ErrMissingEnvelope    = errors.New("[OPTIMISM] failed to load enveloped transaction")
)

// LackOfFundForMaxFeeError reports the exact shortfall so callers can
// surface both the required fee and the available balance, matching
// InvalidTransaction::LackOfFundForMaxFee in original_source.
type LackOfFundForMaxFeeError struct {
	Fee     *uint256.Int
	Balance *uint256.Int
}

func (e *LackOfFundForMaxFeeError) Error() string {
	return fmt.Sprintf("lack of funds (%v) for max fee (%v)", e.Balance, e.Fee)
}

// NonceError reports both the transaction's claimed nonce and the state's
// nonce, matching NonceTooHigh/NonceTooLow in original_source.
type NonceError struct {
	Msg   string
	Tx    uint64
	State uint64
}

func (e *NonceError) Error() string {
	return fmt.Sprintf("%s: tx %d state %d", e.Msg, e.Tx, e.State)
}

func (e *NonceError) Unwrap() error {
	if e.Tx > e.State {
		return ErrNonceTooHigh
	}
	return ErrNonceTooLow
}

// TransactionError marks an error as belonging to the "invalid
// transaction" class (spec.md §7): validation failures the driver must
// abort on, as opposed to Database errors or internal invariant
// violations. End() only rewrites errors in this class for deposits.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string { return e.Err.Error() }
func (e *TransactionError) Unwrap() error { return e.Err }

// IsTransactionError reports whether err belongs to the invalid-transaction
// error class, the Go analogue of matching EVMError::Transaction(_).
func IsTransactionError(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr)
}

func invalidTx(err error) error { return &TransactionError{Err: err} }
