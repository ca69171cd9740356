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

// Database is the raw key-value backend the handler reads through outside
// the journal: Basic rebuilds a deposit caller's account straight from
// committed state in End, bypassing any journal rollback (see spec.md §4.10
// and the Design Notes on why), and GetState reads the L1Block predeploy's
// storage slots when the L1BlockInfo cache is filled.
//
// Opcode dispatch, trie storage, and the database's own persistence layer
// are external collaborators this core never constructs and never reaches
// into beyond this interface.
type Database interface {
	Basic(addr libcommon.Address) (*Account, error)
	GetState(addr libcommon.Address, slot libcommon.Hash) (libcommon.Hash, error)
}

// IntraBlockState is the journaled state store: the external collaborator
// that records every mutation on a checkpoint stack so a REVERT inside
// execution can roll back to a snapshot without disturbing the handler's
// own bookkeeping. The handler only ever calls through this interface; it
// never inspects or replaces the journal itself.
type IntraBlockState interface {
	GetBalance(addr libcommon.Address) *uint256.Int
	AddBalance(addr libcommon.Address, amount *uint256.Int)
	SubBalance(addr libcommon.Address, amount *uint256.Int)
	SetBalance(addr libcommon.Address, amount *uint256.Int)

	GetNonce(addr libcommon.Address) uint64
	SetNonce(addr libcommon.Address, nonce uint64)

	GetCodeHash(addr libcommon.Address) libcommon.Hash
	GetDelegatedDesignation(addr libcommon.Address) (libcommon.Address, bool)

	Exist(addr libcommon.Address) bool
	CreateAccount(addr libcommon.Address)
	MarkTouch(addr libcommon.Address)

	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	Snapshot() int
	RevertToSnapshot(id int)
}

// Account is the minimal account shape End needs when it rebuilds a failed
// deposit's caller straight from the database (spec.md §3 "Account").
type Account struct {
	Balance *uint256.Int
	Nonce   uint64
}
