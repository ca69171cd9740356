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

// memAccount is one account's state in memState, the minimal shape the
// handler ever reads or writes.
type memAccount struct {
	balance    *uint256.Int
	nonce      uint64
	codeHash   libcommon.Hash
	delegation *libcommon.Address
}

// memState is an in-memory Database and IntraBlockState double, grounded on
// original_source/crates/interpreter/src/host/dummy.rs's plain-map host:
// no journaling beyond a snapshot stack of full-state copies, enough to
// exercise the handler's slots without a real trie or execution engine.
type memState struct {
	accounts map[libcommon.Address]*memAccount
	storage  map[libcommon.Address]map[libcommon.Hash]libcommon.Hash
	refund   uint64
	touched  map[libcommon.Address]bool

	snapshots []memSnapshot
}

type memSnapshot struct {
	accounts map[libcommon.Address]*memAccount
	refund   uint64
}

func newMemState() *memState {
	return &memState{
		accounts: make(map[libcommon.Address]*memAccount),
		storage:  make(map[libcommon.Address]map[libcommon.Hash]libcommon.Hash),
		touched:  make(map[libcommon.Address]bool),
	}
}

func (m *memState) account(addr libcommon.Address) *memAccount {
	a, ok := m.accounts[addr]
	if !ok {
		a = &memAccount{balance: new(uint256.Int)}
		m.accounts[addr] = a
	}
	return a
}

func (m *memState) setStorage(addr libcommon.Address, slot libcommon.Hash, value *uint256.Int) {
	if m.storage[addr] == nil {
		m.storage[addr] = make(map[libcommon.Hash]libcommon.Hash)
	}
	m.storage[addr][slot] = value.Bytes32()
}

// Database

func (m *memState) Basic(addr libcommon.Address) (*Account, error) {
	a := m.account(addr)
	return &Account{Balance: new(uint256.Int).Set(a.balance), Nonce: a.nonce}, nil
}

func (m *memState) GetState(addr libcommon.Address, slot libcommon.Hash) (libcommon.Hash, error) {
	if vals, ok := m.storage[addr]; ok {
		return vals[slot], nil
	}
	return libcommon.Hash{}, nil
}

// IntraBlockState

func (m *memState) GetBalance(addr libcommon.Address) *uint256.Int {
	return new(uint256.Int).Set(m.account(addr).balance)
}

func (m *memState) AddBalance(addr libcommon.Address, amount *uint256.Int) {
	a := m.account(addr)
	a.balance = new(uint256.Int).Add(a.balance, amount)
}

func (m *memState) SubBalance(addr libcommon.Address, amount *uint256.Int) {
	a := m.account(addr)
	a.balance = new(uint256.Int).Sub(a.balance, amount)
}

func (m *memState) SetBalance(addr libcommon.Address, amount *uint256.Int) {
	m.account(addr).balance = new(uint256.Int).Set(amount)
}

func (m *memState) GetNonce(addr libcommon.Address) uint64 { return m.account(addr).nonce }
func (m *memState) SetNonce(addr libcommon.Address, nonce uint64) {
	m.account(addr).nonce = nonce
}

func (m *memState) GetCodeHash(addr libcommon.Address) libcommon.Hash {
	return m.account(addr).codeHash
}

func (m *memState) GetDelegatedDesignation(addr libcommon.Address) (libcommon.Address, bool) {
	a := m.account(addr)
	if a.delegation == nil {
		return libcommon.Address{}, false
	}
	return *a.delegation, true
}

func (m *memState) Exist(addr libcommon.Address) bool {
	_, ok := m.accounts[addr]
	return ok
}

func (m *memState) CreateAccount(addr libcommon.Address) { m.account(addr) }
func (m *memState) MarkTouch(addr libcommon.Address)     { m.touched[addr] = true }

func (m *memState) AddRefund(gas uint64) { m.refund += gas }
func (m *memState) SubRefund(gas uint64) {
	if gas > m.refund {
		m.refund = 0
		return
	}
	m.refund -= gas
}
func (m *memState) GetRefund() uint64 { return m.refund }

func (m *memState) Snapshot() int {
	clone := make(map[libcommon.Address]*memAccount, len(m.accounts))
	for addr, a := range m.accounts {
		cp := *a
		cp.balance = new(uint256.Int).Set(a.balance)
		clone[addr] = &cp
	}
	m.snapshots = append(m.snapshots, memSnapshot{accounts: clone, refund: m.refund})
	return len(m.snapshots) - 1
}

func (m *memState) RevertToSnapshot(id int) {
	snap := m.snapshots[id]
	m.accounts = snap.accounts
	m.refund = snap.refund
	m.snapshots = m.snapshots[:id]
}
