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

	"github.com/optimism-go/txhandler/params"
)

// PrecompileRegistry is the external collaborator that holds the active
// precompile contracts; the handler only ever selects which addresses are
// active, never what a precompile computes.
type PrecompileRegistry struct {
	Addresses map[libcommon.Address]struct{}
}

// basePrecompiles stands in for the base chain spec's precompile set
// (1..=0x0a, the standard Ethereum precompiles); constructing the real set
// is the interpreter's concern (out of scope per spec.md §1).
func basePrecompiles() map[libcommon.Address]struct{} {
	set := make(map[libcommon.Address]struct{}, 10)
	for i := byte(1); i <= 0x0a; i++ {
		set[libcommon.BytesToAddress([]byte{i})] = struct{}{}
	}
	return set
}

// p256VerifyAddress is the RIP-7212 P256VERIFY precompile Fjord adds.
var p256VerifyAddress = libcommon.HexToAddress("0x0000000000000000000000000000000000000100")

// LoadPrecompiles selects the active precompile set by the highest-enabled
// fork (spec.md §4.3): Isthmus > Granite > Fjord > the base chain spec's
// set. Each later fork's set is a superset of the one before it unless a
// fork explicitly removes an address.
func LoadPrecompiles(rules params.Rules) *PrecompileRegistry {
	set := basePrecompiles()
	switch {
	case rules.IsOptimismIsthmus:
		set[p256VerifyAddress] = struct{}{}
	case rules.IsOptimismGranite:
		set[p256VerifyAddress] = struct{}{}
	case rules.IsOptimismFjord:
		set[p256VerifyAddress] = struct{}{}
	}
	return &PrecompileRegistry{Addresses: set}
}
