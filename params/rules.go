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

// Package params carries the chain-configuration fork gate: the set of
// activation points ("Bedrock -> Regolith -> Canyon -> Ecotone -> Fjord ->
// Granite -> Isthmus") that the Optimism handler dispatches on.
package params

// Config holds fork activation points for one chain. London and Bedrock
// activate by block number; Cancun and every OP Stack fork after Bedrock
// activate by block timestamp, matching how the superchain registry
// expresses them.
type Config struct {
	ChainID uint64

	LondonBlock  *uint64
	BedrockBlock *uint64

	CancunTime   *uint64
	RegolithTime *uint64
	CanyonTime   *uint64
	EcotoneTime  *uint64
	FjordTime    *uint64
	GraniteTime  *uint64
	IsthmusTime  *uint64
}

func activeByBlock(n *uint64, blockNum uint64) bool {
	return n != nil && blockNum >= *n
}

func activeByTime(t *uint64, blockTime uint64) bool {
	return t != nil && blockTime >= *t
}

// IsLondon reports whether EIP-1559 is live at blockNum.
func (c *Config) IsLondon(blockNum uint64) bool { return activeByBlock(c.LondonBlock, blockNum) }

// IsOptimismBedrock reports whether the Bedrock OP Stack execution semantics
// (deposit transactions, the three fee vaults) are live at blockNum.
func (c *Config) IsOptimismBedrock(blockNum uint64) bool {
	return activeByBlock(c.BedrockBlock, blockNum)
}

func (c *Config) IsCancun(blockTime uint64) bool        { return activeByTime(c.CancunTime, blockTime) }
func (c *Config) IsOptimismRegolith(t uint64) bool      { return activeByTime(c.RegolithTime, t) }
func (c *Config) IsOptimismCanyon(t uint64) bool         { return activeByTime(c.CanyonTime, t) }
func (c *Config) IsOptimismEcotone(t uint64) bool        { return activeByTime(c.EcotoneTime, t) }
func (c *Config) IsOptimismFjord(t uint64) bool          { return activeByTime(c.FjordTime, t) }
func (c *Config) IsOptimismGranite(t uint64) bool        { return activeByTime(c.GraniteTime, t) }
func (c *Config) IsOptimismIsthmus(t uint64) bool        { return activeByTime(c.IsthmusTime, t) }

// Rules is a snapshot of the fork gate evaluated once per block, the way
// vm.EVM.ChainRules() is computed once and consulted throughout a block's
// transactions rather than re-derived per call.
type Rules struct {
	IsLondon bool
	IsCancun bool

	IsOptimismBedrock  bool
	IsOptimismRegolith bool
	IsOptimismCanyon   bool
	IsOptimismEcotone  bool
	IsOptimismFjord    bool
	IsOptimismGranite  bool
	IsOptimismIsthmus  bool
}

// Rules computes the fork gate for the given block number and timestamp.
// Each later OP Stack fork implies the ones before it; Granite implies
// Fjord implies Ecotone implies Canyon implies Regolith implies Bedrock,
// matching the monotone activation chain in spec.md.
func (c *Config) Rules(blockNum uint64, blockTime uint64) Rules {
	r := Rules{
		IsLondon:           c.IsLondon(blockNum),
		IsCancun:           c.IsCancun(blockTime),
		IsOptimismBedrock:  c.IsOptimismBedrock(blockNum),
		IsOptimismRegolith: c.IsOptimismRegolith(blockTime),
		IsOptimismCanyon:   c.IsOptimismCanyon(blockTime),
		IsOptimismEcotone:  c.IsOptimismEcotone(blockTime),
		IsOptimismFjord:    c.IsOptimismFjord(blockTime),
		IsOptimismGranite:  c.IsOptimismGranite(blockTime),
		IsOptimismIsthmus:  c.IsOptimismIsthmus(blockTime),
	}
	// A later fork timestamp implies every earlier one, regardless of how
	// the config was hand-assembled; this keeps a malformed config (e.g.
	// Ecotone set without Canyon) from producing an inconsistent gate.
	if r.IsOptimismIsthmus {
		r.IsOptimismGranite = true
	}
	if r.IsOptimismGranite {
		r.IsOptimismFjord = true
	}
	if r.IsOptimismFjord {
		r.IsOptimismEcotone = true
	}
	if r.IsOptimismEcotone {
		r.IsOptimismCanyon = true
	}
	if r.IsOptimismCanyon {
		r.IsOptimismRegolith = true
	}
	if r.IsOptimismRegolith {
		r.IsOptimismBedrock = true
	}
	return r
}
