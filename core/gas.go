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

// Gas tracks one transaction's gas accounting across the handler pipeline:
// how much of the limit remains, how much has been queued for refund, and
// the derived amount spent. Ported from revm_interpreter's Gas (see
// original_source/crates/interpreter/src/host/dummy.rs's neighbors) into a
// plain Go struct, since none of the Go examples in this pack carry an
// equivalent type — go-ethereum/erigon instead track a bare uint64 inline
// on StateTransition.
type Gas struct {
	limit     uint64
	remaining uint64
	refunded  uint64
}

// NewGas starts a Gas tracker with the full limit remaining.
func NewGas(limit uint64) Gas {
	return Gas{limit: limit, remaining: limit}
}

// NewSpentGas starts a Gas tracker with the full limit already spent, the
// state last_frame_return resets to before re-crediting whatever the
// outcome table says should come back.
func NewSpentGas(limit uint64) Gas {
	return Gas{limit: limit}
}

func (g *Gas) Limit() uint64     { return g.limit }
func (g *Gas) Remaining() uint64 { return g.remaining }
func (g *Gas) Refunded() uint64  { return g.refunded }

// Spent is the derived amount consumed so far: limit minus remaining.
func (g *Gas) Spent() uint64 { return g.limit - g.remaining }

// EraseCost restores n into remaining, i.e. un-spends n gas.
func (g *Gas) EraseCost(n uint64) { g.remaining += n }

// RecordRefund adds n to the pending refund counter. n is signed because
// EIP-7702 refunds are computed as a delta (PerEmptyAccountCost minus
// PerAuthBaseCost per pre-existing authority) that can in principle net
// negative for a single authorization, even though the aggregate recorded
// here is always clamped at zero.
func (g *Gas) RecordRefund(n int64) {
	if n >= 0 {
		g.refunded += uint64(n)
		return
	}
	dec := uint64(-n)
	if dec > g.refunded {
		g.refunded = 0
		return
	}
	g.refunded -= dec
}

// SetFinalRefund caps the pending refund at spent/k, k=5 post-London
// (EIP-3529), k=2 before it, and commits the capped value.
func (g *Gas) SetFinalRefund(london bool) {
	quotient := uint64(2)
	if london {
		quotient = 5
	}
	capped := g.Spent() / quotient
	if g.refunded > capped {
		g.refunded = capped
	}
}
