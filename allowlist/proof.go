// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package allowlist

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/mintgate/claim"
)

// MaxProofLength bounds the number of siblings accepted by Verify. A tree of
// 2^64 leaves needs 64.
const MaxProofLength = 64

// Proof is the membership proof for one entry.
type Proof struct {
	Entry claim.Entry `json:"entry"`

	// Leaf is claim.Hash(Entry)
	Leaf common.Hash `json:"leaf"`

	// Root the proof was generated against
	Root common.Hash `json:"root"`

	// Siblings from leaf to root. No orientation flags: pairs are sorted.
	Siblings []common.Hash `json:"siblings"`
}

// Verify checks the proof against its own root.
func (p *Proof) Verify() bool {
	if p.Leaf != p.Entry.Hash() {
		return false
	}
	return Verify(p.Entry.Address, p.Entry.Quantity, p.Siblings, p.Root)
}

// Verify reports whether (addr, quantity) is committed under root with the
// given sibling path. It never panics and has no side effects.
func Verify(addr common.Address, quantity uint64, proof []common.Hash, root common.Hash) bool {
	if len(proof) > MaxProofLength {
		return false
	}
	return ComputeRoot(claim.Hash(addr, quantity), proof) == root
}

// ComputeRoot folds proof into leaf with the sorted-pair rule.
func ComputeRoot(leaf common.Hash, proof []common.Hash) common.Hash {
	node := leaf
	for _, sibling := range proof {
		node = HashPair(node, sibling)
	}
	return node
}

// LoadEntries decodes a JSON allowlist:
//
//	[{"address": "0x...", "quantity": 2}, ...]
func LoadEntries(r io.Reader) ([]claim.Entry, error) {
	var entries []claim.Entry
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("allowlist: decode entries: %w", err)
	}
	return entries, nil
}
