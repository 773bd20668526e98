// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package allowlist builds and verifies the Merkle commitment over a fixed
// set of (address, quantity) entries.
//
// Leaf hash:     keccak256(address || uint256(quantity))
// Internal node: keccak256(min(a, b) || max(a, b))
//
// Leaves are sorted by hash before the first level is paired, so the root
// does not depend on the order entries were supplied in. When a level has an
// odd number of nodes the last node is promoted unchanged.
package allowlist

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/mintgate/claim"
)

var (
	ErrEmptyAllowlist = errors.New("allowlist: cannot build tree from empty allowlist")
	ErrDuplicateEntry = errors.New("allowlist: duplicate entry")
	ErrNullAddress    = errors.New("allowlist: entry has null address")
	ErrZeroQuantity   = errors.New("allowlist: entry has zero quantity")
	ErrEntryNotFound  = errors.New("allowlist: entry not found in tree")
)

// Tree is a built commitment tree.
type Tree struct {
	// entries in leaf order (sorted by leaf hash)
	entries []claim.Entry

	// layers from leaves (0) to root (len-1)
	layers [][]common.Hash

	root common.Hash

	// leafIndex maps a leaf hash to its position in layers[0]
	leafIndex map[common.Hash]int
}

// Build constructs the tree over entries. The input slice is not modified.
func Build(entries []claim.Entry) (*Tree, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyAllowlist
	}

	sorted := make([]claim.Entry, len(entries))
	copy(sorted, entries)

	leaves := make([]common.Hash, len(sorted))
	for i, e := range sorted {
		if e.Address == (common.Address{}) {
			return nil, fmt.Errorf("%w: index %d", ErrNullAddress, i)
		}
		if e.Quantity == 0 {
			return nil, fmt.Errorf("%w: %s", ErrZeroQuantity, e)
		}
		leaves[i] = e.Hash()
	}

	sort.Sort(byLeaf{entries: sorted, leaves: leaves})

	leafIndex := make(map[common.Hash]int, len(leaves))
	for i, leaf := range leaves {
		if _, ok := leafIndex[leaf]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, sorted[i])
		}
		leafIndex[leaf] = i
	}

	t := &Tree{
		entries:   sorted,
		leafIndex: leafIndex,
	}
	t.buildLayers(leaves)
	return t, nil
}

// buildLayers constructs all layers of the tree from leaves to root
func (t *Tree) buildLayers(leaves []common.Hash) {
	current := leaves
	t.layers = [][]common.Hash{current}

	for len(current) > 1 {
		next := make([]common.Hash, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next[i/2] = HashPair(current[i], current[i+1])
			} else {
				next[i/2] = current[i]
			}
		}
		t.layers = append(t.layers, next)
		current = next
	}
	t.root = current[0]
}

// HashPair hashes two nodes in sorted order:
// keccak256(min(a,b) || max(a,b))
func HashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	var data [2 * common.HashLength]byte
	copy(data[:common.HashLength], a[:])
	copy(data[common.HashLength:], b[:])
	return common.BytesToHash(crypto.Keccak256(data[:]))
}

// Root returns the commitment root
func (t *Tree) Root() common.Hash {
	return t.root
}

// Len returns the number of entries
func (t *Tree) Len() int {
	return len(t.entries)
}

// Depth returns the number of levels above the leaves
func (t *Tree) Depth() int {
	return len(t.layers) - 1
}

// Entries returns a copy of the entries in leaf order
func (t *Tree) Entries() []claim.Entry {
	out := make([]claim.Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Proof returns the membership proof for entry.
func (t *Tree) Proof(entry claim.Entry) (*Proof, error) {
	index, ok := t.leafIndex[entry.Hash()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entry)
	}
	return t.proofAt(index), nil
}

// Proofs returns a proof for every entry, in leaf order.
func (t *Tree) Proofs() []*Proof {
	out := make([]*Proof, len(t.entries))
	for i := range t.entries {
		out[i] = t.proofAt(i)
	}
	return out
}

func (t *Tree) proofAt(index int) *Proof {
	p := &Proof{
		Entry:    t.entries[index],
		Leaf:     t.layers[0][index],
		Root:     t.root,
		Siblings: make([]common.Hash, 0, t.Depth()),
	}

	current := index
	for layer := 0; layer < len(t.layers)-1; layer++ {
		sibling := current ^ 1
		// a promoted odd node has no sibling at this level
		if sibling < len(t.layers[layer]) {
			p.Siblings = append(p.Siblings, t.layers[layer][sibling])
		}
		current /= 2
	}
	return p
}

type byLeaf struct {
	entries []claim.Entry
	leaves  []common.Hash
}

func (b byLeaf) Len() int { return len(b.leaves) }

func (b byLeaf) Less(i, j int) bool {
	return bytes.Compare(b.leaves[i][:], b.leaves[j][:]) < 0
}

func (b byLeaf) Swap(i, j int) {
	b.leaves[i], b.leaves[j] = b.leaves[j], b.leaves[i]
	b.entries[i], b.entries[j] = b.entries[j], b.entries[i]
}
