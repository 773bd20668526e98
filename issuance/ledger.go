// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package issuance

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
)

var (
	ErrNullRecipient       = errors.New("mint to null address")
	ErrDuplicateIdentifier = errors.New("identifier already minted")
)

// Ledger is the sequential-ID token registry the engine mints into, plus the
// slot holding the next unissued identifier.
//
// Mint must reject the null address and any identifier that already has an
// owner. RevertToSnapshot undoes every write made after the snapshot was
// taken; DiscardSnapshot keeps those writes and releases the undo state.
// Every snapshot is closed by exactly one of the two.
type Ledger interface {
	NextID() (uint64, error)
	SetNextID(id uint64) error
	Mint(to common.Address, id uint64) error

	// OwnerOf returns the zero address for unminted identifiers.
	OwnerOf(id uint64) (common.Address, error)

	Snapshot() int
	RevertToSnapshot(id int)
	DiscardSnapshot(id int)
}

var _ Ledger = (*MemoryLedger)(nil)

// MemoryLedger is an in-process journaled Ledger. Undo closures are only
// recorded while a snapshot is open.
type MemoryLedger struct {
	mu       sync.RWMutex
	next     uint64
	owners   map[uint64]common.Address
	balances map[common.Address]uint64
	journal  []func()
	open     int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		owners:   make(map[uint64]common.Address),
		balances: make(map[common.Address]uint64),
	}
}

func (l *MemoryLedger) NextID() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.next, nil
}

func (l *MemoryLedger) SetNextID(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.next
	l.record(func() { l.next = prev })
	l.next = id
	return nil
}

func (l *MemoryLedger) Mint(to common.Address, id uint64) error {
	if to == (common.Address{}) {
		return ErrNullRecipient
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if owner, ok := l.owners[id]; ok {
		return fmt.Errorf("%w: %d owned by %s", ErrDuplicateIdentifier, id, owner.Hex())
	}
	l.owners[id] = to
	l.balances[to]++
	l.record(func() {
		delete(l.owners, id)
		if l.balances[to]--; l.balances[to] == 0 {
			delete(l.balances, to)
		}
	})
	return nil
}

func (l *MemoryLedger) OwnerOf(id uint64) (common.Address, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owners[id], nil
}

// BalanceOf returns the number of identifiers owned by owner.
func (l *MemoryLedger) BalanceOf(owner common.Address) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[owner]
}

func (l *MemoryLedger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.open++
	return len(l.journal)
}

func (l *MemoryLedger) RevertToSnapshot(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.journal) - 1; i >= id; i-- {
		l.journal[i]()
	}
	l.journal = l.journal[:id]
	l.close()
}

func (l *MemoryLedger) DiscardSnapshot(int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.close()
}

// close ends one snapshot. Once none is open nothing can be reverted, so
// the journal is dropped.
func (l *MemoryLedger) close() {
	if l.open > 0 {
		l.open--
	}
	if l.open == 0 {
		l.journal = nil
	}
}

func (l *MemoryLedger) record(undo func()) {
	if l.open > 0 {
		l.journal = append(l.journal, undo)
	}
}
