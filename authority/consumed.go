// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package authority

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// ErrAuthorizationConsumed is returned when replay protection is enabled and
// the authorization has already been used.
var ErrAuthorizationConsumed = errors.New("authorization already consumed")

// ConsumedSet records which authorizations have been redeemed. Keys are
// message hashes, not signature bytes, so an alternative encoding of the same
// signature cannot be replayed.
//
// Without a ConsumedSet a valid authorization may be redeemed any number of
// times.
type ConsumedSet interface {
	// Consume marks messageHash as used, failing with
	// ErrAuthorizationConsumed if it already was.
	Consume(messageHash common.Hash) error

	// Release undoes a Consume whose mint did not complete.
	Release(messageHash common.Hash) error

	IsConsumed(messageHash common.Hash) (bool, error)
}

var (
	_ ConsumedSet = (*MemoryConsumedSet)(nil)
	_ ConsumedSet = (*DatabaseConsumedSet)(nil)
)

// MemoryConsumedSet is an in-process ConsumedSet.
type MemoryConsumedSet struct {
	mu   sync.RWMutex
	used map[common.Hash]struct{}
}

func NewMemoryConsumedSet() *MemoryConsumedSet {
	return &MemoryConsumedSet{used: make(map[common.Hash]struct{})}
}

func (m *MemoryConsumedSet) Consume(messageHash common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.used[messageHash]; ok {
		return fmt.Errorf("%w: %s", ErrAuthorizationConsumed, messageHash.Hex())
	}
	m.used[messageHash] = struct{}{}
	return nil
}

func (m *MemoryConsumedSet) Release(messageHash common.Hash) error {
	m.mu.Lock()
	delete(m.used, messageHash)
	m.mu.Unlock()
	return nil
}

func (m *MemoryConsumedSet) IsConsumed(messageHash common.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.used[messageHash]
	return ok, nil
}

// Len returns the number of consumed authorizations.
func (m *MemoryConsumedSet) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.used)
}

var consumedPrefix = []byte("spnt")

// ConsumedBackend is the key-value surface DatabaseConsumedSet needs.
type ConsumedBackend interface {
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// DatabaseConsumedSet persists consumed authorizations in a key-value store.
// The mutex serializes Consume so check-and-mark is atomic for one process.
type DatabaseConsumedSet struct {
	mu sync.Mutex
	db ConsumedBackend
}

func NewDatabaseConsumedSet(db ConsumedBackend) *DatabaseConsumedSet {
	return &DatabaseConsumedSet{db: db}
}

func (d *DatabaseConsumedSet) Consume(messageHash common.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := consumedKey(messageHash)
	has, err := d.db.Has(key)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: %s", ErrAuthorizationConsumed, messageHash.Hex())
	}
	return d.db.Put(key, []byte{1})
}

func (d *DatabaseConsumedSet) Release(messageHash common.Hash) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Delete(consumedKey(messageHash))
}

func (d *DatabaseConsumedSet) IsConsumed(messageHash common.Hash) (bool, error) {
	return d.db.Has(consumedKey(messageHash))
}

func consumedKey(messageHash common.Hash) []byte {
	h := blake3.New()
	h.Write(consumedPrefix)
	h.Write(messageHash[:])
	key := make([]byte, common.HashLength)
	h.Digest().Read(key)
	return key
}
