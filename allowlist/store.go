// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package allowlist

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/zeebo/blake3"
)

var (
	ErrRootNotFound  = errors.New("allowlist: root not found in store")
	ErrCorruptRecord = errors.New("allowlist: corrupt store record")
)

// Key layout:
//
//	rootPrefix  || root                          -> Summary
//	proofPrefix || root || address || quantity   -> Proof
var (
	rootPrefix  = []byte("alrt")
	proofPrefix = []byte("alpf")
)

const checksumLength = 32

// Summary is the stored description of a published tree.
type Summary struct {
	Root    common.Hash `json:"root"`
	Entries int         `json:"entries"`
	Depth   int         `json:"depth"`
}

// Backend is the key-value surface the store needs. luxfi/database stores
// and diskdb.Database both provide it.
type Backend interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	NewIteratorWithPrefix(prefix []byte) database.Iterator
}

// Store persists built trees so proofs can be handed out after the build
// process has gone away.
type Store struct {
	db  Backend
	log log.Logger
}

// NewStore returns a Store backed by db. A nil logger gets a default one.
func NewStore(db Backend, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	return &Store{db: db, log: logger}
}

// Put writes every entry's proof and then the tree summary. The summary is
// the commit record: Has reports a root only once all its proofs are stored.
func (s *Store) Put(t *Tree) error {
	for _, p := range t.Proofs() {
		value, err := sealRecord(p)
		if err != nil {
			return err
		}
		if err := s.db.Put(proofKey(t.Root(), p.Entry.Address, p.Entry.Quantity), value); err != nil {
			return fmt.Errorf("allowlist: write tree %s: %w", t.Root().Hex(), err)
		}
	}

	summary, err := sealRecord(&Summary{
		Root:    t.Root(),
		Entries: t.Len(),
		Depth:   t.Depth(),
	})
	if err != nil {
		return err
	}
	if err := s.db.Put(rootKey(t.Root()), summary); err != nil {
		return fmt.Errorf("allowlist: write tree %s: %w", t.Root().Hex(), err)
	}
	s.log.Info("stored allowlist tree",
		"root", t.Root().Hex(),
		"entries", t.Len(),
		"depth", t.Depth(),
	)
	return nil
}

// Has reports whether a tree with this root was stored.
func (s *Store) Has(root common.Hash) (bool, error) {
	return s.db.Has(rootKey(root))
}

// Summary returns the stored summary for root.
func (s *Store) Summary(root common.Hash) (*Summary, error) {
	value, err := s.db.Get(rootKey(root))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root.Hex())
	}
	if err != nil {
		return nil, err
	}
	summary := new(Summary)
	if err := openRecord(value, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// Proof returns the stored proof for (addr, quantity) under root.
func (s *Store) Proof(root common.Hash, addr common.Address, quantity uint64) (*Proof, error) {
	value, err := s.db.Get(proofKey(root, addr, quantity))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s:%d", ErrEntryNotFound, addr.Hex(), quantity)
	}
	if err != nil {
		return nil, err
	}
	p := new(Proof)
	if err := openRecord(value, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ProofsFor returns every stored proof for addr under root, ordered by quantity.
func (s *Store) ProofsFor(root common.Hash, addr common.Address) ([]*Proof, error) {
	prefix := make([]byte, 0, len(proofPrefix)+common.HashLength+common.AddressLength)
	prefix = append(prefix, proofPrefix...)
	prefix = append(prefix, root[:]...)
	prefix = append(prefix, addr[:]...)

	it := s.db.NewIteratorWithPrefix(prefix)
	defer it.Release()

	var proofs []*Proof
	for it.Next() {
		p := new(Proof)
		if err := openRecord(it.Value(), p); err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return proofs, nil
}

func rootKey(root common.Hash) []byte {
	key := make([]byte, 0, len(rootPrefix)+common.HashLength)
	key = append(key, rootPrefix...)
	return append(key, root[:]...)
}

// proofKey ends with the big-endian quantity so prefix scans come back
// ordered by quantity.
func proofKey(root common.Hash, addr common.Address, quantity uint64) []byte {
	key := make([]byte, 0, len(proofPrefix)+common.HashLength+common.AddressLength+8)
	key = append(key, proofPrefix...)
	key = append(key, root[:]...)
	key = append(key, addr[:]...)
	return binary.BigEndian.AppendUint64(key, quantity)
}

// sealRecord encodes v as JSON followed by its BLAKE3 checksum.
func sealRecord(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	sum := checksum(body)
	return append(body, sum[:]...), nil
}

func openRecord(value []byte, v any) error {
	if len(value) < checksumLength {
		return ErrCorruptRecord
	}
	body := value[:len(value)-checksumLength]
	sum := checksum(body)
	if !bytes.Equal(sum[:], value[len(body):]) {
		return ErrCorruptRecord
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return nil
}

func checksum(body []byte) [checksumLength]byte {
	h := blake3.New()
	h.Write(body)
	var sum [checksumLength]byte
	h.Digest().Read(sum[:])
	return sum
}
