// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mintgate

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/mintgate/authority"
	"github.com/luxfi/mintgate/contract"
	"github.com/luxfi/mintgate/issuance"
	"github.com/zeebo/blake3"
)

var (
	ErrAlreadyInitialized = errors.New("mint gate already initialized")
	ErrNotInitialized     = errors.New("mint gate not initialized")
	ErrCorruptState       = errors.New("mint gate state corrupt")
)

// Storage layout on the precompile address. Every key is
// BLAKE3(prefix || id).
var (
	configPrefix   = []byte("mgcf")
	ownerPrefix    = []byte("mgow")
	balancePrefix  = []byte("mgbl")
	consumedPrefix = []byte("spnt")

	initializedSlot = makeStorageKey(configPrefix, []byte("initialized"))
	rootSlot        = makeStorageKey(configPrefix, []byte("root"))
	authoritySlot   = makeStorageKey(configPrefix, []byte("authority"))
	priceSlot       = makeStorageKey(configPrefix, []byte("price"))
	nameSlot        = makeStorageKey(configPrefix, []byte("name"))
	symbolSlot      = makeStorageKey(configPrefix, []byte("symbol"))
	replaySlot      = makeStorageKey(configPrefix, []byte("replay"))
	nextIDSlot      = makeStorageKey(configPrefix, []byte("nextId"))
)

var one = common.BytesToHash([]byte{1})

func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

func ownerSlot(id uint64) common.Hash {
	b := uint256.NewInt(id).Bytes32()
	return makeStorageKey(ownerPrefix, b[:])
}

func balanceSlot(owner common.Address) common.Hash {
	return makeStorageKey(balancePrefix, owner[:])
}

func consumedSlot(messageHash common.Hash) common.Hash {
	return makeStorageKey(consumedPrefix, messageHash[:])
}

// encodeShortString packs s into one slot: bytes left-aligned, length in the
// last byte.
func encodeShortString(s string) (common.Hash, error) {
	if len(s) > MaxStringLength {
		return common.Hash{}, fmt.Errorf("string longer than %d bytes", MaxStringLength)
	}
	var slot common.Hash
	copy(slot[:], s)
	slot[common.HashLength-1] = byte(len(s))
	return slot, nil
}

func decodeShortString(slot common.Hash) (string, error) {
	n := int(slot[common.HashLength-1])
	if n > MaxStringLength {
		return "", fmt.Errorf("%w: string length %d", ErrCorruptState, n)
	}
	return string(slot[:n]), nil
}

// storeParams writes the immutable gate parameters. It fails if the gate at
// addr was already initialized.
func storeParams(db contract.StateDB, addr common.Address, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if db.GetState(addr, initializedSlot) != (common.Hash{}) {
		return ErrAlreadyInitialized
	}

	name, err := encodeShortString(p.Name)
	if err != nil {
		return err
	}
	symbol, err := encodeShortString(p.Symbol)
	if err != nil {
		return err
	}

	if !db.Exist(addr) {
		db.CreateAccount(addr)
	}
	db.SetState(addr, rootSlot, p.Root)
	db.SetState(addr, authoritySlot, common.BytesToHash(p.Authority.Bytes()))
	db.SetState(addr, priceSlot, p.Price.Bytes32())
	db.SetState(addr, nameSlot, name)
	db.SetState(addr, symbolSlot, symbol)
	if p.ReplayProtection {
		db.SetState(addr, replaySlot, one)
	}
	db.SetState(addr, initializedSlot, one)
	return nil
}

func loadParams(db contract.StateDB, addr common.Address) (Params, error) {
	if db.GetState(addr, initializedSlot) == (common.Hash{}) {
		return Params{}, ErrNotInitialized
	}
	name, err := decodeShortString(db.GetState(addr, nameSlot))
	if err != nil {
		return Params{}, err
	}
	symbol, err := decodeShortString(db.GetState(addr, symbolSlot))
	if err != nil {
		return Params{}, err
	}
	price := db.GetState(addr, priceSlot)
	return Params{
		Name:             name,
		Symbol:           symbol,
		Price:            new(uint256.Int).SetBytes32(price[:]),
		Root:             db.GetState(addr, rootSlot),
		Authority:        common.BytesToAddress(db.GetState(addr, authoritySlot).Bytes()),
		ReplayProtection: db.GetState(addr, replaySlot) != (common.Hash{}),
	}, nil
}

var (
	_ issuance.Ledger       = (*stateLedger)(nil)
	_ authority.ConsumedSet = (*stateConsumedSet)(nil)
)

// stateLedger keeps token ownership in the precompile's storage.
type stateLedger struct {
	db   contract.StateDB
	addr common.Address
}

func (l *stateLedger) NextID() (uint64, error) {
	return l.readUint64(nextIDSlot)
}

func (l *stateLedger) SetNextID(id uint64) error {
	l.db.SetState(l.addr, nextIDSlot, uint256.NewInt(id).Bytes32())
	return nil
}

func (l *stateLedger) Mint(to common.Address, id uint64) error {
	if to == (common.Address{}) {
		return issuance.ErrNullRecipient
	}
	slot := ownerSlot(id)
	if owner := l.db.GetState(l.addr, slot); owner != (common.Hash{}) {
		return fmt.Errorf("%w: %d owned by %s", issuance.ErrDuplicateIdentifier, id,
			common.BytesToAddress(owner.Bytes()).Hex())
	}
	l.db.SetState(l.addr, slot, common.BytesToHash(to.Bytes()))

	balance := l.BalanceOf(to)
	balance.AddUint64(balance, 1)
	l.db.SetState(l.addr, balanceSlot(to), balance.Bytes32())
	return nil
}

func (l *stateLedger) OwnerOf(id uint64) (common.Address, error) {
	return common.BytesToAddress(l.db.GetState(l.addr, ownerSlot(id)).Bytes()), nil
}

func (l *stateLedger) BalanceOf(owner common.Address) *uint256.Int {
	v := l.db.GetState(l.addr, balanceSlot(owner))
	return new(uint256.Int).SetBytes32(v[:])
}

func (l *stateLedger) Snapshot() int {
	return l.db.Snapshot()
}

func (l *stateLedger) RevertToSnapshot(id int) {
	l.db.RevertToSnapshot(id)
}

// DiscardSnapshot is a no-op: the host StateDB journals the whole call.
func (l *stateLedger) DiscardSnapshot(int) {}

func (l *stateLedger) readUint64(slot common.Hash) (uint64, error) {
	v := l.db.GetState(l.addr, slot)
	n := new(uint256.Int).SetBytes32(v[:])
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: counter %s", ErrCorruptState, n.Dec())
	}
	return n.Uint64(), nil
}

// stateConsumedSet records redeemed authorizations in the precompile's
// storage. Calls are serialized by the EVM.
type stateConsumedSet struct {
	db   contract.StateDB
	addr common.Address
}

func (s *stateConsumedSet) Consume(messageHash common.Hash) error {
	slot := consumedSlot(messageHash)
	if s.db.GetState(s.addr, slot) != (common.Hash{}) {
		return fmt.Errorf("%w: %s", authority.ErrAuthorizationConsumed, messageHash.Hex())
	}
	s.db.SetState(s.addr, slot, one)
	return nil
}

func (s *stateConsumedSet) Release(messageHash common.Hash) error {
	s.db.SetState(s.addr, consumedSlot(messageHash), common.Hash{})
	return nil
}

func (s *stateConsumedSet) IsConsumed(messageHash common.Hash) (bool, error) {
	return s.db.GetState(s.addr, consumedSlot(messageHash)) != (common.Hash{}), nil
}
