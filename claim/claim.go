// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package claim implements the canonical (address, quantity) encoding shared
// by allowlist leaves and authority-signed messages.
//
// The encoding matches Solidity's abi.encodePacked(address, uint256):
//
//	[0:20]  address
//	[20:52] quantity, 32-byte big-endian
//
// and the claim hash is keccak256 of those 52 bytes.
package claim

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

const (
	// QuantityLength is the width of the encoded quantity (uint256)
	QuantityLength = 32
	// EncodedLength is the total length of an encoded claim
	EncodedLength = common.AddressLength + QuantityLength
)

// Entry is one (address, quantity) pair.
type Entry struct {
	Address  common.Address `json:"address"`
	Quantity uint64         `json:"quantity"`
}

// Hash returns the claim hash of the entry.
func (e Entry) Hash() common.Hash {
	return Hash(e.Address, e.Quantity)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s:%d", e.Address.Hex(), e.Quantity)
}

// Encode returns the canonical encoding of (addr, quantity).
func Encode(addr common.Address, quantity uint64) []byte {
	out := make([]byte, EncodedLength)
	copy(out[:common.AddressLength], addr.Bytes())
	binary.BigEndian.PutUint64(out[EncodedLength-8:], quantity)
	return out
}

// Hash returns keccak256(Encode(addr, quantity)).
func Hash(addr common.Address, quantity uint64) common.Hash {
	return common.BytesToHash(crypto.Keccak256(Encode(addr, quantity)))
}
