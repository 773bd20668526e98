// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package authority produces and checks mint authorizations signed by the
// single trusted authority.
//
// An authorization binds (address, quantity) through the claim hash:
//
//	messageHash = keccak256(address || uint256(quantity))
//	digest      = keccak256("\x19Ethereum Signed Message:\n32" || messageHash)
//	signature   = secp256k1 sign(digest), 65 bytes r || s || v, v in {27, 28}
//
// Verification recovers the signer from the digest and separately recomputes
// the claim hash from the caller's own arguments. Both checks must pass.
package authority

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/accounts"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/mintgate/claim"
)

// SignatureLength is r (32) || s (32) || v (1)
const (
	SignatureLength  = 65
	recoveryIDOffset = 64
)

var (
	ErrInvalidSignature      = errors.New("signature not produced by trusted authority")
	ErrInvalidMessageBinding = errors.New("message hash does not bind caller and quantity")

	// ErrMalformedSignature wraps ErrInvalidSignature: a signature that cannot
	// be decoded or recovered is rejected in the same class as a wrong signer.
	ErrMalformedSignature = fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
)

// Digest returns the EIP-191 personal-message digest of messageHash.
func Digest(messageHash common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(messageHash[:]))
}

// Recover returns the address that signed Digest(messageHash).
func Recover(messageHash common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformedSignature, len(signature))
	}

	v := signature[recoveryIDOffset]
	if v != 27 && v != 28 {
		return common.Address{}, fmt.Errorf("%w: recovery id %d", ErrMalformedSignature, v)
	}
	v -= 27

	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:64])
	// homestead rules: reject the malleable high-s form
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, fmt.Errorf("%w: r/s out of range", ErrMalformedSignature)
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	sig[recoveryIDOffset] = v

	digest := Digest(messageHash)
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return pubkeyToAddress(pub), nil
}

// Verify checks that signature was produced by trusted over messageHash and
// that messageHash is the claim hash of (caller, quantity).
func Verify(
	messageHash common.Hash,
	signature []byte,
	caller common.Address,
	quantity uint64,
	trusted common.Address,
) error {
	signer, err := Recover(messageHash, signature)
	if err != nil {
		return err
	}
	if signer != trusted {
		return fmt.Errorf("%w: recovered %s", ErrInvalidSignature, signer.Hex())
	}
	if claim.Hash(caller, quantity) != messageHash {
		return ErrInvalidMessageBinding
	}
	return nil
}

func pubkeyToAddress(pub *ecdsa.PublicKey) common.Address {
	raw := crypto.FromECDSAPub(pub)
	return common.BytesToAddress(crypto.Keccak256(raw[1:])[12:])
}
