// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package authority

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	log "github.com/luxfi/log"
	"github.com/luxfi/mintgate/claim"
)

var (
	ErrNilKey      = errors.New("authority: nil signing key")
	ErrNotEligible = errors.New("authority: address not eligible for quantity")
)

// Policy decides whether the authority is willing to sign for (addr, quantity).
// Returning nil allows the signature.
type Policy func(addr common.Address, quantity uint64) error

// AllowAll is the default policy.
func AllowAll(common.Address, uint64) error { return nil }

// EntriesPolicy allows exactly the given (address, quantity) pairs.
func EntriesPolicy(entries []claim.Entry) Policy {
	allowed := make(map[common.Hash]struct{}, len(entries))
	for _, e := range entries {
		allowed[e.Hash()] = struct{}{}
	}
	return func(addr common.Address, quantity uint64) error {
		if _, ok := allowed[claim.Hash(addr, quantity)]; !ok {
			return fmt.Errorf("%w: %s:%d", ErrNotEligible, addr.Hex(), quantity)
		}
		return nil
	}
}

// Authorization is what the authority hands to a requester off-chain.
type Authorization struct {
	Address     common.Address `json:"address"`
	Quantity    uint64         `json:"quantity"`
	MessageHash common.Hash    `json:"messageHash"`
	Signature   hexutil.Bytes  `json:"signature"`
}

// Verify checks the authorization as if Address submitted it.
func (a *Authorization) Verify(trusted common.Address) error {
	return Verify(a.MessageHash, a.Signature, a.Address, a.Quantity, trusted)
}

// Option configures a Signer.
type Option func(*Signer)

// WithPolicy sets the eligibility policy consulted before signing.
func WithPolicy(p Policy) Option {
	return func(s *Signer) { s.policy = p }
}

// WithLogger sets the signer's logger.
func WithLogger(l log.Logger) Option {
	return func(s *Signer) { s.log = l }
}

// Signer is the off-chain side of the trusted authority.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	policy  Policy
	log     log.Logger
}

// NewSigner wraps an existing secp256k1 key.
func NewSigner(key *ecdsa.PrivateKey, opts ...Option) (*Signer, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	s := &Signer{
		key:     key,
		address: pubkeyToAddress(&key.PublicKey),
		policy:  AllowAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log.NewTestLogger(log.InfoLevel)
	}
	return s, nil
}

// GenerateSigner creates a signer with a fresh key.
func GenerateSigner(opts ...Option) (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("authority: generate key: %w", err)
	}
	return NewSigner(key, opts...)
}

// Address is the address the gate must be configured to trust.
func (s *Signer) Address() common.Address { return s.address }

// Sign authorizes addr to mint quantity.
func (s *Signer) Sign(addr common.Address, quantity uint64) (*Authorization, error) {
	if err := s.policy(addr, quantity); err != nil {
		s.log.Debug("authorization refused",
			"address", addr.Hex(),
			"quantity", quantity,
			"error", err,
		)
		return nil, err
	}

	messageHash := claim.Hash(addr, quantity)
	digest := Digest(messageHash)
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return nil, fmt.Errorf("authority: sign %s:%d: %w", addr.Hex(), quantity, err)
	}
	sig[recoveryIDOffset] += 27

	s.log.Info("issued authorization",
		"address", addr.Hex(),
		"quantity", quantity,
		"messageHash", messageHash.Hex(),
	)
	return &Authorization{
		Address:     addr,
		Quantity:    quantity,
		MessageHash: messageHash,
		Signature:   sig,
	}, nil
}
