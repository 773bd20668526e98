// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mintgate gates a sequential mint behind either allowlist
// membership or a trusted-authority signature, and exposes the gate as an
// EVM stateful precompile.
//
// Both paths bind the caller's address to an exact quantity with the same
// claim hash; they differ only in how the binding is proven. The price,
// allowlist root and trusted authority are fixed when the gate is created.
package mintgate

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/luxfi/mintgate/allowlist"
	"github.com/luxfi/mintgate/authority"
	"github.com/luxfi/mintgate/issuance"
)

// MaxStringLength is the longest name or symbol the precompile can store in
// a single slot.
const MaxStringLength = 31

var (
	ErrInvalidProof  = errors.New("invalid membership proof")
	ErrProofTooLong  = fmt.Errorf("%w: more than %d siblings", ErrInvalidProof, allowlist.MaxProofLength)
	ErrInvalidParams = errors.New("invalid gate parameters")
)

// Params are the immutable gate parameters.
type Params struct {
	Name      string
	Symbol    string
	Price     *uint256.Int
	Root      common.Hash
	Authority common.Address

	// ReplayProtection makes each signed authorization single-use. When
	// false an authorization can be redeemed any number of times.
	ReplayProtection bool
}

func (p *Params) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidParams)
	case len(p.Name) > MaxStringLength:
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidParams, MaxStringLength)
	case p.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidParams)
	case len(p.Symbol) > MaxStringLength:
		return fmt.Errorf("%w: symbol longer than %d bytes", ErrInvalidParams, MaxStringLength)
	case p.Price == nil:
		return fmt.Errorf("%w: nil price", ErrInvalidParams)
	case p.Authority == (common.Address{}):
		return fmt.Errorf("%w: zero authority", ErrInvalidParams)
	}
	return nil
}

type gateOptions struct {
	consumed  authority.ConsumedSet
	observers []issuance.Observer
	log       log.Logger
}

type Option func(*gateOptions)

// WithConsumedSet supplies the replay store used when ReplayProtection is on.
func WithConsumedSet(set authority.ConsumedSet) Option {
	return func(o *gateOptions) { o.consumed = set }
}

func WithObserver(obs issuance.Observer) Option {
	return func(o *gateOptions) { o.observers = append(o.observers, obs) }
}

func WithLogger(l log.Logger) Option {
	return func(o *gateOptions) { o.log = l }
}

// Gate is the dual-path authorization front of an issuance engine.
type Gate struct {
	params   Params
	engine   *issuance.Engine
	ledger   issuance.Ledger
	consumed authority.ConsumedSet
	log      log.Logger
}

// NewGate validates params and builds a gate minting into ledger.
func NewGate(params Params, ledger issuance.Ledger, opts ...Option) (*Gate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	o := &gateOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = log.NewTestLogger(log.InfoLevel)
	}

	params.Price = new(uint256.Int).Set(params.Price)
	g := &Gate{
		params: params,
		ledger: ledger,
		log:    o.log,
	}
	if params.ReplayProtection {
		g.consumed = o.consumed
		if g.consumed == nil {
			g.consumed = authority.NewMemoryConsumedSet()
		}
	}

	engineOpts := []issuance.Option{issuance.WithLogger(o.log)}
	for _, obs := range o.observers {
		engineOpts = append(engineOpts, issuance.WithObserver(obs))
	}
	g.engine = issuance.New(ledger, params.Price, engineOpts...)
	return g, nil
}

// MintByMembership mints quantity to caller if (caller, quantity) is in the
// allowlist committed by the gate's root.
func (g *Gate) MintByMembership(
	caller common.Address,
	quantity uint64,
	proof []common.Hash,
	payment *uint256.Int,
) (*issuance.Receipt, error) {
	if len(proof) > allowlist.MaxProofLength {
		return nil, ErrProofTooLong
	}
	if !allowlist.Verify(caller, quantity, proof, g.params.Root) {
		g.log.Debug("membership rejected",
			"caller", caller.Hex(),
			"quantity", quantity,
			"proofLength", len(proof),
		)
		return nil, ErrInvalidProof
	}
	return g.engine.Issue(issuance.Request{
		Recipient:  caller,
		Quantity:   quantity,
		Payment:    payment,
		Authorized: true,
	})
}

// MintBySignature mints quantity to caller if the trusted authority signed
// messageHash and messageHash binds (caller, quantity).
func (g *Gate) MintBySignature(
	caller common.Address,
	quantity uint64,
	messageHash common.Hash,
	signature []byte,
	payment *uint256.Int,
) (*issuance.Receipt, error) {
	if err := authority.Verify(messageHash, signature, caller, quantity, g.params.Authority); err != nil {
		g.log.Debug("signature rejected",
			"caller", caller.Hex(),
			"quantity", quantity,
			"error", err,
		)
		return nil, err
	}

	if g.consumed != nil {
		if err := g.consumed.Consume(messageHash); err != nil {
			return nil, err
		}
	}

	receipt, err := g.engine.Issue(issuance.Request{
		Recipient:  caller,
		Quantity:   quantity,
		Payment:    payment,
		Authorized: true,
	})
	if err != nil {
		if g.consumed != nil {
			if rerr := g.consumed.Release(messageHash); rerr != nil {
				return nil, errors.Join(err, rerr)
			}
		}
		return nil, err
	}
	return receipt, nil
}

// VerifyMembership checks a proof against the gate's root without minting.
func (g *Gate) VerifyMembership(addr common.Address, quantity uint64, proof []common.Hash) bool {
	return allowlist.Verify(addr, quantity, proof, g.params.Root)
}

// IsConsumed reports whether a signed authorization was already redeemed.
// Always false when replay protection is off.
func (g *Gate) IsConsumed(messageHash common.Hash) (bool, error) {
	if g.consumed == nil {
		return false, nil
	}
	return g.consumed.IsConsumed(messageHash)
}

// TotalMinted returns the number of identifiers issued.
func (g *Gate) TotalMinted() (uint64, error) { return g.engine.Issued() }

func (g *Gate) OwnerOf(id uint64) (common.Address, error) { return g.ledger.OwnerOf(id) }

func (g *Gate) Price() *uint256.Int       { return new(uint256.Int).Set(g.params.Price) }
func (g *Gate) Root() common.Hash         { return g.params.Root }
func (g *Gate) Authority() common.Address { return g.params.Authority }
func (g *Gate) Name() string              { return g.params.Name }
func (g *Gate) Symbol() string            { return g.params.Symbol }
func (g *Gate) ReplayProtection() bool    { return g.params.ReplayProtection }
