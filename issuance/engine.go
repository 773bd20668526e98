// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package issuance implements the counter and payment gate shared by every
// authorization path. Callers verify authorization first and then hand the
// engine a Request; the engine never looks at proofs or signatures.
package issuance

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

var (
	ErrNotAuthorized    = errors.New("issuance not authorized")
	ErrZeroQuantity     = errors.New("quantity must be positive")
	ErrIncorrectPayment = errors.New("payment does not equal price times quantity")
	ErrSupplyExhausted  = errors.New("identifier space exhausted")

	ErrInsufficientPayment = fmt.Errorf("%w: underpaid", ErrIncorrectPayment)
	ErrOverPayment         = fmt.Errorf("%w: overpaid", ErrIncorrectPayment)
)

// Request is one issuance attempt.
type Request struct {
	Recipient common.Address
	Quantity  uint64

	// Payment attached to the call. Nil is zero.
	Payment *uint256.Int

	// Authorized is the verdict of whichever verifier ran before Issue.
	Authorized bool
}

// Receipt describes a completed issuance.
type Receipt struct {
	Recipient common.Address
	FirstID   uint64
	Quantity  uint64
	Paid      *uint256.Int
}

// IDs lists the minted identifiers in order.
func (r *Receipt) IDs() []uint64 {
	ids := make([]uint64, r.Quantity)
	for i := range ids {
		ids[i] = r.FirstID + uint64(i)
	}
	return ids
}

// Observer is told about every completed issuance, after the engine has
// released its lock.
type Observer interface {
	Issued(*Receipt)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(*Receipt)

func (f ObserverFunc) Issued(r *Receipt) { f(r) }

type Option func(*Engine)

func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// Engine is the single writer of the ledger's counter.
type Engine struct {
	mu        sync.Mutex
	ledger    Ledger
	price     *uint256.Int
	observers []Observer
	log       log.Logger
}

// New returns an engine charging price per unit. A nil price is free.
func New(ledger Ledger, price *uint256.Int, opts ...Option) *Engine {
	e := &Engine{ledger: ledger, price: new(uint256.Int)}
	if price != nil {
		e.price.Set(price)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = log.NewTestLogger(log.InfoLevel)
	}
	return e
}

// Price returns a copy of the unit price.
func (e *Engine) Price() *uint256.Int {
	return new(uint256.Int).Set(e.price)
}

// Cost returns price * quantity and whether the product overflowed.
func (e *Engine) Cost(quantity uint64) (*uint256.Int, bool) {
	return new(uint256.Int).MulOverflow(e.price, uint256.NewInt(quantity))
}

// Issued returns the number of identifiers issued so far.
func (e *Engine) Issued() (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.NextID()
}

// Issue checks the request and mints Quantity consecutive identifiers to
// Recipient. On any error the ledger and counter are unchanged.
func (e *Engine) Issue(req Request) (*Receipt, error) {
	if !req.Authorized {
		return nil, ErrNotAuthorized
	}
	if req.Quantity == 0 {
		return nil, ErrZeroQuantity
	}
	if req.Recipient == (common.Address{}) {
		return nil, ErrNullRecipient
	}
	if err := e.checkPayment(req.Quantity, req.Payment); err != nil {
		return nil, err
	}

	receipt, err := e.issue(req)
	if err != nil {
		e.log.Debug("issuance failed",
			"recipient", req.Recipient.Hex(),
			"quantity", req.Quantity,
			"error", err,
		)
		return nil, err
	}

	e.log.Info("issued",
		"recipient", receipt.Recipient.Hex(),
		"firstID", receipt.FirstID,
		"quantity", receipt.Quantity,
	)
	for _, o := range e.observers {
		o.Issued(receipt)
	}
	return receipt, nil
}

func (e *Engine) checkPayment(quantity uint64, payment *uint256.Int) error {
	paid := payment
	if paid == nil {
		paid = new(uint256.Int)
	}
	cost, overflow := e.Cost(quantity)
	switch {
	case overflow:
		return fmt.Errorf("%w: cost exceeds 2^256", ErrInsufficientPayment)
	case paid.Lt(cost):
		return fmt.Errorf("%w: paid %s, cost %s", ErrInsufficientPayment, paid.Dec(), cost.Dec())
	case paid.Gt(cost):
		return fmt.Errorf("%w: paid %s, cost %s", ErrOverPayment, paid.Dec(), cost.Dec())
	}
	return nil
}

// issue performs the bookkeeping under the lock. The counter is advanced
// before any identifier is minted.
func (e *Engine) issue(req Request) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	first, err := e.ledger.NextID()
	if err != nil {
		return nil, err
	}
	if req.Quantity > math.MaxUint64-first {
		return nil, fmt.Errorf("%w: next %d, quantity %d", ErrSupplyExhausted, first, req.Quantity)
	}

	snap := e.ledger.Snapshot()
	if err := e.ledger.SetNextID(first + req.Quantity); err != nil {
		e.ledger.RevertToSnapshot(snap)
		return nil, err
	}
	for id := first; id < first+req.Quantity; id++ {
		if err := e.ledger.Mint(req.Recipient, id); err != nil {
			e.ledger.RevertToSnapshot(snap)
			return nil, err
		}
	}

	e.ledger.DiscardSnapshot(snap)

	paid := new(uint256.Int)
	if req.Payment != nil {
		paid.Set(req.Payment)
	}
	return &Receipt{
		Recipient: req.Recipient,
		FirstID:   first,
		Quantity:  req.Quantity,
		Paid:      paid,
	}, nil
}
