// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package issuance

import (
	"errors"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	price = uint256.NewInt(10)
)

func wei(n uint64) *uint256.Int { return uint256.NewInt(n) }

func TestIssueSequentialIDs(t *testing.T) {
	ledger := NewMemoryLedger()
	e := New(ledger, price)

	r, err := e.Issue(Request{Recipient: alice, Quantity: 2, Payment: wei(20), Authorized: true})
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1}, r.IDs())
	require.Equal(t, wei(20), r.Paid)

	r, err = e.Issue(Request{Recipient: bob, Quantity: 1, Payment: wei(10), Authorized: true})
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, r.IDs())

	issued, err := e.Issued()
	require.NoError(t, err)
	require.Equal(t, uint64(3), issued)

	for id, want := range []common.Address{alice, alice, bob} {
		owner, err := ledger.OwnerOf(uint64(id))
		require.NoError(t, err)
		require.Equal(t, want, owner)
	}
	require.Equal(t, uint64(2), ledger.BalanceOf(alice))
	require.Equal(t, uint64(1), ledger.BalanceOf(bob))
}

func TestIssueRejections(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "not authorized",
			req:     Request{Recipient: alice, Quantity: 1, Payment: wei(10)},
			wantErr: ErrNotAuthorized,
		},
		{
			name:    "zero quantity",
			req:     Request{Recipient: alice, Quantity: 0, Payment: wei(0), Authorized: true},
			wantErr: ErrZeroQuantity,
		},
		{
			name:    "null recipient",
			req:     Request{Quantity: 1, Payment: wei(10), Authorized: true},
			wantErr: ErrNullRecipient,
		},
		{
			name:    "underpaid",
			req:     Request{Recipient: alice, Quantity: 2, Payment: wei(19), Authorized: true},
			wantErr: ErrInsufficientPayment,
		},
		{
			name:    "overpaid",
			req:     Request{Recipient: alice, Quantity: 2, Payment: wei(21), Authorized: true},
			wantErr: ErrOverPayment,
		},
		{
			name:    "nil payment",
			req:     Request{Recipient: alice, Quantity: 1, Authorized: true},
			wantErr: ErrInsufficientPayment,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewMemoryLedger()
			e := New(ledger, price)

			_, err := e.Issue(tt.req)
			require.ErrorIs(t, err, tt.wantErr)

			next, err := ledger.NextID()
			require.NoError(t, err)
			require.Zero(t, next)
			require.Zero(t, ledger.BalanceOf(alice))
		})
	}
}

func TestPaymentMismatchIsOneClass(t *testing.T) {
	require.ErrorIs(t, ErrInsufficientPayment, ErrIncorrectPayment)
	require.ErrorIs(t, ErrOverPayment, ErrIncorrectPayment)
	require.False(t, errors.Is(ErrInsufficientPayment, ErrOverPayment))
}

func TestCostOverflowIsPaymentMismatch(t *testing.T) {
	huge := new(uint256.Int).SetAllOne()
	e := New(NewMemoryLedger(), huge)

	_, overflow := e.Cost(2)
	require.True(t, overflow)

	_, err := e.Issue(Request{Recipient: alice, Quantity: 2, Payment: huge, Authorized: true})
	require.ErrorIs(t, err, ErrIncorrectPayment)
}

func TestFreeIssuance(t *testing.T) {
	e := New(NewMemoryLedger(), nil)

	_, err := e.Issue(Request{Recipient: alice, Quantity: 3, Authorized: true})
	require.NoError(t, err)

	_, err = e.Issue(Request{Recipient: alice, Quantity: 1, Payment: wei(1), Authorized: true})
	require.ErrorIs(t, err, ErrOverPayment)
}

func TestDuplicateIdentifierRollsBack(t *testing.T) {
	ledger := NewMemoryLedger()
	e := New(ledger, price)

	// identifier 1 already exists outside the engine's counter
	require.NoError(t, ledger.Mint(bob, 1))

	_, err := e.Issue(Request{Recipient: alice, Quantity: 3, Payment: wei(30), Authorized: true})
	require.ErrorIs(t, err, ErrDuplicateIdentifier)

	next, err := ledger.NextID()
	require.NoError(t, err)
	require.Zero(t, next)

	owner, err := ledger.OwnerOf(0)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, owner)
	require.Zero(t, ledger.BalanceOf(alice))
	require.Equal(t, uint64(1), ledger.BalanceOf(bob))
}

func TestSupplyExhausted(t *testing.T) {
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.SetNextID(math.MaxUint64-1))
	e := New(ledger, nil)

	_, err := e.Issue(Request{Recipient: alice, Quantity: 2, Authorized: true})
	require.ErrorIs(t, err, ErrSupplyExhausted)

	r, err := e.Issue(Request{Recipient: alice, Quantity: 1, Authorized: true})
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64-1), r.FirstID)
}

func TestConcurrentIssuance(t *testing.T) {
	ledger := NewMemoryLedger()
	e := New(ledger, price)

	const (
		workers = 16
		perWork = 25
	)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []uint64
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			to := common.BytesToAddress([]byte{byte(w + 1)})
			for i := 0; i < perWork; i++ {
				qty := uint64(i%3 + 1)
				r, err := e.Issue(Request{Recipient: to, Quantity: qty, Payment: wei(10 * qty), Authorized: true})
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				ids = append(ids, r.IDs()...)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		require.Equal(t, uint64(i), id)
	}

	next, err := ledger.NextID()
	require.NoError(t, err)
	require.Equal(t, uint64(len(ids)), next)
}

func TestObserverSeesFinalState(t *testing.T) {
	ledger := NewMemoryLedger()

	var (
		e         *Engine
		seen      []*Receipt
		reentered bool
	)
	e = New(ledger, price, WithObserver(ObserverFunc(func(r *Receipt) {
		seen = append(seen, r)

		next, err := ledger.NextID()
		require.NoError(t, err)
		require.Equal(t, r.FirstID+r.Quantity, next)

		// a reentrant issue gets fresh identifiers rather than deadlocking
		if !reentered {
			reentered = true
			nested, err := e.Issue(Request{Recipient: bob, Quantity: 1, Payment: wei(10), Authorized: true})
			require.NoError(t, err)
			require.Equal(t, next, nested.FirstID)
		}
	})))

	_, err := e.Issue(Request{Recipient: alice, Quantity: 2, Payment: wei(20), Authorized: true})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	require.Equal(t, uint64(0), seen[0].FirstID)
	require.Equal(t, uint64(2), seen[1].FirstID)

	next, err := ledger.NextID()
	require.NoError(t, err)
	require.Equal(t, uint64(3), next)
}

func TestLedgerRejectsNullAndDuplicates(t *testing.T) {
	ledger := NewMemoryLedger()
	require.ErrorIs(t, ledger.Mint(common.Address{}, 0), ErrNullRecipient)
	require.NoError(t, ledger.Mint(alice, 0))
	require.ErrorIs(t, ledger.Mint(bob, 0), ErrDuplicateIdentifier)
}

func TestLedgerSnapshot(t *testing.T) {
	ledger := NewMemoryLedger()
	require.NoError(t, ledger.Mint(alice, 0))

	snap := ledger.Snapshot()
	require.NoError(t, ledger.SetNextID(5))
	require.NoError(t, ledger.Mint(alice, 1))
	require.NoError(t, ledger.Mint(bob, 2))
	ledger.RevertToSnapshot(snap)

	next, err := ledger.NextID()
	require.NoError(t, err)
	require.Zero(t, next)
	require.Equal(t, uint64(1), ledger.BalanceOf(alice))
	require.Zero(t, ledger.BalanceOf(bob))

	owner, err := ledger.OwnerOf(1)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, owner)
}

func TestLedgerJournalReleased(t *testing.T) {
	ledger := NewMemoryLedger()
	engine := New(ledger, wei(1))

	for i := 0; i < 50; i++ {
		_, err := engine.Issue(Request{Recipient: alice, Quantity: 3, Payment: wei(3), Authorized: true})
		require.NoError(t, err)
		require.Empty(t, ledger.journal)
	}

	// a failed issuance reverts and leaves nothing behind either
	require.NoError(t, ledger.Mint(bob, 151))
	_, err := engine.Issue(Request{Recipient: alice, Quantity: 2, Payment: wei(2), Authorized: true})
	require.ErrorIs(t, err, ErrDuplicateIdentifier)
	require.Empty(t, ledger.journal)
	require.Zero(t, ledger.open)

	next, err := ledger.NextID()
	require.NoError(t, err)
	require.Equal(t, uint64(150), next)
}

func TestLedgerNestedSnapshots(t *testing.T) {
	ledger := NewMemoryLedger()

	outer := ledger.Snapshot()
	require.NoError(t, ledger.Mint(alice, 0))

	inner := ledger.Snapshot()
	require.NoError(t, ledger.Mint(alice, 1))
	ledger.DiscardSnapshot(inner)

	// the outer snapshot can still undo writes kept by the inner one
	require.Len(t, ledger.journal, 2)
	ledger.RevertToSnapshot(outer)

	require.Zero(t, ledger.BalanceOf(alice))
	require.Empty(t, ledger.journal)
	require.Zero(t, ledger.open)
}
