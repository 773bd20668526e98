// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mintgate

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	ethtypes "github.com/luxfi/geth/core/types"
	"github.com/luxfi/mintgate/contract"
	"github.com/luxfi/mintgate/precompileconfig"
)

// MockStateDB implements contract.StateDB with a write journal so that
// Snapshot and RevertToSnapshot behave like the host's.
type MockStateDB struct {
	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
	accounts map[common.Address]bool
	logs     []*ethtypes.Log
	journal  []func()
}

func NewMockStateDB() *MockStateDB {
	return &MockStateDB{
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		accounts: make(map[common.Address]bool),
		logs:     make([]*ethtypes.Log, 0),
	}
}

func (m *MockStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if m.storage[addr] == nil {
		return common.Hash{}
	}
	return m.storage[addr][key]
}

func (m *MockStateDB) SetState(addr common.Address, key, value common.Hash) common.Hash {
	if m.storage[addr] == nil {
		m.storage[addr] = make(map[common.Hash]common.Hash)
	}
	prev := m.storage[addr][key]
	m.storage[addr][key] = value
	m.journal = append(m.journal, func() { m.storage[addr][key] = prev })
	return prev
}

func (m *MockStateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := m.balances[addr]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

func (m *MockStateDB) setBalance(addr common.Address, v *uint256.Int) {
	prev := m.GetBalance(addr)
	m.balances[addr] = v
	m.journal = append(m.journal, func() { m.balances[addr] = prev })
}

func (m *MockStateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := m.GetBalance(addr)
	m.setBalance(addr, new(uint256.Int).Add(prev, amount))
	return *prev
}

func (m *MockStateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := m.GetBalance(addr)
	m.setBalance(addr, new(uint256.Int).Sub(prev, amount))
	return *prev
}

func (m *MockStateDB) CreateAccount(addr common.Address) { m.accounts[addr] = true }
func (m *MockStateDB) Exist(addr common.Address) bool    { return m.accounts[addr] }

func (m *MockStateDB) AddLog(log *ethtypes.Log) {
	m.logs = append(m.logs, log)
	n := len(m.logs) - 1
	m.journal = append(m.journal, func() { m.logs = m.logs[:n] })
}

func (m *MockStateDB) Logs() []*ethtypes.Log { return m.logs }
func (m *MockStateDB) TxHash() common.Hash   { return common.Hash{} }
func (m *MockStateDB) Snapshot() int         { return len(m.journal) }

func (m *MockStateDB) RevertToSnapshot(id int) {
	for i := len(m.journal) - 1; i >= id; i-- {
		m.journal[i]()
	}
	m.journal = m.journal[:id]
}

type mockBlockContext struct {
	number    *big.Int
	timestamp uint64
}

func (b *mockBlockContext) Number() *big.Int  { return b.number }
func (b *mockBlockContext) Timestamp() uint64 { return b.timestamp }

type mockChainConfig struct{}

func (mockChainConfig) GetChainID() *big.Int { return big.NewInt(96369) }

// mockAccessibleState carries the value of the call being simulated.
type mockAccessibleState struct {
	state *MockStateDB
	block *mockBlockContext
	value *uint256.Int
}

func newMockAccessibleState(state *MockStateDB) *mockAccessibleState {
	return &mockAccessibleState{
		state: state,
		block: &mockBlockContext{number: big.NewInt(100), timestamp: 1_700_000_000},
	}
}

func (m *mockAccessibleState) GetStateDB() contract.StateDB {
	return m.state
}

func (m *mockAccessibleState) GetBlockContext() contract.BlockContext {
	return m.block
}

func (m *mockAccessibleState) GetCallValue() *uint256.Int {
	return m.value
}

func (m *mockAccessibleState) GetChainConfig() precompileconfig.ChainConfig {
	return mockChainConfig{}
}
