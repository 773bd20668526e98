// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mintgate

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/luxfi/geth/core/types"
	log "github.com/luxfi/log"
	"github.com/luxfi/mintgate/allowlist"
	"github.com/luxfi/mintgate/contract"
	"github.com/luxfi/mintgate/issuance"
)

// Gas costs
const (
	GasMintBase        uint64 = 30_000 // Base cost of either mint path
	GasPerProofElement uint64 = 300    // One sorted-pair keccak
	GasSignatureCheck  uint64 = 3_000  // ecrecover
	GasPerUnit         uint64 = 25_000 // Owner and balance writes per minted ID
	GasRead            uint64 = 2_100  // Cold storage read
	GasVerifyBase      uint64 = 2_100  // verifyMembership without proof
	GasWithdraw        uint64 = 12_000 // Two balance updates
)

var (
	ErrInsufficientGas  = errors.New("insufficient gas")
	ErrWriteProtection  = errors.New("write protection: state change in read-only call")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownSelector  = errors.New("unknown function selector")
	ErrUnauthorized     = errors.New("unauthorized: caller is not the authority")
	ErrNonPayable       = errors.New("value sent to non-payable method")
	ErrNonexistentToken = errors.New("token does not exist")
	ErrInvalidQuantity  = errors.New("quantity out of range")
)

var _ contract.StatefulPrecompiledContract = (*gatePrecompile)(nil)

// GatePrecompile is the mint gate singleton.
var GatePrecompile = &gatePrecompile{log: log.NewTestLogger(log.InfoLevel)}

type gatePrecompile struct {
	log log.Logger
}

// SetLogger replaces the precompile's logger.
func SetLogger(l log.Logger) {
	if l != nil {
		GatePrecompile.log = l
	}
}

// Run dispatches on the ABI selector.
func (p *gatePrecompile) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if len(input) < 4 {
		return nil, suppliedGas, ErrInvalidInput
	}
	method, err := GateABI.MethodById(input[:4])
	if err != nil {
		return nil, suppliedGas, fmt.Errorf("%w: %x", ErrUnknownSelector, input[:4])
	}
	args := input[4:]

	if !method.IsPayable() && !callValue(accessibleState).IsZero() {
		return nil, suppliedGas, ErrNonPayable
	}

	switch method.Name {
	// Mint paths
	case "mintByMembership":
		return p.mintByMembership(accessibleState, caller, addr, args, suppliedGas, readOnly)
	case "mintBySignature":
		return p.mintBySignature(accessibleState, caller, addr, args, suppliedGas, readOnly)
	case "withdraw":
		return p.withdraw(accessibleState, caller, addr, suppliedGas, readOnly)

	// View functions
	case "verifyMembership":
		return p.verifyMembership(accessibleState, addr, args, suppliedGas)
	case "ownerOf":
		return p.ownerOf(accessibleState, addr, args, suppliedGas)
	case "balanceOf":
		return p.balanceOf(accessibleState, addr, args, suppliedGas)
	case "isAuthorizationConsumed":
		return p.isAuthorizationConsumed(accessibleState, addr, args, suppliedGas)
	default:
		return p.readParam(accessibleState, addr, method.Name, suppliedGas)
	}
}

func (p *gatePrecompile) mintByMembership(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrWriteProtection
	}
	unpacked, err := GateABI.UnpackInput("mintByMembership", args, false)
	if err != nil {
		return nil, suppliedGas, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	quantity, err := quantityArg(unpacked[0])
	if err != nil {
		return nil, suppliedGas, err
	}
	proof, err := hashesArg(unpacked[1])
	if err != nil {
		return nil, suppliedGas, err
	}
	if len(proof) > allowlist.MaxProofLength {
		return nil, suppliedGas, ErrProofTooLong
	}

	required, ok := mintGas(GasMintBase+uint64(len(proof))*GasPerProofElement, quantity)
	if !ok || suppliedGas < required {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - required

	gate, err := p.gate(accessibleState, addr)
	if err != nil {
		return nil, remainingGas, err
	}
	receipt, err := gate.MintByMembership(caller, quantity, proof, callValue(accessibleState))
	if err != nil {
		return nil, remainingGas, err
	}
	ret, err := GateABI.PackOutput("mintByMembership", new(big.Int).SetUint64(receipt.FirstID))
	return ret, remainingGas, err
}

func (p *gatePrecompile) mintBySignature(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	args []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrWriteProtection
	}
	unpacked, err := GateABI.UnpackInput("mintBySignature", args, false)
	if err != nil {
		return nil, suppliedGas, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	quantity, err := quantityArg(unpacked[0])
	if err != nil {
		return nil, suppliedGas, err
	}
	messageHash, ok := unpacked[1].([32]byte)
	if !ok {
		return nil, suppliedGas, ErrInvalidInput
	}
	signature, ok := unpacked[2].([]byte)
	if !ok {
		return nil, suppliedGas, ErrInvalidInput
	}

	required, ok := mintGas(GasMintBase+GasSignatureCheck, quantity)
	if !ok || suppliedGas < required {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - required

	gate, err := p.gate(accessibleState, addr)
	if err != nil {
		return nil, remainingGas, err
	}
	receipt, err := gate.MintBySignature(caller, quantity, messageHash, signature, callValue(accessibleState))
	if err != nil {
		return nil, remainingGas, err
	}
	ret, err := GateABI.PackOutput("mintBySignature", new(big.Int).SetUint64(receipt.FirstID))
	return ret, remainingGas, err
}

// withdraw moves the accumulated proceeds to the authority.
func (p *gatePrecompile) withdraw(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, ErrWriteProtection
	}
	if suppliedGas < GasWithdraw {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasWithdraw

	stateDB := accessibleState.GetStateDB()
	params, err := loadParams(stateDB, addr)
	if err != nil {
		return nil, remainingGas, err
	}
	if caller != params.Authority {
		return nil, remainingGas, ErrUnauthorized
	}

	amount := new(uint256.Int).Set(stateDB.GetBalance(addr))
	if !amount.IsZero() {
		stateDB.SubBalance(addr, amount, tracing.BalanceChangeTransfer)
		stateDB.AddBalance(params.Authority, amount, tracing.BalanceChangeTransfer)
	}
	topics, data := withdrawalLog(params.Authority, amount)
	emit(accessibleState, addr, topics, data)
	p.log.Info("proceeds withdrawn",
		"to", params.Authority.Hex(),
		"amount", amount.Dec(),
	)

	ret, err := GateABI.PackOutput("withdraw", amount.ToBig())
	return ret, remainingGas, err
}

// View functions

func (p *gatePrecompile) verifyMembership(
	accessibleState contract.AccessibleState,
	addr common.Address,
	args []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	unpacked, err := GateABI.UnpackInput("verifyMembership", args, false)
	if err != nil {
		return nil, suppliedGas, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	account, ok := unpacked[0].(common.Address)
	if !ok {
		return nil, suppliedGas, ErrInvalidInput
	}
	proof, err := hashesArg(unpacked[2])
	if err != nil {
		return nil, suppliedGas, err
	}
	if len(proof) > allowlist.MaxProofLength {
		return nil, suppliedGas, ErrProofTooLong
	}

	required := GasVerifyBase + uint64(len(proof))*GasPerProofElement
	if suppliedGas < required {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - required

	params, err := loadParams(accessibleState.GetStateDB(), addr)
	if err != nil {
		return nil, remainingGas, err
	}

	valid := false
	if quantity, err := quantityArg(unpacked[1]); err == nil {
		valid = allowlist.Verify(account, quantity, proof, params.Root)
	}
	ret, err := GateABI.PackOutput("verifyMembership", valid)
	return ret, remainingGas, err
}

func (p *gatePrecompile) ownerOf(
	accessibleState contract.AccessibleState,
	addr common.Address,
	args []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasRead {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasRead

	unpacked, err := GateABI.UnpackInput("ownerOf", args, true)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	id, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, remainingGas, ErrInvalidInput
	}
	if !id.IsUint64() {
		return nil, remainingGas, fmt.Errorf("%w: %s", ErrNonexistentToken, id)
	}

	ledger := &stateLedger{db: accessibleState.GetStateDB(), addr: addr}
	owner, err := ledger.OwnerOf(id.Uint64())
	if err != nil {
		return nil, remainingGas, err
	}
	if owner == (common.Address{}) {
		return nil, remainingGas, fmt.Errorf("%w: %s", ErrNonexistentToken, id)
	}
	ret, err := GateABI.PackOutput("ownerOf", owner)
	return ret, remainingGas, err
}

func (p *gatePrecompile) balanceOf(
	accessibleState contract.AccessibleState,
	addr common.Address,
	args []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasRead {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasRead

	unpacked, err := GateABI.UnpackInput("balanceOf", args, true)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	account, ok := unpacked[0].(common.Address)
	if !ok {
		return nil, remainingGas, ErrInvalidInput
	}

	ledger := &stateLedger{db: accessibleState.GetStateDB(), addr: addr}
	ret, err := GateABI.PackOutput("balanceOf", ledger.BalanceOf(account).ToBig())
	return ret, remainingGas, err
}

func (p *gatePrecompile) isAuthorizationConsumed(
	accessibleState contract.AccessibleState,
	addr common.Address,
	args []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasRead {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasRead

	unpacked, err := GateABI.UnpackInput("isAuthorizationConsumed", args, true)
	if err != nil {
		return nil, remainingGas, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	messageHash, ok := unpacked[0].([32]byte)
	if !ok {
		return nil, remainingGas, ErrInvalidInput
	}

	set := &stateConsumedSet{db: accessibleState.GetStateDB(), addr: addr}
	consumed, err := set.IsConsumed(messageHash)
	if err != nil {
		return nil, remainingGas, err
	}
	ret, err := GateABI.PackOutput("isAuthorizationConsumed", consumed)
	return ret, remainingGas, err
}

// readParam serves the argument-less getters.
func (p *gatePrecompile) readParam(
	accessibleState contract.AccessibleState,
	addr common.Address,
	name string,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasRead {
		return nil, 0, ErrInsufficientGas
	}
	remainingGas := suppliedGas - GasRead

	stateDB := accessibleState.GetStateDB()
	params, err := loadParams(stateDB, addr)
	if err != nil {
		return nil, remainingGas, err
	}

	var out interface{}
	switch name {
	case "getPrice":
		out = params.Price.ToBig()
	case "getRoot":
		out = [32]byte(params.Root)
	case "owner":
		out = params.Authority
	case "name":
		out = params.Name
	case "symbol":
		out = params.Symbol
	case "totalMinted":
		ledger := &stateLedger{db: stateDB, addr: addr}
		next, err := ledger.NextID()
		if err != nil {
			return nil, remainingGas, err
		}
		out = new(big.Int).SetUint64(next)
	default:
		return nil, remainingGas, fmt.Errorf("%w: %s", ErrUnknownSelector, name)
	}
	ret, err := GateABI.PackOutput(name, out)
	return ret, remainingGas, err
}

// gate assembles a Gate over the precompile's storage for one call.
func (p *gatePrecompile) gate(accessibleState contract.AccessibleState, addr common.Address) (*Gate, error) {
	stateDB := accessibleState.GetStateDB()
	params, err := loadParams(stateDB, addr)
	if err != nil {
		return nil, err
	}

	emitTransfers := issuance.ObserverFunc(func(r *issuance.Receipt) {
		for _, id := range r.IDs() {
			emit(accessibleState, addr, transferTopics(r.Recipient, id), nil)
		}
	})
	return NewGate(params, &stateLedger{db: stateDB, addr: addr},
		WithLogger(p.log),
		WithConsumedSet(&stateConsumedSet{db: stateDB, addr: addr}),
		WithObserver(emitTransfers),
	)
}

func emit(accessibleState contract.AccessibleState, addr common.Address, topics []common.Hash, data []byte) {
	var blockNumber uint64
	if blockContext := accessibleState.GetBlockContext(); blockContext != nil && blockContext.Number() != nil {
		blockNumber = blockContext.Number().Uint64()
	}
	accessibleState.GetStateDB().AddLog(&types.Log{
		Address:     addr,
		Topics:      topics,
		Data:        data,
		BlockNumber: blockNumber,
	})
}

func callValue(accessibleState contract.AccessibleState) *uint256.Int {
	if v := accessibleState.GetCallValue(); v != nil {
		return v
	}
	return new(uint256.Int)
}

// mintGas returns fixed + quantity*GasPerUnit, false on overflow.
func mintGas(fixed, quantity uint64) (uint64, bool) {
	if quantity > (math.MaxUint64-fixed)/GasPerUnit {
		return 0, false
	}
	return fixed + quantity*GasPerUnit, true
}

func quantityArg(v interface{}) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return 0, ErrInvalidInput
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidQuantity, n)
	}
	return n.Uint64(), nil
}

func hashesArg(v interface{}) ([]common.Hash, error) {
	raw, ok := v.([][32]byte)
	if !ok {
		return nil, ErrInvalidInput
	}
	hashes := make([]common.Hash, len(raw))
	for i, h := range raw {
		hashes[i] = h
	}
	return hashes, nil
}
