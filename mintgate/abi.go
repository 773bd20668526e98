// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mintgate

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
)

// GateABIJSON is the Solidity interface of the mint gate precompile.
const GateABIJSON = `[
	{"type":"function","name":"mintByMembership","stateMutability":"payable",
	 "inputs":[{"name":"quantity","type":"uint256"},{"name":"proof","type":"bytes32[]"}],
	 "outputs":[{"name":"firstId","type":"uint256"}]},
	{"type":"function","name":"mintBySignature","stateMutability":"payable",
	 "inputs":[{"name":"quantity","type":"uint256"},{"name":"messageHash","type":"bytes32"},{"name":"signature","type":"bytes"}],
	 "outputs":[{"name":"firstId","type":"uint256"}]},
	{"type":"function","name":"verifyMembership","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"},{"name":"quantity","type":"uint256"},{"name":"proof","type":"bytes32[]"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getPrice","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getRoot","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"name","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"totalMinted","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view",
	 "inputs":[{"name":"tokenId","type":"uint256"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isAuthorizationConsumed","stateMutability":"view",
	 "inputs":[{"name":"messageHash","type":"bytes32"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[],
	 "outputs":[{"name":"amount","type":"uint256"}]},
	{"type":"event","name":"Transfer","anonymous":false,
	 "inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]},
	{"type":"event","name":"Withdrawal","anonymous":false,
	 "inputs":[{"name":"to","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

// GateABI is the parsed gate interface.
var GateABI = ParseABI(GateABIJSON)

// ExtendedABI adds output, input and event packing helpers to abi.ABI.
type ExtendedABI struct {
	abi.ABI
}

// ParseABI parses rawABI and panics on malformed JSON.
func ParseABI(rawABI string) ExtendedABI {
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse ABI: %v", err))
	}
	return ExtendedABI{ABI: parsed}
}

// PackOutput packs args as the return data of method name, without selector.
func (e ExtendedABI) PackOutput(name string, args ...interface{}) ([]byte, error) {
	method, exist := e.Methods[name]
	if !exist {
		return nil, fmt.Errorf("method '%s' not found", name)
	}
	return method.Outputs.Pack(args...)
}

// UnpackInput unpacks calldata (selector stripped) for method name.
// useStrictMode rejects data that is not a whole number of words.
func (e ExtendedABI) UnpackInput(name string, data []byte, useStrictMode bool) ([]interface{}, error) {
	method, exist := e.Methods[name]
	if !exist {
		return nil, fmt.Errorf("method '%s' not found", name)
	}
	if useStrictMode && len(data)%32 != 0 {
		return nil, fmt.Errorf("abi: improperly formatted input: %d bytes", len(data))
	}
	return method.Inputs.Unpack(data)
}

// transferTopics are the topics of Transfer(address(0), to, id). The event
// has no data.
func transferTopics(to common.Address, id uint64) []common.Hash {
	return []common.Hash{
		GateABI.Events["Transfer"].ID,
		{},
		common.BytesToHash(to.Bytes()),
		uint256.NewInt(id).Bytes32(),
	}
}

// withdrawalLog returns the topics and data of Withdrawal(to, amount).
func withdrawalLog(to common.Address, amount *uint256.Int) ([]common.Hash, []byte) {
	word := amount.Bytes32()
	return []common.Hash{
		GateABI.Events["Withdrawal"].ID,
		common.BytesToHash(to.Bytes()),
	}, word[:]
}
