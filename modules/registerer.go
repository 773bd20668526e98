// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/luxfi/geth/common"
)

var (
	ErrBlackholeAddress = errors.New("address overlaps with blackhole address")
	ErrNotReserved      = errors.New("address not in a reserved range")
	ErrDuplicateKey     = errors.New("config key already used by a stateful precompile")
	ErrDuplicateAddress = errors.New("address already used by a stateful precompile")
)

// AddressRange represents a continuous range of addresses
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff [addr] is contained within the (inclusive)
// range of addresses defined by [a].
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

// BlackholeAddr is the address where assets are burned
var BlackholeAddr = common.Address{
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var (
	// registeredModules is a list of Module to preserve order
	// for deterministic iteration
	registeredModules = make([]Module, 0)

	// Reserved address ranges for stateful precompiles. Addresses are
	// trailing-significant: 0x0000...PCII, see the registry package.
	reservedRanges = []AddressRange{
		// LP-3xxx: EVM/Crypto (0x0..3000 - 0x0..3FFF)
		{
			Start: common.HexToAddress("0x0000000000000000000000000000000000003000"),
			End:   common.HexToAddress("0x0000000000000000000000000000000000003fff"),
		},
		// LP-4xxx: Privacy/ZK (0x0..4000 - 0x0..4FFF)
		{
			Start: common.HexToAddress("0x0000000000000000000000000000000000004000"),
			End:   common.HexToAddress("0x0000000000000000000000000000000000004fff"),
		},
		// LP-8xxx: Assets and issuance (0x0..8000 - 0x0..8FFF)
		{
			Start: common.HexToAddress("0x0000000000000000000000000000000000008000"),
			End:   common.HexToAddress("0x0000000000000000000000000000000000008fff"),
		},
	}
)

// ReservedAddress returns true if [addr] is in a reserved range for custom precompiles
func ReservedAddress(addr common.Address) bool {
	for _, reservedRange := range reservedRanges {
		if reservedRange.Contains(addr) {
			return true
		}
	}

	return false
}

// RegisterModule registers a stateful precompile module
func RegisterModule(stm Module) error {
	address := stm.Address
	key := stm.ConfigKey

	if address == BlackholeAddr {
		return fmt.Errorf("%w: %s", ErrBlackholeAddress, address)
	}
	if !ReservedAddress(address) {
		return fmt.Errorf("%w: %s", ErrNotReserved, address)
	}

	for _, registeredModule := range registeredModules {
		if registeredModule.ConfigKey == key {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, key)
		}
		if registeredModule.Address == address {
			return fmt.Errorf("%w: %s", ErrDuplicateAddress, address)
		}
	}
	// sort by address to ensure deterministic iteration
	registeredModules = insertSortedByAddress(registeredModules, stm)
	return nil
}

func GetPrecompileModuleByAddress(address common.Address) (Module, bool) {
	for _, stm := range registeredModules {
		if stm.Address == address {
			return stm, true
		}
	}
	return Module{}, false
}

func GetPrecompileModule(key string) (Module, bool) {
	for _, stm := range registeredModules {
		if stm.ConfigKey == key {
			return stm, true
		}
	}
	return Module{}, false
}

func RegisteredModules() []Module {
	return registeredModules
}

func insertSortedByAddress(data []Module, stm Module) []Module {
	data = append(data, stm)
	sort.Sort(moduleArray(data))
	return data
}
