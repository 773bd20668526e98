// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func withCleanRegistry(t *testing.T) {
	saved := registeredModules
	registeredModules = make([]Module, 0)
	t.Cleanup(func() { registeredModules = saved })
}

func TestReservedAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"0x0000000000000000000000000000000000003000", true},
		{"0x0000000000000000000000000000000000004fff", true},
		{"0x0000000000000000000000000000000000008200", true},
		{"0x0000000000000000000000000000000000005000", false},
		{"0x0000000000000000000000000000000000000001", false},
		{"0x1000000000000000000000000000000000008200", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ReservedAddress(common.HexToAddress(tt.addr)), tt.addr)
	}
}

func TestRegisterModule(t *testing.T) {
	withCleanRegistry(t)

	high := Module{ConfigKey: "high", Address: common.HexToAddress("0x0000000000000000000000000000000000008900")}
	low := Module{ConfigKey: "low", Address: common.HexToAddress("0x0000000000000000000000000000000000003001")}
	require.NoError(t, RegisterModule(high))
	require.NoError(t, RegisterModule(low))

	// iteration is ordered by address, not registration
	all := RegisteredModules()
	require.Len(t, all, 2)
	require.Equal(t, "low", all[0].ConfigKey)
	require.Equal(t, "high", all[1].ConfigKey)

	m, ok := GetPrecompileModule("high")
	require.True(t, ok)
	require.Equal(t, high.Address, m.Address)

	m, ok = GetPrecompileModuleByAddress(low.Address)
	require.True(t, ok)
	require.Equal(t, "low", m.ConfigKey)

	_, ok = GetPrecompileModule("missing")
	require.False(t, ok)
}

func TestRegisterModuleRejects(t *testing.T) {
	withCleanRegistry(t)

	base := Module{ConfigKey: "base", Address: common.HexToAddress("0x0000000000000000000000000000000000008200")}
	require.NoError(t, RegisterModule(base))

	tests := []struct {
		name    string
		module  Module
		wantErr error
	}{
		{"blackhole", Module{ConfigKey: "bh", Address: BlackholeAddr}, ErrBlackholeAddress},
		{"unreserved", Module{ConfigKey: "un", Address: common.HexToAddress("0x0000000000000000000000000000000000000100")}, ErrNotReserved},
		{"duplicate key", Module{ConfigKey: "base", Address: common.HexToAddress("0x0000000000000000000000000000000000008201")}, ErrDuplicateKey},
		{"duplicate address", Module{ConfigKey: "other", Address: base.Address}, ErrDuplicateAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, RegisterModule(tt.module), tt.wantErr)
		})
	}
	require.Len(t, RegisteredModules(), 1)
}
