// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package claim

import (
	"testing"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")

	enc := Encode(addr, 0x0102)
	require.Len(t, enc, EncodedLength)
	require.Equal(t, addr.Bytes(), enc[:20])

	// quantity is right-aligned in a 32-byte word
	for i := 20; i < 50; i++ {
		require.Zerof(t, enc[i], "byte %d should be zero padding", i)
	}
	require.Equal(t, byte(0x01), enc[50])
	require.Equal(t, byte(0x02), enc[51])
}

func TestHashMatchesPackedEncoding(t *testing.T) {
	addr := common.HexToAddress("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")

	// abi.encodePacked(address, uint256(3)) built by hand
	packed := append(common.CopyBytes(addr.Bytes()), common.LeftPadBytes([]byte{3}, 32)...)
	want := common.BytesToHash(crypto.Keccak256(packed))

	require.Equal(t, want, Hash(addr, 3))
	require.Equal(t, want, Entry{Address: addr, Quantity: 3}.Hash())
}

func TestHashDistinguishesFields(t *testing.T) {
	a := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	b := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	tests := []struct {
		name string
		x, y Entry
	}{
		{"different quantity", Entry{a, 1}, Entry{a, 2}},
		{"different address", Entry{a, 1}, Entry{b, 1}},
		{"zero quantity", Entry{a, 0}, Entry{a, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotEqual(t, tt.x.Hash(), tt.y.Hash())
		})
	}
}

func TestHashDeterministic(t *testing.T) {
	addr := common.HexToAddress("0x5555555555555555555555555555555555555555")
	require.Equal(t, Hash(addr, 42), Hash(addr, 42))
}
