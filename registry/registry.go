// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// ============================================================================
// PRECOMPILE ADDRESS SCHEME
// ============================================================================
//
// Precompiles use trailing-significant 20-byte addresses:
//   Format: 0x0000000000000000000000000000000000PCII
//
//   0x 0000...0000 P C II
//                  │ │ └┴─ Item (8 bits, 256 items per family×chain)
//                  │ └──── Chain slot (4 bits)
//                  └────── Family page (4 bits)
//
// P nibble:
//   P=3 → EVM/Crypto
//   P=4 → Privacy/ZK
//   P=8 → Assets (issuance gates, collections)
//
// C nibble = Chain slot:
//   C=0 → P-Chain
//   C=1 → X-Chain
//   C=2 → C-Chain (main EVM)
//   C=8 → Zoo
//   C=9 → Hanzo
//
// Example: allowlist mint gate on C-Chain = P=8, C=2, II=00
//          Address = 0x0000000000000000000000000000000000008200

// MintGateItem is the II byte of the mint gate within the Assets family.
const MintGateItem uint8 = 0x00

// PrecompileAddress calculates address from (P, C, II) nibbles
// Returns trailing-significant format: 0x0000000000000000000000000000000000PCII
func PrecompileAddress(p, c, ii uint8) common.Address {
	if p > 15 || c > 15 {
		return common.Address{}
	}
	selector := fmt.Sprintf("%x%x%02x", p, c, ii)
	addr := "0000000000000000000000000000000000" + selector
	return common.HexToAddress("0x" + addr)
}

// ChainSlot returns the C-nibble for a chain name
func ChainSlot(chain string) uint8 {
	switch chain {
	case "P", "p":
		return 0
	case "X", "x":
		return 1
	case "C", "c":
		return 2
	case "Zoo", "zoo":
		return 8
	case "Hanzo", "hanzo":
		return 9
	default:
		return 0xFF
	}
}

// FamilyPage returns the P-nibble for a family name
func FamilyPage(family string) uint8 {
	switch family {
	case "EVM", "evm", "Crypto", "crypto":
		return 3
	case "Privacy", "privacy", "ZK", "zk":
		return 4
	case "Assets", "assets", "Issuance", "issuance":
		return 8
	default:
		return 0xFF
	}
}
