// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package precompileconfig holds the configuration contract shared by all
// stateful precompiles.
package precompileconfig

import "math/big"

// Config is the precompile configuration read from the chain's upgrade file.
type Config interface {
	// Key returns the unique key the config is stored under in JSON.
	Key() string
	// Timestamp returns the activation timestamp, nil if not scheduled.
	Timestamp() *uint64
	// IsDisabled returns true if this config disables the precompile.
	IsDisabled() bool
	// Equal returns true if the provided config is equivalent.
	Equal(Config) bool
	// Verify is called on startup and returns an error if the config is invalid.
	Verify(ChainConfig) error
}

// ChainConfig is the chain-level view a precompile config may consult.
type ChainConfig interface {
	GetChainID() *big.Int
}

// Upgrade contains the timestamp for the upgrade along with
// a boolean [Disable]. If [Disable] is set, the upgrade deactivates
// the precompile and clears its storage.
type Upgrade struct {
	BlockTimestamp *uint64 `json:"blockTimestamp"`
	Disable        bool    `json:"disable,omitempty"`
}

// Timestamp returns the timestamp this network upgrade goes into effect.
func (u *Upgrade) Timestamp() *uint64 {
	return u.BlockTimestamp
}

// Equal returns true iff [other] has the same blockTimestamp and has the
// same on value for the Disable flag.
func (u *Upgrade) Equal(other *Upgrade) bool {
	if other == nil {
		return false
	}
	if u.Disable != other.Disable {
		return false
	}
	switch {
	case u.BlockTimestamp == nil && other.BlockTimestamp == nil:
		return true
	case u.BlockTimestamp == nil || other.BlockTimestamp == nil:
		return false
	default:
		return *u.BlockTimestamp == *other.BlockTimestamp
	}
}
