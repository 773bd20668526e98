// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mintgate

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/math"
	"github.com/luxfi/mintgate/contract"
	"github.com/luxfi/mintgate/modules"
	"github.com/luxfi/mintgate/precompileconfig"
	"github.com/luxfi/mintgate/registry"
)

var _ contract.Configurator = (*configurator)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "mintGateConfig"

// ContractAddress is the C-Chain mint gate.
var ContractAddress = registry.PrecompileAddress(registry.FamilyPage("Issuance"), registry.ChainSlot("C"), registry.MintGateItem)

// Module is the precompile module
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractAddress,
	Contract:     GatePrecompile,
	Configurator: &configurator{},
}

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

func (*configurator) MakeConfig() precompileconfig.Config {
	return new(Config)
}

// Configure writes the gate parameters into the precompile's storage. The
// parameters are immutable: configuring an initialized gate fails.
func (*configurator) Configure(
	chainConfig precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	blockContext contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}
	params, err := config.Params()
	if err != nil {
		return err
	}
	if err := storeParams(state, ContractAddress, params); err != nil {
		return err
	}
	GatePrecompile.log.Info("mint gate configured",
		"name", params.Name,
		"symbol", params.Symbol,
		"price", params.Price.Dec(),
		"root", params.Root.Hex(),
		"authority", params.Authority.Hex(),
		"replayProtection", params.ReplayProtection,
	)
	return nil
}

// Config implements precompileconfig.Config for the mint gate.
type Config struct {
	precompileconfig.Upgrade
	Name             string                `json:"name"`
	Symbol           string                `json:"symbol"`
	Price            *math.HexOrDecimal256 `json:"price"`
	MerkleRoot       common.Hash           `json:"merkleRoot"`
	Authority        common.Address        `json:"authority"`
	ReplayProtection bool                  `json:"replayProtection,omitempty"`
}

// NewConfig returns a config activating the gate at blockTimestamp.
func NewConfig(blockTimestamp *uint64, params Params) *Config {
	var price *math.HexOrDecimal256
	if params.Price != nil {
		price = (*math.HexOrDecimal256)(params.Price.ToBig())
	}
	return &Config{
		Upgrade:          precompileconfig.Upgrade{BlockTimestamp: blockTimestamp},
		Name:             params.Name,
		Symbol:           params.Symbol,
		Price:            price,
		MerkleRoot:       params.Root,
		Authority:        params.Authority,
		ReplayProtection: params.ReplayProtection,
	}
}

func (c *Config) Key() string { return ConfigKey }

func (c *Config) Timestamp() *uint64 { return c.Upgrade.Timestamp() }

func (c *Config) IsDisabled() bool { return c.Upgrade.Disable }

func (c *Config) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*Config)
	if !ok {
		return false
	}
	return c.Upgrade.Equal(&other.Upgrade) &&
		c.Name == other.Name &&
		c.Symbol == other.Symbol &&
		priceEqual(c.Price, other.Price) &&
		c.MerkleRoot == other.MerkleRoot &&
		c.Authority == other.Authority &&
		c.ReplayProtection == other.ReplayProtection
}

func (c *Config) Verify(chainConfig precompileconfig.ChainConfig) error {
	if c.IsDisabled() {
		return nil
	}
	_, err := c.Params()
	return err
}

// Params converts the config into validated gate parameters.
func (c *Config) Params() (Params, error) {
	if c.Price == nil {
		return Params{}, fmt.Errorf("%w: nil price", ErrInvalidParams)
	}
	b := (*big.Int)(c.Price)
	if b.Sign() < 0 {
		return Params{}, fmt.Errorf("%w: negative price", ErrInvalidParams)
	}
	price, overflow := uint256.FromBig(b)
	if overflow {
		return Params{}, fmt.Errorf("%w: price exceeds 256 bits", ErrInvalidParams)
	}
	p := Params{
		Name:             c.Name,
		Symbol:           c.Symbol,
		Price:            price,
		Root:             c.MerkleRoot,
		Authority:        c.Authority,
		ReplayProtection: c.ReplayProtection,
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func priceEqual(a, b *math.HexOrDecimal256) bool {
	if a == nil || b == nil {
		return a == b
	}
	return (*big.Int)(a).Cmp((*big.Int)(b)) == 0
}
