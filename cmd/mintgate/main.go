// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command mintgate is the off-chain companion of the mint gate precompile:
// it builds allowlist trees, hands out proofs, signs authorizations and
// encodes calldata.
package main

import (
	"fmt"
	"os"

	log "github.com/luxfi/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mintgate",
		Short:         "Allowlist and authority tooling for the mint gate",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	logger := log.NewTestLogger(log.InfoLevel)

	root.AddCommand(
		newTreeCmd(logger),
		newProofCmd(logger),
		newSignCmd(logger),
		newVerifyCmd(),
		newCalldataCmd(logger),
	)
	return root
}
