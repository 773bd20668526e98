// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/luxfi/crypto"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	log "github.com/luxfi/log"
	"github.com/luxfi/mintgate/allowlist"
	"github.com/luxfi/mintgate/authority"
	"github.com/luxfi/mintgate/claim"
	"github.com/luxfi/mintgate/diskdb"
	"github.com/luxfi/mintgate/mintgate"
	"github.com/spf13/cobra"
)

var (
	errBadAddress = errors.New("invalid address")
	errBadHash    = errors.New("invalid 32-byte hash")
)

func newTreeCmd(logger log.Logger) *cobra.Command {
	var listPath, dbPath, outPath string

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Build the allowlist tree, store its proofs and print its root",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tree, err := loadTree(listPath)
			if err != nil {
				return err
			}

			// without --db the store only round-trips the proofs so a
			// corrupt bundle is never written
			var backend interface {
				allowlist.Backend
				Close() error
			}
			if dbPath != "" {
				if backend, err = diskdb.Open(dbPath); err != nil {
					return err
				}
			} else {
				backend = memdb.New()
			}
			defer backend.Close()

			store := allowlist.NewStore(backend, logger)
			if err := store.Put(tree); err != nil {
				return err
			}
			summary, err := store.Summary(tree.Root())
			if err != nil {
				return err
			}

			if outPath != "" {
				proofs := make([]*allowlist.Proof, 0, tree.Len())
				for _, e := range tree.Entries() {
					p, err := store.Proof(tree.Root(), e.Address, e.Quantity)
					if err != nil {
						return err
					}
					if !p.Verify() {
						return fmt.Errorf("proof for %s does not verify", e)
					}
					proofs = append(proofs, p)
				}
				if err := writeJSONFile(outPath, proofs); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&listPath, "allowlist", "", "allowlist JSON file")
	cmd.Flags().StringVar(&dbPath, "db", "", "persist the tree's proofs in this database directory")
	cmd.Flags().StringVar(&outPath, "out", "", "write every entry's proof to this file")
	_ = cmd.MarkFlagRequired("allowlist")
	return cmd
}

// proofSource answers proof lookups from an allowlist file or from a tree
// previously stored with tree --db.
type proofSource struct {
	listPath string
	dbPath   string
	root     string
	log      log.Logger
}

func (s *proofSource) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.listPath, "allowlist", "", "allowlist JSON file")
	cmd.Flags().StringVar(&s.dbPath, "db", "", "proof database written by tree --db")
	cmd.Flags().StringVar(&s.root, "root", "", "root of the stored tree to read")
	cmd.MarkFlagsOneRequired("allowlist", "db")
	cmd.MarkFlagsMutuallyExclusive("allowlist", "db")
	cmd.MarkFlagsRequiredTogether("db", "root")
}

// proofs returns the proofs for addr, or only the one for quantity when it
// is set.
func (s *proofSource) proofs(addr common.Address, quantity *uint64) ([]*allowlist.Proof, error) {
	if s.dbPath == "" {
		return s.fromAllowlist(addr, quantity)
	}

	root, err := parseHash(s.root)
	if err != nil {
		return nil, err
	}
	db, err := diskdb.Open(s.dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	store := allowlist.NewStore(db, s.log)
	has, err := store.Has(root)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", allowlist.ErrRootNotFound, root.Hex())
	}

	if quantity != nil {
		p, err := store.Proof(root, addr, *quantity)
		if err != nil {
			return nil, err
		}
		return []*allowlist.Proof{p}, nil
	}
	proofs, err := store.ProofsFor(root, addr)
	if err != nil {
		return nil, err
	}
	if len(proofs) == 0 {
		return nil, fmt.Errorf("%w: %s", allowlist.ErrEntryNotFound, addr.Hex())
	}
	return proofs, nil
}

func (s *proofSource) fromAllowlist(addr common.Address, quantity *uint64) ([]*allowlist.Proof, error) {
	tree, err := loadTree(s.listPath)
	if err != nil {
		return nil, err
	}
	if quantity != nil {
		p, err := tree.Proof(claim.Entry{Address: addr, Quantity: *quantity})
		if err != nil {
			return nil, err
		}
		return []*allowlist.Proof{p}, nil
	}

	var proofs []*allowlist.Proof
	for _, p := range tree.Proofs() {
		if p.Entry.Address == addr {
			proofs = append(proofs, p)
		}
	}
	if len(proofs) == 0 {
		return nil, fmt.Errorf("%w: %s", allowlist.ErrEntryNotFound, addr.Hex())
	}
	return proofs, nil
}

func newProofCmd(logger log.Logger) *cobra.Command {
	var (
		src      = proofSource{log: logger}
		address  string
		quantity uint64
	)
	cmd := &cobra.Command{
		Use:   "proof",
		Short: "Print membership proofs for an address",
		Long: "Print the proof for one (address, quantity) entry, or every proof " +
			"of the address when --quantity is omitted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := parseAddress(address)
			if err != nil {
				return err
			}
			var qty *uint64
			if cmd.Flags().Changed("quantity") {
				qty = &quantity
			}
			proofs, err := src.proofs(addr, qty)
			if err != nil {
				return err
			}
			if qty != nil {
				return writeJSON(cmd.OutOrStdout(), proofs[0])
			}
			return writeJSON(cmd.OutOrStdout(), proofs)
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVar(&address, "address", "", "entry address")
	cmd.Flags().Uint64Var(&quantity, "quantity", 0, "entry quantity")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func newSignCmd(logger log.Logger) *cobra.Command {
	var (
		keyPath  string
		listPath string
		address  string
		quantity uint64
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign an authorization as the trusted authority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := parseAddress(address)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(keyPath)
			if err != nil {
				return err
			}
			key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(raw)), "0x"))
			if err != nil {
				return fmt.Errorf("read key: %w", err)
			}

			opts := []authority.Option{authority.WithLogger(logger)}
			if listPath != "" {
				f, err := os.Open(listPath)
				if err != nil {
					return err
				}
				entries, err := allowlist.LoadEntries(f)
				f.Close()
				if err != nil {
					return err
				}
				opts = append(opts, authority.WithPolicy(authority.EntriesPolicy(entries)))
			}

			signer, err := authority.NewSigner(key, opts...)
			if err != nil {
				return err
			}
			auth, err := signer.Sign(addr, quantity)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), auth)
		},
	}
	cmd.Flags().StringVar(&keyPath, "key-file", "", "file holding the hex secp256k1 key")
	cmd.Flags().StringVar(&listPath, "allowlist", "", "only sign entries of this allowlist")
	cmd.Flags().StringVar(&address, "address", "", "recipient address")
	cmd.Flags().Uint64Var(&quantity, "quantity", 0, "authorized quantity")
	_ = cmd.MarkFlagRequired("key-file")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var (
		authPath     string
		trusted      string
		consumedPath string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an authorization against the trusted authority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			authorityAddr, err := parseAddress(trusted)
			if err != nil {
				return err
			}
			auth, err := loadAuthorization(authPath)
			if err != nil {
				return err
			}
			if err := auth.Verify(authorityAddr); err != nil {
				return err
			}
			if consumedPath != "" {
				db, err := diskdb.Open(consumedPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := authority.NewDatabaseConsumedSet(db).Consume(auth.MessageHash); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
	cmd.Flags().StringVar(&authPath, "authorization", "", "authorization JSON file")
	cmd.Flags().StringVar(&trusted, "authority", "", "trusted authority address")
	cmd.Flags().StringVar(&consumedPath, "consumed-db", "", "redeem the authorization in this database; a second redemption fails")
	_ = cmd.MarkFlagRequired("authorization")
	_ = cmd.MarkFlagRequired("authority")
	return cmd
}

func newCalldataCmd(logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calldata",
		Short: "Encode mint calldata for the gate precompile",
	}

	var (
		src      = proofSource{log: logger}
		address  string
		quantity uint64
	)
	membership := &cobra.Command{
		Use:   "membership",
		Short: "Encode mintByMembership for an allowlist entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := parseAddress(address)
			if err != nil {
				return err
			}
			proofs, err := src.proofs(addr, &quantity)
			if err != nil {
				return err
			}
			siblings := make([][32]byte, len(proofs[0].Siblings))
			for i, h := range proofs[0].Siblings {
				siblings[i] = h
			}
			input, err := mintgate.GateABI.Pack("mintByMembership", new(big.Int).SetUint64(quantity), siblings)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(input))
			return err
		},
	}
	src.bind(membership)
	membership.Flags().StringVar(&address, "address", "", "caller address")
	membership.Flags().Uint64Var(&quantity, "quantity", 0, "quantity to mint")
	_ = membership.MarkFlagRequired("address")
	_ = membership.MarkFlagRequired("quantity")

	var authPath string
	signature := &cobra.Command{
		Use:   "signature",
		Short: "Encode mintBySignature for a signed authorization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := loadAuthorization(authPath)
			if err != nil {
				return err
			}
			input, err := mintgate.GateABI.Pack("mintBySignature",
				new(big.Int).SetUint64(auth.Quantity),
				[32]byte(auth.MessageHash),
				[]byte(auth.Signature),
			)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(input))
			return err
		},
	}
	signature.Flags().StringVar(&authPath, "authorization", "", "authorization JSON file")
	_ = signature.MarkFlagRequired("authorization")

	cmd.AddCommand(membership, signature)
	return cmd
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", errBadAddress, s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q", errBadHash, s)
	}
	return common.BytesToHash(b), nil
}

func loadTree(path string) (*allowlist.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := allowlist.LoadEntries(f)
	if err != nil {
		return nil, err
	}
	return allowlist.Build(entries)
}

func loadAuthorization(path string) (*authority.Authorization, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	auth := new(authority.Authorization)
	if err := json.Unmarshal(raw, auth); err != nil {
		return nil, fmt.Errorf("decode authorization: %w", err)
	}
	return auth, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
