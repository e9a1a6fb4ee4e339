package solana

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	// WrappedSolMint is the native-asset placeholder mint that shows up in token balances.
	WrappedSolMint = "So11111111111111111111111111111111111111112"

	// LamportsPerSol is the number of lamports in one SOL.
	LamportsPerSol = 1_000_000_000

	mintAccountSize = 82
)

var (
	tokenProgramID     = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// SignatureInfo is one entry of getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	Err       interface{}
}

// Failed reports whether the transaction behind the signature failed on chain.
func (s SignatureInfo) Failed() bool {
	return s.Err != nil
}

// TransactionDetail holds the parts of a confirmed transaction the watcher inspects.
// AccountKeys, PreBalances and PostBalances are index aligned.
type TransactionDetail struct {
	Signature      string
	Slot           uint64
	Err            interface{}
	AccountKeys    []string
	PreBalances    []uint64
	PostBalances   []uint64
	PostTokenMints []string
}

// MintInfo is a decoded SPL token mint account.
type MintInfo struct {
	Address         string
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	MintAuthority   string
	FreezeAuthority string
}

// QueryClient is the read-only RPC surface the watcher depends on.
type QueryClient interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetRecentSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error)
	// GetTransaction returns nil without error when the transaction is unknown to the node.
	GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error)
	// GetMintInfo returns nil without error when the account does not exist or is not a mint.
	GetMintInfo(ctx context.Context, address string) (*MintInfo, error)
}

// RPCQueryClient implements QueryClient over the solana-go JSON-RPC client.
type RPCQueryClient struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCQueryClient creates a query client for the given HTTP RPC endpoint.
func NewRPCQueryClient(endpoint string) *RPCQueryClient {
	return &RPCQueryClient{
		client:     rpc.New(endpoint),
		commitment: rpc.CommitmentConfirmed,
	}
}

// GetBalance returns the lamport balance of address.
func (c *RPCQueryClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid address %s: %w", address, err)
	}

	resp, err := c.client.GetBalance(ctx, pubkey, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("getBalance: %w", err)
	}
	return resp.Value, nil
}

// GetRecentSignatures returns up to limit signatures for address, newest first.
func (c *RPCQueryClient) GetRecentSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %s: %w", address, err)
	}

	opts := &rpc.GetSignaturesForAddressOpts{Commitment: c.commitment}
	if limit > 0 {
		opts.Limit = &limit
	}

	out, err := c.client.GetSignaturesForAddressWithOpts(ctx, pubkey, opts)
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
	}

	sigs := make([]SignatureInfo, 0, len(out))
	for _, s := range out {
		if s == nil {
			continue
		}
		sigs = append(sigs, SignatureInfo{
			Signature: s.Signature.String(),
			Slot:      s.Slot,
			Err:       s.Err,
		})
	}
	return sigs, nil
}

// GetTransaction fetches a confirmed transaction and flattens its balance data.
func (c *RPCQueryClient) GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}

	maxVer := uint64(0)
	res, err := c.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVer,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getTransaction: %w", err)
	}
	if res == nil || res.Transaction == nil {
		return nil, nil
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	detail := &TransactionDetail{
		Signature: signature,
		Slot:      res.Slot,
	}

	keys := make([]solana.PublicKey, 0, len(tx.Message.AccountKeys))
	keys = append(keys, tx.Message.AccountKeys...)

	if meta := res.Meta; meta != nil {
		// Versioned transactions append lookup-table addresses after the static keys.
		keys = append(keys, meta.LoadedAddresses.Writable...)
		keys = append(keys, meta.LoadedAddresses.ReadOnly...)

		detail.Err = meta.Err
		detail.PreBalances = meta.PreBalances
		detail.PostBalances = meta.PostBalances
		for _, bal := range meta.PostTokenBalances {
			detail.PostTokenMints = append(detail.PostTokenMints, bal.Mint.String())
		}
	}

	detail.AccountKeys = make([]string, len(keys))
	for i, k := range keys {
		detail.AccountKeys[i] = k.String()
	}
	return detail, nil
}

// GetMintInfo loads and decodes an SPL token mint account.
func (c *RPCQueryClient) GetMintInfo(ctx context.Context, address string) (*MintInfo, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid mint address %s: %w", address, err)
	}

	res, err := c.client.GetAccountInfo(ctx, pubkey)
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo: %w", err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, nil
	}

	owner := res.Value.Owner
	if !owner.Equals(tokenProgramID) && !owner.Equals(token2022ProgramID) {
		return nil, nil
	}

	return decodeMint(address, res.Value.Data.GetBinary())
}

func decodeMint(address string, data []byte) (*MintInfo, error) {
	if len(data) < mintAccountSize {
		return nil, nil
	}

	var mint token.Mint
	if err := bin.NewBinDecoder(data[:mintAccountSize]).Decode(&mint); err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", address, err)
	}
	if !mint.IsInitialized {
		return nil, nil
	}

	info := &MintInfo{
		Address:       address,
		Supply:        mint.Supply,
		Decimals:      mint.Decimals,
		IsInitialized: mint.IsInitialized,
	}
	if mint.MintAuthority != nil {
		info.MintAuthority = mint.MintAuthority.String()
	}
	if mint.FreezeAuthority != nil {
		info.FreezeAuthority = mint.FreezeAuthority.String()
	}
	return info, nil
}

// IsValidAddress reports whether s parses as a base58 public key.
func IsValidAddress(s string) bool {
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}
