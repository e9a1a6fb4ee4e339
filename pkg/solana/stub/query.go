package stub

import (
	"context"
	"errors"
	"sync"

	"snipewatch/pkg/solana"
)

// ErrInjected is returned for addresses or signatures registered as failing.
var ErrInjected = errors.New("injected query failure")

// QueryClient implements solana.QueryClient from in-memory fixtures.
type QueryClient struct {
	mu sync.Mutex

	Balances     map[string]uint64
	Signatures   map[string][]solana.SignatureInfo
	Transactions map[string]*solana.TransactionDetail
	Mints        map[string]*solana.MintInfo
	Failing      map[string]bool

	calls map[string]int
}

// NewQueryClient creates an empty stub.
func NewQueryClient() *QueryClient {
	return &QueryClient{
		Balances:     make(map[string]uint64),
		Signatures:   make(map[string][]solana.SignatureInfo),
		Transactions: make(map[string]*solana.TransactionDetail),
		Mints:        make(map[string]*solana.MintInfo),
		Failing:      make(map[string]bool),
		calls:        make(map[string]int),
	}
}

func (c *QueryClient) GetBalance(_ context.Context, address string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getBalance"]++
	if c.Failing[address] {
		return 0, ErrInjected
	}
	return c.Balances[address], nil
}

func (c *QueryClient) GetRecentSignatures(_ context.Context, address string, limit int) ([]solana.SignatureInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getSignaturesForAddress"]++
	if c.Failing[address] {
		return nil, ErrInjected
	}
	sigs := c.Signatures[address]
	if limit > 0 && limit < len(sigs) {
		return sigs[:limit], nil
	}
	return sigs, nil
}

func (c *QueryClient) GetTransaction(_ context.Context, signature string) (*solana.TransactionDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getTransaction"]++
	if c.Failing[signature] {
		return nil, ErrInjected
	}
	return c.Transactions[signature], nil
}

func (c *QueryClient) GetMintInfo(_ context.Context, address string) (*solana.MintInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["getMintInfo"]++
	c.calls["getMintInfo:"+address]++
	if c.Failing[address] {
		return nil, ErrInjected
	}
	return c.Mints[address], nil
}

// SetBalance updates a balance fixture.
func (c *QueryClient) SetBalance(address string, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[address] = lamports
}

// AddTransaction registers tx under its signature.
func (c *QueryClient) AddTransaction(tx *solana.TransactionDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
}

// AddSignatures sets the newest-first signature list for address.
func (c *QueryClient) AddSignatures(address string, sigs ...solana.SignatureInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Signatures[address] = sigs
}

// AddMint registers a valid mint.
func (c *QueryClient) AddMint(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Mints[address] = &solana.MintInfo{Address: address, IsInitialized: true, Decimals: 6}
}

// Fail makes every query keyed by key return ErrInjected.
func (c *QueryClient) Fail(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Failing[key] = true
}

// Calls returns how often the named method was invoked. GetMintInfo is also
// counted per address under "getMintInfo:<address>".
func (c *QueryClient) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}
