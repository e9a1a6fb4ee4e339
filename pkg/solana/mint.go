package solana

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// MintValidator memoizes whether an address is an initialized SPL token mint.
// Failed lookups are cached as invalid so an address is queried at most once
// while it stays in the cache.
type MintValidator struct {
	queries    QueryClient
	maxEntries int

	mu    sync.Mutex
	cache map[string]bool
	order []string
}

// NewMintValidator creates a validator. maxEntries <= 0 keeps every result.
func NewMintValidator(queries QueryClient, maxEntries int) *MintValidator {
	return &MintValidator{
		queries:    queries,
		maxEntries: maxEntries,
		cache:      make(map[string]bool),
	}
}

// IsValidMint reports whether address is a mint, querying the chain on a cache miss.
func (v *MintValidator) IsValidMint(ctx context.Context, address string) bool {
	if valid, ok := v.lookup(address); ok {
		return valid
	}

	info, err := v.queries.GetMintInfo(ctx, address)
	if err != nil {
		log.WithFields(log.Fields{
			"mint":  address,
			"error": err,
		}).Warn("Mint lookup failed, treating as invalid")
	}
	valid := err == nil && info != nil

	v.store(address, valid)
	return valid
}

// Len returns the number of cached results.
func (v *MintValidator) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.cache)
}

func (v *MintValidator) lookup(address string) (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	valid, ok := v.cache[address]
	return valid, ok
}

func (v *MintValidator) store(address string, valid bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.cache[address]; !exists {
		v.order = append(v.order, address)
	}
	v.cache[address] = valid

	// oldest first
	for v.maxEntries > 0 && len(v.order) > v.maxEntries {
		delete(v.cache, v.order[0])
		v.order = v.order[1:]
	}
}
