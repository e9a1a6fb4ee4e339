// Package tracker follows large outbound transfers from the watched wallet and
// buys tokens the wallet mints once their pool appears.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"snipewatch/pkg/metrics"
	"snipewatch/pkg/solana"
	"snipewatch/pkg/solana/stream"
)

// DefaultMinTransferLamports is 400 SOL.
const DefaultMinTransferLamports = 400 * solana.LamportsPerSol

const (
	SourceTransfer = "transfer"
	SourceManual   = "manual"
	SourceControl  = "control"
)

var ErrInvalidAddress = errors.New("invalid solana address")

// Analyzer finds the recipient of a large outbound transfer.
type Analyzer interface {
	FindRecipient(ctx context.Context, watched string, expectedLamports uint64) (string, bool)
}

// MintSource resolves the token mint involved in a transaction.
type MintSource interface {
	ExtractMint(ctx context.Context, signature string) (string, bool)
}

// Purchaser acts on a token whose pool just appeared.
type Purchaser interface {
	ExecutePurchase(ctx context.Context, mint string) error
}

// Retargeter moves the live subscription to another address.
type Retargeter interface {
	SwitchTarget(address string) error
}

// Config tunes the controller.
type Config struct {
	// MinTransferLamports is the outbound drop that triggers a retarget; 0 means DefaultMinTransferLamports.
	MinTransferLamports uint64
	// ProcessedSignaturesLimit caps the dedupe set; 0 keeps every signature.
	ProcessedSignaturesLimit int
	// PendingTokenTTL drops pending mints older than this on PrunePending; 0 keeps them.
	PendingTokenTTL time.Duration
}

// Controller owns the WatchTarget. Notification handlers are called from the
// single stream dispatcher; the mutex only serves out-of-band readers and
// manual retargets.
type Controller struct {
	cfg        Config
	balances   solana.QueryClient
	analyzer   Analyzer
	mints      MintSource
	purchaser  Purchaser
	journal    Journal
	retargeter Retargeter
	now        func() time.Time

	mu    sync.Mutex
	watch *WatchTarget
	epoch uint64
}

// NewController creates a controller watching target.
func NewController(cfg Config, target string, balances solana.QueryClient, analyzer Analyzer, mints MintSource, purchaser Purchaser) *Controller {
	if cfg.MinTransferLamports == 0 {
		cfg.MinTransferLamports = DefaultMinTransferLamports
	}
	return &Controller{
		cfg:       cfg,
		balances:  balances,
		analyzer:  analyzer,
		mints:     mints,
		purchaser: purchaser,
		journal:   nopJournal{},
		now:       time.Now,
		watch:     newWatchTarget(target, cfg.ProcessedSignaturesLimit),
	}
}

// SetRetargeter wires the subscription owner. It must be set before notifications flow.
// SwitchTarget is called with the controller lock held, so it must not block or
// call back into the controller.
func (c *Controller) SetRetargeter(r Retargeter) {
	c.retargeter = r
}

// SetJournal records controller events to j.
func (c *Controller) SetJournal(j Journal) {
	if j == nil {
		j = nopJournal{}
	}
	c.journal = j
}

// Target returns the watched address.
func (c *Controller) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watch.Address
}

// Prime fetches the target's balance so the first notification has a baseline.
func (c *Controller) Prime(ctx context.Context) error {
	c.mu.Lock()
	address, epoch := c.watch.Address, c.epoch
	c.mu.Unlock()

	lamports, err := c.balances.GetBalance(ctx, address)
	if err != nil {
		return fmt.Errorf("prime balance of %s: %w", address, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return nil
	}
	if _, ok := c.watch.baseline(); !ok {
		c.watch.recordBalance(lamports)
	}
	log.WithFields(log.Fields{
		"target": address,
		"sol":    lamportsToSol(lamports),
	}).Info("Initial balance loaded")
	return nil
}

// HandleBalance reacts to a balance change of the watched address.
func (c *Controller) HandleBalance(ctx context.Context, n stream.BalanceNotification) {
	c.mu.Lock()
	if n.Target != c.watch.Address {
		c.mu.Unlock()
		log.WithFields(log.Fields{
			"notification_target": n.Target,
			"slot":                n.Slot,
		}).Debug("Dropping balance notification for previous target")
		return
	}
	previous, hasBaseline := c.watch.baseline()
	c.watch.recordBalance(n.Lamports)
	epoch := c.epoch
	c.mu.Unlock()

	if !hasBaseline {
		return
	}

	delta := int64(n.Lamports) - int64(previous)
	if delta >= -int64(c.cfg.MinTransferLamports) {
		return
	}
	amount := uint64(-delta)

	logger := log.WithFields(log.Fields{
		"target": n.Target,
		"slot":   n.Slot,
		"sol":    lamportsToSol(amount),
	})
	logger.Info("Large outbound transfer detected")
	metrics.LargeTransfers.Inc()
	c.record(ctx, Event{Kind: EventLargeTransfer, Target: n.Target, Lamports: amount, Slot: n.Slot})

	recipient, ok := c.analyzer.FindRecipient(ctx, n.Target, amount)
	if !ok {
		logger.Info("No recipient identified, keeping target")
		return
	}
	if recipient == n.Target {
		return
	}

	c.retarget(ctx, epoch, recipient, SourceTransfer)
}

// HandleLogs reacts to a transaction mentioning the watched address.
func (c *Controller) HandleLogs(ctx context.Context, n stream.LogsNotification) {
	c.mu.Lock()
	if n.Target != c.watch.Address {
		c.mu.Unlock()
		log.WithFields(log.Fields{
			"notification_target": n.Target,
			"signature":           n.Signature,
		}).Debug("Dropping logs notification for previous target")
		return
	}
	if n.Signature == "" || !c.watch.markProcessed(n.Signature) {
		c.mu.Unlock()
		return
	}
	epoch := c.epoch
	c.mu.Unlock()

	isMint := solana.IsMintEvent(n.Logs)
	isPool := solana.IsPoolEvent(n.Logs)
	if !isMint && !isPool {
		return
	}

	mint, ok := c.mints.ExtractMint(ctx, n.Signature)
	if !ok {
		log.WithField("signature", n.Signature).Debug("No valid mint in transaction")
		return
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		log.WithFields(log.Fields{
			"signature": n.Signature,
			"mint":      mint,
		}).Info("Target switched during lookup, discarding result")
		return
	}
	discovered := false
	if isMint {
		if _, exists := c.watch.pending[mint]; !exists {
			discovered = true
		}
		c.watch.pending[mint] = PendingToken{
			Mint:         mint,
			Signature:    n.Signature,
			DiscoveredAt: c.now(),
		}
	}
	buy := false
	if isPool {
		if _, exists := c.watch.pending[mint]; exists {
			delete(c.watch.pending, mint)
			buy = true
		}
	}
	pendingCount := len(c.watch.pending)
	c.mu.Unlock()

	metrics.PendingTokens.Set(float64(pendingCount))
	if discovered {
		log.WithFields(log.Fields{
			"target":    n.Target,
			"mint":      mint,
			"signature": n.Signature,
		}).Info("New token minted by target")
		metrics.MintsDiscovered.Inc()
		c.record(ctx, Event{Kind: EventMintDiscovered, Target: n.Target, Mint: mint, Signature: n.Signature, Slot: n.Slot})
	}
	if buy {
		c.purchase(ctx, n.Target, mint, n.Signature)
	}
}

// SwitchTarget retargets on operator request. It takes the same path as an
// automatic retarget.
func (c *Controller) SwitchTarget(ctx context.Context, address, source string) error {
	if !solana.IsValidAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	c.mu.Lock()
	epoch := c.epoch
	same := c.watch.Address == address
	c.mu.Unlock()
	if same {
		return nil
	}

	c.retarget(ctx, epoch, address, source)
	return nil
}

// retarget replaces the WatchTarget and moves the subscription. It is a no-op
// if another retarget happened since epoch was read.
func (c *Controller) retarget(ctx context.Context, epoch uint64, address, source string) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		log.WithField("recipient", address).Info("Target already switched, ignoring stale retarget")
		return false
	}
	previous := c.watch.Address
	c.watch = newWatchTarget(address, c.cfg.ProcessedSignaturesLimit)
	c.epoch++
	// The subscription must follow the WatchTarget under the same lock.
	var switchErr error
	if c.retargeter != nil {
		switchErr = c.retargeter.SwitchTarget(address)
	}
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"from":   previous,
		"to":     address,
		"source": source,
	}).Info("Switching watch target")
	metrics.Retargets.WithLabelValues(source).Inc()
	metrics.PendingTokens.Set(0)
	c.record(ctx, Event{Kind: EventRetarget, Target: previous, Recipient: address, Meta: map[string]interface{}{"source": source}})

	if switchErr != nil {
		log.WithFields(log.Fields{
			"to":    address,
			"error": switchErr,
		}).Error("Failed to switch subscription target")
	}
	return true
}

func (c *Controller) purchase(ctx context.Context, target, mint, signature string) {
	logger := log.WithFields(log.Fields{
		"target":    target,
		"mint":      mint,
		"signature": signature,
	})
	logger.Info("Pool created for pending token, executing purchase")

	err := c.purchaser.ExecutePurchase(ctx, mint)
	metrics.Purchases.WithLabelValues(metrics.ResultLabel(err)).Inc()

	ev := Event{Kind: EventPurchase, Target: target, Mint: mint, Signature: signature}
	if err != nil {
		logger.WithError(err).Error("Purchase failed")
		ev.Meta = map[string]interface{}{"error": err.Error()}
	}
	c.record(ctx, ev)
}

func (c *Controller) record(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	if err := c.journal.Record(ctx, ev); err != nil {
		log.WithFields(log.Fields{
			"kind":  ev.Kind,
			"error": err,
		}).Warn("Failed to journal event")
	}
}

// PrunePending drops pending tokens older than the configured TTL and returns
// how many were removed.
func (c *Controller) PrunePending() int {
	if c.cfg.PendingTokenTTL <= 0 {
		return 0
	}

	c.mu.Lock()
	pruned := c.watch.prunePending(c.now().Add(-c.cfg.PendingTokenTTL))
	remaining := len(c.watch.pending)
	target := c.watch.Address
	c.mu.Unlock()

	metrics.PendingTokens.Set(float64(remaining))
	if len(pruned) > 0 {
		log.WithFields(log.Fields{
			"target": target,
			"mints":  pruned,
			"ttl":    c.cfg.PendingTokenTTL.String(),
		}).Info("Pruned stale pending tokens")
	}
	return len(pruned)
}

// Status is a point-in-time view of the WatchTarget.
type Status struct {
	Target              string         `json:"target"`
	LastBalance         *uint64        `json:"last_balance_lamports,omitempty"`
	PendingTokens       []PendingToken `json:"pending_tokens"`
	ProcessedSignatures int            `json:"processed_signatures"`
	Retargets           uint64         `json:"retargets"`
}

// Status snapshots the current WatchTarget.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Target:              c.watch.Address,
		PendingTokens:       make([]PendingToken, 0, len(c.watch.pending)),
		ProcessedSignatures: len(c.watch.processed),
		Retargets:           c.epoch,
	}
	if bal, ok := c.watch.baseline(); ok {
		st.LastBalance = &bal
	}
	for _, p := range c.watch.pending {
		st.PendingTokens = append(st.PendingTokens, p)
	}
	sort.Slice(st.PendingTokens, func(i, j int) bool {
		return st.PendingTokens[i].DiscoveredAt.Before(st.PendingTokens[j].DiscoveredAt)
	})
	return st
}

func lamportsToSol(lamports uint64) float64 {
	return float64(lamports) / solana.LamportsPerSol
}
