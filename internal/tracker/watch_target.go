package tracker

import "time"

// PendingToken is a mint seen in a mint transaction and waiting for its pool.
type PendingToken struct {
	Mint         string    `json:"mint"`
	Signature    string    `json:"signature"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// WatchTarget is the per-address state. It is replaced wholesale on retarget.
type WatchTarget struct {
	Address string

	lastBalance *uint64

	pending map[string]PendingToken

	processed      map[string]struct{}
	processedOrder []string
	processedLimit int
}

func newWatchTarget(address string, processedLimit int) *WatchTarget {
	return &WatchTarget{
		Address:        address,
		pending:        make(map[string]PendingToken),
		processed:      make(map[string]struct{}),
		processedLimit: processedLimit,
	}
}

// baseline returns the previous balance, if any was recorded since the target was set.
func (w *WatchTarget) baseline() (uint64, bool) {
	if w.lastBalance == nil {
		return 0, false
	}
	return *w.lastBalance, true
}

func (w *WatchTarget) recordBalance(lamports uint64) {
	w.lastBalance = &lamports
}

// markProcessed records sig and reports whether it was new.
func (w *WatchTarget) markProcessed(sig string) bool {
	if _, seen := w.processed[sig]; seen {
		return false
	}
	w.processed[sig] = struct{}{}
	if w.processedLimit > 0 {
		w.processedOrder = append(w.processedOrder, sig)
		for len(w.processedOrder) > w.processedLimit {
			delete(w.processed, w.processedOrder[0])
			w.processedOrder = w.processedOrder[1:]
		}
	}
	return true
}

func (w *WatchTarget) prunePending(cutoff time.Time) []string {
	var pruned []string
	for mint, p := range w.pending {
		if p.DiscoveredAt.Before(cutoff) {
			delete(w.pending, mint)
			pruned = append(pruned, mint)
		}
	}
	return pruned
}
