package tracker

import (
	"context"
	"time"
)

const (
	EventLargeTransfer  = "large_transfer"
	EventRetarget       = "retarget"
	EventMintDiscovered = "mint_discovered"
	EventPurchase       = "purchase"
)

// Event is an audit record of something the controller decided.
type Event struct {
	Kind      string
	At        time.Time
	Target    string
	Recipient string
	Mint      string
	Signature string
	Slot      uint64
	Lamports  uint64
	Meta      map[string]interface{}
}

// Journal persists controller events. Failures are logged and never block the controller.
type Journal interface {
	Record(ctx context.Context, ev Event) error
}

type nopJournal struct{}

func (nopJournal) Record(context.Context, Event) error { return nil }
