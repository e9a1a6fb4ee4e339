package purchase

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Order carries the buyer settings attached to every purchase.
type Order struct {
	Buyer       string
	QuoteAmount float64
	Slippage    float64
}

// LogPurchaser only logs the purchase. Used when no broker is configured.
type LogPurchaser struct {
	order Order
}

func NewLogPurchaser(order Order) *LogPurchaser {
	return &LogPurchaser{order: order}
}

func (p *LogPurchaser) ExecutePurchase(ctx context.Context, mint string) error {
	log.WithFields(log.Fields{
		"mint":         mint,
		"buyer":        p.order.Buyer,
		"quote_amount": p.order.QuoteAmount,
		"slippage":     p.order.Slippage,
	}).Info("Purchase signal (no executor configured)")
	return nil
}

// Signal is the purchase_signal message consumed by an external executor.
type Signal struct {
	Action      string  `json:"action"`
	Mint        string  `json:"mint"`
	Buyer       string  `json:"buyer,omitempty"`
	QuoteAmount float64 `json:"quote_amount"`
	Slippage    float64 `json:"slippage"`
	Timestamp   int64   `json:"timestamp"`
}

const ActionBuy = "buy"

var ErrEmptyMint = errors.New("empty mint")

// Publisher is satisfied by config.Publisher.
type Publisher interface {
	Publish(ctx context.Context, queueName string, message interface{}) error
}

// SignalPublisher forwards purchases to a queue.
type SignalPublisher struct {
	publisher Publisher
	queue     string
	order     Order
	now       func() time.Time
}

func NewSignalPublisher(publisher Publisher, queue string, order Order) *SignalPublisher {
	return &SignalPublisher{
		publisher: publisher,
		queue:     queue,
		order:     order,
		now:       time.Now,
	}
}

func (p *SignalPublisher) ExecutePurchase(ctx context.Context, mint string) error {
	if mint == "" {
		return ErrEmptyMint
	}

	signal := Signal{
		Action:      ActionBuy,
		Mint:        mint,
		Buyer:       p.order.Buyer,
		QuoteAmount: p.order.QuoteAmount,
		Slippage:    p.order.Slippage,
		Timestamp:   p.now().UnixMilli(),
	}
	if err := p.publisher.Publish(ctx, p.queue, signal); err != nil {
		return fmt.Errorf("failed to publish purchase signal for %s: %w", mint, err)
	}

	log.WithFields(log.Fields{
		"mint":  mint,
		"queue": p.queue,
	}).Info("Purchase signal published")
	return nil
}
