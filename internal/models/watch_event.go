package models

import (
	"time"
)

// WatchEvent is one journaled controller decision.
type WatchEvent struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Kind       string    `gorm:"column:kind;size:32;not null;index" json:"kind"` // large_transfer, retarget, mint_discovered, purchase
	Target     string    `gorm:"column:target;size:64;not null;index" json:"target"`
	Recipient  string    `gorm:"column:recipient;size:64" json:"recipient,omitempty"`
	Mint       string    `gorm:"column:mint;size:64" json:"mint,omitempty"`
	Signature  string    `gorm:"column:signature;size:128" json:"signature,omitempty"`
	Slot       uint64    `gorm:"column:slot;default:0" json:"slot"`
	Lamports   uint64    `gorm:"column:lamports;default:0" json:"lamports"`
	Meta       JSONMap   `gorm:"column:meta;type:jsonb" json:"meta,omitempty"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null" json:"occurred_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (WatchEvent) TableName() string {
	return "watch_events"
}
