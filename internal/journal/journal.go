package journal

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"snipewatch/internal/models"
	"snipewatch/internal/tracker"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// Journal stores controller events in the watch_events table.
type Journal struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Record implements tracker.Journal.
func (j *Journal) Record(ctx context.Context, ev tracker.Event) error {
	row := toModel(ev)
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record %s event: %w", ev.Kind, err)
	}

	log.WithFields(log.Fields{
		"id":     row.ID,
		"kind":   row.Kind,
		"target": row.Target,
	}).Debug("Journaled event")
	return nil
}

// Recent returns the newest events first, optionally filtered by kind.
func (j *Journal) Recent(ctx context.Context, limit int, kind string) ([]models.WatchEvent, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	query := j.db.WithContext(ctx).Model(&models.WatchEvent{})
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var events []models.WatchEvent
	if err := query.Order("occurred_at DESC, id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return events, nil
}

func toModel(ev tracker.Event) models.WatchEvent {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	var meta models.JSONMap
	if len(ev.Meta) > 0 {
		meta = models.JSONMap(ev.Meta)
	}

	return models.WatchEvent{
		Kind:       ev.Kind,
		Target:     ev.Target,
		Recipient:  ev.Recipient,
		Mint:       ev.Mint,
		Signature:  ev.Signature,
		Slot:       ev.Slot,
		Lamports:   ev.Lamports,
		Meta:       meta,
		OccurredAt: at.UTC(),
	}
}
