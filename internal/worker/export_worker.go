package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"spesa/internal/amqp"
	"spesa/internal/core"
	"spesa/internal/kv"
	applog "spesa/internal/log"
	"spesa/internal/sheets"
	"spesa/internal/store"
)

// ExportWorker mirrors the persisted grocery list to a spreadsheet. It reacts
// to change messages and re-exports on a timer as a backup for lost messages.
type ExportWorker struct {
	db       kv.Store
	key      string
	exporter sheets.Exporter
	logger   *applog.Logger
	now      func() time.Time

	mu         sync.Mutex
	lastRaw    []byte
	lastExport time.Time
	exported   bool
}

func NewExportWorker(db kv.Store, key string, exporter sheets.Exporter, logger *applog.Logger) *ExportWorker {
	if key == "" {
		key = store.DefaultKey
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ExportWorker{
		db:       db,
		key:      key,
		exporter: exporter,
		logger:   logger.WithComponent(applog.ComponentWorker),
		now:      time.Now,
	}
}

// HandleItemsChanged processes one change message. Messages older than the
// last successful export are acknowledged without work, since that export
// already covered them.
func (w *ExportWorker) HandleItemsChanged(ctx context.Context, msg *amqp.ItemsChangedMessage) error {
	w.mu.Lock()
	covered := w.exported && !msg.Timestamp.IsZero() && msg.Timestamp.Before(w.lastExport)
	w.mu.Unlock()
	if covered {
		w.logger.DebugContext(ctx, "Change already exported, skipping",
			applog.FieldOperation, string(msg.Op), "timestamp", msg.Timestamp)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing items changed message",
		applog.FieldOperation, string(msg.Op),
		applog.FieldItemID, msg.ItemID,
		applog.FieldItemCount, msg.Count)

	if _, err := w.export(ctx, true); err != nil {
		return fmt.Errorf("export after %s: %w", msg.Op, err)
	}
	return nil
}

// ExportIfChanged exports only when the persisted value differs from the one
// last exported. It reports whether an export happened.
func (w *ExportWorker) ExportIfChanged(ctx context.Context) (bool, error) {
	return w.export(ctx, false)
}

// Run re-exports changed data every interval until ctx is cancelled.
func (w *ExportWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Periodic export started", "interval", interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Periodic export stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ExportIfChanged(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic export failed", applog.FieldError, err)
			}
		}
	}
}

func (w *ExportWorker) export(ctx context.Context, force bool) (bool, error) {
	started := w.now()

	raw, err := w.db.Get(ctx, w.key)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return false, fmt.Errorf("read %s: %w", w.key, err)
	}

	w.mu.Lock()
	unchanged := w.exported && bytes.Equal(raw, w.lastRaw)
	w.mu.Unlock()
	if unchanged && !force {
		return false, nil
	}

	snap := w.snapshot(ctx, raw, started)
	ref, err := w.exporter.Export(ctx, snap)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	w.lastRaw = raw
	w.lastExport = started
	w.exported = true
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Grocery list exported",
		applog.FieldExportRef, ref,
		applog.FieldItemCount, len(snap.Items))
	return true, nil
}

func (w *ExportWorker) snapshot(ctx context.Context, raw []byte, at time.Time) sheets.Snapshot {
	var items []core.GroceryItem
	if len(raw) > 0 {
		decoded, err := store.Decode(raw)
		if err != nil {
			w.logger.WarnContext(ctx, "Persisted items are malformed, exporting an empty list",
				applog.FieldStorageKey, w.key, applog.FieldError, err)
		} else {
			items = decoded
		}
	}
	return sheets.Snapshot{
		Items: items,
		Summary: core.Summary{
			Total:      store.GrandTotal(items),
			ByCategory: store.Totals(items),
			ItemCount:  len(items),
		},
		TakenAt: at,
	}
}
