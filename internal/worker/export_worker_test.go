package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spesa/internal/amqp"
	"spesa/internal/core"
	"spesa/internal/kv/memory"
	applog "spesa/internal/log"
	"spesa/internal/sheets"
	"spesa/internal/store"
)

type fakeExporter struct {
	snapshots []sheets.Snapshot
	err       error
}

func (f *fakeExporter) Export(_ context.Context, s sheets.Snapshot) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.snapshots = append(f.snapshots, s)
	return "Groceries!A1", nil
}

func seededStore(t *testing.T) (*memory.Store, *store.ItemStore) {
	t.Helper()
	db := memory.New()
	s := store.Open(context.Background(), db, store.WithLogger(applog.Discard()))
	s.Add(core.Draft{Name: "Apples", Category: core.Produce, Quantity: 3, UnitPrice: core.MustMoney("1.50")})
	s.Add(core.Draft{Name: "Milk", Category: core.Dairy, Quantity: 2, UnitPrice: core.MustMoney("3.00")})
	return db, s
}

func TestHandleItemsChangedExportsSnapshot(t *testing.T) {
	db, _ := seededStore(t)
	exp := &fakeExporter{}
	w := NewExportWorker(db, "", exp, applog.Discard())

	err := w.HandleItemsChanged(context.Background(), &amqp.ItemsChangedMessage{Op: core.OpAdd, Count: 2})
	require.NoError(t, err)

	require.Len(t, exp.snapshots, 1)
	snap := exp.snapshots[0]
	require.Len(t, snap.Items, 2)
	require.Equal(t, "10.50", snap.Summary.Total.String())
	require.Equal(t, 2, snap.Summary.ItemCount)
	require.Equal(t, []core.Category{core.Produce, core.Dairy},
		[]core.Category{snap.Summary.ByCategory[0].Category, snap.Summary.ByCategory[1].Category})
}

func TestHandleItemsChangedSkipsCoveredMessages(t *testing.T) {
	db, _ := seededStore(t)
	exp := &fakeExporter{}
	w := NewExportWorker(db, store.DefaultKey, exp, applog.Discard())
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, w.HandleItemsChanged(ctx, &amqp.ItemsChangedMessage{Op: core.OpAdd, Timestamp: now.Add(-time.Second)}))
	require.NoError(t, w.HandleItemsChanged(ctx, &amqp.ItemsChangedMessage{Op: core.OpAdd, Timestamp: now.Add(-time.Second)}))
	require.Len(t, exp.snapshots, 1)

	require.NoError(t, w.HandleItemsChanged(ctx, &amqp.ItemsChangedMessage{Op: core.OpEdit, Timestamp: now.Add(time.Second)}))
	require.Len(t, exp.snapshots, 2)
}

func TestHandleItemsChangedReturnsExportError(t *testing.T) {
	db, _ := seededStore(t)
	w := NewExportWorker(db, "", &fakeExporter{err: errors.New("quota exceeded")}, applog.Discard())

	err := w.HandleItemsChanged(context.Background(), &amqp.ItemsChangedMessage{Op: core.OpClear})
	require.ErrorContains(t, err, "quota exceeded")
}

func TestExportIfChanged(t *testing.T) {
	db, s := seededStore(t)
	exp := &fakeExporter{}
	w := NewExportWorker(db, "", exp, applog.Discard())
	ctx := context.Background()

	did, err := w.ExportIfChanged(ctx)
	require.NoError(t, err)
	require.True(t, did)

	did, err = w.ExportIfChanged(ctx)
	require.NoError(t, err)
	require.False(t, did)

	s.ClearAll()
	did, err = w.ExportIfChanged(ctx)
	require.NoError(t, err)
	require.True(t, did)
	require.Empty(t, exp.snapshots[1].Items)
	require.Equal(t, "0.00", exp.snapshots[1].Summary.Total.String())
}

func TestExportMissingOrMalformedData(t *testing.T) {
	tests := []struct {
		name string
		seed map[string][]byte
	}{
		{"missing key", nil},
		{"malformed", map[string][]byte{store.DefaultKey: []byte("not json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := &fakeExporter{}
			w := NewExportWorker(memory.NewWith(tt.seed), "", exp, applog.Discard())

			did, err := w.ExportIfChanged(context.Background())
			require.NoError(t, err)
			require.True(t, did)
			require.Empty(t, exp.snapshots[0].Items)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	db, _ := seededStore(t)
	exp := &fakeExporter{}
	w := NewExportWorker(db, "", exp, applog.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Run(ctx, 5*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, exp.snapshots, 1)
}
