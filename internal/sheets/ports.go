package sheets

import (
	"context"
	"time"

	"spesa/internal/core"
)

// Snapshot is the state of the grocery list at export time.
type Snapshot struct {
	Items   []core.GroceryItem
	Summary core.Summary
	TakenAt time.Time
}

// Exporter publishes a snapshot to an external spreadsheet and returns a
// reference to the written range.
type Exporter interface {
	Export(ctx context.Context, s Snapshot) (ref string, err error)
}
