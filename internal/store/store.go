// Package store implements ItemStore, the owner of the grocery list.
//
// ItemStore keeps the item collection in insertion order, writes the whole
// collection through to a kv.Store after every mutation, and derives the
// filtered view and the spending totals on demand. It is not safe for
// concurrent use: callers serialize access, as a UI event loop does.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"spesa/internal/core"
	"spesa/internal/kv"
	applog "spesa/internal/log"
)

// DefaultKey is the storage key the collection is persisted under.
const DefaultKey = "groceryItems"

// persistTimeout bounds a single write-through.
const persistTimeout = 5 * time.Second

// Observer is notified after each committed mutation.
type Observer interface {
	ItemsChanged(ctx context.Context, c core.Change) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, c core.Change) error

func (f ObserverFunc) ItemsChanged(ctx context.Context, c core.Change) error { return f(ctx, c) }

type ItemStore struct {
	kv        kv.Store
	key       string
	newID     func() string
	now       func() time.Time
	logger    *applog.Logger
	observers []Observer

	items      []core.GroceryItem
	filter     core.Category
	searchTerm string
	rev        uint64
}

// Option configures an ItemStore.
type Option func(*ItemStore)

func WithKey(key string) Option { return func(s *ItemStore) { s.key = key } }

func WithIDGenerator(f func() string) Option { return func(s *ItemStore) { s.newID = f } }

func WithClock(f func() time.Time) Option { return func(s *ItemStore) { s.now = f } }

func WithLogger(l *applog.Logger) Option { return func(s *ItemStore) { s.logger = l } }

func WithObserver(o Observer) Option {
	return func(s *ItemStore) { s.observers = append(s.observers, o) }
}

// Open builds a store over db and loads the persisted collection. A missing
// key or an undecodable value yields an empty store.
func Open(ctx context.Context, db kv.Store, opts ...Option) *ItemStore {
	s := &ItemStore{
		kv:     db,
		key:    DefaultKey,
		newID:  uuid.NewString,
		now:    time.Now,
		logger: applog.New(applog.DefaultConfig()),
		filter: core.CategoryAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(applog.ComponentStore)
	s.load(ctx)
	return s
}

func (s *ItemStore) load(ctx context.Context) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kv.ErrNotFound) {
		s.logger.InfoContext(ctx, "No persisted items, starting empty", applog.FieldStorageKey, s.key)
		return
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read persisted items, starting empty",
			applog.FieldStorageKey, s.key, applog.FieldError, err)
		return
	}
	items, err := Decode(raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Persisted items are malformed, starting empty",
			applog.FieldStorageKey, s.key, applog.FieldError, err)
		return
	}
	s.items = items
	s.logger.InfoContext(ctx, "Loaded persisted items",
		applog.FieldStorageKey, s.key, applog.FieldItemCount, len(items))
}

// Encode serializes the collection in the persisted layout.
func Encode(items []core.GroceryItem) ([]byte, error) {
	if items == nil {
		items = []core.GroceryItem{}
	}
	return json.Marshal(items)
}

// Decode parses a persisted collection. JSON null decodes to an empty list.
func Decode(raw []byte) ([]core.GroceryItem, error) {
	var items []core.GroceryItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Add appends a new item built from d and returns it.
func (s *ItemStore) Add(d core.Draft) core.GroceryItem {
	now := s.now().UTC()
	item := core.GroceryItem{
		ID:         s.newID(),
		Name:       d.Name,
		Category:   d.Category,
		Quantity:   d.Quantity,
		UnitPrice:  d.UnitPrice,
		TotalPrice: d.Total(),
		CreatedAt:  now.Truncate(time.Millisecond),
	}
	s.items = append(s.items, item)

	s.logger.Info("Item added", applog.NewFields().
		WithItem(item.ID, item.Name, item.Category.String(), item.Quantity, item.UnitPrice.String(), item.TotalPrice.String()).
		WithOperation(applog.OpCreate).ToSlice()...)

	s.commit(core.Change{Op: core.OpAdd, ItemID: item.ID, At: now})
	return item
}

// Edit replaces the mutable fields of the item with the given id. It reports
// false, and changes nothing, when no such item exists.
func (s *ItemStore) Edit(id string, d core.Draft) bool {
	i := s.indexOf(id)
	if i < 0 {
		s.logger.Debug("Edit ignored, unknown item", applog.FieldItemID, id)
		return false
	}
	it := &s.items[i]
	it.Name = d.Name
	it.Category = d.Category
	it.Quantity = d.Quantity
	it.UnitPrice = d.UnitPrice
	it.TotalPrice = d.Total()

	s.logger.Info("Item updated", applog.NewFields().
		WithItem(it.ID, it.Name, it.Category.String(), it.Quantity, it.UnitPrice.String(), it.TotalPrice.String()).
		WithOperation(applog.OpUpdate).ToSlice()...)

	s.commit(core.Change{Op: core.OpEdit, ItemID: id})
	return true
}

// Delete removes the item with the given id and reports whether it existed.
func (s *ItemStore) Delete(id string) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i:i], s.items[i+1:]...)

	s.logger.Info("Item deleted", applog.FieldItemID, id, applog.FieldOperation, applog.OpDelete)
	s.commit(core.Change{Op: core.OpDelete, ItemID: id})
	return true
}

// ClearAll empties the collection.
func (s *ItemStore) ClearAll() {
	n := len(s.items)
	s.items = nil

	s.logger.Info("All items cleared", applog.FieldItemCount, n, applog.FieldOperation, applog.OpClear)
	s.commit(core.Change{Op: core.OpClear})
}

// SetFilter replaces the filter criteria. An empty category means CategoryAll.
func (s *ItemStore) SetFilter(category core.Category, searchTerm string) {
	if category == "" {
		category = core.CategoryAll
	}
	s.filter = category
	s.searchTerm = searchTerm
}

// SetSearchTerm replaces the search text and keeps the category filter.
func (s *ItemStore) SetSearchTerm(term string) {
	s.searchTerm = term
}

func (s *ItemStore) CurrentFilter() core.Category { return s.filter }

func (s *ItemStore) SearchTerm() string { return s.searchTerm }

// Categories returns the fixed category enumeration.
func (s *ItemStore) Categories() []core.Category { return core.Categories() }

// Items returns a copy of the whole collection in insertion order.
func (s *ItemStore) Items() []core.GroceryItem {
	return append([]core.GroceryItem{}, s.items...)
}

// Revision counts committed mutations since Open. Views derived from the
// collection stay valid while it is unchanged.
func (s *ItemStore) Revision() uint64 { return s.rev }

// Len returns the number of items.
func (s *ItemStore) Len() int { return len(s.items) }

// Get returns the item with the given id.
func (s *ItemStore) Get(id string) (core.GroceryItem, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return core.GroceryItem{}, false
}

// FilteredView returns the items matching the current criteria, in order.
func (s *ItemStore) FilteredView() []core.GroceryItem {
	return Filter(s.items, s.filter, s.searchTerm)
}

// Filter returns the items of the given category whose name contains term,
// ignoring case. CategoryAll and an empty term match everything.
func Filter(items []core.GroceryItem, category core.Category, term string) []core.GroceryItem {
	fold := cases.Fold()
	needle := fold.String(term)
	out := []core.GroceryItem{}
	for _, it := range items {
		if category != core.CategoryAll && category != "" && it.Category != category {
			continue
		}
		if needle != "" && !strings.Contains(fold.String(it.Name), needle) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// CategoryTotals sums totalPrice per category over the whole collection,
// in enumeration order, leaving out categories that sum to zero.
func (s *ItemStore) CategoryTotals() []core.CategoryTotal {
	return Totals(s.items)
}

// Totals is the pure form of CategoryTotals.
func Totals(items []core.GroceryItem) []core.CategoryTotal {
	sums := make(map[core.Category]core.Money)
	for _, it := range items {
		sums[it.Category] = sums[it.Category].Add(it.TotalPrice)
	}
	var out []core.CategoryTotal
	for _, c := range core.Categories() {
		if sum := sums[c]; !sum.IsZero() {
			out = append(out, core.CategoryTotal{Category: c, Amount: sum})
		}
	}
	return out
}

// CategoryTotalsFormatted maps category labels to two-decimal amounts.
func (s *ItemStore) CategoryTotalsFormatted() map[string]string {
	out := make(map[string]string)
	for _, ct := range s.CategoryTotals() {
		out[ct.Category.String()] = ct.Amount.String()
	}
	return out
}

// GrandTotal sums totalPrice over the whole collection.
func (s *ItemStore) GrandTotal() core.Money {
	return GrandTotal(s.items)
}

// GrandTotal is the pure form of ItemStore.GrandTotal.
func GrandTotal(items []core.GroceryItem) core.Money {
	var total core.Money
	for _, it := range items {
		total = total.Add(it.TotalPrice)
	}
	return total
}

// GrandTotalString is GrandTotal formatted with two decimals.
func (s *ItemStore) GrandTotalString() string {
	return s.GrandTotal().String()
}

// Summary bundles the aggregate views.
func (s *ItemStore) Summary() core.Summary {
	return core.Summary{
		Total:      s.GrandTotal(),
		ByCategory: s.CategoryTotals(),
		ItemCount:  len(s.items),
	}
}

func (s *ItemStore) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// commit persists the collection and notifies observers. Failures are logged
// and never reach the caller.
func (s *ItemStore) commit(c core.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	s.rev++
	s.persist(ctx)

	c.Count = len(s.items)
	if c.At.IsZero() {
		c.At = s.now().UTC()
	}
	for _, o := range s.observers {
		if err := o.ItemsChanged(ctx, c); err != nil {
			s.logger.WarnContext(ctx, "Change observer failed",
				applog.FieldOperation, string(c.Op), applog.FieldItemID, c.ItemID, applog.FieldError, err)
		}
	}
}

func (s *ItemStore) persist(ctx context.Context) {
	raw, err := Encode(s.items)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to encode items", applog.FieldError, err)
		return
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist items",
			applog.FieldStorageKey, s.key, applog.FieldOperation, applog.OpPersist, applog.FieldError, err)
		return
	}
	s.logger.DebugContext(ctx, "Items persisted",
		applog.FieldStorageKey, s.key, applog.FieldItemCount, len(s.items))
}
