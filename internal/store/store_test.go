package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"spesa/internal/core"
	"spesa/internal/kv"
	"spesa/internal/kv/memory"
	applog "spesa/internal/log"
)

var baseTime = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db    *memory.Store
	store *ItemStore
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("item-%d", n)
	}
}

func steppingClock() func() time.Time {
	n := 0
	return func() time.Time {
		t := baseTime.Add(time.Duration(n) * time.Minute)
		n++
		return t
	}
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	db := memory.New()
	opts = append([]Option{
		WithIDGenerator(sequentialIDs()),
		WithClock(steppingClock()),
		WithLogger(applog.Discard()),
	}, opts...)
	return fixture{db: db, store: Open(context.Background(), db, opts...)}
}

func draft(name string, c core.Category, qty int, price string) core.Draft {
	return core.Draft{Name: name, Category: c, Quantity: qty, UnitPrice: core.MustMoney(price)}
}

func ids(items []core.GroceryItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestItemStoreScenario(t *testing.T) {
	s := newFixture(t).store

	apples := s.Add(draft("Apples", core.Produce, 3, "1.50"))
	require.Equal(t, "4.50", apples.TotalPrice.String())

	s.Add(draft("Milk", core.Dairy, 2, "3.00"))
	require.Equal(t, "10.50", s.GrandTotalString())
	require.Equal(t, map[string]string{"Produce": "4.50", "Dairy": "6.00"}, s.CategoryTotalsFormatted())

	s.SetFilter(core.Produce, "")
	require.Equal(t, []string{apples.ID}, ids(s.FilteredView()))

	s.SetFilter(core.CategoryAll, "app")
	require.Equal(t, []string{apples.ID}, ids(s.FilteredView()))

	require.True(t, s.Delete(apples.ID))
	require.Equal(t, "6.00", s.GrandTotalString())
}

func TestAddAssignsDistinctIDsAndTotals(t *testing.T) {
	s := Open(context.Background(), memory.New(), WithLogger(applog.Discard()))

	seen := map[string]bool{}
	for i := 1; i <= 20; i++ {
		it := s.Add(draft(fmt.Sprintf("item %d", i), core.Snacks, i, "0.35"))
		require.False(t, seen[it.ID], "duplicate id %s", it.ID)
		seen[it.ID] = true
		require.True(t, it.TotalPrice.Equal(it.UnitPrice.Mul(it.Quantity)))
		require.False(t, it.CreatedAt.IsZero())
	}
	require.Equal(t, 20, s.Len())
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	s := f.store
	first := s.Add(draft("Bread", core.Bakery, 1, "2.20"))
	second := s.Add(draft("Soap", core.Household, 2, "1.10"))
	writes := f.db.Writes()

	require.True(t, s.Edit(first.ID, draft("Rye bread", core.Bakery, 2, "2.50")))
	require.Equal(t, writes+1, f.db.Writes())

	got, ok := s.Get(first.ID)
	require.True(t, ok)
	require.Equal(t, first.ID, got.ID)
	require.True(t, first.CreatedAt.Equal(got.CreatedAt))
	require.Equal(t, "Rye bread", got.Name)
	require.Equal(t, 2, got.Quantity)
	require.Equal(t, "5.00", got.TotalPrice.String())

	untouched, _ := s.Get(second.ID)
	require.True(t, second.Equal(untouched))

	t.Run("missing id changes nothing", func(t *testing.T) {
		before := s.Items()
		writes := f.db.Writes()
		require.False(t, s.Edit("nope", draft("X", core.Other, 1, "1")))
		require.Equal(t, before, s.Items())
		require.Equal(t, writes, f.db.Writes())
	})
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newFixture(t).store
	a := s.Add(draft("A", core.Meat, 1, "9.99"))
	b := s.Add(draft("B", core.Meat, 1, "1.01"))

	require.True(t, s.Delete(a.ID))
	require.False(t, s.Delete(a.ID))
	require.Equal(t, []string{b.ID}, ids(s.Items()))
}

func TestClearAll(t *testing.T) {
	f := newFixture(t)
	f.store.Add(draft("A", core.Beverages, 6, "0.80"))
	f.store.Add(draft("B", core.PersonalCare, 1, "4.00"))

	f.store.ClearAll()

	require.Empty(t, f.store.Items())
	require.Equal(t, "0.00", f.store.GrandTotalString())
	require.Empty(t, f.store.CategoryTotals())

	raw, err := f.db.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	require.Equal(t, "[]", string(raw))
}

func TestCategoryTotalsSumToGrandTotal(t *testing.T) {
	s := newFixture(t).store
	s.Add(draft("Cola", core.Beverages, 3, "0.99"))
	s.Add(draft("Chips", core.Snacks, 2, "1.49"))
	s.Add(draft("Water", core.Beverages, 6, "0.25"))
	s.Add(draft("Peas", core.FrozenFoods, 1, "2.10"))

	totals := s.CategoryTotals()
	var sum core.Money
	var order []core.Category
	for _, ct := range totals {
		require.False(t, ct.Amount.IsZero())
		sum = sum.Add(ct.Amount)
		order = append(order, ct.Category)
	}
	require.True(t, sum.Equal(s.GrandTotal()))
	require.Equal(t, []core.Category{core.FrozenFoods, core.Beverages, core.Snacks}, order)
	require.Equal(t, "4.47", s.CategoryTotalsFormatted()["Beverages"])
}

func TestFormattedTotalsAddUpToGrandTotal(t *testing.T) {
	s := newFixture(t).store
	inputs := []struct {
		category, quantity, price string
	}{
		{"Produce", "1", "0.01"},
		{"Dairy", "1", "0.01"},
		{"Produce", "3", "0.33"},
		{"Snacks", "7", "1,49"},
		{"Dairy", "2", "2.995"},
		{"Household", "1", "0.005"},
	}
	for _, in := range inputs {
		d, err := core.ParseDraft("item", in.category, in.quantity, in.price)
		if err != nil {
			continue
		}
		s.Add(d)
	}
	require.Equal(t, 4, s.Len(), "sub-cent prices never reach the store")

	sum := decimal.Zero
	for _, amount := range s.CategoryTotalsFormatted() {
		sum = sum.Add(decimal.RequireFromString(amount))
	}
	require.Equal(t, s.GrandTotalString(), sum.StringFixed(2))
	require.Equal(t, "11.44", s.GrandTotalString())
}

func TestFilteredView(t *testing.T) {
	s := newFixture(t).store
	s.Add(draft("Green Apples", core.Produce, 1, "1"))
	s.Add(draft("Apple juice", core.Beverages, 1, "1"))
	s.Add(draft("Bananas", core.Produce, 1, "1"))

	tests := []struct {
		name     string
		category core.Category
		term     string
		want     []string
	}{
		{"all with empty term", core.CategoryAll, "", []string{"item-1", "item-2", "item-3"}},
		{"empty category means all", "", "", []string{"item-1", "item-2", "item-3"}},
		{"category only", core.Produce, "", []string{"item-1", "item-3"}},
		{"term is case-insensitive", core.CategoryAll, "APPLE", []string{"item-1", "item-2"}},
		{"category and term", core.Produce, "apple", []string{"item-1"}},
		{"no match", core.Dairy, "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetFilter(tt.category, tt.term)
			require.Equal(t, tt.want, ids(s.FilteredView()))
		})
	}

	s.SetFilter(core.Produce, "x")
	s.SetSearchTerm("ban")
	require.Equal(t, core.Produce, s.CurrentFilter())
	require.Equal(t, "ban", s.SearchTerm())
	require.Equal(t, []string{"item-3"}, ids(s.FilteredView()))
}

func TestItemsReturnsACopy(t *testing.T) {
	s := newFixture(t).store
	s.Add(draft("Eggs", core.Dairy, 12, "0.30"))

	items := s.Items()
	items[0].Name = "mutated"

	got, _ := s.Get("item-1")
	require.Equal(t, "Eggs", got.Name)
}

func TestReopenRestoresCollection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.Add(draft("Apples", core.Produce, 3, "1.50"))
	f.store.Add(draft("Milk", core.Dairy, 2, "3.00"))

	reopened := Open(ctx, f.db, WithLogger(applog.Discard()))
	before, after := f.store.Items(), reopened.Items()
	require.Len(t, after, len(before))
	for i := range before {
		require.True(t, before[i].Equal(after[i]), "item %d differs", i)
	}
	require.Equal(t, core.CategoryAll, reopened.CurrentFilter())
	require.Empty(t, reopened.SearchTerm())
}

func TestOpenStartsEmptyOnBadData(t *testing.T) {
	tests := []struct {
		name string
		seed map[string][]byte
	}{
		{"absent key", nil},
		{"not json", map[string][]byte{DefaultKey: []byte("{oops")}},
		{"wrong shape", map[string][]byte{DefaultKey: []byte(`{"id":"1"}`)}},
		{"null", map[string][]byte{DefaultKey: []byte("null")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Open(context.Background(), memory.NewWith(tt.seed), WithLogger(applog.Discard()))
			require.Empty(t, s.Items())
			require.Equal(t, "0.00", s.GrandTotalString())
		})
	}
}

func TestCustomKey(t *testing.T) {
	f := newFixture(t, WithKey("pantry"))
	f.store.Add(draft("Rice", core.DryGoods, 1, "1.80"))

	_, err := f.db.Get(context.Background(), "pantry")
	require.NoError(t, err)
	_, err = f.db.Get(context.Background(), DefaultKey)
	require.ErrorIs(t, err, kv.ErrNotFound)
}

type failingKV struct{ kv.Store }

func (failingKV) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestPersistFailureIsSwallowed(t *testing.T) {
	s := Open(context.Background(), failingKV{memory.New()}, WithLogger(applog.Discard()))

	it := s.Add(draft("Tea", core.Beverages, 1, "3.20"))
	require.Equal(t, 1, s.Len())
	require.True(t, s.Edit(it.ID, draft("Green tea", core.Beverages, 1, "3.40")))
	s.ClearAll()
	require.Zero(t, s.Len())
}

func TestObserversSeeEveryMutation(t *testing.T) {
	var changes []core.Change
	obs := ObserverFunc(func(_ context.Context, c core.Change) error {
		changes = append(changes, c)
		return errors.New("broker down")
	})
	s := newFixture(t, WithObserver(obs)).store

	a := s.Add(draft("A", core.Other, 1, "1"))
	s.Edit(a.ID, draft("B", core.Other, 1, "2"))
	s.Edit("missing", draft("C", core.Other, 1, "3"))
	s.Delete(a.ID)
	s.Delete(a.ID)
	s.ClearAll()

	require.Len(t, changes, 4)
	require.Equal(t, []core.ChangeOp{core.OpAdd, core.OpEdit, core.OpDelete, core.OpClear},
		[]core.ChangeOp{changes[0].Op, changes[1].Op, changes[2].Op, changes[3].Op})
	require.Equal(t, a.ID, changes[0].ItemID)
	require.Equal(t, 1, changes[0].Count)
	require.Equal(t, 0, changes[3].Count)
}

func TestRevisionCountsCommits(t *testing.T) {
	s := newFixture(t).store
	require.Zero(t, s.Revision())

	a := s.Add(draft("A", core.Other, 1, "1"))
	s.Edit("missing", draft("B", core.Other, 1, "1"))
	s.Delete("missing")
	require.Equal(t, uint64(1), s.Revision())

	s.SetFilter(core.Other, "a")
	require.Equal(t, uint64(1), s.Revision(), "filter changes are not mutations")

	s.Delete(a.ID)
	s.ClearAll()
	require.Equal(t, uint64(3), s.Revision())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := newFixture(t).store
	s.Add(draft("Apples", core.Produce, 3, "1.50"))
	s.Add(draft("Cheddar", core.Dairy, 1, "4.75"))
	s.Add(draft("Tuna", core.CannedGoods, 4, "1.15"))

	raw, err := Encode(s.Items())
	require.NoError(t, err)
	back, err := Decode(raw)
	require.NoError(t, err)

	items := s.Items()
	require.Len(t, back, len(items))
	for i := range items {
		require.True(t, items[i].Equal(back[i]), "item %d differs", i)
	}
}

func TestPersistedLayout(t *testing.T) {
	f := newFixture(t)
	f.store.Add(draft("Apples", core.Produce, 3, "1.50"))
	f.store.Add(draft("Milk", core.Dairy, 2, "3.00"))

	raw, err := f.db.Get(context.Background(), DefaultKey)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "persisted_layout", raw)
}
