package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spesa/internal/core"
	"spesa/internal/kv/memory"
	applog "spesa/internal/log"
	"spesa/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	n := 0
	st := store.Open(context.Background(), memory.New(),
		store.WithLogger(applog.Discard()),
		store.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("item-%d", n)
		}),
	)
	s := NewServer(":0", st, applog.Discard())
	s.now = func() time.Time { return time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func (s *Server) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, r)
	return rec
}

func (s *Server) postJSON(t *testing.T, body string) *httptest.ResponseRecorder {
	return s.do(t, http.MethodPost, "/api/items", "application/json", body)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[errorBody](t, rec).Error
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/readyz", "", "")
	require.Equal(t, "ready", rec.Body.String())
}

func TestMiddlewareHeaders(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/items", "", "")

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_"))
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestCreateItem(t *testing.T) {
	s := newTestServer(t)

	rec := s.postJSON(t, `{"name":"Apples","category":"Produce","quantity":3,"price":1.5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, "/api/items/item-1", rec.Header().Get("Location"))

	it := decode[core.GroceryItem](t, rec)
	require.Equal(t, "item-1", it.ID)
	require.Equal(t, core.Produce, it.Category)
	require.Equal(t, "4.50", it.TotalPrice.String())

	form := url.Values{"name": {"Milk"}, "category": {"Dairy"}, "quantity": {"2"}, "price": {"3.00"}}
	rec = s.do(t, http.MethodPost, "/api/items", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	list := decode[itemsResponse](t, s.do(t, http.MethodGet, "/api/items", "", ""))
	require.Equal(t, 2, list.Count)
	require.Equal(t, "10.50", list.Total)
	require.Equal(t, "Milk", list.Items[1].Name)
}

func TestCreateItemValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{"missing name", `{"category":"Dairy","quantity":1,"price":2}`, http.StatusUnprocessableEntity, "Item name is required"},
		{"blank name", `{"name":"   ","category":"Dairy","quantity":1,"price":2}`, http.StatusUnprocessableEntity, "Item name is required"},
		{"zero price", `{"name":"Milk","category":"Dairy","quantity":1,"price":0}`, http.StatusUnprocessableEntity, "Please enter a valid price"},
		{"bad price", `{"name":"Milk","category":"Dairy","quantity":1,"price":"abc"}`, http.StatusUnprocessableEntity, "Please enter a valid price"},
		{"zero quantity", `{"name":"Milk","category":"Dairy","quantity":0,"price":2}`, http.StatusUnprocessableEntity, "Please enter a valid quantity"},
		{"unknown category", `{"name":"Milk","category":"Toys","quantity":1,"price":2}`, http.StatusUnprocessableEntity, "Please select a valid category"},
		{"malformed json", `{"name":`, http.StatusBadRequest, "Invalid request format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.postJSON(t, tt.body)
			require.Equal(t, tt.code, rec.Code)
			require.Equal(t, tt.want, errorMessage(t, rec))

			list := decode[itemsResponse](t, s.do(t, http.MethodGet, "/api/items", "", ""))
			require.Zero(t, list.Count)
		})
	}
}

func TestGetItem(t *testing.T) {
	s := newTestServer(t)
	s.postJSON(t, `{"name":"Bread","category":"Bakery","quantity":1,"price":2.2}`)

	rec := s.do(t, http.MethodGet, "/api/items/item-1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Bread", decode[core.GroceryItem](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/api/items/item-9", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateItem(t *testing.T) {
	s := newTestServer(t)
	s.postJSON(t, `{"name":"Bread","category":"Bakery","quantity":1,"price":2.2}`)

	rec := s.do(t, http.MethodPut, "/api/items/item-1", "application/json",
		`{"name":"Rye bread","category":"Bakery","quantity":2,"price":"2.50"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	it := decode[core.GroceryItem](t, rec)
	require.Equal(t, "item-1", it.ID)
	require.Equal(t, "Rye bread", it.Name)
	require.Equal(t, "5.00", it.TotalPrice.String())

	rec = s.do(t, http.MethodPut, "/api/items/missing", "application/json",
		`{"name":"X","category":"Other","quantity":1,"price":1}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/items/item-1", "application/json",
		`{"name":"X","category":"Other","quantity":-1,"price":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeleteItemIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	s.postJSON(t, `{"name":"Soap","category":"Household","quantity":1,"price":1.1}`)

	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/items/item-1", "", "").Code)
	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/items/item-1", "", "").Code)

	list := decode[itemsResponse](t, s.do(t, http.MethodGet, "/api/items", "", ""))
	require.Zero(t, list.Count)
}

func TestClearItemsRequiresConfirmation(t *testing.T) {
	s := newTestServer(t)
	s.postJSON(t, `{"name":"Soap","category":"Household","quantity":1,"price":1.1}`)

	rec := s.do(t, http.MethodDelete, "/api/items", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 1, decode[itemsResponse](t, s.do(t, http.MethodGet, "/api/items", "", "")).Count)

	rec = s.do(t, http.MethodDelete, "/api/items?confirm=yes", "", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	list := decode[itemsResponse](t, s.do(t, http.MethodGet, "/api/items", "", ""))
	require.Zero(t, list.Count)
	require.Equal(t, "0.00", list.Total)
}

func TestFilteredItems(t *testing.T) {
	s := newTestServer(t)
	s.postJSON(t, `{"name":"Green Apples","category":"Produce","quantity":1,"price":1}`)
	s.postJSON(t, `{"name":"Apple juice","category":"Beverages","quantity":1,"price":1}`)
	s.postJSON(t, `{"name":"Bananas","category":"Produce","quantity":1,"price":1}`)

	get := func(query string) filteredResponse {
		rec := s.do(t, http.MethodGet, "/api/items/filtered"+query, "", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[filteredResponse](t, rec)
	}

	resp := get("")
	require.Equal(t, core.CategoryAll, resp.Category)
	require.Equal(t, 3, resp.Count)

	resp = get("?category=Produce")
	require.Equal(t, core.Produce, resp.Category)
	require.Equal(t, 2, resp.Count)

	resp = get("?q=apple")
	require.Equal(t, core.Produce, resp.Category, "category is kept when only q is given")
	require.Equal(t, "apple", resp.Search)
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "Green Apples", resp.Items[0].Name)

	resp = get("?category=All&q=APPLE")
	require.Equal(t, 2, resp.Count)

	rec := s.do(t, http.MethodGet, "/api/items/filtered?category=Toys", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)
	resp := decode[struct {
		Categories []core.Category `json:"categories"`
	}](t, s.do(t, http.MethodGet, "/api/categories", "", ""))

	require.Equal(t, core.Categories(), resp.Categories)
}

func TestSummary(t *testing.T) {
	s := newTestServer(t)
	s.postJSON(t, `{"name":"Apples","category":"Produce","quantity":3,"price":1.5}`)
	s.postJSON(t, `{"name":"Milk","category":"Dairy","quantity":2,"price":3}`)

	resp := decode[summaryResponse](t, s.do(t, http.MethodGet, "/api/summary", "", ""))
	require.Equal(t, "10.50", resp.Total)
	require.Equal(t, 2, resp.ItemCount)
	require.Equal(t, map[string]string{"Produce": "4.50", "Dairy": "6.00"}, resp.ByCategory)
	require.Equal(t, []summaryCategoryRow{
		{Category: "Produce", Amount: "4.50", Share: "42.9"},
		{Category: "Dairy", Amount: "6.00", Share: "57.1"},
	}, resp.Categories)
}

func TestChart(t *testing.T) {
	s := newTestServer(t)
	s.postJSON(t, `{"name":"Apples","category":"Produce","quantity":3,"price":1.5}`)

	rec := s.do(t, http.MethodGet, "/api/summary/chart", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"label":"Produce"`)
	require.Contains(t, rec.Body.String(), `"percent":100`)
}

func TestExport(t *testing.T) {
	s := newTestServer(t)
	s.postJSON(t, `{"name":"Apples","category":"Produce","quantity":3,"price":1.5}`)

	rec := s.do(t, http.MethodGet, "/api/summary/export", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `attachment; filename="grocery_expenses.md"`, rec.Header().Get("Content-Disposition"))
	require.Contains(t, rec.Body.String(), "Grocery Expense Summary")
	require.Contains(t, rec.Body.String(), "Date: 2026-10-19")

	rec = s.do(t, http.MethodGet, "/api/summary/export?format=html", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `attachment; filename="grocery_expenses.html"`, rec.Header().Get("Content-Disposition"))
	require.Contains(t, rec.Body.String(), "<table>")

	rec = s.do(t, http.MethodGet, "/api/summary/export?format=pdf", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportIsCachedPerRevision(t *testing.T) {
	s := newTestServer(t)
	s.postJSON(t, `{"name":"Apples","category":"Produce","quantity":3,"price":1.5}`)

	first := s.do(t, http.MethodGet, "/api/summary/export", "", "").Body.String()
	again := s.do(t, http.MethodGet, "/api/summary/export", "", "").Body.String()
	require.Equal(t, first, again)
	hits, _ := s.exports.Stats()
	require.Equal(t, int64(1), hits)

	s.postJSON(t, `{"name":"Pears","category":"Produce","quantity":1,"price":2}`)
	after := s.do(t, http.MethodGet, "/api/summary/export", "", "").Body.String()
	require.Contains(t, after, "Pears")
	require.NotContains(t, first, "Pears")
}

func TestMutationsAreRateLimited(t *testing.T) {
	s := newTestServer(t)
	body := `{"name":"Gum","category":"Snacks","quantity":1,"price":0.5}`

	for i := 0; i < 60; i++ {
		require.Equal(t, http.StatusCreated, s.postJSON(t, body).Code, "request %d", i+1)
	}
	rec := s.postJSON(t, body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/items", "", "").Code)
}
