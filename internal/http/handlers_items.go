package http

import (
	"net/http"

	"spesa/internal/core"

	applog "spesa/internal/log"
)

type itemsResponse struct {
	Items []core.GroceryItem `json:"items"`
	Count int                `json:"count"`
	Total string             `json:"total"`
}

type filteredResponse struct {
	Category core.Category      `json:"category"`
	Search   string             `json:"search"`
	Items    []core.GroceryItem `json:"items"`
	Count    int                `json:"count"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := itemsResponse{
		Items: s.store.Items(),
		Total: s.store.GrandTotalString(),
	}
	s.mu.Unlock()

	resp.Count = len(resp.Items)
	NewResponse().JSON(resp).Write(w)
}

// handleFilteredItems updates the criteria given in the query and returns the
// view for the resulting criteria. Omitted parameters keep their value.
func (s *Server) handleFilteredItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category, term, errResp := ParseFilter(q)
	if errResp != nil {
		errResp.Write(w)
		return
	}

	s.mu.Lock()
	switch {
	case q.Has("category"):
		if !q.Has("q") {
			term = s.store.SearchTerm()
		}
		s.store.SetFilter(category, term)
	case q.Has("q"):
		s.store.SetSearchTerm(term)
	}
	resp := filteredResponse{
		Category: s.store.CurrentFilter(),
		Search:   s.store.SearchTerm(),
		Items:    s.store.FilteredView(),
	}
	s.mu.Unlock()

	resp.Count = len(resp.Items)
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Filtered view",
		applog.FieldCategory, resp.Category.String(),
		applog.FieldSearchTerm, resp.Search,
		applog.FieldItemCount, resp.Count,
		applog.FieldOperation, applog.OpFilter)
	NewResponse().JSON(resp).Write(w)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	it, ok := s.store.Get(r.PathValue("id"))
	s.mu.Unlock()

	if !ok {
		NotFoundError("Item not found").Write(w)
		return
	}
	NewResponse().JSON(it).Write(w)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	d, errResp := ParseDraft(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}

	s.mu.Lock()
	it := s.store.Add(d)
	s.mu.Unlock()

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/items/"+it.ID).
		JSON(it).
		Write(w)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	d, errResp := ParseDraft(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}

	id := r.PathValue("id")
	s.mu.Lock()
	ok := s.store.Edit(id, d)
	it, _ := s.store.Get(id)
	s.mu.Unlock()

	if !ok {
		NotFoundError("Item not found").Write(w)
		return
	}
	NewResponse().JSON(it).Write(w)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.store.Delete(r.PathValue("id"))
	s.mu.Unlock()

	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleClearItems(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "yes" {
		BadRequestError("Clearing all items requires confirm=yes").Write(w)
		return
	}

	s.mu.Lock()
	s.store.ClearAll()
	s.mu.Unlock()

	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cats := s.store.Categories()
	s.mu.Unlock()

	NewResponse().JSON(struct {
		Categories []core.Category `json:"categories"`
	}{cats}).Write(w)
}
