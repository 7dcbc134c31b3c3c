package http

import (
	"fmt"
	"net/http"

	"spesa/internal/report"

	applog "spesa/internal/log"
)

type summaryResponse struct {
	Total      string               `json:"total"`
	ItemCount  int                  `json:"itemCount"`
	ByCategory map[string]string    `json:"byCategory"`
	Categories []summaryCategoryRow `json:"categories"`
}

type summaryCategoryRow struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Share    string `json:"share"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := summaryResponse{
		Total:      s.store.GrandTotalString(),
		ItemCount:  s.store.Len(),
		ByCategory: s.store.CategoryTotalsFormatted(),
	}
	rep := report.Build(s.store.Items(), s.now())
	s.mu.Unlock()

	resp.Categories = []summaryCategoryRow{}
	for _, row := range rep.Categories {
		resp.Categories = append(resp.Categories, summaryCategoryRow{
			Category: row.Category.String(),
			Amount:   row.Amount.String(),
			Share:    row.Share,
		})
	}
	NewResponse().JSON(resp).Write(w)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	chart := report.BuildChart(s.store.Items())
	s.mu.Unlock()

	NewResponse().JSON(chart).Write(w)
}

var exportContentTypes = map[report.Format]string{
	report.FormatMarkdown: "text/markdown; charset=utf-8",
	report.FormatHTML:     "text/html; charset=utf-8",
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := report.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = report.FormatMarkdown
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		BadRequestError("Unsupported export format, use md or html").Write(w)
		return
	}

	s.mu.Lock()
	now := s.now()
	rev := s.store.Revision()
	items := s.store.Items()
	s.mu.Unlock()

	// The document shows the generation date, so a new day needs a new render.
	key := fmt.Sprintf("%d/%s/%s", rev, format, now.Format("2006-01-02"))
	logger := applog.FromContext(r.Context())
	body, err := s.exports.GetOrCreate(key, func() ([]byte, error) {
		rep := report.Build(items, now)
		if format == report.FormatHTML {
			return report.HTML(rep)
		}
		return []byte(report.Markdown(rep)), nil
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to render report",
			applog.FieldError, err, applog.FieldOperation, applog.OpExport)
		InternalServerError("Failed to render report").Write(w)
		return
	}

	NewResponse().
		Attachment(report.FileName(format), contentType, body).
		Write(w)

	logger.InfoContext(r.Context(), "Report exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldItemCount, len(items),
		"format", string(format))
}
