package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spesa/internal/core"
	applog "spesa/internal/log"
	ports "spesa/internal/sheets"
)

// Exporter rewrites one sheet tab with the current grocery list and the
// per-category totals.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger
}

var _ ports.Exporter = (*Exporter)(nil)

// Header is the first row of the exported item table.
var Header = []any{"Item", "Category", "Quantity", "Unit Price", "Total", "Date"}

// NewFromEnv creates an exporter using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Groceries").
func NewFromEnv(ctx context.Context, logger *applog.Logger) (*Exporter, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Groceries"
	}

	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return New(svc, spreadsheetID, sheetName, logger), nil
}

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID, sheetName string, logger *applog.Logger) *Exporter {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(applog.ComponentSheets),
	}
}

func credentialsFromEnv() ([]byte, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// Export clears the tab and writes the snapshot from A1.
func (e *Exporter) Export(ctx context.Context, s ports.Snapshot) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:F", e.sheetName)
	_, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to clear %s: %w", clearRange, err)
	}

	rows := Rows(s)
	writeRange := fmt.Sprintf("%s!A1:F%d", e.sheetName, len(rows))
	_, err = e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", writeRange, err)
	}

	e.logger.InfoContext(ctx, "Exported grocery list",
		applog.FieldItemCount, len(s.Items),
		applog.FieldExportRef, writeRange)

	return writeRange, nil
}

// Rows lays out the snapshot: the item table, a blank row, then the category
// totals and the grand total.
func Rows(s ports.Snapshot) [][]any {
	rows := make([][]any, 0, len(s.Items)+len(s.Summary.ByCategory)+4)
	rows = append(rows, Header)
	for _, it := range s.Items {
		rows = append(rows, []any{
			Text(it.Name),
			it.Category.String(),
			it.Quantity,
			it.UnitPrice.String(),
			it.TotalPrice.String(),
			it.CreatedAt.UTC().Format(core.DateLayout),
		})
	}

	rows = append(rows, []any{})
	rows = append(rows, []any{"Category", "Amount"})
	for _, ct := range s.Summary.ByCategory {
		rows = append(rows, []any{ct.Category.String(), ct.Amount.String()})
	}
	rows = append(rows, []any{"Total", s.Summary.Total.String()})
	return rows
}

// Text keeps a user-typed value literal under USER_ENTERED input: values the
// sheet would read as a formula get a leading apostrophe.
func Text(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
