package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"spesa/internal/core"
	"spesa/internal/report"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // operation refused or target missing
	ExitCommandError = 2 // bad flags, configuration or storage errors
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not an
// ExitError map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON, FormatYAML}

// OutputFormatter writes command results as text, JSON or YAML.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Data writes v in the structured formats, and calls text otherwise.
func (f *OutputFormatter) Data(v any, text func(w io.Writer) error) error {
	switch f.Format {
	case FormatJSON:
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(f.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(f.Writer)
	}
}

// VerboseLog writes to ErrWriter when verbose output is on, so structured
// output on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// ItemView is the output shape of a grocery item.
type ItemView struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Category  string `json:"category" yaml:"category"`
	Quantity  int    `json:"quantity" yaml:"quantity"`
	UnitPrice string `json:"unitPrice" yaml:"unitPrice"`
	Total     string `json:"totalPrice" yaml:"totalPrice"`
	Date      string `json:"date" yaml:"date"`
}

func viewOf(it core.GroceryItem) ItemView {
	return ItemView{
		ID:        it.ID,
		Name:      it.Name,
		Category:  it.Category.String(),
		Quantity:  it.Quantity,
		UnitPrice: it.UnitPrice.String(),
		Total:     it.TotalPrice.String(),
		Date:      it.CreatedAt.UTC().Format(core.DateLayout),
	}
}

func viewsOf(items []core.GroceryItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, viewOf(it))
	}
	return out
}

// writeItemTable prints items as aligned columns followed by their total.
func writeItemTable(w io.Writer, items []core.GroceryItem, total core.Money) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No items found.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tQTY\tUNIT\tTOTAL\tDATE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.Name, it.Category, strconv.Itoa(it.Quantity),
			report.Dollars(it.UnitPrice), report.Dollars(it.TotalPrice),
			it.CreatedAt.Local().Format("2006-01-02"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nTotal: %s\n", report.Dollars(total))
	return err
}
