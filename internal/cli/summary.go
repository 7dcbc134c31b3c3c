package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"spesa/internal/report"
	"spesa/internal/store"
)

type summaryRow struct {
	Category string `json:"category" yaml:"category"`
	Amount   string `json:"amount" yaml:"amount"`
	Share    string `json:"share" yaml:"share"`
}

type summaryResult struct {
	Total      string       `json:"total" yaml:"total"`
	ItemCount  int          `json:"itemCount" yaml:"itemCount"`
	Categories []summaryRow `json:"categories" yaml:"categories"`
}

func newSummaryCommand(opts *RootOptions) *cobra.Command {
	var pretty bool
	var width int
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show total spending and the breakdown per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(s *store.ItemStore) error {
				rep := report.Build(s.Items(), opts.now())

				if pretty && opts.Format == FormatText {
					out, err := report.Terminal(rep, width)
					if err != nil {
						return WrapExitError(ExitCommandError, "cannot render summary", err)
					}
					_, err = fmt.Fprint(cmd.OutOrStdout(), out)
					return err
				}

				res := summaryResult{
					Total:      rep.Total.String(),
					ItemCount:  len(rep.Items),
					Categories: []summaryRow{},
				}
				for _, row := range rep.Categories {
					res.Categories = append(res.Categories, summaryRow{
						Category: row.Category.String(),
						Amount:   row.Amount.String(),
						Share:    row.Share,
					})
				}
				return opts.formatter(cmd).Data(res, func(w io.Writer) error {
					return writeSummary(w, rep)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "render the full report with terminal styling")
	cmd.Flags().IntVar(&width, "width", 80, "wrap width for --pretty")
	return cmd
}

func writeSummary(w io.Writer, rep report.Report) error {
	if _, err := fmt.Fprintf(w, "Total: %s (%d item(s))\n", report.Dollars(rep.Total), len(rep.Items)); err != nil {
		return err
	}
	if len(rep.Categories) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, row := range rep.Categories {
		fmt.Fprintf(tw, "%s\t%s\t%s%%\t\n", row.Category, report.Dollars(row.Amount), row.Share)
	}
	return tw.Flush()
}

func newExportCommand(opts *RootOptions) *cobra.Command {
	var docType, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the expense summary as a Markdown or HTML document",
		Long: `Write the expense summary document. The file is named
grocery_expenses.md or grocery_expenses.html unless --output is given;
--output - writes to standard output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := report.Format(docType)
			if format != report.FormatMarkdown && format != report.FormatHTML {
				return NewExitError(ExitCommandError, fmt.Sprintf("unsupported document type %q: use md or html", docType))
			}

			return opts.withStore(cmd, func(s *store.ItemStore) error {
				rep := report.Build(s.Items(), opts.now())
				var body []byte
				if format == report.FormatHTML {
					var err error
					if body, err = report.HTML(rep); err != nil {
						return WrapExitError(ExitCommandError, "cannot render document", err)
					}
				} else {
					body = []byte(report.Markdown(rep))
				}

				if output == "-" {
					_, err := cmd.OutOrStdout().Write(body)
					return err
				}
				path := output
				if path == "" {
					path = report.FileName(format)
				}
				if err := os.WriteFile(path, body, 0o644); err != nil {
					return WrapExitError(ExitCommandError, "cannot write "+path, err)
				}
				opts.formatter(cmd).VerboseLog("Exported %d item(s)", len(rep.Items))
				return opts.formatter(cmd).Data(map[string]string{"file": path}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Wrote %s\n", path)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", string(report.FormatMarkdown), "document type (md|html)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for standard output")
	return cmd
}
