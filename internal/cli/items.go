package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"spesa/internal/core"
	"spesa/internal/report"
	"spesa/internal/store"
)

type itemFlags struct {
	name     string
	category string
	quantity string
	price    string
}

func (f *itemFlags) register(cmd *cobra.Command, withName bool) {
	if withName {
		cmd.Flags().StringVarP(&f.name, "name", "n", "", "item name")
	}
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "category, one of: "+categoryList())
	cmd.Flags().StringVarP(&f.quantity, "quantity", "q", "1", "quantity, a positive whole number")
	cmd.Flags().StringVarP(&f.price, "price", "p", "", "unit price, e.g. 1.50")
}

func categoryList() string {
	labels := make([]string, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		labels = append(labels, c.String())
	}
	return strings.Join(labels, ", ")
}

func invalidDraft(err error) error {
	return NewExitError(ExitCommandError, core.ValidationMessage(err))
}

func newAddCommand(opts *RootOptions) *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an item to the grocery list",
		Example: `  spesa add Apples --category Produce --quantity 3 --price 1.50
  spesa add "Whole milk" -c Dairy -p 1,19`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := core.ParseDraft(args[0], f.category, f.quantity, f.price)
			if err != nil {
				return invalidDraft(err)
			}
			return opts.withStore(cmd, func(s *store.ItemStore) error {
				it := s.Add(d)
				return opts.formatter(cmd).Data(viewOf(it), func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Added %s: %d x %s %s = %s (%s)\n",
						it.ID, it.Quantity, it.Name, report.Dollars(it.UnitPrice),
						report.Dollars(it.TotalPrice), it.Category)
					return err
				})
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func newEditCommand(opts *RootOptions) *cobra.Command {
	var f itemFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change an item; flags not given keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return opts.withStore(cmd, func(s *store.ItemStore) error {
				cur, ok := s.Get(id)
				if !ok {
					return NewExitError(ExitFailure, fmt.Sprintf("item %s not found", id))
				}

				name, category := cur.Name, cur.Category.String()
				quantity, price := strconv.Itoa(cur.Quantity), cur.UnitPrice.String()
				flags := cmd.Flags()
				if flags.Changed("name") {
					name = f.name
				}
				if flags.Changed("category") {
					category = f.category
				}
				if flags.Changed("quantity") {
					quantity = f.quantity
				}
				if flags.Changed("price") {
					price = f.price
				}

				d, err := core.ParseDraft(name, category, quantity, price)
				if err != nil {
					return invalidDraft(err)
				}
				s.Edit(id, d)
				it, _ := s.Get(id)
				return opts.formatter(cmd).Data(viewOf(it), func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Updated %s: %d x %s %s = %s (%s)\n",
						it.ID, it.Quantity, it.Name, report.Dollars(it.UnitPrice),
						report.Dollars(it.TotalPrice), it.Category)
					return err
				})
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

type deleteResult struct {
	ID      string `json:"id" yaml:"id"`
	Deleted bool   `json:"deleted" yaml:"deleted"`
}

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Remove an item; removing a missing item is not an error",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(s *store.ItemStore) error {
				res := deleteResult{ID: args[0], Deleted: s.Delete(args[0])}
				return opts.formatter(cmd).Data(res, func(w io.Writer) error {
					msg := "Deleted " + res.ID
					if !res.Deleted {
						msg = "No item " + res.ID + ", nothing deleted"
					}
					_, err := fmt.Fprintln(w, msg)
					return err
				})
			})
		},
	}
}

func newClearCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitFailure, "refusing to clear all items without --yes")
			}
			return opts.withStore(cmd, func(s *store.ItemStore) error {
				n := s.Len()
				s.ClearAll()
				return opts.formatter(cmd).Data(map[string]int{"removed": n}, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Cleared %d item(s)\n", n)
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm removal of all items")
	return cmd
}

type listResult struct {
	Category string     `json:"category" yaml:"category"`
	Search   string     `json:"search" yaml:"search"`
	Items    []ItemView `json:"items" yaml:"items"`
	Total    string     `json:"total" yaml:"total"`
}

func newListCommand(opts *RootOptions) *cobra.Command {
	var category, search string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List items, optionally filtered by category and name",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := core.CategoryAll
			if c := strings.TrimSpace(category); c != "" && !strings.EqualFold(c, string(core.CategoryAll)) {
				parsed, err := core.ParseCategory(c)
				if err != nil {
					return invalidDraft(err)
				}
				filter = parsed
			}

			return opts.withStore(cmd, func(s *store.ItemStore) error {
				s.SetFilter(filter, search)
				items := s.FilteredView()
				total := store.GrandTotal(items)
				opts.formatter(cmd).VerboseLog("%d of %d item(s) match", len(items), s.Len())

				res := listResult{
					Category: filter.String(),
					Search:   search,
					Items:    viewsOf(items),
					Total:    total.String(),
				}
				return opts.formatter(cmd).Data(res, func(w io.Writer) error {
					return writeItemTable(w, items, total)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "only items of this category")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only items whose name contains this text")
	return cmd
}

func newCategoriesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show the available categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := core.Categories()
			labels := make([]string, len(cats))
			for i, c := range cats {
				labels[i] = c.String()
			}
			return opts.formatter(cmd).Data(labels, func(w io.Writer) error {
				for _, l := range labels {
					if _, err := fmt.Fprintln(w, l); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
