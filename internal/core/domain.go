package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category is one label of the closed grocery category set.
type Category string

const (
	Produce      Category = "Produce"
	Dairy        Category = "Dairy"
	Meat         Category = "Meat"
	Bakery       Category = "Bakery"
	FrozenFoods  Category = "Frozen Foods"
	CannedGoods  Category = "Canned Goods"
	DryGoods     Category = "Dry Goods"
	Beverages    Category = "Beverages"
	Snacks       Category = "Snacks"
	Household    Category = "Household"
	PersonalCare Category = "Personal Care"
	Other        Category = "Other"

	// CategoryAll is the filter value meaning "no category restriction".
	CategoryAll Category = "All"
)

var categories = []Category{
	Produce, Dairy, Meat, Bakery, FrozenFoods, CannedGoods,
	DryGoods, Beverages, Snacks, Household, PersonalCare, Other,
}

// DateLayout matches the ISO-8601 form browsers produce with toISOString.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

type (
	// Draft is the caller-supplied part of an item, used by add and edit.
	Draft struct {
		Name      string
		Category  Category
		Quantity  int
		UnitPrice Money
	}

	// GroceryItem is a single entry of the grocery list.
	GroceryItem struct {
		ID         string
		Name       string
		Category   Category
		Quantity   int
		UnitPrice  Money
		TotalPrice Money
		CreatedAt  time.Time
	}
)

var (
	ErrEmptyName       = errors.New("empty name")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
)

// Categories returns the fixed category enumeration in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory resolves a label to a Category. Matching ignores surrounding
// whitespace and letter case.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// IsValid reports whether c belongs to the enumeration. CategoryAll is not a
// valid item category.
func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// Validate checks what the input forms check before submitting a draft.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if len(d.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if !d.Category.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, string(d.Category))
	}
	if d.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !d.UnitPrice.IsPositive() {
		return ErrInvalidPrice
	}
	return nil
}

// Total returns quantity * unit price.
func (d Draft) Total() Money {
	return d.UnitPrice.Mul(d.Quantity)
}

// Draft returns the mutable fields of the item.
func (it GroceryItem) Draft() Draft {
	return Draft{
		Name:      it.Name,
		Category:  it.Category,
		Quantity:  it.Quantity,
		UnitPrice: it.UnitPrice,
	}
}

// Equal compares items field by field, using exact decimal and instant equality.
func (it GroceryItem) Equal(o GroceryItem) bool {
	return it.ID == o.ID &&
		it.Name == o.Name &&
		it.Category == o.Category &&
		it.Quantity == o.Quantity &&
		it.UnitPrice.Equal(o.UnitPrice) &&
		it.TotalPrice.Equal(o.TotalPrice) &&
		it.CreatedAt.Equal(o.CreatedAt)
}

// itemJSON is the persisted record layout.
type itemJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   Category        `json:"category"`
	Quantity   json.RawMessage `json:"quantity"`
	Price      Money           `json:"price"`
	TotalPrice Money           `json:"totalPrice"`
	Date       string          `json:"date"`
}

func (it GroceryItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{
		ID:         it.ID,
		Name:       it.Name,
		Category:   it.Category,
		Quantity:   json.RawMessage(strconv.Itoa(it.Quantity)),
		Price:      it.UnitPrice,
		TotalPrice: it.TotalPrice,
		Date:       it.CreatedAt.UTC().Format(DateLayout),
	})
}

// UnmarshalJSON also accepts records written by the browser version of the
// tracker, where quantity and price were kept as form strings. A fractional
// quantity is truncated. The stored totalPrice is ignored and recomputed
// from quantity and price.
func (it *GroceryItem) UnmarshalJSON(b []byte) error {
	var raw itemJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	qty, err := parseQuantity(raw.Quantity)
	if err != nil {
		return fmt.Errorf("item %s: %w", raw.ID, err)
	}
	var created time.Time
	if raw.Date != "" {
		created, err = time.Parse(time.RFC3339Nano, raw.Date)
		if err != nil {
			return fmt.Errorf("item %s: parse date: %w", raw.ID, err)
		}
	}
	*it = GroceryItem{
		ID:         raw.ID,
		Name:       raw.Name,
		Category:   raw.Category,
		Quantity:   qty,
		UnitPrice:  raw.Price,
		TotalPrice: raw.Price.Mul(qty),
		CreatedAt:  created,
	}
	return nil
}

func parseQuantity(raw json.RawMessage) (int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, ErrInvalidQuantity
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrInvalidQuantity
		}
		s = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidQuantity
	}
	return int(f), nil
}
