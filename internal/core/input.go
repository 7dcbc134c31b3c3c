package core

import (
	"errors"
	"strconv"
	"strings"
)

// ParseDraft builds a validated Draft from raw form values. Checks run in the
// order the entry form reports them: name, price, quantity, category.
func ParseDraft(name, category, quantity, price string) (Draft, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Draft{}, ErrEmptyName
	}
	p, err := ParseMoney(price)
	if err != nil {
		return Draft{}, err
	}
	q, err := strconv.Atoi(strings.TrimSpace(quantity))
	if err != nil || q <= 0 {
		return Draft{}, ErrInvalidQuantity
	}
	c, err := ParseCategory(category)
	if err != nil {
		return Draft{}, err
	}

	d := Draft{Name: name, Category: c, Quantity: q, UnitPrice: p}
	if err := d.Validate(); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// ValidationMessage returns the text shown to a user for a draft error.
func ValidationMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyName):
		return "Item name is required"
	case errors.Is(err, ErrInvalidPrice):
		return "Please enter a valid price"
	case errors.Is(err, ErrInvalidQuantity):
		return "Please enter a valid quantity"
	case errors.Is(err, ErrUnknownCategory):
		return "Please select a valid category"
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}
