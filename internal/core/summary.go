package core

import "time"

// CategoryTotal is the amount spent in one category.
type CategoryTotal struct {
	Category Category
	Amount   Money
}

// Summary is the aggregate view of the whole list.
type Summary struct {
	Total      Money
	ByCategory []CategoryTotal
	ItemCount  int
}

// ChangeOp names a mutation of the item collection.
type ChangeOp string

const (
	OpAdd    ChangeOp = "add"
	OpEdit   ChangeOp = "edit"
	OpDelete ChangeOp = "delete"
	OpClear  ChangeOp = "clear"
)

// Change describes a committed mutation. ItemID is empty for OpClear; Count is
// the collection size after the mutation.
type Change struct {
	Op     ChangeOp
	ItemID string
	Count  int
	At     time.Time
}
