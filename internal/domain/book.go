package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// PositionBook aggregates all open entries for one trading pair.
// Entries are kept in insertion order (oldest first). Derived aggregates are
// recomputed in full after every structural mutation and never drift from the
// entry list. Mutations are not safe for concurrent use; callers serialize
// access per pair (see manager package).
type PositionBook struct {
	pair        Pair
	entries     []Entry
	nextEntryID int64

	totalCost     float64
	totalQuantity float64
	averagePrice  float64
	// maxEntryPrice is the take-profit reference: the exit trigger requires the
	// worst-priced entry to be profitable, so this is the maximum entry price,
	// never the weighted average.
	maxEntryPrice float64
}

// NewPositionBook creates an empty book for the pair.
func NewPositionBook(pair Pair) *PositionBook {
	return &PositionBook{
		pair:        pair,
		entries:     make([]Entry, 0),
		nextEntryID: 1,
	}
}

// Pair returns the pair this book tracks.
func (b *PositionBook) Pair() Pair {
	return b.pair
}

// AddEntry appends a validated entry, assigns it the next id and recomputes
// aggregates. Returns ErrInvalidEntry on non-positive price or cost, leaving
// the book untouched.
func (b *PositionBook) AddEntry(p EntryParams) (Entry, error) {
	entry, err := newEntry(b.nextEntryID, p)
	if err != nil {
		return Entry{}, err
	}

	b.entries = append(b.entries, entry)
	b.nextEntryID++
	b.recomputeAggregates()

	return entry, nil
}

// RemoveEntry removes the entry with the given id and recomputes aggregates.
// Ids are never reused after removal, even when the book empties out, so
// historical ids stay unambiguous across reconciliation runs.
func (b *PositionBook) RemoveEntry(id int64) (Entry, error) {
	for i, entry := range b.entries {
		if entry.ID != id {
			continue
		}

		b.entries = append(b.entries[:i], b.entries[i+1:]...)
		b.recomputeAggregates()

		return entry, nil
	}

	return Entry{}, errors.Wrapf(ErrNotFound, "entry id %d in book %s", id, b.pair.String())
}

// Append adds an already-built entry without validation. Reconciliation and
// state restore use it: both tolerate zero-valued substitutes for malformed
// records that AddEntry would reject. The id counter advances past the
// appended entry's id.
func (b *PositionBook) Append(entry Entry) {
	b.entries = append(b.entries, entry)
	if entry.ID >= b.nextEntryID {
		b.nextEntryID = entry.ID + 1
	}
	b.recomputeAggregates()
}

// Clear empties the book and resets the id counter, used on confirmed full exit.
func (b *PositionBook) Clear() {
	b.entries = b.entries[:0]
	b.nextEntryID = 1
	b.recomputeAggregates()
}

// recomputeAggregates is a pure function of the entry list. An empty book has
// defined zero aggregates, not an error.
func (b *PositionBook) recomputeAggregates() {
	b.totalCost = 0
	b.totalQuantity = 0
	b.averagePrice = 0
	b.maxEntryPrice = 0

	for _, entry := range b.entries {
		b.totalCost += entry.Cost
		b.totalQuantity += entry.Quantity

		if entry.EntryPrice > b.maxEntryPrice {
			b.maxEntryPrice = entry.EntryPrice
		}
	}

	if b.totalQuantity > 0 {
		b.averagePrice = b.totalCost / b.totalQuantity
	}
}

// IsEmpty reports whether the book has no open entries.
func (b *PositionBook) IsEmpty() bool {
	return len(b.entries) == 0
}

// OpenPositions answers the "open-position count" query: 1 when at least one
// entry is open, else 0.
func (b *PositionBook) OpenPositions() int {
	if len(b.entries) > 0 {
		return 1
	}
	return 0
}

// EntryCount returns the number of open entries.
func (b *PositionBook) EntryCount() int {
	return len(b.entries)
}

// TotalCost returns the summed quote-currency cost of all entries.
func (b *PositionBook) TotalCost() float64 {
	return b.totalCost
}

// TotalQuantity returns the summed base-currency quantity of all entries.
func (b *PositionBook) TotalQuantity() float64 {
	return b.totalQuantity
}

// AveragePrice returns the weighted average entry price, 0 for an empty book.
func (b *PositionBook) AveragePrice() float64 {
	return b.averagePrice
}

// ExitReferencePrice returns the take-profit reference price: the maximum
// entry price among open entries, 0 for an empty book.
func (b *PositionBook) ExitReferencePrice() float64 {
	return b.maxEntryPrice
}

// Entries returns a copy of the entry list in insertion order.
func (b *PositionBook) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Validate reports soft invariant violations that do not abort operations,
// currently out-of-order opened_at timestamps.
func (b *PositionBook) Validate() []string {
	var issues []string

	for i := 1; i < len(b.entries); i++ {
		if b.entries[i].OpenedAt < b.entries[i-1].OpenedAt {
			issues = append(issues, fmt.Sprintf(
				"entry %d opened_at %d precedes entry %d opened_at %d",
				b.entries[i].ID, b.entries[i].OpenedAt, b.entries[i-1].ID, b.entries[i-1].OpenedAt))
		}
	}

	return issues
}

// BookSnapshot is the immutable persisted representation of a book.
// Field names match the original position_state.json schema.
type BookSnapshot struct {
	Positions     []Entry `json:"positions"`
	TotalCost     float64 `json:"total_position_size_usdt"`
	TotalQuantity float64 `json:"total_amount_crypto"`
	AveragePrice  float64 `json:"average_entry_price"`
	MaxEntryPrice float64 `json:"max_entry_price"`
	NextEntryID   int64   `json:"next_position_id"`
}

// Snapshot produces the persistable state of the book.
func (b *PositionBook) Snapshot() BookSnapshot {
	return BookSnapshot{
		Positions:     b.Entries(),
		TotalCost:     b.totalCost,
		TotalQuantity: b.totalQuantity,
		AveragePrice:  b.averagePrice,
		MaxEntryPrice: b.maxEntryPrice,
		NextEntryID:   b.nextEntryID,
	}
}

// RestoreBook rebuilds a book from a snapshot. Aggregates are recomputed from
// the entries rather than trusted from the stored copy.
func RestoreBook(pair Pair, snap BookSnapshot) *PositionBook {
	book := NewPositionBook(pair)

	book.entries = append(book.entries, snap.Positions...)
	book.nextEntryID = snap.NextEntryID

	if book.nextEntryID < 1 {
		book.nextEntryID = 1
	}
	for _, entry := range book.entries {
		if entry.ID >= book.nextEntryID {
			book.nextEntryID = entry.ID + 1
		}
	}

	book.recomputeAggregates()

	return book
}
