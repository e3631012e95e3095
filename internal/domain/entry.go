package domain

import (
	"github.com/pkg/errors"
)

// Entry is a single buy fill contributing to an open position.
// JSON tags match the persisted position_state.json schema.
type Entry struct {
	ID         int64   `json:"id"`
	EntryPrice float64 `json:"entry_price"`
	// Cost is the quote-currency amount committed to this entry.
	Cost float64 `json:"position_size_usdt"`
	// Quantity is the base-currency amount acquired.
	Quantity float64 `json:"amount_crypto"`
	// OpenedAt is milliseconds since epoch.
	OpenedAt int64  `json:"opened_at"`
	OrderID  string `json:"order_id,omitempty"`
	// IsLegacy marks entries whose cost basis was estimated rather than taken
	// from a confirmed fill. It lowers display confidence only, never arithmetic.
	IsLegacy bool `json:"is_legacy"`
}

// EntryParams carries the caller-supplied fields of a new entry.
type EntryParams struct {
	EntryPrice float64
	Cost       float64
	// Quantity is optional. When zero it is derived as Cost/EntryPrice;
	// when the exchange reported it independently, the reported value wins.
	Quantity float64
	OpenedAt int64
	OrderID  string
	IsLegacy bool
}

// newEntry validates params and builds an Entry with the given id.
func newEntry(id int64, p EntryParams) (Entry, error) {
	if p.EntryPrice <= 0 {
		return Entry{}, errors.Wrapf(ErrInvalidEntry, "entry price must be positive, got %v", p.EntryPrice)
	}
	if p.Cost <= 0 {
		return Entry{}, errors.Wrapf(ErrInvalidEntry, "cost must be positive, got %v", p.Cost)
	}

	quantity := p.Quantity
	if quantity == 0 {
		quantity = p.Cost / p.EntryPrice
	}

	return Entry{
		ID:         id,
		EntryPrice: p.EntryPrice,
		Cost:       p.Cost,
		Quantity:   quantity,
		OpenedAt:   p.OpenedAt,
		OrderID:    p.OrderID,
		IsLegacy:   p.IsLegacy,
	}, nil
}
