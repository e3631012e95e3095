// Package reconcile recovers a candidate position book from closed-order
// history when no trustworthy local state exists.
package reconcile

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkovtun/costbook/internal/domain"
)

// Warning reports a malformed order record that was tolerated during
// reconciliation. Zero-valued substitutes silently understate cost basis, so
// the caller must log or alert on these.
type Warning struct {
	OrderID string
	Reason  string
}

// Reconciler builds candidate position books from exchange order history.
// It is a pure computation over the supplied order list and needs no locking.
type Reconciler struct {
	l *zap.Logger
}

// New creates a Reconciler.
func New(l *zap.Logger) *Reconciler {
	return &Reconciler{l: l}
}

// Reconcile infers which trailing buys of the closed-order history form the
// currently open position and returns them as a candidate book.
//
// The most recent sell order is the boundary: every order at or before it is
// assumed fully closed out by that sell, regardless of its filled quantity.
// Buys strictly after the boundary become entries in chronological order.
// This assumes the strategy never partially exits a position; if it ever
// does, remaining quantity is misattributed as a fresh open position.
func (r *Reconciler) Reconcile(pair domain.Pair, orders []domain.Order) (*domain.PositionBook, []Warning) {
	runID := uuid.New().String()
	l := r.l.With(zap.String("run_id", runID), zap.String("pair", pair.String()))

	sorted := make([]domain.Order, len(orders))
	copy(sorted, orders)
	// stable: ties keep the exchange-reported relative order
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	boundary := -1
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Side == domain.SideSell {
			boundary = i
			break
		}
	}

	book := domain.NewPositionBook(pair)
	var warnings []Warning

	for i := boundary + 1; i < len(sorted); i++ {
		order := sorted[i]
		if order.Side != domain.SideBuy {
			continue
		}

		if order.Price <= 0 || order.FilledQuantity <= 0 {
			warnings = append(warnings, Warning{
				OrderID: order.OrderID,
				Reason:  "order is missing price or filled quantity, cost basis understated",
			})
		}

		entry := domain.Entry{
			ID:         int64(book.EntryCount()) + 1,
			EntryPrice: order.Price,
			Cost:       order.FilledQuantity * order.Price,
			Quantity:   order.FilledQuantity,
			OpenedAt:   order.Timestamp,
			OrderID:    order.OrderID,
		}
		book.Append(entry)
	}

	l.Info("reconciled open position from order history",
		zap.Int("orders", len(sorted)),
		zap.Int("sell_boundary", boundary),
		zap.Int("open_entries", book.EntryCount()),
		zap.Int("warnings", len(warnings)),
		zap.Float64("total_cost", book.TotalCost()),
		zap.Float64("exit_reference_price", book.ExitReferencePrice()))

	return book, warnings
}
