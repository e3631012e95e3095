// Package history fetches closed-order history from exchanges and converts it
// into the engine's order records.
package history

import (
	"context"

	"github.com/mkovtun/costbook/internal/domain"
)

// Source supplies the closed orders of a pair, oldest data first not
// guaranteed; the reconciler sorts by timestamp itself.
type Source interface {
	ClosedOrders(ctx context.Context, pair domain.Pair) ([]domain.Order, error)
}
