package domain

// Side of a closed exchange order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order is a closed order record as reported by an exchange, the input of
// history reconciliation. Zero Price or FilledQuantity is tolerated (the
// reconciler substitutes zero cost and surfaces a warning).
type Order struct {
	Side           Side
	Price          float64
	FilledQuantity float64
	// Timestamp is milliseconds since epoch, the ordering key.
	Timestamp int64
	OrderID   string
}
