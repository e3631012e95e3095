package history

import (
	"context"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mkovtun/costbook/internal/domain"
	"github.com/mkovtun/costbook/pkg/retrier"
)

// BinanceSource reads filled spot orders from Binance.
type BinanceSource struct {
	client  *binance.Client
	retrier *retrier.Retrier
	l       *zap.Logger
}

// NewBinanceSource creates a Binance closed-order source.
func NewBinanceSource(client *binance.Client, l *zap.Logger) *BinanceSource {
	return &BinanceSource{
		client:  client,
		retrier: retrier.New(),
		l:       l,
	}
}

// ClosedOrders fetches the pair's order history and keeps fully filled orders.
func (s *BinanceSource) ClosedOrders(ctx context.Context, pair domain.Pair) ([]domain.Order, error) {
	raw, err := retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) ([]*binance.Order, error) {
		return s.client.NewListOrdersService().Symbol(pair.Symbol()).Do(ctx)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list binance orders for %s", pair.String())
	}

	orders := make([]domain.Order, 0, len(raw))

	for _, o := range raw {
		if o.Status != binance.OrderStatusTypeFilled {
			continue
		}

		order := domain.Order{
			Timestamp: o.Time,
			OrderID:   strconv.FormatInt(o.OrderID, 10),
		}

		switch o.Side {
		case binance.SideTypeBuy:
			order.Side = domain.SideBuy
		case binance.SideTypeSell:
			order.Side = domain.SideSell
		default:
			continue
		}

		// market orders report price 0; derive it from the executed quote amount
		order.Price = parseAmount(s.l, o.OrderID, "price", o.Price)
		order.FilledQuantity = parseAmount(s.l, o.OrderID, "executed quantity", o.ExecutedQuantity)

		if order.Price == 0 && order.FilledQuantity > 0 {
			quote := parseAmount(s.l, o.OrderID, "quote quantity", o.CummulativeQuoteQuantity)
			if quote > 0 {
				order.Price = quote / order.FilledQuantity
			}
		}

		orders = append(orders, order)
	}

	return orders, nil
}

// parseAmount converts an exchange decimal string to the engine's float64.
// Unparsable values become zero; the reconciler surfaces them as warnings.
func parseAmount(l *zap.Logger, orderID int64, field, value string) float64 {
	if value == "" {
		return 0
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		l.Warn("unparsable order field, substituting zero",
			zap.Int64("order_id", orderID),
			zap.String("field", field),
			zap.String("value", value))
		return 0
	}

	return d.InexactFloat64()
}
