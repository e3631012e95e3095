package history

import (
	"context"
	"strconv"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mkovtun/costbook/internal/domain"
	"github.com/mkovtun/costbook/pkg/retrier"
)

// BybitSource reads filled spot orders from Bybit's v5 order history.
type BybitSource struct {
	client  *bybit.Client
	retrier *retrier.Retrier
	l       *zap.Logger
}

// NewBybitSource creates a Bybit closed-order source.
func NewBybitSource(client *bybit.Client, l *zap.Logger) *BybitSource {
	return &BybitSource{
		client:  client,
		retrier: retrier.New(),
		l:       l,
	}
}

// ClosedOrders fetches the pair's order history and keeps fully filled orders.
func (s *BybitSource) ClosedOrders(ctx context.Context, pair domain.Pair) ([]domain.Order, error) {
	symbol := bybit.SymbolV5(pair.Symbol())

	res, err := retrier.DoWithData(s.retrier, ctx, func(context.Context) (*bybit.V5GetOrdersResponse, error) {
		return s.client.V5().Order().GetHistoryOrders(bybit.V5GetHistoryOrdersParam{
			Category: bybit.CategoryV5Spot,
			Symbol:   &symbol,
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch bybit order history for %s", pair.String())
	}

	orders := make([]domain.Order, 0, len(res.Result.List))

	for _, item := range res.Result.List {
		if item.OrderStatus != bybit.OrderStatusFilled {
			continue
		}

		order := domain.Order{OrderID: item.OrderID}

		switch item.Side {
		case bybit.SideBuy:
			order.Side = domain.SideBuy
		case bybit.SideSell:
			order.Side = domain.SideSell
		default:
			continue
		}

		order.Price = parseBybitAmount(s.l, item.OrderID, "avg price", item.AvgPrice)
		if order.Price == 0 {
			order.Price = parseBybitAmount(s.l, item.OrderID, "price", item.Price)
		}
		order.FilledQuantity = parseBybitAmount(s.l, item.OrderID, "cum exec qty", item.CumExecQty)

		ts, err := strconv.ParseInt(item.CreatedTime, 10, 64)
		if err != nil {
			s.l.Warn("unparsable bybit order timestamp",
				zap.String("order_id", item.OrderID),
				zap.String("created_time", item.CreatedTime))
		}
		order.Timestamp = ts

		orders = append(orders, order)
	}

	return orders, nil
}

func parseBybitAmount(l *zap.Logger, orderID, field, value string) float64 {
	if value == "" {
		return 0
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		l.Warn("unparsable order field, substituting zero",
			zap.String("order_id", orderID),
			zap.String("field", field),
			zap.String("value", value))
		return 0
	}

	return d.InexactFloat64()
}
