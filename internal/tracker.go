package internal

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mkovtun/costbook/config"
	"github.com/mkovtun/costbook/internal/domain"
	"github.com/mkovtun/costbook/internal/manager"
	"github.com/mkovtun/costbook/internal/reconcile"
	"github.com/mkovtun/costbook/internal/services/history"
)

// Tracker keeps local position books in line with exchange-reported history.
// At boot it can rebuild empty books from closed orders; afterwards it
// periodically re-checks and reports drift without overwriting local state.
type Tracker struct {
	cfg        config.Config
	manager    *manager.Manager
	source     history.Source
	reconciler *reconcile.Reconciler
	l          *zap.Logger
}

// NewTracker creates a tracker for the configured platform. client must match
// the platform: *binance.Client or *bybit.Client.
func NewTracker(cfg config.Config, client any, mgr *manager.Manager, l *zap.Logger) (*Tracker, error) {
	source, err := createSource(cfg.Platform, client, l)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create order history source")
	}

	return &Tracker{
		cfg:        cfg,
		manager:    mgr,
		source:     source,
		reconciler: reconcile.New(l),
		l:          l,
	}, nil
}

func createSource(platform string, client any, l *zap.Logger) (history.Source, error) {
	switch platform {
	case "binance":
		c, ok := client.(*binance.Client)
		if !ok {
			return nil, errors.Errorf("binance platform requires *binance.Client, got %T", client)
		}
		return history.NewBinanceSource(c, l), nil
	case "bybit":
		c, ok := client.(*bybit.Client)
		if !ok {
			return nil, errors.Errorf("bybit platform requires *bybit.Client, got %T", client)
		}
		return history.NewBybitSource(c, l), nil
	default:
		return nil, errors.Errorf("unsupported platform %q", platform)
	}
}

// Run blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	if t.cfg.ReconcileOnStart {
		for _, pair := range t.cfg.Pairs {
			if err := t.checkPair(ctx, pair, true); err != nil {
				return err
			}
		}
	}

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, pair := range t.cfg.Pairs {
				if err := t.checkPair(ctx, pair, false); err != nil {
					// transient exchange failures must not stop tracking
					t.l.Error("history re-check failed",
						zap.Error(err),
						zap.String("pair", pair.String()))
				}
			}
		}
	}
}

// checkPair reconciles one pair against exchange history. When adoptIfEmpty
// is set and the local book has no entries, the candidate replaces it;
// otherwise disagreement is only reported, never auto-applied, so a stale
// exchange response cannot wipe confirmed local state.
func (t *Tracker) checkPair(ctx context.Context, pair domain.Pair, adoptIfEmpty bool) error {
	orders, err := t.source.ClosedOrders(ctx, pair)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch closed orders for %s", pair.String())
	}

	candidate, warnings := t.reconciler.Reconcile(pair, orders)
	for _, w := range warnings {
		t.l.Warn("reconciliation warning",
			zap.String("pair", pair.String()),
			zap.String("order_id", w.OrderID),
			zap.String("reason", w.Reason))
	}

	localEntries := t.manager.EntryCount(pair)

	if localEntries == 0 && adoptIfEmpty && candidate.EntryCount() > 0 {
		t.l.Info("local book is empty, adopting reconciled candidate",
			zap.String("pair", pair.String()),
			zap.Int("entries", candidate.EntryCount()))

		return t.manager.AdoptReconciled(pair, candidate)
	}

	if localEntries != candidate.EntryCount() {
		t.l.Warn("local book disagrees with exchange history",
			zap.String("pair", pair.String()),
			zap.Int("local_entries", localEntries),
			zap.Int("history_entries", candidate.EntryCount()),
			zap.Float64("local_average_price", t.manager.AveragePrice(pair)),
			zap.Float64("history_average_price", candidate.AveragePrice()))
	}

	return nil
}
