// Package manager owns all position books, keyed by trading pair. Every
// mutation goes through it under a per-pair mutex; no other component writes
// book state directly.
package manager

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mkovtun/costbook/internal/domain"
	"github.com/mkovtun/costbook/internal/storage/fills"
)

type stateStore interface {
	Load() (map[string]domain.BookSnapshot, bool, error)
	Save(state map[string]domain.BookSnapshot) error
}

type mutationJournal interface {
	Append(event fills.Event) error
}

// Manager is the single owner of per-pair position books. Books for different
// pairs are fully independent, so exclusion is scoped per pair; the global
// lock only guards the map and the persisted-state copy.
type Manager struct {
	l       *zap.Logger
	store   stateStore
	journal mutationJournal

	mu    sync.Mutex
	pairs map[string]*pairState
	state map[string]domain.BookSnapshot
}

type pairState struct {
	mu   sync.Mutex
	book *domain.PositionBook
}

// New loads persisted state (migrating legacy-schema pairs once) and builds
// the managed books. The journal may be nil; audit logging is then skipped.
func New(l *zap.Logger, store stateStore, journal mutationJournal) (*Manager, error) {
	state, migrated, err := store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "load position state")
	}

	m := &Manager{
		l:       l,
		store:   store,
		journal: journal,
		pairs:   make(map[string]*pairState, len(state)),
		state:   state,
	}

	for symbol, snap := range state {
		pair, err := domain.PairFromString(symbol)
		if err != nil {
			return nil, errors.Wrapf(err, "restore pair %s", symbol)
		}

		book := domain.RestoreBook(pair, snap)
		for _, issue := range book.Validate() {
			l.Warn("position book invariant violation", zap.String("pair", symbol), zap.String("issue", issue))
		}

		m.pairs[symbol] = &pairState{book: book}
	}

	if migrated {
		if err := store.Save(state); err != nil {
			return nil, errors.Wrap(err, "persist migrated position state")
		}

		l.Info("migrated legacy position state", zap.Int("pairs", len(state)))
	}

	return m, nil
}

// pairFor returns the state holder for the pair, creating an empty book on
// first use.
func (m *Manager) pairFor(pair domain.Pair) *pairState {
	m.mu.Lock()
	defer m.mu.Unlock()

	symbol := pair.String()
	ps, ok := m.pairs[symbol]
	if !ok {
		ps = &pairState{book: domain.NewPositionBook(pair)}
		m.pairs[symbol] = ps
	}

	return ps
}

// persist refreshes this pair's snapshot in the state copy and writes the
// whole file. Called while holding the pair lock; only the global lock is
// taken here, never another pair's.
func (m *Manager) persist(book *domain.PositionBook) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair := book.Pair()
	m.state[pair.String()] = book.Snapshot()

	snapshot := make(map[string]domain.BookSnapshot, len(m.state))
	for symbol, snap := range m.state {
		snapshot[symbol] = snap
	}

	return m.store.Save(snapshot)
}

// audit appends the event to the journal. Audit failures are logged and do
// not abort the already-applied mutation.
func (m *Manager) audit(event fills.Event) {
	if m.journal == nil {
		return
	}

	if err := m.journal.Append(event); err != nil {
		m.l.Error("failed to journal position mutation",
			zap.Error(err),
			zap.String("pair", event.Pair),
			zap.String("type", string(event.Type)))
	}
}

// ConfirmBuy appends an entry for a confirmed buy fill and persists the book.
func (m *Manager) ConfirmBuy(pair domain.Pair, params domain.EntryParams) (domain.Entry, error) {
	ps := m.pairFor(pair)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	entry, err := ps.book.AddEntry(params)
	if err != nil {
		return domain.Entry{}, err
	}

	if err := m.persist(ps.book); err != nil {
		return domain.Entry{}, err
	}

	m.l.Info("buy confirmed",
		zap.String("pair", pair.String()),
		zap.Int64("entry_id", entry.ID),
		zap.Float64("entry_price", entry.EntryPrice),
		zap.Float64("cost", entry.Cost),
		zap.Float64("average_price", ps.book.AveragePrice()),
		zap.Float64("exit_reference_price", ps.book.ExitReferencePrice()))

	m.audit(fills.Event{
		Type:    fills.EventBuyConfirmed,
		Pair:    pair.String(),
		Entry:   &entry,
		Entries: ps.book.EntryCount(),
	})

	return entry, nil
}

// RemoveEntry drops the entry with the given id, most commonly the
// last-added one when a fill turns out erroneous or superseded.
func (m *Manager) RemoveEntry(pair domain.Pair, id int64) (domain.Entry, error) {
	ps := m.pairFor(pair)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	entry, err := ps.book.RemoveEntry(id)
	if err != nil {
		return domain.Entry{}, err
	}

	if err := m.persist(ps.book); err != nil {
		return domain.Entry{}, err
	}

	m.l.Info("entry removed",
		zap.String("pair", pair.String()),
		zap.Int64("entry_id", entry.ID),
		zap.Int("entries_left", ps.book.EntryCount()))

	m.audit(fills.Event{
		Type:    fills.EventEntryRemoved,
		Pair:    pair.String(),
		Entry:   &entry,
		Entries: ps.book.EntryCount(),
	})

	return entry, nil
}

// ConfirmFullExit clears the book after a sell covering the whole
// accumulated quantity.
func (m *Manager) ConfirmFullExit(pair domain.Pair) error {
	ps := m.pairFor(pair)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	closed := ps.book.EntryCount()
	ps.book.Clear()

	if err := m.persist(ps.book); err != nil {
		return err
	}

	m.l.Info("full exit confirmed",
		zap.String("pair", pair.String()),
		zap.Int("entries_closed", closed))

	m.audit(fills.Event{
		Type: fills.EventFullExit,
		Pair: pair.String(),
	})

	return nil
}

// AdoptReconciled replaces the pair's book with a reconciler candidate.
func (m *Manager) AdoptReconciled(pair domain.Pair, candidate *domain.PositionBook) error {
	ps := m.pairFor(pair)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.book = candidate

	if err := m.persist(ps.book); err != nil {
		return err
	}

	m.l.Info("adopted reconciled position book",
		zap.String("pair", pair.String()),
		zap.Int("entries", ps.book.EntryCount()),
		zap.Float64("total_cost", ps.book.TotalCost()))

	m.audit(fills.Event{
		Type:    fills.EventReconciled,
		Pair:    pair.String(),
		Entries: ps.book.EntryCount(),
	})

	return nil
}

// OpenPositions answers the upward query: 1 when the pair has at least one
// open entry, else 0.
func (m *Manager) OpenPositions(pair domain.Pair) int {
	ps := m.pairFor(pair)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	return ps.book.OpenPositions()
}

// AveragePrice returns the pair's aggregate cost basis.
func (m *Manager) AveragePrice(pair domain.Pair) float64 {
	ps := m.pairFor(pair)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	return ps.book.AveragePrice()
}

// ExitReferencePrice returns the pair's take-profit trigger reference.
func (m *Manager) ExitReferencePrice(pair domain.Pair) float64 {
	ps := m.pairFor(pair)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	return ps.book.ExitReferencePrice()
}

// EntryCount returns the number of open entries for the pair.
func (m *Manager) EntryCount(pair domain.Pair) int {
	ps := m.pairFor(pair)

	ps.mu.Lock()
	defer ps.mu.Unlock()

	return ps.book.EntryCount()
}

// Snapshot returns the persisted-shape snapshot for one pair.
func (m *Manager) Snapshot(symbol string) (domain.BookSnapshot, bool) {
	m.mu.Lock()
	ps, ok := m.pairs[symbol]
	m.mu.Unlock()

	if !ok {
		return domain.BookSnapshot{}, false
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	return ps.book.Snapshot(), true
}

// Snapshots returns snapshots for all tracked pairs.
func (m *Manager) Snapshots() map[string]domain.BookSnapshot {
	m.mu.Lock()
	symbols := make([]string, 0, len(m.pairs))
	for symbol := range m.pairs {
		symbols = append(symbols, symbol)
	}
	m.mu.Unlock()

	out := make(map[string]domain.BookSnapshot, len(symbols))
	for _, symbol := range symbols {
		if snap, ok := m.Snapshot(symbol); ok {
			out[symbol] = snap
		}
	}

	return out
}
