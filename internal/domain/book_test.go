package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testPair() Pair {
	return Pair{Base: "BTC", Quote: "USDT"}
}

func TestAddEntryComputesAggregates(t *testing.T) {
	book := NewPositionBook(testPair())

	first, err := book.AddEntry(EntryParams{EntryPrice: 110185.7, Cost: 1.1, OpenedAt: 1})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.ID)

	second, err := book.AddEntry(EntryParams{EntryPrice: 103573.5, Cost: 1.0, OpenedAt: 2})
	require.NoError(t, err)
	require.Equal(t, int64(2), second.ID)

	wantQuantity := 1.1/110185.7 + 1.0/103573.5

	require.InDelta(t, 2.1, book.TotalCost(), 1e-12)
	require.InDelta(t, wantQuantity, book.TotalQuantity(), 1e-15)
	require.InDelta(t, 2.1/wantQuantity, book.AveragePrice(), 1e-6)
	require.Equal(t, 110185.7, book.ExitReferencePrice())
	require.Equal(t, 1, book.OpenPositions())
	require.Equal(t, 2, book.EntryCount())
}

func TestAddEntryRejectsNonPositiveValues(t *testing.T) {
	book := NewPositionBook(testPair())

	_, err := book.AddEntry(EntryParams{EntryPrice: 0, Cost: 1})
	require.ErrorIs(t, err, ErrInvalidEntry)

	_, err = book.AddEntry(EntryParams{EntryPrice: -5, Cost: 1})
	require.ErrorIs(t, err, ErrInvalidEntry)

	_, err = book.AddEntry(EntryParams{EntryPrice: 100, Cost: 0})
	require.ErrorIs(t, err, ErrInvalidEntry)

	// rejected entries must not mutate the book
	require.True(t, book.IsEmpty())
	require.Equal(t, int64(1), book.Snapshot().NextEntryID)
}

func TestExchangeReportedQuantityIsAuthoritative(t *testing.T) {
	book := NewPositionBook(testPair())

	derived, err := book.AddEntry(EntryParams{EntryPrice: 100, Cost: 50})
	require.NoError(t, err)
	require.InDelta(t, 0.5, derived.Quantity, 1e-15)

	reported, err := book.AddEntry(EntryParams{EntryPrice: 100, Cost: 50, Quantity: 0.499})
	require.NoError(t, err)
	require.Equal(t, 0.499, reported.Quantity)
}

func TestExitReferenceIsMaxEntryPriceNotAverage(t *testing.T) {
	book := NewPositionBook(testPair())

	_, err := book.AddEntry(EntryParams{EntryPrice: 100, Cost: 10})
	require.NoError(t, err)
	_, err = book.AddEntry(EntryParams{EntryPrice: 80, Cost: 10})
	require.NoError(t, err)

	require.Equal(t, 100.0, book.ExitReferencePrice())
	// guard against exit pricing accidentally using the mean
	require.NotEqual(t, book.AveragePrice(), book.ExitReferencePrice())
	require.Less(t, book.AveragePrice(), book.ExitReferencePrice())
}

func TestRemoveEntryRestoresPriorAggregates(t *testing.T) {
	book := NewPositionBook(testPair())

	_, err := book.AddEntry(EntryParams{EntryPrice: 100, Cost: 10, OpenedAt: 1})
	require.NoError(t, err)

	before := book.Snapshot()

	added, err := book.AddEntry(EntryParams{EntryPrice: 120, Cost: 5, OpenedAt: 2})
	require.NoError(t, err)

	removed, err := book.RemoveEntry(added.ID)
	require.NoError(t, err)
	require.Equal(t, added, removed)

	after := book.Snapshot()
	require.Equal(t, before.TotalCost, after.TotalCost)
	require.Equal(t, before.TotalQuantity, after.TotalQuantity)
	require.Equal(t, before.AveragePrice, after.AveragePrice)
	require.Equal(t, before.MaxEntryPrice, after.MaxEntryPrice)
	require.Equal(t, before.Positions, after.Positions)

	// the id counter keeps counting up, ids are never reused
	require.Equal(t, before.NextEntryID+1, after.NextEntryID)
}

func TestRemoveEntryByIDFromAnyPosition(t *testing.T) {
	book := NewPositionBook(testPair())

	first, err := book.AddEntry(EntryParams{EntryPrice: 100, Cost: 10, OpenedAt: 1})
	require.NoError(t, err)
	middle, err := book.AddEntry(EntryParams{EntryPrice: 110, Cost: 10, OpenedAt: 2})
	require.NoError(t, err)
	last, err := book.AddEntry(EntryParams{EntryPrice: 90, Cost: 10, OpenedAt: 3})
	require.NoError(t, err)

	_, err = book.RemoveEntry(middle.ID)
	require.NoError(t, err)

	entries := book.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, first.ID, entries[0].ID)
	require.Equal(t, last.ID, entries[1].ID)
	require.Equal(t, 100.0, book.ExitReferencePrice())
}

func TestRemoveEntryNotFound(t *testing.T) {
	book := NewPositionBook(testPair())

	_, err := book.AddEntry(EntryParams{EntryPrice: 100, Cost: 10})
	require.NoError(t, err)

	before := book.Snapshot()

	_, err = book.RemoveEntry(42)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, before, book.Snapshot())
}

func TestRemoveLastEntryZeroesAggregates(t *testing.T) {
	book := NewPositionBook(testPair())

	entry, err := book.AddEntry(EntryParams{EntryPrice: 100, Cost: 10})
	require.NoError(t, err)

	_, err = book.RemoveEntry(entry.ID)
	require.NoError(t, err)

	require.True(t, book.IsEmpty())
	require.Equal(t, 0.0, book.TotalCost())
	require.Equal(t, 0.0, book.TotalQuantity())
	require.Equal(t, 0.0, book.AveragePrice())
	require.Equal(t, 0.0, book.ExitReferencePrice())
	// removal leaves the counter untouched
	require.Equal(t, int64(2), book.Snapshot().NextEntryID)
}

func TestClearResetsBookAndIDCounter(t *testing.T) {
	book := NewPositionBook(testPair())

	_, err := book.AddEntry(EntryParams{EntryPrice: 100, Cost: 10})
	require.NoError(t, err)
	_, err = book.AddEntry(EntryParams{EntryPrice: 110, Cost: 10})
	require.NoError(t, err)

	book.Clear()

	require.True(t, book.IsEmpty())
	require.Equal(t, 0, book.OpenPositions())
	require.Equal(t, 0.0, book.TotalCost())
	require.Equal(t, 0.0, book.TotalQuantity())
	require.Equal(t, 0.0, book.AveragePrice())
	require.Equal(t, 0.0, book.ExitReferencePrice())
	require.Equal(t, int64(1), book.Snapshot().NextEntryID)
}

func TestEmptyBookHasDefinedZeroAggregates(t *testing.T) {
	book := NewPositionBook(testPair())

	require.Equal(t, 0.0, book.TotalCost())
	require.Equal(t, 0.0, book.TotalQuantity())
	require.Equal(t, 0.0, book.AveragePrice())
	require.Equal(t, 0.0, book.ExitReferencePrice())
	require.Equal(t, 0, book.OpenPositions())
}

func TestValidateFlagsOutOfOrderTimestamps(t *testing.T) {
	book := NewPositionBook(testPair())

	_, err := book.AddEntry(EntryParams{EntryPrice: 100, Cost: 10, OpenedAt: 2000})
	require.NoError(t, err)
	_, err = book.AddEntry(EntryParams{EntryPrice: 110, Cost: 10, OpenedAt: 1000})
	require.NoError(t, err)

	issues := book.Validate()
	require.Len(t, issues, 1)
	require.Contains(t, issues[0], "precedes")
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	book := NewPositionBook(testPair())

	_, err := book.AddEntry(EntryParams{EntryPrice: 100, Cost: 10, OpenedAt: 1, OrderID: "a"})
	require.NoError(t, err)
	removed, err := book.AddEntry(EntryParams{EntryPrice: 105, Cost: 10, OpenedAt: 2})
	require.NoError(t, err)
	_, err = book.RemoveEntry(removed.ID)
	require.NoError(t, err)
	_, err = book.AddEntry(EntryParams{EntryPrice: 110, Cost: 10, OpenedAt: 3, OrderID: "b"})
	require.NoError(t, err)

	restored := RestoreBook(testPair(), book.Snapshot())

	require.Equal(t, book.Snapshot(), restored.Snapshot())
	require.Equal(t, book.AveragePrice(), restored.AveragePrice())
	require.Equal(t, book.ExitReferencePrice(), restored.ExitReferencePrice())
}
