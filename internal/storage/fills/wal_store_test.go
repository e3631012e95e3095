package fills

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkovtun/costbook/internal/domain"
)

func TestJournalAppendAndReadBack(t *testing.T) {
	journal, err := NewJournal(t.TempDir())
	require.NoError(t, err)
	defer journal.Close()

	entry := domain.Entry{ID: 1, EntryPrice: 100, Cost: 10, Quantity: 0.1}

	require.NoError(t, journal.Append(Event{
		Type:    EventBuyConfirmed,
		Pair:    "BTC/USDT",
		Entry:   &entry,
		Entries: 1,
	}))
	require.NoError(t, journal.Append(Event{
		Type: EventFullExit,
		Pair: "BTC/USDT",
	}))

	records, err := journal.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, EventBuyConfirmed, records[0].Event.Type)
	require.Equal(t, "BTC/USDT", records[0].Event.Pair)
	require.NotNil(t, records[0].Event.Entry)
	require.Equal(t, entry, *records[0].Event.Entry)
	require.NotEmpty(t, records[0].Event.ID)
	require.False(t, records[0].Event.Time.IsZero())

	require.Equal(t, EventFullExit, records[1].Event.Type)
	require.Greater(t, records[1].Index, records[0].Index)
}

func TestJournalEventsAfterSkipsConsumed(t *testing.T) {
	journal, err := NewJournal(t.TempDir())
	require.NoError(t, err)
	defer journal.Close()

	require.NoError(t, journal.Append(Event{Type: EventBuyConfirmed, Pair: "BTC/USDT"}))
	require.NoError(t, journal.Append(Event{Type: EventEntryRemoved, Pair: "BTC/USDT"}))

	first, err := journal.EventsAfter(0)
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := journal.EventsAfter(first[0].Index)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, EventEntryRemoved, rest[0].Event.Type)

	none, err := journal.EventsAfter(journal.CurrentIndex())
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestJournalRequiresPair(t *testing.T) {
	journal, err := NewJournal(t.TempDir())
	require.NoError(t, err)
	defer journal.Close()

	require.Error(t, journal.Append(Event{Type: EventBuyConfirmed}))
}
