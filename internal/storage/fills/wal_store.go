// Package fills keeps a WAL-backed audit journal of every applied position
// book mutation.
package fills

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/mkovtun/costbook/internal/domain"
)

const (
	DefaultDir   = "./wal/fills"
	segmentLimit = 1000
	maxSegments  = 100

	eventKeyPrefix = "fill_event_"
)

// EventType classifies a journaled mutation.
type EventType string

const (
	EventBuyConfirmed EventType = "buy_confirmed"
	EventEntryRemoved EventType = "entry_removed"
	EventFullExit     EventType = "full_exit"
	EventReconciled   EventType = "reconciled"
)

// Event is one applied mutation of a pair's position book.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	Pair string    `json:"pair"`
	// Entry is set for buy_confirmed and entry_removed events.
	Entry *domain.Entry `json:"entry,omitempty"`
	// Entries is the open entry count after the mutation.
	Entries int       `json:"entries"`
	Time    time.Time `json:"time"`
}

// Record pairs an event with its WAL index for incremental reads.
type Record struct {
	Index uint64
	Event Event
}

// Journal persists mutation events in a WAL.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewJournal initializes a WAL-backed mutation journal.
func NewJournal(dir string) (*Journal, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "fill_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init fills WAL")
	}

	return &Journal{wal: wal}, nil
}

// Append writes the event to the WAL, assigning an id and timestamp when absent.
func (j *Journal) Append(event Event) error {
	if j == nil || j.wal == nil {
		return errors.New("fills journal is not initialized")
	}
	if event.Pair == "" {
		return fmt.Errorf("fill event pair is required")
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal fill event")
	}

	key := fmt.Sprintf("%s%s", eventKeyPrefix, event.ID)

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, key, payload)
}

// EventsAfter returns all events written after the provided WAL index.
func (j *Journal) EventsAfter(index uint64) ([]Record, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("fills journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := j.wal.Get(idx)
		if err != nil {
			continue
		}

		if !strings.HasPrefix(key, eventKeyPrefix) {
			continue
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode fill event")
		}

		records = append(records, Record{Index: idx, Event: event})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
