// Package positionstate persists position books as a JSON file keyed by
// trading pair, in the position_state.json schema.
package positionstate

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mkovtun/costbook/internal/domain"
)

// Store reads and writes the position state file so restarts keep open entries.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("position state path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create position state dir")
		}
	}

	return &Store{path: path}, nil
}

// legacyPair is the pre-multi-entry schema: a lone long position at the pair
// root. It is migrated at load time and never written back.
type legacyPair struct {
	Position   string  `json:"position"`
	EntryPrice float64 `json:"entry_price"`
	Cost       float64 `json:"position_size_usdt"`
	OpenedAt   int64   `json:"opened_at"`
}

// Load reads the state file and migrates any legacy-schema pairs into the
// multi-entry shape. The second return value reports whether a migration
// happened, so the caller can persist the converted state once.
//
// A pair in neither schema fails with ErrStateMigrationRequired: the engine
// refuses to guess at unknown shapes.
func (s *Store) Load() (map[string]domain.BookSnapshot, bool, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]domain.BookSnapshot{}, false, nil
		}

		return nil, false, errors.Wrap(err, "read position state")
	}

	if len(payload) == 0 {
		return map[string]domain.BookSnapshot{}, false, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, false, errors.Wrap(err, "decode position state")
	}

	state := make(map[string]domain.BookSnapshot, len(raw))
	migrated := false

	for symbol, pairRaw := range raw {
		snap, pairMigrated, err := decodePair(pairRaw)
		if err != nil {
			return nil, false, errors.Wrapf(err, "pair %s", symbol)
		}

		state[symbol] = snap
		migrated = migrated || pairMigrated
	}

	return state, migrated, nil
}

// decodePair handles the tagged union of schemas: current multi-entry shape
// vs legacy single-position shape.
func decodePair(raw json.RawMessage) (domain.BookSnapshot, bool, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return domain.BookSnapshot{}, false, errors.Wrap(err, "decode pair state")
	}

	if _, ok := probe["positions"]; ok {
		var snap domain.BookSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return domain.BookSnapshot{}, false, errors.Wrap(err, "decode pair snapshot")
		}

		return snap, false, nil
	}

	if _, ok := probe["position"]; ok {
		var legacy legacyPair
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return domain.BookSnapshot{}, false, errors.Wrap(err, "decode legacy pair state")
		}

		return migrateLegacy(legacy), true, nil
	}

	return domain.BookSnapshot{}, false, errors.Wrap(domain.ErrStateMigrationRequired, "unrecognized pair schema")
}

// migrateLegacy converts the old single-position shape into a one-entry
// snapshot. The conversion is idempotent: the output is always the current
// schema and the legacy root fields are dropped.
func migrateLegacy(legacy legacyPair) domain.BookSnapshot {
	if legacy.Position != "long" || legacy.Cost <= 0 {
		// closed or absent position
		return domain.BookSnapshot{Positions: []domain.Entry{}, NextEntryID: 1}
	}

	quantity := 0.0
	averagePrice := 0.0
	if legacy.EntryPrice > 0 {
		quantity = legacy.Cost / legacy.EntryPrice
		averagePrice = legacy.EntryPrice
	}

	entry := domain.Entry{
		ID:         1,
		EntryPrice: legacy.EntryPrice,
		Cost:       legacy.Cost,
		Quantity:   quantity,
		OpenedAt:   legacy.OpenedAt,
		IsLegacy:   true,
	}

	return domain.BookSnapshot{
		Positions:     []domain.Entry{entry},
		TotalCost:     entry.Cost,
		TotalQuantity: entry.Quantity,
		AveragePrice:  averagePrice,
		MaxEntryPrice: legacy.EntryPrice,
		NextEntryID:   2,
	}
}

// Save writes the state file atomically via temp file.
func (s *Store) Save(state map[string]domain.BookSnapshot) error {
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode position state")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write position state temp file")
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist position state")
	}

	return nil
}
