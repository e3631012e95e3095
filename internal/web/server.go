// Package web exposes a read-only JSON API over the managed position books.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mkovtun/costbook/internal/domain"
	"github.com/mkovtun/costbook/internal/storage/fills"
)

type bookReader interface {
	Snapshots() map[string]domain.BookSnapshot
	Snapshot(symbol string) (domain.BookSnapshot, bool)
}

type activityReader interface {
	EventsAfter(index uint64) ([]fills.Record, error)
}

// Server serves position snapshots and the mutation activity feed.
type Server struct {
	Addr     string
	Books    bookReader
	Activity activityReader
	L        *zap.Logger
}

// NewServer creates a web server instance.
func NewServer(addr string, books bookReader, activity activityReader, l *zap.Logger) *Server {
	return &Server{Addr: addr, Books: books, Activity: activity, L: l}
}

// pairView is one pair's API payload: the persisted snapshot plus the three
// queries downstream layers consume.
type pairView struct {
	Pair          string      `json:"pair"`
	OpenPositions int         `json:"open_positions"`
	Book          bookPayload `json:"book"`
}

type bookPayload struct {
	domain.BookSnapshot
	// ExitReferencePrice duplicates max_entry_price under its query name for
	// API consumers.
	ExitReferencePrice float64 `json:"exit_reference_price"`
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("GET /api/positions/{base}/{quote}", s.handlePair)
	mux.HandleFunc("GET /api/activity", s.handleActivity)

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	snaps := s.Books.Snapshots()

	symbols := make([]string, 0, len(snaps))
	for symbol := range snaps {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	views := make([]pairView, 0, len(symbols))
	for _, symbol := range symbols {
		views = append(views, newPairView(symbol, snaps[symbol]))
	}

	s.writeJSON(w, views)
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("base") + "/" + r.PathValue("quote")

	snap, ok := s.Books.Snapshot(symbol)
	if !ok {
		http.Error(w, "unknown pair", http.StatusNotFound)
		return
	}

	s.writeJSON(w, newPairView(symbol, snap))
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if s.Activity == nil {
		http.Error(w, "activity journal not available", http.StatusServiceUnavailable)
		return
	}

	after := uint64(0)
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid after index", http.StatusBadRequest)
			return
		}
		after = parsed
	}

	records, err := s.Activity.EventsAfter(after)
	if err != nil {
		s.L.Error("failed to read activity journal", zap.Error(err))
		http.Error(w, "failed to read activity", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []fills.Record{}
	}

	s.writeJSON(w, records)
}

func newPairView(symbol string, snap domain.BookSnapshot) pairView {
	openPositions := 0
	if len(snap.Positions) > 0 {
		openPositions = 1
	}

	return pairView{
		Pair:          symbol,
		OpenPositions: openPositions,
		Book: bookPayload{
			BookSnapshot:       snap,
			ExitReferencePrice: snap.MaxEntryPrice,
		},
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.L.Error("failed to encode response", zap.Error(err))
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>costbook</title>
  <style>
    body { font-family: monospace; margin: 2rem; }
    table { border-collapse: collapse; margin-top: 1rem; }
    th, td { border: 1px solid #333; padding: .4rem .8rem; text-align: right; }
    th:first-child, td:first-child { text-align: left; }
  </style>
</head>
<body>
  <h1>costbook</h1>
  <table id="books">
    <tr><th>pair</th><th>entries</th><th>total cost</th><th>avg price</th><th>exit ref price</th></tr>
  </table>
  <script>
    fetch('/api/positions').then(r => r.json()).then(views => {
      const table = document.getElementById('books');
      for (const v of views) {
        const row = table.insertRow();
        row.insertCell().textContent = v.pair;
        row.insertCell().textContent = v.book.positions.length;
        row.insertCell().textContent = v.book.total_position_size_usdt.toFixed(2);
        row.insertCell().textContent = v.book.average_entry_price.toFixed(2);
        row.insertCell().textContent = v.book.exit_reference_price.toFixed(2);
      }
    });
  </script>
</body>
</html>
`
