package history

import (
	"errors"
	"sync"
	"time"

	"purescan-service/models"
)

// ErrNotFound is returned when no history item exists for the given id.
var ErrNotFound = errors.New("history item not found")

// placeholder shown in the index when a scan produced no product name.
const unnamedProduct = "Unnamed Product"

// Store owns the ordered scan history for the session. History is
// deliberately session-scoped: it lives in process memory and is lost on
// restart. Only the user profile is persisted durably (see the database
// package). Items are ordered newest-first and never deleted.
type Store struct {
	mu    sync.RWMutex
	items map[string][]models.HistoryItem
}

func NewStore() *Store {
	return &Store{items: map[string][]models.HistoryItem{}}
}

// Append derives a HistoryItem from the completed result and prepends it to
// the user's history. The result's identity must already be assigned by
// the caller; Append assigns none.
func (s *Store) Append(userID string, result models.ScanResult) models.HistoryItem {
	name := result.ProductName
	if name == "" {
		name = unnamedProduct
	}
	item := models.HistoryItem{
		ID:          result.ID,
		Date:        time.Now().UTC(),
		ProductName: name,
		Score:       result.Score,
		Status:      result.Status,
		RawResult:   result,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[userID] = append([]models.HistoryItem{item}, s.items[userID]...)
	return item
}

// Get returns the stored item with the given id, so a past result can be
// reopened without re-invoking analysis.
func (s *Store) Get(userID, id string) (models.HistoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items[userID] {
		if item.ID == id {
			return item, nil
		}
	}
	return models.HistoryItem{}, ErrNotFound
}

// List returns a copy of the user's history, newest first.
func (s *Store) List(userID string) []models.HistoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.HistoryItem, len(s.items[userID]))
	copy(out, s.items[userID])
	return out
}
