package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/borsa-crawler/internal/isin"
	"github.com/JakeFAU/borsa-crawler/internal/share"
	"github.com/JakeFAU/borsa-crawler/internal/storage"
)

// ShareStore is an in-memory storage.ShareRepository with the same merge semantics as Postgres.
type ShareStore struct {
	mu     sync.RWMutex
	isins  map[string]isin.ShareIsin
	shares map[string]share.Share
	now    func() time.Time
}

var _ storage.ShareRepository = (*ShareStore)(nil)

// NewShareStore returns an empty store. now defaults to time.Now.
func NewShareStore(now func() time.Time) *ShareStore {
	if now == nil {
		now = time.Now
	}
	return &ShareStore{
		isins:  make(map[string]isin.ShareIsin),
		shares: make(map[string]share.Share),
		now:    now,
	}
}

// InsertIsin registers item. Identifiers are unique.
func (s *ShareStore) InsertIsin(_ context.Context, item isin.ShareIsin) error {
	key := item.Isin.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.isins[key]; ok {
		return fmt.Errorf("insert isin %s: %w", key, storage.ErrConflict)
	}
	s.isins[key] = item
	return nil
}

// UpsertShare merges sh into the stored record. The identifier must be registered first.
func (s *ShareStore) UpsertShare(_ context.Context, sh share.Share) error {
	key := sh.Isin()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.isins[key]; !ok {
		return fmt.Errorf("upsert share %s: %w", key, storage.ErrNotFound)
	}
	stored, ok := s.shares[key]
	if !ok {
		s.shares[key] = sh
		return nil
	}
	s.shares[key] = share.Merge(stored, sh)
	return nil
}

// QueryAllIsins returns every registered identifier ordered by ISIN.
func (s *ShareStore) QueryAllIsins(_ context.Context) ([]isin.ShareIsin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedIsins(func(isin.ShareIsin) bool { return true }), nil
}

// QueryStaleIsins returns identifiers whose newest sub-record is at least olderThan old.
// Identifiers never scraped count as updated at the Unix epoch.
func (s *ShareStore) QueryStaleIsins(_ context.Context, olderThan time.Duration) ([]isin.ShareIsin, error) {
	cutoff := s.now().Add(-olderThan)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedIsins(func(item isin.ShareIsin) bool {
		last := time.Unix(0, 0).UTC()
		if sh, ok := s.shares[item.Isin.String()]; ok {
			if ts := sh.LastUpdate(); ts.After(last) {
				last = ts
			}
		}
		return !last.After(cutoff)
	}), nil
}

// QueryShares returns the records matching q. Identifiers without a scraped record are
// returned with absent fields.
func (s *ShareStore) QueryShares(_ context.Context, q storage.ShareQuery) ([]share.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.sortedIsins(func(item isin.ShareIsin) bool { return matches(item, q) })
	out := make([]share.Share, 0, len(ids))
	for _, id := range ids {
		sh, ok := s.shares[id.Isin.String()]
		if !ok {
			sh = share.WithIsin(id)
		}
		sh.ShareID = id
		out = append(out, sh)
	}
	return out, nil
}

// Ping always succeeds.
func (s *ShareStore) Ping(context.Context) error {
	return nil
}

func (s *ShareStore) sortedIsins(keep func(isin.ShareIsin) bool) []isin.ShareIsin {
	out := make([]isin.ShareIsin, 0, len(s.isins))
	for _, item := range s.isins {
		if keep(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Isin.String() < out[j].Isin.String() })
	return out
}

func matches(item isin.ShareIsin, q storage.ShareQuery) bool {
	if q.Isin != "" {
		return item.Isin.String() == q.Isin
	}
	if q.Lang != "" && !strings.HasPrefix(strings.ToUpper(item.Isin.String()), strings.ToUpper(q.Lang)) {
		return false
	}
	if q.Name != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(q.Name)) {
		return false
	}
	return true
}
