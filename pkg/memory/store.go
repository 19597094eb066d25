package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/riskforge/agentcore/pkg/clock"
	"github.com/riskforge/agentcore/pkg/kvstore"
)

const (
	// ShortTermTTL is the lifetime of a short-term entry.
	ShortTermTTL = 24 * time.Hour
	// MaxShortTermPerSession bounds per-session short-term count.
	MaxShortTermPerSession = 50
)

// Store is the Memory Store: short-term and long-term persistence through
// the KVStore facade.
type Store struct {
	kv    kvstore.Store
	clock clock.Clock
}

// NewStore builds a Memory Store backed by kv.
func NewStore(kv kvstore.Store, clk clock.Clock) *Store {
	return &Store{kv: kv, clock: clk}
}

// SaveShortTerm inserts a short-term entry for (agentId, sessionId) and
// enforces the 50-per-session FIFO cap by evicting the oldest entries
// first.
func (s *Store) SaveShortTerm(ctx context.Context, agentID, sessionID string, entry map[string]any) (string, error) {
	now := s.clock.Now()
	rec := ShortTermEntry{
		MemoryID:  "MEM-" + uuid.NewString(),
		AgentID:   agentID,
		SessionID: sessionID,
		Entry:     entry,
		CreatedAt: now,
		ExpiresAt: now + ShortTermTTL.Milliseconds(),
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("memory: marshal short-term entry: %w", err)
	}
	if err := s.kv.Insert(ctx, kvstore.TableShortTermMemory, agentID, rec.MemoryID, blob); err != nil {
		return "", fmt.Errorf("memory: save short-term: %w", err)
	}

	if err := s.evictOverCapLocked(ctx, agentID, sessionID); err != nil {
		return rec.MemoryID, err
	}
	return rec.MemoryID, nil
}

func (s *Store) evictOverCapLocked(ctx context.Context, agentID, sessionID string) error {
	entries, err := s.loadShortTerm(ctx, agentID, sessionID, false)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt < entries[j].CreatedAt })
	for len(entries) > MaxShortTermPerSession {
		oldest := entries[0]
		entries = entries[1:]
		if err := s.kv.Delete(ctx, kvstore.TableShortTermMemory, agentID, oldest.MemoryID); err != nil {
			return fmt.Errorf("memory: evict short-term: %w", err)
		}
	}
	return nil
}

// GetShortTerm returns non-expired entries for (agentId, sessionId),
// newest-first.
func (s *Store) GetShortTerm(ctx context.Context, agentID, sessionID string) ([]ShortTermEntry, error) {
	entries, err := s.loadShortTerm(ctx, agentID, sessionID, true)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt > entries[j].CreatedAt })
	return entries, nil
}

func (s *Store) loadShortTerm(ctx context.Context, agentID, sessionID string, excludeExpired bool) ([]ShortTermEntry, error) {
	blobs, err := s.kv.GetAll(ctx, kvstore.TableShortTermMemory, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("memory: load short-term: %w", err)
	}
	now := s.clock.Now()

	var out []ShortTermEntry
	for _, blob := range blobs {
		var rec ShortTermEntry
		if err := json.Unmarshal(blob, &rec); err != nil {
			continue
		}
		if rec.AgentID != agentID || rec.SessionID != sessionID {
			continue
		}
		if excludeExpired && rec.ExpiresAt < now {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Cleanup deletes every short-term entry whose TTL has elapsed, across all
// agents and sessions.
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	blobs, err := s.kv.GetAll(ctx, kvstore.TableShortTermMemory, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("memory: cleanup load: %w", err)
	}
	now := s.clock.Now()

	var deleted int
	for _, blob := range blobs {
		var rec ShortTermEntry
		if err := json.Unmarshal(blob, &rec); err != nil {
			continue
		}
		if rec.ExpiresAt < now {
			if err := s.kv.Delete(ctx, kvstore.TableShortTermMemory, rec.AgentID, rec.MemoryID); err != nil {
				return deleted, fmt.Errorf("memory: cleanup delete: %w", err)
			}
			deleted++
		}
	}
	return deleted, nil
}

// SaveLongTerm inserts a permanent long-term entry.
func (s *Store) SaveLongTerm(ctx context.Context, agentID string, typ LongTermType, content map[string]any, importance float64) (string, error) {
	if importance < 0 {
		importance = 0
	}
	if importance > 1 {
		importance = 1
	}
	now := s.clock.Now()
	rec := LongTermEntry{
		MemoryID:   "LTM-" + uuid.NewString(),
		AgentID:    agentID,
		Type:       typ,
		Content:    content,
		Importance: importance,
		CreatedAt:  now,
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("memory: marshal long-term entry: %w", err)
	}
	if err := s.kv.Insert(ctx, kvstore.TableLongTermMemory, agentID, rec.MemoryID, blob); err != nil {
		return "", fmt.Errorf("memory: save long-term: %w", err)
	}
	return rec.MemoryID, nil
}

// GetByType returns all long-term entries of typ for agentID, sorted by
// importance descending.
func (s *Store) GetByType(ctx context.Context, agentID string, typ LongTermType) ([]LongTermEntry, error) {
	all, err := s.loadLongTerm(ctx, agentID)
	if err != nil {
		return nil, err
	}
	var out []LongTermEntry
	for _, e := range all {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out, nil
}

// scoredEntry pairs a long-term entry with its query score.
type scoredEntry struct {
	entry LongTermEntry
	score float64
}

// Query ranks long-term entries by
// 0.5*keywordScore + 0.3*importance + 0.2*recencyScore and returns
// the top `limit` with score > 0, updating AccessCount/LastAccessed on the
// entries returned.
func (s *Store) Query(ctx context.Context, agentID, query string, limit int) ([]LongTermEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	all, err := s.loadLongTerm(ctx, agentID)
	if err != nil {
		return nil, err
	}

	queryTokens := tokenize(query)
	now := s.clock.Now()

	var scored []scoredEntry
	for _, e := range all {
		keyword := keywordScore(queryTokens, e.Content)
		recency := recencyScore(e.LastAccessed, now)
		score := 0.5*keyword + 0.3*e.Importance + 0.2*recency
		if score > 0 {
			scored = append(scored, scoredEntry{entry: e, score: score})
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > limit {
		scored = scored[:limit]
	}

	out := make([]LongTermEntry, 0, len(scored))
	for _, se := range scored {
		e := se.entry
		e.AccessCount++
		e.LastAccessed = now
		if err := s.persistLongTerm(ctx, e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) persistLongTerm(ctx context.Context, e LongTermEntry) error {
	blob, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("memory: marshal long-term entry: %w", err)
	}
	if err := s.kv.Update(ctx, kvstore.TableLongTermMemory, e.AgentID, e.MemoryID, blob); err != nil {
		return fmt.Errorf("memory: update long-term: %w", err)
	}
	return nil
}

func (s *Store) loadLongTerm(ctx context.Context, agentID string) ([]LongTermEntry, error) {
	blobs, err := s.kv.GetAll(ctx, kvstore.TableLongTermMemory, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("memory: load long-term: %w", err)
	}
	var out []LongTermEntry
	for _, blob := range blobs {
		var rec LongTermEntry
		if err := json.Unmarshal(blob, &rec); err != nil {
			continue
		}
		if rec.AgentID == agentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func keywordScore(queryTokens []string, content map[string]any) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	blob, _ := json.Marshal(content)
	contentTokens := tokenize(string(blob))
	set := make(map[string]bool, len(contentTokens))
	for _, t := range contentTokens {
		set[t] = true
	}

	matched := 0
	for _, qt := range queryTokens {
		if set[qt] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func recencyScore(lastAccessedMs, nowMs int64) float64 {
	if lastAccessedMs == 0 {
		return 0.5
	}
	days := float64(nowMs-lastAccessedMs) / float64(24*time.Hour/time.Millisecond)
	if days < 0 {
		days = 0
	}
	return math.Pow(0.5, days/7)
}
