package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
)

// document is the flat key/value layout persisted by the JSON store.
type document struct {
	Completions     map[string]bool  `json:"completions"`
	StepCompletions map[string]bool  `json:"stepCompletions"`
	XP              map[string]int64 `json:"xp"`
}

func newDocument() document {
	return document{
		Completions:     make(map[string]bool),
		StepCompletions: make(map[string]bool),
		XP:              make(map[string]int64),
	}
}

// DocumentStore implements Store over an in-memory document, optionally
// persisted to a JSON file after every write.
type DocumentStore struct {
	mu     sync.RWMutex
	doc    document
	path   string
	logger *slog.Logger
}

// NewMemoryStore creates a store that keeps everything in memory.
func NewMemoryStore() *DocumentStore {
	return &DocumentStore{doc: newDocument(), logger: slog.New(slog.DiscardHandler)}
}

// NewJSONStore creates a store backed by the JSON file at path.
// A missing file starts an empty document.
func NewJSONStore(path string, logger *slog.Logger) (*DocumentStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: json store path is required", ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &DocumentStore{doc: newDocument(), path: path, logger: logger}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	// files written by older versions may lack sections
	if s.doc.Completions == nil {
		s.doc.Completions = make(map[string]bool)
	}
	if s.doc.StepCompletions == nil {
		s.doc.StepCompletions = make(map[string]bool)
	}
	if s.doc.XP == nil {
		s.doc.XP = make(map[string]int64)
	}
	return s, nil
}

// Close is a no-op; every write is already flushed.
func (s *DocumentStore) Close() error {
	return nil
}

// Ping always succeeds; the document lives in memory.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return nil
}

// Migrate writes an empty document when the file does not exist yet.
func (s *DocumentStore) Migrate(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

// flush writes the document to a temp file and renames it over the target.
// Callers hold the write lock.
func (s *DocumentStore) flush() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// GetCompletion reports whether address completed the quest
func (s *DocumentStore) GetCompletion(ctx context.Context, questID, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Completions[questKey(questID, normalizeAddress(address))], nil
}

// SetCompletion records a quest completion without crediting XP
func (s *DocumentStore) SetCompletion(ctx context.Context, questID, address string) error {
	if err := checkKey(questID, address); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Completions[questKey(questID, normalizeAddress(address))] = true
	return s.flush()
}

// GetStepCompletion reports whether address completed the step
func (s *DocumentStore) GetStepCompletion(ctx context.Context, questID string, step int, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.StepCompletions[stepKey(questID, step, normalizeAddress(address))], nil
}

// SetStepCompletion records a step completion without crediting XP
func (s *DocumentStore) SetStepCompletion(ctx context.Context, questID string, step int, address string) error {
	if err := checkStep(questID, step, address); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.StepCompletions[stepKey(questID, step, normalizeAddress(address))] = true
	return s.flush()
}

// GetUserCompletions lists the quests address completed
func (s *DocumentStore) GetUserCompletions(ctx context.Context, address string) ([]string, error) {
	suffix := "-" + normalizeAddress(address)

	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []string{}
	for key, done := range s.doc.Completions {
		if done && strings.HasSuffix(key, suffix) {
			ids = append(ids, strings.TrimSuffix(key, suffix))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetUserStepCompletions lists the completed step indices of one quest
func (s *DocumentStore) GetUserStepCompletions(ctx context.Context, questID, address string) ([]int, error) {
	all, err := s.GetAllUserStepCompletions(ctx, address)
	if err != nil {
		return nil, err
	}
	steps := all[questID]
	if steps == nil {
		steps = []int{}
	}
	return steps, nil
}

// GetAllUserStepCompletions groups every completed step of address by quest
func (s *DocumentStore) GetAllUserStepCompletions(ctx context.Context, address string) (map[string][]int, error) {
	addr := normalizeAddress(address)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]int)
	for key, done := range s.doc.StepCompletions {
		if !done {
			continue
		}
		if questID, step, ok := parseStepKey(key, addr); ok {
			out[questID] = append(out[questID], step)
		}
	}
	for _, steps := range out {
		slices.Sort(steps)
	}
	return out, nil
}

// CompleteQuest records a quest completion and credits xp once
func (s *DocumentStore) CompleteQuest(ctx context.Context, questID, address string, xp int64) (bool, error) {
	if err := checkKey(questID, address); err != nil {
		return false, err
	}
	addr := normalizeAddress(address)
	return s.completeOnce(s.doc.Completions, questKey(questID, addr), addr, xp)
}

// CompleteStep records a step completion and credits xp once
func (s *DocumentStore) CompleteStep(ctx context.Context, questID string, step int, address string, xp int64) (bool, error) {
	if err := checkStep(questID, step, address); err != nil {
		return false, err
	}
	addr := normalizeAddress(address)
	return s.completeOnce(s.doc.StepCompletions, stepKey(questID, step, addr), addr, xp)
}

func (s *DocumentStore) completeOnce(set map[string]bool, key, addr string, xp int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set[key] {
		return false, nil
	}

	set[key] = true
	s.doc.XP[addr] += xp
	if err := s.flush(); err != nil {
		delete(set, key)
		s.doc.XP[addr] -= xp
		return false, err
	}
	return true, nil
}

// AddXP credits amount to address
func (s *DocumentStore) AddXP(ctx context.Context, address string, amount int64) error {
	if address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.XP[normalizeAddress(address)] += amount
	return s.flush()
}

// GetUserXP returns the XP balance of address, zero when unknown
func (s *DocumentStore) GetUserXP(ctx context.Context, address string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.XP[normalizeAddress(address)], nil
}

// Leaderboard returns the top addresses by XP, ties broken by address
func (s *DocumentStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	completions := make(map[string]int)
	for key, done := range s.doc.Completions {
		if !done {
			continue
		}
		if i := strings.LastIndex(key, "-"); i >= 0 {
			completions[key[i+1:]]++
		}
	}

	entries := []LeaderboardEntry{}
	for addr, xp := range s.doc.XP {
		if xp > 0 {
			entries = append(entries, LeaderboardEntry{Address: addr, XP: xp, Completions: completions[addr]})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].XP != entries[j].XP {
			return entries[i].XP > entries[j].XP
		}
		return entries[i].Address < entries[j].Address
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
