package prefs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// MemoryStore is an in-memory RuleStore and ConnectionStore for tests and
// database-less runs.
type MemoryStore struct {
	mu          sync.RWMutex
	rules       map[string]domain.ImportRule
	connections map[string]domain.Connection
	corrections map[string]int // key: correctionKey|category
}

// NewMemoryStore creates an empty preference store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules:       make(map[string]domain.ImportRule),
		connections: make(map[string]domain.Connection),
		corrections: make(map[string]int),
	}
}

func (s *MemoryStore) ListRules(ctx context.Context) ([]domain.ImportRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ImportRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, cloneRule(r))
	}
	domain.SortRules(out)
	return out, nil
}

func (s *MemoryStore) AddRule(ctx context.Context, rule domain.ImportRule) (domain.ImportRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	s.rules[rule.ID] = cloneRule(rule)
	return rule, nil
}

func (s *MemoryStore) UpdateRule(ctx context.Context, id string, patch RulePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	if patch.Name != nil {
		rule.Name = *patch.Name
	}
	if patch.Priority != nil {
		rule.Priority = *patch.Priority
	}
	if patch.Enabled != nil {
		rule.Enabled = *patch.Enabled
	}
	if patch.Conditions != nil {
		rule.Conditions = append([]domain.Condition(nil), (*patch.Conditions)...)
	}
	if patch.Actions != nil {
		rule.Actions = append([]domain.Action(nil), (*patch.Actions)...)
	}
	s.rules[id] = rule
	return nil
}

func (s *MemoryStore) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	delete(s.rules, id)
	return nil
}

func (s *MemoryStore) RecordRuleUse(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	rule.UseCount++
	rule.LastUsedAt = &at
	s.rules[id] = rule
	return nil
}

func (s *MemoryStore) RecordCorrection(ctx context.Context, key, category string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key + "|" + category
	s.corrections[k]++
	return s.corrections[k], nil
}

func (s *MemoryStore) ListConnections(ctx context.Context) ([]domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Connection, 0, len(s.connections))
	for _, c := range s.connections {
		out = append(out, c)
	}
	return out, nil
}

func (s *MemoryStore) GetConnection(ctx context.Context, id string) (domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[id]
	if !ok {
		return domain.Connection{}, fmt.Errorf("connection %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *MemoryStore) AddConnection(ctx context.Context, conn domain.Connection) (domain.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if conn.Status == "" {
		conn.Status = domain.ConnectionPending
	}
	s.connections[conn.ID] = conn
	return conn, nil
}

func (s *MemoryStore) UpdateConnection(ctx context.Context, conn domain.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[conn.ID]; !ok {
		return fmt.Errorf("connection %s: %w", conn.ID, ErrNotFound)
	}
	s.connections[conn.ID] = conn
	return nil
}

func (s *MemoryStore) RemoveConnection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connections[id]; !ok {
		return fmt.Errorf("connection %s: %w", id, ErrNotFound)
	}
	delete(s.connections, id)
	return nil
}

func cloneRule(r domain.ImportRule) domain.ImportRule {
	out := r
	out.Conditions = append([]domain.Condition(nil), r.Conditions...)
	out.Actions = append([]domain.Action(nil), r.Actions...)
	if r.LastUsedAt != nil {
		t := *r.LastUsedAt
		out.LastUsedAt = &t
	}
	return out
}

var (
	_ RuleStore       = (*MemoryStore)(nil)
	_ ConnectionStore = (*MemoryStore)(nil)
)
