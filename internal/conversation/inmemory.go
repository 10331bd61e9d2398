package conversation

import (
	"context"
	"sync"
)

// InMemoryStore is a simple in-process store for local/dev use.
type InMemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*Conversation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{convs: make(map[string]*Conversation)}
}

func (s *InMemoryStore) FindByOwner(_ context.Context, ownerID string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[ownerID]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemoryStore) Insert(_ context.Context, conv Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[conv.OwnerID]; ok {
		return ErrConversationExists
	}
	c := clone(&conv)
	s.convs[conv.OwnerID] = &c
	return nil
}

func (s *InMemoryStore) AppendTurn(_ context.Context, ownerID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[ownerID]
	if !ok {
		return ErrNotFound
	}
	c.Turns = append(c.Turns, turn)
	c.UpdatedAt = turn.Timestamp
	return nil
}

func (s *InMemoryStore) DeleteByOwner(_ context.Context, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[ownerID]; !ok {
		return false, nil
	}
	delete(s.convs, ownerID)
	return true, nil
}

func (s *InMemoryStore) Close() error { return nil }

func clone(c *Conversation) Conversation {
	out := *c
	out.Turns = make([]Turn, len(c.Turns))
	copy(out.Turns, c.Turns)
	return out
}
