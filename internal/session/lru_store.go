package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUStore keeps sessions in an in-process expirable LRU. Entries expire
// after the retention TTL; capacity bounds total memory and doubles as a
// pressure valve under load. Sessions are stored as serialized JSON so a
// Get always yields an independent copy: callers mutate their copy and
// write it back in a single Put.
type LRUStore struct {
	cache *expirable.LRU[string, []byte]
}

// NewLRUStore creates a store with the given capacity and retention window.
func NewLRUStore(capacity int, ttl time.Duration) *LRUStore {
	if capacity <= 0 {
		capacity = 4096
	}
	return &LRUStore{
		cache: expirable.NewLRU[string, []byte](capacity, nil, ttl),
	}
}

// Get loads a session. Expired or unknown ids return ErrNotFound.
func (s *LRUStore) Get(_ context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	if sess.Answered == nil {
		sess.Answered = make(map[string]AnsweredQuestion)
	}
	return &sess, nil
}

// Put stores the full session state in one write.
func (s *LRUStore) Put(_ context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("cannot store session without id")
	}
	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.ID, err)
	}
	s.cache.Add(sess.ID, data)
	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *LRUStore) Delete(_ context.Context, id string) error {
	s.cache.Remove(id)
	return nil
}

// Len reports how many live sessions the store holds.
func (s *LRUStore) Len() int {
	return s.cache.Len()
}
