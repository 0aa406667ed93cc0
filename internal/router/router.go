package router

import (
	"hash/fnv"
	"sort"
	"sync"
)

// Selector maps a document ID to one of several relay URLs using rendezvous
// (highest random weight) hashing: the same document always prefers the
// same relay, and removing a relay only moves the documents it was winning.
type Selector struct {
	mu     sync.RWMutex
	relays []string
}

func NewSelector(relays []string) *Selector {
	s := &Selector{}
	s.SetRelays(relays)
	return s
}

// SetRelays replaces the candidate relays.
func (s *Selector) SetRelays(relays []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(relays) == 0 {
		s.relays = nil
		return
	}
	s.relays = append([]string(nil), relays...)
}

func score(docID, relay string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(docID))
	_, _ = h.Write([]byte(relay))
	return h.Sum32()
}

// Relay returns the preferred relay for docID, or "" when there are none.
func (s *Selector) Relay(docID string) string {
	if ranked := s.Rank(docID); len(ranked) > 0 {
		return ranked[0]
	}
	return ""
}

// Rank returns every relay in order of preference for docID; callers fail
// over down the list.
func (s *Selector) Rank(docID string) []string {
	s.mu.RLock()
	out := append([]string(nil), s.relays...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		return score(docID, out[i]) > score(docID, out[j])
	})
	return out
}
