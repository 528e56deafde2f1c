// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/olegiv/shopsync-go/internal/translate"
)

// Session scopes the translation memo to one page lifetime. It is created
// when the operator opens a product and discarded on navigation; nothing in
// it is persisted.
//
// The generation counter guards against stale responses: a caller records
// the generation before a slow call and drops the result if the session was
// cleared in the meantime.
type Session struct {
	provider translate.Provider

	mu         sync.Mutex
	memo       map[string]string
	generation uint64
}

// NewSession creates a session around a translation provider.
func NewSession(provider translate.Provider) *Session {
	return &Session{
		provider: provider,
		memo:     make(map[string]string),
	}
}

// Generation returns the current session generation.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Valid reports whether a result obtained at generation gen may still be
// applied.
func (s *Session) Valid(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

// Clear drops the memo and advances the generation, invalidating any
// in-flight results. Called on navigation / source-product switch.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memo = make(map[string]string)
	s.generation++
}

// Translate translates items, deduplicating identical requests and serving
// repeats from the session memo. Memo entries are only inserted here, never
// replaced; Retranslate is the sole path that overwrites them.
func (s *Session) Translate(ctx context.Context, items []translate.Item) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if s.provider == nil {
		return nil, fmt.Errorf("no translation provider configured")
	}

	unique, indexMap := DeduplicateItems(items)

	// Partition unique items into memo hits and outstanding requests.
	results := make([]string, len(unique))
	var pending []translate.Item
	var pendingIdx []int

	s.mu.Lock()
	for i, item := range unique {
		if cached, ok := s.memo[item.Key()]; ok {
			results[i] = cached
			continue
		}
		pending = append(pending, item)
		pendingIdx = append(pendingIdx, i)
	}
	gen := s.generation
	s.mu.Unlock()

	if len(pending) > 0 {
		translated, err := s.provider.TranslateBatch(ctx, pending)
		if err != nil {
			return nil, err
		}
		if len(translated) != len(pending) {
			return nil, fmt.Errorf("provider returned %d results for %d items", len(translated), len(pending))
		}

		s.mu.Lock()
		if s.generation == gen {
			for i, text := range translated {
				key := pending[i].Key()
				if _, exists := s.memo[key]; !exists {
					s.memo[key] = text
				}
			}
		}
		s.mu.Unlock()

		for i, text := range translated {
			results[pendingIdx[i]] = text
		}
	}

	return ReconstructResults(results, indexMap), nil
}

// Retranslate forces fresh translations, bypassing the memo, and then
// overwrites the memo entries with the new results.
func (s *Session) Retranslate(ctx context.Context, items []translate.Item) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if s.provider == nil {
		return nil, fmt.Errorf("no translation provider configured")
	}

	unique, indexMap := DeduplicateItems(items)

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	translated, err := s.provider.TranslateBatch(ctx, unique)
	if err != nil {
		return nil, err
	}
	if len(translated) != len(unique) {
		return nil, fmt.Errorf("provider returned %d results for %d items", len(translated), len(unique))
	}

	s.mu.Lock()
	if s.generation == gen {
		for i, text := range translated {
			s.memo[unique[i].Key()] = text
		}
	}
	s.mu.Unlock()

	return ReconstructResults(translated, indexMap), nil
}
