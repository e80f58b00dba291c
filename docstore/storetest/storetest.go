// Package storetest wraps a docstore.Store with failure injection and write
// accounting for tests.
package storetest

import (
	"context"
	"sync"
	"testing"

	"goflare.io/loyalty/docstore"
)

type failure struct {
	collection string
	field      string
	value      any
	err        error
}

type Store struct {
	docstore.Store

	mu       sync.Mutex
	queries  []failure
	gets     []failure
	writes   int
	afterQry func(collection string, q docstore.Query)
}

func Wrap(inner docstore.Store) *Store {
	return &Store{Store: inner}
}

// FailQuery makes every query against collection return err.
func (s *Store) FailQuery(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, failure{collection: collection, err: err})
}

// FailQueryWhere makes queries against collection that filter field by value
// return err.
func (s *Store) FailQueryWhere(collection, field string, value any, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, failure{collection: collection, field: field, value: value, err: err})
}

func (s *Store) FailGet(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets = append(s.gets, failure{collection: collection, err: err})
}

// AfterQuery registers a hook run after every successful query.
func (s *Store) AfterQuery(fn func(collection string, q docstore.Query)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterQry = fn
}

// Writes counts SetMerge, UpdateFields and Batch calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Store) Query(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	s.mu.Lock()
	for _, f := range s.queries {
		if f.collection != collection {
			continue
		}
		if f.field == "" {
			s.mu.Unlock()
			return nil, f.err
		}
		for _, filter := range q.Filters {
			if filter.Field == f.field && filter.Value == f.value {
				s.mu.Unlock()
				return nil, f.err
			}
		}
	}
	hook := s.afterQry
	s.mu.Unlock()

	docs, err := s.Store.Query(ctx, collection, q)
	if err == nil && hook != nil {
		hook(collection, q)
	}
	return docs, err
}

func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	s.mu.Lock()
	for _, f := range s.gets {
		if f.collection == collection {
			s.mu.Unlock()
			return nil, f.err
		}
	}
	s.mu.Unlock()
	return s.Store.Get(ctx, collection, id)
}

func (s *Store) SetMerge(ctx context.Context, collection, id string, fields map[string]any) error {
	s.countWrite()
	return s.Store.SetMerge(ctx, collection, id, fields)
}

func (s *Store) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	s.countWrite()
	return s.Store.UpdateFields(ctx, collection, id, fields)
}

func (s *Store) Batch(ctx context.Context, writes []docstore.Write) error {
	s.countWrite()
	return s.Store.Batch(ctx, writes)
}

func (s *Store) countWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
}

// Seed stores v under collection/id. It bypasses write accounting.
func Seed(t testing.TB, store docstore.Store, collection, id string, v any) {
	t.Helper()

	fields, err := docstore.ToFields(v)
	if err != nil {
		t.Fatalf("seed %s/%s: %v", collection, id, err)
	}
	if wrapped, ok := store.(*Store); ok {
		store = wrapped.Store
	}
	if err = store.SetMerge(context.Background(), collection, id, fields); err != nil {
		t.Fatalf("seed %s/%s: %v", collection, id, err)
	}
}
