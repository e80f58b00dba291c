package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

var _ Store = (*Memory)(nil)

type memoryCollection struct {
	items   map[string]map[string]any
	updated map[string]time.Time
	order   []string // insertion order; ties in query results follow it
}

// Memory is a thread-safe in-process Store. Values are round-tripped through
// JSON on write so reads observe the same types the postgres store returns.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	now         func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memoryCollection),
		now:         time.Now,
	}
}

func (m *Memory) collection(name string) *memoryCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memoryCollection{
			items:   make(map[string]map[string]any),
			updated: make(map[string]time.Time),
		}
		m.collections[name] = c
	}
	return c
}

func (m *Memory) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}

	docs := make([]Document, 0)
	for _, id := range c.order {
		data := c.items[id]
		matched := true
		for _, f := range q.Filters {
			if !matches(data, f) {
				if malformedTime(data[f.Field], f.Value) {
					return nil, fmt.Errorf("failed to query %s: %w: %s on %s", collection, ErrMalformedValue, f.Field, id)
				}
				matched = false
				break
			}
		}
		if matched {
			docs = append(docs, Document{ID: id, Data: copyFields(data), UpdatedAt: c.updated[id]})
		}
	}

	if q.OrderByTime {
		for _, doc := range docs {
			if malformedTime(doc.Data[q.OrderBy], time.Time{}) {
				return nil, fmt.Errorf("failed to query %s: %w: %s on %s", collection, ErrMalformedValue, q.OrderBy, doc.ID)
			}
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			a, b := docs[i].Data[q.OrderBy], docs[j].Data[q.OrderBy]
			if q.OrderByTime {
				a, b = storedTime(a), storedTime(b)
			}
			cmp, ok := compareStored(a, b)
			if !ok {
				return false
			}
			if q.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := c.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Data: copyFields(data), UpdatedAt: c.updated[id]}, nil
}

func (m *Memory) Exists(_ context.Context, collection, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return false, nil
	}
	_, ok = c.items[id]
	return ok, nil
}

func (m *Memory) SetMerge(_ context.Context, collection, id string, fields map[string]any) error {
	normalized, err := roundTrip(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	data, ok := c.items[id]
	if !ok {
		data = make(map[string]any, len(normalized))
		c.items[id] = data
		c.order = append(c.order, id)
	}
	mergeFields(data, normalized)
	c.updated[id] = m.now()
	return nil
}

func (m *Memory) UpdateFields(_ context.Context, collection, id string, fields map[string]any) error {
	normalized, err := roundTrip(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return ErrNotFound
	}
	data, ok := c.items[id]
	if !ok {
		return ErrNotFound
	}
	mergeFields(data, normalized)
	c.updated[id] = m.now()
	return nil
}

func (m *Memory) Batch(_ context.Context, writes []Write) error {
	normalized := make([]map[string]any, len(writes))
	for i, w := range writes {
		fields, err := roundTrip(w.Fields)
		if err != nil {
			return err
		}
		normalized[i] = fields
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range writes {
		c, ok := m.collections[w.Collection]
		if !ok {
			return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, ErrNotFound)
		}
		if _, ok = c.items[w.ID]; !ok {
			return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, ErrNotFound)
		}
	}

	now := m.now()
	for i, w := range writes {
		c := m.collections[w.Collection]
		mergeFields(c.items[w.ID], normalized[i])
		c.updated[w.ID] = now
	}
	return nil
}

// Delete removes a document. The reconciliation code never deletes; this
// exists to model records removed by other writers.
func (m *Memory) Delete(collection, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return
	}
	if _, ok = c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	delete(c.updated, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func mergeFields(dst, src map[string]any) {
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

func copyFields(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func roundTrip(fields map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var out map[string]any
	if err = json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return out, nil
}

func compareStored(a, b any) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		}
		return 1, true
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb), true
		}
	}
	return compareValues(a, b)
}
