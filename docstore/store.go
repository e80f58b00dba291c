// Package docstore is a small document-store client. Documents are JSON
// objects addressed by (collection, id) and queried with field filters.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrMalformedValue reports a stored field that could not be read as the
	// type a filter or ordering asked for.
	ErrMalformedValue = errors.New("malformed stored value")
)

type Op string

const (
	OpEq  Op = "=="
	OpGte Op = ">="
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

func Gte(field string, value any) Filter {
	return Filter{Field: field, Op: OpGte, Value: value}
}

type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	// OrderByTime compares OrderBy as a timestamp rather than as text.
	OrderByTime bool
	// Limit of zero means unlimited.
	Limit int
}

func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

// OrderTime orders by a timestamp field.
func (q Query) OrderTime(field string, desc bool) Query {
	q = q.Order(field, desc)
	q.OrderByTime = true
	return q
}

func (q Query) Take(limit int) Query {
	q.Limit = limit
	return q
}

type Document struct {
	ID        string
	Data      map[string]any
	UpdatedAt time.Time
}

// Decode unmarshals the document into v. The document id is exposed to v as
// the "id" field.
func (d Document) Decode(v any) error {
	fields := make(map[string]any, len(d.Data)+1)
	for k, val := range d.Data {
		fields[k] = val
	}
	fields["id"] = d.ID

	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", d.ID, err)
	}
	if err = json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return nil
}

// Write is a targeted field update applied by Batch. The target must exist.
type Write struct {
	Collection string
	ID         string
	Fields     map[string]any
}

type Store interface {
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	Exists(ctx context.Context, collection, id string) (bool, error)
	// SetMerge creates the document or merges fields into an existing one.
	SetMerge(ctx context.Context, collection, id string, fields map[string]any) error
	// UpdateFields merges fields into an existing document and returns
	// ErrNotFound when there is none. A nil value removes the field.
	UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error
	// Batch applies every write or none of them.
	Batch(ctx context.Context, writes []Write) error
}

// ToFields converts a JSON-taggable value into a field map, dropping "id".
func ToFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var fields map[string]any
	if err = json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	delete(fields, "id")
	return fields, nil
}
