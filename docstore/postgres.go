package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"goflare.io/loyalty/driver"
)

var _ Store = (*Postgres)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_idx ON documents USING GIN (data jsonb_path_ops);
`

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Postgres stores every collection in a single jsonb table.
type Postgres struct {
	conn               driver.PostgresPool
	transactionManager *driver.TransactionManager
	logger             *zap.Logger
}

func NewPostgres(conn driver.PostgresPool, tm *driver.TransactionManager, logger *zap.Logger) *Postgres {
	return &Postgres{
		conn:               conn,
		transactionManager: tm,
		logger:             logger,
	}
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate documents table: %w", err)
	}
	p.logger.Info("documents table ready")
	return nil
}

func (p *Postgres) Query(ctx context.Context, collection string, q Query) ([]Document, error) {

	query, args, err := buildSelect(collection, q)
	if err != nil {
		return nil, err
	}

	rows, err := p.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, queryError(collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err = rows.Err(); err != nil {
		return nil, queryError(collection, err)
	}

	return docs, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (*Document, error) {
	const query = `SELECT id, data, updated_at FROM documents WHERE collection = $1 AND id = $2`

	doc, err := scanDocument(p.conn.QueryRow(ctx, query, collection, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return &doc, nil
}

func (p *Postgres) Exists(ctx context.Context, collection, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`

	var exists bool
	if err := p.conn.QueryRow(ctx, query, collection, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check %s/%s: %w", collection, id, err)
	}
	return exists, nil
}

func (p *Postgres) SetMerge(ctx context.Context, collection, id string, fields map[string]any) error {
	const query = `
    INSERT INTO documents (collection, id, data, updated_at)
    VALUES (@collection, @id, jsonb_strip_nulls(@data::jsonb), NOW())
    ON CONFLICT (collection, id) DO UPDATE SET
        data = jsonb_strip_nulls(documents.data || @data::jsonb),
        updated_at = NOW()
    `

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	args := pgx.NamedArgs{
		"collection": collection,
		"id":         id,
		"data":       string(data),
	}
	if _, err = p.conn.Exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *Postgres) UpdateFields(ctx context.Context, collection, id string, fields map[string]any) error {
	return p.updateFields(ctx, p.conn, collection, id, fields)
}

func (p *Postgres) Batch(ctx context.Context, writes []Write) error {
	return p.transactionManager.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		const lock = `SELECT 1 FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`

		for _, w := range writes {
			var one int
			err := tx.QueryRow(ctx, lock, w.Collection, w.ID).Scan(&one)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("failed to lock %s/%s: %w", w.Collection, w.ID, err)
			}
		}

		for _, w := range writes {
			if err := p.updateFields(ctx, tx, w.Collection, w.ID, w.Fields); err != nil {
				return err
			}
		}
		return nil
	})
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (p *Postgres) updateFields(ctx context.Context, conn execer, collection, id string, fields map[string]any) error {
	const query = `
    UPDATE documents
    SET data = jsonb_strip_nulls(data || @data::jsonb),
        updated_at = NOW()
    WHERE collection = @collection AND id = @id
    `

	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}

	tag, err := conn.Exec(ctx, query, pgx.NamedArgs{
		"collection": collection,
		"id":         id,
		"data":       string(data),
	})
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		doc  Document
		data []byte
	)
	if err := row.Scan(&doc.ID, &data, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(data, &doc.Data); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func buildSelect(collection string, q Query) (string, []any, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, data, updated_at FROM documents WHERE collection = $1`)
	args := []any{collection}

	for _, f := range q.Filters {
		if !fieldName.MatchString(f.Field) {
			return "", nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		switch f.Op {
		case OpEq:
			args = append(args, textValue(f.Value))
			fmt.Fprintf(&b, ` AND data->>'%s' = $%d`, f.Field, len(args))
		case OpGte:
			args = append(args, filterArg(f.Value))
			fmt.Fprintf(&b, ` AND %s >= $%d`, castField(f.Field, f.Value), len(args))
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}

	if q.OrderBy != "" {
		if !fieldName.MatchString(q.OrderBy) {
			return "", nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		direction := "ASC"
		if q.Desc {
			direction = "DESC"
		}
		key := fmt.Sprintf(`data->>'%s'`, q.OrderBy)
		if q.OrderByTime {
			key = fmt.Sprintf(`(data->>'%s')::timestamptz`, q.OrderBy)
		}
		fmt.Fprintf(&b, ` ORDER BY %s %s, id`, key, direction)
	} else {
		b.WriteString(` ORDER BY created_at, id`)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}

	return b.String(), args, nil
}

// queryError tags postgres data exceptions (class 22, e.g. a legacy value
// that does not cast to timestamptz) with ErrMalformedValue.
func queryError(collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "22") {
		return fmt.Errorf("failed to query %s: %w: %w", collection, ErrMalformedValue, err)
	}
	return fmt.Errorf("failed to query %s: %w", collection, err)
}

func castField(field string, value any) string {
	switch value.(type) {
	case time.Time:
		return fmt.Sprintf(`(data->>'%s')::timestamptz`, field)
	case string:
		return fmt.Sprintf(`data->>'%s'`, field)
	}
	return fmt.Sprintf(`(data->>'%s')::numeric`, field)
}

func filterArg(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC()
	case string:
		return v
	}
	if _, isNum := toFloat(value); isNum {
		return value
	}
	return textValue(value)
}
