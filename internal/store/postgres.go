package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/trasporti/internal/schema"
)

// pgDateLayout is how date values are written into JSONB documents. It is
// fixed width and always UTC, so text comparison orders dates correctly.
const pgDateLayout = "2006-01-02T15:04:05.000Z"

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint error.
const uniqueViolation = "23505"

// Postgres is the PostgreSQL backend. Each record is one row holding its
// fields as a JSONB document; the schema registry and users are plain
// tables. Tables are created on open.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
}

// OpenPostgres builds the pool, pings and runs the DDL.
func OpenPostgres(ctx context.Context, opts Options) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	poolConfig.ConnConfig.ConnectTimeout = opts.connectTimeout()

	ctx, cancel := context.WithTimeout(ctx, opts.connectTimeout())
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{pool: pool, table: opts.collection()}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	table := quoteIdentifier(p.table)
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			doc jsonb NOT NULL DEFAULT '{}'::jsonb,
			created_at timestamptz NOT NULL,
			updated_at timestamptz NOT NULL
		)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (created_at)`,
			quoteIdentifier(p.table+"_created_at_idx"), table),
		`CREATE TABLE IF NOT EXISTS schema_registry (
			name text NOT NULL,
			version integer NOT NULL,
			source text NOT NULL DEFAULT '',
			generated_at timestamptz NOT NULL,
			columns jsonb NOT NULL,
			PRIMARY KEY (name, version)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id uuid PRIMARY KEY,
			username text NOT NULL UNIQUE,
			password_hash text NOT NULL,
			role text NOT NULL,
			created_at timestamptz NOT NULL
		)`,
	}

	batch := &pgx.Batch{}
	for _, stmt := range stmts {
		batch.Queue(stmt)
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}

func (p *Postgres) SaveSchema(ctx context.Context, d schema.Descriptor) error {
	cols, err := json.Marshal(d.Columns)
	if err != nil {
		return fmt.Errorf("encode schema columns: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO schema_registry (name, version, source, generated_at, columns) VALUES ($1, $2, $3, $4, $5)`,
		d.Name, d.Version, d.Source, d.GeneratedAt, cols)
	if err != nil {
		return fmt.Errorf("insert schema: %w", err)
	}
	return nil
}

func (p *Postgres) LatestSchema(ctx context.Context) (schema.Descriptor, error) {
	var (
		d    schema.Descriptor
		cols []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT name, version, source, generated_at, columns FROM schema_registry
		 WHERE name = $1 ORDER BY version DESC LIMIT 1`,
		schema.ModelName,
	).Scan(&d.Name, &d.Version, &d.Source, &d.GeneratedAt, &cols)
	if errors.Is(err, pgx.ErrNoRows) {
		return schema.Descriptor{}, ErrNotFound
	}
	if err != nil {
		return schema.Descriptor{}, fmt.Errorf("select latest schema: %w", err)
	}
	if err := json.Unmarshal(cols, &d.Columns); err != nil {
		return schema.Descriptor{}, fmt.Errorf("decode schema columns: %w", err)
	}
	d.GeneratedAt = d.GeneratedAt.UTC()
	return d, nil
}

func (p *Postgres) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", quoteIdentifier(p.table)))
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertMany loads records with the COPY protocol, one COPY per batch.
func (p *Postgres) InsertMany(ctx context.Context, records []map[string]any, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = len(records)
	}

	columns := []string{"id", "doc", "created_at", "updated_at"}
	inserted := 0
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))

		now := time.Now().UTC()
		rows := make([][]any, 0, end-start)
		for _, rec := range records[start:end] {
			doc, err := encodePgDoc(rec)
			if err != nil {
				return inserted, err
			}
			rows = append(rows, []any{pgUUID(uuid.New()), doc, now, now})
		}

		n, err := p.pool.CopyFrom(ctx, pgx.Identifier{p.table}, columns, pgx.CopyFromRows(rows))
		inserted += int(n)
		if err != nil {
			return inserted, fmt.Errorf("copy records %d-%d: %w", start, end, err)
		}
	}
	return inserted, nil
}

func (p *Postgres) Count(ctx context.Context, q Query) (int64, error) {
	wb := newWhereBuilder()
	wb.addQuery(q)
	where, args := wb.build()

	var n int64
	err := p.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdentifier(p.table), where),
		args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (p *Postgres) Find(ctx context.Context, q Query) ([]Document, error) {
	wb := newWhereBuilder()
	wb.addQuery(q)
	where, _ := wb.build()

	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}
	var orderBy string
	switch q.SortField {
	case "", FieldCreatedAt:
		orderBy = "created_at " + dir
	case FieldUpdatedAt:
		orderBy = "updated_at " + dir
	case FieldID:
		orderBy = "id " + dir
	default:
		orderBy = fmt.Sprintf("doc->(%s::text) %s NULLS FIRST", wb.nextArg(q.SortField), dir)
	}

	query := fmt.Sprintf("SELECT id, doc, created_at, updated_at FROM %s%s ORDER BY %s, id %s",
		quoteIdentifier(p.table), where, orderBy, dir)
	if q.Limit > 0 {
		query += " LIMIT " + wb.nextArg(q.Limit)
	}
	if q.Skip > 0 {
		query += " OFFSET " + wb.nextArg(q.Skip)
	}

	rows, err := p.pool.Query(ctx, query, wb.args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanPgDoc(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return docs, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (Document, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Document{}, ErrNotFound
	}
	row := p.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT id, doc, created_at, updated_at FROM %s WHERE id = $1", quoteIdentifier(p.table)),
		pgUUID(uid))
	return p.scanOne(row)
}

func (p *Postgres) Insert(ctx context.Context, fields map[string]any) (Document, error) {
	doc, err := encodePgDoc(fields)
	if err != nil {
		return Document{}, err
	}
	row := p.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc, created_at, updated_at) VALUES ($1, $2, now(), now())
		 RETURNING id, doc, created_at, updated_at`, quoteIdentifier(p.table)),
		pgUUID(uuid.New()), doc)
	return p.scanOne(row)
}

func (p *Postgres) Replace(ctx context.Context, id string, fields map[string]any) (Document, error) {
	return p.updateDoc(ctx, id, fields, "$2")
}

func (p *Postgres) Update(ctx context.Context, id string, fields map[string]any) (Document, error) {
	return p.updateDoc(ctx, id, fields, "doc || $2")
}

func (p *Postgres) updateDoc(ctx context.Context, id string, fields map[string]any, expr string) (Document, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Document{}, ErrNotFound
	}
	doc, err := encodePgDoc(fields)
	if err != nil {
		return Document{}, err
	}
	row := p.pool.QueryRow(ctx,
		fmt.Sprintf(`UPDATE %s SET doc = %s, updated_at = now() WHERE id = $1
		 RETURNING id, doc, created_at, updated_at`, quoteIdentifier(p.table), expr),
		pgUUID(uid), doc)
	return p.scanOne(row)
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := p.pool.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1", quoteIdentifier(p.table)), pgUUID(uid))
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) FindUser(ctx context.Context, username string) (User, error) {
	var (
		u  User
		id pgtype.UUID
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&id, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("select user: %w", err)
	}
	u.ID = uuid.UUID(id.Bytes).String()
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	uid := uuid.New()
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1, $2, $3, $4, now())
		 RETURNING created_at`,
		pgUUID(uid), u.Username, u.PasswordHash, u.Role,
	).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	u.ID = uid.String()
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (p *Postgres) scanOne(row pgx.Row) (Document, error) {
	d, err := scanPgDoc(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return d, err
}

func scanPgDoc(row pgx.Row) (Document, error) {
	var (
		id  pgtype.UUID
		raw []byte
		d   Document
	)
	if err := row.Scan(&id, &raw, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("scan record: %w", err)
	}
	fields, err := decodePgDoc(raw)
	if err != nil {
		return Document{}, err
	}
	d.ID = uuid.UUID(id.Bytes).String()
	d.Fields = fields
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// encodePgDoc renders a field map as JSONB, writing dates in pgDateLayout.
func encodePgDoc(fields map[string]any) (json.RawMessage, error) {
	out := make(map[string]any, len(fields))
	for k, v := range cloneFields(fields) {
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(pgDateLayout)
		}
		out[k] = v
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

// decodePgDoc is the inverse of encodePgDoc: strings in pgDateLayout come
// back as time.Time.
func decodePgDoc(raw []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	for k, v := range fields {
		s, ok := v.(string)
		if !ok || len(s) != len(pgDateLayout) {
			continue
		}
		if t, err := time.Parse(pgDateLayout, s); err == nil {
			fields[k] = t
		}
	}
	return fields, nil
}

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// escapeLike makes a value literal inside an ILIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// whereBuilder accumulates AND-ed conditions with numbered placeholders.
type whereBuilder struct {
	conditions []string
	args       []any
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{}
}

// nextArg registers v and returns its placeholder.
func (wb *whereBuilder) nextArg(v any) string {
	wb.args = append(wb.args, v)
	return fmt.Sprintf("$%d", len(wb.args))
}

func (wb *whereBuilder) add(cond string) {
	wb.conditions = append(wb.conditions, cond)
}

func (wb *whereBuilder) addQuery(q Query) {
	for _, clause := range q.Clauses {
		var or []string
		for _, m := range clause {
			or = append(or, fmt.Sprintf(`doc->>(%s::text) ILIKE '%%' || %s::text || '%%' ESCAPE '\'`,
				wb.nextArg(m.Field), wb.nextArg(escapeLike(m.Value))))
		}
		switch len(or) {
		case 0:
		case 1:
			wb.add(or[0])
		default:
			wb.add("(" + strings.Join(or, " OR ") + ")")
		}
	}

	if r := q.Range; r != nil && (r.From != nil || r.To != nil) {
		field := wb.nextArg(r.Field)
		// Only values written as dates take part in the range.
		wb.add(fmt.Sprintf(`doc->>(%s::text) ~ '^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$'`, field))
		if r.From != nil {
			wb.add(fmt.Sprintf("doc->>(%s::text) >= %s::text", field, wb.nextArg(r.From.UTC().Format(pgDateLayout))))
		}
		if r.To != nil {
			wb.add(fmt.Sprintf("doc->>(%s::text) <= %s::text", field, wb.nextArg(r.To.UTC().Format(pgDateLayout))))
		}
	}

	if !q.CreatedAfter.IsZero() {
		wb.add("created_at >= " + wb.nextArg(q.CreatedAfter))
	}
}

// build returns the WHERE clause (with leading space) and its arguments.
func (wb *whereBuilder) build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", wb.args
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}
