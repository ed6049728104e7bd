package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation. Nearest-neighbor
// ranking uses the pgvector <=> (cosine distance) operator.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed topic store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateTopic(ctx context.Context, t Topic) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if t.ID == "" {
		return fmt.Errorf("topic id is required")
	}
	if t.Level < LevelExamination || t.Level > LevelSubTopic {
		return fmt.Errorf("topic level out of range: %d", t.Level)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO topics (id, name, slug, level, primary_parent_id, ancestry_path, topic_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID,
		t.Name,
		t.Slug,
		t.Level,
		nullIfEmpty(t.PrimaryParentID),
		t.AncestryPath,
		string(t.TopicType),
	)
	if err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTopic(ctx context.Context, id string) (*Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	t, err := s.scanTopic(s.pool.QueryRow(ctx,
		`SELECT id, name, slug, level, primary_parent_id, ancestry_path, topic_type
		 FROM topics
		 WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListChildren(ctx context.Context, parentID string) ([]Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug, level, primary_parent_id, ancestry_path, topic_type
		 FROM topics
		 WHERE primary_parent_id = $1
		 ORDER BY name ASC`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	return collectTopics(rows)
}

func (s *PostgresStore) Search(ctx context.Context, q SearchQuery) ([]Topic, error) {
	needle := strings.TrimSpace(q.Query)
	if utf8.RuneCountInString(needle) < 2 {
		return []Topic{}, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	// Subject scoping matches whole ancestry segments so a subject id that
	// happens to be a substring of another id cannot leak across subjects.
	// The needle is escaped so % and _ match literally, as in MemoryStore.
	query := `SELECT id, name, slug, level, primary_parent_id, ancestry_path, topic_type
		 FROM topics
		 WHERE topic_type = 'canonical'
		   AND name ILIKE '%' || $1 || '%'
		   AND $2 = ANY(string_to_array(ancestry_path, '>'))`
	args := []any{escapeLike(needle), q.SubjectID}

	if q.AnchorID != "" {
		query += ` AND (id = $3 OR primary_parent_id = $3)`
		args = append(args, q.AnchorID)
	}
	query += ` ORDER BY level ASC, name ASC LIMIT ` + strconv.Itoa(limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search topics: %w", err)
	}
	defer rows.Close()

	return collectTopics(rows)
}

func (s *PostgresStore) UpsertEmbedding(ctx context.Context, id string, vec []float32) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		`UPDATE topics SET embedding = $2::vector WHERE id = $1`,
		id,
		VectorLiteral(vec),
	)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *PostgresStore) FindNearest(ctx context.Context, vec []float32) (*Match, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	m := &Match{}
	var distance float64
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, level, ancestry_path, embedding <=> $1::vector AS distance
		 FROM topics
		 WHERE topic_type = 'canonical'
		   AND embedding IS NOT NULL
		 ORDER BY distance ASC
		 LIMIT 1`,
		VectorLiteral(vec),
	).Scan(&m.ID, &m.Name, &m.Slug, &m.Level, &m.AncestryPath, &distance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find nearest: %w", err)
	}

	m.Similarity = 1 - distance
	return m, nil
}

func (s *PostgresStore) CountCanonical(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM topics WHERE topic_type = 'canonical'`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count canonical: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListUnembedded(ctx context.Context) ([]Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug, level, primary_parent_id, ancestry_path, topic_type
		 FROM topics
		 WHERE topic_type = 'canonical'
		   AND embedding IS NULL
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list unembedded: %w", err)
	}
	defer rows.Close()

	return collectTopics(rows)
}

func (s *PostgresStore) scanTopic(row pgx.Row) (*Topic, error) {
	t := &Topic{}
	var parent *string
	var topicType string
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Level, &parent, &t.AncestryPath, &topicType); err != nil {
		return nil, err
	}
	if parent != nil {
		t.PrimaryParentID = *parent
	}
	t.TopicType = TopicType(topicType)
	return t, nil
}

func collectTopics(rows pgx.Rows) ([]Topic, error) {
	out := []Topic{}
	for rows.Next() {
		t := Topic{}
		var parent *string
		var topicType string
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Level, &parent, &t.AncestryPath, &topicType); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		if parent != nil {
			t.PrimaryParentID = *parent
		}
		t.TopicType = TopicType(topicType)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return out, nil
}

// escapeLike neutralizes LIKE/ILIKE metacharacters so user queries match as
// literal substrings. Postgres treats backslash as the default escape.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// VectorLiteral encodes a vector in pgvector's text format, e.g. "[1,2,3]".
func VectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
