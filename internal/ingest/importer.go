package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Topic link roles.
const (
	RolePrimary   = "PRIMARY"
	RoleSecondary = "SECONDARY"
)

// MaxSecondaryTopics caps how many secondary links one question carries.
// Anything beyond the cap is truncated, not rejected.
const MaxSecondaryTopics = 3

// Tx is the subset of pgx.Tx the importer needs. Narrowing it keeps
// mid-transaction failure injection testable without a database.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner starts a transaction. PoolBeginner adapts a pgx pool.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// PoolBeginner adapts *pgxpool.Pool to the Beginner interface.
type PoolBeginner struct {
	Pool *pgxpool.Pool
}

func (b PoolBeginner) Begin(ctx context.Context) (Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// QuestionFields are the immutable fields of the question row.
type QuestionFields struct {
	Text       string
	Directive  string
	MarksMax   int
	Paper      string
	Subject    string
	SourceType string
	SourceRef  string
}

// ImportParams is the input to one import: question fields, one required
// primary topic id, zero to three secondary topic ids (excess is truncated),
// and the question's demands.
type ImportParams struct {
	Question          QuestionFields
	PrimaryTopicID    string
	SecondaryTopicIDs []string
	Demands           []Demand
}

// Importer commits a question, its topic links and its demands as one
// all-or-nothing transaction.
type Importer struct {
	db Beginner
}

// NewImporter creates an importer over the given transaction source.
func NewImporter(db Beginner) *Importer {
	return &Importer{db: db}
}

// Import persists one question with its topic links and demands. On any
// failure the whole transaction rolls back and the error is returned: either
// every row exists afterwards or none do. There is no idempotency guard;
// calling Import twice with identical input creates two question rows.
func (im *Importer) Import(ctx context.Context, params ImportParams) (string, error) {
	if params.PrimaryTopicID == "" {
		return "", fmt.Errorf("primary topic id is required")
	}
	if params.Question.MarksMax <= 0 {
		return "", fmt.Errorf("marks max must be positive, got %d", params.Question.MarksMax)
	}

	secondaries := params.SecondaryTopicIDs
	if len(secondaries) > MaxSecondaryTopics {
		slog.Warn("truncating secondary topics",
			"provided", len(secondaries),
			"kept", MaxSecondaryTopics,
		)
		secondaries = secondaries[:MaxSecondaryTopics]
	}

	tx, err := im.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin import transaction: %w", err)
	}
	// Rollback is a no-op after a successful commit; this keeps every exit
	// path, including panics, from leaking a partial question.
	defer tx.Rollback(ctx)

	q := params.Question
	var questionID string
	err = tx.QueryRow(ctx,
		`INSERT INTO questions (text, directive, marks_max, paper, subject, source_type, source_ref, fingerprint)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id::text`,
		q.Text,
		nullIfEmpty(q.Directive),
		q.MarksMax,
		nullIfEmpty(q.Paper),
		nullIfEmpty(q.Subject),
		nullIfEmpty(q.SourceType),
		nullIfEmpty(q.SourceRef),
		Fingerprint(q.Text, q.Subject),
	).Scan(&questionID)
	if err != nil {
		return "", fmt.Errorf("insert question: %w", err)
	}

	if err := insertTopicLink(ctx, tx, questionID, params.PrimaryTopicID, RolePrimary); err != nil {
		return "", err
	}
	for _, topicID := range secondaries {
		if err := insertTopicLink(ctx, tx, questionID, topicID, RoleSecondary); err != nil {
			return "", err
		}
	}

	for i, dem := range params.Demands {
		weightage := WeightagePct(dem.MaxMarks, q.MarksMax)
		_, err := tx.Exec(ctx,
			`INSERT INTO questions_demands (question_id, topic_id, topic_slug, demand_text, expectation, max_marks, weightage_pct)
			 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`,
			questionID,
			nullIfEmpty(dem.TopicID),
			nullIfEmpty(dem.TopicSlug),
			dem.Text,
			nullIfEmpty(dem.Expectation),
			dem.MaxMarks,
			weightage,
		)
		if err != nil {
			return "", fmt.Errorf("insert demand %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit import: %w", err)
	}

	slog.Info("question imported",
		"question_id", questionID,
		"primary_topic", params.PrimaryTopicID,
		"secondary_topics", len(secondaries),
		"demands", len(params.Demands),
	)
	return questionID, nil
}

func insertTopicLink(ctx context.Context, tx Tx, questionID, topicID, role string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO questions_topics (question_id, topic_id, role)
		 VALUES ($1::uuid, $2, $3)`,
		questionID,
		topicID,
		role,
	)
	if err != nil {
		return fmt.Errorf("insert %s topic link %s: %w", role, topicID, err)
	}
	return nil
}

// WeightagePct is a demand's share of the question's total marks as a
// rounded percentage. Demands for one question need not sum to exactly 100;
// rounding drift is tolerated, not corrected.
func WeightagePct(maxMarks, questionMarks int) int {
	if questionMarks <= 0 {
		return 0
	}
	return int(math.Round(float64(maxMarks) / float64(questionMarks) * 100))
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
