package database

import (
	"context"
	"fmt"
)

// schema defines the tables owned by the ingestion engine. Topic IDs are
// caller-supplied text identifiers (e.g. "t-142"); question IDs are generated.
// The topics.embedding column backs the nearest-neighbor query and stays NULL
// until the seed backfill assigns a vector. It is deliberately undimensioned:
// provider models disagree on vector width (768 vs 1536), and pgvector only
// requires matching dimensions between the stored and query vectors.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS topics (
		id                TEXT PRIMARY KEY,
		name              TEXT NOT NULL,
		slug              TEXT NOT NULL,
		level             INT NOT NULL CHECK (level BETWEEN 1 AND 4),
		primary_parent_id TEXT,
		ancestry_path     TEXT NOT NULL,
		topic_type        TEXT NOT NULL CHECK (topic_type IN ('canonical', 'provisional')),
		embedding         vector,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_topics_name ON topics (lower(name))`,
	`CREATE INDEX IF NOT EXISTS idx_topics_parent ON topics (primary_parent_id)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		text        TEXT NOT NULL,
		directive   TEXT,
		marks_max   INT NOT NULL,
		paper       TEXT,
		subject     TEXT,
		source_type TEXT,
		source_ref  TEXT,
		fingerprint TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS questions_topics (
		question_id UUID NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		topic_id    TEXT NOT NULL REFERENCES topics(id),
		role        TEXT NOT NULL CHECK (role IN ('PRIMARY', 'SECONDARY')),
		PRIMARY KEY (question_id, topic_id)
	)`,
	`CREATE TABLE IF NOT EXISTS questions_demands (
		id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		question_id   UUID NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
		topic_id      TEXT REFERENCES topics(id),
		topic_slug    TEXT,
		demand_text   TEXT NOT NULL,
		expectation   TEXT,
		max_marks     INT NOT NULL,
		weightage_pct INT NOT NULL
	)`,
}

// Migrate creates the engine's tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
