package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prepnexus/qbank/internal/taxonomy"
)

// ItemResult reports the outcome of one batch item. A batch has no global
// rollback: some items importing while others fail is the expected shape,
// and each failure is reported here, never as one aggregate flag.
type ItemResult struct {
	Index      int    `json:"index"`
	QuestionID string `json:"question_id,omitempty"`
	Validation Result `json:"validation"`
	Error      string `json:"error,omitempty"`
}

// Imported reports whether the item was committed.
func (r ItemResult) Imported() bool { return r.QuestionID != "" }

// RunnerConfig holds dependencies for the batch runner.
type RunnerConfig struct {
	Importer *Importer
	Topics   taxonomy.Store
	Progress func(ItemResult) // optional, called after each item
}

// Runner processes a batch of drafts strictly sequentially: one transaction
// per item, run to completion before the next item starts, so each item's
// success or failure is individually reportable and one rollback never
// touches another item's commit.
type Runner struct {
	importer *Importer
	topics   taxonomy.Store
	progress func(ItemResult)
}

// NewRunner creates a batch runner.
func NewRunner(cfg RunnerConfig) *Runner {
	return &Runner{
		importer: cfg.Importer,
		topics:   cfg.Topics,
		progress: cfg.Progress,
	}
}

// Run validates and imports each draft in order, returning one result per
// item. Context cancellation stops processing; unprocessed items are
// reported as canceled, never half-imported.
func (r *Runner) Run(ctx context.Context, drafts []QuestionDraft) []ItemResult {
	return r.RunWithProgress(ctx, drafts, nil)
}

// RunWithProgress is Run with an additional per-item callback for this batch
// only, on top of any callback configured on the runner.
func (r *Runner) RunWithProgress(ctx context.Context, drafts []QuestionDraft, progress func(ItemResult)) []ItemResult {
	results := make([]ItemResult, 0, len(drafts))
	for i, d := range drafts {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(drafts); j++ {
				results = append(results, r.report(ItemResult{Index: j, Error: "batch canceled"}, progress))
			}
			break
		}
		results = append(results, r.report(r.runOne(ctx, i, d), progress))
	}
	return results
}

func (r *Runner) report(res ItemResult, progress func(ItemResult)) ItemResult {
	if r.progress != nil {
		r.progress(res)
	}
	if progress != nil {
		progress(res)
	}
	return res
}

func (r *Runner) runOne(ctx context.Context, index int, d QuestionDraft) ItemResult {
	res := ItemResult{Index: index, Validation: ValidateQuestion(d)}
	if !res.Validation.Valid() {
		res.Error = "validation failed"
		return res
	}

	primaryID, err := r.materialize(ctx, d, d.PrimaryTopic)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	secondaryIDs := make([]string, 0, len(d.SecondaryTopics))
	for _, ref := range d.SecondaryTopics {
		id, err := r.materialize(ctx, d, ref)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		secondaryIDs = append(secondaryIDs, id)
	}

	questionID, err := r.importer.Import(ctx, ImportParams{
		Question: QuestionFields{
			Text:       d.Text,
			Directive:  d.Directive,
			MarksMax:   d.MarksMax,
			Paper:      d.Paper,
			Subject:    d.Subject,
			SourceType: d.SourceType,
			SourceRef:  d.SourceRef,
		},
		PrimaryTopicID:    primaryID,
		SecondaryTopicIDs: secondaryIDs,
		Demands:           d.Demands,
	})
	if err != nil {
		slog.Error("batch item import failed", "index", index, "error", err)
		res.Error = err.Error()
		return res
	}

	res.QuestionID = questionID
	return res
}

// materialize turns a topic reference into a persisted topic id. Canonical
// refs pass through; provisional refs get a placeholder row under the
// draft's subject, created on first use.
func (r *Runner) materialize(ctx context.Context, d QuestionDraft, ref taxonomy.TopicRef) (string, error) {
	if id, ok := ref.CanonicalID(); ok {
		return id, nil
	}

	label, _ := ref.Label()
	if d.SubjectTopicID == "" {
		return "", fmt.Errorf("provisional topic %q needs a subject topic id", label)
	}
	subject, err := r.topics.GetTopic(ctx, d.SubjectTopicID)
	if err != nil {
		return "", fmt.Errorf("loading subject topic: %w", err)
	}

	placeholder := taxonomy.ProvisionalTopic(label, *subject)
	if _, err := r.topics.GetTopic(ctx, placeholder.ID); err == nil {
		return placeholder.ID, nil // already synthesized by an earlier item
	} else if !errors.Is(err, taxonomy.ErrNotFound) {
		return "", fmt.Errorf("checking provisional topic: %w", err)
	}

	if err := r.topics.CreateTopic(ctx, placeholder); err != nil {
		return "", fmt.Errorf("creating provisional topic: %w", err)
	}
	slog.Info("provisional topic created",
		"topic_id", placeholder.ID,
		"label", label,
		"subject", d.SubjectTopicID,
	)
	return placeholder.ID, nil
}
