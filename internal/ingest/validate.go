package ingest

import (
	"fmt"
	"strings"

	"github.com/prepnexus/qbank/internal/taxonomy"
)

const (
	minQuestionTextLen = 5
	maxTopicsSoftLimit = 3
)

// Result holds the outcome of validating one question. Errors block import;
// warnings are advisory and surfaced to the reviewer.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether the question may be submitted to the importer.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

// BatchResult tags a per-question result with its position in the batch.
type BatchResult struct {
	Index int `json:"index"`
	Result
}

// ValidateQuestion checks a single assembled question against the ingestion
// rules. It never mutates the draft and never returns an error: rule
// violations are structured data for the review surface to present.
func ValidateQuestion(d QuestionDraft) Result {
	var res Result

	if len(strings.TrimSpace(d.Text)) < minQuestionTextLen {
		res.Errors = append(res.Errors, "question text is missing or too short")
	}
	if d.MarksMax <= 0 {
		res.Errors = append(res.Errors, "maximum marks must be positive")
	}

	res = validateTopics(d, res)
	if d.Kind == KindStatement {
		res = validateStatements(d, res)
	}
	if len(d.Options) > 0 {
		res = validateOptions(d, res)
	}
	res = validateDemands(d, res)

	return res
}

// ValidateBatch validates each question independently and tags the result
// with its batch position. There are no cross-question rules.
func ValidateBatch(ds []QuestionDraft) []BatchResult {
	out := make([]BatchResult, len(ds))
	for i, d := range ds {
		out[i] = BatchResult{Index: i, Result: ValidateQuestion(d)}
	}
	return out
}

func validateTopics(d QuestionDraft, res Result) Result {
	refs := d.attachedTopics()
	if len(refs) == 0 {
		res.Errors = append(res.Errors, "no topics attached")
		return res
	}

	seen := make(map[string]bool, len(refs))
	allProvisional := true
	for _, ref := range refs {
		key := ref.Key()
		if seen[key] {
			res.Errors = append(res.Errors, fmt.Sprintf("duplicate topic attached: %s", key))
		}
		seen[key] = true
		if ref.Kind() == taxonomy.RefCanonical {
			allProvisional = false
		}
	}

	if len(refs) > maxTopicsSoftLimit {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d topics attached; only the primary and three secondaries are kept", len(refs)))
	}
	if allProvisional {
		res.Warnings = append(res.Warnings, "all attached topics are provisional")
	}
	return res
}

func validateStatements(d QuestionDraft, res Result) Result {
	if len(d.Statements) == 0 {
		res.Errors = append(res.Errors, "statement-based question has no statements")
		return res
	}

	seen := make(map[int]bool, len(d.Statements))
	for _, s := range d.Statements {
		if strings.TrimSpace(s.Text) == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("statement %d has empty text", s.Index))
		}
		if seen[s.Index] {
			res.Errors = append(res.Errors, fmt.Sprintf("duplicate statement index: %d", s.Index))
		}
		seen[s.Index] = true
	}
	return res
}

func validateOptions(d QuestionDraft, res Result) Result {
	if d.CorrectOption == "" {
		res.Errors = append(res.Errors, "options present but no correct option set")
		return res
	}
	for _, o := range d.Options {
		if o.Label == d.CorrectOption {
			return res
		}
	}
	res.Errors = append(res.Errors,
		fmt.Sprintf("correct option %q does not match any option label", d.CorrectOption))
	return res
}

func validateDemands(d QuestionDraft, res Result) Result {
	for i, dem := range d.Demands {
		if strings.TrimSpace(dem.Text) == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("demand %d has empty text", i))
		}
		if dem.MaxMarks <= 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("demand %d must carry positive marks", i))
		}
	}
	return res
}
