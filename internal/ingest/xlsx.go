package ingest

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/prepnexus/qbank/internal/taxonomy"
)

// Workbook sheet names. Questions is required; Demands is optional and joins
// back to Questions by 1-based data row number.
const (
	sheetQuestions = "Questions"
	sheetDemands   = "Demands"
)

// canonicalTokenPrefix marks a topic cell as a canonical id rather than a
// provisional label: "id:t-142" vs "Coalition Dharma".
const canonicalTokenPrefix = "id:"

// ReadWorkbook parses an XLSX workbook into question drafts. The first row of
// each sheet is a header row; unknown columns are ignored so curators can keep
// scratch columns in their working files.
func ReadWorkbook(r io.Reader) ([]QuestionDraft, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetQuestions)
	if err != nil {
		return nil, fmt.Errorf("reading %s sheet: %w", sheetQuestions, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	cols := headerIndex(rows[0])
	var drafts []QuestionDraft
	// Blank rows are skipped but still occupy their sheet position, so the
	// Demands join stays stable when a curator leaves a spacer row.
	byRow := make(map[int]int)
	for i, row := range rows[1:] {
		if rowEmpty(row) {
			continue
		}
		d, err := draftFromRow(cols, row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", sheetQuestions, i+2, err)
		}
		byRow[i+1] = len(drafts)
		drafts = append(drafts, d)
	}

	if err := attachDemands(f, drafts, byRow); err != nil {
		return nil, err
	}
	return drafts, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name != "" {
			cols[name] = i
		}
	}
	return cols
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(cols map[string]int, row []string, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func intCell(cols map[string]int, row []string, name string) (int, error) {
	s := cell(cols, row, name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("column %s: %q is not a number", name, s)
	}
	return n, nil
}

// topicToken parses a topic cell. A cell prefixed with "id:" names a
// canonical topic; anything else is a provisional label.
func topicToken(s string) taxonomy.TopicRef {
	s = strings.TrimSpace(s)
	if s == "" {
		return taxonomy.TopicRef{}
	}
	if id := strings.TrimPrefix(s, canonicalTokenPrefix); id != s {
		return taxonomy.Canonical(strings.TrimSpace(id))
	}
	return taxonomy.Provisional(s)
}

func draftFromRow(cols map[string]int, row []string) (QuestionDraft, error) {
	marks, err := intCell(cols, row, "marks_max")
	if err != nil {
		return QuestionDraft{}, err
	}

	d := QuestionDraft{
		Text:           cell(cols, row, "text"),
		Directive:      cell(cols, row, "directive"),
		MarksMax:       marks,
		Paper:          cell(cols, row, "paper"),
		Subject:        cell(cols, row, "subject"),
		SourceType:     cell(cols, row, "source_type"),
		SourceRef:      cell(cols, row, "source_ref"),
		Kind:           cell(cols, row, "kind"),
		SubjectTopicID: cell(cols, row, "subject_topic_id"),
		PrimaryTopic:   topicToken(cell(cols, row, "primary_topic")),
		CorrectOption:  cell(cols, row, "correct_option"),
	}
	for _, tok := range strings.Split(cell(cols, row, "secondary_topics"), "|") {
		if ref := topicToken(tok); ref.Key() != "" {
			d.SecondaryTopics = append(d.SecondaryTopics, ref)
		}
	}
	return d, nil
}

// attachDemands reads the optional Demands sheet and joins each demand to its
// question by the question_row column: the question's position in the
// Questions sheet counting from the first data row, blank rows included.
func attachDemands(f *excelize.File, drafts []QuestionDraft, byRow map[int]int) error {
	rows, err := f.GetRows(sheetDemands)
	if err != nil {
		// The sheet is optional; a workbook of bare questions is fine.
		slog.Debug("workbook has no demands sheet", "error", err)
		return nil
	}
	if len(rows) < 2 {
		return nil
	}

	cols := headerIndex(rows[0])
	for i, row := range rows[1:] {
		if rowEmpty(row) {
			continue
		}
		qRow, err := intCell(cols, row, "question_row")
		if err != nil {
			return fmt.Errorf("%s row %d: %w", sheetDemands, i+2, err)
		}
		di, ok := byRow[qRow]
		if !ok {
			return fmt.Errorf("%s row %d: question_row %d does not name a question row", sheetDemands, i+2, qRow)
		}
		marks, err := intCell(cols, row, "max_marks")
		if err != nil {
			return fmt.Errorf("%s row %d: %w", sheetDemands, i+2, err)
		}

		drafts[di].Demands = append(drafts[di].Demands, Demand{
			TopicID:     cell(cols, row, "topic_id"),
			TopicSlug:   cell(cols, row, "topic_slug"),
			Text:        cell(cols, row, "text"),
			Expectation: cell(cols, row, "expectation"),
			MaxMarks:    marks,
		})
	}
	return nil
}
