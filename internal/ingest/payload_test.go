package ingest_test

import (
	"strings"
	"testing"

	"github.com/prepnexus/qbank/internal/ingest"
	"github.com/prepnexus/qbank/internal/taxonomy"
)

const goodBatchJSON = `{
	"questions": [
		{
			"text": "Discuss the independence of the judiciary in light of recent collegium debates.",
			"directive": "Discuss",
			"marks_max": 15,
			"paper": "GS-II",
			"subject": "Polity",
			"kind": "descriptive",
			"subject_topic_id": "subj-polity",
			"primary_topic": {"id": "t-142"},
			"secondary_topics": [{"label": "Coalition Dharma"}],
			"demands": [
				{"text": "Explain constitutional safeguards", "max_marks": 9},
				{"text": "Evaluate collegium criticism", "max_marks": 6}
			]
		}
	]
}`

func TestParseBatch_Valid(t *testing.T) {
	drafts, violations, err := ingest.ParseBatch([]byte(goodBatchJSON))
	if err != nil {
		t.Fatalf("ParseBatch() error = %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("ParseBatch() violations = %v, want none", violations)
	}
	if len(drafts) != 1 {
		t.Fatalf("ParseBatch() = %d drafts, want 1", len(drafts))
	}

	d := drafts[0]
	if d.MarksMax != 15 || d.SubjectTopicID != "subj-polity" {
		t.Errorf("draft fields = marks %d, subject topic %q", d.MarksMax, d.SubjectTopicID)
	}
	if id, ok := d.PrimaryTopic.CanonicalID(); !ok || id != "t-142" {
		t.Errorf("PrimaryTopic = %v, want canonical t-142", d.PrimaryTopic)
	}
	if len(d.SecondaryTopics) != 1 {
		t.Fatalf("secondary topics = %d, want 1", len(d.SecondaryTopics))
	}
	if d.SecondaryTopics[0].Kind() != taxonomy.RefProvisional {
		t.Errorf("secondary topic should be provisional, got %v", d.SecondaryTopics[0])
	}
	if len(d.Demands) != 2 {
		t.Errorf("demands = %d, want 2", len(d.Demands))
	}
}

func TestParseBatch_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantIn  string
	}{
		{"missing-questions", `{}`, "questions"},
		{"missing-text", `{"questions":[{"marks_max":10,"primary_topic":{"id":"t-1"}}]}`, "text"},
		{"zero-marks", `{"questions":[{"text":"Enough text here.","marks_max":0,"primary_topic":{"id":"t-1"}}]}`, "marks_max"},
		{"bad-kind", `{"questions":[{"text":"Enough text here.","marks_max":5,"kind":"essay","primary_topic":{"id":"t-1"}}]}`, "kind"},
		{"demand-missing-marks", `{"questions":[{"text":"Enough text here.","marks_max":5,"primary_topic":{"id":"t-1"},"demands":[{"text":"Assess"}]}]}`, "max_marks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, violations, err := ingest.ParseBatch([]byte(tt.payload))
			if err != nil {
				t.Fatalf("ParseBatch() error = %v", err)
			}
			if len(drafts) != 0 {
				t.Errorf("ParseBatch() returned drafts despite violations")
			}
			if len(violations) == 0 {
				t.Fatal("expected schema violations")
			}
			found := false
			for _, v := range violations {
				if strings.Contains(v, tt.wantIn) {
					found = true
				}
			}
			if !found {
				t.Errorf("violations = %v, want one mentioning %q", violations, tt.wantIn)
			}
		})
	}
}

func TestParseBatch_MalformedJSON(t *testing.T) {
	if _, _, err := ingest.ParseBatch([]byte(`{"questions": [`)); err == nil {
		t.Fatal("ParseBatch() should fail on unparseable JSON")
	}
}

func TestParseBatch_ViolationsAreNotAnError(t *testing.T) {
	_, violations, err := ingest.ParseBatch([]byte(`{"questions":[{"marks_max":5}]}`))
	if err != nil {
		t.Fatalf("schema violations must not surface as an error, got %v", err)
	}
	if len(violations) == 0 {
		t.Fatal("expected violations for a question missing required fields")
	}
}
