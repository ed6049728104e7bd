package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/prepnexus/qbank/internal/taxonomy"
)

// batchSchema is the structural contract for batch payloads. It is checked
// before any domain rule runs, so malformed submissions are rejected with
// field-level messages instead of opaque decode errors.
const batchSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["questions"],
	"properties": {
		"questions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["text", "marks_max", "primary_topic"],
				"properties": {
					"text": {"type": "string"},
					"directive": {"type": "string"},
					"marks_max": {"type": "integer", "minimum": 1},
					"paper": {"type": "string"},
					"subject": {"type": "string"},
					"source_type": {"type": "string"},
					"source_ref": {"type": "string"},
					"kind": {"type": "string", "enum": ["descriptive", "statement", "mcq"]},
					"subject_topic_id": {"type": "string"},
					"primary_topic": {"$ref": "#/definitions/topicRef"},
					"secondary_topics": {
						"type": "array",
						"items": {"$ref": "#/definitions/topicRef"}
					},
					"statements": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["index", "text"],
							"properties": {
								"index": {"type": "integer"},
								"text": {"type": "string"}
							}
						}
					},
					"options": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["label"],
							"properties": {
								"label": {"type": "string"},
								"text": {"type": "string"}
							}
						}
					},
					"correct_option": {"type": "string"},
					"demands": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["text", "max_marks"],
							"properties": {
								"text": {"type": "string"},
								"expectation": {"type": "string"},
								"max_marks": {"type": "integer"},
								"topic_id": {"type": "string"},
								"topic_slug": {"type": "string"}
							}
						}
					}
				}
			}
		}
	},
	"definitions": {
		"topicRef": {
			"type": "object",
			"properties": {
				"id": {"type": "string"},
				"label": {"type": "string"}
			}
		}
	}
}`

var compiledBatchSchema = gojsonschema.NewStringLoader(batchSchema)

// TopicRefPayload is the wire form of a topic reference: a canonical id, or
// a free-text label for a provisional attachment.
type TopicRefPayload struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
}

func (p TopicRefPayload) ref() taxonomy.TopicRef {
	if p.ID != "" {
		return taxonomy.Canonical(p.ID)
	}
	if p.Label != "" {
		return taxonomy.Provisional(p.Label)
	}
	return taxonomy.TopicRef{}
}

// QuestionPayload is the wire form of one question in a batch submission.
type QuestionPayload struct {
	Text            string            `json:"text"`
	Directive       string            `json:"directive,omitempty"`
	MarksMax        int               `json:"marks_max"`
	Paper           string            `json:"paper,omitempty"`
	Subject         string            `json:"subject,omitempty"`
	SourceType      string            `json:"source_type,omitempty"`
	SourceRef       string            `json:"source_ref,omitempty"`
	Kind            string            `json:"kind,omitempty"`
	SubjectTopicID  string            `json:"subject_topic_id,omitempty"`
	PrimaryTopic    TopicRefPayload   `json:"primary_topic"`
	SecondaryTopics []TopicRefPayload `json:"secondary_topics,omitempty"`
	Statements      []Statement       `json:"statements,omitempty"`
	Options         []Option          `json:"options,omitempty"`
	CorrectOption   string            `json:"correct_option,omitempty"`
	Demands         []Demand          `json:"demands,omitempty"`
}

// Draft converts the wire form into a QuestionDraft.
func (p QuestionPayload) Draft() QuestionDraft {
	d := QuestionDraft{
		Text:           p.Text,
		Directive:      p.Directive,
		MarksMax:       p.MarksMax,
		Paper:          p.Paper,
		Subject:        p.Subject,
		SourceType:     p.SourceType,
		SourceRef:      p.SourceRef,
		Kind:           p.Kind,
		SubjectTopicID: p.SubjectTopicID,
		PrimaryTopic:   p.PrimaryTopic.ref(),
		Statements:     p.Statements,
		Options:        p.Options,
		CorrectOption:  p.CorrectOption,
		Demands:        p.Demands,
	}
	for _, s := range p.SecondaryTopics {
		d.SecondaryTopics = append(d.SecondaryTopics, s.ref())
	}
	return d
}

// BatchPayload is the wire form of a batch submission.
type BatchPayload struct {
	Questions []QuestionPayload `json:"questions"`
}

// ParseBatch checks the payload against the batch schema and decodes it into
// drafts. Schema violations come back as messages, not an error; the error
// return is reserved for JSON that cannot be parsed at all.
func ParseBatch(data []byte) ([]QuestionDraft, []string, error) {
	result, err := gojsonschema.Validate(compiledBatchSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parsing batch payload: %w", err)
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			violations = append(violations, e.String())
		}
		return nil, violations, nil
	}

	var payload BatchPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, fmt.Errorf("decoding batch payload: %w", err)
	}

	drafts := make([]QuestionDraft, len(payload.Questions))
	for i, q := range payload.Questions {
		drafts[i] = q.Draft()
	}
	return drafts, nil, nil
}
