// Package ingest validates AI-classified exam questions and commits them,
// with their topic links and weighted demands, as one transactional unit.
package ingest

import (
	"github.com/prepnexus/qbank/internal/taxonomy"
)

// Question kinds. Statement rules apply only to statement-based questions;
// option rules apply whenever options are present.
const (
	KindDescriptive = "descriptive"
	KindStatement   = "statement"
	KindMCQ         = "mcq"
)

// Statement is one numbered assertion of a statement-based question.
type Statement struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Option is one answer choice of an objective question.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Demand is one scored sub-requirement of a question. TopicID/TopicSlug are
// set when the demand has a finer-grained classification than the question
// as a whole.
type Demand struct {
	TopicID     string `json:"topic_id,omitempty"`
	TopicSlug   string `json:"topic_slug,omitempty"`
	Text        string `json:"text"`
	Expectation string `json:"expectation,omitempty"`
	MaxMarks    int    `json:"max_marks"`
}

// QuestionDraft is a fully assembled question awaiting validation and
// import. Topic references may still be provisional at this stage; the batch
// runner persists placeholders for them just before import.
type QuestionDraft struct {
	Text       string `json:"text"`
	Directive  string `json:"directive,omitempty"`
	MarksMax   int    `json:"marks_max"`
	Paper      string `json:"paper,omitempty"`
	Subject    string `json:"subject,omitempty"`
	SourceType string `json:"source_type,omitempty"`
	SourceRef  string `json:"source_ref,omitempty"`
	Kind       string `json:"kind,omitempty"`

	// SubjectTopicID is the level-2 taxonomy node the question belongs to,
	// used to anchor provisional placeholders.
	SubjectTopicID string `json:"subject_topic_id,omitempty"`

	PrimaryTopic    taxonomy.TopicRef   `json:"-"`
	SecondaryTopics []taxonomy.TopicRef `json:"-"`

	Statements    []Statement `json:"statements,omitempty"`
	Options       []Option    `json:"options,omitempty"`
	CorrectOption string      `json:"correct_option,omitempty"`

	Demands []Demand `json:"demands,omitempty"`
}

// attachedTopics returns every topic reference on the draft, primary first.
// An unset primary (zero TopicRef) is excluded.
func (d QuestionDraft) attachedTopics() []taxonomy.TopicRef {
	var refs []taxonomy.TopicRef
	if d.PrimaryTopic.Key() != "" {
		refs = append(refs, d.PrimaryTopic)
	}
	refs = append(refs, d.SecondaryTopics...)
	return refs
}
