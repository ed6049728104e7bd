// Package taxonomy models the hierarchical subject taxonomy and its
// canonical/provisional topic lifecycle.
package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a topic id does not exist in the store.
var ErrNotFound = errors.New("topic not found")

// TopicType distinguishes admin-curated topics from placeholders awaiting
// human reconciliation.
type TopicType string

const (
	TypeCanonical   TopicType = "canonical"
	TypeProvisional TopicType = "provisional"
)

// Topic levels. The level-2 subject is the hard scoping boundary for search.
const (
	LevelExamination = 1
	LevelSubject     = 2
	LevelTopic       = 3
	LevelSubTopic    = 4
)

// Topic is one node of the subject taxonomy tree.
type Topic struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Level           int       `json:"level"`
	PrimaryParentID string    `json:"primary_parent_id,omitempty"`
	AncestryPath    string    `json:"ancestry_path"`
	TopicType       TopicType `json:"topic_type"`
	Embedding       []float32 `json:"-"`
}

// PathSeparator joins ancestor ids in AncestryPath, root first.
const PathSeparator = ">"

// PathContains reports whether the ancestry path includes the given topic id
// as a whole segment. Substring matches on partial ids do not count.
func PathContains(path, id string) bool {
	if path == "" || id == "" {
		return false
	}
	for _, seg := range strings.Split(path, PathSeparator) {
		if seg == id {
			return true
		}
	}
	return false
}

// ChildPath extends a parent's ancestry path with the child id.
func ChildPath(parent Topic, childID string) string {
	if parent.AncestryPath == "" {
		return childID
	}
	return parent.AncestryPath + PathSeparator + childID
}

// Match is the result of a nearest-neighbor lookup against canonical topics.
// Similarity is cosine-derived (1 - distance) and lies in [-1, 1].
type Match struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	Level        int     `json:"level"`
	AncestryPath string  `json:"ancestry_path"`
	Similarity   float64 `json:"similarity"`
}

// RefKind tags a TopicRef as canonical or provisional.
type RefKind int

const (
	RefCanonical RefKind = iota
	RefProvisional
)

// TopicRef is an in-flight topic classification attached to a question before
// commit: either a resolved canonical topic id, or a provisional free-text
// label with no accepted canonical match. The two cases are exhaustive;
// callers must handle both.
type TopicRef struct {
	kind  RefKind
	id    string
	label string
}

// Canonical creates a reference to an existing canonical topic.
func Canonical(id string) TopicRef {
	return TopicRef{kind: RefCanonical, id: id}
}

// Provisional creates a placeholder reference for an unmatched label.
func Provisional(label string) TopicRef {
	return TopicRef{kind: RefProvisional, label: label}
}

// Kind returns the variant tag.
func (r TopicRef) Kind() RefKind { return r.kind }

// CanonicalID returns the topic id and true for canonical references.
func (r TopicRef) CanonicalID() (string, bool) {
	return r.id, r.kind == RefCanonical
}

// Label returns the raw label and true for provisional references.
func (r TopicRef) Label() (string, bool) {
	return r.label, r.kind == RefProvisional
}

// Key returns a stable identity for duplicate detection across a question's
// attached topics: the id for canonical refs, the slugified label otherwise.
func (r TopicRef) Key() string {
	if r.kind == RefCanonical {
		return r.id
	}
	return Slugify(r.label)
}

func (r TopicRef) String() string {
	if r.kind == RefCanonical {
		return fmt.Sprintf("canonical(%s)", r.id)
	}
	return fmt.Sprintf("provisional(%q)", r.label)
}

// ProvisionalTopic synthesizes a placeholder topic row under the given parent
// for a label that no canonical topic matched. The placeholder is persisted
// only when a reviewer confirms the question; merging it into a canonical
// node later is a manual admin workflow.
func ProvisionalTopic(label string, parent Topic) Topic {
	slug := Slugify(label)
	id := "prov-" + slug
	level := parent.Level + 1
	if level > LevelSubTopic {
		level = LevelSubTopic
	}
	return Topic{
		ID:              id,
		Name:            strings.TrimSpace(label),
		Slug:            slug,
		Level:           level,
		PrimaryParentID: parent.ID,
		AncestryPath:    ChildPath(parent, id),
		TopicType:       TypeProvisional,
	}
}
