// Package oracle exposes the embedding model as an opaque word-level
// capability: vector lookup, part-of-speech tagging, and lemmatization.
package oracle

import (
	"errors"
	"strings"
)

var (
	// ErrNoVector means the model has no embedding for the word.
	ErrNoVector = errors.New("word has no vector")
	// ErrModelNotFound means the named model directory or manifest is missing.
	ErrModelNotFound = errors.New("embedding model not found")
	// ErrInvalidFormat means a model file could not be parsed.
	ErrInvalidFormat = errors.New("invalid model file format")
)

// Tag is a coarse part-of-speech class.
type Tag string

const (
	TagNoun  Tag = "noun"
	TagVerb  Tag = "verb"
	TagAdj   Tag = "adj"
	TagAdv   Tag = "adv"
	TagOther Tag = "other"
)

// ParseTag normalizes a tag string from config or lexicon files.
// Unrecognized tags collapse to TagOther.
func ParseTag(s string) Tag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "noun":
		return TagNoun
	case "verb":
		return TagVerb
	case "adj", "adjective":
		return TagAdj
	case "adv", "adverb":
		return TagAdv
	default:
		return TagOther
	}
}

// Oracle answers read-only questions about single lowercase words.
// Implementations must be safe for concurrent lookups.
type Oracle interface {
	// HasVector reports whether the model has an embedding for word.
	HasVector(word string) bool

	// Vector returns the embedding for word. Normalization is left to the
	// caller. Returns ErrNoVector for unknown words.
	Vector(word string) ([]float32, error)

	// POS returns the coarse part-of-speech tag for word, TagOther when
	// the model has no opinion.
	POS(word string) Tag

	// Lemma returns the family key for word: its dictionary form when
	// known, otherwise the word itself.
	Lemma(word string) string
}

// ProgressFunc receives model-loading progress. stage is opaque display
// text; loaded/total count items within the stage (total may be 0 when
// unknown).
type ProgressFunc func(stage string, loaded, total int)
