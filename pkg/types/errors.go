package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is checks against the typed errors below.
var (
	ErrValidation = errors.New("validation failed")
	ErrAmbiguous  = errors.New("ambiguous mention")
	ErrNotFound   = errors.New("resource not found")
	ErrStorage    = errors.New("storage failure")
)

// Issue is one blocking problem found while validating an extraction batch.
type Issue struct {
	Path       string      `json:"path"`                 // Location in the batch, e.g. relationships_new[2].to
	Message    string      `json:"message"`              // What is wrong
	Mention    string      `json:"mention,omitempty"`    // Offending surface text or id
	Candidates []EntityRef `json:"candidates,omitempty"` // Plausible targets, if any
}

func (i Issue) String() string {
	s := i.Path + ": " + i.Message
	if i.Mention != "" {
		s += fmt.Sprintf(" (%q)", i.Mention)
	}
	return s
}

// ValidationError rejects a whole chapter's ingestion.
type ValidationError struct {
	Chapter int     `json:"chapter"`
	Issues  []Issue `json:"issues"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.String())
	}
	return fmt.Sprintf("chapter %d: %v: %s", e.Chapter, ErrValidation, strings.Join(parts, "; "))
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AmbiguityError reports a mention whose best confidence is below the floor.
type AmbiguityError struct {
	Mention    string      `json:"mention"`
	Chapter    int         `json:"chapter,omitempty"`
	Confidence float64     `json:"confidence"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

func (e *AmbiguityError) Error() string {
	refs := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		refs = append(refs, fmt.Sprintf("%s@%.2f", c.Ref, c.Confidence))
	}
	return fmt.Sprintf("%v: %q (confidence %.2f, candidates [%s])",
		ErrAmbiguous, e.Mention, e.Confidence, strings.Join(refs, ", "))
}

// Is matches ErrAmbiguous.
func (e *AmbiguityError) Is(target error) bool { return target == ErrAmbiguous }

// NotFoundError reports a reference to an unknown entity or record.
type NotFoundError struct {
	Kind    string    `json:"kind"` // entity, relationship, disambiguation, chapter
	Ref     EntityRef `json:"ref,omitempty"`
	Mention string    `json:"mention,omitempty"`
	Chapter int       `json:"chapter,omitempty"`
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind)
	if !e.Ref.IsZero() {
		b.WriteString(" " + e.Ref.String())
	}
	if e.Mention != "" {
		fmt.Fprintf(&b, " %q", e.Mention)
	}
	if e.Chapter > 0 {
		fmt.Fprintf(&b, " at chapter %d", e.Chapter)
	}
	return b.String() + ": " + ErrNotFound.Error()
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StorageError wraps an I/O or lock failure.
type StorageError struct {
	Op        string `json:"op"`
	Err       error  `json:"-"`
	Transient bool   `json:"transient"` // Lock contention; safe to retry
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrStorage, e.Op, e.Err)
}

// Unwrap exposes the driver error.
func (e *StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }
