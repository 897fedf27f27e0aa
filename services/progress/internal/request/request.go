// Package request decodes and checks content-state update payloads shared by
// every transport of the progress service.
package request

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/learning-platform/services/progress/internal/learnerstate"
)

// ErrEmptyUserID is returned when no user owns the batch.
var ErrEmptyUserID = errors.New("user id is required")

var validate = validator.New()

// Content is one report as sent by clients.
type Content struct {
	ContentID         string  `json:"contentId" yaml:"contentId" validate:"required"`
	CourseID          string  `json:"courseId,omitempty" yaml:"courseId"`
	BatchID           string  `json:"batchId,omitempty" yaml:"batchId"`
	Status            *int    `json:"status,omitempty" yaml:"status" validate:"omitempty,min=0,max=2"`
	ContentProgress   *int    `json:"contentProgress,omitempty" yaml:"contentProgress" validate:"omitempty,min=0"`
	LastAccessTime    *string `json:"lastAccessTime,omitempty" yaml:"lastAccessTime"`
	LastCompletedTime *string `json:"lastCompletedTime,omitempty" yaml:"lastCompletedTime"`
}

// Batch is the body of an update: {"contents":[...]}.
type Batch struct {
	Contents []Content `json:"contents" yaml:"contents" validate:"dive"`
}

// Envelope wraps a Batch the way HTTP clients send it: {"request":{...}}.
type Envelope struct {
	Request Batch `json:"request"`
}

// FieldError describes one rejected field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError lists every rejected field of a batch.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" ("+f.Rule+")")
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// Validate checks b and converts validator failures into a *ValidationError.
func (b Batch) Validate() error {
	err := validate.Struct(b)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate batch: %w", err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: trimNamespace(fe.Namespace()), Rule: fe.Tag()})
	}
	return out
}

// trimNamespace drops the leading struct name: "Batch.Contents[0].Status" -> "Contents[0].Status".
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Reports validates b and converts it into merge inputs for userID.
func (b Batch) Reports(userID string) ([]learnerstate.Report, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	out := make([]learnerstate.Report, 0, len(b.Contents))
	for _, c := range b.Contents {
		r := learnerstate.Report{
			UserID:            userID,
			ContentID:         c.ContentID,
			CourseID:          c.CourseID,
			BatchID:           c.BatchID,
			ContentProgress:   c.ContentProgress,
			LastAccessTime:    c.LastAccessTime,
			LastCompletedTime: c.LastCompletedTime,
		}
		if c.Status != nil {
			r.Status = learnerstate.StatusPtr(learnerstate.Status(*c.Status))
		}
		out = append(out, r)
	}
	return out, nil
}
