package grading

import (
	"context"
	"fmt"

	"github.com/ironsheep/grade-overlay-mcp/internal/imaging"
)

// File is an attached answer key: an image or a PDF.
type File struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Request is one grading call: the student's pages in order plus an
// optional answer key given as text, as a file, or both.
type Request struct {
	Pages         []imaging.Asset
	AnswerKeyText string
	AnswerKeyFile *File
}

// Grader grades a submission.
type Grader interface {
	Grade(ctx context.Context, req Request) (Result, error)
}

// DefaultFailureMessage is shown to the user when grading fails.
const DefaultFailureMessage = "An error occurred while grading. Please try again."

// Failure is a remote grading error. Message is meant for the user; Err
// carries the underlying cause for logs.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return fmt.Sprintf("%s: %v", f.Message, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(err error) *Failure {
	return &Failure{Message: DefaultFailureMessage, Err: err}
}
