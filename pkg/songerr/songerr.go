// Package songerr defines the error taxonomy shared by the songgen
// pipeline.
//
// Every error carries a Kind (data, model, render), the pipeline Stage that
// produced it and, where known, the recording and track it concerns, so a
// failure can be diagnosed from the log line alone:
//
//	encode-symbolic song01/drums: smf: unexpected EOF
//
// Kinds are matched with errors.Is against the sentinel values:
//
//	if errors.Is(err, songerr.ErrData) { ... }
package songerr

import (
	"errors"
	"strings"
)

// Kind classifies a pipeline error.
type Kind int

const (
	// KindData covers missing or corrupt corpus files, empty corpora and
	// malformed event streams.
	KindData Kind = iota + 1
	// KindModel covers prediction failures and artifact load failures.
	KindModel
	// KindRender covers inversion and export failures.
	KindRender
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindModel:
		return "model"
	case KindRender:
		return "render"
	}
	return "unknown"
}

// Sentinel errors, one per kind.
var (
	ErrData   = &Error{Kind: KindData}
	ErrModel  = &Error{Kind: KindModel}
	ErrRender = &Error{Kind: KindRender}
)

// Error is a pipeline error with diagnostic context.
type Error struct {
	Kind      Kind
	Stage     string
	Recording string
	Track     string

	// Fatal marks errors that abort the current run. Recoverable errors
	// (a single bad track) leave it false.
	Fatal bool

	Err error
}

// Error renders "stage recording/track: cause".
func (e *Error) Error() string {
	var b strings.Builder
	if e.Stage != "" {
		b.WriteString(e.Stage)
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Recording != "" || e.Track != "" {
		b.WriteByte(' ')
		b.WriteString(e.Recording)
		if e.Track != "" {
			b.WriteByte('/')
			b.WriteString(e.Track)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind with no
// other fields set (one of the sentinels).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Stage == "" && t.Err == nil
}

// LogAttrs returns slog-style key/value pairs describing e.
func (e *Error) LogAttrs() []any {
	attrs := []any{"kind", e.Kind.String(), "stage", e.Stage}
	if e.Recording != "" {
		attrs = append(attrs, "recording", e.Recording)
	}
	if e.Track != "" {
		attrs = append(attrs, "track", e.Track)
	}
	if e.Err != nil {
		attrs = append(attrs, "error", e.Err)
	}
	return attrs
}

// Data returns a recoverable data error.
func Data(stage, recording, track string, err error) *Error {
	return &Error{Kind: KindData, Stage: stage, Recording: recording, Track: track, Err: err}
}

// Model returns a fatal model error.
func Model(stage string, err error) *Error {
	return &Error{Kind: KindModel, Stage: stage, Fatal: true, Err: err}
}

// Render returns a render error for one track. It is recoverable unless
// marked fatal by the caller.
func Render(stage, track string, err error) *Error {
	return &Error{Kind: KindRender, Stage: stage, Track: track, Err: err}
}

// IsFatal reports whether err (or any error it wraps) is a fatal pipeline
// error.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal
	}
	return err != nil
}
