// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Error classes. An *IngestionError matches exactly one of these with errors.Is.
var (
	ErrNetwork    = errors.New("network")
	ErrFilesystem = errors.New("filesystem")
	ErrDataFormat = errors.New("data format")
)

// Configuration errors.
var (
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorKind classifies the failure behind an IngestionError.
type ErrorKind int

// Error kinds.
const (
	KindNetwork ErrorKind = iota + 1
	KindFilesystem
	KindDataFormat
	// KindCanceled marks a run stopped between stages by its context.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return ErrNetwork.Error()
	case KindFilesystem:
		return ErrFilesystem.Error()
	case KindDataFormat:
		return ErrDataFormat.Error()
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindFilesystem:
		return ErrFilesystem
	case KindDataFormat:
		return ErrDataFormat
	default:
		return nil
	}
}

// IngestionError is returned by every pipeline stage. It carries the stage
// name and the path involved so a failed run can be diagnosed from the
// message alone.
type IngestionError struct {
	Err   error
	Stage string
	Path  string
	Kind  ErrorKind
}

func (e *IngestionError) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Stage, e.Kind)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *IngestionError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewIngestionError wraps err with stage and path context.
func NewIngestionError(kind ErrorKind, stage, path string, err error) error {
	return &IngestionError{
		Kind:  kind,
		Stage: stage,
		Path:  path,
		Err:   err,
	}
}

// NetworkError wraps a fetch failure.
func NetworkError(stage, path string, err error) error {
	return NewIngestionError(KindNetwork, stage, path, err)
}

// FilesystemError wraps a missing, unreadable, or unwritable path.
func FilesystemError(stage, path string, err error) error {
	return NewIngestionError(KindFilesystem, stage, path, err)
}

// DataFormatError wraps a table or archive that cannot be used.
func DataFormatError(stage, path string, err error) error {
	return NewIngestionError(KindDataFormat, stage, path, err)
}

// StageOf returns the stage recorded on err, or "" when err is not an
// IngestionError.
func StageOf(err error) string {
	var ie *IngestionError
	if errors.As(err, &ie) {
		return ie.Stage
	}
	return ""
}
